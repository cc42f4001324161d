package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
)

// heartbeatInterval is the outbound ping cadence (spec.md §4.6: "e.g.
// ping every 30 s").
const heartbeatInterval = 30 * time.Second

// Dialer opens an outbound connection (e.g. bot → orchestrator) given a
// URL. Kept as an interface so tests can substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (*websocket.Conn, error)
}

// OutboundClient maintains a reconnecting outbound WebSocket connection
// with heartbeat and exponential backoff (spec.md §4.6: "initial 5s,
// capped at 60s"). State for in-flight requests lives in the Queue, not
// here — a reconnect never loses queued work.
type OutboundClient struct {
	dialer Dialer
	url    string
	onConn func(ctx context.Context, conn *websocket.Conn) error
}

// NewOutboundClient builds a client that calls onConn each time a
// connection is (re)established; onConn should block until the
// connection closes.
func NewOutboundClient(dialer Dialer, url string, onConn func(ctx context.Context, conn *websocket.Conn) error) *OutboundClient {
	return &OutboundClient{dialer: dialer, url: url, onConn: onConn}
}

// Run connects and reconnects until ctx is cancelled.
func (c *OutboundClient) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0 // retry forever; ctx cancellation is the only stop signal

	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dialer.Dial(ctx, c.url)
		if err != nil {
			wait := b.NextBackOff()
			slog.Warn("outbound connect failed, backing off", "error", err, "retry_in", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}
		b.Reset()
		connCtx, cancel := context.WithCancel(ctx)
		go c.heartbeat(connCtx, conn)
		if err := c.onConn(connCtx, conn); err != nil {
			slog.Warn("outbound connection closed", "error", err)
		}
		cancel()
	}
}

func (c *OutboundClient) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.Warn("outbound heartbeat ping failed", "error", err)
				return
			}
		}
	}
}
