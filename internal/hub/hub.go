package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// writeTimeout bounds a single outbound send; exceeding a per-connection
// write deadline drops the connection (spec.md §5 backpressure) while
// the Queue keeps the underlying work alive for reconnect/polling.
const writeTimeout = 5 * time.Second

// Connection is one client's WebSocket session.
type Connection struct {
	ID     string
	Conn   *websocket.Conn
	UserID string

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub maintains client_id → connection and fans out events. Spec.md §5:
// "Session Hub's connection map is mutex-protected; send_to_client
// acquires the lock only to look up the connection, not during the
// send" — mirrored exactly from pkg/events/manager.go's Broadcast.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	askUser *askUserRegistry
	anim    *animator
}

// New builds an empty Hub.
func New() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		askUser:     newAskUserRegistry(),
		anim:        newAnimator(),
	}
}

// Register adds a connection and returns it wrapped with a derived,
// cancellable context.
func (h *Hub) Register(parentCtx context.Context, clientID, userID string, conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{ID: clientID, Conn: conn, UserID: userID, ctx: ctx, cancel: cancel}
	h.mu.Lock()
	h.connections[clientID] = c
	h.mu.Unlock()
	return c
}

// Context returns the connection's derived, cancellable context (cancelled
// on Unregister).
func (c *Connection) Context() context.Context { return c.ctx }

// Unregister removes a connection and cancels its context, draining any
// ask_user waiters tied to it is the caller's responsibility (tied to
// request id, not connection id — see askuser.go).
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	c, ok := h.connections[clientID]
	delete(h.connections, clientID)
	h.mu.Unlock()
	if ok {
		c.cancel()
	}
}

// IsConnected reports whether clientID currently has a live connection.
func (h *Hub) IsConnected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[clientID]
	return ok
}

// CountConnections returns the number of live connections.
func (h *Hub) CountConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SendToClient looks up clientID under the lock, then sends outside it
// (spec.md §5: the lock guards lookup only, never the send itself).
func (h *Hub) SendToClient(clientID string, ev Event) error {
	h.mu.RLock()
	c, ok := h.connections[clientID]
	h.mu.RUnlock()
	if !ok {
		return nil // silently drop: client disconnected, Queue retains the work
	}
	return h.send(c, ev)
}

// Broadcast sends ev to every connected client. Snapshots connection
// pointers under the lock, releases it, then sends — never holds the
// lock during slow writes (pkg/events/manager.go Broadcast pattern).
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := h.send(c, ev); err != nil {
			slog.Warn("hub broadcast send failed, dropping connection", "client_id", c.ID, "error", err)
			h.Unregister(c.ID)
		}
	}
}

func (h *Hub) send(c *Connection, ev Event) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.Conn, ev)
}

// SendStatusIndicator sends a recurring status-animation event
// (spec.md §4.6: "processing_files | thinking | retrying"). Each call
// sends a single event; it does not start the dot-cycling animator in
// animation.go.
func (h *Hub) SendStatusIndicator(clientID, channelID, messageID string, kind StatusKind, requestID uuid.UUID) error {
	return h.SendToClient(clientID, Event{
		Type:      EventEarlyStatus,
		RequestID: requestID,
		Content:   string(kind),
	})
}

// AskUser implements the ask_user tool's suspend/resume protocol
// (spec.md §4.5): sends a question event, then waits on a per-request
// response channel bounded by timeout.
func (h *Hub) AskUser(ctx context.Context, clientID string, requestID uuid.UUID, question string, options []string, timeout time.Duration) (string, error) {
	waiter := h.askUser.register(requestID)
	defer h.askUser.cleanup(requestID)

	if err := h.SendToClient(clientID, Event{
		Type: EventUserQuestion, RequestID: requestID, Question: question, Options: options, TimeoutS: int(timeout.Seconds()),
	}); err != nil {
		return "", err
	}
	return waiter.wait(ctx, timeout)
}

// HandleClientMessage dispatches an inbound message by type
// (spec.md §6): "ping" and "ask_user_response" are handled here;
// "message" and "cancel" are routed by the caller (they need Queue
// access, out of Hub's scope) and are ignored by this method.
func (h *Hub) HandleClientMessage(clientID string, raw []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	switch msg.Type {
	case "ping":
		return h.SendToClient(clientID, Event{Type: EventPong})
	case "ask_user_response":
		h.askUser.respond(msg.RequestID, msg.Message)
		return nil
	}
	return nil // "message"/"cancel" are handled by the API layer, which owns Queue access
}

// CancelAskUserWaiters aborts any pending ask_user wait for requestID
// with a cancellation error (spec.md §5: cancellation "cancels
// outstanding ask_user waiters with a cancellation error").
func (h *Hub) CancelAskUserWaiters(requestID uuid.UUID) {
	h.askUser.cancel(requestID)
}
