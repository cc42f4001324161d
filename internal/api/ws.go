package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	echo "github.com/labstack/echo/v5"

	"github.com/nexuscore/nexus/internal/hub"
	"github.com/nexuscore/nexus/internal/queue"
)

// wsHandler upgrades the connection and hands it to the read loop
// (spec.md §6, GET /api/v1/chat). Grounded on pkg/api/handler_ws.go's
// websocket.Accept call and pkg/events/manager.go's HandleConnection
// register → send-established → read-loop shape.
func (s *Server) wsHandler(c *echo.Context) error {
	token := extractForwardedIdentity(c)
	userID, _, err := s.auth.Authenticate(c.Request().Context(), token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if banned, banErr := s.userIsBanned(c.Request().Context(), userID); banErr == nil && banned {
		return echo.NewHTTPError(http.StatusForbidden, "account banned")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	clientID := uuid.New().String()
	parentCtx := c.Request().Context()
	connection := s.hub.Register(parentCtx, clientID, userID, conn)
	defer s.hub.Unregister(clientID)

	_ = s.hub.SendToClient(clientID, hub.Event{Type: hub.EventSessionStart, SessionID: clientID})

	s.wsReadLoop(connection.Context(), clientID, userID, conn)
	return nil
}

// wsReadLoop processes inbound client frames until the socket closes.
func (s *Server) wsReadLoop(ctx context.Context, clientID, userID string, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg hub.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("websocket: invalid client message", "client_id", clientID, "error", err)
			continue
		}

		switch msg.Type {
		case "message":
			s.enqueueFromWS(ctx, clientID, userID, msg)
		case "cancel":
			if _, cancelErr := s.queue.Cancel(msg.RequestID); cancelErr != nil {
				slog.Warn("websocket: cancel failed", "request_id", msg.RequestID, "error", cancelErr)
			}
			s.hub.CancelAskUserWaiters(msg.RequestID)
		default:
			if err := s.hub.HandleClientMessage(clientID, data); err != nil {
				slog.Warn("websocket: client message dispatch failed", "client_id", clientID, "error", err)
			}
		}
	}
}

// enqueueFromWS turns an inbound chat message into a queued request and
// acknowledges admission with a "queued" event, mirroring what
// submitMessageHandler does for the REST path (rest.go).
func (s *Server) enqueueFromWS(ctx context.Context, clientID, userID string, msg hub.ClientMessage) {
	if s.maintenance.RejectsNew() {
		_ = s.hub.SendToClient(clientID, hub.Event{Type: hub.EventFailed, Error: "maintenance mode active"})
		return
	}

	req := &queue.Request{
		BotID:      clientID,
		UserID:     userID,
		ThreadID:   msg.ThreadID,
		ChannelID:  msg.ChannelID,
		MessageID:  msg.MessageID,
		RawMessage: msg.Message,
		Tier:       s.tierFor(ctx, userID),
		Interface:  "web",
	}

	id, err := s.queue.Enqueue(req)
	if err != nil {
		_ = s.hub.SendToClient(clientID, hub.Event{Type: hub.EventFailed, Error: err.Error()})
		return
	}
	_ = s.hub.SendToClient(clientID, hub.Event{Type: hub.EventQueued, RequestID: id, Position: int(s.queue.Size())})
}
