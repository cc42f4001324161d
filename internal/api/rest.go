package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nexuscore/nexus/internal/queue"
)

// submitMessageHandler handles POST /api/v1/message: the synchronous,
// non-WebSocket submission path for clients that poll status instead of
// streaming (spec.md §6).
func (s *Server) submitMessageHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	token := extractForwardedIdentity(c)
	userID, _, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if banned, _ := s.userIsBanned(ctx, userID); banned {
		return echo.NewHTTPError(http.StatusForbidden, "account banned")
	}
	if s.maintenance.RejectsNew() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "maintenance mode active")
	}

	var body struct {
		ThreadID   string   `json:"thread_id"`
		ChannelID  string   `json:"channel_id"`
		MessageID  string   `json:"message_id"`
		Message    string   `json:"message"`
		Model      *string  `json:"model"`
		Temperature *float64 `json:"temperature"`
		Thinking   *bool    `json:"thinking"`
		Interface  string   `json:"interface"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if body.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	iface := body.Interface
	if iface == "" {
		iface = "web"
	}

	req := &queue.Request{
		UserID:              userID,
		ThreadID:            body.ThreadID,
		ChannelID:           body.ChannelID,
		MessageID:           body.MessageID,
		RawMessage:          body.Message,
		ModelOverride:       body.Model,
		TemperatureOverride: body.Temperature,
		ThinkingOverride:    body.Thinking,
		Tier:                s.tierFor(ctx, userID),
		Interface:           iface,
	}

	id, err := s.queue.Enqueue(req)
	if errors.Is(err, queue.ErrFull) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "queue full")
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"request_id":     id,
		"status":         "queued",
		"queue_position": s.queue.Size(),
	})
}

// statusHandler handles GET /api/v1/status/:request_id. Falls back to
// durable storage when the in-memory queue has already dropped the
// entry past its retention window (spec.md §4.3 retention, §6).
func (s *Server) statusHandler(c *echo.Context) error {
	id, err := parseUUID(c.Param("request_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}

	record, err := s.queue.GetStatus(id)
	if err == nil {
		return c.JSON(http.StatusOK, map[string]any{
			"request_id": record.ID,
			"state":      record.State,
			"attempt":    record.Attempt,
			"error":      record.Error,
		})
	}
	if !errors.Is(err, queue.ErrNotFound) {
		return err
	}

	if s.reqStatus == nil {
		return echo.NewHTTPError(http.StatusNotFound, "request not found")
	}
	row, rowErr := s.reqStatus.Get(c.Request().Context(), id)
	if rowErr != nil {
		return echo.NewHTTPError(http.StatusNotFound, "request not found")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"request_id":    row.RequestID,
		"state":         row.State,
		"attempt":       row.Attempt,
		"completed_at":  row.CompletedAt,
		"error_message": row.ErrorMessage,
	})
}

// cancelHandler handles DELETE /api/v1/cancel/:request_id.
func (s *Server) cancelHandler(c *echo.Context) error {
	id, err := parseUUID(c.Param("request_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	wasQueued, err := s.queue.Cancel(id)
	if err != nil {
		return err
	}
	s.hub.CancelAskUserWaiters(id)
	return c.JSON(http.StatusOK, map[string]any{"request_id": id, "cancelled_while_queued": wasQueued})
}
