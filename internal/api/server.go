// Package api is the HTTP/WebSocket/SSE transport for the orchestrator:
// inbound chat over WebSocket, synchronous REST submission/status/cancel,
// an admin monitoring SSE stream, and admin-gated management commands
// (spec.md §6).
//
// Grounded on pkg/api/server.go (echo.Echo + setter-injected optional
// services + ValidateWiring() composition-root pattern) and
// pkg/api/handler_ws.go / pkg/events/manager.go (coder/websocket
// accept + read loop delegated to a connection registry).
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/nexuscore/nexus/internal/healthloop"
	"github.com/nexuscore/nexus/internal/hub"
	"github.com/nexuscore/nexus/internal/profile"
	"github.com/nexuscore/nexus/internal/queue"
	"github.com/nexuscore/nexus/internal/store"
	"github.com/nexuscore/nexus/internal/vram"
)

// Server is the HTTP API server fronting the orchestrator.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	auth Authenticator

	queue      *queue.Queue
	pool       *queue.Pool
	hub        *hub.Hub
	orch       *vram.Orchestrator
	profiles   *profile.Registry
	checker    *healthloop.Checker
	users      *store.UserRepository
	reqStatus  *store.RequestStatusRepository
	executor   *TurnExecutor

	maintenance maintenanceMode
}

// NewServer builds a Server with its required collaborators already
// wired. Optional dependencies (e.g. the health checker, absent in a
// minimal deployment) are attached afterward via Set* methods.
func NewServer(
	q *queue.Queue,
	pool *queue.Pool,
	h *hub.Hub,
	orch *vram.Orchestrator,
	profiles *profile.Registry,
	users *store.UserRepository,
	reqStatus *store.RequestStatusRepository,
	auth Authenticator,
) *Server {
	e := echo.New()
	e.HTTPErrorHandler = httpErrorHandler
	s := &Server{
		echo: e, queue: q, pool: pool, hub: h, orch: orch,
		profiles: profiles, users: users, reqStatus: reqStatus, auth: auth,
	}
	s.setupRoutes()
	return s
}

// SetHealthChecker wires the health/metrics loop for the admin health
// snapshot and monitoring stream. Optional: a deployment may run without
// it, in which case those surfaces report an empty service map.
func (s *Server) SetHealthChecker(c *healthloop.Checker) {
	s.checker = c
}

// SetExecutor stores the turn executor on the server. No route handler
// reads it.
func (s *Server) SetExecutor(ex *TurnExecutor) {
	s.executor = ex
}

// ValidateWiring checks that every non-optional collaborator was
// supplied to NewServer, catching wiring gaps at startup rather than as
// nil-pointer panics at request time.
func (s *Server) ValidateWiring() error {
	var problems []error
	if s.queue == nil {
		problems = append(problems, fmt.Errorf("queue not set"))
	}
	if s.pool == nil {
		problems = append(problems, fmt.Errorf("worker pool not set"))
	}
	if s.hub == nil {
		problems = append(problems, fmt.Errorf("hub not set"))
	}
	if s.orch == nil {
		problems = append(problems, fmt.Errorf("vram orchestrator not set"))
	}
	if s.profiles == nil {
		problems = append(problems, fmt.Errorf("profile registry not set"))
	}
	if s.users == nil {
		problems = append(problems, fmt.Errorf("user repository not set"))
	}
	if s.auth == nil {
		problems = append(problems, fmt.Errorf("authenticator not set"))
	}
	if len(problems) > 0 {
		return fmt.Errorf("server wiring incomplete: %w", errors.Join(problems...))
	}
	return nil
}

// setupRoutes registers every route (spec.md §6).
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/chat", s.wsHandler)

	v1.POST("/message", s.submitMessageHandler)
	v1.GET("/status/:request_id", s.statusHandler)
	v1.DELETE("/cancel/:request_id", s.cancelHandler)

	admin := v1.Group("/admin", s.requireAdmin)
	admin.GET("/monitoring/stream", s.monitoringStreamHandler)
	admin.GET("/queue/stats", s.queueStatsHandler)
	admin.POST("/queue/purge", s.queuePurgeHandler)
	admin.POST("/maintenance", s.setMaintenanceHandler)
	admin.POST("/users/:user_id/grant", s.grantTokensHandler)
	admin.POST("/users/:user_id/ban", s.banUserHandler)
	admin.POST("/users/:user_id/unban", s.unbanUserHandler)
	admin.GET("/health", s.adminHealthHandler)
	admin.GET("/vram", s.vramStatusHandler)
	admin.POST("/models/:model_id/load", s.modelLoadHandler)
	admin.POST("/models/:model_id/unload", s.modelUnloadHandler)
	admin.POST("/evict", s.emergencyEvictHandler)
}

// securityHeaders mirrors pkg/api/middleware.go's baseline response
// headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// requireAdmin rejects non-admin callers with 403 Forbidden before an
// admin handler runs.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		token := extractForwardedIdentity(c)
		_, isAdmin, err := s.auth.Authenticate(c.Request().Context(), token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		if !isAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin role required")
		}
		return next(c)
	}
}

// Start serves HTTP on addr. It blocks until the server stops
// (ListenAndServe).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on a pre-created listener and blocks like
// Start. cmd/nexusd uses it with the listener it opens itself.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health: a cheap liveness probe, not the
// admin health snapshot (which also reports dependency uptime).
func (s *Server) healthHandler(c *echo.Context) error {
	_, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	if s.pool != nil && !s.pool.Health().IsHealthy {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":           status,
		"maintenance_mode": s.maintenance.Get(),
	})
}
