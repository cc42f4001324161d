package api

import (
	"net/http"
	"sync/atomic"

	echo "github.com/labstack/echo/v5"

	"github.com/nexuscore/nexus/internal/profile"
)

// maintenanceMode holds the current maintenance state behind an atomic
// value so the hot request path (queue admission) never takes a lock to
// check it (spec.md §6: "soft keeps processing; hard rejects new
// requests with HTTP 503").
type maintenanceMode struct {
	v atomic.Value // string: "", "soft", "hard"
}

func (m *maintenanceMode) Get() string {
	if v, ok := m.v.Load().(string); ok {
		return v
	}
	return ""
}

func (m *maintenanceMode) Set(mode string) { m.v.Store(mode) }

// RejectsNew reports whether new request admission should be rejected
// outright (hard mode only; soft mode still drains the queue).
func (m *maintenanceMode) RejectsNew() bool { return m.Get() == "hard" }

// queueStatsHandler handles GET /api/v1/admin/queue/stats.
func (s *Server) queueStatsHandler(c *echo.Context) error {
	health := s.pool.Health()
	return c.JSON(http.StatusOK, map[string]any{
		"queue_size":       s.queue.Size(),
		"worker_count":     health.WorkerCount,
		"healthy":          health.IsHealthy,
		"maintenance_mode": s.maintenance.Get(),
	})
}

// queuePurgeHandler handles POST /api/v1/admin/queue/purge: cancels every
// currently queued (not yet in-flight) request. In-flight work is left
// to finish or hit its visibility timeout naturally.
func (s *Server) queuePurgeHandler(c *echo.Context) error {
	var req struct {
		RequestIDs []string `json:"request_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	purged := 0
	for _, idStr := range req.RequestIDs {
		id, err := parseUUID(idStr)
		if err != nil {
			continue
		}
		if ok, _ := s.queue.Cancel(id); ok {
			purged++
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"purged": purged})
}

// setMaintenanceHandler handles POST /api/v1/admin/maintenance.
func (s *Server) setMaintenanceHandler(c *echo.Context) error {
	var req struct {
		Mode string `json:"mode"` // "", "soft", "hard"
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	switch req.Mode {
	case "", "soft", "hard":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be one of '', 'soft', 'hard'")
	}
	s.maintenance.Set(req.Mode)
	return c.JSON(http.StatusOK, map[string]any{"maintenance_mode": req.Mode})
}

// grantTokensHandler handles POST /api/v1/admin/users/:user_id/grant.
func (s *Server) grantTokensHandler(c *echo.Context) error {
	userID := c.Param("user_id")
	var req struct {
		Amount int `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := s.users.GrantBonusTokens(c.Request().Context(), userID, req.Amount); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": userID, "granted": req.Amount})
}

// banUserHandler handles POST /api/v1/admin/users/:user_id/ban.
func (s *Server) banUserHandler(c *echo.Context) error {
	return s.setBan(c, true)
}

// unbanUserHandler handles POST /api/v1/admin/users/:user_id/unban.
func (s *Server) unbanUserHandler(c *echo.Context) error {
	return s.setBan(c, false)
}

func (s *Server) setBan(c *echo.Context, banned bool) error {
	userID := c.Param("user_id")
	if err := s.users.SetBanned(c.Request().Context(), userID, banned); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": userID, "banned": banned})
}

// adminHealthHandler handles GET /api/v1/admin/health: the full
// dependency health snapshot (spec.md §4.7), unlike the bare liveness
// probe at /health.
func (s *Server) adminHealthHandler(c *echo.Context) error {
	services := map[string]any{}
	if s.checker != nil {
		for name, st := range s.checker.Snapshot() {
			services[name] = map[string]any{"healthy": st.Healthy, "uptime_pct": st.UptimePct}
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"queue_size":       s.queue.Size(),
		"maintenance_mode": s.maintenance.Get(),
		"services":         services,
	})
}

// vramStatusHandler handles GET /api/v1/admin/vram.
func (s *Server) vramStatusHandler(c *echo.Context) error {
	status, err := s.orch.GetStatus(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

// modelLoadHandler handles POST /api/v1/admin/models/:model_id/load.
func (s *Server) modelLoadHandler(c *echo.Context) error {
	modelID := c.Param("model_id")
	if err := s.orch.EnsureLoaded(c.Request().Context(), modelID, nil); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"model_id": modelID, "loaded": true})
}

// modelUnloadHandler handles POST /api/v1/admin/models/:model_id/unload.
func (s *Server) modelUnloadHandler(c *echo.Context) error {
	modelID := c.Param("model_id")
	if err := s.orch.Unload(c.Request().Context(), modelID); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"model_id": modelID, "loaded": false})
}

// emergencyEvictHandler handles POST /api/v1/admin/evict.
func (s *Server) emergencyEvictHandler(c *echo.Context) error {
	var req struct {
		BelowPriority string `json:"below_priority"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.BelowPriority == "" {
		req.BelowPriority = string(profile.PriorityLow)
	}
	victim, err := s.orch.EmergencyEvict(c.Request().Context(), profile.Priority(req.BelowPriority))
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"evicted": victim})
}
