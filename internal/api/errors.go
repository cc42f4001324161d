package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nexuscore/nexus/internal/errs"
)

// httpErrorHandler maps the closed errs.Kind set to HTTP status codes
// (spec.md §7: "OverBudget, QueueFull, MaintenanceActive,
// TokenBudgetExceeded are surfaced to the caller as user-visible
// failures with distinct messages"). Falls through to echo's default
// handler for *echo.HTTPError and anything unrecognized.
func httpErrorHandler(err error, c *echo.Context) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = c.JSON(httpErr.Code, map[string]any{"error": httpErr.Message})
		return
	}

	var oe *errs.OrchestratorError
	if errors.As(err, &oe) {
		_ = c.JSON(statusForKind(oe.Kind), map[string]any{"error": oe.Kind, "message": oe.Message})
		return
	}

	switch {
	case errors.Is(err, errs.ErrQueueFull):
		_ = c.JSON(http.StatusServiceUnavailable, map[string]any{"error": errs.KindQueueFull})
	case errors.Is(err, errs.ErrMaintenanceActive):
		_ = c.JSON(http.StatusServiceUnavailable, map[string]any{"error": errs.KindMaintenanceActive})
	case errors.Is(err, errs.ErrTokenBudgetExceeded):
		_ = c.JSON(http.StatusPaymentRequired, map[string]any{"error": errs.KindTokenBudgetExceeded})
	case errors.Is(err, errs.ErrCancelled):
		_ = c.JSON(http.StatusConflict, map[string]any{"error": errs.KindCancelled})
	case errors.Is(err, errs.ErrForbidden):
		_ = c.JSON(http.StatusForbidden, map[string]any{"error": errs.KindForbidden})
	default:
		_ = c.JSON(http.StatusInternalServerError, map[string]any{"error": "internal_error"})
	}
}

func statusForKind(k errs.Kind) int {
	switch k {
	case errs.KindQueueFull, errs.KindMaintenanceActive, errs.KindBackendUnavailable, errs.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case errs.KindOverBudget:
		return http.StatusConflict
	case errs.KindTokenBudgetExceeded:
		return http.StatusPaymentRequired
	case errs.KindInvalidToken, errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindUnknownModel, errs.KindInvalidProfile:
		return http.StatusBadRequest
	case errs.KindAskUserTimeout, errs.KindVisibilityTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
