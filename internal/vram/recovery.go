package vram

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nexuscore/nexus/internal/profile"
)

// ProfileSwitcher is the narrow slice of profile.Registry the recovery
// controller needs; kept as an interface for testability.
type ProfileSwitcher interface {
	Active() *profile.Profile
	Switch(name string) error
}

// RecoveryController implements FallbackHook: on circuit-breaker trip it
// switches from the active ("performance") profile to a conservative
// one, remembering the original; it then polls the previously-failing
// backend and switches back on the first healthy probe.
//
// Grounded on pkg/mcp/health.go's probe loop (ensureClient recovery
// pattern) and original_source/fastapi-service/app/services/
// profile_manager.py's non-reentrant switch lock + remembered-profile
// recovery shape.
type RecoveryController struct {
	profiles           ProfileSwitcher
	conservativeName   string
	probeEndpoint      string
	probeTimeout       time.Duration
	httpClient         *http.Client

	switchMu         sync.Mutex // non-reentrant: guards the whole trip/recover transition
	fallbackActive   bool
	originalProfile  string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecoveryController builds a controller. probeEndpoint is polled
// (GET, expecting 200) to decide when the previously-failing backend
// has recovered.
func NewRecoveryController(profiles ProfileSwitcher, conservativeName, probeEndpoint string, probeTimeout time.Duration) *RecoveryController {
	return &RecoveryController{
		profiles:         profiles,
		conservativeName: conservativeName,
		probeEndpoint:    probeEndpoint,
		probeTimeout:     probeTimeout,
		httpClient:       http.DefaultClient,
	}
}

// OnCircuitBreakerTripped implements FallbackHook.
func (r *RecoveryController) OnCircuitBreakerTripped(ctx context.Context, modelID string, crashCount int) {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	if r.fallbackActive {
		slog.Debug("circuit breaker tripped again while already in fallback, ignoring", "model", modelID)
		return
	}
	current := r.profiles.Active()
	r.originalProfile = current.Name
	if err := r.profiles.Switch(r.conservativeName); err != nil {
		slog.Error("profile fallback switch failed", "model", modelID, "error", err)
		return
	}
	r.fallbackActive = true
	slog.Warn("circuit breaker tripped: switched to conservative profile",
		"model", modelID, "crash_count", crashCount, "from_profile", current.Name)
}

// FallbackActive reports whether the orchestrator is currently running
// in the fallback profile, and which profile it fell back from.
func (r *RecoveryController) FallbackActive() (bool, string) {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()
	return r.fallbackActive, r.originalProfile
}

// Start launches the background recovery-probe loop at the given
// interval. Recovery is active: it polls, it does not wait passively.
func (r *RecoveryController) Start(ctx context.Context, interval time.Duration) {
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx, interval)
}

func (r *RecoveryController) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
}

func (r *RecoveryController) loop(ctx context.Context, interval time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkAndRecover(ctx)
		}
	}
}

// checkAndRecover probes the previously-failing endpoint; on the first
// successful probe after fallback, switches back to the remembered
// profile and clears fallback state. A failed probe leaves fallback
// intact (spec.md §4.2.4).
func (r *RecoveryController) checkAndRecover(ctx context.Context) {
	r.switchMu.Lock()
	active := r.fallbackActive
	remembered := r.originalProfile
	r.switchMu.Unlock()
	if !active {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()
	if err := r.probe(probeCtx); err != nil {
		slog.Debug("profile recovery probe still failing", "error", err)
		return
	}

	r.switchMu.Lock()
	defer r.switchMu.Unlock()
	if !r.fallbackActive {
		return // already recovered by a concurrent tick
	}
	if err := r.profiles.Switch(remembered); err != nil {
		slog.Error("profile recovery switch-back failed", "error", err)
		return
	}
	r.fallbackActive = false
	r.originalProfile = ""
	slog.Info("profile recovered: switched back", "to_profile", remembered)
}

// probe issues the health request, retrying transient failures twice
// with a short exponential backoff before giving up for this tick.
func (r *RecoveryController) probe(ctx context.Context) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.probeEndpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := r.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &probeUnhealthy{status: resp.StatusCode}
		}
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.Retry(operation, b)
}

type probeUnhealthy struct{ status int }

func (e *probeUnhealthy) Error() string {
	return "profile recovery probe unhealthy"
}
