package hub

import (
	"context"
	"sync"
	"time"
)

// animationCadence is the dot-cycling tick interval (spec.md §4.6:
// "~1.5 s cadence").
const animationCadence = 1500 * time.Millisecond

// animator runs per-channel status-dot animation tasks: cycling
// "<base text>.", "..", "..." and back. Cancelled when real content
// begins streaming (spec.md §4.6).
type animator struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

func newAnimator() *animator {
	return &animator{tasks: make(map[string]context.CancelFunc)}
}

// Start launches a ticking animation for channelID, invoking render on
// each tick with a dot count cycling 1→2→3. Replaces any existing
// animation for the same channel.
func (a *animator) Start(ctx context.Context, channelID, baseText string, render func(frame string)) {
	a.Stop(channelID)

	animCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.tasks[channelID] = cancel
	a.mu.Unlock()

	go func() {
		ticker := time.NewTicker(animationCadence)
		defer ticker.Stop()
		dots := 1
		for {
			select {
			case <-animCtx.Done():
				return
			case <-ticker.C:
				frame := renderFrame(baseText, dots)
				render(frame)
				dots = dots%3 + 1
			}
		}
	}()
}

// renderFrame matches spec.md §4.6's status message pattern:
// "*<base text>...*\n\n", with the dot count cycling 1→2→3.
func renderFrame(baseText string, dots int) string {
	out := "*" + baseText
	for i := 0; i < dots; i++ {
		out += "."
	}
	return out + "*\n\n"
}

// Stop cancels channelID's animation task, if any (e.g. content began
// streaming).
func (a *animator) Stop(channelID string) {
	a.mu.Lock()
	cancel, ok := a.tasks[channelID]
	delete(a.tasks, channelID)
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

