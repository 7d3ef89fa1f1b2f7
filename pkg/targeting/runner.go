package targeting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fablab-bergamo/squid-game-doll/pkg/vision"
)

// ErrSessionActive is returned when a session is requested while
// another one is still running.
var ErrSessionActive = errors.New("targeting: session already running")

// Runner executes acquisition sessions as cancellable background tasks,
// one at a time, decoupled from whatever loop produces frames.
type Runner struct {
	actuator Actuator
	frames   vision.Source
	detector *vision.Detector
	cfg      Config

	// OnResult, if set, receives every terminal result. Used to feed
	// the dashboard and the session history store.
	OnResult func(SessionResult)

	mu     sync.Mutex
	active *Session
	cancel context.CancelFunc
}

// NewRunner creates a runner over shared collaborators. The detector
// is reused across sessions so its threshold hints carry over.
func NewRunner(actuator Actuator, frames vision.Source, detector *vision.Detector, cfg Config) *Runner {
	return &Runner{
		actuator: actuator,
		frames:   frames,
		detector: detector,
		cfg:      cfg,
	}
}

// Start launches a session for spec. It returns a channel that yields
// the single terminal result, or ErrSessionActive if a session is
// already running. The frame producer is never blocked by the session.
func (r *Runner) Start(ctx context.Context, spec TargetSpec) (<-chan SessionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrSessionActive
	}

	session := NewSession(spec, r.cfg, r.actuator, r.frames, r.detector)
	sessionCtx, cancel := context.WithCancel(ctx)
	r.active = session
	r.cancel = cancel

	done := make(chan SessionResult, 1)
	go func() {
		defer cancel()
		res := session.Run(sessionCtx)

		r.mu.Lock()
		r.active = nil
		r.cancel = nil
		r.mu.Unlock()

		if r.OnResult != nil {
			r.OnResult(res)
		}
		done <- res
	}()

	return done, nil
}

// Abort cancels the running session, if any. The session observes the
// cancellation on its next loop iteration.
func (r *Runner) Abort() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Shutdown aborts the active session and waits for it to reach a
// terminal state, so the laser-off command goes out before the process
// exits. Returns false if the session is still running after timeout.
func (r *Runner) Shutdown(timeout time.Duration) bool {
	r.Abort()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !r.Busy() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return !r.Busy()
}

// Busy reports whether a session is currently running.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Snapshot returns the active session's state, or a zero Snapshot with
// ok=false when idle.
func (r *Runner) Snapshot() (Snapshot, bool) {
	r.mu.Lock()
	session := r.active
	r.mu.Unlock()
	if session == nil {
		return Snapshot{}, false
	}
	return session.Snapshot(), true
}
