package targeting

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fablab-bergamo/squid-game-doll/internal/log"
	"github.com/fablab-bergamo/squid-game-doll/pkg/turret"
	"github.com/fablab-bergamo/squid-game-doll/pkg/vision"
)

// Status is the lifecycle state of an acquisition session.
type Status int

const (
	// StatusIdle means the session has not started yet.
	StatusIdle Status = iota
	// StatusEnabling means limits are being queried and the laser armed.
	StatusEnabling
	// StatusSearching means the loop is waiting for a dot detection.
	StatusSearching
	// StatusCorrecting means a detection is being turned into a command.
	StatusCorrecting
	// StatusConverged means the dot reached the deadband. Terminal.
	StatusConverged
	// StatusTimedOut means MaxDuration elapsed first. Terminal.
	StatusTimedOut
	// StatusAborted means the session was cancelled. Terminal.
	StatusAborted
	// StatusUnreachable means the turret link failed. Terminal.
	StatusUnreachable
)

// String returns the status name for logging and the dashboard.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusEnabling:
		return "enabling"
	case StatusSearching:
		return "searching"
	case StatusCorrecting:
		return "correcting"
	case StatusConverged:
		return "converged"
	case StatusTimedOut:
		return "timed_out"
	case StatusAborted:
		return "aborted"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has finished.
func (s Status) Terminal() bool {
	switch s {
	case StatusConverged, StatusTimedOut, StatusAborted, StatusUnreachable:
		return true
	}
	return false
}

// TargetSpec describes one targeting request: where to aim, how close
// counts as a hit, and how long to keep trying. The elimination flow
// derives Point from the subject's bounding box upper third.
type TargetSpec struct {
	Point          NormalizedPoint
	DeadbandRadius float64
	MaxDuration    time.Duration
}

// SessionResult is the only output the session exposes to callers.
type SessionResult struct {
	ID         uuid.UUID
	Status     Status
	FinalError float64 // normalized distance dot-to-target, -1 if never seen
	Detections int
	Writes     int
	Elapsed    time.Duration
}

// Hit reports whether the laser reached the target.
func (r SessionResult) Hit() bool { return r.Status == StatusConverged }

// Actuator is the subset of turret control a session needs.
type Actuator interface {
	Limits() (turret.ServoLimits, error)
	SetAngles(turret.ServoAngles) error
	SetLaser(on bool) error
}

// Snapshot is a point-in-time view of a session for the dashboard.
type Snapshot struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Target     NormalizedPoint `json:"target"`
	Dot        NormalizedPoint `json:"dot"`
	DotSeen    bool            `json:"dot_seen"`
	Error      float64         `json:"error"`
	Failures   int             `json:"failures"`
	Detections int             `json:"detections"`
	Writes     int             `json:"writes"`
	ElapsedMs  int64           `json:"elapsed_ms"`
}

// Session is one bounded-time attempt to put the laser dot on the
// target point. It exclusively owns both PID axes and the laser-enable
// flag between Run and its terminal status.
type Session struct {
	id       uuid.UUID
	spec     TargetSpec
	cfg      Config
	actuator Actuator
	frames   vision.Source
	detector *vision.Detector

	pidH, pidV *AxisPID
	norm       Normalizer

	mu         sync.Mutex
	status     Status
	startTime  time.Time
	lastSeq    uint64
	failures   int
	detections int
	writes     int
	dot        NormalizedPoint
	dotSeen    bool
	lastErr    float64
}

// NewSession prepares a session; nothing happens until Run.
func NewSession(spec TargetSpec, cfg Config, actuator Actuator, frames vision.Source, detector *vision.Detector) *Session {
	cfg = cfg.normalized()
	if spec.DeadbandRadius <= 0 {
		spec.DeadbandRadius = cfg.DeadbandRadius
	}
	if spec.MaxDuration <= 0 {
		spec.MaxDuration = cfg.MaxDuration
	}
	spec.Point = spec.Point.Clamped()

	return &Session{
		id:       uuid.New(),
		spec:     spec,
		cfg:      cfg,
		actuator: actuator,
		frames:   frames,
		detector: detector,
		status:   StatusIdle,
		lastErr:  -1,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a copy of the observable session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var elapsed time.Duration
	if !s.startTime.IsZero() {
		elapsed = time.Since(s.startTime)
	}
	return Snapshot{
		ID:         s.id.String(),
		Status:     s.status.String(),
		Target:     s.spec.Point,
		Dot:        s.dot,
		DotSeen:    s.dotSeen,
		Error:      s.lastErr,
		Failures:   s.failures,
		Detections: s.detections,
		Writes:     s.writes,
		ElapsedMs:  elapsed.Milliseconds(),
	}
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	log.Debug("session state", "id", s.id, "state", st.String())
}

// Run executes the session to a terminal state and returns the result.
// It blocks; the Runner wraps it in a goroutine. Cancellation and the
// deadline are checked cooperatively once per loop iteration, and every
// exit path disables the laser.
func (s *Session) Run(ctx context.Context) SessionResult {
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()

	s.setStatus(StatusEnabling)

	limits, err := s.actuator.Limits()
	if err != nil || !limits.Valid() {
		// Limits are mandatory; without them no angle can be trusted.
		// The laser was never enabled, so there is nothing to switch off.
		log.Error("session: limits unavailable", "id", s.id, "err", err)
		return s.finish(StatusUnreachable)
	}

	s.norm = NewNormalizer(limits)
	s.pidH = NewAxisPID(s.cfg.Kp, s.cfg.Ki, s.cfg.Kd,
		limits.HMin, limits.HMax, s.cfg.MaxStepPerUpdate, s.cfg.SampleTime)
	s.pidV = NewAxisPID(s.cfg.Kp, s.cfg.Ki, s.cfg.Kd,
		limits.VMin, limits.VMax, s.cfg.MaxStepPerUpdate, s.cfg.SampleTime)

	if err := s.actuator.SetLaser(true); err != nil {
		log.Error("session: laser enable failed", "id", s.id, "err", err)
		return s.finishWithLaserOff(StatusUnreachable)
	}

	s.setStatus(StatusSearching)
	log.Info("session started", "id", s.id,
		"target_x", s.spec.Point.X, "target_y", s.spec.Point.Y,
		"deadband", s.spec.DeadbandRadius, "max_duration", s.spec.MaxDuration)

	deadline := s.startTime.Add(s.spec.MaxDuration)

	for {
		if ctx.Err() != nil {
			return s.finishWithLaserOff(StatusAborted)
		}
		if time.Now().After(deadline) {
			return s.finishWithLaserOff(StatusTimedOut)
		}

		frame := s.frames.Latest()
		if frame == nil || frame.Seq == s.lastSeq {
			// No new frame since the previous iteration: do not burn a
			// detection pass on stale pixels, just wait for the feed.
			if !s.sleep(ctx, s.cfg.PollInterval) {
				return s.finishWithLaserOff(StatusAborted)
			}
			continue
		}
		s.lastSeq = frame.Seq

		res := s.detector.Search(frame)
		if !res.Found() {
			// Transient per-frame failure: tolerated as long as time
			// remains, only the counter records it.
			s.mu.Lock()
			s.failures++
			s.mu.Unlock()
			continue
		}

		dot := s.norm.FromPixel(res.X, res.Y, frame.Width, frame.Height)
		dist := dot.DistanceTo(s.spec.Point)

		s.mu.Lock()
		s.failures = 0
		s.detections++
		s.dot = dot
		s.dotSeen = true
		s.lastErr = dist
		s.mu.Unlock()

		s.setStatus(StatusCorrecting)

		// Deadband first: once close enough no output is issued at all,
		// otherwise the loop would oscillate around the setpoint.
		if dist < s.spec.DeadbandRadius {
			log.Info("session converged", "id", s.id, "error", dist)
			return s.finishWithLaserOff(StatusConverged)
		}

		angles := turret.ServoAngles{
			H: s.pidH.Update((s.spec.Point.X - dot.X) * s.pidH.Range()),
			V: s.pidV.Update((s.spec.Point.Y - dot.Y) * s.pidV.Range()),
		}
		if err := s.actuator.SetAngles(angles); err != nil {
			log.Error("session: angle command failed", "id", s.id, "err", err)
			return s.finishWithLaserOff(StatusUnreachable)
		}
		s.mu.Lock()
		s.writes++
		s.mu.Unlock()

		s.setStatus(StatusSearching)
	}
}

// sleep waits the poll interval, returning false if ctx was cancelled.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// finishWithLaserOff disables the laser then finishes. The off command
// is best effort: on an unreachable link it fails fast and the physical
// controller's own watchdog is the backstop.
func (s *Session) finishWithLaserOff(st Status) SessionResult {
	if err := s.actuator.SetLaser(false); err != nil {
		log.Warn("session: laser disable failed", "id", s.id, "err", err)
	}
	return s.finish(st)
}

func (s *Session) finish(st Status) SessionResult {
	s.setStatus(st)

	s.mu.Lock()
	defer s.mu.Unlock()
	res := SessionResult{
		ID:         s.id,
		Status:     st,
		FinalError: s.lastErr,
		Detections: s.detections,
		Writes:     s.writes,
		Elapsed:    time.Since(s.startTime),
	}
	log.Info("session finished", "id", s.id, "status", st.String(),
		"error", res.FinalError, "writes", res.Writes, "elapsed", res.Elapsed)
	return res
}
