package targeting

import "time"

// Config holds all tunable parameters for an acquisition session.
type Config struct {
	// PID gains, shared by both axes (error is angle-scaled so one set
	// of gains serves both).
	Kp float64
	Ki float64
	Kd float64

	// SampleTime is the control period. It also throttles the actuator
	// link so command rate stays decoupled from camera frame rate.
	SampleTime time.Duration

	// MaxStepPerUpdate caps how far one update may move an axis, degrees.
	MaxStepPerUpdate float64

	// DeadbandRadius is the normalized distance under which the dot
	// counts as on target. Used when the TargetSpec leaves it zero.
	DeadbandRadius float64

	// MaxDuration bounds the whole session. Used when the TargetSpec
	// leaves it zero.
	MaxDuration time.Duration

	// PollInterval is how long the loop waits when no new frame has
	// been published since the previous iteration.
	PollInterval time.Duration
}

// DefaultConfig returns the tuning used on the installed doll: slow,
// steady convergence that never out-runs the servos.
func DefaultConfig() Config {
	return Config{
		Kp:               0.01,
		Ki:               0.005,
		Kd:               0.002,
		SampleTime:       500 * time.Millisecond,
		MaxStepPerUpdate: 1.0,
		DeadbandRadius:   0.02,
		MaxDuration:      10 * time.Second,
		PollInterval:     10 * time.Millisecond,
	}
}

// AggressiveConfig converges faster at the cost of more overshoot.
// Useful with a stiff turret and good lighting.
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Kp = 0.02
	cfg.SampleTime = 250 * time.Millisecond
	cfg.MaxStepPerUpdate = 2.0
	return cfg
}

// PrecisionConfig trades speed for a tighter final position.
func PrecisionConfig() Config {
	cfg := DefaultConfig()
	cfg.Kd = 0.004
	cfg.DeadbandRadius = 0.01
	cfg.MaxDuration = 20 * time.Second
	return cfg
}

// normalized applies fallbacks for zero values.
func (c Config) normalized() Config {
	if c.SampleTime <= 0 {
		c.SampleTime = 500 * time.Millisecond
	}
	if c.MaxStepPerUpdate <= 0 {
		c.MaxStepPerUpdate = 1.0
	}
	if c.DeadbandRadius <= 0 {
		c.DeadbandRadius = 0.02
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	return c
}
