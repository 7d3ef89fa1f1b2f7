package targeting

import "time"

// PIDState is the mutable state of one axis controller. It is owned
// exclusively by its AxisPID, which belongs to exactly one session;
// Reset is called at session start so attempts never interfere.
type PIDState struct {
	Integral   float64
	PrevErr    float64
	PrevOutput float64
	SampleTime time.Duration

	primed bool // false until the first update, suppresses the D kick
}

// AxisPID is the closed-loop controller for a single servo axis. It
// operates on angle-scaled error (normalized error times the axis range)
// so the gain constants stay independent of which axis has the larger
// mechanical range. Output is clamped to the axis limits and then rate
// limited: one update can move the output at most MaxStep degrees, which
// keeps a single noisy detection from commanding a violent swing.
type AxisPID struct {
	Kp, Ki, Kd float64
	Min, Max   float64
	MaxStep    float64

	state PIDState
}

// NewAxisPID creates a controller for an axis spanning [min, max]
// degrees. The initial output is the axis midpoint.
func NewAxisPID(kp, ki, kd float64, min, max, maxStep float64, sampleTime time.Duration) *AxisPID {
	c := &AxisPID{
		Kp:      kp,
		Ki:      ki,
		Kd:      kd,
		Min:     min,
		Max:     max,
		MaxStep: maxStep,
	}
	c.state.SampleTime = sampleTime
	c.Reset()
	return c
}

// Reset clears the accumulated state and recenters the output. The
// integral is seeded with the midpoint so a zero error holds position
// instead of decaying toward Min.
func (c *AxisPID) Reset() {
	mid := (c.Min + c.Max) / 2
	c.state.Integral = mid
	c.state.PrevErr = 0
	c.state.PrevOutput = mid
	c.state.primed = false
}

// Output returns the last commanded position.
func (c *AxisPID) Output() float64 {
	return c.state.PrevOutput
}

// Range returns the mechanical span of the axis in degrees.
func (c *AxisPID) Range() float64 {
	return c.Max - c.Min
}

// Update computes the next output for the given angle-scaled error.
func (c *AxisPID) Update(err float64) float64 {
	dt := c.state.SampleTime.Seconds()
	if dt <= 0 {
		dt = 1
	}

	c.state.Integral += c.Ki * err * dt
	// Anti-windup: the integral alone can never exceed the output range.
	c.state.Integral = clamp(c.state.Integral, c.Min, c.Max)

	var deriv float64
	if c.state.primed {
		deriv = c.Kd * (err - c.state.PrevErr) / dt
	}

	out := c.Kp*err + c.state.Integral + deriv
	out = clamp(out, c.Min, c.Max)

	// Rate limit against the previous output.
	if diff := out - c.state.PrevOutput; diff > c.MaxStep {
		out = c.state.PrevOutput + c.MaxStep
	} else if diff < -c.MaxStep {
		out = c.state.PrevOutput - c.MaxStep
	}

	c.state.PrevErr = err
	c.state.PrevOutput = out
	c.state.primed = true
	return out
}
