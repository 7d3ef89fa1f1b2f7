// Package turret provides the client for the remote pan-tilt laser
// controller (an ESP32 board driving two servos and the laser diode).
//
// Interfaces are kept small so consumers depend only on the operations
// they actually use; the control loop needs angles and the laser switch,
// the game loop only the head rotation.
package turret

import "errors"

// Sentinel errors for link failures.
var (
	// ErrUnreachable means the controller could not be contacted even
	// after the bounded reconnect attempt. Fatal to the current session.
	ErrUnreachable = errors.New("turret: unreachable")

	// ErrTimeout means a single reply deadline expired.
	ErrTimeout = errors.New("turret: reply timeout")

	// ErrProtocol means the controller answered outside the wire grammar.
	ErrProtocol = errors.New("turret: protocol violation")

	// ErrRejected means the controller refused the command ("0" ack).
	ErrRejected = errors.New("turret: command rejected")
)

// ServoLimits are the physical angle ranges of both axes, in degrees.
// They are queried from the controller once per session and cached.
type ServoLimits struct {
	HMin, HMax float64
	VMin, VMax float64
}

// Valid reports whether each axis has a non-empty range.
func (l ServoLimits) Valid() bool {
	return l.HMax > l.HMin && l.VMax > l.VMin
}

// Midpoint returns the center position of both axes.
func (l ServoLimits) Midpoint() ServoAngles {
	return ServoAngles{
		H: (l.HMin + l.HMax) / 2,
		V: (l.VMin + l.VMax) / 2,
	}
}

// Clamp restricts angles to the limits.
func (l ServoLimits) Clamp(a ServoAngles) ServoAngles {
	return ServoAngles{
		H: clamp(a.H, l.HMin, l.HMax),
		V: clamp(a.V, l.VMin, l.VMax),
	}
}

// ServoAngles is an absolute horizontal/vertical position in degrees.
type ServoAngles struct {
	H, V float64
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// LimitsProvider queries the axis limits.
type LimitsProvider interface {
	Limits() (ServoLimits, error)
}

// AngleController moves the turret and reads back its position.
type AngleController interface {
	SetAngles(a ServoAngles) error
	Angles() (ServoAngles, error)
}

// LaserSwitch controls laser emission.
type LaserSwitch interface {
	SetLaser(on bool) error
}

// Diagnostics runs the controller's built-in motion sequence.
type Diagnostics interface {
	StartSelfTest() error
	StopSelfTest() error
}

// HeadRotator turns the doll's head, used by the red-light/green-light
// game phase rather than the targeting loop.
type HeadRotator interface {
	RotateHead(facing bool) error
}

// Controller is the composite interface for full turret control.
type Controller interface {
	LimitsProvider
	AngleController
	LaserSwitch
	Diagnostics
	HeadRotator
	Close() error
}

// Ensure implementations satisfy Controller.
var (
	_ Controller = (*Link)(nil)
	_ Controller = (*Mock)(nil)
)
