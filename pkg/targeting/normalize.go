// Package targeting drives the pan-tilt laser toward a target point
// using closed-loop visual feedback: the dot detector supplies the
// laser's position in the frame, two PID axes compute corrected angles,
// and the acquisition session sequences the whole attempt.
package targeting

import (
	"math"

	"github.com/fablab-bergamo/squid-game-doll/pkg/turret"
)

// NormalizedPoint is a position expressed as fractions of the frame
// size, in [0,1] on both axes, independent of camera resolution.
type NormalizedPoint struct {
	X, Y float64
}

// Clamped returns the point restricted to the unit square.
func (p NormalizedPoint) Clamped() NormalizedPoint {
	return NormalizedPoint{
		X: clamp(p.X, 0, 1),
		Y: clamp(p.Y, 0, 1),
	}
}

// DistanceTo returns the Euclidean distance to q.
func (p NormalizedPoint) DistanceTo(q NormalizedPoint) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Normalizer maps pixel coordinates to normalized coordinates and
// normalized coordinates to servo angles, using the limits cached for
// the session. Normalization always clamps to [0,1] first, so an
// out-of-frame detection can never produce an out-of-range angle.
type Normalizer struct {
	limits turret.ServoLimits
}

// NewNormalizer creates a normalizer over the given servo limits.
func NewNormalizer(limits turret.ServoLimits) Normalizer {
	return Normalizer{limits: limits}
}

// FromPixel converts a pixel position to a clamped normalized point.
func (n Normalizer) FromPixel(xPx, yPx float64, width, height int) NormalizedPoint {
	if width <= 0 || height <= 0 {
		return NormalizedPoint{}
	}
	p := NormalizedPoint{
		X: xPx / float64(width),
		Y: yPx / float64(height),
	}
	return p.Clamped()
}

// ToAngles maps a normalized point onto the servo ranges.
func (n Normalizer) ToAngles(p NormalizedPoint) turret.ServoAngles {
	p = p.Clamped()
	return turret.ServoAngles{
		H: n.limits.HMin + p.X*(n.limits.HMax-n.limits.HMin),
		V: n.limits.VMin + p.Y*(n.limits.VMax-n.limits.VMin),
	}
}

// FromAngles is the exact inverse of ToAngles, used to report the
// current position in normalized terms.
func (n Normalizer) FromAngles(a turret.ServoAngles) NormalizedPoint {
	p := NormalizedPoint{}
	if hRange := n.limits.HMax - n.limits.HMin; hRange > 0 {
		p.X = (a.H - n.limits.HMin) / hRange
	}
	if vRange := n.limits.VMax - n.limits.VMin; vRange > 0 {
		p.Y = (a.V - n.limits.VMin) / vRange
	}
	return p.Clamped()
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
