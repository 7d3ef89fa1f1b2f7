package turret

import (
	"sync"
	"time"
)

// Mock implements Controller for testing. All methods can be customized
// via function fields; by default the mock behaves like an ideal turret
// with the stock firmware limits.
type Mock struct {
	// LimitsFunc overrides Limits. If nil, returns MockLimits.
	LimitsFunc func() (ServoLimits, error)

	// SetAnglesFunc overrides SetAngles. If nil, stores the angles.
	SetAnglesFunc func(a ServoAngles) error

	// AnglesFunc overrides Angles. If nil, returns the stored angles.
	AnglesFunc func() (ServoAngles, error)

	// SetLaserFunc overrides SetLaser. If nil, stores the flag.
	SetLaserFunc func(on bool) error

	mu      sync.Mutex
	angles  ServoAngles
	laserOn bool
	calls   []MockCall
}

// MockLimits is the default limit set, matching the ESP32 firmware.
var MockLimits = ServoLimits{HMin: 30, HMax: 150, VMin: 0, VMax: 120}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Angles ServoAngles
	On     bool
	Time   time.Time
}

// NewMock creates a mock positioned at the axis midpoints.
func NewMock() *Mock {
	return &Mock{angles: MockLimits.Midpoint()}
}

func (m *Mock) record(c MockCall) {
	c.Time = time.Now()
	m.calls = append(m.calls, c)
}

// Limits implements LimitsProvider.
func (m *Mock) Limits() (ServoLimits, error) {
	m.mu.Lock()
	m.record(MockCall{Method: "Limits"})
	m.mu.Unlock()

	if m.LimitsFunc != nil {
		return m.LimitsFunc()
	}
	return MockLimits, nil
}

// SetAngles implements AngleController.
func (m *Mock) SetAngles(a ServoAngles) error {
	m.mu.Lock()
	m.record(MockCall{Method: "SetAngles", Angles: a})
	m.mu.Unlock()

	if m.SetAnglesFunc != nil {
		return m.SetAnglesFunc(a)
	}
	m.mu.Lock()
	m.angles = a
	m.mu.Unlock()
	return nil
}

// SetNormalized stores the normalized target converted with MockLimits.
func (m *Mock) SetNormalized(x, y float64) error {
	a := ServoAngles{
		H: MockLimits.HMin + clamp(x, 0, 1)*(MockLimits.HMax-MockLimits.HMin),
		V: MockLimits.VMin + clamp(y, 0, 1)*(MockLimits.VMax-MockLimits.VMin),
	}
	m.mu.Lock()
	m.record(MockCall{Method: "SetNormalized", Angles: a})
	m.angles = a
	m.mu.Unlock()
	return nil
}

// Angles implements AngleController.
func (m *Mock) Angles() (ServoAngles, error) {
	m.mu.Lock()
	m.record(MockCall{Method: "Angles"})
	angles := m.angles
	m.mu.Unlock()

	if m.AnglesFunc != nil {
		return m.AnglesFunc()
	}
	return angles, nil
}

// SetLaser implements LaserSwitch.
func (m *Mock) SetLaser(on bool) error {
	m.mu.Lock()
	m.record(MockCall{Method: "SetLaser", On: on})
	m.mu.Unlock()

	if m.SetLaserFunc != nil {
		return m.SetLaserFunc(on)
	}
	m.mu.Lock()
	m.laserOn = on
	m.mu.Unlock()
	return nil
}

// StartSelfTest implements Diagnostics.
func (m *Mock) StartSelfTest() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(MockCall{Method: "StartSelfTest"})
	return nil
}

// StopSelfTest implements Diagnostics.
func (m *Mock) StopSelfTest() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(MockCall{Method: "StopSelfTest"})
	return nil
}

// RotateHead implements HeadRotator.
func (m *Mock) RotateHead(facing bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(MockCall{Method: "RotateHead", On: facing})
	return nil
}

// Close implements Controller.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(MockCall{Method: "Close"})
	return nil
}

// LaserOn reports the last laser state set on the mock.
func (m *Mock) LaserOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.laserOn
}

// CurrentAngles returns the last angles set on the mock.
func (m *Mock) CurrentAngles() ServoAngles {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.angles
}

// Calls returns a copy of all recorded invocations.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of invocations of a given method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}
