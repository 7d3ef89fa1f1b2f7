package turret

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/fablab-bergamo/squid-game-doll/internal/log"
)

// Simulator is a TCP server speaking the turret wire grammar. It stands
// in for the ESP32 firmware during development and in client tests:
// angles move instantly, the laser is a boolean, and the diagnostic
// sequence is a no-op flag.
type Simulator struct {
	ln net.Listener

	mu         sync.Mutex
	conns      map[net.Conn]struct{}
	limits     ServoLimits
	angles     ServoAngles
	laserOn    bool
	testActive bool
	headFacing bool
	setCount   int
	dropNext   int
}

// NewSimulator creates a simulator with the given limits, positioned at
// the axis midpoints.
func NewSimulator(limits ServoLimits) *Simulator {
	return &Simulator{
		conns:  make(map[net.Conn]struct{}),
		limits: limits,
		angles: limits.Midpoint(),
	}
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves
// connections in the background.
func (s *Simulator) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("simulator listen: %w", err)
	}
	s.ln = ln
	go s.serve()
	return nil
}

// Addr returns the listening address.
func (s *Simulator) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops the listener and drops active connections.
func (s *Simulator) Close() error {
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()
	return err
}

// LaserOn reports the simulated laser state.
func (s *Simulator) LaserOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.laserOn
}

// CurrentAngles returns the simulated servo position.
func (s *Simulator) CurrentAngles() ServoAngles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angles
}

// SetAnglesCount returns how many angle commands were accepted.
func (s *Simulator) SetAnglesCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCount
}

// DropNext makes the simulator close the connection without replying to
// the next n requests, to exercise the client's reconnect path.
func (s *Simulator) DropNext(n int) {
	s.mu.Lock()
	s.dropNext = n
	s.mu.Unlock()
}

func (s *Simulator) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *Simulator) handle(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		req := strings.TrimSpace(string(buf[:n]))
		if req == "" {
			continue
		}

		s.mu.Lock()
		drop := s.dropNext > 0
		if drop {
			s.dropNext--
		}
		s.mu.Unlock()
		if drop {
			log.Debug("simulator: dropping request", "req", req)
			return
		}

		reply, quit := s.dispatch(req)
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
		if quit {
			return
		}
	}
}

// dispatch applies one request and returns the reply. Requests outside
// the grammar get "0".
func (s *Simulator) dispatch(req string) (reply string, quit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case req == cmdLaserOn:
		s.laserOn = true
		return "1", false
	case req == cmdLaserOff:
		s.laserOn = false
		return "1", false
	case req == cmdAngles:
		return encodeSetAngles(s.angles), false
	case req == cmdLimits:
		return fmt.Sprintf("((%.2f,%.2f),(%.2f,%.2f))",
			s.limits.HMin, s.limits.HMax, s.limits.VMin, s.limits.VMax), false
	case req == cmdTest:
		s.testActive = true
		return "1", false
	case req == cmdStop:
		s.testActive = false
		return "1", false
	case req == cmdHeadMin:
		s.headFacing = false
		return "1", false
	case req == cmdHeadMax:
		s.headFacing = true
		return "1", false
	case req == cmdQuit:
		return "1", true
	case strings.HasPrefix(req, "norm("):
		x, y, err := parsePair(req[4:])
		if err != nil {
			return "0", false
		}
		s.angles = ServoAngles{
			H: s.limits.HMin + clamp(x, 0, 1)*(s.limits.HMax-s.limits.HMin),
			V: s.limits.VMin + clamp(y, 0, 1)*(s.limits.VMax-s.limits.VMin),
		}
		s.setCount++
		return "1", false
	case strings.HasPrefix(req, "("):
		h, v, err := parsePair(req)
		if err != nil {
			return "0", false
		}
		s.angles = s.limits.Clamp(ServoAngles{H: h, V: v})
		s.setCount++
		return "1", false
	default:
		return "0", false
	}
}

// parsePair parses "(a,b)" into two floats.
func parsePair(s string) (float64, float64, error) {
	fields, err := parseTuple(s)
	if err != nil || len(fields) != 2 {
		return 0, 0, fmt.Errorf("bad pair %q", s)
	}
	a, err1 := strconv.ParseFloat(fields[0], 64)
	b, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("bad pair %q", s)
	}
	return a, b, nil
}
