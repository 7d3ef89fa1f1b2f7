package turret

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fablab-bergamo/squid-game-doll/internal/log"
)

// LinkConfig holds connection settings for the turret controller.
type LinkConfig struct {
	// Addr is the controller's host:port.
	Addr string

	// ConnectTimeout bounds each dial attempt.
	ConnectTimeout time.Duration

	// ReplyTimeout bounds each request/response exchange.
	ReplyTimeout time.Duration

	// MinInterval is the minimum spacing between commands. The control
	// loop sets this to the PID sample time so the command rate stays
	// bounded regardless of how fast frames arrive.
	MinInterval time.Duration
}

// DefaultLinkConfig returns settings matching the stock ESP32 firmware.
func DefaultLinkConfig(addr string) LinkConfig {
	return LinkConfig{
		Addr:           addr,
		ConnectTimeout: 2 * time.Second,
		ReplyTimeout:   time.Second,
		MinInterval:    500 * time.Millisecond,
	}
}

// Link is a synchronous request/response client over one persistent TCP
// connection. A failed exchange triggers a single reconnect-and-resend;
// if that also fails the link is marked unreachable and every later call
// returns ErrUnreachable without touching the network. The failure is
// fatal to the session using the link, never to the process.
type Link struct {
	cfg LinkConfig

	mu          sync.Mutex
	conn        net.Conn
	lastCommand time.Time
	unreachable bool
}

// NewLink creates a link. The connection is established lazily on the
// first command so a powered-off turret surfaces as a command error.
func NewLink(cfg LinkConfig) *Link {
	return &Link{cfg: cfg}
}

// Limits queries the axis limits.
func (l *Link) Limits() (ServoLimits, error) {
	reply, err := l.roundTrip(cmdLimits)
	if err != nil {
		return ServoLimits{}, err
	}
	return parseLimits(reply)
}

// SetAngles moves both servos to an absolute position.
func (l *Link) SetAngles(a ServoAngles) error {
	reply, err := l.roundTrip(encodeSetAngles(a))
	if err != nil {
		return err
	}
	return parseAck(reply)
}

// SetNormalized aims by normalized coordinate; the controller converts
// using its own cached limits.
func (l *Link) SetNormalized(x, y float64) error {
	reply, err := l.roundTrip(encodeSetNormalized(x, y))
	if err != nil {
		return err
	}
	return parseAck(reply)
}

// Angles reads back the current servo position.
func (l *Link) Angles() (ServoAngles, error) {
	reply, err := l.roundTrip(cmdAngles)
	if err != nil {
		return ServoAngles{}, err
	}
	return parseAngles(reply)
}

// SetLaser switches laser emission.
func (l *Link) SetLaser(on bool) error {
	cmd := cmdLaserOff
	if on {
		cmd = cmdLaserOn
	}
	reply, err := l.roundTrip(cmd)
	if err != nil {
		return err
	}
	return parseAck(reply)
}

// StartSelfTest starts the diagnostic motion sequence.
func (l *Link) StartSelfTest() error {
	reply, err := l.roundTrip(cmdTest)
	if err != nil {
		return err
	}
	return parseAck(reply)
}

// StopSelfTest stops the diagnostic motion sequence.
func (l *Link) StopSelfTest() error {
	reply, err := l.roundTrip(cmdStop)
	if err != nil {
		return err
	}
	return parseAck(reply)
}

// RotateHead turns the doll's head toward (true) or away from (false)
// the playing field.
func (l *Link) RotateHead(facing bool) error {
	cmd := cmdHeadMin
	if facing {
		cmd = cmdHeadMax
	}
	reply, err := l.roundTrip(cmd)
	if err != nil {
		return err
	}
	return parseAck(reply)
}

// Reachable reports whether the link is still usable.
func (l *Link) Reachable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.unreachable
}

// Close sends quit and tears down the connection. Safe to call on a
// dead link.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	// Best effort; the controller closes its side on quit.
	l.conn.SetDeadline(time.Now().Add(l.cfg.ReplyTimeout))
	l.conn.Write([]byte(cmdQuit))
	err := l.conn.Close()
	l.conn = nil
	return err
}

// roundTrip sends one command and returns the raw reply, enforcing the
// inter-command interval and the retry-once policy.
func (l *Link) roundTrip(cmd string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unreachable {
		return "", ErrUnreachable
	}

	if wait := l.cfg.MinInterval - time.Since(l.lastCommand); wait > 0 {
		time.Sleep(wait)
	}
	l.lastCommand = time.Now()

	reply, err := l.exchange(cmd)
	if err == nil {
		return reply, nil
	}

	// One bounded reconnect, then give up for this session.
	log.Warn("turret exchange failed, reconnecting once", "cmd", cmd, "err", err)
	l.dropConn()

	reply, err = l.exchange(cmd)
	if err != nil {
		l.dropConn()
		l.unreachable = true
		log.Error("turret unreachable", "addr", l.cfg.Addr, "err", err)
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return reply, nil
}

// exchange performs a single write/read on the current connection,
// dialing first if needed. Caller holds the mutex.
func (l *Link) exchange(cmd string) (string, error) {
	if l.conn == nil {
		conn, err := net.DialTimeout("tcp", l.cfg.Addr, l.cfg.ConnectTimeout)
		if err != nil {
			return "", fmt.Errorf("dial %s: %w", l.cfg.Addr, err)
		}
		l.conn = conn
	}

	deadline := time.Now().Add(l.cfg.ReplyTimeout)
	if err := l.conn.SetDeadline(deadline); err != nil {
		return "", err
	}

	if _, err := l.conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}

	buf := make([]byte, 128)
	n, err := l.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("read: %w", err)
	}
	return string(buf[:n]), nil
}

func (l *Link) dropConn() {
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}
