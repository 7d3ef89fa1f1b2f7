// Package vision provides the camera frame model and the laser dot
// detector used by the targeting loop.
package vision

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame is an immutable snapshot from the capture collaborator.
// Pixels holds 8-bit BGR data, row-major, Width*Height*3 bytes.
type Frame struct {
	Width     int
	Height    int
	Pixels    []byte
	Timestamp time.Time

	// Seq is assigned on publication and strictly increases.
	// Consumers compare it to skip frames they have already processed.
	Seq uint64
}

// Valid reports whether the frame dimensions match its pixel buffer.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 &&
		len(f.Pixels) == f.Width*f.Height*3
}

// Mat converts the frame to a BGR gocv.Mat. The caller owns the Mat
// and must Close it.
func (f *Frame) Mat() (gocv.Mat, error) {
	if !f.Valid() {
		return gocv.Mat{}, fmt.Errorf("invalid frame %dx%d with %d bytes", f.Width, f.Height, len(f.Pixels))
	}
	return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pixels)
}

// Source supplies the most recent frame, or nil if none has arrived yet.
type Source interface {
	Latest() *Frame
}

// Latest is a single-slot frame holder with latest-value semantics.
// Publishers overwrite, consumers read the newest frame; nothing queues.
type Latest struct {
	mu    sync.RWMutex
	frame *Frame
	seq   uint64
}

// NewLatest creates an empty holder.
func NewLatest() *Latest {
	return &Latest{}
}

// Publish stores f as the newest frame and stamps its sequence number.
func (l *Latest) Publish(f *Frame) {
	if f == nil {
		return
	}
	l.mu.Lock()
	l.seq++
	f.Seq = l.seq
	l.frame = f
	l.mu.Unlock()
}

// Latest returns the most recently published frame, or nil.
func (l *Latest) Latest() *Frame {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame
}
