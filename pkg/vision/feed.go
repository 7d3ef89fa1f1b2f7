package vision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/fablab-bergamo/squid-game-doll/internal/log"
)

// Feed receives JPEG frames from the capture collaborator over a
// websocket and publishes them into a Latest holder. The targeting loop
// never talks to the feed directly; it only reads the holder.
type Feed struct {
	url    string
	latest *Latest
	log    *slog.Logger
}

// NewFeed creates a feed publishing into the given holder.
func NewFeed(url string, latest *Latest) *Feed {
	return &Feed{url: url, latest: latest, log: log.Component("feed")}
}

// Run connects and pumps frames until ctx is cancelled. Connection
// failures are retried with a fixed backoff; the holder simply keeps
// its last frame while the feed is down.
func (f *Feed) Run(ctx context.Context) error {
	const backoff = 2 * time.Second

	for {
		if err := f.pump(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn("frame feed disconnected", "url", f.url, "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (f *Feed) pump(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial frame feed: %w", err)
	}
	defer conn.Close()

	f.log.Info("frame feed connected", "url", f.url)

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		frame, err := decodeJPEGFrame(data)
		if err != nil {
			f.log.Debug("drop undecodable frame", "err", err)
			continue
		}
		f.latest.Publish(frame)
	}
}

// decodeJPEGFrame decodes a JPEG payload into a BGR Frame.
func decodeJPEGFrame(data []byte) (*Frame, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	pixels := img.ToBytes()
	buf := make([]byte, len(pixels))
	copy(buf, pixels)

	return &Frame{
		Width:     img.Cols(),
		Height:    img.Rows(),
		Pixels:    buf,
		Timestamp: time.Now(),
	}, nil
}
