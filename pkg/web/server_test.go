package web

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fablab-bergamo/squid-game-doll/pkg/targeting"
	"github.com/fablab-bergamo/squid-game-doll/pkg/turret"
	"github.com/fablab-bergamo/squid-game-doll/pkg/vision"
)

func newTestServer(mock *turret.Mock) *Server {
	cfg := targeting.DefaultConfig()
	cfg.PollInterval = 2 * time.Millisecond
	runner := targeting.NewRunner(mock, vision.NewLatest(),
		vision.NewDetector(vision.DefaultDetectorConfig()), cfg)
	return NewServer("0", runner)
}

func postTarget(t *testing.T, s *Server, body string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/target", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("target request: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("target request: status %d, want %d", resp.StatusCode, fiber.StatusAccepted)
	}
}

func TestServer_TargetSessionsFollowRunContext(t *testing.T) {
	mock := turret.NewMock()
	s := newTestServer(mock)

	results := make(chan targeting.SessionResult, 1)
	s.runner.OnResult = func(res targeting.SessionResult) { results <- res }

	ctx, cancel := context.WithCancel(context.Background())
	s.runCtx = ctx

	postTarget(t, s, `{"x":0.5,"y":0.5,"max_duration_ms":5000}`)

	time.Sleep(20 * time.Millisecond)
	if !s.runner.Busy() {
		t.Fatal("no active session after POST /api/target")
	}

	// Process shutdown cancels the run context; the session must end
	// through its abort path, which switches the laser off.
	cancel()
	select {
	case res := <-results:
		if res.Status != targeting.StatusAborted {
			t.Errorf("status: got %v, want %v", res.Status, targeting.StatusAborted)
		}
	case <-time.After(time.Second):
		t.Fatal("session kept running after run context was cancelled")
	}
	if mock.LaserOn() {
		t.Error("laser left enabled after shutdown")
	}
}

func TestServer_SecondTargetConflicts(t *testing.T) {
	s := newTestServer(turret.NewMock())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.runCtx = ctx

	postTarget(t, s, `{"x":0.5,"y":0.5,"max_duration_ms":5000}`)

	req := httptest.NewRequest("POST", "/api/target", strings.NewReader(`{"x":0.1,"y":0.1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("second target request: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("second target: status %d, want %d", resp.StatusCode, fiber.StatusConflict)
	}
}

func TestServer_AbortStopsSession(t *testing.T) {
	s := newTestServer(turret.NewMock())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.runCtx = ctx

	postTarget(t, s, `{"x":0.5,"y":0.5,"max_duration_ms":5000}`)

	req := httptest.NewRequest("POST", "/api/abort", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("abort request: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Errorf("abort: status %d, want %d", resp.StatusCode, fiber.StatusAccepted)
	}
	if !s.runner.Shutdown(time.Second) {
		t.Error("session still running after abort")
	}
}
