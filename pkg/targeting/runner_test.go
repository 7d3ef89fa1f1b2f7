package targeting

import (
	"context"
	"testing"
	"time"

	"github.com/fablab-bergamo/squid-game-doll/pkg/turret"
	"github.com/fablab-bergamo/squid-game-doll/pkg/vision"
)

func newTestRunner(mock *turret.Mock) *Runner {
	return NewRunner(mock, vision.NewLatest(),
		vision.NewDetector(vision.DefaultDetectorConfig()), testConfig())
}

func TestRunner_RejectsSecondSession(t *testing.T) {
	runner := newTestRunner(turret.NewMock())

	done, err := runner.Start(context.Background(), TargetSpec{
		Point:       NormalizedPoint{X: 0.5, Y: 0.5},
		MaxDuration: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	_, err = runner.Start(context.Background(), TargetSpec{
		Point: NormalizedPoint{X: 0.1, Y: 0.1},
	})
	if err != ErrSessionActive {
		t.Errorf("second Start: got %v, want ErrSessionActive", err)
	}

	<-done

	// After the first session finishes a new one is accepted.
	done2, err := runner.Start(context.Background(), TargetSpec{
		Point:       NormalizedPoint{X: 0.5, Y: 0.5},
		MaxDuration: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start after completion failed: %v", err)
	}
	<-done2
}

func TestRunner_AbortCancelsActiveSession(t *testing.T) {
	runner := newTestRunner(turret.NewMock())

	done, err := runner.Start(context.Background(), TargetSpec{
		Point:       NormalizedPoint{X: 0.5, Y: 0.5},
		MaxDuration: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	runner.Abort()

	select {
	case res := <-done:
		if res.Status != StatusAborted {
			t.Errorf("status: got %v, want %v", res.Status, StatusAborted)
		}
	case <-time.After(time.Second):
		t.Fatal("session did not stop after abort")
	}

	if runner.Busy() {
		t.Error("runner still busy after abort")
	}
}

func TestRunner_ShutdownStopsActiveSession(t *testing.T) {
	mock := turret.NewMock()
	runner := newTestRunner(mock)

	done, err := runner.Start(context.Background(), TargetSpec{
		Point:       NormalizedPoint{X: 0.5, Y: 0.5},
		MaxDuration: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if !runner.Shutdown(time.Second) {
		t.Fatal("Shutdown timed out with the session still running")
	}
	if runner.Busy() {
		t.Error("runner busy after Shutdown")
	}

	res := <-done
	if res.Status != StatusAborted {
		t.Errorf("status: got %v, want %v", res.Status, StatusAborted)
	}
	if mock.LaserOn() {
		t.Error("laser left enabled after Shutdown")
	}
}

func TestRunner_ShutdownIdleReturnsImmediately(t *testing.T) {
	runner := newTestRunner(turret.NewMock())
	if !runner.Shutdown(time.Second) {
		t.Error("Shutdown on an idle runner should succeed")
	}
}

func TestRunner_OnResultReceivesTerminalResult(t *testing.T) {
	runner := newTestRunner(turret.NewMock())

	results := make(chan SessionResult, 1)
	runner.OnResult = func(res SessionResult) { results <- res }

	done, err := runner.Start(context.Background(), TargetSpec{
		Point:       NormalizedPoint{X: 0.5, Y: 0.5},
		MaxDuration: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-done

	select {
	case res := <-results:
		if res.Status != StatusTimedOut {
			t.Errorf("status: got %v, want %v", res.Status, StatusTimedOut)
		}
	case <-time.After(time.Second):
		t.Fatal("OnResult not invoked")
	}
}

func TestRunner_SnapshotWhileRunning(t *testing.T) {
	runner := newTestRunner(turret.NewMock())

	if _, ok := runner.Snapshot(); ok {
		t.Error("idle runner reported a snapshot")
	}

	done, err := runner.Start(context.Background(), TargetSpec{
		Point:       NormalizedPoint{X: 0.25, Y: 0.75},
		MaxDuration: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	snap, ok := runner.Snapshot()
	if !ok {
		t.Fatal("no snapshot while running")
	}
	if snap.Target.X != 0.25 || snap.Target.Y != 0.75 {
		t.Errorf("snapshot target: got (%v,%v)", snap.Target.X, snap.Target.Y)
	}

	<-done
}
