package vision

import (
	"testing"
	"time"
)

func TestFrameValid(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  bool
	}{
		{name: "nil", frame: nil, want: false},
		{name: "ok", frame: &Frame{Width: 4, Height: 2, Pixels: make([]byte, 4*2*3)}, want: true},
		{name: "zero width", frame: &Frame{Width: 0, Height: 2, Pixels: make([]byte, 0)}, want: false},
		{name: "short buffer", frame: &Frame{Width: 4, Height: 2, Pixels: make([]byte, 10)}, want: false},
		{name: "long buffer", frame: &Frame{Width: 4, Height: 2, Pixels: make([]byte, 4*2*3+1)}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.frame.Valid(); got != tc.want {
				t.Errorf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLatestHoldsNewestFrame(t *testing.T) {
	holder := NewLatest()

	if holder.Latest() != nil {
		t.Fatal("empty holder should return nil")
	}

	first := &Frame{Width: 2, Height: 2, Pixels: make([]byte, 12), Timestamp: time.Now()}
	holder.Publish(first)
	if got := holder.Latest(); got != first {
		t.Fatal("expected first frame")
	}
	if first.Seq != 1 {
		t.Errorf("first Seq = %d, want 1", first.Seq)
	}

	second := &Frame{Width: 2, Height: 2, Pixels: make([]byte, 12), Timestamp: time.Now()}
	holder.Publish(second)
	if got := holder.Latest(); got != second {
		t.Fatal("expected second frame, older one must be overwritten")
	}
	if second.Seq != 2 {
		t.Errorf("second Seq = %d, want 2", second.Seq)
	}
	if second.Seq <= first.Seq {
		t.Error("sequence numbers must strictly increase")
	}
}

func TestLatestIgnoresNil(t *testing.T) {
	holder := NewLatest()
	f := &Frame{Width: 2, Height: 2, Pixels: make([]byte, 12)}
	holder.Publish(f)
	holder.Publish(nil)
	if got := holder.Latest(); got != f {
		t.Error("nil publish must not clobber the held frame")
	}
}

func TestFrameMatRejectsInvalid(t *testing.T) {
	f := &Frame{Width: 10, Height: 10, Pixels: make([]byte, 5)}
	if _, err := f.Mat(); err == nil {
		t.Error("Mat() on invalid frame should fail")
	}
}
