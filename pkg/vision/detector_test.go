package vision

import (
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// renderFrame draws filled white dots of the given radius on a black
// 640x480 canvas and packs it into a Frame.
func renderFrame(t *testing.T, radius int, centers ...image.Point) *Frame {
	t.Helper()

	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, c := range centers {
		gocv.Circle(&img, c, radius, white, -1)
	}

	pixels := img.ToBytes()
	return &Frame{
		Width:     640,
		Height:    480,
		Pixels:    append([]byte(nil), pixels...),
		Timestamp: time.Now(),
	}
}

func TestDetectorFindsSingleDot(t *testing.T) {
	frame := renderFrame(t, 5, image.Pt(320, 240))
	det := NewDetector(DefaultDetectorConfig())

	res := det.Search(frame)
	if !res.Found() {
		t.Fatalf("single dot not found: outcome %v", res.Outcome)
	}
	// Dilation widens the blob, so allow generous slack on the center.
	if math.Abs(res.X-320) > 20 || math.Abs(res.Y-240) > 20 {
		t.Errorf("dot at (%.1f,%.1f), want near (320,240)", res.X, res.Y)
	}
	if res.Radius <= 0 {
		t.Errorf("radius %v, want > 0", res.Radius)
	}
}

func TestDetectorFindsOffCenterDot(t *testing.T) {
	frame := renderFrame(t, 5, image.Pt(100, 380))
	det := NewDetector(DefaultDetectorConfig())

	res := det.Search(frame)
	if !res.Found() {
		t.Fatalf("off-center dot not found: outcome %v", res.Outcome)
	}
	if math.Abs(res.X-100) > 20 || math.Abs(res.Y-380) > 20 {
		t.Errorf("dot at (%.1f,%.1f), want near (100,380)", res.X, res.Y)
	}
}

func TestDetectorBlackFrameNotFound(t *testing.T) {
	frame := renderFrame(t, 5) // no dots
	det := NewDetector(DefaultDetectorConfig())

	res := det.Search(frame)
	if res.Outcome != OutcomeNotFound {
		t.Errorf("outcome %v, want OutcomeNotFound", res.Outcome)
	}
	if res.Found() {
		t.Error("Found() must be false on a black frame")
	}
}

func TestDetectorTwoEqualDotsAmbiguous(t *testing.T) {
	// Two saturated dots survive every threshold, so the search can
	// never isolate one of them.
	frame := renderFrame(t, 5, image.Pt(150, 240), image.Pt(480, 240))
	det := NewDetector(DefaultDetectorConfig())

	res := det.Detect(frame, ChannelRed)
	if res.Outcome != OutcomeAmbiguous {
		t.Errorf("outcome %v, want OutcomeAmbiguous", res.Outcome)
	}
}

func TestDetectorReusesHintAcrossFrames(t *testing.T) {
	det := NewDetector(DefaultDetectorConfig())

	first := det.Search(renderFrame(t, 5, image.Pt(320, 240)))
	if !first.Found() {
		t.Fatalf("first frame not found: outcome %v", first.Outcome)
	}

	// Same scene again: the remembered threshold and channel must still
	// produce a hit.
	second := det.Search(renderFrame(t, 5, image.Pt(330, 250)))
	if !second.Found() {
		t.Fatalf("second frame not found: outcome %v", second.Outcome)
	}
	if second.Channel != first.Channel {
		t.Errorf("channel changed from %v to %v on an unchanged scene", first.Channel, second.Channel)
	}
}

func TestDetectorInvalidFrameNotFound(t *testing.T) {
	det := NewDetector(DefaultDetectorConfig())
	bad := &Frame{Width: 640, Height: 480, Pixels: make([]byte, 3)}

	if res := det.Search(bad); res.Outcome != OutcomeNotFound {
		t.Errorf("outcome %v, want OutcomeNotFound", res.Outcome)
	}
	if res := det.Detect(bad, ChannelGray); res.Outcome != OutcomeNotFound {
		t.Errorf("outcome %v, want OutcomeNotFound", res.Outcome)
	}
}

func TestThresholdSearchBoundedSteps(t *testing.T) {
	const maxSteps = 8

	tests := []struct {
		name string
		pass func(t int) (float64, float64, float64, int)
		want Outcome
	}{
		{
			// Saturated pair: every threshold keeps both dots alive.
			name: "always two circles",
			pass: func(int) (float64, float64, float64, int) { return 0, 0, 0, 2 },
			want: OutcomeAmbiguous,
		},
		{
			name: "always empty",
			pass: func(int) (float64, float64, float64, int) { return 0, 0, 0, 0 },
			want: OutcomeNotFound,
		},
		{
			// A hit only at very high thresholds; the search must climb there.
			name: "single circle above 250",
			pass: func(thr int) (float64, float64, float64, int) {
				if thr >= 250 {
					return 320, 240, 5, 1
				}
				return 0, 0, 0, 7
			},
			want: OutcomeFound,
		},
		{
			// Noise flipping between none and many never resolves to one.
			name: "alternating counts",
			pass: func(thr int) (float64, float64, float64, int) {
				if thr%2 == 0 {
					return 0, 0, 0, 3
				}
				return 0, 0, 0, 0
			},
			want: OutcomeNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			counted := func(thr int) (float64, float64, float64, int) {
				calls++
				if thr < 0 || thr > 255 {
					t.Errorf("threshold %d outside [0,255]", thr)
				}
				return tc.pass(thr)
			}

			res := thresholdSearch(counted, 0, false, maxSteps)
			if res.Outcome != tc.want {
				t.Errorf("outcome %v, want %v", res.Outcome, tc.want)
			}
			if calls > maxSteps {
				t.Errorf("%d passes, bound is %d", calls, maxSteps)
			}
			if calls == 0 {
				t.Error("search never probed a threshold")
			}
		})
	}
}

func TestThresholdSearchHintTriedFirst(t *testing.T) {
	var first int
	calls := 0
	pass := func(thr int) (float64, float64, float64, int) {
		if calls == 0 {
			first = thr
		}
		calls++
		return 100, 100, 4, 1
	}

	res := thresholdSearch(pass, 200, true, 8)
	if !res.Found() {
		t.Fatalf("outcome %v, want found", res.Outcome)
	}
	if first != 200 {
		t.Errorf("first probe at %d, want the hint 200", first)
	}
	if calls != 1 {
		t.Errorf("%d passes, want 1 when the hint hits", calls)
	}
}

func TestChannelString(t *testing.T) {
	pairs := map[Channel]string{
		ChannelGray:  "gray",
		ChannelRed:   "red",
		ChannelGreen: "green",
		ChannelBlue:  "blue",
	}
	for ch, want := range pairs {
		if got := ch.String(); got != want {
			t.Errorf("Channel(%d).String() = %q, want %q", ch, got, want)
		}
	}
}
