package vision

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/fablab-bergamo/squid-game-doll/internal/log"
)

// Channel selects which image plane the detector thresholds.
type Channel int

const (
	ChannelGray Channel = iota
	ChannelRed
	ChannelGreen
	ChannelBlue
)

// String returns the channel name for logging.
func (c Channel) String() string {
	switch c {
	case ChannelRed:
		return "red"
	case ChannelGreen:
		return "green"
	case ChannelBlue:
		return "blue"
	default:
		return "gray"
	}
}

// Outcome classifies a single detection pass.
type Outcome int

const (
	// OutcomeNotFound means no bright dot survived the threshold search.
	OutcomeNotFound Outcome = iota
	// OutcomeFound means exactly one dot was isolated.
	OutcomeFound
	// OutcomeAmbiguous means several dots remained at every usable threshold.
	OutcomeAmbiguous
)

// Result is the per-frame detection result. X, Y and Radius are in
// pixels and only meaningful when Outcome is OutcomeFound.
type Result struct {
	Outcome   Outcome
	X, Y      float64
	Radius    float64
	Threshold int
	Channel   Channel
}

// Found reports whether the dot was isolated in this frame.
func (r Result) Found() bool { return r.Outcome == OutcomeFound }

// DetectorConfig holds the tunable parameters of the dot search.
type DetectorConfig struct {
	// DilateIterations merges fragmented bright pixels into solid blobs
	// before the circle search.
	DilateIterations int

	// Hough transform parameters. MinDist is the minimum distance between
	// accepted circle centers in pixels.
	HoughMinDist float64
	HoughParam1  float64
	HoughParam2  float64

	// Radius band of the expected dot at 480p; scaled with frame height.
	BaseMinRadius int
	BaseMaxRadius int

	// MaxSteps bounds the dichotomy. 8 covers the full 0..255 range.
	MaxSteps int
}

// DefaultDetectorConfig returns the parameters tuned on the doll's
// 640x480 camera with a 5 mW red laser.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		DilateIterations: 4,
		HoughMinDist:     50,
		HoughParam1:      50,
		HoughParam2:      2,
		BaseMinRadius:    3,
		BaseMaxRadius:    10,
		MaxSteps:         8,
	}
}

// Detector locates the laser dot in a frame by dichotomy over the
// brightness threshold: too many circles means the threshold is too low
// (the dot is the brightest region), zero circles means too high.
//
// The detector remembers the winning threshold and channel from the
// previous frame and tries them first; per-frame cost stays bounded by
// MaxSteps regardless of scene content.
type Detector struct {
	cfg DetectorConfig

	mu            sync.Mutex
	prevThreshold int
	prevChannel   Channel
	hasHint       bool
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 8
	}
	return &Detector{cfg: cfg}
}

// Detect runs the threshold dichotomy on a single channel of the frame.
func (d *Detector) Detect(f *Frame, ch Channel) Result {
	img, err := f.Mat()
	if err != nil {
		log.Debug("detector: bad frame", "err", err)
		return Result{Outcome: OutcomeNotFound, Channel: ch}
	}
	defer img.Close()

	return d.detectOn(img, ch, f.Height)
}

// Search tries the red, grayscale and green channels in turn and returns
// the first hit. The channel that worked last frame is tried first.
func (d *Detector) Search(f *Frame) Result {
	img, err := f.Mat()
	if err != nil {
		log.Debug("detector: bad frame", "err", err)
		return Result{Outcome: OutcomeNotFound}
	}
	defer img.Close()

	order := []Channel{ChannelRed, ChannelGray, ChannelGreen}
	d.mu.Lock()
	if d.hasHint {
		for i, ch := range order {
			if ch == d.prevChannel && i != 0 {
				order[0], order[i] = order[i], order[0]
				break
			}
		}
	}
	d.mu.Unlock()

	last := Result{Outcome: OutcomeNotFound}
	for _, ch := range order {
		res := d.detectOn(img, ch, f.Height)
		if res.Found() {
			return res
		}
		if res.Outcome == OutcomeAmbiguous {
			last = res
		}
	}
	return last
}

// circlePass counts circles in one plane thresholded at t, returning
// the first circle's center and radius.
type circlePass func(t int) (x, y, r float64, count int)

func (d *Detector) detectOn(img gocv.Mat, ch Channel, frameHeight int) Result {
	plane := extractChannel(img, ch)
	defer plane.Close()

	minR, maxR := d.radiusBand(frameHeight)

	d.mu.Lock()
	hint, hasHint := d.prevThreshold, d.hasHint
	d.mu.Unlock()

	res := thresholdSearch(func(t int) (float64, float64, float64, int) {
		return d.houghPass(plane, t, minR, maxR)
	}, hint, hasHint, d.cfg.MaxSteps)
	res.Channel = ch

	d.mu.Lock()
	if res.Outcome == OutcomeFound {
		d.prevThreshold = res.Threshold
		d.prevChannel = ch
		d.hasHint = true
	} else {
		d.hasHint = false
	}
	d.mu.Unlock()

	return res
}

// thresholdSearch narrows the brightness threshold by dichotomy over
// [0,255] until exactly one circle remains. Zero circles means the
// threshold is too high (search the lower half); several mean too low,
// since the dot is the brightest region (upper half). It runs at most
// maxSteps passes before settling NotFound or Ambiguous.
func thresholdSearch(pass circlePass, hint int, hasHint bool, maxSteps int) Result {
	lo, hi := 0, 255
	t := (lo + hi) / 2
	if hasHint && hint > lo && hint < hi {
		t = hint
	}

	lastCount := 0
	for step := 0; step < maxSteps && hi-lo > 1; step++ {
		x, y, r, count := pass(t)
		lastCount = count

		switch {
		case count == 1:
			return Result{Outcome: OutcomeFound, X: x, Y: y, Radius: r, Threshold: t}
		case count == 0:
			hi = t
		default:
			lo = t
		}
		t = (lo + hi) / 2
	}

	if lastCount > 1 {
		return Result{Outcome: OutcomeAmbiguous}
	}
	return Result{Outcome: OutcomeNotFound}
}

// houghPass thresholds the plane at t, dilates, and counts circles.
// Returns the first circle's center and radius along with the count.
func (d *Detector) houghPass(plane gocv.Mat, t, minR, maxR int) (x, y, r float64, count int) {
	thr := gocv.NewMat()
	defer thr.Close()
	gocv.Threshold(plane, &thr, float32(t), 255, gocv.ThresholdToZero)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	for i := 0; i < d.cfg.DilateIterations; i++ {
		gocv.Dilate(thr, &thr, kernel)
	}

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(thr, &circles, gocv.HoughGradient,
		1, d.cfg.HoughMinDist, d.cfg.HoughParam1, d.cfg.HoughParam2, minR, maxR)

	if circles.Empty() {
		return 0, 0, 0, 0
	}
	count = circles.Cols()
	if count > 0 {
		v := circles.GetVecfAt(0, 0)
		if len(v) >= 3 {
			x, y, r = float64(v[0]), float64(v[1]), float64(v[2])
		}
	}
	return x, y, r, count
}

// radiusBand scales the 480p radius band to the frame resolution.
func (d *Detector) radiusBand(frameHeight int) (minR, maxR int) {
	scale := float64(frameHeight) / 480.0
	if scale <= 0 {
		scale = 1
	}
	minR = int(float64(d.cfg.BaseMinRadius) * scale)
	if minR < 2 {
		minR = 2
	}
	maxR = int(float64(d.cfg.BaseMaxRadius) * scale)
	if maxR <= minR {
		maxR = minR + 1
	}
	return minR, maxR
}

// extractChannel returns the single plane the dichotomy operates on.
// The caller must Close the returned Mat.
func extractChannel(img gocv.Mat, ch Channel) gocv.Mat {
	if ch == ChannelGray {
		gray := gocv.NewMat()
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
		// Stretch contrast so the dichotomy bounds cover the full range.
		norm := gocv.NewMat()
		gocv.Normalize(gray, &norm, 0, 255, gocv.NormMinMax)
		gray.Close()
		return norm
	}

	planes := gocv.Split(img)
	var idx int
	switch ch {
	case ChannelBlue:
		idx = 0
	case ChannelGreen:
		idx = 1
	default:
		idx = 2 // red; BGR order
	}
	for i := range planes {
		if i != idx {
			planes[i].Close()
		}
	}
	return planes[idx]
}
