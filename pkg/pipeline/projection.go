package pipeline

import (
	"image"

	"gocv.io/x/gocv"
)

// Projector smooths raw pointer centroids over a short window and maps the
// smoothed point through a channel's homography onto the canvas, clamped to
// canvas bounds. It owns two scratch point Mats for the perspective
// transform, released on Close.
type Projector struct {
	cfg    Config
	bounds image.Point // canvas size

	history []gocv.Point2f
	misses  int

	src gocv.Mat // 1x1 CV64FC2 scratch
	dst gocv.Mat
}

// NewProjector creates a projector clamping to the given canvas size.
func NewProjector(cfg Config, canvasSize image.Point) *Projector {
	return &Projector{
		cfg:     cfg,
		bounds:  canvasSize,
		history: make([]gocv.Point2f, 0, cfg.HistorySize),
		src:     gocv.NewMatWithSize(1, 1, gocv.MatTypeCV64FC2),
		dst:     gocv.NewMatWithSize(1, 1, gocv.MatTypeCV64FC2),
	}
}

// Observe appends a raw centroid to the history, evicting the oldest sample
// past capacity.
func (p *Projector) Observe(pt image.Point) {
	p.misses = 0
	if len(p.history) == p.cfg.HistorySize {
		copy(p.history, p.history[1:])
		p.history = p.history[:len(p.history)-1]
	}
	p.history = append(p.history, gocv.Point2f{X: float32(pt.X), Y: float32(pt.Y)})
}

// Miss records a frame without a detection. Once the configured tolerance is
// exceeded the history empties entirely; the next detection starts a fresh
// 1-sample average.
func (p *Projector) Miss() {
	p.misses++
	if p.misses > p.cfg.LostTolerance {
		p.history = p.history[:0]
	}
}

// Smoothed returns the arithmetic mean of the held samples.
func (p *Projector) Smoothed() (gocv.Point2f, bool) {
	if len(p.history) == 0 {
		return gocv.Point2f{}, false
	}
	var sx, sy float32
	for _, pt := range p.history {
		sx += pt.X
		sy += pt.Y
	}
	n := float32(len(p.history))
	return gocv.Point2f{X: sx / n, Y: sy / n}, true
}

// Project maps the smoothed point through the homography and clamps each
// coordinate to [0,width-1] x [0,height-1].
func (p *Projector) Project(homography gocv.Mat) (image.Point, bool) {
	smoothed, ok := p.Smoothed()
	if !ok || homography.Empty() {
		return image.Point{}, false
	}

	p.src.SetDoubleAt(0, 0, float64(smoothed.X))
	p.src.SetDoubleAt(0, 1, float64(smoothed.Y))
	gocv.PerspectiveTransform(p.src, &p.dst, homography)

	x := clampInt(int(p.dst.GetDoubleAt(0, 0)+0.5), 0, p.bounds.X-1)
	y := clampInt(int(p.dst.GetDoubleAt(0, 1)+0.5), 0, p.bounds.Y-1)
	return image.Pt(x, y), true
}

// Tracking reports whether the smoothing window currently holds samples.
func (p *Projector) Tracking() bool {
	return len(p.history) > 0
}

// Reset empties the history and miss counter.
func (p *Projector) Reset() {
	p.history = p.history[:0]
	p.misses = 0
}

// Close releases the scratch Mats.
func (p *Projector) Close() {
	p.src.Close()
	p.dst.Close()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
