package pipeline

import (
	"image"

	"gocv.io/x/gocv"
)

// Tracker locates a single colored pointer in a camera frame. It owns its
// intermediate native buffers (HSV frame, binary mask, morphology kernel)
// and must be closed on channel teardown.
type Tracker struct {
	cfg Config

	hsv    gocv.Mat
	mask   gocv.Mat
	kernel gocv.Mat
}

// NewTracker creates a pointer tracker for one channel.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:    cfg,
		hsv:    gocv.NewMat(),
		mask:   gocv.NewMat(),
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
	}
}

// Locate segments the configured color range and returns the bounding-box
// centroid of the largest contour, or found=false when nothing passes the
// minimum area gate.
func (t *Tracker) Locate(frame gocv.Mat) (image.Point, bool) {
	if frame.Empty() {
		return image.Point{}, false
	}

	gocv.CvtColor(frame, &t.hsv, gocv.ColorBGRToHSV)
	gocv.InRangeWithScalar(t.hsv, t.cfg.PointerLower, t.cfg.PointerUpper, &t.mask)

	// Opening drops speckle, closing heals holes inside the pointer blob
	gocv.MorphologyEx(t.mask, &t.mask, gocv.MorphOpen, t.kernel)
	gocv.MorphologyEx(t.mask, &t.mask, gocv.MorphClose, t.kernel)
	for i := 0; i < t.cfg.ErodeIterations; i++ {
		gocv.Erode(t.mask, &t.mask, t.kernel)
	}

	contours := gocv.FindContours(t.mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	bestArea := 0.0
	bestIdx := -1
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			bestArea = area
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestArea < t.cfg.MinPointerArea {
		return image.Point{}, false
	}

	r := gocv.BoundingRect(contours.At(bestIdx))
	return image.Pt(r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2), true
}

// Close releases the tracker's native buffers.
func (t *Tracker) Close() {
	t.hsv.Close()
	t.mask.Close()
	t.kernel.Close()
}
