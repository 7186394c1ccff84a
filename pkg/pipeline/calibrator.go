package pipeline

import (
	"image"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/vision"
	"gocv.io/x/gocv"
)

// Calibrator estimates the camera->canvas homography from the four fiducials.
// An attempt succeeds only when every id 0..3 is found exactly once, each
// with a full quadrilateral; anything less fails silently for this frame.
type Calibrator struct {
	cap     *vision.Capability
	anchors [4]image.Point
}

// NewCalibrator creates a calibrator mapping marker centroids onto the given
// canvas anchors (indexed by marker id).
func NewCalibrator(cap *vision.Capability, anchors [4]image.Point) *Calibrator {
	return &Calibrator{cap: cap, anchors: anchors}
}

// Calibrate detects the fiducials in a grayscale frame and, on a full set,
// solves the planar projective transform from the four centroid->anchor
// correspondences. The returned Mat is owned by the caller.
func (c *Calibrator) Calibrate(gray gocv.Mat) (gocv.Mat, bool) {
	markers, err := c.cap.DetectMarkers(gray)
	if err != nil {
		return gocv.NewMat(), false
	}

	var centroids [4]gocv.Point2f
	var seen [4]int
	for _, m := range markers {
		if m.ID < 0 || m.ID >= vision.MarkerCount {
			continue
		}
		seen[m.ID]++
		centroids[m.ID] = m.Centroid()
	}
	for _, n := range seen {
		if n != 1 {
			return gocv.NewMat(), false
		}
	}

	src := gocv.NewPoint2fVectorFromPoints(centroids[:])
	defer src.Close()

	dstPoints := make([]gocv.Point2f, 4)
	for i, a := range c.anchors {
		dstPoints[i] = gocv.Point2f{X: float32(a.X), Y: float32(a.Y)}
	}
	dst := gocv.NewPoint2fVectorFromPoints(dstPoints)
	defer dst.Close()

	h := gocv.GetPerspectiveTransform2f(src, dst)
	if h.Empty() {
		h.Close()
		return gocv.NewMat(), false
	}
	return h, true
}
