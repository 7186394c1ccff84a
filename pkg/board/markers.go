package board

import (
	"image"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/internal/log"
	"gocv.io/x/gocv"
)

// Anchors returns the four fixed canvas anchor centers, indexed by marker id:
// 0 top-left, 1 top-right, 2 bottom-right, 3 bottom-left. Anchors are
// constants of the canvas geometry, independent of any detection.
func (b *Board) Anchors() [4]image.Point {
	m := b.cfg.AnchorMargin
	w, h := b.cfg.Width, b.cfg.Height
	return [4]image.Point{
		{X: m, Y: m},
		{X: w - m, Y: m},
		{X: w - m, Y: h - m},
		{X: m, Y: h - m},
	}
}

// renderMarkersLocked composites the four fiducial patterns at their anchors.
// Callers must hold b.mu (or be inside New, before the board is shared).
func (b *Board) renderMarkersLocked() {
	if b.cap == nil || !b.cap.Ready() {
		return
	}

	size := b.cfg.MarkerSize
	for id, anchor := range b.Anchors() {
		marker, err := b.cap.GenerateMarker(id, size)
		if err != nil {
			log.Warn("render fiducial failed", "id", id, "err", err)
			return
		}

		bgr := gocv.NewMat()
		gocv.CvtColor(marker, &bgr, gocv.ColorGrayToBGR)

		x0, y0 := anchor.X-size/2, anchor.Y-size/2
		region := b.canvas.Region(image.Rect(x0, y0, x0+size, y0+size))
		bgr.CopyTo(&region)

		region.Close()
		bgr.Close()
		marker.Close()
	}
}
