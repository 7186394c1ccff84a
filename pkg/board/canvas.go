// Package board owns the shared drawing canvas: one raster both camera
// channels write into, the four rendered fiducials at fixed anchors, and the
// per-channel pens that accumulate strokes.
package board

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/vision"
	"gocv.io/x/gocv"
)

// Config holds the canvas geometry and drawing parameters.
type Config struct {
	Width      int
	Height     int
	Background color.RGBA

	PenWidth int          // Stroke thickness in pixels
	Palette  []color.RGBA // Pen color per channel id, 1-based

	MarkerSize   int // Fiducial side length in canvas pixels
	AnchorMargin int // Distance from canvas edge to each anchor center
}

// DefaultConfig returns the production canvas configuration.
func DefaultConfig() Config {
	return Config{
		Width:      1920,
		Height:     1080,
		Background: color.RGBA{R: 255, G: 255, B: 255},

		PenWidth: 6,
		Palette: []color.RGBA{
			{R: 31, G: 110, B: 220}, // channel 1: blue
			{R: 214, G: 69, B: 48},  // channel 2: red
		},

		MarkerSize:   60,
		AnchorMargin: 40,
	}
}

// Board is the shared drawing surface. All mutation goes through one mutex:
// pens, clears, and snapshot reads are serialized.
type Board struct {
	cfg Config
	cap *vision.Capability // nil when marker rendering is unavailable

	mu     sync.Mutex
	canvas gocv.Mat
	pens   map[int]*Pen
}

// New creates the canvas, fills it with the background color, and renders the
// four fiducials at their anchors. cap may be nil; the board then degrades to
// a plain canvas without fiducials.
func New(cfg Config, cap *vision.Capability) *Board {
	b := &Board{
		cfg:    cfg,
		cap:    cap,
		canvas: gocv.NewMatWithSize(cfg.Height, cfg.Width, gocv.MatTypeCV8UC3),
		pens:   make(map[int]*Pen),
	}
	b.canvas.SetTo(bgrScalar(cfg.Background))
	b.renderMarkersLocked()
	return b
}

// Size returns the canvas dimensions.
func (b *Board) Size() image.Point {
	return image.Pt(b.cfg.Width, b.cfg.Height)
}

// Pen returns the pen for a channel, creating it on first use.
func (b *Board) Pen(channel int) *Pen {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.pens[channel]; ok {
		return p
	}
	p := &Pen{
		board: b,
		color: b.penColor(channel),
		width: b.cfg.PenWidth,
	}
	b.pens[channel] = p
	return p
}

// Clear wipes the canvas back to the background, re-renders the fiducials at
// their fixed anchors, and lifts every pen so no stroke connects across the
// clear.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.canvas.SetTo(bgrScalar(b.cfg.Background))
	b.renderMarkersLocked()
	for _, p := range b.pens {
		p.hasLast = false
	}
}

// Snapshot encodes the current canvas as a PNG image.
func (b *Board) Snapshot() ([]byte, error) {
	return b.encode(gocv.PNGFileExt)
}

// EncodeJPEG encodes the current canvas as a JPEG for the live feed.
func (b *Board) EncodeJPEG() ([]byte, error) {
	return b.encode(gocv.JPEGFileExt)
}

func (b *Board) encode(ext gocv.FileExt) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := gocv.IMEncode(ext, b.canvas)
	if err != nil {
		return nil, fmt.Errorf("encode canvas: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the canvas raster.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canvas.Close()
}

func (b *Board) penColor(channel int) color.RGBA {
	if channel >= 1 && channel <= len(b.cfg.Palette) {
		return b.cfg.Palette[channel-1]
	}
	// Channels beyond the palette draw in black
	return color.RGBA{}
}

func bgrScalar(c color.RGBA) gocv.Scalar {
	return gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0)
}
