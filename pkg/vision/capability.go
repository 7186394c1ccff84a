// Package vision wraps the process-wide image-processing capability used for
// fiducial marker detection and generation. The capability is initialized
// lazily, cached, and shared by every camera channel.
package vision

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Dictionary is the fixed marker dictionary. Only ids 0..3 are ever used;
// the remaining symbols in the predefined dictionary are inert.
const Dictionary = gocv.ArucoDict4x4_50

// MarkerCount is the number of fiducials on the physical surface.
const MarkerCount = 4

// ErrUnavailable means marker detection support could not be initialized.
// It is terminal for calibration in this session and requires external
// remediation (an OpenCV build with the aruco module).
var ErrUnavailable = errors.New("vision: marker detection capability unavailable")

// Marker is one detected fiducial: its dictionary id and the four corners of
// its quadrilateral in camera pixel space.
type Marker struct {
	ID      int
	Corners [4]gocv.Point2f
}

// Centroid returns the mean of the marker's four corners.
func (m Marker) Centroid() gocv.Point2f {
	var sx, sy float32
	for _, c := range m.Corners {
		sx += c.X
		sy += c.Y
	}
	return gocv.Point2f{X: sx / 4, Y: sy / 4}
}

// Capability is the shared marker detection backend.
type Capability struct {
	detector gocv.ArucoDetector
	mu       sync.Mutex // Protects detection
	ready    bool
}

var (
	shared    *Capability
	sharedErr error
	once      sync.Once
)

// Shared returns the process-wide capability, initializing it on first use.
// The error is sticky: once unavailable, always unavailable.
func Shared() (*Capability, error) {
	once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				shared = nil
				sharedErr = fmt.Errorf("%w: %v", ErrUnavailable, r)
			}
		}()

		params := gocv.NewArucoDetectorParameters()
		detector := gocv.NewArucoDetectorWithParams(
			gocv.GetPredefinedDictionary(Dictionary),
			params,
		)
		shared = &Capability{detector: detector, ready: true}
	})
	return shared, sharedErr
}

// Ready reports whether marker detection is usable.
func (c *Capability) Ready() bool {
	return c != nil && c.ready
}

// DetectMarkers finds fiducials in a grayscale frame.
func (c *Capability) DetectMarkers(gray gocv.Mat) ([]Marker, error) {
	if !c.Ready() {
		return nil, ErrUnavailable
	}
	if gray.Empty() {
		return nil, nil
	}

	c.mu.Lock()
	corners, ids, _ := c.detector.DetectMarkers(gray)
	c.mu.Unlock()

	markers := make([]Marker, 0, len(ids))
	for i, id := range ids {
		if len(corners[i]) != 4 {
			continue
		}
		m := Marker{ID: id}
		copy(m.Corners[:], corners[i])
		markers = append(markers, m)
	}
	return markers, nil
}

// GenerateMarker rasterizes the pattern for a dictionary id at the given side
// length in pixels. The returned grayscale Mat is owned by the caller.
func (c *Capability) GenerateMarker(id, sidePixels int) (gocv.Mat, error) {
	if !c.Ready() {
		return gocv.NewMat(), ErrUnavailable
	}
	if id < 0 || id >= MarkerCount {
		return gocv.NewMat(), fmt.Errorf("vision: marker id %d out of range", id)
	}

	img := gocv.NewMatWithSize(sidePixels, sidePixels, gocv.MatTypeCV8U)
	gocv.ArucoGenerateImageMarker(Dictionary, id, sidePixels, img, 1)
	return img, nil
}

// Close releases the detector. Only for full process teardown; channels never
// close the shared capability.
func (c *Capability) Close() {
	if c == nil || !c.ready {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detector.Close()
	c.ready = false
}
