// Package pipeline implements the per-camera calibration, tracking, and
// projection pipeline that turns pointer movement in front of a camera into
// strokes on the shared board.
package pipeline

import (
	"time"

	"gocv.io/x/gocv"
)

// Config holds all tunable parameters for the channel pipeline.
type Config struct {
	// Working frame
	WorkWidth  int // Every captured frame is resized into this fixed buffer
	WorkHeight int

	// Scheduling
	TickInterval       time.Duration // Display-tick cadence for Run
	CalibrationCadence int           // Attempt calibration every k-th tick while uncalibrated

	// Pointer segmentation (HSV)
	PointerLower    gocv.Scalar
	PointerUpper    gocv.Scalar
	MinPointerArea  float64 // Reject contours smaller than this (px²)
	ErodeIterations int     // Extra erosion after open/close, 0 to disable

	// Smoothing
	HistorySize   int // Raw centroids averaged into the smoothed pointer
	LostTolerance int // Missing frames tolerated before the history resets
}

// DefaultConfig returns the recommended configuration, tuned for a green
// pointer at 1080p.
func DefaultConfig() Config {
	lower, upper := PointerRange("green")
	return Config{
		WorkWidth:  1920,
		WorkHeight: 1080,

		TickInterval:       33 * time.Millisecond, // ~30 ticks per second
		CalibrationCadence: 15,                    // ~2 attempts per second

		PointerLower:    lower,
		PointerUpper:    upper,
		MinPointerArea:  120,
		ErodeIterations: 0,

		HistorySize:   5,
		LostTolerance: 0, // One missing frame resets smoothing immediately
	}
}

// PointerRange returns the HSV threshold range for a named pointer color.
// Unknown names fall back to green.
func PointerRange(name string) (lower, upper gocv.Scalar) {
	switch name {
	case "blue":
		return gocv.NewScalar(95, 120, 120, 0), gocv.NewScalar(130, 255, 255, 0)
	case "yellow":
		return gocv.NewScalar(20, 100, 100, 0), gocv.NewScalar(35, 255, 255, 0)
	case "red":
		// Low-hue half only; a red pointer near hue 180 needs a custom range
		return gocv.NewScalar(0, 120, 120, 0), gocv.NewScalar(10, 255, 255, 0)
	default:
		return gocv.NewScalar(40, 80, 80, 0), gocv.NewScalar(85, 255, 255, 0)
	}
}
