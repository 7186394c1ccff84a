package pipeline

import (
	"sync"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/board"
	"gocv.io/x/gocv"
)

// State is the calibration lifecycle of a channel. The only transitions are
// Uncalibrated -> Calibrated on a full 4-marker detection, and Calibrated ->
// Uncalibrated on an explicit reset.
type State int

const (
	// Uncalibrated means no homography is held; drawing is suppressed.
	Uncalibrated State = iota
	// Calibrated means a homography maps this camera onto the canvas.
	Calibrated
)

// String returns the state name for status reporting.
func (s State) String() string {
	if s == Calibrated {
		return "calibrated"
	}
	return "uncalibrated"
}

// Source delivers the most recently decoded camera frame without blocking.
// Latest copies the frame into dst and reports whether one was ready; frames
// may be skipped, never queued.
type Source interface {
	Latest(dst *gocv.Mat) bool
}

// ChannelConfig describes one camera channel.
type ChannelConfig struct {
	ID     int
	Source Source

	// Optional per-channel pointer color override
	PointerLower *gocv.Scalar
	PointerUpper *gocv.Scalar
}

// Channel holds the complete per-camera pipeline state: calibration,
// smoothing history, and drawing continuity. It exclusively owns its
// homography and working buffers; nothing is shared with other channels.
type Channel struct {
	id     int
	source Source

	tracker    *Tracker
	projector  *Projector
	calibrator *Calibrator
	pen        *board.Pen

	mu            sync.RWMutex
	state         State
	homography    gocv.Mat
	hasHomography bool
	calibErr      error // terminal capability error, nil otherwise

	// Working buffers, reused every tick
	raw  gocv.Mat
	work gocv.Mat
	gray gocv.Mat
}

// ID returns the channel identity.
func (ch *Channel) ID() int {
	return ch.id
}

// State returns the current calibration state.
func (ch *Channel) State() State {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.state
}

// Status returns a snapshot of the channel for reporting.
func (ch *Channel) Status() ChannelStatus {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	st := ChannelStatus{
		ID:         ch.id,
		State:      ch.state.String(),
		Calibrated: ch.state == Calibrated,
		Tracking:   ch.projector.Tracking(),
	}
	if ch.calibErr != nil {
		st.CalibrationError = ch.calibErr.Error()
	}
	return st
}

// setHomography atomically replaces the channel's homography: the previous
// matrix is fully released before the new one is installed.
func (ch *Channel) setHomography(h gocv.Mat) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.hasHomography {
		ch.homography.Close()
	}
	ch.homography = h
	ch.hasHomography = true
	ch.state = Calibrated
}

// Reset invalidates calibration: the homography is released, the smoothing
// history cleared, and the pen lifted. The channel returns to Uncalibrated
// and calibration attempts resume on the usual cadence.
func (ch *Channel) Reset() {
	ch.mu.Lock()
	if ch.hasHomography {
		ch.homography.Close()
		ch.homography = gocv.Mat{}
		ch.hasHomography = false
	}
	ch.state = Uncalibrated
	ch.projector.Reset()
	ch.mu.Unlock()

	ch.pen.Lift()
}

// Close synchronously releases every native buffer the channel owns: the
// homography, the working frames, and the tracker's masks.
func (ch *Channel) Close() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.hasHomography {
		ch.homography.Close()
		ch.hasHomography = false
	}
	ch.tracker.Close()
	ch.projector.Close()
	ch.raw.Close()
	ch.work.Close()
	ch.gray.Close()
	ch.state = Uncalibrated
}
