package pipeline

import (
	"image"
	"image/color"
	"testing"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/board"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/vision"
	"gocv.io/x/gocv"
)

// stubSource hands the loop one fixed frame per tick, test-controlled.
type stubSource struct {
	frame gocv.Mat
	ok    bool
}

func (s *stubSource) Latest(dst *gocv.Mat) bool {
	if !s.ok || s.frame.Empty() {
		return false
	}
	s.frame.CopyTo(dst)
	return true
}

func (s *stubSource) set(frame gocv.Mat) {
	if s.ok {
		s.frame.Close()
	}
	s.frame = frame
	s.ok = true
}

func (s *stubSource) Close() {
	if s.ok {
		s.frame.Close()
		s.ok = false
	}
}

// calibrationFrame is a camera view with all four fiducials at their anchors.
func calibrationFrame(t *testing.T, cap *vision.Capability) gocv.Mat {
	t.Helper()
	gray := markerFrame(t, cap, testAnchors, 60)
	defer gray.Close()
	bgr := gocv.NewMat()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)
	return bgr
}

// pointerFrame is a camera view with only a green pointer blob.
func pointerFrame(pt image.Point) gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 1080, 1920, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&frame, image.Rect(pt.X-20, pt.Y-20, pt.X+20, pt.Y+20), color.RGBA{G: 200}, -1)
	return frame
}

func newTestLoop(t *testing.T, cadence int) (*Loop, *board.Board, *stubSource) {
	t.Helper()
	cap := sharedOrSkip(t)

	b := board.New(board.DefaultConfig(), cap)
	t.Cleanup(b.Close)

	cfg := DefaultConfig()
	cfg.CalibrationCadence = cadence
	l := New(cfg, b)
	t.Cleanup(l.Close)

	src := &stubSource{}
	t.Cleanup(src.Close)
	l.AddChannel(ChannelConfig{ID: 1, Source: src})
	return l, b, src
}

func TestLoop_CalibratesFromMarkerFrame(t *testing.T) {
	l, _, src := newTestLoop(t, 1)

	src.set(calibrationFrame(t, l.cap))
	l.Tick()

	st := l.Status()
	if !st.Calibrated {
		t.Error("expected aggregate calibrated after a full marker frame")
	}
	if len(st.Channels) != 1 || st.Channels[0].State != "calibrated" {
		t.Errorf("expected channel 1 calibrated, got %+v", st.Channels)
	}
}

func TestLoop_CalibrationThrottledByCadence(t *testing.T) {
	l, _, src := newTestLoop(t, 3)

	src.set(calibrationFrame(t, l.cap))
	l.Tick()
	l.Tick()
	if l.Status().Calibrated {
		t.Fatal("expected no calibration attempt before the cadence tick")
	}
	l.Tick()
	if !l.Status().Calibrated {
		t.Error("expected calibration on the cadence tick")
	}
}

func TestLoop_DrawsConnectedStrokes(t *testing.T) {
	l, b, src := newTestLoop(t, 1)

	src.set(calibrationFrame(t, l.cap))
	l.Tick()
	if !l.Status().Calibrated {
		t.Fatal("calibration failed")
	}

	pen := b.Pen(1)
	points := []image.Point{{X: 400, Y: 400}, {X: 450, Y: 420}, {X: 500, Y: 440}, {X: 550, Y: 460}}
	for _, pt := range points {
		src.set(pointerFrame(pt))
		l.Tick()
	}

	// N detections connect into N-1 segments
	if got := pen.Segments(); got != 3 {
		t.Errorf("expected 3 segments from 4 detections, got %d", got)
	}
	if !pen.Down() {
		t.Error("expected the pen down while the pointer is tracked")
	}
}

func TestLoop_LostPointerBreaksStroke(t *testing.T) {
	l, b, src := newTestLoop(t, 1)

	src.set(calibrationFrame(t, l.cap))
	l.Tick()

	pen := b.Pen(1)
	src.set(pointerFrame(image.Pt(400, 400)))
	l.Tick()
	src.set(pointerFrame(image.Pt(450, 420)))
	l.Tick()
	if got := pen.Segments(); got != 1 {
		t.Fatalf("expected 1 segment before the gap, got %d", got)
	}

	// Pointer leaves the view: pen lifts, no segment bridges the gap
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 1080, 1920, gocv.MatTypeCV8UC3)
	src.set(blank)
	l.Tick()
	if pen.Down() {
		t.Error("expected the pen lifted after the pointer vanished")
	}

	src.set(pointerFrame(image.Pt(900, 700)))
	l.Tick()
	if got := pen.Segments(); got != 1 {
		t.Errorf("expected the reacquired pointer to start fresh, got %d segments", got)
	}
	src.set(pointerFrame(image.Pt(950, 720)))
	l.Tick()
	if got := pen.Segments(); got != 2 {
		t.Errorf("expected 2 segments after reacquisition, got %d", got)
	}
}

func TestLoop_NoDrawingWhileUncalibrated(t *testing.T) {
	l, b, src := newTestLoop(t, 1)

	pen := b.Pen(1)
	for i := 0; i < 5; i++ {
		src.set(pointerFrame(image.Pt(400+20*i, 400)))
		l.Tick()
	}

	if got := pen.Segments(); got != 0 {
		t.Errorf("expected no strokes without calibration, got %d segments", got)
	}
	st := l.Status()
	if st.Calibrated {
		t.Error("expected uncalibrated status")
	}
	// Tracking proceeds even though drawing is suppressed
	if !st.Channels[0].Tracking {
		t.Error("expected the pointer to be tracked while uncalibrated")
	}
}

func TestLoop_ResetInvalidatesCalibration(t *testing.T) {
	l, _, src := newTestLoop(t, 1)

	src.set(calibrationFrame(t, l.cap))
	l.Tick()
	if !l.Status().Calibrated {
		t.Fatal("calibration failed")
	}

	if err := l.Reset(1); err != nil {
		t.Fatalf("reset: %v", err)
	}
	st := l.Status()
	if st.Calibrated || st.Channels[0].State != "uncalibrated" {
		t.Errorf("expected channel back to uncalibrated, got %+v", st.Channels[0])
	}

	if err := l.Reset(99); err == nil {
		t.Error("expected an error for an unknown channel")
	}
}

func TestLoop_RecalibratesAfterReset(t *testing.T) {
	l, _, src := newTestLoop(t, 1)

	src.set(calibrationFrame(t, l.cap))
	l.Tick()
	l.Reset(1)

	// The marker frame is still in view: the next tick recalibrates
	l.Tick()
	if !l.Status().Calibrated {
		t.Error("expected recalibration on the next cadence tick")
	}
}

func TestLoop_StatusAggregatesAcrossChannels(t *testing.T) {
	l, _, src := newTestLoop(t, 1)

	src2 := &stubSource{}
	t.Cleanup(src2.Close)
	l.AddChannel(ChannelConfig{ID: 2, Source: src2})

	src.set(calibrationFrame(t, l.cap))
	l.Tick()

	st := l.Status()
	if st.Calibrated {
		t.Error("expected aggregate uncalibrated while channel 2 has no homography")
	}
	if !st.Channels[0].Calibrated || st.Channels[1].Calibrated {
		t.Errorf("expected only channel 1 calibrated, got %+v", st.Channels)
	}

	src2.set(calibrationFrame(t, l.cap))
	l.Tick()
	if !l.Status().Calibrated {
		t.Error("expected aggregate calibrated once both channels hold a homography")
	}
}

func TestLoop_ClearLiftsEveryPen(t *testing.T) {
	l, b, src := newTestLoop(t, 1)

	src.set(calibrationFrame(t, l.cap))
	l.Tick()
	src.set(pointerFrame(image.Pt(400, 400)))
	l.Tick()
	src.set(pointerFrame(image.Pt(450, 420)))
	l.Tick()

	pen := b.Pen(1)
	if !pen.Down() {
		t.Fatal("expected the pen down before clear")
	}
	l.Clear()
	if pen.Down() {
		t.Error("expected the pen lifted after clear")
	}
	// Calibration survives a canvas clear
	if !l.Status().Calibrated {
		t.Error("expected calibration to survive clear")
	}
}

func TestLoop_SkipsChannelWithoutFrame(t *testing.T) {
	l, _, _ := newTestLoop(t, 1)

	// Source never delivers: ticks are no-ops, never panics
	l.Tick()
	l.Tick()

	st := l.Status()
	if st.Calibrated || st.Channels[0].Tracking {
		t.Errorf("expected an idle channel, got %+v", st.Channels[0])
	}
}
