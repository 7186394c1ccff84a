package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/internal/log"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/board"
	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/vision"
	"gocv.io/x/gocv"
)

// Loop drives every channel once per display tick. Channels are processed
// within the same tick, never in parallel: both write into one shared canvas
// and their strokes must land whole. No operation inside a tick blocks; a
// channel with no ready frame is simply skipped this tick.
type Loop struct {
	cfg   Config
	board *board.Board

	cap    *vision.Capability
	capErr error

	mu       sync.Mutex
	channels []*Channel
	ticks    uint64
}

// New creates the processing loop. The image-processing capability is
// resolved once here; if it is unavailable, channels still track and report
// but can never calibrate.
func New(cfg Config, b *board.Board) *Loop {
	cap, err := vision.Shared()
	if err != nil {
		log.Error("marker detection unavailable, calibration disabled", "err", err)
	}
	if cfg.CalibrationCadence < 1 {
		cfg.CalibrationCadence = 1
	}
	return &Loop{
		cfg:    cfg,
		board:  b,
		cap:    cap,
		capErr: err,
	}
}

// AddChannel attaches a camera channel to the loop and returns it. The
// channel owns its calibration and tracking state for the stream's lifetime.
func (l *Loop) AddChannel(cc ChannelConfig) *Channel {
	cfg := l.cfg
	if cc.PointerLower != nil && cc.PointerUpper != nil {
		cfg.PointerLower = *cc.PointerLower
		cfg.PointerUpper = *cc.PointerUpper
	}

	ch := &Channel{
		id:         cc.ID,
		source:     cc.Source,
		tracker:    NewTracker(cfg),
		projector:  NewProjector(cfg, l.board.Size()),
		calibrator: NewCalibrator(l.cap, l.board.Anchors()),
		pen:        l.board.Pen(cc.ID),
		calibErr:   l.capErr,
		raw:        gocv.NewMat(),
		work:       gocv.NewMat(),
		gray:       gocv.NewMat(),
	}

	l.mu.Lock()
	l.channels = append(l.channels, ch)
	l.mu.Unlock()

	log.Info("channel attached", "id", cc.ID)
	return ch
}

// Run drives Tick at the configured interval until the context is canceled.
// The host's display scheduler can instead call Tick directly.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	log.Info("frame loop started",
		"tick", l.cfg.TickInterval, "calibration_cadence", l.cfg.CalibrationCadence)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick processes every channel once: capture, throttled calibration while
// uncalibrated, then tracking -> smoothing -> projection -> stroke.
func (l *Loop) Tick() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ticks++
	for _, ch := range l.channels {
		l.tickChannel(ch)
	}
}

func (l *Loop) tickChannel(ch *Channel) {
	// Non-blocking pull of the most recent decoded frame; no frame means
	// this tick is a no-op for the channel.
	if !ch.source.Latest(&ch.raw) || ch.raw.Empty() {
		return
	}
	gocv.Resize(ch.raw, &ch.work, image.Pt(l.cfg.WorkWidth, l.cfg.WorkHeight), 0, 0, gocv.InterpolationArea)

	if ch.State() == Uncalibrated && ch.calibErr == nil &&
		l.ticks%uint64(l.cfg.CalibrationCadence) == 0 {
		gocv.CvtColor(ch.work, &ch.gray, gocv.ColorBGRToGray)
		if h, ok := ch.calibrator.Calibrate(ch.gray); ok {
			ch.setHomography(h)
			log.Info("channel calibrated", "id", ch.id)
		}
		// An incomplete marker set fails silently; retried next cadence tick
	}

	// Tracking runs regardless of calibration state
	pt, found := ch.tracker.Locate(ch.work)
	if found {
		ch.projector.Observe(pt)
	} else {
		ch.projector.Miss()
	}

	ch.mu.RLock()
	canDraw := found && ch.hasHomography
	homography := ch.homography
	ch.mu.RUnlock()

	if canDraw {
		if canvasPt, ok := ch.projector.Project(homography); ok {
			ch.pen.LineTo(canvasPt)
			return
		}
	}
	// Lost pointer or uncalibrated: break stroke continuity
	ch.pen.Lift()
}

// Reset invalidates calibration for one channel.
func (l *Loop) Reset(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ch := range l.channels {
		if ch.id == id {
			ch.Reset()
			log.Info("channel reset", "id", id)
			return nil
		}
	}
	return fmt.Errorf("pipeline: no channel %d", id)
}

// Clear wipes the canvas, re-renders the fiducials, and breaks every
// channel's stroke continuity.
func (l *Loop) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.board.Clear()
	for _, ch := range l.channels {
		ch.projector.Reset()
	}
	log.Info("canvas cleared")
}

// Status reports per-channel and aggregate calibration/tracking state.
// Aggregate Calibrated is the AND over active channels.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := Status{Calibrated: len(l.channels) > 0}
	for _, ch := range l.channels {
		cs := ch.Status()
		st.Channels = append(st.Channels, cs)
		st.Calibrated = st.Calibrated && cs.Calibrated
	}
	return st
}

// Close detaches every channel, synchronously releasing their native
// buffers. The shared capability and the board are left to their owners.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ch := range l.channels {
		ch.Close()
	}
	l.channels = nil
}
