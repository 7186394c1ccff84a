package pipeline

import (
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func identityHomography() gocv.Mat {
	return gocv.Eye(3, 3, gocv.MatTypeCV64F)
}

func TestProjector_ConvergesToConstantPoint(t *testing.T) {
	p := NewProjector(DefaultConfig(), image.Pt(1920, 1080))
	defer p.Close()

	pt := image.Pt(640, 360)
	for i := 0; i < 5; i++ {
		p.Observe(pt)
	}

	smoothed, ok := p.Smoothed()
	if !ok {
		t.Fatal("expected a smoothed point")
	}
	if smoothed.X != 640 || smoothed.Y != 360 {
		t.Errorf("expected smoothed (640,360), got (%v,%v)", smoothed.X, smoothed.Y)
	}
}

func TestProjector_MissClearsHistory(t *testing.T) {
	p := NewProjector(DefaultConfig(), image.Pt(1920, 1080))
	defer p.Close()

	p.Observe(image.Pt(100, 100))
	p.Observe(image.Pt(200, 200))
	if !p.Tracking() {
		t.Fatal("expected tracking after observations")
	}

	// Default tolerance is zero: one missing frame empties the window
	p.Miss()
	if p.Tracking() {
		t.Error("expected history cleared after a single miss")
	}

	// The next detection is a 1-sample average equal to itself
	p.Observe(image.Pt(300, 400))
	smoothed, ok := p.Smoothed()
	if !ok {
		t.Fatal("expected a smoothed point")
	}
	if smoothed.X != 300 || smoothed.Y != 400 {
		t.Errorf("expected (300,400) after gap, got (%v,%v)", smoothed.X, smoothed.Y)
	}
}

func TestProjector_LostToleranceRidesOutShortGaps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LostTolerance = 2
	p := NewProjector(cfg, image.Pt(1920, 1080))
	defer p.Close()

	p.Observe(image.Pt(100, 100))
	p.Miss()
	p.Miss()
	if !p.Tracking() {
		t.Error("expected history kept within tolerance")
	}
	p.Miss()
	if p.Tracking() {
		t.Error("expected history cleared past tolerance")
	}
}

func TestProjector_EvictsOldestPastCapacity(t *testing.T) {
	p := NewProjector(DefaultConfig(), image.Pt(1920, 1080))
	defer p.Close()

	// Six samples into a 5-slot window: the first must be evicted
	p.Observe(image.Pt(1000, 1000))
	for i := 0; i < 5; i++ {
		p.Observe(image.Pt(10, 20))
	}

	smoothed, _ := p.Smoothed()
	if smoothed.X != 10 || smoothed.Y != 20 {
		t.Errorf("expected oldest sample evicted, got (%v,%v)", smoothed.X, smoothed.Y)
	}
}

func TestProjector_ClampsToCanvasBounds(t *testing.T) {
	p := NewProjector(DefaultConfig(), image.Pt(1920, 1080))
	defer p.Close()

	h := identityHomography()
	defer h.Close()

	cases := []struct {
		raw  image.Point
		want image.Point
	}{
		{image.Pt(2500, 540), image.Pt(1919, 540)},
		{image.Pt(960, 5000), image.Pt(960, 1079)},
		{image.Pt(-50, -50), image.Pt(0, 0)},
		{image.Pt(500, 500), image.Pt(500, 500)},
	}
	for _, tc := range cases {
		p.Reset()
		p.Observe(tc.raw)
		got, ok := p.Project(h)
		if !ok {
			t.Fatalf("expected projection for %v", tc.raw)
		}
		if got != tc.want {
			t.Errorf("raw %v: expected %v, got %v", tc.raw, tc.want, got)
		}
	}
}

func TestProjector_NoHomographyNoCanvasPoint(t *testing.T) {
	p := NewProjector(DefaultConfig(), image.Pt(1920, 1080))
	defer p.Close()

	p.Observe(image.Pt(500, 500))
	empty := gocv.NewMat()
	defer empty.Close()

	if _, ok := p.Project(empty); ok {
		t.Error("expected no canvas point without a homography")
	}
	// Tracking still proceeds, only drawing is suppressed
	if !p.Tracking() {
		t.Error("expected tracking to continue without a homography")
	}
}

func TestProjector_SmoothedIsArithmeticMean(t *testing.T) {
	p := NewProjector(DefaultConfig(), image.Pt(1920, 1080))
	defer p.Close()

	p.Observe(image.Pt(100, 0))
	p.Observe(image.Pt(200, 100))
	p.Observe(image.Pt(300, 200))

	smoothed, _ := p.Smoothed()
	if math.Abs(float64(smoothed.X)-200) > 1e-3 || math.Abs(float64(smoothed.Y)-100) > 1e-3 {
		t.Errorf("expected mean (200,100), got (%v,%v)", smoothed.X, smoothed.Y)
	}
}
