package board

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Pen accumulates one channel's strokes into the shared canvas. It remembers
// the last drawn point so consecutive pointer positions connect into a
// continuous line, and forgets it whenever the pointer is lost so a
// reacquired pointer never draws a long-jump stroke.
type Pen struct {
	board *Board
	color color.RGBA
	width int

	last     image.Point
	hasLast  bool
	segments int
}

// LineTo advances the pen to a canvas point. If the pen was already down, a
// straight segment with round caps is drawn from the previous point;
// otherwise the point is only recorded so the next call can connect.
func (p *Pen) LineTo(pt image.Point) {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()

	if p.hasLast {
		gocv.Line(&p.board.canvas, p.last, pt, p.color, p.width)
		// gocv lines are butt-capped; filled end circles give round cap/join
		r := p.width / 2
		if r > 0 {
			gocv.Circle(&p.board.canvas, p.last, r, p.color, -1)
			gocv.Circle(&p.board.canvas, pt, r, p.color, -1)
		}
		p.segments++
	}
	p.last = pt
	p.hasLast = true
}

// Lift breaks stroke continuity. The next LineTo records a fresh start
// instead of connecting to the pre-gap point.
func (p *Pen) Lift() {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()
	p.hasLast = false
}

// Down reports whether the pen has a point to connect from.
func (p *Pen) Down() bool {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()
	return p.hasLast
}

// Segments returns how many segments this pen has drawn since creation.
func (p *Pen) Segments() int {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()
	return p.segments
}

// Color returns the pen's stroke color.
func (p *Pen) Color() color.RGBA {
	return p.color
}
