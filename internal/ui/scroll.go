package ui

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/abelbrown/cineswipe/internal/viewport"
)

// settleEpsilon is how close (in cards) the animation must get before it
// snaps to the target.
const settleEpsilon = 0.002

// Scroll is the animated scroll position, measured in cards. It is the
// engine's nav.Scroller: a transition only moves the target, and the
// spring carries the position there frame by frame, so a second
// transition mid-animation simply redirects it.
//
// Scroll is owned by the Bubble Tea update loop and is not goroutine-safe.
type Scroll struct {
	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64
}

// NewScroll returns a Scroll at card 0.
func NewScroll() *Scroll {
	return &Scroll{spring: harmonica.NewSpring(harmonica.FPS(frameRate), 6.0, 0.8)}
}

// ScrollIntoView implements nav.Scroller.
func (s *Scroll) ScrollIntoView(index int, _ viewport.Handle) {
	s.target = float64(index)
}

// Step advances one frame and reports whether the position is still moving.
func (s *Scroll) Step() bool {
	s.pos, s.vel = s.spring.Update(s.pos, s.vel, s.target)
	if math.Abs(s.pos-s.target) < settleEpsilon && math.Abs(s.vel) < settleEpsilon {
		s.pos, s.vel = s.target, 0
		return false
	}
	return true
}

// Moving reports whether the position has not reached the target.
func (s *Scroll) Moving() bool { return s.pos != s.target }

// Jump moves to index without animating.
func (s *Scroll) Jump(index int) {
	s.pos, s.vel, s.target = float64(index), 0, float64(index)
}

// Pos returns the current position.
func (s *Scroll) Pos() float64 { return s.pos }

// Target returns where the position is heading.
func (s *Scroll) Target() float64 { return s.target }

// View is the viewport rectangle in card units: one card tall.
func (s *Scroll) View() viewport.Rect {
	return viewport.Rect{Top: s.pos, Height: 1}
}

// cardHandle is a mounted card. Cards are laid out one per unit of
// height, so a card's bounds depend only on its index.
type cardHandle struct {
	index int
}

func (c *cardHandle) Bounds() viewport.Rect {
	return viewport.Rect{Top: float64(c.index), Height: 1}
}
