// Package nav turns user intent into card transitions.
package nav

import "github.com/abelbrown/cineswipe/internal/viewport"

// Direction is a normalised navigation intent.
type Direction int

const (
	None Direction = iota
	Next
	Previous
)

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Previous:
		return "previous"
	default:
		return "none"
	}
}

// Scroller performs the smooth transition. A call made while a previous
// transition is still animating redirects it.
type Scroller interface {
	ScrollIntoView(index int, h viewport.Handle)
}

// ScrollerFunc adapts a function to Scroller.
type ScrollerFunc func(index int, h viewport.Handle)

func (f ScrollerFunc) ScrollIntoView(index int, h viewport.Handle) { f(index, h) }

// Handles resolves an index to its mounted card.
type Handles interface {
	Lookup(index int) (viewport.Handle, bool)
}

// Config wires a Controller to the rest of the engine.
type Config struct {
	Handles  Handles
	Scroller Scroller
	Active   func() int // committed active index
	Count    func() int // items in the feed

	// OnTransition, if set, observes every issued transition.
	OnTransition func(from, to int)
}

// Controller issues at most one scroll per call and keeps no queue.
type Controller struct {
	cfg Config
}

// NewController returns a Controller.
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// GoNext moves to the card after the active one.
func (c *Controller) GoNext() bool {
	return c.ScrollToIndex(c.cfg.Active() + 1)
}

// GoPrevious moves to the card before the active one.
func (c *Controller) GoPrevious() bool {
	return c.ScrollToIndex(c.cfg.Active() - 1)
}

// ScrollToIndex scrolls to index. Out-of-range or unmounted targets are
// ignored. Reports whether a transition was issued.
func (c *Controller) ScrollToIndex(index int) bool {
	if index < 0 || index >= c.cfg.Count() {
		return false
	}
	h, ok := c.cfg.Handles.Lookup(index)
	if !ok {
		return false
	}
	from := c.cfg.Active()
	c.cfg.Scroller.ScrollIntoView(index, h)
	if c.cfg.OnTransition != nil {
		c.cfg.OnTransition(from, index)
	}
	return true
}

// Apply routes a direction to GoNext or GoPrevious.
func (c *Controller) Apply(d Direction) bool {
	switch d {
	case Next:
		return c.GoNext()
	case Previous:
		return c.GoPrevious()
	}
	return false
}
