package nav

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Input defaults.
const (
	DefaultWheelMinDelta  = 60
	DefaultWheelCooldown  = 220 * time.Millisecond
	DefaultSwipeDistance  = 60
	DefaultSwipeMaxLength = 400 * time.Millisecond
)

// WheelGate maps one physical scroll gesture to one transition. Ticks
// smaller than MinDelta are ignored, and an accepted tick opens a cooldown
// during which every tick is ignored.
type WheelGate struct {
	MinDelta float64
	Cooldown time.Duration
	Clock    clockwork.Clock

	mu       sync.Mutex
	last     time.Time
	accepted bool
}

// NewWheelGate returns a gate with default thresholds.
func NewWheelGate(clock clockwork.Clock) *WheelGate {
	return &WheelGate{MinDelta: DefaultWheelMinDelta, Cooldown: DefaultWheelCooldown, Clock: clock}
}

// Tick classifies a wheel delta; positive scrolls down (Next).
func (g *WheelGate) Tick(delta float64) Direction {
	if math.Abs(delta) < g.MinDelta || delta == 0 {
		return None
	}
	now := clockOrReal(g.Clock).Now()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accepted && now.Sub(g.last) < g.Cooldown {
		return None
	}
	g.last = now
	g.accepted = true
	if delta > 0 {
		return Next
	}
	return Previous
}

// SwipeDetector classifies a drag as a flick. Only a vertical displacement
// beyond Distance completed within MaxDuration counts.
type SwipeDetector struct {
	Distance    float64
	MaxDuration time.Duration
	Clock       clockwork.Clock

	mu     sync.Mutex
	startY float64
	start  time.Time
	active bool
}

// NewSwipeDetector returns a detector with default thresholds.
func NewSwipeDetector(clock clockwork.Clock) *SwipeDetector {
	return &SwipeDetector{Distance: DefaultSwipeDistance, MaxDuration: DefaultSwipeMaxLength, Clock: clock}
}

// Begin records the gesture start.
func (s *SwipeDetector) Begin(y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startY = y
	s.start = clockOrReal(s.Clock).Now()
	s.active = true
}

// End finishes the gesture. Moving up (content follows the finger) means
// Next; moving down means Previous.
func (s *SwipeDetector) End(y float64) Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return None
	}
	s.active = false
	if clockOrReal(s.Clock).Since(s.start) > s.MaxDuration {
		return None
	}
	dy := s.startY - y
	switch {
	case dy > s.Distance:
		return Next
	case -dy > s.Distance:
		return Previous
	}
	return None
}

// Cancel abandons an in-progress gesture.
func (s *SwipeDetector) Cancel() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// KeyDirection maps a key name to a direction. handled tells the caller
// to swallow the key so it does not scroll anything else.
func KeyDirection(key string) (d Direction, handled bool) {
	switch key {
	case "down", "right", "j", "tab", "pgdown", " ":
		return Next, true
	case "up", "left", "k", "shift+tab", "pgup":
		return Previous, true
	}
	return None, false
}

func clockOrReal(c clockwork.Clock) clockwork.Clock {
	if c == nil {
		return clockwork.NewRealClock()
	}
	return c
}
