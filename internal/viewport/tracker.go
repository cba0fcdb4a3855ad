// Package viewport tracks which rendered cards are on screen.
//
// The rendering layer registers one Handle per mounted card in a Registry.
// The Registry feeds a Tracker, which measures each handle against the
// current viewport whenever the layout changes and reports threshold
// crossings in index order.
package viewport

import (
	"sort"
	"sync"
)

// DefaultThreshold is the visible fraction at which a card counts as shown.
const DefaultThreshold = 0.6

// Rect is a vertical span in content coordinates.
type Rect struct {
	Top    float64
	Height float64
}

// Bottom returns the exclusive lower edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Grow returns r extended by m on both edges. Negative m shrinks it.
func (r Rect) Grow(m float64) Rect {
	h := r.Height + 2*m
	if h < 0 {
		h = 0
	}
	return Rect{Top: r.Top - m, Height: h}
}

// Ratio returns the fraction of bounds that lies inside view, in [0,1].
// Empty bounds are never visible.
func Ratio(view, bounds Rect) float64 {
	if bounds.Height <= 0 {
		return 0
	}
	top := max(view.Top, bounds.Top)
	bottom := min(view.Bottom(), bounds.Bottom())
	if bottom <= top {
		return 0
	}
	return min((bottom-top)/bounds.Height, 1)
}

// Handle is a live, measurable card.
type Handle interface {
	Bounds() Rect
}

// Entry reports one handle's visibility.
type Entry struct {
	Index   int
	Ratio   float64
	Crossed bool // Ratio >= threshold
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	Threshold  float64
	RootMargin float64
}

func (o TrackerOptions) withDefaults() TrackerOptions {
	if o.Threshold <= 0 || o.Threshold > 1 {
		o.Threshold = DefaultThreshold
	}
	return o
}

type target struct {
	h        Handle
	reported bool
	crossed  bool
}

// Tracker measures observed handles against the viewport. It never polls:
// measurements happen on Observe and Layout only. The callback runs outside
// the tracker's lock and receives entries sorted by index.
type Tracker struct {
	mu           sync.Mutex
	opts         TrackerOptions
	cb           func([]Entry)
	targets      map[int]*target
	view         Rect
	hasView      bool
	disconnected bool
}

// NewTracker returns a Tracker that delivers batches to cb.
func NewTracker(opts TrackerOptions, cb func([]Entry)) *Tracker {
	return &Tracker{
		opts:    opts.withDefaults(),
		cb:      cb,
		targets: make(map[int]*target),
	}
}

// Threshold returns the effective threshold.
func (t *Tracker) Threshold() float64 { return t.opts.Threshold }

// Observe starts watching h at index, replacing whatever was there. If a
// viewport is already known the handle is measured immediately.
func (t *Tracker) Observe(index int, h Handle) {
	if h == nil {
		t.Unobserve(index)
		return
	}
	t.mu.Lock()
	if t.disconnected {
		t.mu.Unlock()
		return
	}
	tg := &target{h: h}
	t.targets[index] = tg
	var batch []Entry
	if t.hasView {
		if e, ok := t.measureLocked(index, tg); ok {
			batch = []Entry{e}
		}
	}
	t.mu.Unlock()
	t.deliver(batch)
}

// Unobserve stops watching index. No-op when absent.
func (t *Tracker) Unobserve(index int) {
	t.mu.Lock()
	delete(t.targets, index)
	t.mu.Unlock()
}

// Layout records the current viewport and re-measures every handle.
func (t *Tracker) Layout(view Rect) {
	t.mu.Lock()
	if t.disconnected {
		t.mu.Unlock()
		return
	}
	t.view = view
	t.hasView = true
	var batch []Entry
	for idx, tg := range t.targets {
		if e, ok := t.measureLocked(idx, tg); ok {
			batch = append(batch, e)
		}
	}
	t.mu.Unlock()
	sort.Slice(batch, func(i, j int) bool { return batch[i].Index < batch[j].Index })
	t.deliver(batch)
}

// Observed returns the number of watched handles.
func (t *Tracker) Observed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.targets)
}

// Disconnect drops every handle and ignores further calls.
func (t *Tracker) Disconnect() {
	t.mu.Lock()
	t.targets = make(map[int]*target)
	t.disconnected = true
	t.mu.Unlock()
}

// measureLocked reports an entry on first measurement and on every flip
// of the crossed state.
func (t *Tracker) measureLocked(index int, tg *target) (Entry, bool) {
	ratio := Ratio(t.view.Grow(t.opts.RootMargin), tg.h.Bounds())
	crossed := ratio >= t.opts.Threshold
	if tg.reported && crossed == tg.crossed {
		return Entry{}, false
	}
	tg.reported = true
	tg.crossed = crossed
	return Entry{Index: index, Ratio: ratio, Crossed: crossed}, true
}

func (t *Tracker) deliver(batch []Entry) {
	if len(batch) == 0 || t.cb == nil {
		return
	}
	t.cb(batch)
}
