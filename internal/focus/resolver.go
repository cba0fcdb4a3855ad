// Package focus decides which card is active.
//
// A Resolver turns visibility batches into one committed index. Candidates
// are debounced so a fast scroll that sweeps across several cards commits
// only where it comes to rest. The resolver also raises a near-end signal
// once per item count so the feed can prefetch the next page.
package focus

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/abelbrown/cineswipe/internal/viewport"
)

// Defaults.
const (
	DefaultDebounce      = 120 * time.Millisecond
	DefaultNearEndOffset = 3
)

// Options configures a Resolver.
type Options struct {
	Threshold      float64
	Debounce       time.Duration
	NearEndOffset  int
	Clock          clockwork.Clock
	OnActiveChange func(index int)
	OnNearEnd      func()
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 || o.Threshold > 1 {
		o.Threshold = viewport.DefaultThreshold
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.NearEndOffset <= 0 {
		o.NearEndOffset = DefaultNearEndOffset
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Resolver holds the committed active index. Callbacks never run with the
// resolver's lock held.
type Resolver struct {
	mu   sync.Mutex
	opts Options

	active     int
	pending    int
	hasPending bool
	timer      clockwork.Timer
	gen        uint64

	itemCount int
	firedFor  int // itemCount the near-end signal last fired for, -1 when armed
	stopped   bool
}

// New returns a Resolver with active index 0.
func New(opts Options) *Resolver {
	return &Resolver{opts: opts.withDefaults(), firedFor: -1}
}

// Select picks the entry with the highest ratio at or above threshold,
// lowest index on ties.
func Select(entries []viewport.Entry, threshold float64) (int, bool) {
	best, bestRatio, found := 0, 0.0, false
	for _, e := range entries {
		if e.Ratio < threshold {
			continue
		}
		if !found || e.Ratio > bestRatio || (e.Ratio == bestRatio && e.Index < best) {
			best, bestRatio, found = e.Index, e.Ratio, true
		}
	}
	return best, found
}

// Observe feeds one visibility batch. A candidate re-arms the debounce
// timer; a batch without one leaves state and timer alone.
func (r *Resolver) Observe(entries []viewport.Entry) {
	cand, ok := Select(entries, r.opts.Threshold)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.pending = cand
	r.hasPending = true
	r.gen++
	gen := r.gen
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = r.opts.Clock.AfterFunc(r.opts.Debounce, func() { r.commit(gen) })
}

func (r *Resolver) commit(gen uint64) {
	r.mu.Lock()
	if r.stopped || gen != r.gen || !r.hasPending {
		r.mu.Unlock()
		return
	}
	r.hasPending = false
	r.timer = nil
	next := r.pending
	changed := next != r.active
	r.active = next
	nearEnd := r.nearEndLocked()
	onChange, onNearEnd := r.opts.OnActiveChange, r.opts.OnNearEnd
	r.mu.Unlock()

	if changed && onChange != nil {
		onChange(next)
	}
	if nearEnd && onNearEnd != nil {
		onNearEnd()
	}
}

// nearEndLocked reports whether the near-end signal should fire now and
// records that it has.
func (r *Resolver) nearEndLocked() bool {
	if r.itemCount <= 0 || r.firedFor == r.itemCount {
		return false
	}
	if r.active < max(r.itemCount-r.opts.NearEndOffset, 0) {
		return false
	}
	r.firedFor = r.itemCount
	return true
}

// SetItemCount records how many items the feed holds. A changed count
// re-arms the near-end signal and re-evaluates it; the callback is
// dispatched on its own goroutine because callers are usually inside a
// list-change notification.
func (r *Resolver) SetItemCount(n int) {
	r.mu.Lock()
	if r.stopped || n == r.itemCount {
		r.mu.Unlock()
		return
	}
	r.itemCount = n
	r.firedFor = -1
	nearEnd := r.nearEndLocked()
	onNearEnd := r.opts.OnNearEnd
	r.mu.Unlock()

	if nearEnd && onNearEnd != nil {
		go onNearEnd()
	}
}

// Reset returns to index 0 with no pending candidate and no items, as for a
// fresh feed list.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
	r.active = 0
	r.itemCount = 0
	r.firedFor = -1
}

// Active returns the committed index.
func (r *Resolver) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Pending returns the uncommitted candidate, if any.
func (r *Resolver) Pending() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending, r.hasPending
}

// ItemCount returns the last count passed to SetItemCount.
func (r *Resolver) ItemCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.itemCount
}

// Stop cancels any pending commit. Later calls are ignored.
func (r *Resolver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
	r.stopped = true
}

func (r *Resolver) cancelLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.hasPending = false
	r.gen++
}
