// Package engine wires the feed's parts into the one surface the rendering
// layer uses: visibility tracking feeds the active-index resolver, the
// resolver's near-end signal pages the reconciler, and navigation scrolls
// between registered cards.
package engine

import (
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/abelbrown/cineswipe/internal/feed"
	"github.com/abelbrown/cineswipe/internal/focus"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/nav"
	"github.com/abelbrown/cineswipe/internal/otel"
	"github.com/abelbrown/cineswipe/internal/stream"
	"github.com/abelbrown/cineswipe/internal/viewport"
)

// SourceFunc builds the delivery source for a reconciler.
type SourceFunc func(sink stream.Sink, ct media.ContentType) feed.Source

// StreamSource delivers through the backend's SSE endpoint.
func StreamSource(opts stream.Options) SourceFunc {
	return func(sink stream.Sink, ct media.ContentType) feed.Source {
		opts.ContentType = ct
		return stream.NewConsumer(opts, sink)
	}
}

// PagedSource delivers whole pages from f.
func PagedSource(f feed.PageFetcher, logger *log.Logger) SourceFunc {
	return func(sink stream.Sink, ct media.ContentType) feed.Source {
		return feed.NewPagedSource(f, ct, sink, logger)
	}
}

// Options configures an Engine.
type Options struct {
	ContentType   media.ContentType
	Threshold     float64
	RootMargin    float64
	Debounce      time.Duration
	NearEndOffset int
	Clock         clockwork.Clock

	// Scroller performs transitions. Nil makes navigation a no-op that
	// still reports whether a transition would have been issued.
	Scroller nav.Scroller

	Logger *log.Logger
	Events *otel.Logger
}

// Engine is the feed surface. All methods are goroutine-safe.
type Engine struct {
	feed     *feed.Reconciler
	src      feed.Source
	tracker  *viewport.Tracker
	registry *viewport.Registry
	focus    *focus.Resolver
	nav      *nav.Controller
	log      *log.Logger
	events   *otel.Logger

	mu      sync.Mutex
	lastLen int
	closed  bool

	changes chan struct{}
}

// New builds an Engine whose reconciler is fed by the source newSource
// returns. Call Start to load the first page.
func New(newSource SourceFunc, opts Options) *Engine {
	ct := opts.ContentType
	if ct == "" {
		ct = media.Movie
	}
	e := &Engine{
		log:     logging.OrDiscard(opts.Logger).WithPrefix("engine"),
		events:  opts.Events,
		changes: make(chan struct{}, 1),
	}

	e.feed = feed.NewReconciler(feed.Options{
		ContentType: ct,
		Logger:      opts.Logger,
		Events:      opts.Events,
		OnChange:    e.onFeedChange,
	})
	e.src = newSource(e.feed, ct)
	e.feed.Bind(e.src)

	e.focus = focus.New(focus.Options{
		Threshold:      opts.Threshold,
		Debounce:       opts.Debounce,
		NearEndOffset:  opts.NearEndOffset,
		Clock:          opts.Clock,
		OnActiveChange: e.onActiveChange,
		OnNearEnd:      e.onNearEnd,
	})
	e.tracker = viewport.NewTracker(viewport.TrackerOptions{
		Threshold:  opts.Threshold,
		RootMargin: opts.RootMargin,
	}, e.onVisibility)
	e.registry = viewport.NewRegistry(e.tracker)

	scroller := opts.Scroller
	if scroller == nil {
		scroller = nav.ScrollerFunc(func(int, viewport.Handle) {})
	}
	e.nav = nav.NewController(nav.Config{
		Handles:      e.registry,
		Scroller:     scroller,
		Active:       e.focus.Active,
		Count:        e.feed.Len,
		OnTransition: e.onTransition,
	})
	return e
}

// Start loads the first page.
func (e *Engine) Start() {
	e.feed.LoadMore()
}

// Close stops timers, disconnects the tracker and cancels delivery.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.focus.Stop()
	e.tracker.Disconnect()
	e.registry.Clear()
	e.feed.Cancel()
}

// Changes signals after any change to the feed or the active index.
// Signals coalesce.
func (e *Engine) Changes() <-chan struct{} { return e.changes }

func (e *Engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

// Snapshot returns the reconciler's state.
func (e *Engine) Snapshot() feed.State { return e.feed.Snapshot() }

// Movies returns the feed items in display order.
func (e *Engine) Movies() []media.Item { return e.feed.Snapshot().Items }

// Loading reports whether a page is in flight.
func (e *Engine) Loading() bool { return e.feed.Snapshot().Loading }

// Error returns the human-readable error, or "" when there is none.
func (e *Engine) Error() string { return e.feed.Snapshot().Error() }

// HasMore reports whether another page may exist.
func (e *Engine) HasMore() bool { return e.feed.Snapshot().HasMore }

// Status returns the delivery status.
func (e *Engine) Status() stream.Status { return e.feed.Snapshot().Status }

// ContentType returns the feed's content type.
func (e *Engine) ContentType() media.ContentType { return e.feed.ContentType() }

// LoadMore requests the next page; see feed.Reconciler.LoadMore.
func (e *Engine) LoadMore() bool { return e.feed.LoadMore() }

// Retry resets the feed and loads page 1 again.
func (e *Engine) Retry() {
	e.resetFocus()
	e.feed.Retry()
}

// Resume retries only the failed page, keeping the items already shown.
func (e *Engine) Resume() bool { return e.feed.Resume() }

// SwitchContentType resets the feed for ct.
func (e *Engine) SwitchContentType(ct media.ContentType) {
	e.resetFocus()
	e.feed.SwitchContentType(ct)
}

func (e *Engine) resetFocus() {
	e.focus.Reset()
	e.mu.Lock()
	e.lastLen = 0
	e.mu.Unlock()
}

// ActiveIndex returns the committed active index.
func (e *Engine) ActiveIndex() int { return e.focus.Active() }

// RegisterCard binds a mounted card to index.
func (e *Engine) RegisterCard(index int, h viewport.Handle) { e.registry.Register(index, h) }

// UnregisterCard removes whatever card is bound to index.
func (e *Engine) UnregisterCard(index int) { e.registry.Unregister(index) }

// ReleaseCard removes h from index only if it is still the bound card.
func (e *Engine) ReleaseCard(index int, h viewport.Handle) bool {
	return e.registry.Release(index, h)
}

// Layout reports the current viewport after a scroll, resize or layout.
func (e *Engine) Layout(view viewport.Rect) { e.tracker.Layout(view) }

// GoNext moves to the next card.
func (e *Engine) GoNext() bool { return e.nav.GoNext() }

// GoPrevious moves to the previous card.
func (e *Engine) GoPrevious() bool { return e.nav.GoPrevious() }

// ScrollToIndex moves to index.
func (e *Engine) ScrollToIndex(index int) bool { return e.nav.ScrollToIndex(index) }

// Navigate applies a normalised input direction.
func (e *Engine) Navigate(d nav.Direction) bool { return e.nav.Apply(d) }

// onFeedChange may run on a source goroutine with the source's lock held,
// so it must never call back into the source.
func (e *Engine) onFeedChange(st feed.State) {
	n := len(st.Items)
	e.mu.Lock()
	shrank := n < e.lastLen
	e.lastLen = n
	e.mu.Unlock()

	if shrank {
		// A source-initiated restart of page 1.
		e.focus.Reset()
	}
	// Items arriving mid-stream do not re-arm the near-end signal; the
	// count is settled once the page is done.
	if !st.Loading {
		e.focus.SetItemCount(n)
	}
	e.notify()
}

func (e *Engine) onActiveChange(index int) {
	e.log.Debug("active", "index", index)
	e.events.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindFocusCommit, Comp: "focus", Index: index,
	})
	e.notify()
}

func (e *Engine) onNearEnd() {
	st := e.feed.Snapshot()
	e.events.Emit(otel.Event{
		Level: otel.LevelDebug, Kind: otel.KindFocusNearEnd, Comp: "focus",
		Index: e.focus.Active(), Count: len(st.Items),
	})
	if !st.HasMore || st.Loading {
		return
	}
	e.feed.LoadMore()
}

func (e *Engine) onVisibility(batch []viewport.Entry) {
	if otel.TraceEnabled() {
		attrs := make(map[string]any, len(batch))
		for _, en := range batch {
			attrs[strconv.Itoa(en.Index)] = en.Ratio
		}
		e.events.Emit(otel.Event{
			Level: otel.LevelDebug, Kind: otel.KindFocusBatch, Comp: "focus",
			Count: len(batch), Attrs: attrs,
		})
	}
	e.focus.Observe(batch)
}

func (e *Engine) onTransition(from, to int) {
	e.events.Emit(otel.Event{
		Level: otel.LevelDebug, Kind: otel.KindNavigate, Comp: "nav",
		Index: to, Attrs: map[string]any{"from": from},
	})
}
