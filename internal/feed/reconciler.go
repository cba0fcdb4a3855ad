package feed

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/cineswipe/internal/apperr"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/otel"
	"github.com/abelbrown/cineswipe/internal/stream"
)

// Source delivers pages into a Reconciler. *stream.Consumer and
// *PagedSource implement it.
type Source interface {
	Start(page int)
	Cancel()
}

// Retrier is implemented by sources that can retry their last page
// themselves.
type Retrier interface {
	Retry()
}

// Rebinder is implemented by sources bound to one content type.
type Rebinder interface {
	SetContentType(ct media.ContentType)
}

// State is a point-in-time copy of the reconciler's view.
type State struct {
	Items       []media.Item
	Loading     bool
	HasMore     bool
	Err         error
	Page        int // last completed page; 0 before the first
	ContentType media.ContentType
	Status      stream.Status
	Label       string
}

// Error returns the human-readable error, or "" when there is none.
func (s State) Error() string {
	return apperr.Message(s.Err)
}

// Options configures a Reconciler.
type Options struct {
	ContentType media.ContentType
	Logger      *log.Logger
	Events      *otel.Logger

	// OnChange, if set, receives every new state. It runs outside the
	// reconciler's lock but may run on a source's goroutine; it must not
	// block.
	OnChange func(State)
}

// Reconciler is the single owner of the feed list. Sources only propose
// items through the stream.Sink methods; deliveries for any page other
// than the one requested are dropped.
type Reconciler struct {
	// flight serialises source control so two page requests never race.
	flight sync.Mutex

	mu        sync.Mutex
	src       Source
	list      *List
	ct        media.ContentType
	page      int
	requested int
	loading   bool
	hasMore   bool
	added     int
	err       error
	status    stream.Status
	label     string

	changes  chan struct{}
	onChange func(State)
	log      *log.Logger
	events   *otel.Logger
}

var _ stream.Sink = (*Reconciler)(nil)

// NewReconciler returns an empty Reconciler. Bind a source before loading.
func NewReconciler(opts Options) *Reconciler {
	ct := opts.ContentType
	if ct == "" {
		ct = media.Movie
	}
	return &Reconciler{
		list:     NewList(),
		ct:       ct,
		hasMore:  true,
		status:   stream.StatusIdle,
		changes:  make(chan struct{}, 1),
		onChange: opts.OnChange,
		log:      logging.OrDiscard(opts.Logger).WithPrefix("feed"),
		events:   opts.Events,
	}
}

// Bind attaches the delivery source.
func (r *Reconciler) Bind(src Source) {
	r.flight.Lock()
	defer r.flight.Unlock()
	r.mu.Lock()
	r.src = src
	r.mu.Unlock()
}

// Changes signals after every state change. Signals coalesce; read
// Snapshot for the current state.
func (r *Reconciler) Changes() <-chan struct{} { return r.changes }

// Snapshot returns the current state.
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Reconciler) stateLocked() State {
	return State{
		Items:       r.list.Items(),
		Loading:     r.loading,
		HasMore:     r.hasMore,
		Err:         r.err,
		Page:        r.page,
		ContentType: r.ct,
		Status:      r.status,
		Label:       r.label,
	}
}

// unlockNotify releases r.mu and publishes the new state.
func (r *Reconciler) unlockNotify() {
	st := r.stateLocked()
	r.mu.Unlock()
	select {
	case r.changes <- struct{}{}:
	default:
	}
	if r.onChange != nil {
		r.onChange(st)
	}
}

// LoadMore requests the next page. It is a no-op while loading or once
// the feed is exhausted.
func (r *Reconciler) LoadMore() bool {
	r.flight.Lock()
	defer r.flight.Unlock()

	r.mu.Lock()
	if r.src == nil || r.loading || !r.hasMore {
		r.mu.Unlock()
		return false
	}
	next := r.page + 1
	r.requested = next
	r.loading = true
	r.added = 0
	r.err = nil
	src := r.src
	r.log.Debug("load more", "page", next, "have", r.list.Len())
	r.events.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindFeedLoadMore, Comp: "feed",
		ContentType: string(r.ct), Page: next, Count: r.list.Len(),
	})
	r.unlockNotify()

	src.Start(next)
	return true
}

// Retry resets the feed and loads page 1 again.
func (r *Reconciler) Retry() { r.Refetch() }

// Refetch resets the feed (empty list, empty seen set, cursor 0) and
// loads page 1.
func (r *Reconciler) Refetch() {
	r.flight.Lock()
	defer r.flight.Unlock()
	r.resetAndStart(nil)
}

// SwitchContentType resets the feed for ct and loads its page 1.
func (r *Reconciler) SwitchContentType(ct media.ContentType) {
	r.flight.Lock()
	defer r.flight.Unlock()
	r.resetAndStart(&ct)
}

func (r *Reconciler) resetAndStart(ct *media.ContentType) {
	r.mu.Lock()
	src := r.src
	r.mu.Unlock()

	// Start tears the previous session down by itself; only a content
	// type change needs the source rebound first.
	if src != nil && ct != nil {
		if rb, ok := src.(Rebinder); ok {
			rb.SetContentType(*ct)
		} else {
			src.Cancel()
		}
	}

	r.mu.Lock()
	if ct != nil {
		r.ct = *ct
	}
	r.resetLocked()
	r.requested = 1
	r.loading = src != nil
	r.log.Info("feed reset", "type", r.ct)
	r.events.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindFeedReset, Comp: "feed",
		ContentType: string(r.ct),
	})
	r.unlockNotify()

	if src != nil {
		src.Start(1)
	}
}

func (r *Reconciler) resetLocked() {
	r.list.Reset()
	r.page = 0
	r.added = 0
	r.hasMore = true
	r.err = nil
}

// Resume retries the failed page without discarding loaded items. It is a
// no-op unless the last request failed. The feed reports loading from the
// moment Resume dispatches, including any retry delay the source applies.
func (r *Reconciler) Resume() bool {
	r.flight.Lock()
	defer r.flight.Unlock()

	r.mu.Lock()
	if r.src == nil || r.loading || r.err == nil {
		r.mu.Unlock()
		return false
	}
	src, page := r.src, max(r.requested, 1)
	r.loading = true
	r.err = nil
	r.log.Debug("resume", "page", page, "have", r.list.Len())
	r.unlockNotify()

	if rt, ok := src.(Retrier); ok {
		rt.Retry()
	} else {
		src.Start(page)
	}
	return true
}

// Cancel stops the in-flight request, if any.
func (r *Reconciler) Cancel() {
	r.flight.Lock()
	defer r.flight.Unlock()
	r.mu.Lock()
	src := r.src
	r.mu.Unlock()
	if src != nil {
		src.Cancel()
	}
}

// Begin implements stream.Sink. A page other than the requested one starts
// fresh, and page 1 then also starts a fresh list. Beginning the requested
// page again is a redelivery: items it already added still count towards
// the page.
func (r *Reconciler) Begin(page int) {
	r.mu.Lock()
	if page != r.requested {
		if page <= 1 {
			r.resetLocked()
		}
		r.requested = page
		r.added = 0
	}
	r.loading = true
	r.err = nil
	r.unlockNotify()
}

// Append implements stream.Sink.
func (r *Reconciler) Append(page int, item media.Item) {
	r.mu.Lock()
	if page != r.requested || !r.loading {
		r.mu.Unlock()
		return
	}
	if r.list.Add(item) == 0 {
		r.mu.Unlock()
		return
	}
	r.added++
	r.unlockNotify()
}

// Progress implements stream.Sink.
func (r *Reconciler) Progress(page int, status stream.Status, label string) {
	r.mu.Lock()
	if page != r.requested {
		r.mu.Unlock()
		return
	}
	r.status = status
	r.label = label
	r.unlockNotify()
}

// Complete implements stream.Sink. The canonical list is merged through
// the dedup path; a page that contributed nothing new ends the feed
// whatever the provider claims.
func (r *Reconciler) Complete(page int, items []media.Item, hasMore bool) {
	r.mu.Lock()
	if page != r.requested || !r.loading {
		r.mu.Unlock()
		return
	}
	r.added += r.list.Add(items...)
	r.page = page
	r.loading = false
	r.err = nil
	r.hasMore = hasMore && r.added > 0
	r.log.Debug("page complete", "page", page, "added", r.added, "total", r.list.Len(), "hasMore", r.hasMore)
	r.events.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindFeedPage, Comp: "feed",
		ContentType: string(r.ct), Page: page, Count: r.added,
		Attrs: map[string]any{"total": r.list.Len(), "hasMore": r.hasMore},
	})
	r.unlockNotify()
}

// Fail implements stream.Sink.
func (r *Reconciler) Fail(page int, err error) {
	r.mu.Lock()
	if page != r.requested || !r.loading {
		r.mu.Unlock()
		return
	}
	r.loading = false
	r.err = err
	r.log.Warn("page failed", "page", page, "err", err)
	r.unlockNotify()
}

// Canceled implements stream.Sink.
func (r *Reconciler) Canceled(page int) {
	r.mu.Lock()
	if page != r.requested || !r.loading {
		r.mu.Unlock()
		return
	}
	r.loading = false
	r.unlockNotify()
}

// ContentType returns the current content type.
func (r *Reconciler) ContentType() media.ContentType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ct
}

// Len returns the number of items.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list.Len()
}
