package feed

import (
	"errors"
	"reflect"
	"testing"

	"github.com/abelbrown/cineswipe/internal/apperr"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/stream"
)

// syncSource records control calls and opens sessions synchronously.
type syncSource struct {
	sink    stream.Sink
	starts  []int
	cancels int
	retries int
	ct      media.ContentType
}

func (s *syncSource) Start(page int) {
	s.starts = append(s.starts, page)
	s.sink.Begin(page)
}
func (s *syncSource) Cancel()                            { s.cancels++ }
func (s *syncSource) Retry()                             { s.retries++ }
func (s *syncSource) SetContentType(ct media.ContentType) { s.ct = ct }

func newReconciler() (*Reconciler, *syncSource) {
	r := NewReconciler(Options{})
	src := &syncSource{sink: r}
	r.Bind(src)
	return r, src
}

func TestDedupAcrossPagesAndSessions(t *testing.T) {
	r, _ := newReconciler()
	r.Refetch()
	r.Append(1, media.Item{ID: 1})
	r.Append(1, media.Item{ID: 2})
	r.Append(1, media.Item{ID: 1})
	r.Complete(1, items(2, 3, 1), true)

	r.LoadMore()
	r.Append(2, media.Item{ID: 3})
	r.Append(2, media.Item{ID: 4})
	r.Complete(2, items(5, 4, 2), true)

	r.LoadMore()
	r.Complete(3, items(6, 1, 6, 7), true)

	st := r.Snapshot()
	if got := ids(st.Items); !reflect.DeepEqual(got, []int{1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("items = %v", got)
	}
	if st.Page != 3 || !st.HasMore || st.Loading {
		t.Errorf("state = %+v", st)
	}
}

func TestLoadMoreGuards(t *testing.T) {
	r, src := newReconciler()
	r.Refetch()
	if r.LoadMore() {
		t.Error("LoadMore while loading page 1")
	}
	r.Complete(1, items(1, 2), true)
	if !r.LoadMore() {
		t.Fatal("LoadMore refused with hasMore")
	}
	if r.LoadMore() {
		t.Error("second LoadMore while loading")
	}
	r.Complete(2, items(3), false)
	if r.LoadMore() {
		t.Error("LoadMore after exhaustion")
	}
	if !reflect.DeepEqual(src.starts, []int{1, 2}) {
		t.Errorf("starts = %v", src.starts)
	}
}

func TestDuplicateOnlyPageExhaustsFeed(t *testing.T) {
	r, _ := newReconciler()
	r.Refetch()
	r.Complete(1, items(1, 2, 3), true)
	r.LoadMore()
	r.Complete(2, items(3, 2, 1), true)
	if st := r.Snapshot(); st.HasMore {
		t.Error("duplicate-only page kept hasMore")
	}
}

func TestEmptyFirstPageIsNotAnError(t *testing.T) {
	r, _ := newReconciler()
	r.Refetch()
	r.Complete(1, nil, true)
	st := r.Snapshot()
	if len(st.Items) != 0 || st.HasMore || st.Err != nil || st.Loading || st.Error() != "" {
		t.Errorf("state = %+v", st)
	}
}

func TestStaleDeliveriesDropped(t *testing.T) {
	r, _ := newReconciler()
	r.Refetch()
	r.Complete(1, items(1), true)
	r.LoadMore()

	// Late deliveries for page 1 and early ones for page 3.
	r.Append(1, media.Item{ID: 50})
	r.Append(3, media.Item{ID: 51})
	r.Complete(1, items(52), true)
	r.Fail(3, errors.New("stale"))
	r.Progress(1, stream.StatusError, "stale")

	st := r.Snapshot()
	if got := ids(st.Items); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("items = %v", got)
	}
	if !st.Loading || st.Err != nil || st.Label == "stale" {
		t.Errorf("state = %+v", st)
	}

	// Nothing is accepted after the page finished.
	r.Complete(2, items(2), true)
	r.Append(2, media.Item{ID: 99})
	if got := ids(r.Snapshot().Items); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("items = %v", got)
	}
}

func TestRetryResetsList(t *testing.T) {
	r, src := newReconciler()
	r.Refetch()
	r.Complete(1, items(1, 2), true)
	r.LoadMore()
	r.Fail(2, apperr.Newf(apperr.KindStream, "test", "Streaming connection failed"))

	st := r.Snapshot()
	if st.Error() != "Streaming connection failed" || st.Loading {
		t.Fatalf("state = %+v", st)
	}

	r.Retry()
	st = r.Snapshot()
	if len(st.Items) != 0 || st.Page != 0 || !st.Loading || st.Err != nil || !st.HasMore {
		t.Errorf("after Retry state = %+v", st)
	}
	if got := src.starts[len(src.starts)-1]; got != 1 {
		t.Errorf("Retry started page %d", got)
	}
	// Ids from before the reset are accepted again.
	r.Complete(1, items(2, 1), true)
	if got := ids(r.Snapshot().Items); !reflect.DeepEqual(got, []int{2, 1}) {
		t.Errorf("items = %v", got)
	}
}

func TestResumeKeepsItems(t *testing.T) {
	r, src := newReconciler()
	if r.Resume() {
		t.Error("Resume without failure")
	}
	r.Refetch()
	r.Complete(1, items(1, 2), true)
	r.LoadMore()
	r.Fail(2, errors.New("boom"))

	if !r.Resume() {
		t.Fatal("Resume refused after failure")
	}
	if src.retries != 1 {
		t.Errorf("retries = %d", src.retries)
	}
	if len(r.Snapshot().Items) != 2 {
		t.Error("Resume dropped items")
	}
}

func TestResumeRedeliveryKeepsHasMore(t *testing.T) {
	r, _ := newReconciler()
	r.Refetch()
	r.Complete(1, items(1, 2, 3, 4, 5), true)
	r.LoadMore()
	for _, it := range items(6, 7, 8, 9, 10) {
		r.Append(2, it)
	}
	r.Fail(2, errors.New("connection dropped"))

	// The source streams page 2 again from the start.
	r.Resume()
	r.Begin(2)
	r.Complete(2, items(6, 7, 8, 9, 10), true)

	st := r.Snapshot()
	if got := ids(st.Items); !reflect.DeepEqual(got, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("items = %v", got)
	}
	if !st.HasMore || st.Page != 2 || st.Err != nil || st.Loading {
		t.Errorf("state = %+v, want page 2 with more to load", st)
	}
	if !r.LoadMore() {
		t.Error("LoadMore refused after a resumed page")
	}
}

func TestResumeMarksLoadingUntilRedelivery(t *testing.T) {
	r, src := newReconciler()
	r.Refetch()
	r.Complete(1, items(1, 2), true)
	r.LoadMore()
	r.Fail(2, errors.New("boom"))

	if !r.Resume() {
		t.Fatal("Resume refused after failure")
	}
	st := r.Snapshot()
	if !st.Loading || st.Err != nil {
		t.Errorf("after Resume state = %+v, want loading without error", st)
	}
	if r.Resume() {
		t.Error("second Resume during the retry delay was accepted")
	}
	if r.LoadMore() {
		t.Error("LoadMore during the retry delay was accepted")
	}
	if src.retries != 1 {
		t.Errorf("retries = %d, want 1", src.retries)
	}

	// A cancel during the delay ends the loading state.
	r.Canceled(2)
	if r.Snapshot().Loading {
		t.Error("still loading after cancel")
	}
}

func TestSwitchContentType(t *testing.T) {
	r, src := newReconciler()
	r.Refetch()
	r.Complete(1, items(1, 2), true)

	r.SwitchContentType(media.Anime)
	st := r.Snapshot()
	if st.ContentType != media.Anime || src.ct != media.Anime {
		t.Errorf("content type = %s / %s", st.ContentType, src.ct)
	}
	if len(st.Items) != 0 || !st.Loading {
		t.Errorf("state = %+v", st)
	}
	if src.cancels != 0 {
		t.Error("rebinder source should be rebound, not canceled")
	}
}

func TestCanceledStopsLoading(t *testing.T) {
	r, src := newReconciler()
	r.Refetch()
	r.Cancel()
	if src.cancels != 1 {
		t.Errorf("cancels = %d", src.cancels)
	}
	r.Canceled(1)
	if st := r.Snapshot(); st.Loading || st.Err != nil {
		t.Errorf("state = %+v", st)
	}
}

func TestChangeNotifications(t *testing.T) {
	var states []State
	r := NewReconciler(Options{OnChange: func(s State) { states = append(states, s) }})
	src := &syncSource{sink: r}
	r.Bind(src)

	r.Refetch()
	r.Append(1, media.Item{ID: 1})
	r.Append(1, media.Item{ID: 1}) // duplicate: no change
	r.Complete(1, items(1), false)

	select {
	case <-r.Changes():
	default:
		t.Error("Changes() not signalled")
	}
	select {
	case <-r.Changes():
		t.Error("Changes() did not coalesce")
	default:
	}

	last := states[len(states)-1]
	if last.Loading || last.HasMore || len(last.Items) != 1 {
		t.Errorf("last state = %+v", last)
	}
}

func TestUnboundReconcilerIsInert(t *testing.T) {
	r := NewReconciler(Options{})
	if r.LoadMore() {
		t.Error("LoadMore without source")
	}
	r.Refetch()
	if r.Snapshot().Loading {
		t.Error("loading without a source")
	}
}
