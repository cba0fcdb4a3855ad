package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/abelbrown/cineswipe/internal/apperr"
	"github.com/abelbrown/cineswipe/internal/media"
)

type fetchFunc func(ctx context.Context, ct media.ContentType, page int) (media.FeedPage, error)

func (f fetchFunc) FetchFeedPage(ctx context.Context, ct media.ContentType, page int) (media.FeedPage, error) {
	return f(ctx, ct, page)
}

func waitFor(t *testing.T, r *Reconciler, cond func(State) bool) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if st := r.Snapshot(); cond(st) {
			return st
		}
		select {
		case <-r.Changes():
		case <-deadline:
			t.Fatalf("condition not met; state = %+v", r.Snapshot())
		}
	}
}

func TestPagedSourceLoadsPages(t *testing.T) {
	var seen []string
	f := fetchFunc(func(_ context.Context, ct media.ContentType, page int) (media.FeedPage, error) {
		seen = append(seen, string(ct))
		return media.FeedPage{Movies: items(page*10+1, page*10+2), Page: page, HasMore: page < 2}, nil
	})
	r := NewReconciler(Options{ContentType: media.TV})
	r.Bind(NewPagedSource(f, media.TV, r, nil))

	r.Refetch()
	waitFor(t, r, func(s State) bool { return !s.Loading && s.Page == 1 })
	r.LoadMore()
	st := waitFor(t, r, func(s State) bool { return !s.Loading && s.Page == 2 })

	if got := ids(st.Items); !reflect.DeepEqual(got, []int{11, 12, 21, 22}) {
		t.Errorf("items = %v", got)
	}
	if st.HasMore {
		t.Error("hasMore after last page")
	}
	if !reflect.DeepEqual(seen, []string{"tv", "tv"}) {
		t.Errorf("fetched types = %v", seen)
	}
}

func TestPagedSourceSupersedesSlowFetch(t *testing.T) {
	release := make(chan struct{})
	f := fetchFunc(func(ctx context.Context, ct media.ContentType, page int) (media.FeedPage, error) {
		if ct == media.Movie {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return media.FeedPage{Movies: items(1), Page: 1, HasMore: true}, nil
		}
		return media.FeedPage{Movies: items(900), Page: 1, HasMore: false}, nil
	})
	r := NewReconciler(Options{})
	r.Bind(NewPagedSource(f, media.Movie, r, nil))

	r.Refetch()
	r.SwitchContentType(media.Anime)
	close(release)

	st := waitFor(t, r, func(s State) bool { return !s.Loading })
	time.Sleep(20 * time.Millisecond)
	st = r.Snapshot()
	if got := ids(st.Items); !reflect.DeepEqual(got, []int{900}) {
		t.Errorf("items = %v, stale movie page leaked", got)
	}
}

func TestPagedSourceFailureAndResume(t *testing.T) {
	calls := 0
	f := fetchFunc(func(_ context.Context, _ media.ContentType, page int) (media.FeedPage, error) {
		calls++
		if calls == 1 {
			return media.FeedPage{}, apperr.FromStatus("feed.page", http.StatusServiceUnavailable, "")
		}
		return media.FeedPage{Movies: items(7), Page: page, HasMore: true}, nil
	})
	r := NewReconciler(Options{})
	r.Bind(NewPagedSource(f, media.Movie, r, nil))

	r.Refetch()
	st := waitFor(t, r, func(s State) bool { return !s.Loading })
	if st.Err == nil || apperr.KindOf(st.Err) != apperr.KindUnavailable {
		t.Fatalf("err = %v", st.Err)
	}
	if !r.Resume() {
		t.Fatal("Resume refused")
	}
	st = waitFor(t, r, func(s State) bool { return !s.Loading && s.Page == 1 })
	if len(st.Items) != 1 || st.Err != nil {
		t.Errorf("state = %+v", st)
	}
}

func TestHTTPPageFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/feed/anime":
			if r.URL.Query().Get("page") != "2" {
				t.Errorf("page = %q", r.URL.Query().Get("page"))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"movies":[{"id":4,"title":"Mononoke"}],"page":2,"totalPages":5,"hasMore":true}`))
		case "/api/feed/tv":
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"slow down"}`))
		default:
			w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	f := NewHTTPPageFetcher(srv.URL+"/", time.Second)
	ctx := context.Background()

	pg, err := f.FetchFeedPage(ctx, media.Anime, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pg.Movies) != 1 || pg.Movies[0].Title != "Mononoke" || !pg.HasMore || pg.TotalPages != 5 {
		t.Errorf("page = %+v", pg)
	}

	_, err = f.FetchFeedPage(ctx, media.TV, 1)
	if apperr.KindOf(err) != apperr.KindRateLimit {
		t.Errorf("429 kind = %v", apperr.KindOf(err))
	}

	_, err = f.FetchFeedPage(ctx, media.Movie, 1)
	if apperr.KindOf(err) != apperr.KindDecode {
		t.Errorf("bad body kind = %v", apperr.KindOf(err))
	}

	srv.Close()
	_, err = f.FetchFeedPage(ctx, media.Movie, 1)
	var ae *apperr.Error
	if !errors.As(err, &ae) || !apperr.Retryable(err) {
		t.Errorf("transport error = %v", err)
	}
}
