package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/abelbrown/cineswipe/internal/apperr"
	"github.com/abelbrown/cineswipe/internal/assemble"
	"github.com/abelbrown/cineswipe/internal/engine"
	"github.com/abelbrown/cineswipe/internal/feed"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/stream"
)

type fakeProvider struct {
	n, total int
	fail     map[int]bool
	pageErr  error
}

func (p *fakeProvider) FetchPage(ctx context.Context, ct media.ContentType, page int) (media.Page, error) {
	if p.pageErr != nil {
		return media.Page{}, p.pageErr
	}
	out := media.Page{Page: page, TotalPages: p.total}
	for i := 1; i <= p.n; i++ {
		out.Items = append(out.Items, media.Summary{ID: page*100 + i})
	}
	return out, nil
}

func (p *fakeProvider) FetchItemDetail(ctx context.Context, id int, ct media.ContentType) (media.ItemDetail, error) {
	if p.fail[id%100] {
		return media.ItemDetail{}, apperr.FromStatus("tmdb.detail", 500, "")
	}
	return media.ItemDetail{ID: id, Title: fmt.Sprint(id), ReleaseDate: "2024-05-01"}, nil
}

func newTestServer(t *testing.T, p *fakeProvider) (*Server, *httptest.Server) {
	t.Helper()
	m := NewMetrics()
	a := assemble.New(p, assemble.Options{PriorityCount: 3, BatchSize: 4, OnDrop: m.ItemDropped})
	s := New(a, Options{Metrics: m})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func waitFor(t *testing.T, e *engine.Engine, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-e.Changes():
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func TestStreamThroughEngine(t *testing.T) {
	s, ts := newTestServer(t, &fakeProvider{n: 10, total: 4, fail: map[int]bool{5: true}})
	e := engine.New(engine.StreamSource(stream.Options{BaseURL: ts.URL}), engine.Options{
		ContentType: media.TV,
		Clock:       clockwork.NewFakeClock(),
	})
	defer e.Close()

	e.Start()
	waitFor(t, e, "page 1", func() bool { return !e.Loading() && e.Snapshot().Page == 1 })

	if n := len(e.Movies()); n != 9 {
		t.Errorf("items = %d, want 9", n)
	}
	if !e.HasMore() || e.Error() != "" {
		t.Errorf("hasMore=%v err=%q", e.HasMore(), e.Error())
	}
	if e.Status() != stream.StatusComplete {
		t.Errorf("status = %s", e.Status())
	}
	if got := e.Movies()[0].ReleaseYear; got != "2024" {
		t.Errorf("release year = %q", got)
	}

	m := s.Metrics()
	if got := testutil.ToFloat64(m.StreamsOpened.WithLabelValues("tv")); got != 1 {
		t.Errorf("streams opened = %v", got)
	}
	if got := testutil.ToFloat64(m.ItemsEmitted.WithLabelValues("tv", "priority")); got != 3 {
		t.Errorf("priority items = %v", got)
	}
	if got := testutil.ToFloat64(m.ItemsEmitted.WithLabelValues("tv", "background")); got != 6 {
		t.Errorf("background items = %v", got)
	}
	if got := testutil.ToFloat64(m.ItemFailures.WithLabelValues("tv")); got != 1 {
		t.Errorf("item failures = %v", got)
	}
}

func TestPagedFallbackThroughEngine(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{n: 6, total: 1})
	e := engine.New(engine.PagedSource(feed.NewHTTPPageFetcher(ts.URL, time.Second), nil), engine.Options{
		Clock: clockwork.NewFakeClock(),
	})
	defer e.Close()

	e.Start()
	waitFor(t, e, "page 1", func() bool { return !e.Loading() && e.Snapshot().Page == 1 })
	if len(e.Movies()) != 6 || e.HasMore() {
		t.Errorf("items=%d hasMore=%v", len(e.Movies()), e.HasMore())
	}
}

func TestStreamFrameSequence(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{n: 5, total: 2})
	resp, err := http.Get(ts.URL + "/api/feed/movie/stream?page=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	var events []string
	rd := stream.NewReader(resp.Body)
	for {
		f, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		events = append(events, f.Event)
	}
	want := "[start movie movie movie status movie movie status complete]"
	if fmt.Sprint(events) != want {
		t.Errorf("events = %v, want %s", events, want)
	}
}

func TestStreamProviderFailure(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{pageErr: apperr.FromStatus("tmdb.page", 401, "")})
	resp, err := http.Get(ts.URL + "/api/feed/anime/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	rd := stream.NewReader(resp.Body)
	var last stream.Frame
	for {
		f, err := rd.Next()
		if err != nil {
			break
		}
		last = f
	}
	if last.Event != stream.EventError {
		t.Fatalf("last event = %q", last.Event)
	}
	var p stream.ErrorPayload
	if err := json.Unmarshal(last.Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Error != apperr.PolicyFor(apperr.KindAuth).Message {
		t.Errorf("error = %q", p.Error)
	}
}

func TestPageJSON(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{n: 4, total: 3, fail: map[int]bool{2: true}})
	resp, err := http.Get(ts.URL + "/api/feed/tv?page=2")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var p media.FeedPage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Page != 2 || p.TotalPages != 3 || !p.HasMore || len(p.Movies) != 3 {
		t.Errorf("page = %+v", p)
	}
}

func TestBadRequests(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{n: 1, total: 1})
	tests := []struct {
		path string
		msg  string
	}{
		{"/api/feed/music/stream", msgInvalidType},
		{"/api/feed/movie/stream?page=0", msgInvalidPage},
		{"/api/feed/movie?page=abc", msgInvalidPage},
		{"/api/feed/tv?page=-3", msgInvalidPage},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d", resp.StatusCode)
			}
			var body errorBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error != tt.msg || body.Movies == nil {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestPageErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"rate limited", apperr.FromStatus("tmdb.page", 429, ""), http.StatusTooManyRequests},
		{"upstream down", apperr.FromStatus("tmdb.page", 502, ""), http.StatusServiceUnavailable},
		{"auth", apperr.FromStatus("tmdb.page", 401, ""), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t, &fakeProvider{pageErr: tt.err})
			resp, err := http.Get(ts.URL + "/api/feed/movie")
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{n: 1, total: 1})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/feed/movie/stream")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cineswipe_streams_opened_total") {
		t.Error("metrics missing cineswipe_streams_opened_total")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := New(assemble.New(&fakeProvider{}, assemble.Options{}), Options{ShutdownTimeout: time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
