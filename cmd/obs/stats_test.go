package main

import (
	"bytes"
	"strings"
	"testing"
)

const sampleLog = `{"t":"2026-01-02T10:00:00Z","level":"info","kind":"stream.open","session_id":"s1","stream_id":"a","page":1}
{"t":"2026-01-02T10:00:00.250Z","level":"debug","kind":"stream.item","session_id":"s1","stream_id":"a","page":1}
{"t":"2026-01-02T10:00:00.300Z","level":"debug","kind":"stream.item","session_id":"s1","stream_id":"a","page":1}
{"t":"2026-01-02T10:00:02Z","level":"info","kind":"stream.complete","session_id":"s1","stream_id":"a","page":1,"count":17,"dur_ms":2000}
{"t":"2026-01-02T10:00:02Z","level":"info","kind":"feed.page","session_id":"s1","content_type":"movie","page":1,"count":17}
not json
{"t":"2026-01-02T10:01:00Z","level":"error","kind":"stream.error","session_id":"s2","stream_id":"b","err":"connection refused"}
{"t":"2026-01-02T10:01:05Z","level":"warn","kind":"assemble.item_dropped","session_id":"s2","err":"connection refused"}
`

func TestSummarize(t *testing.T) {
	s, err := summarize(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatal(err)
	}
	if s.events != 7 {
		t.Errorf("events = %d, want 7", s.events)
	}
	if len(s.sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(s.sessions))
	}
	if len(s.firstItem) != 1 || s.firstItem[0] != 250 {
		t.Errorf("firstItem = %v, want [250]", s.firstItem)
	}
	if s.items != 17 || len(s.completeMs) != 1 {
		t.Errorf("items = %d over %d pages", s.items, len(s.completeMs))
	}
	if s.errors["connection refused"] != 2 {
		t.Errorf("errors = %v", s.errors)
	}

	var out bytes.Buffer
	s.print(&out)
	for _, want := range []string{"Opened:                1", "Movies   pages        1", "Dropped items:         1", "2  connection refused"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPercentile(t *testing.T) {
	xs := []float64{5, 1, 4, 2, 3}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 3},
		{95, 5},
		{100, 5},
	}
	for _, tt := range tests {
		if got := percentile(xs, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Error("empty input should give 0")
	}
}

func TestReadTailLinesFilters(t *testing.T) {
	f := eventFilter{kind: "stream", level: "info"}
	got := readTailLines(strings.NewReader(sampleLog), 2, f.match)
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if got[0].ev.Kind != "stream.complete" || got[1].ev.Kind != "stream.error" {
		t.Errorf("kinds = %s, %s", got[0].ev.Kind, got[1].ev.Kind)
	}
	if line := formatEvent(got[1].ev); !strings.Contains(line, "err=connection refused") {
		t.Errorf("formatted line = %q", line)
	}
}
