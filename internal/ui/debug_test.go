package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/cineswipe/internal/otel"
)

func TestDebugOverlayNilRing(t *testing.T) {
	if result := debugOverlay(nil, 80, 24); result != "" {
		t.Errorf("debugOverlay(nil) should return empty string, got %q", result)
	}
}

func TestDebugOverlayRendersStats(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	now := time.Now()
	ring.Push(otel.Event{Kind: otel.KindStreamOpen, Time: now})
	ring.Push(otel.Event{Kind: otel.KindStreamOpen, Time: now})
	ring.Push(otel.Event{Kind: otel.KindStreamComplete, Time: now})
	ring.Push(otel.Event{Kind: otel.KindStreamError, Time: now, Err: "boom"})
	ring.Push(otel.Event{Kind: otel.KindFocusNearEnd, Time: now})

	result := debugOverlay(ring, 120, 40)

	for _, want := range []string{
		"Pipeline Stats",
		"2 open, 1 complete, 1 errors",
		"1 near-end",
		"5 / 64 events",
		"ERR:boom",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("overlay missing %q:\n%s", want, result)
		}
	}
}

func TestDebugOverlayFitsHeight(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	for range 40 {
		ring.Push(otel.Event{Kind: otel.KindFeedPage, Time: time.Now()})
	}
	result := debugOverlay(ring, 80, 12)
	if lines := strings.Count(result, "\n") + 1; lines > 12 {
		t.Errorf("overlay is %d lines, want <= 12", lines)
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0ms"},
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{3 * time.Minute, "3m"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDebugToggle(t *testing.T) {
	f := newFakeFeed(2)
	a := NewApp(f, f.scroll, Options{Ring: otel.NewRingBuffer(8)})
	m, _ := a.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = m.Update(key("d"))
	if v := m.View(); !strings.Contains(v, "[DEBUG]") {
		t.Errorf("debug view missing:\n%s", v)
	}
	m, _ = m.Update(key("d"))
	if v := m.View(); strings.Contains(v, "[DEBUG]") {
		t.Error("debug view did not close")
	}
}
