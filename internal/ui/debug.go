package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/cineswipe/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders pipeline stats and recent events. Returns "" when
// ring is nil.
func debugOverlay(ring *otel.RingBuffer, width, height int) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Pipeline Stats"))
	lines = append(lines, fmt.Sprintf("  Streams:    %d open, %d complete, %d errors, %d timeouts, %d canceled",
		stats[otel.KindStreamOpen], stats[otel.KindStreamComplete], stats[otel.KindStreamError],
		stats[otel.KindStreamTimeout], stats[otel.KindStreamCancel]))
	lines = append(lines, fmt.Sprintf("  Feed:       %d pages, %d load-more, %d resets",
		stats[otel.KindFeedPage], stats[otel.KindFeedLoadMore], stats[otel.KindFeedReset]))
	lines = append(lines, fmt.Sprintf("  Focus:      %d commits, %d near-end, %d transitions",
		stats[otel.KindFocusCommit], stats[otel.KindFocusNearEnd], stats[otel.KindNavigate]))
	lines = append(lines, fmt.Sprintf("  Provider:   %d errors, %d dropped items, %d warnings",
		stats[otel.KindProviderError], stats[otel.KindItemDropped], stats[otel.KindStreamWarn]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-22s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.Page > 0 {
			line += fmt.Sprintf("  p%d", e.Page)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		if e.StreamID != "" {
			sid := e.StreamID
			if len(sid) > 8 {
				sid = sid[:8]
			}
			line += "  sid:" + sid
		}
		lines = append(lines, line)
	}

	maxHeight := max(height-debugPanelChrome, 1)
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := min(96, width-4)
	panelWidth = max(panelWidth, 20)

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("d") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
