package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/cineswipe/internal/media"
)

// renderCard draws one full-height card as exactly height lines.
func renderCard(it media.Item, width, height int, muted, endOfFeed bool) []string {
	inner := max(width-CardFrame.GetHorizontalFrameSize(), 10)

	var b strings.Builder
	b.WriteString(CardTitle.Render(truncateRunes(it.Title, inner)))
	b.WriteString("\n")

	var meta []string
	if it.ReleaseYear != "" {
		meta = append(meta, it.ReleaseYear)
	}
	if it.VoteAverage > 0 {
		meta = append(meta, CardRating.Render(fmt.Sprintf("★ %.1f", it.VoteAverage)))
	}
	if len(meta) > 0 {
		b.WriteString(CardMeta.Render(strings.Join(meta, " · ")))
		b.WriteString("\n")
	}
	if len(it.Genres) > 0 {
		var badges []string
		for _, g := range it.Genres {
			badges = append(badges, GenreBadge.Render(g))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, badges...))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if it.HasTrailer() {
		sound := "sound on"
		if muted {
			sound = "muted"
		}
		b.WriteString(TrailerStyle.Render("▶ " + it.TrailerURL()))
		b.WriteString(CardMeta.Render("  [" + sound + "]"))
	} else {
		fallback := "No trailer available"
		if it.PosterURL != "" {
			fallback += " · poster " + it.PosterURL
		}
		b.WriteString(FallbackStyle.Render(truncateRunes(fallback, inner)))
	}
	b.WriteString("\n\n")

	if it.Overview != "" {
		b.WriteString(CardOverview.Width(inner).Render(it.Overview))
		b.WriteString("\n")
	}
	if endOfFeed {
		b.WriteString("\n")
		b.WriteString(EndOfFeed.Render("· You've reached the end of the feed ·"))
	}

	return fitLines(CardFrame.Width(width).Render(b.String()), height)
}

// fitLines splits s into exactly n lines, padding or truncating.
func fitLines(s string, n int) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		return lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return lines
}

// blankCard is the space below the last card during an overscroll.
func blankCard(height int) []string {
	return make([]string, height)
}

// humanLabel turns a progress label like "batch_2" into "batch 2".
func humanLabel(label string) string {
	return strings.ReplaceAll(label, "_", " ")
}
