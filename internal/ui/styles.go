package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorGold      = lipgloss.Color("220")
)

// CardTitle is the title line of a card.
var CardTitle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255"))

// CardMeta is the year, rating and genres line.
var CardMeta = lipgloss.NewStyle().
	Foreground(colorSecondary)

// CardRating colors the vote average.
var CardRating = lipgloss.NewStyle().
	Foreground(colorGold)

// CardOverview is the synopsis.
var CardOverview = lipgloss.NewStyle().
	Foreground(lipgloss.Color("252"))

// TrailerStyle marks the trailer player line.
var TrailerStyle = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true)

// FallbackStyle marks the static fallback shown when there is no trailer.
var FallbackStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Italic(true)

// GenreBadge is one genre label.
var GenreBadge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// CardFrame surrounds a card.
var CardFrame = lipgloss.NewStyle().
	Padding(1, 2)

// EndOfFeed marks the last card when there is nothing more to load.
var EndOfFeed = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// DebugPanel frames the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// DebugHeaderStyle titles debug overlay sections.
var DebugHeaderStyle = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)
