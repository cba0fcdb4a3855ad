package ui

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"

	"github.com/abelbrown/cineswipe/internal/feed"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/nav"
	"github.com/abelbrown/cineswipe/internal/otel"
	"github.com/abelbrown/cineswipe/internal/viewport"
)

const (
	frameRate = 60

	// renderRadius is how many cards either side of the active one stay
	// mounted.
	renderRadius = 2

	// wheelNotch is the delta one terminal wheel event stands for.
	wheelNotch = 100

	// swipeRows is the drag distance, in rows, that counts as a flick.
	swipeRows = 3
)

// Feed is the engine surface the UI drives. *engine.Engine implements it.
type Feed interface {
	Snapshot() feed.State
	ActiveIndex() int
	ContentType() media.ContentType
	Changes() <-chan struct{}

	RegisterCard(index int, h viewport.Handle)
	ReleaseCard(index int, h viewport.Handle) bool
	Layout(view viewport.Rect)
	Navigate(d nav.Direction) bool

	Retry()
	Resume() bool
	SwitchContentType(ct media.ContentType)
}

// Prefs persists viewer choices. *prefs.Store implements it.
type Prefs interface {
	SetMuted(muted bool) error
	SetContentType(ct media.ContentType) error
}

// Options configures an App.
type Options struct {
	Muted bool
	Prefs Prefs            // may be nil
	Ring  *otel.RingBuffer // debug overlay source; may be nil
	Clock clockwork.Clock  // input timing
}

// App is the root Bubble Tea model.
// It never owns the feed list: every frame reads the engine's snapshot.
type App struct {
	feed   Feed
	scroll *Scroll
	prefs  Prefs
	ring   *otel.RingBuffer
	wheel  *nav.WheelGate
	swipe  *nav.SwipeDetector

	spinner spinner.Model
	mounted map[int]*cardHandle

	width     int
	height    int
	ready     bool
	muted     bool
	debug     bool
	animating bool
	prefErr   error

	lastLen int
	lastCT  media.ContentType
}

// NewApp returns an App over f. scroll must be the Scroller the engine
// was built with.
func NewApp(f Feed, scroll *Scroll, opts Options) App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	sw := nav.NewSwipeDetector(opts.Clock)
	sw.Distance = swipeRows
	return App{
		feed:    f,
		scroll:  scroll,
		prefs:   opts.Prefs,
		ring:    opts.Ring,
		wheel:   nav.NewWheelGate(opts.Clock),
		swipe:   sw,
		spinner: s,
		mounted: make(map[int]*cardHandle),
		muted:   opts.Muted,
		lastCT:  f.ContentType(),
	}
}

// Init starts listening for engine changes.
func (a App) Init() tea.Cmd {
	return tea.Batch(waitForChange(a.feed.Changes()), a.spinner.Tick)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return FeedChanged{}
	}
}

func animTick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return AnimTick{Time: t} })
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.sync()
		return a, nil

	case FeedChanged:
		a.sync()
		return a, waitForChange(a.feed.Changes())

	case AnimTick:
		moving := a.scroll.Step()
		a.sync()
		if !moving {
			a.animating = false
			return a, nil
		}
		return a, animTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case PrefSaved:
		a.prefErr = msg.Err
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.MouseMsg:
		return a.handleMouseMsg(msg)
	}
	return a, nil
}

// sync reconciles mounted cards with the feed and reports the viewport.
func (a *App) sync() {
	st := a.feed.Snapshot()
	n := len(st.Items)
	if n < a.lastLen || st.ContentType != a.lastCT {
		a.releaseAll()
		a.scroll.Jump(0)
	}
	a.lastLen, a.lastCT = n, st.ContentType

	a.mountWindow(n)
	if a.ready {
		a.feed.Layout(a.scroll.View())
	}
}

// mountWindow keeps the cards around both the active card and the one on
// screen registered, and releases the rest.
func (a *App) mountWindow(n int) {
	active := a.feed.ActiveIndex()
	shown := int(math.Round(a.scroll.Pos()))
	lo := max(min(active, shown)-renderRadius, 0)
	hi := min(max(active, shown)+renderRadius, n-1)

	for i, h := range a.mounted {
		if i < lo || i > hi {
			a.feed.ReleaseCard(i, h)
			delete(a.mounted, i)
		}
	}
	for i := lo; i <= hi; i++ {
		if _, ok := a.mounted[i]; ok {
			continue
		}
		h := &cardHandle{index: i}
		a.mounted[i] = h
		a.feed.RegisterCard(i, h)
	}
}

func (a *App) releaseAll() {
	for i, h := range a.mounted {
		a.feed.ReleaseCard(i, h)
		delete(a.mounted, i)
	}
}

// navigate applies d and starts the animation if a transition was issued.
func (a App) navigate(d nav.Direction) (tea.Model, tea.Cmd) {
	if d == nav.None || !a.feed.Navigate(d) {
		return a, nil
	}
	if a.animating {
		return a, nil
	}
	a.animating = true
	return a, animTick()
}

func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "d":
		a.debug = !a.debug
		return a, nil

	case "m":
		a.muted = !a.muted
		return a, a.savePref(func(p Prefs) error { return p.SetMuted(a.muted) })

	case "1", "2", "3":
		i, _ := strconv.Atoi(key)
		ct := media.ContentTypes[i-1]
		if ct == a.feed.ContentType() {
			return a, nil
		}
		a.feed.SwitchContentType(ct)
		a.sync()
		return a, a.savePref(func(p Prefs) error { return p.SetContentType(ct) })

	case "r":
		st := a.feed.Snapshot()
		switch {
		case st.Err != nil && len(st.Items) > 0:
			a.feed.Resume()
		case st.Err != nil || (len(st.Items) == 0 && !st.Loading):
			a.feed.Retry()
			a.sync()
		}
		return a, nil
	}

	if d, ok := nav.KeyDirection(key); ok {
		return a.navigate(d)
	}
	return a, nil
}

func (a App) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Button == tea.MouseButtonWheelDown:
		return a.navigate(a.wheel.Tick(wheelNotch))
	case msg.Button == tea.MouseButtonWheelUp:
		return a.navigate(a.wheel.Tick(-wheelNotch))
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		a.swipe.Begin(float64(msg.Y))
	case msg.Action == tea.MouseActionRelease:
		return a.navigate(a.swipe.End(float64(msg.Y)))
	}
	return a, nil
}

func (a App) savePref(fn func(Prefs) error) tea.Cmd {
	if a.prefs == nil {
		return nil
	}
	p := a.prefs
	return func() tea.Msg { return PrefSaved{Err: fn(p)} }
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.debug {
		return debugOverlay(a.ring, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	st := a.feed.Snapshot()
	contentHeight := max(a.height-1, 1)

	var body string
	if len(st.Items) == 0 {
		body = a.renderEmpty(st, contentHeight)
	} else {
		body = strings.Join(a.renderCards(st, contentHeight), "\n")
	}
	return body + "\n" + a.renderStatusBar(st)
}

// renderCards draws the slice of the card strip under the viewport. While
// the scroll animates the viewport straddles two cards.
func (a App) renderCards(st feed.State, height int) []string {
	n := len(st.Items)
	pos := math.Max(0, math.Min(a.scroll.Pos(), float64(n-1)))
	top := int(math.Floor(pos))
	offset := int(math.Round((pos - float64(top)) * float64(height)))

	card := func(i int) []string {
		if i >= n {
			return blankCard(height)
		}
		end := i == n-1 && !st.HasMore && !st.Loading
		return renderCard(st.Items[i], a.width, height, a.muted, end)
	}

	lines := card(top)
	if offset > 0 {
		lines = append(lines, card(top+1)...)
	}
	return lines[offset : offset+height]
}

func (a App) renderEmpty(st feed.State, height int) string {
	var msg string
	switch {
	case st.Err != nil:
		msg = ErrorStyle.Render(st.Error()) + "\n" +
			HelpStyle.Render("Press r to retry · 1/2/3 to switch feeds · q to quit")
	case st.Loading:
		msg = a.spinner.View() + " Loading " + st.ContentType.Label() + "..."
		if st.Label != "" {
			msg += StatusBarText.Render("  " + humanLabel(st.Label))
		}
	default:
		msg = HelpStyle.Render("Nothing to show for " + st.ContentType.Label() + ". Press r to refresh.")
	}
	return lipgloss.Place(a.width, height, lipgloss.Center, lipgloss.Center, msg)
}

// renderStatusBar renders the bottom line: feed, position, delivery state
// and key hints.
func (a App) renderStatusBar(st feed.State) string {
	parts := []string{StatusBarKey.Render(st.ContentType.Label())}
	if n := len(st.Items); n > 0 {
		parts = append(parts, StatusBarText.Render(strconv.Itoa(a.feed.ActiveIndex()+1)+"/"+strconv.Itoa(n)))
	}
	if st.Loading && len(st.Items) > 0 {
		parts = append(parts, a.spinner.View()+StatusBarText.Render(" updating"))
	}
	if st.Err != nil && len(st.Items) > 0 {
		parts = append(parts, ErrorStyle.Render(st.Error()+" (r to retry)"))
	} else if a.prefErr != nil {
		parts = append(parts, ErrorStyle.Render("preferences not saved"))
	} else if st.Label != "" {
		parts = append(parts, StatusBarText.Render(humanLabel(st.Label)))
	}
	sound := "muted"
	if !a.muted {
		sound = "sound on"
	}
	parts = append(parts, StatusBarText.Render(sound))

	keys := StatusBarKey.Render("j/k") + StatusBarText.Render(":move ") +
		StatusBarKey.Render("1/2/3") + StatusBarText.Render(":feed ") +
		StatusBarKey.Render("m") + StatusBarText.Render(":mute ") +
		StatusBarKey.Render("q") + StatusBarText.Render(":quit")
	parts = append(parts, keys)

	return StatusBar.Width(a.width).Render(strings.Join(parts, "  "))
}

// Muted reports the mute preference (for testing).
func (a App) Muted() bool { return a.muted }

// Mounted returns the mounted card indices in order (for testing).
func (a App) Mounted() []int {
	out := make([]int, 0, len(a.mounted))
	for i := range a.mounted {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
