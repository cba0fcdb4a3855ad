package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/abelbrown/cineswipe/internal/media"
)

// summary aggregates an event log.
type summary struct {
	events   int
	sessions map[string]bool
	kinds    map[string]int

	// client delivery sessions
	completeMs []float64
	firstItem  []float64 // open to first item, per stream
	items      int

	// server streams by outcome
	outcomes map[string]int

	byType map[string]int // feed pages per content type
	errors map[string]int
	first  time.Time
	last   time.Time
}

func summarize(r io.Reader) (*summary, error) {
	s := &summary{
		sessions: map[string]bool{},
		kinds:    map[string]int{},
		outcomes: map[string]int{},
		byType:   map[string]int{},
		errors:   map[string]int{},
	}
	opened := map[string]time.Time{}

	err := eachEvent(r, func(ev eventRecord, _ []byte) {
		s.events++
		s.kinds[ev.Kind]++
		if ev.SessionID != "" {
			s.sessions[ev.SessionID] = true
		}
		if s.first.IsZero() || ev.Time.Before(s.first) {
			s.first = ev.Time
		}
		if ev.Time.After(s.last) {
			s.last = ev.Time
		}
		if ev.Err != "" {
			s.errors[truncate(ev.Err, 60)]++
		}

		switch ev.Kind {
		case "stream.open":
			opened[ev.StreamID] = ev.Time
		case "stream.item":
			if t, ok := opened[ev.StreamID]; ok {
				s.firstItem = append(s.firstItem, float64(ev.Time.Sub(t).Milliseconds()))
				delete(opened, ev.StreamID)
			}
		case "stream.complete":
			s.completeMs = append(s.completeMs, ev.DurMs)
			s.items += ev.Count
		case "server.stream":
			s.outcomes[ev.Msg]++
		case "feed.page":
			s.byType[ev.ContentType]++
		}
	})
	return s, err
}

// percentile returns the p-th percentile (0-100) of xs by nearest rank.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	rank := int(p/100*float64(len(sorted))+0.5) - 1
	rank = min(max(rank, 0), len(sorted)-1)
	return sorted[rank]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func (s *summary) print(w io.Writer) {
	fmt.Fprintf(w, "Events:                %d\n", s.events)
	fmt.Fprintf(w, "Sessions:              %d\n", len(s.sessions))
	if !s.first.IsZero() {
		fmt.Fprintf(w, "Span:                  %s .. %s\n",
			s.first.Format(time.RFC3339), s.last.Format(time.RFC3339))
	}

	fmt.Fprintln(w, "\n=== Client streams ===")
	fmt.Fprintf(w, "Opened:                %d\n", s.kinds["stream.open"])
	fmt.Fprintf(w, "Completed:             %d\n", s.kinds["stream.complete"])
	fmt.Fprintf(w, "Errors:                %d\n", s.kinds["stream.error"])
	fmt.Fprintf(w, "Connect timeouts:      %d\n", s.kinds["stream.timeout"])
	fmt.Fprintf(w, "Canceled:              %d\n", s.kinds["stream.cancel"])
	fmt.Fprintf(w, "Malformed frames:      %d\n", s.kinds["stream.warn"])
	if len(s.completeMs) > 0 {
		fmt.Fprintf(w, "Items per page:        %.1f\n", float64(s.items)/float64(len(s.completeMs)))
		fmt.Fprintf(w, "Page time:             mean %.0fms  p50 %.0fms  p95 %.0fms\n",
			mean(s.completeMs), percentile(s.completeMs, 50), percentile(s.completeMs, 95))
	}
	if len(s.firstItem) > 0 {
		fmt.Fprintf(w, "Time to first item:    p50 %.0fms  p95 %.0fms\n",
			percentile(s.firstItem, 50), percentile(s.firstItem, 95))
	}

	fmt.Fprintln(w, "\n=== Feed ===")
	fmt.Fprintf(w, "Load-more requests:    %d\n", s.kinds["feed.load_more"])
	fmt.Fprintf(w, "Resets:                %d\n", s.kinds["feed.reset"])
	fmt.Fprintf(w, "Focus commits:         %d\n", s.kinds["focus.commit"])
	fmt.Fprintf(w, "Transitions:           %d\n", s.kinds["nav.transition"])
	for _, ct := range media.ContentTypes {
		if n := s.byType[string(ct)]; n > 0 {
			fmt.Fprintf(w, "  %-8s pages        %d\n", ct.Label(), n)
		}
	}

	if len(s.outcomes) > 0 {
		fmt.Fprintln(w, "\n=== Server streams ===")
		for _, k := range sortedKeys(s.outcomes) {
			fmt.Fprintf(w, "  %-20s %d\n", k, s.outcomes[k])
		}
	}

	fmt.Fprintln(w, "\n=== Provider ===")
	fmt.Fprintf(w, "Request failures:      %d\n", s.kinds["provider.error"])
	fmt.Fprintf(w, "Dropped items:         %d\n", s.kinds["assemble.item_dropped"])

	if len(s.errors) > 0 {
		fmt.Fprintln(w, "\n=== Top errors ===")
		keys := sortedKeys(s.errors)
		sort.SliceStable(keys, func(i, j int) bool { return s.errors[keys[i]] > s.errors[keys[j]] })
		for i, k := range keys {
			if i == 10 {
				break
			}
			fmt.Fprintf(w, "  %4d  %s\n", s.errors[k], k)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	showPrefs := fs.Bool("prefs", false, "Include the stored preferences")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	f := openEventLog(cfg)
	defer f.Close()

	s, err := summarize(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: event log read stopped early: %v\n", err)
	}
	s.print(os.Stdout)

	if !*showPrefs {
		return
	}
	fmt.Println("\n=== Preferences ===")
	if cfg.Client.PrefsPath == "" {
		fmt.Println("  (in-memory; set client.prefs_path to persist)")
		return
	}
	st := openPrefs(cfg)
	defer st.Close()
	muted, _ := st.Muted()
	ct, _ := st.ContentType(cfg.ContentType())
	fmt.Printf("  muted          %v\n", muted)
	fmt.Printf("  content type   %s\n", ct)
}
