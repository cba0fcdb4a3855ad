package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// eventRecord mirrors otel.Event for JSON decoding.
// We decode from JSONL rather than importing otel to keep this
// subcommand usable even if the event schema evolves.
type eventRecord struct {
	Time        time.Time      `json:"t"`
	Level       string         `json:"level"`
	Kind        string         `json:"kind"`
	Comp        string         `json:"comp"`
	SessionID   string         `json:"session_id"`
	StreamID    string         `json:"stream_id"`
	ContentType string         `json:"content_type"`
	Page        int            `json:"page"`
	Index       int            `json:"index"`
	Count       int            `json:"count"`
	DurMs       float64        `json:"dur_ms"`
	Err         string         `json:"err"`
	Msg         string         `json:"msg"`
	Attrs       map[string]any `json:"attrs"`
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level string) int {
	switch level {
	case "debug":
		return 0
	case "info":
		return 1
	case "warn":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}

// eventFilter selects events; empty fields match everything.
type eventFilter struct {
	kind     string // prefix
	level    string // minimum
	comp     string
	streamID string // prefix
	ct       string
}

func (f eventFilter) match(ev eventRecord) bool {
	if f.kind != "" && !strings.HasPrefix(ev.Kind, f.kind) {
		return false
	}
	if f.level != "" && levelRank(ev.Level) < levelRank(f.level) {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	if f.streamID != "" && !strings.HasPrefix(ev.StreamID, f.streamID) {
		return false
	}
	if f.ct != "" && ev.ContentType != f.ct {
		return false
	}
	return true
}

func formatEvent(ev eventRecord) string {
	ts := ev.Time.Format("15:04:05.000")
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-6s] %-22s", ts, lvl, ev.Comp, ev.Kind)}

	if ev.ContentType != "" {
		parts = append(parts, ev.ContentType)
	}
	if ev.Page > 0 {
		parts = append(parts, fmt.Sprintf("p%d", ev.Page))
	}
	if ev.Msg != "" {
		parts = append(parts, "- "+truncate(ev.Msg, 80))
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.StreamID != "" {
		parts = append(parts, "sid="+truncate(ev.StreamID, 8))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}

	return strings.Join(parts, " ")
}

func runEvents() {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	tail := fs.Int("tail", 50, "Number of recent lines to show")
	follow := fs.Bool("f", false, "Follow mode (like tail -f)")
	kind := fs.String("kind", "", "Filter by event kind prefix (e.g. 'stream')")
	level := fs.String("level", "", "Minimum level: debug, info, warn, error")
	comp := fs.String("comp", "", "Filter by component name")
	sid := fs.String("sid", "", "Filter by stream ID prefix")
	ct := fs.String("type", "", "Filter by content type: movie, tv, anime")
	rawJSON := fs.Bool("json", false, "Output raw JSON lines")
	fs.Parse(os.Args[1:])

	f := openEventLog(loadConfig())
	defer f.Close()

	filter := eventFilter{kind: *kind, level: *level, comp: *comp, streamID: *sid, ct: *ct}
	show := func(ev eventRecord, raw []byte) {
		if *rawJSON {
			fmt.Println(string(raw))
			return
		}
		fmt.Println(formatEvent(ev))
	}

	for _, l := range readTailLines(f, *tail, filter.match) {
		show(l.ev, l.raw)
	}
	if !*follow {
		return
	}

	// The file offset is now at the end; poll for appended lines.
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return
		}
		line = trimLine(line)
		if len(line) == 0 {
			continue
		}
		var ev eventRecord
		if json.Unmarshal(line, &ev) != nil {
			continue
		}
		if filter.match(ev) {
			show(ev, line)
		}
	}
}

type parsedLine struct {
	ev  eventRecord
	raw []byte
}

// eachEvent decodes every JSONL line in r and calls fn for it.
// Unparseable lines are skipped.
func eachEvent(r io.Reader, fn func(ev eventRecord, raw []byte)) error {
	scanner := bufio.NewScanner(r)
	// Allow large lines (some events may have big Attrs maps)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev eventRecord
		if json.Unmarshal(raw, &ev) != nil {
			continue
		}
		fn(ev, raw)
	}
	return scanner.Err()
}

// readTailLines returns the last n lines of r matching the filter.
func readTailLines(r io.Reader, n int, match func(eventRecord) bool) []parsedLine {
	if n <= 0 {
		return nil
	}
	ring := make([]parsedLine, 0, n)
	eachEvent(r, func(ev eventRecord, raw []byte) {
		if !match(ev) {
			return
		}
		// Make a copy of raw since the scanner reuses the buffer
		rawCopy := make([]byte, len(raw))
		copy(rawCopy, raw)

		if len(ring) < n {
			ring = append(ring, parsedLine{ev: ev, raw: rawCopy})
		} else {
			// Shift left
			copy(ring, ring[1:])
			ring[n-1] = parsedLine{ev: ev, raw: rawCopy}
		}
	})
	return ring
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
