// Package otel records the feed's pipeline events.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// them asynchronously via a buffered channel and a drain goroutine. An
// optional RingBuffer keeps the most recent events for the debug overlay.
package otel

import (
	"time"

	json "github.com/goccy/go-json"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Delivery stream
	KindStreamOpen     EventKind = "stream.open"
	KindStreamItem     EventKind = "stream.item"
	KindStreamStatus   EventKind = "stream.status"
	KindStreamComplete EventKind = "stream.complete"
	KindStreamError    EventKind = "stream.error"
	KindStreamTimeout  EventKind = "stream.timeout"
	KindStreamCancel   EventKind = "stream.cancel"
	KindStreamWarn     EventKind = "stream.warn"

	// Feed list
	KindFeedLoadMore EventKind = "feed.load_more"
	KindFeedReset    EventKind = "feed.reset"
	KindFeedPage     EventKind = "feed.page"

	// Focus and navigation
	KindFocusBatch   EventKind = "focus.batch"
	KindFocusCommit  EventKind = "focus.commit"
	KindFocusNearEnd EventKind = "focus.near_end"
	KindNavigate     EventKind = "nav.transition"

	// Provider and server
	KindProviderError EventKind = "provider.error"
	KindItemDropped   EventKind = "assemble.item_dropped"
	KindServerStream  EventKind = "server.stream"

	// System
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
)

// Event is the universal record. Every field except Kind and Time is optional.
type Event struct {
	Time        time.Time      `json:"t"`
	Level       Level          `json:"level,omitempty"`
	Kind        EventKind      `json:"kind"`
	Comp        string         `json:"comp,omitempty"`       // "stream", "feed", "focus", "nav", "server"
	SessionID   string         `json:"session_id,omitempty"` // one per process
	StreamID    string         `json:"stream_id,omitempty"`  // one per delivery session
	ContentType string         `json:"content_type,omitempty"`
	Page        int            `json:"page,omitempty"`
	Index       int            `json:"index,omitempty"`
	Count       int            `json:"count,omitempty"`
	Dur         time.Duration  `json:"-"`
	DurMs       float64        `json:"dur_ms,omitempty"`
	Err         string         `json:"err,omitempty"`
	Msg         string         `json:"msg,omitempty"`
	Attrs       map[string]any `json:"attrs,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
