// Package stream consumes the backend's progressive feed delivery.
//
// One request per (content type, page) opens a Server-Sent Events response
// carrying a start event, a priority wave of items, background batches and
// a final canonical list. The Consumer parses that sequence and proposes
// items to a Sink; it never owns the feed list itself.
package stream

import "github.com/abelbrown/cineswipe/internal/media"

// Event names on the wire.
const (
	EventStart    = "start"
	EventStatus   = "status"
	EventData     = "data"
	EventMovie    = "movie"
	EventComplete = "complete"
	EventError    = "error"
)

// Wave classifies a delivered item.
type Wave string

const (
	WavePriority   Wave = "priority"
	WaveBackground Wave = "background"
)

// Progress strings carried in start and status payloads.
const (
	ProgressFetching         = "fetching"
	ProgressPriorityComplete = "priority_complete"
	ProgressBatchComplete    = "batch_complete"
)

// StartPayload opens a stream.
type StartPayload struct {
	Status      string `json:"status"`
	Page        int    `json:"page,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// StatusPayload is a coarse progress tick.
type StatusPayload struct {
	Status string `json:"status"`
	Count  int    `json:"count,omitempty"`
	Batch  int    `json:"batch,omitempty"`
	Total  int    `json:"total,omitempty"`
}

// MoviePayload carries one ready item.
type MoviePayload struct {
	Movie *media.Item `json:"movie"`
	Index int         `json:"index"`
	Total int         `json:"total"`
	Type  Wave        `json:"type"`
	Batch int         `json:"batch,omitempty"`
}

// CompletePayload is the canonical result for the page.
type CompletePayload = media.FeedPage

// ErrorPayload ends a stream with a failure.
type ErrorPayload struct {
	Error string `json:"error"`
}
