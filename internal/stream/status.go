package stream

import "github.com/abelbrown/cineswipe/internal/media"

// Status is the delivery session state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusReceiving  Status = "receiving"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusTimedOut   Status = "timed-out"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further events will arrive for the session.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusTimedOut, StatusCanceled:
		return true
	}
	return false
}

// Live reports whether a session is connecting or streaming.
func (s Status) Live() bool {
	switch s {
	case StatusConnecting, StatusOpen, StatusReceiving:
		return true
	}
	return false
}

// Progress labels shown by the rendering layer.
const (
	LabelConnecting      = "connecting"
	LabelConnected       = "connected"
	LabelShowingPriority = "showing_priority"
	LabelComplete        = "complete"
	LabelError           = "error"
	LabelTimeout         = "timeout"
	LabelCanceled        = "canceled"
	LabelRetrying        = "retrying"
)

// Sink receives a session's deliveries. Every call carries the page the
// session was started for so the receiver can drop stale ones. Calls are
// made with the consumer's lock held, so a Sink must not call back into
// the Consumer.
type Sink interface {
	Begin(page int)
	Append(page int, item media.Item)
	Progress(page int, status Status, label string)
	Complete(page int, items []media.Item, hasMore bool)
	Fail(page int, err error)
	Canceled(page int)
}
