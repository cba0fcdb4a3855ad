// Package apperr classifies failures into a small set of kinds and maps each
// kind to the message and retry policy the feed surfaces to the user.
//
// Callers branch on Kind, never on concrete error types.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Kind identifies the category of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindCanceled
	KindAuth
	KindNotFound
	KindRateLimit
	KindUnavailable
	KindBadRequest
	KindDecode
	KindStream
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindNetwork:     "network",
	KindTimeout:     "timeout",
	KindCanceled:    "canceled",
	KindAuth:        "auth",
	KindNotFound:    "not_found",
	KindRateLimit:   "rate_limit",
	KindUnavailable: "unavailable",
	KindBadRequest:  "bad_request",
	KindDecode:      "decode",
	KindStream:      "stream",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Policy describes how a failure of a given kind is presented and retried.
type Policy struct {
	Message string
	Retry   bool
	Delay   time.Duration
	Action  string
}

var policies = map[Kind]Policy{
	KindUnknown: {
		Message: "An unexpected error occurred.",
		Action:  "Please try again.",
	},
	KindNetwork: {
		Message: "Network connection failed. Please check your internet connection.",
		Retry:   true,
		Delay:   2 * time.Second,
		Action:  "Check your internet connection and try again.",
	},
	KindTimeout: {
		Message: "Connection timeout.",
		Retry:   true,
		Delay:   2 * time.Second,
		Action:  "The server took too long to respond, try again.",
	},
	KindCanceled: {
		Message: "Request canceled.",
	},
	KindAuth: {
		Message: "There's a problem with the API configuration. Please check your settings.",
		Action:  "Please check your API configuration.",
	},
	KindNotFound: {
		Message: "The requested title could not be found.",
	},
	KindRateLimit: {
		Message: "Too many requests. Please wait a moment and try again.",
		Retry:   true,
		Delay:   5 * time.Second,
		Action:  "Please wait a moment before trying again.",
	},
	KindUnavailable: {
		Message: "The movie service is temporarily unavailable. Please try again later.",
		Retry:   true,
		Delay:   10 * time.Second,
		Action:  "The service is temporarily down, please try again in a few moments.",
	},
	KindBadRequest: {
		Message: "Invalid request. Please try again.",
	},
	KindDecode: {
		Message: "Failed to process the feed response.",
		Retry:   true,
		Delay:   time.Second,
	},
	KindStream: {
		Message: "Streaming connection failed.",
		Retry:   true,
		Delay:   time.Second,
		Action:  "Press r to retry.",
	},
}

// PolicyFor returns the policy for a kind. Unknown kinds get the KindUnknown policy.
func PolicyFor(k Kind) Policy {
	if p, ok := policies[k]; ok {
		return p
	}
	return policies[KindUnknown]
}

// Error is a classified failure. Op names the operation ("tmdb.detail",
// "stream.open"); Err is the underlying cause.
type Error struct {
	Kind       Kind
	Op         string
	Status     int
	RetryAfter time.Duration
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an Error with a formatted message and no cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// FromStatus classifies a non-2xx HTTP status code.
func FromStatus(op string, status int, msg string) *Error {
	e := &Error{Op: op, Status: status, Msg: msg}
	if e.Msg == "" {
		e.Msg = fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = KindBadRequest
	case status >= 500:
		e.Kind = KindUnavailable
	default:
		e.Kind = KindUnknown
	}
	return e
}

// KindOf reports the kind of err, unwrapping as needed.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// Message returns the human-readable text for err. Errors that carry an
// explicit message (for example a server-sent stream error) keep it.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Msg != "" && (ae.Kind == KindStream || ae.Kind == KindTimeout || ae.Kind == KindUnknown) {
		return ae.Msg
	}
	return PolicyFor(KindOf(err)).Message
}

// Retryable reports whether err is worth retrying.
func Retryable(err error) bool {
	return PolicyFor(KindOf(err)).Retry
}

// RetryDelay returns the suggested wait before retrying err.
func RetryDelay(err error) time.Duration {
	var ae *Error
	if errors.As(err, &ae) && ae.RetryAfter > 0 {
		return ae.RetryAfter
	}
	if d := PolicyFor(KindOf(err)).Delay; d > 0 {
		return d
	}
	return time.Second
}
