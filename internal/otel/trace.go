package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled gates the high-volume focus.batch events. Atomic because the
// UI goroutine reads it while tests flip it.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("CINESWIPE_TRACE") != "")
}

// TraceEnabled reports whether CINESWIPE_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// SetTraceEnabled overrides the trace flag.
func SetTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
