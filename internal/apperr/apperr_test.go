package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
		retry  bool
	}{
		{http.StatusUnauthorized, KindAuth, false},
		{http.StatusForbidden, KindAuth, false},
		{http.StatusNotFound, KindNotFound, false},
		{http.StatusTooManyRequests, KindRateLimit, true},
		{http.StatusBadRequest, KindBadRequest, false},
		{http.StatusInternalServerError, KindUnavailable, true},
		{http.StatusBadGateway, KindUnavailable, true},
		{http.StatusTeapot, KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus("tmdb.page", tt.status, "")
			if err.Kind != tt.want {
				t.Errorf("FromStatus(%d).Kind = %v, want %v", tt.status, err.Kind, tt.want)
			}
			if Retryable(err) != tt.retry {
				t.Errorf("Retryable(%d) = %v, want %v", tt.status, Retryable(err), tt.retry)
			}
		})
	}
}

func TestKindOfUnwraps(t *testing.T) {
	inner := New(KindRateLimit, "tmdb.detail", errors.New("slow down"))
	wrapped := fmt.Errorf("assemble item 42: %w", inner)

	if got := KindOf(wrapped); got != KindRateLimit {
		t.Errorf("KindOf(wrapped) = %v, want rate_limit", got)
	}
	if got := KindOf(fmt.Errorf("x: %w", context.DeadlineExceeded)); got != KindTimeout {
		t.Errorf("KindOf(deadline) = %v, want timeout", got)
	}
	if got := KindOf(context.Canceled); got != KindCanceled {
		t.Errorf("KindOf(canceled) = %v, want canceled", got)
	}
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want unknown", got)
	}
}

func TestMessage(t *testing.T) {
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}

	streamErr := Newf(KindStream, "stream.event", "TMDB quota exhausted")
	if got := Message(streamErr); got != "TMDB quota exhausted" {
		t.Errorf("stream message = %q", got)
	}

	netErr := New(KindNetwork, "stream.open", errors.New("dial tcp: refused"))
	if got := Message(netErr); got != PolicyFor(KindNetwork).Message {
		t.Errorf("network message = %q", got)
	}
}

func TestRetryDelay(t *testing.T) {
	e := FromStatus("tmdb.page", http.StatusTooManyRequests, "")
	if got := RetryDelay(e); got != 5*time.Second {
		t.Errorf("RetryDelay(429) = %v, want 5s", got)
	}
	e.RetryAfter = 3 * time.Second
	if got := RetryDelay(e); got != 3*time.Second {
		t.Errorf("RetryDelay with Retry-After = %v, want 3s", got)
	}
	if got := RetryDelay(errors.New("x")); got != time.Second {
		t.Errorf("RetryDelay(unknown) = %v, want 1s", got)
	}
}

func TestErrorString(t *testing.T) {
	e := New(KindNetwork, "stream.open", errors.New("refused"))
	if e.Error() != "stream.open: refused" {
		t.Errorf("Error() = %q", e.Error())
	}
	if !errors.Is(e, e.Err) {
		t.Error("errors.Is should see the cause")
	}
}
