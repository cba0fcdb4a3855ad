package stream

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReaderFrames(t *testing.T) {
	body := strings.Join([]string{
		": keepalive",
		"event: start",
		`data: {"status":"fetching"}`,
		"",
		"",
		"event:movie",
		`data:{"a":1,`,
		`data: "b":2}`,
		"id: 7",
		"",
		`data: {"status":"x"}`,
		"",
		"event: complete",
		`data: {"movies":[]}`,
	}, "\n")

	r := NewReader(strings.NewReader(body))
	want := []Frame{
		{Event: "start", Data: []byte(`{"status":"fetching"}`)},
		{Event: "movie", Data: []byte("{\"a\":1,\n\"b\":2}")},
		{Event: "message", Data: []byte(`{"status":"x"}`)},
	}
	for i, w := range want {
		f, err := r.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.Event != w.Event || !bytes.Equal(f.Data, w.Data) {
			t.Errorf("frame %d = %q %q, want %q %q", i, f.Event, f.Data, w.Event, w.Data)
		}
	}
	// Unterminated trailing frame is dropped.
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("want EOF, got %v", err)
	}
}

func TestWriteFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, EventStatus, StatusPayload{Status: ProgressBatchComplete, Batch: 2, Count: 5}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "event: status\ndata: {") || !strings.HasSuffix(buf.String(), "}\n\n") {
		t.Fatalf("frame = %q", buf.String())
	}
	f, err := NewReader(&buf).Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != EventStatus || !strings.Contains(string(f.Data), `"batch_complete"`) {
		t.Errorf("frame = %+v", f)
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []Status{StatusConnecting, StatusOpen, StatusReceiving} {
		if !s.Live() || s.Terminal() {
			t.Errorf("%s should be live", s)
		}
	}
	for _, s := range []Status{StatusComplete, StatusError, StatusTimedOut, StatusCanceled} {
		if s.Live() || !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StatusIdle.Live() || StatusIdle.Terminal() {
		t.Error("idle is neither live nor terminal")
	}
}
