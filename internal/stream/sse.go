package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
)

const maxFrameSize = 1024 * 1024 // 1 MB

// Frame is one dispatched SSE event.
type Frame struct {
	Event string
	Data  []byte
}

// Reader splits an SSE body into frames.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &Reader{sc: sc}
}

// Next returns the next frame. A frame left open when the body ends is
// discarded and io.EOF returned.
func (r *Reader) Next() (Frame, error) {
	var (
		event   string
		data    bytes.Buffer
		hasData bool
	)
	for r.sc.Scan() {
		line := r.sc.Text()
		switch {
		case line == "":
			if event == "" && !hasData {
				continue
			}
			if event == "" {
				event = "message"
			}
			return Frame{Event: event, Data: data.Bytes()}, nil
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				event = value
			case "data":
				if hasData {
					data.WriteByte('\n')
				}
				data.WriteString(value)
				hasData = true
			}
		}
	}
	if err := r.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

// WriteFrame encodes v as JSON and writes it as one SSE event.
func WriteFrame(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
