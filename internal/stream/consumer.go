package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/abelbrown/cineswipe/internal/apperr"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/otel"
)

// Defaults.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultRetryDelay     = time.Second
)

const (
	msgStreamFailed   = "Streaming connection failed"
	msgConnectTimeout = "Connection timeout"
	msgBadComplete    = "Failed to process streaming response"
	msgEndedEarly     = "Stream ended before completion"
)

// Options configures a Consumer.
type Options struct {
	BaseURL        string
	ContentType    media.ContentType
	Client         *http.Client
	ConnectTimeout time.Duration
	RetryDelay     time.Duration
	Clock          clockwork.Clock
	Logger         *log.Logger
	Events         *otel.Logger
}

// Consumer runs at most one delivery session at a time. Starting a session
// tears down the previous one first, and every callback from a superseded
// session is discarded by generation check, so two sessions never interleave
// their deliveries.
type Consumer struct {
	base   string
	client *http.Client
	opts   Options
	sink   Sink
	log    *log.Logger
	events *otel.Logger

	mu          sync.Mutex
	ct          media.ContentType
	gen         uint64
	status      Status
	label       string
	page        int
	streamID    string
	opened      time.Time
	cancel      context.CancelFunc
	timeout     clockwork.Timer
	retry       clockwork.Timer
	sawPriority bool
	received    int
}

// NewConsumer returns an idle Consumer delivering to sink.
func NewConsumer(opts Options, sink Sink) *Consumer {
	if opts.Client == nil {
		// No client timeout: sessions are long-lived and bounded by the
		// connect timer and cancellation instead.
		opts.Client = &http.Client{}
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ContentType == "" {
		opts.ContentType = media.Movie
	}
	return &Consumer{
		base:   strings.TrimRight(opts.BaseURL, "/"),
		client: opts.Client,
		opts:   opts,
		sink:   sink,
		log:    logging.OrDiscard(opts.Logger).WithPrefix("stream"),
		events: opts.Events,
		ct:     opts.ContentType,
		status: StatusIdle,
	}
}

// URL returns the stream endpoint for a content type and page.
func URL(base string, ct media.ContentType, page int) string {
	return fmt.Sprintf("%s/api/feed/%s/stream?page=%d", strings.TrimRight(base, "/"), url.PathEscape(string(ct)), page)
}

// Start opens a session for page, tearing down any previous one.
func (c *Consumer) Start(page int) {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startLocked(page)
}

func (c *Consumer) startLocked(page int) {
	c.teardownLocked()

	c.gen++
	gen := c.gen
	c.page = page
	c.streamID = uuid.NewString()
	c.opened = c.opts.Clock.Now()
	c.sawPriority = false
	c.received = 0

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.timeout = c.opts.Clock.AfterFunc(c.opts.ConnectTimeout, func() { c.onTimeout(gen) })

	c.sink.Begin(page)
	c.setStatusLocked(StatusConnecting, LabelConnecting)

	ct := c.ct
	c.log.Debug("session start", "page", page, "type", ct, "stream", c.streamID)
	c.events.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindStreamOpen, Comp: "stream",
		StreamID: c.streamID, ContentType: string(ct), Page: page,
	})

	go c.run(ctx, gen, page, URL(c.base, ct, page))
}

// Cancel closes the live session and any pending retry. It is a no-op when
// nothing is in flight.
func (c *Consumer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.status.Live() && c.retry == nil {
		return
	}
	c.teardownLocked()
	c.setStatusLocked(StatusCanceled, LabelCanceled)
	c.sink.Canceled(c.page)
	c.events.Emit(otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindStreamCancel, Comp: "stream",
		StreamID: c.streamID, Page: c.page,
	})
}

// Retry tears down the current session and, after the retry delay, starts
// the last started page again. A Start or Cancel during the delay wins.
func (c *Consumer) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	page := c.page
	if page < 1 {
		page = 1
	}
	c.gen++
	gen := c.gen
	c.label = LabelRetrying
	c.sink.Progress(page, c.status, LabelRetrying)
	c.retry = c.opts.Clock.AfterFunc(c.opts.RetryDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen {
			return
		}
		c.retry = nil
		c.startLocked(page)
	})
}

// SetContentType tears down any session and rebinds the consumer. The next
// Start uses the new type.
func (c *Consumer) SetContentType(ct media.ContentType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.ct = ct
	c.status = StatusIdle
	c.label = ""
	c.page = 0
}

// Status returns the session state.
func (c *Consumer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Label returns the last progress label.
func (c *Consumer) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

// Page returns the last started page.
func (c *Consumer) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// ContentType returns the bound content type.
func (c *Consumer) ContentType() media.ContentType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ct
}

// Close cancels everything. Equivalent to Cancel.
func (c *Consumer) Close() { c.Cancel() }

// teardownLocked closes the transport, stops every timer and invalidates
// callbacks from the current generation.
func (c *Consumer) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.timeout != nil {
		c.timeout.Stop()
		c.timeout = nil
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.gen++
}

func (c *Consumer) setStatusLocked(s Status, label string) {
	if s == c.status && label == c.label {
		return
	}
	c.status = s
	c.label = label
	c.sink.Progress(c.page, s, label)
}

func (c *Consumer) onTimeout(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.status != StatusConnecting {
		return
	}
	c.timeout = nil
	c.teardownLocked()
	err := &apperr.Error{Kind: apperr.KindTimeout, Op: "stream.open", Msg: msgConnectTimeout, Err: context.DeadlineExceeded}
	c.setStatusLocked(StatusTimedOut, LabelTimeout)
	c.sink.Fail(c.page, err)
	c.log.Warn("connect timeout", "page", c.page, "after", c.opts.ConnectTimeout)
	c.events.Emit(otel.Event{
		Level: otel.LevelWarn, Kind: otel.KindStreamTimeout, Comp: "stream",
		StreamID: c.streamID, Page: c.page, Dur: c.opts.ConnectTimeout,
	})
}

// failLocked ends the current session with err.
func (c *Consumer) failLocked(err error) {
	c.teardownLocked()
	c.setStatusLocked(StatusError, LabelError)
	c.sink.Fail(c.page, err)
	c.log.Error("session failed", "page", c.page, "err", err)
	c.events.Emit(otel.Event{
		Level: otel.LevelError, Kind: otel.KindStreamError, Comp: "stream",
		StreamID: c.streamID, Page: c.page, Err: err.Error(),
		Dur: c.opts.Clock.Since(c.opened),
	})
}

func (c *Consumer) fail(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.failLocked(err)
}

func (c *Consumer) run(ctx context.Context, gen uint64, page int, endpoint string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.fail(gen, apperr.New(apperr.KindBadRequest, "stream.open", err))
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		kind := apperr.KindOf(err)
		if kind == apperr.KindUnknown {
			kind = apperr.KindStream
		}
		c.fail(gen, &apperr.Error{Kind: kind, Op: "stream.open", Msg: msgStreamFailed, Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.fail(gen, apperr.FromStatus("stream.open", resp.StatusCode, strings.TrimSpace(string(body))))
		return
	}

	if !c.markOpen(gen) {
		return
	}

	r := NewReader(resp.Body)
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			c.fail(gen, apperr.Newf(apperr.KindStream, "stream.read", msgEndedEarly))
			return
		}
		if err != nil {
			c.fail(gen, &apperr.Error{Kind: apperr.KindStream, Op: "stream.read", Msg: msgStreamFailed, Err: err})
			return
		}
		if done := c.dispatch(gen, page, f); done {
			return
		}
	}
}

func (c *Consumer) markOpen(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	if c.timeout != nil {
		c.timeout.Stop()
		c.timeout = nil
	}
	c.setStatusLocked(StatusOpen, LabelConnected)
	return true
}

func (c *Consumer) warnLocked(event, reason string) {
	c.log.Warn("skipping event", "event", event, "reason", reason, "page", c.page)
	c.events.Emit(otel.Event{
		Level: otel.LevelWarn, Kind: otel.KindStreamWarn, Comp: "stream",
		StreamID: c.streamID, Page: c.page, Msg: event + ": " + reason,
	})
}

// dispatch applies one frame. It reports true when the session is over or
// has been superseded.
func (c *Consumer) dispatch(gen uint64, page int, f Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return true
	}

	empty := len(bytes.TrimSpace(f.Data)) == 0
	if empty && f.Event != EventError {
		c.warnLocked(f.Event, "empty payload")
		return false
	}

	switch f.Event {
	case EventStart:
		var p StartPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.warnLocked(f.Event, err.Error())
			return false
		}
		if p.Status != "" {
			c.setStatusLocked(c.status, p.Status)
		}

	case EventStatus, EventData, "message":
		var p StatusPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.warnLocked(f.Event, err.Error())
			return false
		}
		if p.Status == "" {
			c.warnLocked(f.Event, "missing status")
			return false
		}
		c.setStatusLocked(c.status, p.Status)
		c.events.Emit(otel.Event{
			Level: otel.LevelDebug, Kind: otel.KindStreamStatus, Comp: "stream",
			StreamID: c.streamID, Page: page, Count: p.Count, Msg: p.Status,
		})

	case EventMovie:
		var p MoviePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.warnLocked(f.Event, err.Error())
			return false
		}
		if p.Movie == nil || p.Movie.ID == 0 {
			c.warnLocked(f.Event, "missing movie")
			return false
		}
		label := c.label
		switch {
		case p.Type == WavePriority && !c.sawPriority:
			c.sawPriority = true
			label = LabelShowingPriority
		case p.Type == WaveBackground:
			label = fmt.Sprintf("batch_%d", max(p.Batch, 1))
		}
		c.received++
		c.setStatusLocked(StatusReceiving, label)
		c.sink.Append(page, *p.Movie)
		c.events.Emit(otel.Event{
			Level: otel.LevelDebug, Kind: otel.KindStreamItem, Comp: "stream",
			StreamID: c.streamID, Page: page, Index: p.Index, Count: p.Total,
			Attrs: map[string]any{"wave": string(p.Type), "id": p.Movie.ID},
		})

	case EventComplete:
		var p CompletePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.failLocked(&apperr.Error{Kind: apperr.KindDecode, Op: "stream.complete", Msg: msgBadComplete, Err: err})
			return true
		}
		c.teardownLocked()
		c.setStatusLocked(StatusComplete, LabelComplete)
		c.sink.Complete(page, p.Movies, p.HasMore)
		c.log.Debug("session complete", "page", page, "items", len(p.Movies), "hasMore", p.HasMore)
		c.events.Emit(otel.Event{
			Level: otel.LevelInfo, Kind: otel.KindStreamComplete, Comp: "stream",
			StreamID: c.streamID, Page: page, Count: len(p.Movies),
			Dur: c.opts.Clock.Since(c.opened),
		})
		return true

	case EventError:
		msg := msgStreamFailed
		if !empty {
			var p ErrorPayload
			if err := json.Unmarshal(f.Data, &p); err == nil && p.Error != "" {
				msg = p.Error
			}
		}
		c.failLocked(apperr.Newf(apperr.KindStream, "stream.event", "%s", msg))
		return true

	default:
		c.warnLocked(f.Event, "unknown event")
	}
	return false
}
