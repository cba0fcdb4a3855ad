package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/abelbrown/cineswipe/internal/apperr"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/otel"
	"github.com/abelbrown/cineswipe/internal/stream"
)

const (
	msgInvalidPage = "Invalid page parameter"
	msgInvalidType = "Invalid content type"
)

// errorBody is the JSON error shape. It carries an empty page so clients
// that ignore the status code still see a well-formed result.
type errorBody struct {
	Error   string       `json:"error"`
	Movies  []media.Item `json:"movies"`
	Page    int          `json:"page"`
	HasMore bool         `json:"hasMore"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, page int) {
	writeJSON(w, status, errorBody{Error: msg, Movies: []media.Item{}, Page: page})
}

// statusFor maps a failure to the HTTP status reported to clients.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRateLimit:
		return http.StatusTooManyRequests
	case apperr.KindUnavailable, apperr.KindNetwork, apperr.KindTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// parseRequest reads the content type and page. A missing page means 1.
func parseRequest(r *http.Request) (media.ContentType, int, string) {
	ct, err := media.ParseContentType(chi.URLParam(r, "type"))
	if err != nil {
		return "", 0, msgInvalidType
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return "", 0, msgInvalidPage
		}
		page = n
	}
	return ct, page, ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ct, page, bad := parseRequest(r)
	if bad != "" {
		writeError(w, http.StatusBadRequest, bad, 0)
		return
	}

	res, err := s.asm.Page(r.Context(), ct, page)
	if err != nil {
		s.metrics.PagesServed.WithLabelValues(string(ct), "error").Inc()
		s.log.Error("page failed", "type", ct, "page", page, "err", err)
		writeError(w, statusFor(err), apperr.Message(err), page)
		return
	}
	s.metrics.PagesServed.WithLabelValues(string(ct), "ok").Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ct, page, bad := parseRequest(r)
	if bad != "" {
		writeError(w, http.StatusBadRequest, bad, 0)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", page)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	start := time.Now()
	s.metrics.StreamsOpened.WithLabelValues(string(ct)).Inc()

	items := 0
	err := s.asm.Stream(r.Context(), ct, page, func(event string, v any) error {
		if err := stream.WriteFrame(w, event, v); err != nil {
			return err
		}
		flusher.Flush()
		if p, ok := v.(stream.MoviePayload); ok {
			items++
			s.metrics.itemEmitted(ct, p.Type)
		}
		return nil
	})

	outcome := "complete"
	switch {
	case err == nil:
	case r.Context().Err() != nil || errors.Is(err, context.Canceled):
		outcome = "canceled"
	default:
		outcome = "error"
		s.log.Error("stream failed", "type", ct, "page", page, "err", err)
		if werr := stream.WriteFrame(w, stream.EventError, stream.ErrorPayload{Error: apperr.Message(err)}); werr == nil {
			flusher.Flush()
		}
	}

	d := time.Since(start)
	s.metrics.streamDone(ct, outcome, d)
	ev := otel.Event{
		Level: otel.LevelInfo, Kind: otel.KindServerStream, Comp: "server",
		ContentType: string(ct), Page: page, Count: items, Dur: d, Msg: outcome,
	}
	if err != nil {
		ev.Level = otel.LevelWarn
		ev.Err = err.Error()
	}
	s.events.Emit(ev)
}
