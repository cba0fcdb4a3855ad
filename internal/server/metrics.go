package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/stream"
)

// Metrics holds the server's Prometheus collectors. Each Metrics registers
// into its own registry so several servers can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	StreamsOpened  *prometheus.CounterVec
	ItemsEmitted   *prometheus.CounterVec
	ItemFailures   *prometheus.CounterVec
	StreamDuration *prometheus.HistogramVec
	PagesServed    *prometheus.CounterVec
}

// NewMetrics registers the collectors into a fresh registry along with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		StreamsOpened: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cineswipe_streams_opened_total",
			Help: "Feed streams opened, by content type.",
		}, []string{"type"}),
		ItemsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cineswipe_stream_items_total",
			Help: "Items emitted on feed streams, by content type and wave.",
		}, []string{"type", "wave"}),
		ItemFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cineswipe_item_failures_total",
			Help: "Candidates dropped because their detail could not be fetched.",
		}, []string{"type"}),
		StreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cineswipe_stream_duration_seconds",
			Help:    "Feed stream duration, by content type and outcome.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"type", "outcome"}),
		PagesServed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cineswipe_pages_served_total",
			Help: "Whole JSON feed pages served, by content type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

// ItemDropped matches assemble.Options.OnDrop.
func (m *Metrics) ItemDropped(ct media.ContentType, _ int, _ error) {
	m.ItemFailures.WithLabelValues(string(ct)).Inc()
}

func (m *Metrics) itemEmitted(ct media.ContentType, wave stream.Wave) {
	m.ItemsEmitted.WithLabelValues(string(ct), string(wave)).Inc()
}

func (m *Metrics) streamDone(ct media.ContentType, outcome string, d time.Duration) {
	m.StreamDuration.WithLabelValues(string(ct), outcome).Observe(d.Seconds())
}
