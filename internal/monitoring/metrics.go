// Package monitoring registers the Prometheus metrics exposed on
// /metrics.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the worker.
type Metrics struct {
	// Intake metrics
	IntakeTotal    *prometheus.CounterVec
	IntakeRejected *prometheus.CounterVec

	// Coalescer metrics
	TracksLive      *prometheus.GaugeVec
	TracksPublished *prometheus.CounterVec
	TracksInvalid   *prometheus.CounterVec

	// Search and judgement metrics
	SearchBatches  prometheus.Counter
	SearchFailures prometheus.Counter
	JudgedTotal    *prometheus.CounterVec

	// Disk GC metrics
	GCRuns    prometheus.Counter
	GCDeleted *prometheus.CounterVec
}

var (
	once sync.Once
	m    *Metrics
)

// Get returns the process-wide metrics set, registering it on first use.
func Get() *Metrics {
	once.Do(func() { m = newMetrics() })
	return m
}

func newMetrics() *Metrics {
	return &Metrics{
		IntakeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackd_intake_total",
				Help: "Track notifications accepted at the upload endpoint",
			},
			[]string{"kind"},
		),

		IntakeRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackd_intake_rejected_total",
				Help: "Track notifications rejected before enqueueing",
			},
			[]string{"kind", "reason"}, // reason: bad_json, missing_part, bad_type
		),

		TracksLive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trackd_tracks_live",
				Help: "Track IDs currently held by the coalescer",
			},
			[]string{"kind"},
		),

		TracksPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackd_tracks_published_total",
				Help: "Tracks published downstream after becoming ready",
			},
			[]string{"kind"},
		),

		TracksInvalid: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackd_tracks_invalid_total",
				Help: "Tracks marked invalid after a failed first save",
			},
			[]string{"kind"},
		),

		SearchBatches: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trackd_search_batches_total",
				Help: "1:N search batches submitted to the recognition back-end",
			},
		),

		SearchFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trackd_search_failures_total",
				Help: "1:N search batches that failed and were passed through unmatched",
			},
		),

		JudgedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackd_judged_total",
				Help: "Tracks judged, by kind and alarm outcome",
			},
			[]string{"kind", "alarmed"},
		),

		GCRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trackd_gc_runs_total",
				Help: "Disk GC passes that actually reclaimed space",
			},
		),

		GCDeleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackd_gc_deleted_total",
				Help: "Track rows deleted by the disk GC",
			},
			[]string{"kind"},
		),
	}
}
