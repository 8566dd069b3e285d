package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const metricsPath = "/metrics"

type Metrics struct {
	registry *prometheus.Registry

	snapshotFiles    prometheus.Gauge
	filesDetected    prometheus.Counter
	baselineResets   prometheus.Counter
	transfers        *prometheus.CounterVec
	transferBytes    *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		snapshotFiles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "onlooker_snapshot_files",
			Help: "Number of files seen on the remote server at the last poll",
		}),
		filesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "onlooker_files_detected_total",
			Help: "Total number of new files detected on the remote server",
		}),
		baselineResets: factory.NewCounter(prometheus.CounterOpts{
			Name: "onlooker_baseline_resets_total",
			Help: "Number of times the baseline was replaced after remote deletions",
		}),
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onlooker_transfers_total",
			Help: "Total number of transfer jobs by outcome",
		}, []string{"strategy", "outcome"}),
		transferBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onlooker_transfer_bytes_total",
			Help: "Total number of bytes moved by confirmed transfers",
		}, []string{"strategy"}),
		transferDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onlooker_transfer_duration_seconds",
			Help:    "Time spent on a single transfer job",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"strategy"}),
	}
}

func (m *Metrics) observeSnapshot(s Fileset) {
	m.snapshotFiles.Set(float64(s.Len()))
}

func (m *Metrics) observeJob(strategy string, job *Job) {
	m.transfers.WithLabelValues(strategy, job.State.String()).Inc()
	m.transferDuration.WithLabelValues(strategy).Observe(time.Since(job.StartedAt).Seconds())
	if job.State == JobConfirmed {
		m.transferBytes.WithLabelValues(strategy).Add(float64(job.Bytes))
	}
}

// Serve exposes the registry on addr until the server fails.
func (m *Metrics) Serve(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
