package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts     *prometheus.CounterVec
	failures      *prometheus.CounterVec
	trainingLoss  prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	batchRuns     *prometheus.CounterVec
	batchDuration prometheus.Histogram
	lastBatch     prometheus.Gauge
	residentBytes prometheus.Gauge
}

// New registers the recorder's collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_forecasts_total",
				Help: "Forecasts produced, by signal",
			},
			[]string{"signal"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_forecast_failures_total",
				Help: "Symbols that produced no forecast, by reason",
			},
			[]string{"reason"},
		),
		trainingLoss: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketpulse_training_loss",
				Help:    "Final-epoch training loss on scaled prices",
				Buckets: prometheus.ExponentialBuckets(1e-5, 10, 7),
			},
		),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_symbol_stage_duration_seconds",
				Help:    "Per-symbol duration of each batch stage",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
			},
			[]string{"stage"},
		),
		batchRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_batch_symbols_total",
				Help: "Symbols processed by batch runs, by outcome",
			},
			[]string{"outcome"},
		),
		batchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketpulse_batch_duration_seconds",
				Help:    "Wall time of a whole batch run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
		lastBatch: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketpulse_last_batch_timestamp_seconds",
				Help: "Unix time the last batch run finished",
			},
		),
		residentBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketpulse_batch_resident_bytes",
				Help: "Resident set size sampled at the last memory reclaim",
			},
		),
	}
}

func (r *Recorder) RecordForecast(signal string, trainingLoss float64) {
	r.forecasts.WithLabelValues(signal).Inc()
	r.trainingLoss.Observe(trainingLoss)
}

func (r *Recorder) RecordFailure(reason string) {
	r.failures.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordSymbolDuration(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) RecordBatch(succeeded, failed int, d time.Duration) {
	r.batchRuns.WithLabelValues("succeeded").Add(float64(succeeded))
	r.batchRuns.WithLabelValues("failed").Add(float64(failed))
	r.batchDuration.Observe(d.Seconds())
	r.lastBatch.SetToCurrentTime()
}

// RecordResidentMemory stores the latest RSS sample.
func (r *Recorder) RecordResidentMemory(bytes uint64) {
	r.residentBytes.Set(float64(bytes))
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordForecast(string, float64) {}
func (Nop) RecordFailure(string) {}
func (Nop) RecordSymbolDuration(string, time.Duration) {}
func (Nop) RecordBatch(int, int, time.Duration) {}
