// Package metrics holds the Prometheus collectors of a harvest run.
//
// A run is a short-lived batch job, so nothing is scraped: the collectors
// are pushed to a Pushgateway once the run is over.
//
// # Basic Usage
//
//	timer := metrics.NewTimer()
//	outcome := worker.Fetch(ctx, unit)
//	metrics.UnitDuration.WithLabelValues(unit.Definition.Name).Observe(timer.Stop().Seconds())
//	metrics.UnitsTotal.WithLabelValues(unit.Definition.Name, "success").Inc()
//
//	// at the end of the run
//	_ = metrics.Push(ctx, "http://pushgateway:9091", "adharvest", runID)
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Outcome label values
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeStructural = "structural"
)

// Sink result label values
const (
	SinkInserted = "inserted"
	SinkFailed   = "failed"
)

var (
	// UnitsTotal counts finished work units by report and outcome
	UnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adharvest_units_total",
			Help: "Work units finished, by report and outcome",
		},
		[]string{"report", "outcome"},
	)

	// RetriesTotal counts retried API attempts
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adharvest_retries_total",
			Help: "API attempts retried after a transient failure",
		},
		[]string{"report"},
	)

	// RowsFetched counts flattened result rows
	RowsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adharvest_rows_fetched_total",
			Help: "Result rows fetched and flattened",
		},
		[]string{"report"},
	)

	// SinkRecords counts records handed to the sink
	SinkRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adharvest_sink_records_total",
			Help: "Records written to the sink, by table and result",
		},
		[]string{"table", "result"},
	)

	// UnitDuration tracks the wall time of one work unit, retries included
	UnitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adharvest_unit_duration_seconds",
			Help:    "Wall time of a work unit including retries",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"report"},
	)

	// ActiveWorkers is the number of dispatcher goroutines currently running
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adharvest_active_workers",
			Help: "Dispatcher workers currently running",
		},
	)
)

// Timer measures elapsed time
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the time elapsed since the timer was created. It can be called
// more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Push sends every registered collector to the Pushgateway at url, grouped
// by run.
func Push(ctx context.Context, url, job, runID string) error {
	return PushFrom(ctx, prometheus.DefaultGatherer, url, job, runID)
}

// PushFrom is Push with an explicit gatherer
func PushFrom(ctx context.Context, g prometheus.Gatherer, url, job, runID string) error {
	p := push.New(url, job).Gatherer(g)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	return p.PushContext(ctx)
}
