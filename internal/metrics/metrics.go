// ABOUTME: Prometheus metrics for the follower
// ABOUTME: Status collector plus per-cycle histograms on a private registry
package metrics

import (
	"net/http"

	"github.com/Resonate-Protocol/clocksync-go/pkg/follower"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clocksync"

// fetchFn returns the current follower status
type fetchFn func() follower.Snapshot

type statusCollector struct {
	fetch fetchFn

	offset      *prometheus.Desc
	jitter      *prometheus.Desc
	inSync      *prometheus.Desc
	lastSync    *prometheus.Desc
	cycles      *prometheus.Desc
	corrections *prometheus.Desc
	failures    *prometheus.Desc
}

func (c *statusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.offset
	ch <- c.jitter
	ch <- c.inSync
	ch <- c.lastSync
	ch <- c.cycles
	ch <- c.corrections
	ch <- c.failures
}

func (c *statusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.fetch()

	ch <- prometheus.MustNewConstMetric(c.offset, prometheus.GaugeValue, s.Offset)
	ch <- prometheus.MustNewConstMetric(c.jitter, prometheus.GaugeValue, s.Jitter)
	ch <- prometheus.MustNewConstMetric(c.inSync, prometheus.GaugeValue, boolValue(s.InSync))

	var last float64
	if !s.LastSync.IsZero() {
		last = float64(s.LastSync.Unix())
	}
	ch <- prometheus.MustNewConstMetric(c.lastSync, prometheus.GaugeValue, last)
	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(s.Cycles))
	ch <- prometheus.MustNewConstMetric(c.corrections, prometheus.CounterValue, float64(s.Jumps), "jump")
	ch <- prometheus.MustNewConstMetric(c.corrections, prometheus.CounterValue, float64(s.RejectedJumps), "jump-rejected")
	ch <- prometheus.MustNewConstMetric(c.corrections, prometheus.CounterValue, float64(s.Slews), "slew")
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(s.Failures))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Metrics owns the follower's registry
type Metrics struct {
	registry *prometheus.Registry

	batchDuration  prometheus.Histogram
	absOffset      prometheus.Histogram
	referenceDelta prometheus.Gauge
}

// New registers the status collector and cycle metrics on a fresh registry
func New(fetch fetchFn) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one sample batch, including failures",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		absOffset: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "abs_offset_seconds",
			Help:      "Magnitude of estimated offsets",
			Buckets:   []float64{1e-6, 1e-5, 1e-4, 5e-4, 1e-3, 1e-2, 0.1, 1},
		}),
		referenceDelta: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ntp_reference_delta_seconds",
			Help:      "Follower clock minus NTP reference time; positive means ahead",
		}),
	}

	m.registry.MustRegister(&statusCollector{
		fetch: fetch,
		offset: prometheus.NewDesc(namespace+"_offset_seconds",
			"Last estimated offset; positive means the local clock is ahead", nil, nil),
		jitter: prometheus.NewDesc(namespace+"_jitter_seconds",
			"Last estimated jitter", nil, nil),
		inSync: prometheus.NewDesc(namespace+"_in_sync",
			"1 if the follower is in sync, otherwise 0", nil, nil),
		lastSync: prometheus.NewDesc(namespace+"_last_estimate_unix",
			"Unix time of the last successful estimate", nil, nil),
		cycles: prometheus.NewDesc(namespace+"_cycles_total",
			"Completed follower cycles", nil, nil),
		corrections: prometheus.NewDesc(namespace+"_corrections_total",
			"Clock corrections by action", []string{"action"}, nil),
		failures: prometheus.NewDesc(namespace+"_batch_failures_total",
			"Batches that produced no estimate", nil, nil),
	})
	m.registry.MustRegister(m.batchDuration, m.absOffset, m.referenceDelta)

	return m
}

// ObserveCycle records one follower cycle
func (m *Metrics) ObserveCycle(r follower.CycleReport) {
	m.batchDuration.Observe(r.Finished.Sub(r.Started).Seconds())
	if r.Err == nil {
		offset := r.Estimate.Offset
		if offset < 0 {
			offset = -offset
		}
		m.absOffset.Observe(offset)
	}
}

// SetReferenceDelta records the latest NTP cross-check result in seconds
func (m *Metrics) SetReferenceDelta(seconds float64) {
	m.referenceDelta.Set(seconds)
}

// Registry exposes the registry for tests and custom handlers
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
