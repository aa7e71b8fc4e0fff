package container

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "persistence_container"

// Build outcomes reported by the builds counter.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Collector is a prometheus.Collector reporting instance builds.
type Collector struct {
	builds        *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	loaded        *prometheus.GaugeVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "builds_total",
				Help:      "The number of instance builds by category and outcome.",
			}, []string{"category", "outcome"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "build_duration_seconds",
				Help:      "The time taken to build an instance.",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
			}, []string{"category"},
		),
		loaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "loaded",
				Help:      "The number of built instances held by category.",
			}, []string{"category"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.builds.Describe(ch)
	c.buildDuration.Describe(ch)
	c.loaded.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.builds.Collect(ch)
	c.buildDuration.Collect(ch)
	c.loaded.Collect(ch)
}

func (c *Collector) built(cat Category, took time.Duration, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	c.builds.WithLabelValues(string(cat), outcome).Inc()
	c.buildDuration.WithLabelValues(string(cat)).Observe(took.Seconds())
	if err == nil {
		c.loaded.WithLabelValues(string(cat)).Inc()
	}
}

func (c *Collector) reset(cat Category) {
	c.loaded.WithLabelValues(string(cat)).Set(0)
}
