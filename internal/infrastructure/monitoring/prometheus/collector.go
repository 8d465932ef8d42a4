// Package prometheus exposes application metrics through a registry-backed
// collector. Components register named counters, gauges and histograms once
// at startup and record into them on the hot path without touching the
// registry again.
package prometheus

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// MetricsCollector registers metrics against a private registry and serves
// them over HTTP. Registration is idempotent: asking for an already
// registered name returns a wrapper around the existing vector, so packages
// can register their metrics independently without coordinating.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	RegisterSummary(name, help string, objectives map[float64]float64, labels ...string) SummaryVec

	// Handler serves the registry in Prometheus exposition format.
	Handler() http.Handler

	// MustRegister adds raw collectors, e.g. pgxpool or go-redis adapters.
	MustRegister(cs ...prometheus.Collector)
	Unregister(c prometheus.Collector) bool
}

// CounterVec is a labeled counter family.
type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
}

// Counter is a single monotonically increasing series.
type Counter interface {
	Inc()
	Add(delta float64)
}

// GaugeVec is a labeled gauge family.
type GaugeVec interface {
	WithLabelValues(lvs ...string) Gauge
}

// Gauge is a single settable series.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Sub(delta float64)
}

// HistogramVec is a labeled histogram family.
type HistogramVec interface {
	WithLabelValues(lvs ...string) Histogram
}

// Histogram records observations into buckets.
type Histogram interface {
	Observe(value float64)
}

// SummaryVec is a labeled summary family.
type SummaryVec interface {
	WithLabelValues(lvs ...string) Summary
}

// Summary records observations against quantile objectives.
type Summary interface {
	Observe(value float64)
}

// CollectorConfig controls the collector's namespace and built-in runtime
// collectors.
type CollectorConfig struct {
	Namespace            string            `mapstructure:"namespace"`
	Subsystem            string            `mapstructure:"subsystem"`
	EnableProcessMetrics bool              `mapstructure:"enable_process_metrics"`
	EnableGoMetrics      bool              `mapstructure:"enable_go_metrics"`
	ConstLabels          map[string]string `mapstructure:"const_labels"`
}

type prometheusCollector struct {
	registry *prometheus.Registry
	config   CollectorConfig
	logger   logging.Logger

	mu         sync.Mutex
	registered map[string]prometheus.Collector
}

// NewMetricsCollector builds a collector around a fresh registry. A private
// registry keeps tests isolated and avoids the default registry's global
// state.
func NewMetricsCollector(cfg CollectorConfig, log logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "metrics namespace is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	registry := prometheus.NewRegistry()
	if cfg.EnableProcessMetrics {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if cfg.EnableGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
	}

	return &prometheusCollector{
		registry:   registry,
		config:     cfg,
		logger:     log.Named("metrics"),
		registered: make(map[string]prometheus.Collector),
	}, nil
}

func (c *prometheusCollector) RegisterCounter(name, help string, labels ...string) CounterVec {
	fqName := prometheus.BuildFQName(c.config.Namespace, c.config.Subsystem, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.registered[fqName]; ok {
		if vec, ok := existing.(*prometheus.CounterVec); ok {
			return &promCounterVec{vec: vec}
		}
		c.logger.Error("metric already registered with a different type",
			logging.String("metric", fqName))
		return noopCounterVec{}
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.config.ConstLabels,
	}, labels)

	if err := c.registry.Register(vec); err != nil {
		c.logger.Error("counter registration failed",
			logging.String("metric", fqName), logging.Err(err))
		return noopCounterVec{}
	}
	c.registered[fqName] = vec
	return &promCounterVec{vec: vec}
}

func (c *prometheusCollector) RegisterGauge(name, help string, labels ...string) GaugeVec {
	fqName := prometheus.BuildFQName(c.config.Namespace, c.config.Subsystem, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.registered[fqName]; ok {
		if vec, ok := existing.(*prometheus.GaugeVec); ok {
			return &promGaugeVec{vec: vec}
		}
		c.logger.Error("metric already registered with a different type",
			logging.String("metric", fqName))
		return noopGaugeVec{}
	}

	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.config.ConstLabels,
	}, labels)

	if err := c.registry.Register(vec); err != nil {
		c.logger.Error("gauge registration failed",
			logging.String("metric", fqName), logging.Err(err))
		return noopGaugeVec{}
	}
	c.registered[fqName] = vec
	return &promGaugeVec{vec: vec}
}

func (c *prometheusCollector) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	fqName := prometheus.BuildFQName(c.config.Namespace, c.config.Subsystem, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.registered[fqName]; ok {
		if vec, ok := existing.(*prometheus.HistogramVec); ok {
			return &promHistogramVec{vec: vec}
		}
		c.logger.Error("metric already registered with a different type",
			logging.String("metric", fqName))
		return noopHistogramVec{}
	}

	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: c.config.ConstLabels,
	}, labels)

	if err := c.registry.Register(vec); err != nil {
		c.logger.Error("histogram registration failed",
			logging.String("metric", fqName), logging.Err(err))
		return noopHistogramVec{}
	}
	c.registered[fqName] = vec
	return &promHistogramVec{vec: vec}
}

func (c *prometheusCollector) RegisterSummary(name, help string, objectives map[float64]float64, labels ...string) SummaryVec {
	fqName := prometheus.BuildFQName(c.config.Namespace, c.config.Subsystem, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.registered[fqName]; ok {
		if vec, ok := existing.(*prometheus.SummaryVec); ok {
			return &promSummaryVec{vec: vec}
		}
		c.logger.Error("metric already registered with a different type",
			logging.String("metric", fqName))
		return noopSummaryVec{}
	}

	if objectives == nil {
		objectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}
	}
	vec := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        name,
		Help:        help,
		Objectives:  objectives,
		ConstLabels: c.config.ConstLabels,
	}, labels)

	if err := c.registry.Register(vec); err != nil {
		c.logger.Error("summary registration failed",
			logging.String("metric", fqName), logging.Err(err))
		return noopSummaryVec{}
	}
	c.registered[fqName] = vec
	return &promSummaryVec{vec: vec}
}

func (c *prometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (c *prometheusCollector) MustRegister(cs ...prometheus.Collector) {
	c.registry.MustRegister(cs...)
}

func (c *prometheusCollector) Unregister(collector prometheus.Collector) bool {
	return c.registry.Unregister(collector)
}

// ─────────────────────────────────────────────────────────────────────────────
// Prometheus-backed implementations
// ─────────────────────────────────────────────────────────────────────────────

type promCounterVec struct{ vec *prometheus.CounterVec }

func (v *promCounterVec) WithLabelValues(lvs ...string) Counter {
	return v.vec.WithLabelValues(lvs...)
}

type promGaugeVec struct{ vec *prometheus.GaugeVec }

func (v *promGaugeVec) WithLabelValues(lvs ...string) Gauge {
	return v.vec.WithLabelValues(lvs...)
}

type promHistogramVec struct{ vec *prometheus.HistogramVec }

func (v *promHistogramVec) WithLabelValues(lvs ...string) Histogram {
	return v.vec.WithLabelValues(lvs...)
}

type promSummaryVec struct{ vec *prometheus.SummaryVec }

func (v *promSummaryVec) WithLabelValues(lvs ...string) Summary {
	return v.vec.WithLabelValues(lvs...)
}

// ─────────────────────────────────────────────────────────────────────────────
// No-op fallbacks
// ─────────────────────────────────────────────────────────────────────────────

// The noop types are returned when registration fails, typically a name
// collision between different metric types. Recording into them is safe, so
// a registration bug degrades observability instead of crashing the service.

type noopCounterVec struct{}

func (noopCounterVec) WithLabelValues(...string) Counter { return noopCounter{} }

type noopCounter struct{}

func (noopCounter) Inc()        {}
func (noopCounter) Add(float64) {}

type noopGaugeVec struct{}

func (noopGaugeVec) WithLabelValues(...string) Gauge { return noopGauge{} }

type noopGauge struct{}

func (noopGauge) Set(float64) {}
func (noopGauge) Inc()        {}
func (noopGauge) Dec()        {}
func (noopGauge) Add(float64) {}
func (noopGauge) Sub(float64) {}

type noopHistogramVec struct{}

func (noopHistogramVec) WithLabelValues(...string) Histogram { return noopHistogram{} }

type noopHistogram struct{}

func (noopHistogram) Observe(float64) {}

type noopSummaryVec struct{}

func (noopSummaryVec) WithLabelValues(...string) Summary { return noopSummary{} }

type noopSummary struct{}

func (noopSummary) Observe(float64) {}

// ─────────────────────────────────────────────────────────────────────────────
// Timer
// ─────────────────────────────────────────────────────────────────────────────

// Timer measures a duration and records it into a histogram on completion.
//
//	timer := prometheus.NewTimer(m.EngineEvaluationDuration.WithLabelValues("12"))
//	defer timer.ObserveDuration()
type Timer struct {
	histogram Histogram
	start     time.Time
}

// NewTimer starts timing immediately.
func NewTimer(h Histogram) *Timer {
	return &Timer{histogram: h, start: time.Now()}
}

// ObserveDuration records the elapsed time in seconds and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	elapsed := time.Since(t.start)
	t.histogram.Observe(elapsed.Seconds())
	return elapsed
}
