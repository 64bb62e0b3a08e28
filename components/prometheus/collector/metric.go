package collector

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/options"
)

var ErrLabelMismatch = ierrors.New("label values do not match the labels of the metric")

type MetricType uint8

const (
	// Gauge is a metric that represents a single numerical value that can arbitrarily go up and down.
	// During metric Update the collected value is set, thus previous value is overwritten.
	Gauge MetricType = iota
	// Counter is a cumulative metric that represents a single numerical value that only ever goes up.
	// During metric Update the collected value is added to its current value.
	Counter
	// Histogram samples observations into buckets. During metric Update the value is observed.
	Histogram
)

// Metric is a single metric that will be registered to prometheus registry and collected with WithCollectFunc callback.
// Metrics that are driven by events use WithInitFunc instead and are updated through the Collector.
type Metric struct {
	Name        string
	Type        MetricType
	Namespace   string
	help        string
	labels      []string
	buckets     []float64
	collectFunc func() (value float64, labelValues []string)
	initFunc    func()

	promMetric   prometheus.Collector
	resetEnabled bool // if enabled metric will be reset before each collectFunction call

	once sync.Once
}

// NewMetric creates a new metric with given name and options.
func NewMetric(name string, opts ...options.Option[Metric]) *Metric {
	return options.Apply(&Metric{
		Name: name,
	}, opts)
}

func (m *Metric) initPromMetric() {
	m.once.Do(func() {
		m.promMetric = m.newPromMetric()
	})
}

func (m *Metric) newPromMetric() prometheus.Collector {
	switch m.Type {
	case Counter:
		opts := prometheus.CounterOpts{Name: m.Name, Namespace: m.Namespace, Help: m.help}
		if len(m.labels) > 0 {
			return prometheus.NewCounterVec(opts, m.labels)
		}

		return prometheus.NewCounter(opts)
	case Histogram:
		opts := prometheus.HistogramOpts{Name: m.Name, Namespace: m.Namespace, Help: m.help, Buckets: m.buckets}
		if len(m.labels) > 0 {
			return prometheus.NewHistogramVec(opts, m.labels)
		}

		return prometheus.NewHistogram(opts)
	default:
		opts := prometheus.GaugeOpts{Name: m.Name, Namespace: m.Namespace, Help: m.help}
		if len(m.labels) > 0 {
			return prometheus.NewGaugeVec(opts, m.labels)
		}

		return prometheus.NewGauge(opts)
	}
}

func (m *Metric) collect() error {
	if m.resetEnabled {
		m.reset()
	}
	if m.collectFunc == nil {
		return nil
	}

	value, labelValues := m.collectFunc()

	return m.update(value, labelValues...)
}

func (m *Metric) update(metricValue float64, labelValues ...string) error {
	if len(labelValues) != len(m.labels) {
		return ierrors.Wrapf(ErrLabelMismatch, "metric %s_%s expects %d label values, got %d", m.Namespace, m.Name, len(m.labels), len(labelValues))
	}

	switch metric := m.promMetric.(type) {
	case prometheus.Gauge:
		metric.Set(metricValue)
	case *prometheus.GaugeVec:
		metric.WithLabelValues(labelValues...).Set(metricValue)
	case prometheus.Counter:
		metric.Add(metricValue)
	case *prometheus.CounterVec:
		metric.WithLabelValues(labelValues...).Add(metricValue)
	case prometheus.Histogram:
		metric.Observe(metricValue)
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labelValues...).Observe(metricValue)
	}

	return nil
}

func (m *Metric) increment(labelValues ...string) error {
	if m.Type == Histogram {
		return m.update(1, labelValues...)
	}
	if len(labelValues) != len(m.labels) {
		return ierrors.Wrapf(ErrLabelMismatch, "metric %s_%s expects %d label values, got %d", m.Namespace, m.Name, len(m.labels), len(labelValues))
	}

	switch metric := m.promMetric.(type) {
	case prometheus.Gauge:
		metric.Inc()
	case *prometheus.GaugeVec:
		metric.WithLabelValues(labelValues...).Inc()
	case prometheus.Counter:
		metric.Inc()
	case *prometheus.CounterVec:
		metric.WithLabelValues(labelValues...).Inc()
	}

	return nil
}

// reset clears the values of gauges and of labeled metrics. Unlabeled counters and histograms keep their values.
func (m *Metric) reset() {
	switch metric := m.promMetric.(type) {
	case prometheus.Gauge:
		metric.Set(0)
	case *prometheus.GaugeVec:
		metric.Reset()
	case *prometheus.CounterVec:
		metric.Reset()
	case *prometheus.HistogramVec:
		metric.Reset()
	}
}

// WithType sets the metric type: Gauge, Counter or Histogram.
func WithType(t MetricType) options.Option[Metric] {
	return func(m *Metric) {
		m.Type = t
	}
}

// WithHelp sets the help text for the metric.
func WithHelp(help string) options.Option[Metric] {
	return func(m *Metric) {
		m.help = help
	}
}

// WithLabels allows to define labels for the metric, they will need to be passed in the same order to the Update.
func WithLabels(labels ...string) options.Option[Metric] {
	return func(m *Metric) {
		m.labels = labels
	}
}

// WithBuckets sets the upper bounds of the buckets of a histogram.
func WithBuckets(buckets ...float64) options.Option[Metric] {
	return func(m *Metric) {
		m.buckets = buckets
	}
}

// WithResetBeforeCollecting  if enabled there will be a reset call on metric before each collectFunction call.
func WithResetBeforeCollecting(resetEnabled bool) options.Option[Metric] {
	return func(m *Metric) {
		m.resetEnabled = resetEnabled
	}
}

// WithCollectFunc allows to define a function that will be called each time when prometheus will scrap the data.
// Should be used when metric value can be read at any time and we don't need to attach to an event.
func WithCollectFunc(collectFunc func() (metricValue float64, labelValues []string)) options.Option[Metric] {
	return func(m *Metric) {
		m.collectFunc = collectFunc
	}
}

// WithInitFunc allows to define a function that will be called once when the collection is registered.
// Should be used instead of WithCollectFunc when the metric value is driven by events,
// the function then calls one of the update methods of the collector, e.g. Increment or Update.
func WithInitFunc(initFunc func()) options.Option[Metric] {
	return func(m *Metric) {
		m.initFunc = initFunc
	}
}
