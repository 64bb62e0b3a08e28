package collector

import (
	"github.com/iotaledger/hive.go/runtime/options"
)

// Collection is a set of metrics that share a namespace, e.g. "tangle" or "milestones".
type Collection struct {
	namespace string
	metrics   map[string]*Metric
	// names keeps the order the metrics were added in, so collecting is deterministic.
	names []string
}

func NewCollection(namespace string, opts ...options.Option[Collection]) *Collection {
	return options.Apply(&Collection{
		namespace: namespace,
		metrics:   make(map[string]*Metric),
	}, opts, func(c *Collection) {
		c.ForEachMetric(func(m *Metric) {
			m.Namespace = c.namespace
			m.initPromMetric()
		})
	})
}

// Namespace is the prefix of all metric names of the collection.
func (c *Collection) Namespace() string {
	return c.namespace
}

// Metric returns the metric with the given name or nil.
func (c *Collection) Metric(metricName string) *Metric {
	return c.metrics[metricName]
}

// MetricNames returns the names of the metrics in the order they were added.
func (c *Collection) MetricNames() []string {
	return append(make([]string, 0, len(c.names)), c.names...)
}

func (c *Collection) ForEachMetric(consumer func(m *Metric)) {
	for _, name := range c.names {
		consumer(c.metrics[name])
	}
}

// WithMetric adds a metric to the collection. A later metric with the same name replaces the earlier one.
func WithMetric(metric *Metric) options.Option[Collection] {
	return func(c *Collection) {
		if metric == nil {
			return
		}

		if _, exists := c.metrics[metric.Name]; !exists {
			c.names = append(c.names, metric.Name)
		}
		c.metrics[metric.Name] = metric
	}
}
