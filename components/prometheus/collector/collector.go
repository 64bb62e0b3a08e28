package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iotaledger/hive.go/ierrors"
)

var ErrMetricNotFound = ierrors.New("metric not found")

// Collector is responsible for creation and collection of metrics for the prometheus.
type Collector struct {
	Registry    *prometheus.Registry
	collections map[string]*Collection
}

// New creates an instance of Manager and creates a new prometheus registry for the protocol metrics collection.
func New() *Collector {
	return &Collector{
		Registry:    prometheus.NewRegistry(),
		collections: make(map[string]*Collection),
	}
}

// RegisterCollection registers the metrics of the collection and runs their init functions.
func (c *Collector) RegisterCollection(coll *Collection) error {
	if _, exists := c.collections[coll.Namespace()]; exists {
		return ierrors.Errorf("collection %s is already registered", coll.Namespace())
	}

	var err error
	coll.ForEachMetric(func(m *Metric) {
		if err != nil {
			return
		}
		if registerErr := c.Registry.Register(m.promMetric); registerErr != nil {
			err = ierrors.Wrapf(registerErr, "failed to register metric %s_%s", coll.Namespace(), m.Name)
		}
	})
	if err != nil {
		return err
	}
	c.collections[coll.Namespace()] = coll

	coll.ForEachMetric(func(m *Metric) {
		if m.initFunc != nil {
			m.initFunc()
		}
	})

	return nil
}

// Collect collects all metrics from the registered collections.
func (c *Collector) Collect() error {
	var err error
	for _, collection := range c.collections {
		collection.ForEachMetric(func(m *Metric) {
			err = ierrors.Join(err, m.collect())
		})
	}

	return err
}

// Update updates the value of the existing metric defined by the namespace and metricName.
// Note that the label values must be passed in the same order as they were defined in the metric, and must match the
// number of labels defined in the metric.
func (c *Collector) Update(namespace string, metricName string, metricValue float64, labelValues ...string) error {
	m, err := c.metric(namespace, metricName)
	if err != nil {
		return err
	}

	return m.update(metricValue, labelValues...)
}

// Increment increments the value of the existing metric defined by the namespace and metricName.
func (c *Collector) Increment(namespace string, metricName string, labelValues ...string) error {
	m, err := c.metric(namespace, metricName)
	if err != nil {
		return err
	}

	return m.increment(labelValues...)
}

// ResetMetric resets the metric with the given name.
func (c *Collector) ResetMetric(namespace string, metricName string) error {
	m, err := c.metric(namespace, metricName)
	if err != nil {
		return err
	}
	m.reset()

	return nil
}

func (c *Collector) metric(namespace string, metricName string) (*Metric, error) {
	if collection, exists := c.collections[namespace]; exists {
		if m := collection.Metric(metricName); m != nil {
			return m, nil
		}
	}

	return nil, ierrors.Wrapf(ErrMetricNotFound, "%s_%s", namespace, metricName)
}
