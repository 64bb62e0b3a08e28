package prometheus

import (
	"github.com/iotaledger/tangle-core/components/prometheus/collector"
)

const (
	dbNamespace = "db"

	sizeBytes         = "size_bytes"
	sizeBytesRetainer = "size_bytes_retainer"
	corrupted         = "corrupted"
)

var DBMetrics = collector.NewCollection(dbNamespace,
	collector.WithMetric(collector.NewMetric(sizeBytes,
		collector.WithType(collector.Gauge),
		collector.WithHelp("DB size in bytes of the node database."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			size, err := deps.DatabaseInstance.Size()
			if err != nil {
				Component.LogWarnf("failed to read database size: %s", err)
			}

			return float64(size), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(sizeBytesRetainer,
		collector.WithType(collector.Gauge),
		collector.WithHelp("DB size in bytes of the transaction retainer."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			if deps.RetainerDatabase == nil {
				return 0, nil
			}

			return float64(deps.RetainerDatabase.Size()), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(corrupted,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Whether the node database is marked as corrupted."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			if deps.DatabaseInstance.IsCorrupted() {
				return 1, nil
			}

			return 0, nil
		}),
	)),
)
