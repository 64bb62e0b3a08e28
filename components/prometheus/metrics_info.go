package prometheus

import (
	"runtime"
	"strconv"

	"github.com/iotaledger/tangle-core/components/prometheus/collector"
)

const (
	infoNamespace = "info"

	appInfo  = "app"
	nodeOS   = "node_os"
	health   = "health"
	memUsage = "memory_usage_bytes"
)

var InfoMetrics = collector.NewCollection(infoNamespace,
	collector.WithMetric(collector.NewMetric(appInfo,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Node software name and version."),
		collector.WithLabels("name", "version"),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return 1, []string{deps.AppInfo.Name, deps.AppInfo.Version}
		}),
	)),
	collector.WithMetric(collector.NewMetric(nodeOS,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Node OS data."),
		collector.WithLabels("OS", "ARCH", "NUM_CPU"),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return 1, []string{runtime.GOOS, runtime.GOARCH, strconv.Itoa(runtime.GOMAXPROCS(0))}
		}),
	)),
	collector.WithMetric(collector.NewMetric(health,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Node health, 1 for the current state."),
		collector.WithLabels("state"),
		collector.WithResetBeforeCollecting(true),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return 1, []string{deps.Protocol.Health().String()}
		}),
	)),
	collector.WithMetric(collector.NewMetric(memUsage,
		collector.WithType(collector.Gauge),
		collector.WithHelp("The memory usage in bytes of allocated heap objects"),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			return float64(m.Alloc), nil
		}),
	)),
)
