package prometheus

import (
	"github.com/iotaledger/hive.go/app"
)

// ParametersPrometheus contains the definition of the parameters used by the Prometheus exporter.
type ParametersPrometheus struct {
	// Enabled defines whether the Prometheus exporter is enabled.
	Enabled bool `default:"true" usage:"whether the Prometheus exporter is enabled"`
	// BindAddress defines the bind address of the exporter's /metrics endpoint.
	BindAddress string `default:"0.0.0.0:9311" usage:"the bind address on which the Prometheus exporter listens on"`

	Collections struct {
		// Tangle enables the tips, block counters and milestone index gauges.
		Tangle bool `default:"true" usage:"include the tangle metrics"`
		// Milestones enables the confirmation and ledger metrics.
		Milestones bool `default:"true" usage:"include the milestone confirmation and ledger metrics"`
		// Database enables the database size and health metrics.
		Database bool `default:"true" usage:"include the database metrics"`
		// Info enables the node info, health and memory metrics.
		Info bool `default:"true" usage:"include the node info metrics"`
	}

	// GoMetrics defines whether to include the Go runtime metrics.
	GoMetrics bool `default:"false" usage:"include go metrics"`
	// ProcessMetrics defines whether to include the process metrics.
	ProcessMetrics bool `default:"false" usage:"include process metrics"`
	// PromhttpMetrics defines whether to include the metrics of the exporter's own handler.
	PromhttpMetrics bool `default:"false" usage:"include promhttp metrics"`
}

// ParamsPrometheus contains the configuration used by the Prometheus exporter.
var ParamsPrometheus = &ParametersPrometheus{}

var params = &app.ComponentParams{
	Params: map[string]any{
		"prometheus": ParamsPrometheus,
	},
}
