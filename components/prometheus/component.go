package prometheus

// metrics is the plugin instance responsible for collection of prometheus metrics.
// All metrics should be defined in metrics_namespace.go files with different namespace for each new collection.
// Metrics naming should follow the guidelines from: https://prometheus.io/docs/practices/naming/
// In short:
// 	all metrics should be in base units, do not mix units,
// 	add suffix describing the unit,
// 	use 'total' suffix for accumulating counter

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/tangle-core/components/prometheus/collector"
	"github.com/iotaledger/tangle-core/pkg/daemon"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/protocol"
	"github.com/iotaledger/tangle-core/pkg/storage/database"
	"github.com/iotaledger/tangle-core/pkg/storage/sqlite"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

func init() {
	Component = &app.Component{
		Name:     "Prometheus",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Params:   params,
		Provide:  provide,
		Run:      run,
		IsEnabled: func(_ *dig.Container) bool {
			return ParamsPrometheus.Enabled
		},
	}
}

var (
	Component *app.Component
	deps      dependencies
)

type dependencies struct {
	dig.In

	AppInfo          *app.Info
	DatabaseInstance *database.DBInstance
	RetainerDatabase *sqlite.Database
	Tangle           *tangle.Tangle
	Ledger           *utxo.Manager
	Protocol         *protocol.Protocol
	Collector        *collector.Collector
}

func provide(c *dig.Container) error {
	return c.Provide(collector.New)
}

func run() error {
	Component.LogInfo("Starting Prometheus exporter ...")

	if ParamsPrometheus.GoMetrics {
		deps.Collector.Registry.MustRegister(collectors.NewGoCollector())
	}
	if ParamsPrometheus.ProcessMetrics {
		deps.Collector.Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	if err := registerMetrics(); err != nil {
		return err
	}

	return Component.Daemon().BackgroundWorker("Prometheus exporter", func(ctx context.Context) {
		Component.LogInfo("Starting Prometheus exporter ... done")

		engine := echo.New()
		engine.HideBanner = true
		engine.Use(middleware.Recover())

		handler := promhttp.HandlerFor(
			deps.Collector.Registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		)
		if ParamsPrometheus.PromhttpMetrics {
			handler = promhttp.InstrumentMetricHandler(deps.Collector.Registry, handler)
		}

		engine.GET("/metrics", func(c echo.Context) error {
			if err := deps.Collector.Collect(); err != nil {
				Component.LogWarnf("failed to collect metrics: %s", err)
			}
			handler.ServeHTTP(c.Response().Writer, c.Request())

			return nil
		})

		bindAddr := ParamsPrometheus.BindAddress
		server := &http.Server{Addr: bindAddr, Handler: engine, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

		go func() {
			Component.LogInfof("You can now access the Prometheus exporter using: http://%s/metrics", bindAddr)
			if err := server.ListenAndServe(); err != nil && !ierrors.Is(err, http.ErrServerClosed) {
				Component.LogErrorf("Stopping Prometheus exporter due to an error (%s) ... done", err)
			}
		}()

		<-ctx.Done()
		Component.LogInfo("Stopping Prometheus exporter ...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		//nolint:contextcheck // false positive
		if err := server.Shutdown(shutdownCtx); err != nil {
			Component.LogErrorf("failed to shut down Prometheus exporter: %s", err)
		}
		Component.LogInfo("Stopping Prometheus exporter ... done")
	}, daemon.PriorityMetrics)
}

func registerMetrics() error {
	enabledCollections := []struct {
		enabled    bool
		collection *collector.Collection
	}{
		{ParamsPrometheus.Collections.Tangle, TangleMetrics},
		{ParamsPrometheus.Collections.Milestones, MilestoneMetrics},
		{ParamsPrometheus.Collections.Info, InfoMetrics},
		{ParamsPrometheus.Collections.Database, DBMetrics},
	}

	for _, entry := range enabledCollections {
		if !entry.enabled {
			continue
		}

		if err := deps.Collector.RegisterCollection(entry.collection); err != nil {
			return err
		}
		Component.LogDebugf("registered %s metrics", entry.collection.Namespace())
	}

	return nil
}

func increment(namespace string, metricName string, labelValues ...string) {
	if err := deps.Collector.Increment(namespace, metricName, labelValues...); err != nil {
		Component.LogWarnf("failed to update metric: %s", err)
	}
}

func update(namespace string, metricName string, value float64, labelValues ...string) {
	if err := deps.Collector.Update(namespace, metricName, value, labelValues...); err != nil {
		Component.LogWarnf("failed to update metric: %s", err)
	}
}
