package prometheus

import (
	"github.com/iotaledger/hive.go/runtime/event"
	"github.com/iotaledger/tangle-core/components/prometheus/collector"
	"github.com/iotaledger/tangle-core/pkg/model"
)

const (
	tangleNamespace = "tangle"

	tipsCount               = "tips_count"
	storedBlocksTotal       = "stored_blocks_total"
	solidBlocksTotal        = "solid_blocks_total"
	confirmedBlocksTotal    = "confirmed_blocks_total"
	latestMilestoneIndex    = "latest_milestone_index"
	confirmedMilestoneIndex = "confirmed_milestone_index"
	pruningIndex            = "pruning_index"
	snapshotIndex           = "snapshot_index"
	solidEntryPointsCount   = "solid_entry_points_count"
)

var TangleMetrics = collector.NewCollection(tangleNamespace,
	collector.WithMetric(collector.NewMetric(tipsCount,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Number of tips in the tangle."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return float64(deps.Tangle.TipCount()), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(storedBlocksTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of blocks stored."),
		collector.WithInitFunc(func() {
			deps.Tangle.Events.BlockStored.Hook(func(_ *model.Block) {
				increment(tangleNamespace, storedBlocksTotal)
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(solidBlocksTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of blocks that became solid."),
		collector.WithInitFunc(func() {
			deps.Tangle.Events.BlockSolid.Hook(func(_ *model.BlockMetadata) {
				increment(tangleNamespace, solidBlocksTotal)
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(confirmedBlocksTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of blocks confirmed by milestones."),
		collector.WithInitFunc(func() {
			deps.Tangle.Events.BlockConfirmed.Hook(func(_ *model.BlockMetadata) {
				increment(tangleNamespace, confirmedBlocksTotal)
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(latestMilestoneIndex,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Index of the latest known milestone."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return float64(deps.Tangle.LatestMilestoneIndex()), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(confirmedMilestoneIndex,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Index of the last confirmed milestone."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return float64(deps.Tangle.ConfirmedMilestoneIndex()), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(pruningIndex,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Index up to which the history was pruned."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return float64(deps.Tangle.PruningIndex()), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(snapshotIndex,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Index of the last snapshot."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return float64(deps.Tangle.SnapshotIndex()), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(solidEntryPointsCount,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Number of solid entry points."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return float64(deps.Tangle.SolidEntryPoints().Size()), nil
		}),
	)),
)
