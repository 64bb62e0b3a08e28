package prometheus

import (
	"github.com/iotaledger/hive.go/runtime/event"
	"github.com/iotaledger/tangle-core/components/prometheus/collector"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/protocol"
)

const (
	milestonesNamespace = "milestones"

	confirmationDurationSeconds = "confirmation_duration_seconds"
	referencedBlocksTotal       = "referenced_blocks_total"
	includedBlocksTotal         = "included_blocks_total"
	conflictingBlocksTotal      = "conflicting_blocks_total"
	createdOutputsTotal         = "created_outputs_total"
	consumedOutputsTotal        = "consumed_outputs_total"
	rejectedMilestonesTotal     = "rejected_total"
	inclusionRootMismatchTotal  = "inclusion_merkle_root_mismatch_total"
	ledgerIndex                 = "ledger_index"
	treasuryAmount              = "treasury_amount"
)

var MilestoneMetrics = collector.NewCollection(milestonesNamespace,
	collector.WithMetric(collector.NewMetric(confirmationDurationSeconds,
		collector.WithType(collector.Histogram),
		collector.WithHelp("Time it took to confirm a milestone."),
		collector.WithBuckets(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
		collector.WithInitFunc(func() {
			deps.Protocol.Events.MilestoneConfirmed.Hook(func(result *protocol.ConfirmationResult) {
				update(milestonesNamespace, confirmationDurationSeconds, result.Duration.Seconds())
				update(milestonesNamespace, referencedBlocksTotal, float64(result.Referenced()))
				update(milestonesNamespace, includedBlocksTotal, float64(result.Included()))

				for _, blockResult := range result.Mutations.BlockResults {
					if blockResult.InclusionState == model.InclusionStateConflicting {
						increment(milestonesNamespace, conflictingBlocksTotal, blockResult.Conflict.String())
					}
				}

				if !result.Mutations.InclusionMerkleRootMatches {
					increment(milestonesNamespace, inclusionRootMismatchTotal)
				}
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(referencedBlocksTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of blocks referenced by milestones."),
	)),
	collector.WithMetric(collector.NewMetric(includedBlocksTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of transaction blocks applied to the ledger."),
	)),
	collector.WithMetric(collector.NewMetric(conflictingBlocksTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of conflicting transaction blocks per conflict reason."),
		collector.WithLabels("reason"),
	)),
	collector.WithMetric(collector.NewMetric(inclusionRootMismatchTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of milestones with a mismatching inclusion merkle root."),
	)),
	collector.WithMetric(collector.NewMetric(createdOutputsTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of outputs created by confirmed milestones."),
		collector.WithInitFunc(func() {
			deps.Protocol.Events.OutputCreated.Hook(func(_ *utxo.Output) {
				increment(milestonesNamespace, createdOutputsTotal)
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(consumedOutputsTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of outputs consumed by confirmed milestones."),
		collector.WithInitFunc(func() {
			deps.Protocol.Events.OutputConsumed.Hook(func(_ *utxo.Spent) {
				increment(milestonesNamespace, consumedOutputsTotal)
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(rejectedMilestonesTotal,
		collector.WithType(collector.Counter),
		collector.WithHelp("Total number of milestones that failed validation."),
		collector.WithInitFunc(func() {
			deps.Protocol.Events.MilestoneRejected.Hook(func(_ *model.Block, _ error) {
				increment(milestonesNamespace, rejectedMilestonesTotal)
			}, event.WithWorkerPool(Component.WorkerPool))
		}),
	)),
	collector.WithMetric(collector.NewMetric(ledgerIndex,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Milestone index the ledger state is at."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			index, err := deps.Ledger.ReadLedgerIndex()
			if err != nil {
				Component.LogWarnf("failed to read ledger index: %s", err)
			}

			return float64(index), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(treasuryAmount,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Amount of tokens in the treasury."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			amount, err := deps.Ledger.ReadTreasury()
			if err != nil {
				Component.LogWarnf("failed to read treasury: %s", err)
			}

			return float64(amount), nil
		}),
	)),
)
