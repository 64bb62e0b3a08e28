package pruning

import (
	"context"

	"go.uber.org/atomic"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

// Manager removes the history below the pruning target and replaces it by solid entry points.
type Manager struct {
	Events *Events

	logger log.Logger
	tangle *tangle.Tangle
	ledger *utxo.Manager

	isPruning *atomic.Bool

	optsPolicy Policy
}

func New(logger log.Logger, tangle *tangle.Tangle, ledger *utxo.Manager, opts ...options.Option[Manager]) *Manager {
	return options.Apply(&Manager{
		Events:     NewEvents(),
		logger:     logger,
		tangle:     tangle,
		ledger:     ledger,
		isPruning:  atomic.NewBool(false),
		optsPolicy: DefaultPolicy(),
	}, opts)
}

func (m *Manager) Policy() Policy {
	return m.optsPolicy
}

// Prune runs the next pruning step the policy allows at the current confirmed milestone.
// An empty range means there was nothing to prune.
func (m *Manager) Prune(ctx context.Context) (PruneRange, error) {
	return m.PruneUntil(ctx, m.tangle.ConfirmedMilestoneIndex())
}

// PruneUntil prunes towards the requested index. The request is clamped to the policy, so asking for an
// index within the pruning delay of the confirmed milestone does nothing.
func (m *Manager) PruneUntil(ctx context.Context, requestedIndex model.MilestoneIndex) (PruneRange, error) {
	if !m.isPruning.CompareAndSwap(false, true) {
		return PruneRange{}, ErrPruningRunning
	}
	defer m.isPruning.Store(false)

	pruneRange, ok := m.optsPolicy.RangeUntil(m.tangle.ConfirmedMilestoneIndex(), m.tangle.PruningIndex(), requestedIndex)
	if !ok {
		return PruneRange{}, nil
	}

	for index := pruneRange.Start; index <= pruneRange.End; index++ {
		if err := ctx.Err(); err != nil {
			return PruneRange{Start: pruneRange.Start, End: index - 1}, err
		}

		if err := m.pruneMilestone(ctx, index); err != nil {
			return PruneRange{Start: pruneRange.Start, End: index - 1}, ierrors.Wrapf(err, "failed to prune milestone %d", index)
		}
	}

	return pruneRange, nil
}

func (m *Manager) pruneMilestone(ctx context.Context, index model.MilestoneIndex) error {
	entries, err := m.SolidEntryPoints(ctx, index)
	if err != nil {
		return err
	}

	deleted, err := m.prunableBlocks(index)
	if err != nil {
		return err
	}

	m.ledger.WriteLockLedger()
	defer m.ledger.WriteUnlockLedger()

	mutations, err := m.tangle.KVStore().Batched()
	if err != nil {
		return err
	}

	if err := m.stagePruning(mutations, index, deleted, entries); err != nil {
		mutations.Cancel()

		return err
	}

	if err := mutations.Commit(); err != nil {
		return ierrors.Wrap(err, "failed to commit pruning batch")
	}

	m.tangle.EvictBlocks(deleted...)
	m.tangle.SolidEntryPoints().SetInMemory(entries)
	m.tangle.ApplyPruningIndex(index)

	m.logger.LogDebug("milestone pruned", "index", index, "blocks", len(deleted), "solidEntryPoints", len(entries))

	m.Events.Pruned.Trigger(index)

	return nil
}

func (m *Manager) stagePruning(mutations kvstore.BatchedMutations, index model.MilestoneIndex, deleted model.BlockIDs, entries map[model.BlockID]model.MilestoneIndex) error {
	for _, blockID := range deleted {
		if err := m.tangle.StageDeleteBlock(mutations, blockID); err != nil {
			return err
		}
	}

	if err := m.tangle.StageDeleteConfirmedBlocksIndex(mutations, index); err != nil {
		return err
	}
	if err := m.tangle.StageDeleteUnreferencedBlocksIndex(mutations, index); err != nil {
		return err
	}
	if err := m.tangle.StageDeleteMilestone(mutations, index); err != nil {
		return err
	}
	if err := m.ledger.StagePruneMilestoneIndexWithoutLocking(index, mutations); err != nil {
		return err
	}
	if err := m.tangle.SolidEntryPoints().StageReplace(mutations, entries); err != nil {
		return err
	}

	return m.tangle.StagePruningIndex(mutations, index)
}

// prunableBlocks returns the blocks confirmed by the milestone and the blocks that arrived while it was the
// latest milestone and never got confirmed.
func (m *Manager) prunableBlocks(index model.MilestoneIndex) (model.BlockIDs, error) {
	blockIDs := make(model.BlockIDs, 0)
	seen := make(map[model.BlockID]struct{})

	if err := m.tangle.ForEachConfirmedBlock(index, func(blockID model.BlockID) bool {
		seen[blockID] = struct{}{}
		blockIDs = append(blockIDs, blockID)

		return true
	}); err != nil {
		return nil, err
	}

	unreferenced := make(model.BlockIDs, 0)
	if err := m.tangle.ForEachUnreferencedBlock(index, func(blockID model.BlockID) bool {
		unreferenced = append(unreferenced, blockID)
		return true
	}); err != nil {
		return nil, err
	}

	for _, blockID := range unreferenced {
		if _, alreadyDeleted := seen[blockID]; alreadyDeleted {
			continue
		}

		metadata, exists, err := m.tangle.Metadata(blockID)
		if err != nil {
			return nil, err
		}
		// confirmed blocks are removed together with the milestone that confirmed them
		if exists && metadata.IsConfirmed() {
			continue
		}

		seen[blockID] = struct{}{}
		blockIDs = append(blockIDs, blockID)
	}

	return blockIDs, nil
}

// SolidEntryPoints computes the solid entry points that stand in for all blocks up to the target index.
// A block confirmed within the last SolidEntryPointThresholdPast milestones before the target becomes an
// entry point if one of its children is not confirmed yet or confirmed above the target.
func (m *Manager) SolidEntryPoints(ctx context.Context, targetIndex model.MilestoneIndex) (map[model.BlockID]model.MilestoneIndex, error) {
	pruningIndex := m.tangle.PruningIndex()
	if targetIndex < pruningIndex {
		return nil, ierrors.Wrapf(ErrNotEnoughHistory, "target %d is below the pruning index %d", targetIndex, pruningIndex)
	}

	var windowStart model.MilestoneIndex
	if threshold := m.optsPolicy.SolidEntryPointThresholdPast; targetIndex >= threshold {
		windowStart = targetIndex - threshold + 1
	}

	entries := make(map[model.BlockID]model.MilestoneIndex)
	m.tangle.SolidEntryPoints().ForEach(func(blockID model.BlockID, index model.MilestoneIndex) bool {
		if index >= windowStart && index <= targetIndex {
			entries[blockID] = index
		}

		return true
	})

	startIndex := windowStart
	if startIndex <= pruningIndex {
		startIndex = pruningIndex + 1
	}

	for index := startIndex; index <= targetIndex; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		confirmed := make(model.BlockIDs, 0)
		if err := m.tangle.ForEachConfirmedBlock(index, func(blockID model.BlockID) bool {
			confirmed = append(confirmed, blockID)
			return true
		}); err != nil {
			return nil, err
		}

		for _, blockID := range confirmed {
			isEntryPoint, err := m.referencedAbove(blockID, targetIndex)
			if err != nil {
				return nil, err
			}
			if isEntryPoint {
				entries[blockID] = index
			}
		}
	}

	return entries, nil
}

func (m *Manager) referencedAbove(blockID model.BlockID, targetIndex model.MilestoneIndex) (bool, error) {
	children, err := m.tangle.Children(blockID)
	if err != nil {
		return false, err
	}

	for _, child := range children {
		metadata, exists, err := m.tangle.Metadata(child)
		if err != nil {
			return false, err
		}
		if !exists || !metadata.IsConfirmed() || metadata.ConfirmationIndex() > targetIndex {
			return true, nil
		}
	}

	return false, nil
}
