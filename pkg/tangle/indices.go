package tangle

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/tangle-core/pkg/model"
)

func (t *Tangle) LatestMilestoneIndex() model.MilestoneIndex {
	return t.latestMilestoneIndex.Index()
}

func (t *Tangle) ConfirmedMilestoneIndex() model.MilestoneIndex {
	return t.confirmedMilestoneIndex.Index()
}

func (t *Tangle) PruningIndex() model.MilestoneIndex {
	return t.pruningIndex.Index()
}

func (t *Tangle) SnapshotIndex() model.MilestoneIndex {
	return t.snapshotIndex.Index()
}

// IsSynced returns whether every known milestone is confirmed.
func (t *Tangle) IsSynced() bool {
	t.indexMutex.RLock()
	defer t.indexMutex.RUnlock()

	return t.confirmedMilestoneIndex.Index() >= t.latestMilestoneIndex.Index()
}

// RaiseLatestMilestoneIndex moves the latest milestone index forward. Lower values are ignored.
func (t *Tangle) RaiseLatestMilestoneIndex(index model.MilestoneIndex) (raised bool, err error) {
	t.indexMutex.Lock()
	if index <= t.latestMilestoneIndex.Index() {
		t.indexMutex.Unlock()
		return false, nil
	}

	if err := t.latestMilestoneIndex.Set(index); err != nil {
		t.indexMutex.Unlock()
		return false, err
	}
	t.indexMutex.Unlock()

	t.Events.LatestMilestoneIndexChanged.Trigger(index)

	return true, nil
}

// SetSnapshotIndex records the index of the latest snapshot, which can not be above the confirmed milestone index.
func (t *Tangle) SetSnapshotIndex(index model.MilestoneIndex) error {
	t.indexMutex.Lock()
	defer t.indexMutex.Unlock()

	if confirmedIndex := t.confirmedMilestoneIndex.Index(); index > confirmedIndex {
		return ierrors.Wrapf(ErrIndexInvariantViolated, "snapshot index %d is above the confirmed milestone index %d", index, confirmedIndex)
	}

	return t.snapshotIndex.Set(index)
}

// StagePruningIndex writes a new pruning index into the batch. ApplyPruningIndex publishes it after the commit.
func (t *Tangle) StagePruningIndex(mutations kvstore.BatchedMutations, index model.MilestoneIndex) error {
	t.indexMutex.RLock()
	defer t.indexMutex.RUnlock()

	if err := t.checkIndexInvariant(index, t.confirmedMilestoneIndex.Index(), t.latestMilestoneIndex.Index()); err != nil {
		return err
	}
	if currentIndex := t.pruningIndex.Index(); index < currentIndex {
		return ierrors.Wrapf(ErrIndexInvariantViolated, "pruning index can not move back from %d to %d", currentIndex, index)
	}

	return t.pruningIndex.Stage(mutations, index)
}

func (t *Tangle) ApplyPruningIndex(index model.MilestoneIndex) {
	t.indexMutex.Lock()
	t.pruningIndex.SetInMemory(index)
	t.indexMutex.Unlock()

	t.Events.PruningIndexChanged.Trigger(index)
}

// InitializeFromSnapshot sets all index pointers to a freshly imported snapshot index.
// The history below the snapshot is represented by the solid entry points only.
func (t *Tangle) InitializeFromSnapshot(index model.MilestoneIndex) error {
	t.indexMutex.Lock()
	defer t.indexMutex.Unlock()

	mutations, err := t.store.Batched()
	if err != nil {
		return err
	}

	latestIndex := t.latestMilestoneIndex.Index()
	if latestIndex < index {
		latestIndex = index
	}

	for stored, value := range map[*model.StoredIndex]model.MilestoneIndex{
		t.latestMilestoneIndex:    latestIndex,
		t.confirmedMilestoneIndex: index,
		t.pruningIndex:            index,
		t.snapshotIndex:           index,
	} {
		if err := stored.Stage(mutations, value); err != nil {
			mutations.Cancel()
			return err
		}
	}

	if err := mutations.Commit(); err != nil {
		return ierrors.Wrap(err, "failed to commit snapshot indices")
	}

	t.latestMilestoneIndex.SetInMemory(latestIndex)
	t.confirmedMilestoneIndex.SetInMemory(index)
	t.pruningIndex.SetInMemory(index)
	t.snapshotIndex.SetInMemory(index)

	return nil
}

func (t *Tangle) checkIndexInvariant(pruningIndex model.MilestoneIndex, confirmedIndex model.MilestoneIndex, latestIndex model.MilestoneIndex) error {
	if pruningIndex > confirmedIndex || confirmedIndex > latestIndex {
		return ierrors.Wrapf(ErrIndexInvariantViolated, "pruning %d, confirmed %d, latest %d", pruningIndex, confirmedIndex, latestIndex)
	}

	return nil
}

// IsSolidEntryPoint returns whether the block is a stand-in for pruned history.
func (t *Tangle) IsSolidEntryPoint(blockID model.BlockID) bool {
	return t.solidEntryPoints.Contains(blockID)
}

// SolidEntryPointIndex returns the milestone index that subsumed the solid entry point.
func (t *Tangle) SolidEntryPointIndex(blockID model.BlockID) (model.MilestoneIndex, bool) {
	return t.solidEntryPoints.Index(blockID)
}

func (t *Tangle) SolidEntryPoints() *SolidEntryPoints {
	return t.solidEntryPoints
}
