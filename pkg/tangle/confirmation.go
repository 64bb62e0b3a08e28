package tangle

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// ConfirmationBatch stages the metadata stamps of one milestone confirmation into a batch that may
// also carry the ledger mutations. Nothing becomes visible before Apply is called after the commit.
type ConfirmationBatch struct {
	tangle    *Tangle
	mutations kvstore.BatchedMutations
	index     model.MilestoneIndex

	confirmed []*model.BlockMetadata
	staged    map[model.BlockID]struct{}
}

// NewConfirmationBatch starts the confirmation of the given milestone index, which must directly follow
// the confirmed milestone index.
func (t *Tangle) NewConfirmationBatch(mutations kvstore.BatchedMutations, index model.MilestoneIndex) (*ConfirmationBatch, error) {
	t.indexMutex.RLock()
	defer t.indexMutex.RUnlock()

	if confirmedIndex := t.confirmedMilestoneIndex.Index(); index != confirmedIndex+1 {
		return nil, ierrors.Wrapf(ErrIndexInvariantViolated, "milestone %d does not follow confirmed milestone %d", index, confirmedIndex)
	}
	if latestIndex := t.latestMilestoneIndex.Index(); index > latestIndex {
		return nil, ierrors.Wrapf(ErrIndexInvariantViolated, "milestone %d is above the latest milestone %d", index, latestIndex)
	}

	return &ConfirmationBatch{
		tangle:    t,
		mutations: mutations,
		index:     index,
		confirmed: make([]*model.BlockMetadata, 0),
		staged:    make(map[model.BlockID]struct{}),
	}, nil
}

func (b *ConfirmationBatch) Index() model.MilestoneIndex {
	return b.index
}

// Confirm stages the confirmation of a solid, not yet confirmed block.
func (b *ConfirmationBatch) Confirm(blockID model.BlockID, state model.InclusionState, conflict model.ConflictReason) error {
	if _, alreadyStaged := b.staged[blockID]; alreadyStaged {
		return ierrors.Wrapf(ErrIllegalMetadataTransition, "block %s was confirmed twice by milestone %d", blockID, b.index)
	}

	lock := b.tangle.blockLock(blockID)
	lock.Lock()
	defer lock.Unlock()

	current, exists, err := b.tangle.loadMetadata(blockID)
	if err != nil {
		return err
	}
	if !exists {
		return ierrors.Wrapf(ErrBlockNotFound, "block %s", blockID)
	}

	updated := current.Clone()
	updated.SetConfirmed(b.index, state, conflict)

	if current.IsConfirmed() {
		return ierrors.Wrapf(ErrIllegalMetadataTransition, "block %s was already confirmed by milestone %d", blockID, current.ConfirmationIndex())
	}
	if err := validateTransition(current, updated); err != nil {
		return err
	}

	if err := b.mutations.Set(metadataKey(blockID), lo.PanicOnErr(updated.Bytes())); err != nil {
		return err
	}
	if err := b.mutations.Set(confirmedBlockKey(b.index, blockID), []byte{}); err != nil {
		return err
	}

	b.staged[blockID] = struct{}{}
	b.confirmed = append(b.confirmed, updated)

	return nil
}

// StageConfirmedMilestoneIndex writes the new confirmed milestone index into the batch.
func (b *ConfirmationBatch) StageConfirmedMilestoneIndex() error {
	return b.tangle.confirmedMilestoneIndex.Stage(b.mutations, b.index)
}

// ConfirmedCount returns the number of blocks staged so far.
func (b *ConfirmationBatch) ConfirmedCount() int {
	return len(b.confirmed)
}

// Apply publishes the committed confirmation to the caches, the confirmed milestone index and the event listeners.
func (b *ConfirmationBatch) Apply() {
	for _, metadata := range b.confirmed {
		lock := b.tangle.blockLock(metadata.BlockID())
		lock.Lock()
		b.tangle.cacheMetadata(metadata)
		lock.Unlock()
	}

	b.tangle.indexMutex.Lock()
	b.tangle.confirmedMilestoneIndex.SetInMemory(b.index)
	b.tangle.indexMutex.Unlock()

	for _, metadata := range b.confirmed {
		b.tangle.Events.BlockConfirmed.Trigger(metadata.Clone())
	}

	b.tangle.Events.ConfirmedMilestoneIndexChanged.Trigger(b.index)
}

// ForEachConfirmedBlock iterates the blocks confirmed by the given milestone.
func (t *Tangle) ForEachConfirmedBlock(index model.MilestoneIndex, consumer func(blockID model.BlockID) bool) error {
	return t.forEachBlockIDWithPrefix(confirmedBlocksPrefix(index), consumer)
}

// ForEachUnreferencedBlock iterates the blocks that arrived while the given milestone was the latest one.
func (t *Tangle) ForEachUnreferencedBlock(index model.MilestoneIndex, consumer func(blockID model.BlockID) bool) error {
	return t.forEachBlockIDWithPrefix(unreferencedBlocksPrefix(index), consumer)
}

// StageDeleteConfirmedBlocksIndex drops the confirmed-block entries of the given milestone.
func (t *Tangle) StageDeleteConfirmedBlocksIndex(mutations kvstore.BatchedMutations, index model.MilestoneIndex) error {
	return t.stageDeleteBlockIDsWithPrefix(mutations, confirmedBlocksPrefix(index))
}

// StageDeleteUnreferencedBlocksIndex drops the unreferenced-block entries of the given milestone.
func (t *Tangle) StageDeleteUnreferencedBlocksIndex(mutations kvstore.BatchedMutations, index model.MilestoneIndex) error {
	return t.stageDeleteBlockIDsWithPrefix(mutations, unreferencedBlocksPrefix(index))
}

func (t *Tangle) forEachBlockIDWithPrefix(prefix []byte, consumer func(blockID model.BlockID) bool) error {
	var innerErr error
	if err := t.store.IterateKeys(prefix, func(key kvstore.Key) bool {
		blockID, err := blockIDFromKeySuffix(key)
		if err != nil {
			innerErr = err
			return false
		}

		return consumer(blockID)
	}); err != nil {
		return err
	}

	return innerErr
}

func (t *Tangle) stageDeleteBlockIDsWithPrefix(mutations kvstore.BatchedMutations, prefix []byte) error {
	keys := make([]kvstore.Key, 0)
	if err := t.store.IterateKeys(prefix, func(key kvstore.Key) bool {
		keys = append(keys, lo.CopySlice(key))
		return true
	}); err != nil {
		return err
	}

	for _, key := range keys {
		if err := mutations.Delete(key); err != nil {
			return err
		}
	}

	return nil
}
