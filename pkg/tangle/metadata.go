package tangle

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// Metadata returns a copy of the metadata of the given block.
func (t *Tangle) Metadata(blockID model.BlockID) (*model.BlockMetadata, bool, error) {
	metadata, exists, err := t.loadMetadata(blockID)
	if err != nil || !exists {
		return nil, exists, err
	}

	return metadata.Clone(), true, nil
}

func (t *Tangle) loadMetadata(blockID model.BlockID) (*model.BlockMetadata, bool, error) {
	t.metadataCacheMutex.Lock()
	cached, has := t.metadataCache.Get(blockID)
	t.metadataCacheMutex.Unlock()
	if has {
		return cached, true, nil
	}

	data, err := t.store.Get(metadataKey(blockID))
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, false, nil
		}

		return nil, false, ierrors.Wrapf(err, "failed to load metadata of block %s", blockID)
	}

	metadata, err := model.BlockMetadataFromBytes(blockID, data)
	if err != nil {
		return nil, false, ierrors.Wrapf(err, "metadata of block %s is corrupted", blockID)
	}

	t.cacheMetadata(metadata)

	return metadata, true, nil
}

func (t *Tangle) cacheMetadata(metadata *model.BlockMetadata) {
	t.metadataCacheMutex.Lock()
	defer t.metadataCacheMutex.Unlock()

	t.metadataCache.Put(metadata.BlockID(), metadata)
}

// UpdateMetadata atomically applies updateFunc to the metadata of the given block and persists the result.
// Updates that would break the metadata state machine are rejected with ErrIllegalMetadataTransition.
func (t *Tangle) UpdateMetadata(blockID model.BlockID, updateFunc func(metadata *model.BlockMetadata)) (*model.BlockMetadata, error) {
	lock := t.blockLock(blockID)
	lock.Lock()
	defer lock.Unlock()

	current, exists, err := t.loadMetadata(blockID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ierrors.Wrapf(ErrBlockNotFound, "block %s", blockID)
	}

	updated := current.Clone()
	updateFunc(updated)

	if err := validateTransition(current, updated); err != nil {
		return nil, err
	}

	if err := t.store.Set(metadataKey(blockID), lo.PanicOnErr(updated.Bytes())); err != nil {
		return nil, ierrors.Wrapf(err, "failed to store metadata of block %s", blockID)
	}
	t.cacheMetadata(updated)

	if !current.IsSolid() && updated.IsSolid() {
		t.Events.BlockSolid.Trigger(updated.Clone())
	}
	if !current.IsConfirmed() && updated.IsConfirmed() {
		t.Events.BlockConfirmed.Trigger(updated.Clone())
	}

	return updated.Clone(), nil
}

// validateTransition enforces Pending -> Solid -> Confirmed. Confirmed is terminal and the milestone flag is set once.
func validateTransition(previous *model.BlockMetadata, next *model.BlockMetadata) error {
	switch {
	case previous.BlockID() != next.BlockID():
		return ierrors.Wrapf(ErrIllegalMetadataTransition, "block id changed from %s to %s", previous.BlockID(), next.BlockID())

	case previous.IsSolid() && !next.IsSolid():
		return ierrors.Wrapf(ErrIllegalMetadataTransition, "block %s cannot become unsolid", next.BlockID())

	case next.IsConfirmed() && !next.IsSolid():
		return ierrors.Wrapf(ErrIllegalMetadataTransition, "block %s cannot be confirmed before it is solid", next.BlockID())

	case previous.IsConfirmed() && (!next.IsConfirmed() ||
		previous.ConfirmationIndex() != next.ConfirmationIndex() ||
		previous.InclusionState() != next.InclusionState() ||
		previous.Conflict() != next.Conflict()):
		return ierrors.Wrapf(ErrIllegalMetadataTransition, "block %s was already confirmed by milestone %d", next.BlockID(), previous.ConfirmationIndex())

	case previous.IsMilestone() && (!next.IsMilestone() || previous.MilestoneIndex() != next.MilestoneIndex()):
		return ierrors.Wrapf(ErrIllegalMetadataTransition, "block %s already carries milestone %d", next.BlockID(), previous.MilestoneIndex())

	default:
		return nil
	}
}
