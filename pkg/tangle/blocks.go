package tangle

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// Insert stores a block together with its pending metadata and registers it as a child of its parents.
// It returns false if the block was already known.
func (t *Tangle) Insert(block *model.Block) (stored bool, err error) {
	blockID := block.ID()

	lock := t.blockLock(blockID)
	lock.Lock()
	defer lock.Unlock()

	exists, err := t.blocks.Has(blockID)
	if err != nil {
		return false, ierrors.Wrapf(err, "failed to check existence of block %s", blockID)
	}
	if exists {
		return false, nil
	}

	metadata := model.NewBlockMetadata(blockID, t.now())

	mutations, err := t.store.Batched()
	if err != nil {
		return false, err
	}

	if err := t.stageBlock(mutations, block, metadata); err != nil {
		mutations.Cancel()
		return false, err
	}

	if err := mutations.Commit(); err != nil {
		return false, ierrors.Wrapf(err, "failed to commit block %s", blockID)
	}

	t.blockCache.Set(blockID[:], block.Data())
	t.cacheMetadata(metadata)

	t.tips.Set(blockID, metadata.ArrivalTime())
	for _, parent := range block.Parents() {
		t.tips.Delete(parent)
	}

	// a child can arrive before its parent; checked after Set so a concurrent child insert is not missed
	hasChildren, err := t.hasChildren(blockID)
	if err != nil {
		return true, err
	}
	if hasChildren {
		t.tips.Delete(blockID)
	}

	t.Events.BlockStored.Trigger(block)

	return true, nil
}

func (t *Tangle) stageBlock(mutations kvstore.BatchedMutations, block *model.Block, metadata *model.BlockMetadata) error {
	blockID := block.ID()

	if err := mutations.Set(blockKey(blockID), block.Data()); err != nil {
		return err
	}
	if err := mutations.Set(metadataKey(blockID), lo.PanicOnErr(metadata.Bytes())); err != nil {
		return err
	}
	for _, parent := range block.Parents() {
		if err := mutations.Set(childKey(parent, blockID), []byte{}); err != nil {
			return err
		}
	}

	return mutations.Set(unreferencedBlockKey(t.LatestMilestoneIndex(), blockID), []byte{})
}

// Block returns the block with the given id.
func (t *Tangle) Block(blockID model.BlockID) (*model.Block, bool, error) {
	if data, has := t.blockCache.HasGet(nil, blockID[:]); has {
		block, err := model.BlockFromBytes(data)
		if err != nil {
			return nil, false, ierrors.Wrapf(err, "cached block %s is corrupted", blockID)
		}

		return block, true, nil
	}

	block, err := t.blocks.Get(blockID)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, false, nil
		}

		return nil, false, ierrors.Wrapf(err, "failed to load block %s", blockID)
	}

	t.blockCache.Set(blockID[:], block.Data())

	return block, true, nil
}

// BlockExists returns whether the block is stored, without loading it.
func (t *Tangle) BlockExists(blockID model.BlockID) (bool, error) {
	if t.blockCache.Has(blockID[:]) {
		return true, nil
	}

	return t.blocks.Has(blockID)
}

func (t *Tangle) hasChildren(blockID model.BlockID) (bool, error) {
	var found bool
	if err := t.store.IterateKeys(childrenPrefix(blockID), func(kvstore.Key) bool {
		found = true
		return false
	}); err != nil {
		return false, ierrors.Wrapf(err, "failed to iterate children of block %s", blockID)
	}

	return found, nil
}

// Children returns the ids of all stored blocks that reference the given block as a parent.
func (t *Tangle) Children(blockID model.BlockID) (model.BlockIDs, error) {
	children := make(model.BlockIDs, 0)

	var innerErr error
	if err := t.store.IterateKeys(childrenPrefix(blockID), func(key kvstore.Key) bool {
		childID, err := blockIDFromKeySuffix(key)
		if err != nil {
			innerErr = err
			return false
		}
		children = append(children, childID)

		return true
	}); err != nil {
		return nil, ierrors.Wrapf(err, "failed to iterate children of %s", blockID)
	}

	return children, innerErr
}

// StageDeleteBlock removes the block, its metadata and its adjacency entries within the given batch.
// EvictBlocks must be called once the batch was committed.
func (t *Tangle) StageDeleteBlock(mutations kvstore.BatchedMutations, blockID model.BlockID) error {
	block, exists, err := t.Block(blockID)
	if err != nil {
		return err
	}
	if exists {
		for _, parent := range block.Parents() {
			if err := mutations.Delete(childKey(parent, blockID)); err != nil {
				return err
			}
		}
	}

	children, err := t.Children(blockID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := mutations.Delete(childKey(blockID, child)); err != nil {
			return err
		}
	}

	if err := mutations.Delete(metadataKey(blockID)); err != nil {
		return err
	}

	return mutations.Delete(blockKey(blockID))
}

// EvictBlocks drops deleted blocks from the caches and the tip set.
func (t *Tangle) EvictBlocks(blockIDs ...model.BlockID) {
	t.metadataCacheMutex.Lock()
	defer t.metadataCacheMutex.Unlock()

	for _, blockID := range blockIDs {
		t.blockCache.Del(blockID[:])
		t.metadataCache.Remove(blockID)
		t.tips.Delete(blockID)
	}
}
