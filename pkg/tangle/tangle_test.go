package tangle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/tangle"
	"github.com/iotaledger/tangle-core/pkg/utils"
)

func newTestTangle(t *testing.T, store kvstore.KVStore) *tangle.Tangle {
	tng, err := tangle.New(log.NewLogger().NewChildLogger(t.Name()), store, tangle.WithMetadataCacheSize(16))
	require.NoError(t, err)

	return tng
}

func newBlock(t *testing.T, nonce uint64, parents ...model.BlockID) *model.Block {
	block, err := model.NewBlock(parents, nil, nonce)
	require.NoError(t, err)

	return block
}

func insert(t *testing.T, tng *tangle.Tangle, block *model.Block) {
	stored, err := tng.Insert(block)
	require.NoError(t, err)
	require.True(t, stored)
}

func solidBlock(t *testing.T, tng *tangle.Tangle, nonce uint64, parents ...model.BlockID) *model.Block {
	block := newBlock(t, nonce, parents...)
	insert(t, tng, block)

	solid, err := tng.CheckSolidity(block.ID())
	require.NoError(t, err)
	require.True(t, solid)

	return block
}

func TestTangle_Insert(t *testing.T) {
	tng := newTestTangle(t, mapdb.NewMapDB())

	var storedEvents int
	tng.Events.BlockStored.Hook(func(_ *model.Block) {
		storedEvents++
	})

	a := newBlock(t, 1, model.EmptyBlockID)
	b := newBlock(t, 2, model.EmptyBlockID)
	c := newBlock(t, 3, a.ID(), b.ID())

	insert(t, tng, a)
	insert(t, tng, b)
	require.Equal(t, model.BlockIDs{a.ID(), b.ID()}.RemoveDupsAndSort(), tng.Tips())

	insert(t, tng, c)
	require.Equal(t, model.BlockIDs{c.ID()}, tng.Tips())

	stored, err := tng.Insert(c)
	require.NoError(t, err)
	require.False(t, stored)
	require.Equal(t, 3, storedEvents)

	loaded, exists, err := tng.Block(c.ID())
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, c.Data(), loaded.Data())

	_, exists, err = tng.Block(utils.RandBlockID())
	require.NoError(t, err)
	require.False(t, exists)

	children, err := tng.Children(a.ID())
	require.NoError(t, err)
	require.Equal(t, model.BlockIDs{c.ID()}, children)

	children, err = tng.Children(model.EmptyBlockID)
	require.NoError(t, err)
	require.ElementsMatch(t, model.BlockIDs{a.ID(), b.ID()}, children)

	metadata, exists, err := tng.Metadata(c.ID())
	require.NoError(t, err)
	require.True(t, exists)
	require.False(t, metadata.IsSolid())
	require.False(t, metadata.IsConfirmed())

	var unreferenced int
	require.NoError(t, tng.ForEachUnreferencedBlock(0, func(model.BlockID) bool {
		unreferenced++
		return true
	}))
	require.Equal(t, 3, unreferenced)
}

func TestTangle_TipsWithChildBeforeParent(t *testing.T) {
	tng := newTestTangle(t, mapdb.NewMapDB())

	a := newBlock(t, 1, model.EmptyBlockID)
	c := newBlock(t, 2, a.ID())

	insert(t, tng, c)
	require.Equal(t, model.BlockIDs{c.ID()}, tng.Tips())

	insert(t, tng, a)

	children, err := tng.Children(a.ID())
	require.NoError(t, err)
	require.Equal(t, model.BlockIDs{c.ID()}, children)

	require.False(t, tng.IsTip(a.ID()))
	require.True(t, tng.IsTip(c.ID()))
	require.Equal(t, 1, tng.TipCount())
	require.Equal(t, model.BlockIDs{c.ID()}, tng.Tips())
}

func TestTangle_SolidityPropagatesToChildren(t *testing.T) {
	tng := newTestTangle(t, mapdb.NewMapDB())

	parent := newBlock(t, 1, model.EmptyBlockID)
	child := newBlock(t, 2, parent.ID())
	grandChild := newBlock(t, 3, child.ID(), model.EmptyBlockID)

	var solidEvents int
	tng.Events.BlockSolid.Hook(func(_ *model.BlockMetadata) {
		solidEvents++
	})

	insert(t, tng, grandChild)
	insert(t, tng, child)

	solid, err := tng.CheckSolidity(grandChild.ID())
	require.NoError(t, err)
	require.False(t, solid)

	insert(t, tng, parent)

	solid, err = tng.CheckSolidity(parent.ID())
	require.NoError(t, err)
	require.True(t, solid)

	for _, blockID := range []model.BlockID{parent.ID(), child.ID(), grandChild.ID()} {
		metadata, exists, err := tng.Metadata(blockID)
		require.NoError(t, err)
		require.True(t, exists)
		require.True(t, metadata.IsSolid())
		require.False(t, metadata.SolidificationTime().IsZero())
	}
	require.Equal(t, 3, solidEvents)
}

func TestTangle_MetadataTransitions(t *testing.T) {
	tng := newTestTangle(t, mapdb.NewMapDB())

	pending := newBlock(t, 1, utils.RandBlockID())
	insert(t, tng, pending)

	_, err := tng.UpdateMetadata(pending.ID(), func(metadata *model.BlockMetadata) {
		metadata.SetConfirmed(1, model.InclusionStateNoTransaction, model.ConflictNone)
	})
	require.True(t, ierrors.Is(err, tangle.ErrIllegalMetadataTransition))

	solid := solidBlock(t, tng, 2, model.EmptyBlockID)

	_, err = tng.UpdateMetadata(solid.ID(), func(metadata *model.BlockMetadata) {
		*metadata = *model.NewBlockMetadata(solid.ID(), time.Now())
	})
	require.True(t, ierrors.Is(err, tangle.ErrIllegalMetadataTransition))

	updated, err := tng.UpdateMetadata(solid.ID(), func(metadata *model.BlockMetadata) {
		metadata.SetMilestone(4)
	})
	require.NoError(t, err)
	require.True(t, updated.IsMilestone())

	_, err = tng.UpdateMetadata(solid.ID(), func(metadata *model.BlockMetadata) {
		metadata.SetMilestone(5)
	})
	require.True(t, ierrors.Is(err, tangle.ErrIllegalMetadataTransition))

	_, err = tng.UpdateMetadata(utils.RandBlockID(), func(*model.BlockMetadata) {})
	require.True(t, ierrors.Is(err, tangle.ErrBlockNotFound))

	// rejected updates leave no trace
	metadata, _, err := tng.Metadata(pending.ID())
	require.NoError(t, err)
	require.False(t, metadata.IsConfirmed())
}

func TestTangle_ConfirmationBatch(t *testing.T) {
	store := mapdb.NewMapDB()
	tng := newTestTangle(t, store)

	a := solidBlock(t, tng, 1, model.EmptyBlockID)
	b := solidBlock(t, tng, 2, a.ID())
	pending := newBlock(t, 3, utils.RandBlockID())
	insert(t, tng, pending)

	// the latest milestone has to be known first
	_, err := tng.NewConfirmationBatch(lo.PanicOnErr(store.Batched()), 1)
	require.True(t, ierrors.Is(err, tangle.ErrIndexInvariantViolated))

	_, err = tng.RaiseLatestMilestoneIndex(2)
	require.NoError(t, err)

	_, err = tng.NewConfirmationBatch(lo.PanicOnErr(store.Batched()), 2)
	require.True(t, ierrors.Is(err, tangle.ErrIndexInvariantViolated))

	var confirmedEvents []model.BlockID
	tng.Events.BlockConfirmed.Hook(func(metadata *model.BlockMetadata) {
		confirmedEvents = append(confirmedEvents, metadata.BlockID())
	})

	mutations := lo.PanicOnErr(store.Batched())
	batch, err := tng.NewConfirmationBatch(mutations, 1)
	require.NoError(t, err)

	require.NoError(t, batch.Confirm(a.ID(), model.InclusionStateNoTransaction, model.ConflictNone))
	require.NoError(t, batch.Confirm(b.ID(), model.InclusionStateConflicting, model.ConflictInputNotFound))
	require.True(t, ierrors.Is(batch.Confirm(b.ID(), model.InclusionStateIncluded, model.ConflictNone), tangle.ErrIllegalMetadataTransition))
	require.True(t, ierrors.Is(batch.Confirm(pending.ID(), model.InclusionStateNoTransaction, model.ConflictNone), tangle.ErrIllegalMetadataTransition))
	require.NoError(t, batch.StageConfirmedMilestoneIndex())

	// nothing is visible before the commit
	metadata, _, err := tng.Metadata(a.ID())
	require.NoError(t, err)
	require.False(t, metadata.IsConfirmed())
	require.Equal(t, model.MilestoneIndex(0), tng.ConfirmedMilestoneIndex())

	require.NoError(t, mutations.Commit())
	batch.Apply()

	require.Equal(t, model.MilestoneIndex(1), tng.ConfirmedMilestoneIndex())
	require.Equal(t, []model.BlockID{a.ID(), b.ID()}, confirmedEvents)

	metadata, _, err = tng.Metadata(b.ID())
	require.NoError(t, err)
	require.True(t, metadata.IsConfirmed())
	require.Equal(t, model.MilestoneIndex(1), metadata.ConfirmationIndex())
	require.Equal(t, model.ConflictInputNotFound, metadata.Conflict())

	var confirmed model.BlockIDs
	require.NoError(t, tng.ForEachConfirmedBlock(1, func(blockID model.BlockID) bool {
		confirmed = append(confirmed, blockID)
		return true
	}))
	require.ElementsMatch(t, model.BlockIDs{a.ID(), b.ID()}, confirmed)

	// confirmed is terminal
	_, err = tng.UpdateMetadata(a.ID(), func(metadata *model.BlockMetadata) {
		metadata.SetConfirmed(2, model.InclusionStateNoTransaction, model.ConflictNone)
	})
	require.True(t, ierrors.Is(err, tangle.ErrIllegalMetadataTransition))

	batch, err = tng.NewConfirmationBatch(lo.PanicOnErr(store.Batched()), 2)
	require.NoError(t, err)
	require.True(t, ierrors.Is(batch.Confirm(a.ID(), model.InclusionStateNoTransaction, model.ConflictNone), tangle.ErrIllegalMetadataTransition))

	// a reopened tangle sees the committed state
	reopened := newTestTangle(t, store)
	require.Equal(t, model.MilestoneIndex(1), reopened.ConfirmedMilestoneIndex())
	require.Equal(t, model.MilestoneIndex(2), reopened.LatestMilestoneIndex())
	metadata, _, err = reopened.Metadata(a.ID())
	require.NoError(t, err)
	require.True(t, metadata.IsConfirmed())
}

func TestTangle_ConfirmKeepsEarlierUpdates(t *testing.T) {
	store := mapdb.NewMapDB()
	tng := newTestTangle(t, store)

	a := solidBlock(t, tng, 1, model.EmptyBlockID)
	b := solidBlock(t, tng, 2, a.ID())

	_, err := tng.RaiseLatestMilestoneIndex(1)
	require.NoError(t, err)

	mutations := lo.PanicOnErr(store.Batched())
	batch, err := tng.NewConfirmationBatch(mutations, 1)
	require.NoError(t, err)

	// an update landing after the batch was opened is seen by Confirm
	_, err = tng.UpdateMetadata(b.ID(), func(metadata *model.BlockMetadata) {
		metadata.SetMilestone(1)
	})
	require.NoError(t, err)

	require.NoError(t, batch.Confirm(a.ID(), model.InclusionStateNoTransaction, model.ConflictNone))
	require.NoError(t, batch.Confirm(b.ID(), model.InclusionStateNoTransaction, model.ConflictNone))
	require.NoError(t, batch.StageConfirmedMilestoneIndex())
	require.NoError(t, mutations.Commit())
	batch.Apply()

	metadata, _, err := tng.Metadata(b.ID())
	require.NoError(t, err)
	require.True(t, metadata.IsConfirmed())
	require.True(t, metadata.IsMilestone())

	reopened := newTestTangle(t, store)
	metadata, _, err = reopened.Metadata(b.ID())
	require.NoError(t, err)
	require.True(t, metadata.IsConfirmed())
	require.True(t, metadata.IsMilestone())
}

func TestTangle_Milestones(t *testing.T) {
	tng := newTestTangle(t, mapdb.NewMapDB())

	parent := solidBlock(t, tng, 1, model.EmptyBlockID)

	milestone := &model.Milestone{
		Index:     1,
		Timestamp: uint32(time.Now().Unix()),
		Parents:   model.BlockIDs{parent.ID()},
	}
	require.NoError(t, milestone.Sign(utils.RandPrivateKey()))

	milestoneBlock := lo.PanicOnErr(model.NewBlock(milestone.Parents, milestone, 0))
	insert(t, tng, milestoneBlock)

	var latestChanged []model.MilestoneIndex
	tng.Events.LatestMilestoneIndexChanged.Hook(func(index model.MilestoneIndex) {
		latestChanged = append(latestChanged, index)
	})

	record, stored, err := tng.StoreMilestone(milestoneBlock.ID(), milestone)
	require.NoError(t, err)
	require.True(t, stored)
	require.Equal(t, milestone.ID(), record.MilestoneID)
	require.Equal(t, model.MilestoneIndex(1), tng.LatestMilestoneIndex())
	require.Equal(t, []model.MilestoneIndex{1}, latestChanged)
	require.False(t, tng.IsSynced())

	_, stored, err = tng.StoreMilestone(milestoneBlock.ID(), milestone)
	require.NoError(t, err)
	require.False(t, stored)

	index, exists, err := tng.MilestoneIndexByID(milestone.ID())
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, model.MilestoneIndex(1), index)

	payload, loadedRecord, err := tng.MilestonePayload(1)
	require.NoError(t, err)
	require.Equal(t, milestone.ID(), payload.ID())
	require.Equal(t, record, loadedRecord)

	metadata, _, err := tng.Metadata(milestoneBlock.ID())
	require.NoError(t, err)
	require.True(t, metadata.IsMilestone())
	require.Equal(t, model.MilestoneIndex(1), metadata.MilestoneIndex())

	conflicting := &model.Milestone{
		Index:     1,
		Timestamp: milestone.Timestamp + 1,
		Parents:   model.BlockIDs{parent.ID()},
	}
	_, _, err = tng.StoreMilestone(milestoneBlock.ID(), conflicting)
	require.True(t, ierrors.Is(err, tangle.ErrMilestoneConflict))

	_, _, err = tng.MilestonePayload(2)
	require.True(t, ierrors.Is(err, tangle.ErrMilestoneNotFound))
}

func TestTangle_SolidEntryPoints(t *testing.T) {
	store := mapdb.NewMapDB()
	tng := newTestTangle(t, store)

	require.True(t, tng.IsSolidEntryPoint(model.EmptyBlockID))

	sep := utils.RandBlockID()
	require.NoError(t, tng.SolidEntryPoints().Replace(map[model.BlockID]model.MilestoneIndex{
		sep: 7,
	}))
	require.False(t, tng.IsSolidEntryPoint(model.EmptyBlockID))

	index, exists := tng.SolidEntryPointIndex(sep)
	require.True(t, exists)
	require.Equal(t, model.MilestoneIndex(7), index)

	// a child of a solid entry point is solid
	solidBlock(t, tng, 1, sep)

	writer := stream.NewByteBuffer()
	require.NoError(t, tng.SolidEntryPoints().Export(writer))

	otherStore := mapdb.NewMapDB()
	other := newTestTangle(t, otherStore)
	require.NoError(t, other.SolidEntryPoints().Import(stream.NewByteReader(lo.PanicOnErr(writer.Bytes()))))
	require.Equal(t, model.BlockIDs{sep}, other.SolidEntryPoints().SortedIDs())

	reopened := newTestTangle(t, otherStore)
	require.True(t, reopened.IsSolidEntryPoint(sep))
	require.False(t, reopened.IsSolidEntryPoint(model.EmptyBlockID))
}

func TestTangle_StageDeleteBlock(t *testing.T) {
	store := mapdb.NewMapDB()
	tng := newTestTangle(t, store)

	a := solidBlock(t, tng, 1, model.EmptyBlockID)
	b := solidBlock(t, tng, 2, a.ID())

	mutations := lo.PanicOnErr(store.Batched())
	require.NoError(t, tng.StageDeleteBlock(mutations, a.ID()))
	require.NoError(t, tng.StageDeleteUnreferencedBlocksIndex(mutations, 0))
	require.NoError(t, mutations.Commit())
	tng.EvictBlocks(a.ID())

	exists, err := tng.BlockExists(a.ID())
	require.NoError(t, err)
	require.False(t, exists)

	_, exists, err = tng.Metadata(a.ID())
	require.NoError(t, err)
	require.False(t, exists)

	children, err := tng.Children(a.ID())
	require.NoError(t, err)
	require.Empty(t, children)

	children, err = tng.Children(model.EmptyBlockID)
	require.NoError(t, err)
	require.Empty(t, children)

	require.NoError(t, tng.ForEachUnreferencedBlock(0, func(model.BlockID) bool {
		require.FailNow(t, "unreferenced index should be empty")
		return true
	}))

	_, exists, err = tng.Block(b.ID())
	require.NoError(t, err)
	require.True(t, exists)
}

func TestTangle_Indices(t *testing.T) {
	store := mapdb.NewMapDB()
	tng := newTestTangle(t, store)

	raised, err := tng.RaiseLatestMilestoneIndex(5)
	require.NoError(t, err)
	require.True(t, raised)

	raised, err = tng.RaiseLatestMilestoneIndex(3)
	require.NoError(t, err)
	require.False(t, raised)
	require.Equal(t, model.MilestoneIndex(5), tng.LatestMilestoneIndex())

	// pruning can not overtake the confirmed milestone
	require.True(t, ierrors.Is(tng.StagePruningIndex(lo.PanicOnErr(store.Batched()), 1), tangle.ErrIndexInvariantViolated))
	require.True(t, ierrors.Is(tng.SetSnapshotIndex(1), tangle.ErrIndexInvariantViolated))

	require.NoError(t, tng.InitializeFromSnapshot(3))
	require.Equal(t, model.MilestoneIndex(5), tng.LatestMilestoneIndex())
	require.Equal(t, model.MilestoneIndex(3), tng.ConfirmedMilestoneIndex())
	require.Equal(t, model.MilestoneIndex(3), tng.PruningIndex())
	require.Equal(t, model.MilestoneIndex(3), tng.SnapshotIndex())

	mutations := lo.PanicOnErr(store.Batched())
	require.True(t, ierrors.Is(tng.StagePruningIndex(mutations, 2), tangle.ErrIndexInvariantViolated))
	require.NoError(t, tng.StagePruningIndex(mutations, 3))
	require.NoError(t, mutations.Commit())
	tng.ApplyPruningIndex(3)

	reopened := newTestTangle(t, store)
	require.Equal(t, model.MilestoneIndex(5), reopened.LatestMilestoneIndex())
	require.Equal(t, model.MilestoneIndex(3), reopened.ConfirmedMilestoneIndex())
	require.Equal(t, model.MilestoneIndex(3), reopened.PruningIndex())
}
