package pruning_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/protocol"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/testsuite"
)

func testPolicy() pruning.Policy {
	return pruning.Policy{
		Delay:                        3,
		SolidEntryPointThresholdPast: 2,
		MaxMilestonesPerRun:          100,
		SnapshotDepth:                2,
	}
}

func milestoneAlias(index model.MilestoneIndex) string {
	if index == 0 {
		return testsuite.GenesisAlias
	}

	return fmt.Sprintf("Milestone%d", index)
}

// confirmChain issues one block per milestone on top of the previous milestone and confirms it.
func confirmChain(ts *testsuite.TestSuite, from model.MilestoneIndex, to model.MilestoneIndex) {
	for index := from; index <= to; index++ {
		blockAlias := fmt.Sprintf("Block%d", index)
		ts.IssueBlock(blockAlias, milestoneAlias(index-1))
		ts.IssueAndConfirmMilestone(milestoneAlias(index), blockAlias)
	}
}

func TestManager_NothingToPruneWithinDelay(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	confirmChain(ts, 1, 5)

	pruneRange, err := ts.Pruning.Prune(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, pruneRange.Len())

	pruneRange, err = ts.Pruning.PruneUntil(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, 0, pruneRange.Len())

	pruneRange, err = ts.Pruning.PruneUntil(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, pruneRange.IsEmpty())

	ts.AssertIndices(5, 0)
	ts.AssertBlocksExist(true, "Block1", "Milestone1")
	require.True(t, ts.Tangle.IsSolidEntryPoint(model.EmptyBlockID))
}

func TestManager_PrunesBehindConfirmation(t *testing.T) {
	ts := testsuite.NewTestSuite(t, testsuite.WithPruningPolicy(testPolicy()))
	defer ts.Shutdown()

	var pruned []model.MilestoneIndex
	ts.Pruning.Events.Pruned.Hook(func(index model.MilestoneIndex) {
		pruned = append(pruned, index)
	})

	ts.CreateTransaction("TX1", []string{testsuite.GenesisAlias}, &testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: ts.TokenSupply()})
	ts.IssueTransactionBlock("Block1", "TX1", testsuite.GenesisAlias)
	ts.IssueAndConfirmMilestone("Milestone1", "Block1")

	confirmChain(ts, 2, 6)

	// every confirmation prunes the milestone that fell out of the delay
	require.Equal(t, []model.MilestoneIndex{1, 2, 3}, pruned)
	ts.AssertIndices(6, 3)

	ts.AssertBlocksExist(false, "Block1", "Block2", "Block3", "Milestone1", "Milestone2")
	ts.AssertBlocksExist(true, "Milestone3", "Block4", "Milestone4", "Block5", "Block6")

	for index := model.MilestoneIndex(1); index <= 3; index++ {
		_, exists, err := ts.Tangle.Milestone(index)
		require.NoError(t, err)
		require.Falsef(t, exists, "milestone %d", index)
	}
	_, exists, err := ts.Tangle.Milestone(4)
	require.NoError(t, err)
	require.True(t, exists)

	// Block3 is referenced by the unpruned Milestone3
	require.True(t, ts.Tangle.IsSolidEntryPoint(ts.BlockID("Block3")))
	require.False(t, ts.Tangle.IsSolidEntryPoint(model.EmptyBlockID))

	// the ledger keeps the unspent outputs of pruned milestones
	ts.AssertBalance("Alice", ts.TokenSupply())
	ts.AssertOutputsUnspent(true, "Alice")
	ts.AssertLedgerState()

	// the tangle keeps confirming on top of the solid entry points
	confirmChain(ts, 7, 7)
	ts.AssertIndices(7, 4)
	ts.AssertBlockState(7, model.InclusionStateNoTransaction, model.ConflictNone, "Block7", "Milestone6")
}

func TestManager_CanceledPruneIsEmpty(t *testing.T) {
	ts := testsuite.NewTestSuite(t,
		testsuite.WithPruningPolicy(testPolicy()),
		testsuite.WithProtocolOptions(protocol.WithPruningManager(nil)),
	)
	defer ts.Shutdown()

	confirmChain(ts, 1, 4)
	ts.AssertIndices(4, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pruneRange, err := ts.Pruning.Prune(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, pruneRange.IsEmpty())
	ts.AssertIndices(4, 0)

	pruneRange, err = ts.Pruning.Prune(context.Background())
	require.NoError(t, err)
	require.Equal(t, pruning.PruneRange{Start: 1, End: 1}, pruneRange)
	require.Equal(t, 1, pruneRange.Len())
	ts.AssertIndices(4, 1)

	// nothing left within the policy
	pruneRange, err = ts.Pruning.Prune(context.Background())
	require.NoError(t, err)
	require.True(t, pruneRange.IsEmpty())
}

func TestManager_PrunesUnreferencedBlocks(t *testing.T) {
	ts := testsuite.NewTestSuite(t, testsuite.WithPruningPolicy(testPolicy()))
	defer ts.Shutdown()

	confirmChain(ts, 1, 1)

	// arrives while Milestone1 is the latest milestone and is never referenced
	ts.IssueBlock("Orphan", "Milestone1")

	confirmChain(ts, 2, 3)
	ts.AssertIndices(3, 0)
	ts.AssertBlocksUnconfirmed("Orphan")

	confirmChain(ts, 4, 4)
	ts.AssertIndices(4, 1)
	ts.AssertBlocksExist(false, "Orphan", "Block1")

	// arrived at the same time but was confirmed later, so it stays until its confirming milestone is pruned
	ts.AssertBlocksExist(true, "Block2")

	_, err := ts.Pruning.PruneUntil(context.Background(), 1)
	require.NoError(t, err)
	ts.AssertIndices(4, 1)
}

func TestManager_SolidEntryPointsBelowPruningIndex(t *testing.T) {
	ts := testsuite.NewTestSuite(t, testsuite.WithPruningPolicy(testPolicy()))
	defer ts.Shutdown()

	confirmChain(ts, 1, 6)

	_, err := ts.Pruning.SolidEntryPoints(context.Background(), 2)
	require.ErrorIs(t, err, pruning.ErrNotEnoughHistory)

	entries, err := ts.Pruning.SolidEntryPoints(context.Background(), 4)
	require.NoError(t, err)
	require.Contains(t, entries, ts.BlockID("Block4"))
	require.Equal(t, model.MilestoneIndex(4), entries[ts.BlockID("Block4")])
	require.NotContains(t, entries, ts.BlockID("Block5"))
}
