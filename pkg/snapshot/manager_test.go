package snapshot_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/snapshot"
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

// buildHistory confirms six milestones with a transaction at milestone 1 and one at milestone 5.
func buildHistory(ts *testsuite.TestSuite) {
	ts.CreateTransaction("TX1", []string{testsuite.GenesisAlias}, &testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: ts.TokenSupply()})
	ts.CreateTransaction("TX2", []string{"Alice"},
		&testsuite.OutputSpec{Alias: "Bob", Wallet: "Bob", Amount: 100},
		&testsuite.OutputSpec{Alias: "AliceRest", Wallet: "Alice", Amount: ts.TokenSupply() - 100},
	)

	for index := model.MilestoneIndex(1); index <= 6; index++ {
		blockAlias := fmt.Sprintf("Block%d", index)
		switch index {
		case 1:
			ts.IssueTransactionBlock(blockAlias, "TX1", milestoneAlias(index-1))
		case 5:
			ts.IssueTransactionBlock(blockAlias, "TX2", milestoneAlias(index-1))
		default:
			ts.IssueBlock(blockAlias, milestoneAlias(index-1))
		}
		ts.IssueAndConfirmMilestone(milestoneAlias(index), blockAlias)
	}
}

func TestManager_CreateAndLoad(t *testing.T) {
	source := testsuite.NewTestSuite(t, testsuite.WithPruningPolicy(testPolicy()))
	defer source.Shutdown()

	buildHistory(source)
	source.AssertIndices(6, 3)

	var snapshotted []model.MilestoneIndex
	source.Snapshots.Events.Snapshotted.Hook(func(index model.MilestoneIndex) {
		snapshotted = append(snapshotted, index)
	})

	require.NoError(t, source.Snapshots.CreateSnapshotForConfirmedIndex(context.Background(), 6))
	require.Equal(t, []model.MilestoneIndex{4}, snapshotted)
	require.Equal(t, model.MilestoneIndex(4), source.Tangle.SnapshotIndex())

	_, err := os.Stat(source.Snapshots.FilePath() + "_tmp")
	require.True(t, os.IsNotExist(err))

	file, err := os.Open(source.Snapshots.FilePath())
	require.NoError(t, err)
	header, err := snapshot.ReadHeader(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	require.Equal(t, snapshot.FormatVersion, header.Version)
	require.Equal(t, model.MilestoneIndex(4), header.SnapshotIndex)
	require.Equal(t, source.MilestoneTime(4).Unix(), header.Timestamp.Unix())

	target := testsuite.NewTestSuite(t, testsuite.WithPruningPolicy(testPolicy()), testsuite.WithoutGenesis())
	defer target.Shutdown()

	loadedHeader, err := target.Snapshots.LoadSnapshot(source.Snapshots.FilePath())
	require.NoError(t, err)
	require.Equal(t, header.SnapshotIndex, loadedHeader.SnapshotIndex)

	require.Equal(t, model.MilestoneIndex(4), target.Tangle.ConfirmedMilestoneIndex())
	require.Equal(t, model.MilestoneIndex(4), target.Tangle.PruningIndex())
	require.Equal(t, model.MilestoneIndex(4), target.Tangle.SnapshotIndex())
	require.True(t, target.Tangle.IsSolidEntryPoint(source.BlockID("Block4")))

	// the ledger is rolled back to the snapshot index
	ledgerIndex, err := target.Ledger.ReadLedgerIndex()
	require.NoError(t, err)
	require.Equal(t, model.MilestoneIndex(4), ledgerIndex)
	require.NoError(t, target.Ledger.CheckLedgerState(source.TokenSupply()))

	aliceBalance, err := target.Ledger.AddressBalance(source.Address("Alice"))
	require.NoError(t, err)
	require.Equal(t, source.TokenSupply(), aliceBalance)

	// replaying the milestones above the snapshot reproduces the ledger of the source
	for _, alias := range []string{"Milestone4", "Block5", "Milestone5", "Block6", "Milestone6"} {
		target.AttachBlock(source.Block(alias))
	}
	for _, alias := range []string{"Milestone5", "Milestone6"} {
		_, err := target.Protocol.ProcessMilestoneBlock(source.Block(alias))
		require.NoError(t, err)
	}

	confirmed, err := target.Protocol.ConfirmPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, confirmed)

	sourceSum, err := source.Ledger.LedgerStateSHA256Sum()
	require.NoError(t, err)
	targetSum, err := target.Ledger.LedgerStateSHA256Sum()
	require.NoError(t, err)
	require.Equal(t, sourceSum, targetSum)
	require.Equal(t, source.Ledger.StateTreeRoot(), target.Ledger.StateTreeRoot())
}

func TestManager_InvalidTargets(t *testing.T) {
	ts := testsuite.NewTestSuite(t, testsuite.WithPruningPolicy(testPolicy()))
	defer ts.Shutdown()

	buildHistory(ts)

	require.ErrorIs(t, ts.Snapshots.CreateSnapshot(context.Background(), 2), snapshot.ErrInvalidTargetIndex)
	require.ErrorIs(t, ts.Snapshots.CreateSnapshot(context.Background(), 7), snapshot.ErrInvalidTargetIndex)
	require.ErrorIs(t, ts.Snapshots.CreateSnapshotForConfirmedIndex(context.Background(), 1), snapshot.ErrInvalidTargetIndex)

	require.NoError(t, ts.Snapshots.CreateSnapshot(context.Background(), 6))

	// a populated database can not be overwritten
	_, err := ts.Snapshots.LoadSnapshot(ts.Snapshots.FilePath())
	require.ErrorIs(t, err, snapshot.ErrNotEmpty)
}

func TestManager_Archive(t *testing.T) {
	ts := testsuite.NewTestSuite(t, testsuite.WithPruningPolicy(testPolicy()))
	defer ts.Shutdown()

	buildHistory(ts)

	archiveDirectory := filepath.Join(ts.Directory, "archive")
	manager := snapshot.New(ts.Logger, ts.Tangle, ts.Ledger, ts.Pruning,
		snapshot.WithFilePath(filepath.Join(ts.Directory, "latest", "snapshot.bin")),
		snapshot.WithArchiveDirectory(archiveDirectory),
	)

	require.False(t, manager.ShouldTakeSnapshot(6))
	require.NoError(t, manager.CreateSnapshot(context.Background(), 5))

	_, err := os.Stat(filepath.Join(archiveDirectory, "snapshot_5.bin"))
	require.NoError(t, err)
	_, err = os.Stat(manager.FilePath())
	require.NoError(t, err)
}

func TestCreateGenesisSnapshot(t *testing.T) {
	ts := testsuite.NewTestSuite(t, testsuite.WithoutGenesis())
	defer ts.Shutdown()

	filePath := filepath.Join(t.TempDir(), "genesis.bin")
	genesis, err := snapshot.CreateGenesisSnapshot(ts.Logger,
		snapshot.WithGenesisFilePath(filePath),
		snapshot.WithAllocation(ts.Address("Alice"), 700),
		snapshot.WithAllocation(ts.Address("Bob"), 300),
		snapshot.WithGenesisTreasury(1000),
	)
	require.NoError(t, err)

	tokenSupply, err := genesis.TokenSupply()
	require.NoError(t, err)
	require.Equal(t, uint64(2000), tokenSupply)

	header, err := ts.Snapshots.LoadSnapshot(filePath)
	require.NoError(t, err)
	require.Equal(t, model.MilestoneIndex(0), header.SnapshotIndex)
	require.True(t, ts.Tangle.IsSolidEntryPoint(model.EmptyBlockID))
	require.NoError(t, ts.Ledger.CheckLedgerState(tokenSupply))

	treasury, err := ts.Ledger.ReadTreasury()
	require.NoError(t, err)
	require.Equal(t, uint64(1000), treasury)

	balance, err := ts.Ledger.AddressBalance(ts.Address("Bob"))
	require.NoError(t, err)
	require.Equal(t, uint64(300), balance)

	unspent, err := ts.Ledger.IsOutputIDUnspent(model.OutputIDFromTransactionIDAndIndex(model.EmptyTransactionID, 1))
	require.NoError(t, err)
	require.True(t, unspent)

	// the network continues on top of the genesis
	ts.IssueBlock("A", testsuite.GenesisAlias)
	ts.IssueAndConfirmMilestone("Milestone1", "A")
	ts.AssertIndices(1, 0)

	_, err = snapshot.CreateGenesisSnapshot(ts.Logger, snapshot.WithGenesisFilePath(filePath))
	require.Error(t, err)
}
