package protocol_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/milestone"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/protocol"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/retainer"
	"github.com/iotaledger/tangle-core/pkg/storage/sqlite"
	"github.com/iotaledger/tangle-core/pkg/testsuite"
	"github.com/iotaledger/tangle-core/pkg/utils"
	"github.com/iotaledger/tangle-core/pkg/whiteflag"
)

const genesis = testsuite.GenesisAlias

func TestProtocol_ConfirmsInOrder(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	var confirmed []model.MilestoneIndex
	ts.Protocol.Events.MilestoneConfirmed.Hook(func(result *protocol.ConfirmationResult) {
		confirmed = append(confirmed, result.Index)
	})

	ts.IssueBlock("A", genesis)
	ts.IssueMilestone("Milestone1", []string{"A"})
	ts.IssueBlock("B", "Milestone1")
	ts.IssueMilestone("Milestone2", []string{"B"})
	ts.IssueBlock("C", "Milestone2")
	ts.IssueMilestone("Milestone3", []string{"C"})

	require.Equal(t, protocol.HealthSyncing, ts.Protocol.Health())

	// milestone 2 has to wait for milestone 1
	_, err := ts.Protocol.AttemptConfirmation(context.Background(), 2)
	require.True(t, protocol.IsDeferral(err))
	require.True(t, ierrors.Is(err, protocol.ErrPreviousMilestoneNotConfirmed))
	ts.AssertIndices(0, 0)

	count, err := ts.Protocol.ConfirmPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Equal(t, []model.MilestoneIndex{1, 2, 3}, confirmed)
	ts.AssertIndices(3, 0)
	require.Equal(t, protocol.HealthHealthy, ts.Protocol.Health())

	ts.AssertBlockState(1, model.InclusionStateNoTransaction, model.ConflictNone, "A")
	ts.AssertBlockState(2, model.InclusionStateNoTransaction, model.ConflictNone, "B", "Milestone1")
	ts.AssertBlockState(3, model.InclusionStateNoTransaction, model.ConflictNone, "C", "Milestone2")
	ts.AssertBlocksUnconfirmed("Milestone3")

	// confirmations never move backwards
	_, err = ts.Protocol.AttemptConfirmation(context.Background(), 2)
	require.True(t, ierrors.Is(err, protocol.ErrMilestoneAlreadyConfirmed))
	require.False(t, protocol.IsDeferral(err))
	require.False(t, protocol.IsFatal(err))
	ts.AssertIndices(3, 0)
}

func TestProtocol_DeferralLeavesStateUntouched(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	_, err := ts.Protocol.AttemptConfirmation(context.Background(), 1)
	require.True(t, protocol.IsDeferral(err))
	require.True(t, ierrors.Is(err, protocol.ErrMilestoneMissing))

	ts.CreateTransaction("TX1", []string{genesis}, &testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: ts.TokenSupply()})

	// A is known to the network but not to the node yet
	ts.CreateBlock("A", ts.Transaction("TX1"), genesis)
	ts.IssueBlock("B", "A")
	ts.IssueMilestone("Milestone1", []string{"B"})

	for i := 0; i < 3; i++ {
		_, err = ts.Protocol.AttemptConfirmation(context.Background(), 1)
		require.True(t, protocol.IsDeferral(err))
		require.True(t, ierrors.Is(err, whiteflag.ErrUnsolidBlock))

		ts.AssertIndices(0, 0)
		ts.AssertBlocksUnconfirmed("B")
		ts.AssertBalance(genesis, ts.TokenSupply())
		ts.AssertBalance("Alice", 0)
	}
	require.Nil(t, ts.Protocol.Corruption())

	ts.AttachBlocks("A")

	result := ts.ConfirmMilestone(1)
	require.Equal(t, 1, result.Included())
	ts.AssertBlocksIncluded(1, "A")
	ts.AssertBlockState(1, model.InclusionStateNoTransaction, model.ConflictNone, "B")
	ts.AssertBalance("Alice", ts.TokenSupply())
	ts.AssertLedgerState()
}

func TestProtocol_AppliedMerkleRootMismatchIsFatal(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	var corruptions []error
	ts.Protocol.Events.Corrupted.Hook(func(err error) {
		corruptions = append(corruptions, err)
	})

	ts.CreateTransaction("TX1", []string{genesis}, &testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: ts.TokenSupply()})
	ts.IssueTransactionBlock("A", "TX1", genesis)
	ts.IssueMilestone("Milestone1", []string{"A"}, testsuite.WithAppliedMerkleRoot(model.MerkleRoot(utils.RandBlockID())))

	stateBefore, err := ts.Ledger.LedgerStateSHA256Sum()
	require.NoError(t, err)

	_, err = ts.Protocol.AttemptConfirmation(context.Background(), 1)
	require.True(t, protocol.IsFatal(err))
	require.True(t, ierrors.Is(err, whiteflag.ErrAppliedMerkleRootMismatch))
	require.Equal(t, protocol.HealthCorrupted, ts.Protocol.Health())
	require.Len(t, corruptions, 1)

	// nothing of the diverging milestone was written
	ts.AssertIndices(0, 0)
	ts.AssertBlocksUnconfirmed("A")
	ts.AssertOutputsUnspent(true, genesis)
	stateAfter, err := ts.Ledger.LedgerStateSHA256Sum()
	require.NoError(t, err)
	require.Equal(t, stateBefore, stateAfter)

	// every later attempt fails with the first fatal error
	_, err = ts.Protocol.AttemptConfirmation(context.Background(), 1)
	require.True(t, protocol.IsFatal(err))
	require.True(t, ierrors.Is(err, whiteflag.ErrAppliedMerkleRootMismatch))
	require.Len(t, corruptions, 1)
}

func TestProtocol_InclusionMerkleRoot(t *testing.T) {
	t.Run("advisory", func(t *testing.T) {
		ts := testsuite.NewTestSuite(t)
		defer ts.Shutdown()

		ts.IssueBlock("A", genesis)
		ts.IssueMilestone("Milestone1", []string{"A"}, testsuite.WithInclusionMerkleRoot(model.MerkleRoot(utils.RandBlockID())))

		result := ts.ConfirmMilestone(1)
		require.False(t, result.Mutations.InclusionMerkleRootMatches)
		require.Equal(t, protocol.HealthHealthy, ts.Protocol.Health())
	})

	t.Run("enforced", func(t *testing.T) {
		ts := testsuite.NewTestSuite(t, testsuite.WithProtocolOptions(protocol.WithEnforceInclusionMerkleRoot(true)))
		defer ts.Shutdown()

		ts.IssueBlock("A", genesis)
		ts.IssueMilestone("Milestone1", []string{"A"}, testsuite.WithInclusionMerkleRoot(model.MerkleRoot(utils.RandBlockID())))

		_, err := ts.Protocol.AttemptConfirmation(context.Background(), 1)
		require.True(t, protocol.IsFatal(err))
		require.True(t, ierrors.Is(err, whiteflag.ErrInclusionMerkleRootMismatch))
		ts.AssertIndices(0, 0)
	})
}

func TestProtocol_RejectsInvalidMilestones(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	var rejected []model.BlockID
	ts.Protocol.Events.MilestoneRejected.Hook(func(block *model.Block, _ error) {
		rejected = append(rejected, block.ID())
	})

	ts.IssueBlock("A", genesis)
	forged := ts.AttachBlock(ts.CreateMilestone("Forged", []string{"A"}, testsuite.WithSigners("Mallory", "Eve")))

	_, err := ts.Protocol.ProcessMilestoneBlock(forged)
	require.True(t, ierrors.Is(err, milestone.ErrUnknownSigner))

	underSigned := ts.AttachBlock(ts.CreateMilestone("UnderSigned", []string{"A"}, testsuite.WithIndex(1), testsuite.WithSigners("Coordinator0")))
	_, err = ts.Protocol.ProcessMilestoneBlock(underSigned)
	require.True(t, ierrors.Is(err, milestone.ErrTooFewSignatures))

	_, err = ts.Protocol.ProcessMilestoneBlock(ts.Block("A"))
	require.True(t, ierrors.Is(err, milestone.ErrNoMilestonePayload))

	require.Equal(t, ts.BlockIDs("Forged", "UnderSigned", "A"), model.BlockIDs(rejected))
	require.Equal(t, model.MilestoneIndex(0), ts.Tangle.LatestMilestoneIndex())

	_, err = ts.Protocol.AttemptConfirmation(context.Background(), 1)
	require.True(t, ierrors.Is(err, protocol.ErrMilestoneMissing))
}

func TestProtocol_OutputEvents(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	var created []*utxo.Output
	var consumed []*utxo.Spent
	ts.Protocol.Events.OutputCreated.Hook(func(output *utxo.Output) {
		created = append(created, output)
	})
	ts.Protocol.Events.OutputConsumed.Hook(func(spent *utxo.Spent) {
		consumed = append(consumed, spent)
	})

	ts.CreateTransaction("TX1", []string{genesis},
		&testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: 10},
		&testsuite.OutputSpec{Alias: "Bob", Wallet: "Bob", Amount: ts.TokenSupply() - 10},
	)
	ts.IssueTransactionBlock("A", "TX1", genesis)
	ts.IssueAndConfirmMilestone("Milestone1", "A")

	require.Len(t, created, 2)
	require.Equal(t, ts.OutputID("Alice"), created[0].OutputID())
	require.Equal(t, ts.OutputID("Bob"), created[1].OutputID())
	require.Equal(t, model.MilestoneIndex(1), created[0].MilestoneIndexBooked())
	require.Equal(t, ts.BlockID("A"), created[0].BlockID())

	require.Len(t, consumed, 1)
	require.Equal(t, ts.OutputID(genesis), consumed[0].OutputID())
	require.Equal(t, ts.Transaction("TX1").ID(), consumed[0].TransactionIDSpent())
	require.Equal(t, model.MilestoneIndex(1), consumed[0].MilestoneIndexSpent())
}

func TestProtocol_Run(t *testing.T) {
	ts := testsuite.NewTestSuite(t)

	running := make(chan struct{})
	ts.Protocol.Events.Running.Hook(func() {
		close(running)
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() {
		stopped <- ts.Protocol.Run(ctx)
	}()
	<-running

	ts.IssueBlock("A", genesis)
	ts.AttachBlock(ts.CreateMilestone("Milestone1", []string{"A"}))

	// the milestone block arrives before its parent
	ts.CreateBlock("B", nil, "Milestone1")
	ts.AttachBlock(ts.CreateMilestone("Milestone2", []string{"B"}))
	ts.AttachBlocks("B")

	require.Eventually(t, func() bool {
		return ts.Tangle.ConfirmedMilestoneIndex() == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-stopped, context.Canceled)

	ts.AssertIndices(2, 0)
	ts.AssertBlockState(2, model.InclusionStateNoTransaction, model.ConflictNone, "B", "Milestone1")
}

func TestProtocol_RetainsTransactions(t *testing.T) {
	logger := log.NewLogger().NewChildLogger(t.Name())
	database, err := sqlite.New(logger, t.TempDir(), "retainer.db", func(err error) {
		require.NoError(t, err)
	})
	require.NoError(t, err)
	defer database.Shutdown()

	txRetainer, err := retainer.New(logger, database.ExecDBFunc())
	require.NoError(t, err)

	ts := testsuite.NewTestSuite(t,
		testsuite.WithPruningPolicy(pruning.Policy{Delay: 2, SolidEntryPointThresholdPast: 1, MaxMilestonesPerRun: 10}),
		testsuite.WithProtocolOptions(protocol.WithRetainer(txRetainer)),
	)
	defer ts.Shutdown()

	ts.CreateTransaction("TX1", []string{genesis}, &testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: ts.TokenSupply()})
	ts.CreateTransaction("TX2", []string{genesis}, &testsuite.OutputSpec{Alias: "Bob", Wallet: "Bob", Amount: ts.TokenSupply()})
	ts.IssueTransactionBlock("A", "TX1", genesis)
	ts.IssueTransactionBlock("B", "TX2", "A")
	ts.IssueAndConfirmMilestone("Milestone1", "B")

	txMeta, err := txRetainer.TransactionMetadata(ts.Transaction("TX1").ID())
	require.NoError(t, err)
	require.True(t, txMeta.Included())
	require.Equal(t, uint32(1), txMeta.MilestoneIndex)

	txMeta, err = txRetainer.TransactionMetadata(ts.Transaction("TX2").ID())
	require.NoError(t, err)
	require.Equal(t, model.InclusionStateConflicting, model.InclusionState(txMeta.InclusionState))
	require.Equal(t, model.ConflictInputAlreadySpentInThisMilestone, model.ConflictReason(txMeta.ConflictReason))

	ts.IssueBlock("C", "Milestone1")
	ts.IssueAndConfirmMilestone("Milestone2", "C")
	ts.IssueBlock("D", "Milestone2")
	ts.IssueAndConfirmMilestone("Milestone3", "D")
	ts.AssertIndices(3, 1)

	// pruning the milestone drops its retained transactions
	_, err = txRetainer.TransactionMetadata(ts.Transaction("TX1").ID())
	require.True(t, ierrors.Is(err, retainer.ErrEntryNotFound))
}
