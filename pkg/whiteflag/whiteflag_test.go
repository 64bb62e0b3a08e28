package whiteflag_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/testsuite"
	"github.com/iotaledger/tangle-core/pkg/utils"
	"github.com/iotaledger/tangle-core/pkg/whiteflag"
)

const genesis = testsuite.GenesisAlias

func computeMutations(t *testing.T, ts *testsuite.TestSuite, index model.MilestoneIndex, opts ...options.Option[whiteflag.Options]) (*whiteflag.WhiteFlagMutations, error) {
	milestonePayload, record, err := ts.Tangle.MilestonePayload(index)
	require.NoError(t, err)

	ts.Ledger.ReadLockLedger()
	defer ts.Ledger.ReadUnlockLedger()

	return whiteflag.ComputeWhiteFlagMutations(context.Background(), ts.Ledger, ts.Tangle, record.BlockID, milestonePayload, opts...)
}

func TestWhiteFlag_NoTransactionBlocks(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	ts.IssueBlock("A", genesis)
	ts.IssueBlock("B", genesis)
	ts.IssueBlock("C", "A", "B")
	ts.IssueMilestone("Milestone1", []string{"C"})

	mutations, err := computeMutations(t, ts, 1)
	require.NoError(t, err)

	require.Len(t, mutations.ReferencedBlocks, 3)
	require.Equal(t, ts.BlockID("C"), mutations.ReferencedBlocks[2])
	require.ElementsMatch(t, ts.BlockIDs("A", "B", "C"), mutations.ExcludedNoTransactionBlocks)
	require.Empty(t, mutations.IncludedBlocks)
	require.Empty(t, mutations.NewOutputs)
	require.Equal(t, whiteflag.NewHasher().EmptyRoot(), mutations.AppliedMerkleRoot)
	require.True(t, mutations.InclusionMerkleRootMatches)

	ts.ConfirmMilestone(1)
	ts.AssertBlockState(1, model.InclusionStateNoTransaction, model.ConflictNone, "A", "B", "C")
	ts.AssertIndices(1, 0)
	ts.AssertLedgerState()
}

func TestWhiteFlag_ParentsPrecedeChildren(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	ts.IssueBlock("A", genesis)
	ts.IssueBlock("B", "A")
	ts.IssueBlock("C", "A")
	ts.IssueBlock("D", "B", "C")
	ts.IssueBlock("E", "D", "A")
	ts.IssueMilestone("Milestone1", []string{"E", "C"})

	milestonePayload, _, err := ts.Tangle.MilestonePayload(1)
	require.NoError(t, err)

	order, err := whiteflag.ComputeOrder(context.Background(), ts.Tangle, milestonePayload.Parents)
	require.NoError(t, err)
	require.Len(t, order, 5)

	position := make(map[model.BlockID]int)
	for i, blockID := range order {
		position[blockID] = i
	}
	for _, alias := range []string{"B", "C", "D", "E"} {
		for _, parent := range ts.Block(alias).Parents() {
			require.Lessf(t, position[parent], position[ts.BlockID(alias)], "parent of %s", alias)
		}
	}

	again, err := whiteflag.ComputeOrder(context.Background(), ts.Tangle, milestonePayload.Parents)
	require.NoError(t, err)
	require.Equal(t, order, again)
}

func TestWhiteFlag_DoubleSpendInSameMilestone(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	ts.CreateTransaction("TX1", []string{genesis}, &testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: ts.TokenSupply()})
	ts.CreateTransaction("TX2", []string{genesis}, &testsuite.OutputSpec{Alias: "Bob", Wallet: "Bob", Amount: ts.TokenSupply()})

	ts.IssueTransactionBlock("A", "TX1", genesis)
	ts.IssueTransactionBlock("B", "TX2", "A")
	ts.IssueMilestone("Milestone1", []string{"B"})

	result := ts.ConfirmMilestone(1)
	require.Equal(t, 2, result.Referenced())
	require.Equal(t, 1, result.Included())
	require.Equal(t, 1, result.ExcludedConflicting())

	ts.AssertBlocksIncluded(1, "A")
	ts.AssertBlockState(1, model.InclusionStateConflicting, model.ConflictInputAlreadySpentInThisMilestone, "B")
	ts.AssertBalance("Alice", ts.TokenSupply())
	ts.AssertBalance("Bob", 0)
	ts.AssertBalance(genesis, 0)
	ts.AssertOutputsUnspent(true, "Alice")
	ts.AssertOutputsUnspent(false, genesis)
	ts.AssertLedgerState()
}

func TestWhiteFlag_ChainedTransactionsInOneCone(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	ts.CreateTransaction("TX1", []string{genesis}, &testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: ts.TokenSupply()})
	ts.CreateTransaction("TX2", []string{"Alice"},
		&testsuite.OutputSpec{Alias: "Bob", Wallet: "Bob", Amount: 400},
		&testsuite.OutputSpec{Alias: "AliceRest", Wallet: "Alice", Amount: ts.TokenSupply() - 400},
	)

	ts.IssueTransactionBlock("T1", "TX1", genesis)
	tips := []string{"T1"}
	for i := 0; i < 8; i++ {
		alias := fmt.Sprintf("Filler%d", i)
		ts.IssueBlock(alias, tips[len(tips)-1])
		tips = append(tips, alias)
	}
	ts.IssueTransactionBlock("T2", "TX2", tips[len(tips)-1])
	ts.IssueMilestone("Milestone1", []string{"T2"})

	result := ts.ConfirmMilestone(1)
	require.Equal(t, 10, result.Referenced())
	require.Equal(t, 2, result.Included())
	require.Equal(t, 8, result.ExcludedNoTransaction())
	require.Equal(t, ts.BlockIDs("T1", "T2"), result.Mutations.IncludedBlocks)
	createdAmount, err := result.Mutations.CreatedAmount()
	require.NoError(t, err)
	consumedAmount, err := result.Mutations.ConsumedAmount()
	require.NoError(t, err)
	require.Equal(t, createdAmount, consumedAmount)

	ts.AssertBlocksIncluded(1, "T1", "T2")
	ts.AssertBalance("Alice", ts.TokenSupply()-400)
	ts.AssertBalance("Bob", 400)
	ts.AssertOutputsUnspent(false, genesis, "Alice")
	ts.AssertOutputsUnspent(true, "Bob", "AliceRest")
	ts.AssertLedgerState()
}

func TestWhiteFlag_SpendBeforeCreationInOrder(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	ts.CreateTransaction("TX1", []string{genesis}, &testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: ts.TokenSupply()})
	ts.CreateTransaction("TX2", []string{"Alice"}, &testsuite.OutputSpec{Alias: "Bob", Wallet: "Bob", Amount: ts.TokenSupply()})

	// the spending block precedes the creating block in the traversal
	ts.IssueTransactionBlock("T2", "TX2", genesis)
	ts.IssueTransactionBlock("T1", "TX1", "T2")
	ts.IssueMilestone("Milestone1", []string{"T1"})

	ts.ConfirmMilestone(1)
	ts.AssertBlockState(1, model.InclusionStateConflicting, model.ConflictInputNotFound, "T2")
	ts.AssertBlocksIncluded(1, "T1")
	ts.AssertBalance("Alice", ts.TokenSupply())
	ts.AssertBalance("Bob", 0)
	ts.AssertLedgerState()
}

func TestWhiteFlag_AlreadySpentInEarlierMilestone(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	ts.CreateTransaction("TX1", []string{genesis}, &testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: ts.TokenSupply()})
	ts.CreateTransaction("TX2", []string{genesis}, &testsuite.OutputSpec{Alias: "Bob", Wallet: "Bob", Amount: ts.TokenSupply()})

	ts.IssueTransactionBlock("A", "TX1", genesis)
	ts.IssueAndConfirmMilestone("Milestone1", "A")

	ts.IssueTransactionBlock("B", "TX2", "Milestone1")
	ts.IssueAndConfirmMilestone("Milestone2", "B")

	ts.AssertBlocksIncluded(1, "A")
	ts.AssertBlockState(2, model.InclusionStateConflicting, model.ConflictInputAlreadySpent, "B")
	ts.AssertBlockState(2, model.InclusionStateNoTransaction, model.ConflictNone, "Milestone1")
	ts.AssertBalance("Alice", ts.TokenSupply())
	ts.AssertIndices(2, 0)
	ts.AssertLedgerState()
}

func TestWhiteFlag_InvalidTransactions(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	ts.CreateTransactionWithSigners("Forged", []string{genesis}, []ed25519.PrivateKey{ts.Wallet("Mallory")},
		&testsuite.OutputSpec{Alias: "Mallory", Wallet: "Mallory", Amount: ts.TokenSupply()},
	)
	ts.CreateTransaction("Unbalanced", []string{genesis}, &testsuite.OutputSpec{Wallet: "Alice", Amount: ts.TokenSupply() - 1})
	ts.CreateTransaction("Inflating", []string{genesis}, &testsuite.OutputSpec{Wallet: "Alice", Amount: ts.TokenSupply() + 1})

	ts.IssueTransactionBlock("Forged", "Forged", genesis)
	ts.IssueTransactionBlock("Unbalanced", "Unbalanced", "Forged")
	ts.IssueTransactionBlock("Inflating", "Inflating", "Unbalanced")
	ts.IssueMilestone("Milestone1", []string{"Inflating"})

	result := ts.ConfirmMilestone(1)
	require.Equal(t, 3, result.ExcludedConflicting())
	require.Empty(t, result.Mutations.NewOutputs)
	require.Empty(t, result.Mutations.NewSpents)

	ts.AssertBlockState(1, model.InclusionStateConflicting, model.ConflictInvalidSignature, "Forged")
	ts.AssertBlockState(1, model.InclusionStateConflicting, model.ConflictInputOutputSumMismatch, "Unbalanced", "Inflating")
	ts.AssertBalance(genesis, ts.TokenSupply())
	ts.AssertOutputsUnspent(true, genesis)
	ts.AssertLedgerState()
}

func TestWhiteFlag_Determinism(t *testing.T) {
	build := func(ts *testsuite.TestSuite) *whiteflag.WhiteFlagMutations {
		ts.CreateTransaction("TX1", []string{genesis},
			&testsuite.OutputSpec{Alias: "Alice", Wallet: "Alice", Amount: 100},
			&testsuite.OutputSpec{Alias: "Rest", Wallet: genesis, Amount: ts.TokenSupply() - 100},
		)
		ts.CreateTransaction("TX2", []string{genesis}, &testsuite.OutputSpec{Wallet: "Bob", Amount: ts.TokenSupply()})
		ts.CreateTransaction("TX3", []string{"Alice"}, &testsuite.OutputSpec{Wallet: "Bob", Amount: 100})

		ts.IssueTransactionBlock("A", "TX1", genesis)
		ts.IssueTransactionBlock("B", "TX2", genesis)
		ts.IssueBlock("C", "A", "B")
		ts.IssueTransactionBlock("D", "TX3", "C")
		ts.IssueBlock("E", "B")
		ts.IssueMilestone("Milestone1", []string{"D", "E"})

		return ts.ConfirmMilestone(1).Mutations
	}

	first := testsuite.NewTestSuite(t)
	defer first.Shutdown()
	second := testsuite.NewTestSuite(t)
	defer second.Shutdown()

	firstMutations := build(first)
	secondMutations := build(second)

	require.Equal(t, firstMutations.ReferencedBlocks, secondMutations.ReferencedBlocks)
	require.Equal(t, firstMutations.IncludedBlocks, secondMutations.IncludedBlocks)
	require.Equal(t, firstMutations.ExcludedConflictingBlocks, secondMutations.ExcludedConflictingBlocks)
	require.Equal(t, firstMutations.InclusionMerkleRoot, secondMutations.InclusionMerkleRoot)
	require.Equal(t, firstMutations.AppliedMerkleRoot, secondMutations.AppliedMerkleRoot)
	require.Equal(t, first.Ledger.StateTreeRoot(), second.Ledger.StateTreeRoot())

	firstSum, err := first.Ledger.LedgerStateSHA256Sum()
	require.NoError(t, err)
	secondSum, err := second.Ledger.LedgerStateSHA256Sum()
	require.NoError(t, err)
	require.Equal(t, firstSum, secondSum)

	first.AssertLedgerState()
	second.AssertLedgerState()
}

func TestWhiteFlag_MissingAndUnsolidBlocks(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	ts.IssueBlock("A", genesis)

	_, err := whiteflag.ComputeOrder(context.Background(), ts.Tangle, model.BlockIDs{utils.RandBlockID()})
	require.True(t, ierrors.Is(err, whiteflag.ErrMissingBlock))

	// B is never attached, so C stays unsolid
	ts.CreateBlock("B", nil, "A")
	ts.IssueBlock("C", "B")

	_, err = whiteflag.ComputeOrder(context.Background(), ts.Tangle, ts.BlockIDs("C"))
	require.True(t, ierrors.Is(err, whiteflag.ErrUnsolidBlock))

	_, err = whiteflag.ComputeOrder(context.Background(), ts.Tangle, ts.BlockIDs("A"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = whiteflag.ComputeOrder(ctx, ts.Tangle, ts.BlockIDs("A"))
	require.True(t, ierrors.Is(err, context.Canceled))
}

func TestWhiteFlag_MerkleRootMismatch(t *testing.T) {
	ts := testsuite.NewTestSuite(t)
	defer ts.Shutdown()

	ts.IssueBlock("A", genesis)
	ts.IssueMilestone("Milestone1", []string{"A"}, testsuite.WithInclusionMerkleRoot(model.MerkleRoot(utils.RandBlockID())))

	mutations, err := computeMutations(t, ts, 1)
	require.NoError(t, err)
	require.False(t, mutations.InclusionMerkleRootMatches)

	_, err = computeMutations(t, ts, 1, whiteflag.WithEnforceInclusionMerkleRoot(true))
	require.True(t, ierrors.Is(err, whiteflag.ErrInclusionMerkleRootMismatch))

	ts.IssueBlock("B", "Milestone1")
	ts.IssueMilestone("Milestone2", []string{"B"}, testsuite.WithAppliedMerkleRoot(model.MerkleRoot(utils.RandBlockID())))

	ts.ConfirmMilestone(1)

	_, err = computeMutations(t, ts, 2)
	require.True(t, ierrors.Is(err, whiteflag.ErrAppliedMerkleRootMismatch))
}

func TestWhiteFlag_Receipt(t *testing.T) {
	ts := testsuite.NewTestSuite(t, testsuite.WithTreasury(1_000))
	defer ts.Shutdown()

	ts.IssueBlock("A", genesis)
	ts.IssueMilestone("Milestone1", []string{"A"}, testsuite.WithReceipt(&model.Receipt{
		MigratedAt: 1,
		Funds: []*model.MigratedFunds{
			{Address: ts.Address("Alice"), Amount: 200},
			{Address: ts.Address("Bob"), Amount: 100},
		},
		TreasuryAmount: 700,
	}))

	result := ts.ConfirmMilestone(1)
	require.Equal(t, 2, result.CreatedOutputs())
	createdAmount, err := result.Mutations.CreatedAmount()
	require.NoError(t, err)
	require.Equal(t, uint64(300), createdAmount)
	require.NotNil(t, result.Mutations.TreasuryMutation)
	require.Equal(t, uint64(1_000), result.Mutations.TreasuryMutation.Previous)
	require.Equal(t, uint64(700), result.Mutations.TreasuryMutation.New)

	treasury, err := ts.Ledger.ReadTreasury()
	require.NoError(t, err)
	require.Equal(t, uint64(700), treasury)

	ts.AssertBalance("Alice", 200)
	ts.AssertBalance("Bob", 100)
	ts.AssertLedgerState()

	ts.IssueBlock("B", "Milestone1")
	ts.IssueMilestone("Milestone2", []string{"B"}, testsuite.WithReceipt(&model.Receipt{
		MigratedAt: 2,
		Funds:      []*model.MigratedFunds{{Address: ts.Address("Alice"), Amount: 100}},
		// does not add up to the remaining treasury
		TreasuryAmount: 700,
	}))

	_, err = computeMutations(t, ts, 2)
	require.True(t, ierrors.Is(err, whiteflag.ErrTreasuryMismatch))
}

func TestWhiteFlagMutations_AmountsDoNotWrap(t *testing.T) {
	half := uint64(math.MaxUint64/2 + 1)
	newOutput := func(amount uint64) *utxo.Output {
		return utxo.NewOutput(model.OutputIDFromTransactionIDAndIndex(utils.RandTransactionID(), 0), utils.RandBlockID(), 1, 0, &model.Output{Amount: amount})
	}

	mutations := &whiteflag.WhiteFlagMutations{
		MilestoneIndex: 1,
		NewOutputs:     utxo.Outputs{newOutput(half), newOutput(10)},
		NewSpents:      utxo.Spents{utxo.NewSpent(newOutput(half), utils.RandTransactionID(), 1, 0)},
	}

	created, err := mutations.CreatedAmount()
	require.NoError(t, err)
	require.Equal(t, half+10, created)

	consumed, err := mutations.ConsumedAmount()
	require.NoError(t, err)
	require.Equal(t, half, consumed)

	mutations.NewOutputs = append(mutations.NewOutputs, newOutput(half))
	mutations.NewSpents = append(mutations.NewSpents, utxo.NewSpent(newOutput(half), utils.RandTransactionID(), 1, 0))

	_, err = mutations.CreatedAmount()
	require.ErrorIs(t, err, whiteflag.ErrSupplyOverflow)

	_, err = mutations.ConsumedAmount()
	require.ErrorIs(t, err, whiteflag.ErrSupplyOverflow)
}
