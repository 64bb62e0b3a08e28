package whiteflag

import (
	"context"

	"github.com/iotaledger/hive.go/core/safemath"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// LedgerReader is the ledger state the mutations are computed against.
// The caller holds the ledger lock for the whole computation.
type LedgerReader interface {
	ReadOutputByOutputIDWithoutLocking(outputID model.OutputID) (*utxo.Output, error)
	IsOutputIDUnspentWithoutLocking(outputID model.OutputID) (bool, error)
	ReadTreasuryWithoutLocking() (uint64, error)
}

// BlockResult is the classification of one referenced block.
type BlockResult struct {
	BlockID        model.BlockID
	InclusionState model.InclusionState
	Conflict       model.ConflictReason
	// TransactionID is empty for blocks without a transaction.
	TransactionID model.TransactionID
}

// WhiteFlagMutations is the outcome of confirming a milestone.
type WhiteFlagMutations struct {
	MilestoneIndex     model.MilestoneIndex
	MilestoneTimestamp uint32

	// ReferencedBlocks are all newly confirmed blocks in application order.
	ReferencedBlocks model.BlockIDs
	BlockResults     []*BlockResult

	IncludedBlocks              model.BlockIDs
	ExcludedConflictingBlocks   model.BlockIDs
	ExcludedNoTransactionBlocks model.BlockIDs

	NewOutputs       utxo.Outputs
	NewSpents        utxo.Spents
	TreasuryMutation *utxo.TreasuryMutation

	InclusionMerkleRoot model.MerkleRoot
	AppliedMerkleRoot   model.MerkleRoot
	// InclusionMerkleRootMatches is false if the milestone carries a different inclusion root.
	InclusionMerkleRootMatches bool
}

// Diff returns the ledger diff of the confirmation.
func (w *WhiteFlagMutations) Diff() *utxo.MilestoneDiff {
	return &utxo.MilestoneDiff{
		Index:            w.MilestoneIndex,
		Outputs:          w.NewOutputs,
		Spents:           w.NewSpents,
		TreasuryMutation: w.TreasuryMutation,
	}
}

// ledgerView is the ledger as seen in the middle of a confirmation: outputs created earlier in the
// same milestone are available and outputs consumed earlier are gone.
type ledgerView struct {
	ledger  LedgerReader
	created map[model.OutputID]*utxo.Output
	spent   map[model.OutputID]*utxo.Spent
}

func (v *ledgerView) resolveInput(outputID model.OutputID) (*utxo.Output, model.ConflictReason, error) {
	if _, spentInThisMilestone := v.spent[outputID]; spentInThisMilestone {
		return nil, model.ConflictInputAlreadySpentInThisMilestone, nil
	}
	if output, createdInThisMilestone := v.created[outputID]; createdInThisMilestone {
		return output, model.ConflictNone, nil
	}

	output, err := v.ledger.ReadOutputByOutputIDWithoutLocking(outputID)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, model.ConflictInputNotFound, nil
		}

		return nil, model.ConflictNone, ierrors.Wrapf(err, "failed to read output %s", outputID)
	}

	unspent, err := v.ledger.IsOutputIDUnspentWithoutLocking(outputID)
	if err != nil {
		return nil, model.ConflictNone, ierrors.Wrapf(err, "failed to read spent status of output %s", outputID)
	}
	if !unspent {
		return nil, model.ConflictInputAlreadySpent, nil
	}

	return output, model.ConflictNone, nil
}

// checkTransaction returns the consumed outputs of a valid transaction, or the reason it conflicts.
func (v *ledgerView) checkTransaction(tx *model.Transaction) (utxo.Outputs, model.ConflictReason, error) {
	if err := tx.SyntacticallyValidate(); err != nil {
		return nil, model.ConflictSemanticValidationFailed, nil
	}

	inputs := make(utxo.Outputs, 0, len(tx.Essence.Inputs))
	var inputSum uint64
	for _, inputID := range tx.Essence.Inputs {
		input, conflict, err := v.resolveInput(inputID)
		if err != nil || conflict != model.ConflictNone {
			return nil, conflict, err
		}

		if inputSum, err = safemath.SafeAdd(inputSum, input.Amount()); err != nil {
			// unspent outputs can never exceed the token supply
			return nil, model.ConflictNone, ierrors.Wrapf(ErrSupplyOverflow, "inputs of transaction %s", tx.ID())
		}
		inputs = append(inputs, input)
	}

	var outputSum uint64
	for _, output := range tx.Essence.Outputs {
		var err error
		if outputSum, err = safemath.SafeAdd(outputSum, output.Amount); err != nil {
			return nil, model.ConflictInputOutputSumMismatch, nil
		}
	}
	if inputSum != outputSum {
		return nil, model.ConflictInputOutputSumMismatch, nil
	}

	message, err := tx.Essence.SigningMessage()
	if err != nil {
		return nil, model.ConflictSemanticValidationFailed, nil
	}
	for i, unlock := range tx.Unlocks {
		if unlock == nil || model.AddressFromPublicKey(unlock.PublicKey) != inputs[i].Address() {
			return nil, model.ConflictInvalidSignature, nil
		}
		if !unlock.PublicKey.VerifySignature(message, unlock.Signature) {
			return nil, model.ConflictInvalidSignature, nil
		}
	}

	return inputs, model.ConflictNone, nil
}

// ApplyOrder classifies the blocks in the given order against the in-progress ledger view and collects
// the resulting ledger mutations and Merkle roots. The ledger itself is not modified.
func ApplyOrder(ledger LedgerReader, provider BlockProvider, order model.BlockIDs, index model.MilestoneIndex, timestamp uint32) (*WhiteFlagMutations, error) {
	view := &ledgerView{
		ledger:  ledger,
		created: make(map[model.OutputID]*utxo.Output),
		spent:   make(map[model.OutputID]*utxo.Spent),
	}

	mutations := &WhiteFlagMutations{
		MilestoneIndex:              index,
		MilestoneTimestamp:          timestamp,
		ReferencedBlocks:            order,
		BlockResults:                make([]*BlockResult, 0, len(order)),
		IncludedBlocks:              make(model.BlockIDs, 0),
		ExcludedConflictingBlocks:   make(model.BlockIDs, 0),
		ExcludedNoTransactionBlocks: make(model.BlockIDs, 0),
		NewOutputs:                  make(utxo.Outputs, 0),
		NewSpents:                   make(utxo.Spents, 0),
	}

	for _, blockID := range order {
		block, exists, err := provider.Block(blockID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ierrors.Wrapf(ErrMissingBlock, "block %s", blockID)
		}

		tx, isTransaction := block.Transaction()
		if !isTransaction {
			mutations.BlockResults = append(mutations.BlockResults, &BlockResult{
				BlockID:        blockID,
				InclusionState: model.InclusionStateNoTransaction,
				Conflict:       model.ConflictNone,
			})
			mutations.ExcludedNoTransactionBlocks = append(mutations.ExcludedNoTransactionBlocks, blockID)

			continue
		}

		inputs, conflict, err := view.checkTransaction(tx)
		if err != nil {
			return nil, err
		}

		if conflict != model.ConflictNone {
			mutations.BlockResults = append(mutations.BlockResults, &BlockResult{
				BlockID:        blockID,
				InclusionState: model.InclusionStateConflicting,
				Conflict:       conflict,
				TransactionID:  tx.ID(),
			})
			mutations.ExcludedConflictingBlocks = append(mutations.ExcludedConflictingBlocks, blockID)

			continue
		}

		for _, input := range inputs {
			spent := utxo.NewSpent(input, tx.ID(), index, timestamp)
			view.spent[input.OutputID()] = spent
			mutations.NewSpents = append(mutations.NewSpents, spent)
		}
		for i, output := range tx.Essence.Outputs {
			created := utxo.NewOutput(tx.OutputID(uint16(i)), blockID, index, timestamp, output)
			view.created[created.OutputID()] = created
			mutations.NewOutputs = append(mutations.NewOutputs, created)
		}

		mutations.BlockResults = append(mutations.BlockResults, &BlockResult{
			BlockID:        blockID,
			InclusionState: model.InclusionStateIncluded,
			Conflict:       model.ConflictNone,
			TransactionID:  tx.ID(),
		})
		mutations.IncludedBlocks = append(mutations.IncludedBlocks, blockID)
	}

	hasher := NewHasher()
	mutations.InclusionMerkleRoot = hasher.Hash(mutations.ReferencedBlocks)
	mutations.AppliedMerkleRoot = hasher.Hash(mutations.IncludedBlocks)

	return mutations, nil
}

// applyReceipt mints the migrated funds of the receipt out of the treasury.
func (w *WhiteFlagMutations) applyReceipt(ledger LedgerReader, milestoneID model.MilestoneID, milestoneBlockID model.BlockID, receipt *model.Receipt) error {
	treasury, err := ledger.ReadTreasuryWithoutLocking()
	if err != nil {
		return err
	}

	fundsSum, overflow := receipt.Sum()
	if overflow {
		return ierrors.Wrapf(ErrSupplyOverflow, "migrated funds of milestone %d", w.MilestoneIndex)
	}
	total := fundsSum + receipt.TreasuryAmount
	if total < fundsSum {
		return ierrors.Wrapf(ErrSupplyOverflow, "receipt of milestone %d", w.MilestoneIndex)
	}
	if total != treasury {
		return ierrors.Wrapf(ErrTreasuryMismatch, "treasury %d, migrated %d, remaining %d", treasury, fundsSum, receipt.TreasuryAmount)
	}

	for i, funds := range receipt.Funds {
		w.NewOutputs = append(w.NewOutputs, utxo.NewOutput(
			model.OutputIDFromMilestoneIDAndIndex(milestoneID, uint16(i)),
			milestoneBlockID,
			w.MilestoneIndex,
			w.MilestoneTimestamp,
			&model.Output{Address: funds.Address, Amount: funds.Amount},
		))
	}

	w.TreasuryMutation = &utxo.TreasuryMutation{
		Previous: treasury,
		New:      receipt.TreasuryAmount,
	}

	return nil
}

// Options configure ComputeWhiteFlagMutations.
type Options struct {
	enforceInclusionMerkleRoot bool
}

// WithEnforceInclusionMerkleRoot makes a mismatching inclusion merkle root fatal.
// By default only the applied merkle root is binding.
func WithEnforceInclusionMerkleRoot(enforce bool) options.Option[Options] {
	return func(o *Options) {
		o.enforceInclusionMerkleRoot = enforce
	}
}

// ComputeWhiteFlagMutations walks the past cone of the milestone, applies it to a view of the ledger
// and checks the resulting Merkle roots against the ones the milestone commits to.
func ComputeWhiteFlagMutations(ctx context.Context, ledger LedgerReader, provider BlockProvider, milestoneBlockID model.BlockID, milestone *model.Milestone, opts ...options.Option[Options]) (*WhiteFlagMutations, error) {
	computeOpts := options.Apply(&Options{}, opts)

	order, err := ComputeOrder(ctx, provider, milestone.Parents)
	if err != nil {
		return nil, err
	}

	mutations, err := ApplyOrder(ledger, provider, order, milestone.Index, milestone.Timestamp)
	if err != nil {
		return nil, err
	}

	if milestone.Receipt != nil {
		if err := mutations.applyReceipt(ledger, milestone.ID(), milestoneBlockID, milestone.Receipt); err != nil {
			return nil, err
		}
	}

	if mutations.AppliedMerkleRoot != milestone.AppliedMerkleRoot {
		return nil, ierrors.Wrapf(ErrAppliedMerkleRootMismatch, "milestone %d: computed %x, milestone %x", milestone.Index, mutations.AppliedMerkleRoot[:], milestone.AppliedMerkleRoot[:])
	}

	mutations.InclusionMerkleRootMatches = mutations.InclusionMerkleRoot == milestone.InclusionMerkleRoot
	if !mutations.InclusionMerkleRootMatches && computeOpts.enforceInclusionMerkleRoot {
		return nil, ierrors.Wrapf(ErrInclusionMerkleRootMismatch, "milestone %d: computed %x, milestone %x", milestone.Index, mutations.InclusionMerkleRoot[:], milestone.InclusionMerkleRoot[:])
	}

	return mutations, nil
}

// CreatedAmount returns the sum of all created outputs.
func (w *WhiteFlagMutations) CreatedAmount() (uint64, error) {
	var sum uint64
	for _, output := range w.NewOutputs {
		var err error
		if sum, err = safemath.SafeAdd(sum, output.Amount()); err != nil {
			return 0, ierrors.Wrapf(ErrSupplyOverflow, "created outputs of milestone %d", w.MilestoneIndex)
		}
	}

	return sum, nil
}

// ConsumedAmount returns the sum of all consumed outputs.
func (w *WhiteFlagMutations) ConsumedAmount() (uint64, error) {
	var sum uint64
	for _, spent := range w.NewSpents {
		var err error
		if sum, err = safemath.SafeAdd(sum, spent.Amount()); err != nil {
			return 0, ierrors.Wrapf(ErrSupplyOverflow, "consumed outputs of milestone %d", w.MilestoneIndex)
		}
	}

	return sum, nil
}
