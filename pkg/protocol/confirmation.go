package protocol

import (
	"context"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/tangle"
	"github.com/iotaledger/tangle-core/pkg/whiteflag"
)

// ConfirmationResult describes a committed milestone confirmation.
type ConfirmationResult struct {
	Index            model.MilestoneIndex
	MilestoneID      model.MilestoneID
	MilestoneBlockID model.BlockID
	Timestamp        time.Time
	Mutations        *whiteflag.WhiteFlagMutations
	Duration         time.Duration
}

func (r *ConfirmationResult) Referenced() int {
	return len(r.Mutations.ReferencedBlocks)
}

func (r *ConfirmationResult) Included() int {
	return len(r.Mutations.IncludedBlocks)
}

func (r *ConfirmationResult) ExcludedConflicting() int {
	return len(r.Mutations.ExcludedConflictingBlocks)
}

func (r *ConfirmationResult) ExcludedNoTransaction() int {
	return len(r.Mutations.ExcludedNoTransactionBlocks)
}

func (r *ConfirmationResult) CreatedOutputs() int {
	return len(r.Mutations.NewOutputs)
}

func (r *ConfirmationResult) ConsumedOutputs() int {
	return len(r.Mutations.NewSpents)
}

// AttemptConfirmation confirms the milestone with the given index, which must directly follow the confirmed
// milestone. A deferral error (see IsDeferral) leaves all state untouched. A fatal error (see IsFatal) marks
// the node as corrupted and every later attempt fails with it.
func (p *Protocol) AttemptConfirmation(ctx context.Context, index model.MilestoneIndex) (*ConfirmationResult, error) {
	result, err := p.attemptConfirmation(ctx, index)
	if err != nil {
		return nil, err
	}

	p.publish(result)
	p.maintain(ctx, result.Index)

	return result, nil
}

// ConfirmPending confirms milestones in order until the latest known milestone is confirmed or a milestone
// can not be confirmed yet. It returns the number of confirmed milestones.
func (p *Protocol) ConfirmPending(ctx context.Context) (int, error) {
	var confirmed int
	for p.tangle.ConfirmedMilestoneIndex() < p.tangle.LatestMilestoneIndex() {
		if _, err := p.AttemptConfirmation(ctx, p.tangle.ConfirmedMilestoneIndex()+1); err != nil {
			if ierrors.Is(err, ErrMilestoneAlreadyConfirmed) {
				continue
			}

			return confirmed, err
		}
		confirmed++
	}

	return confirmed, nil
}

func (p *Protocol) attemptConfirmation(ctx context.Context, index model.MilestoneIndex) (*ConfirmationResult, error) {
	if err := p.Corruption(); err != nil {
		return nil, err
	}

	p.confirmationMutex.Lock()
	defer p.confirmationMutex.Unlock()

	confirmedIndex := p.tangle.ConfirmedMilestoneIndex()
	if index <= confirmedIndex {
		return nil, ierrors.Wrapf(ErrMilestoneAlreadyConfirmed, "milestone %d, confirmed milestone %d", index, confirmedIndex)
	}
	if index > confirmedIndex+1 {
		return nil, deferral(ierrors.Wrapf(ErrPreviousMilestoneNotConfirmed, "milestone %d, confirmed milestone %d", index, confirmedIndex))
	}

	milestonePayload, record, err := p.tangle.MilestonePayload(index)
	if err != nil {
		if ierrors.Is(err, tangle.ErrMilestoneNotFound) || ierrors.Is(err, tangle.ErrBlockNotFound) {
			return nil, deferral(ierrors.Wrapf(ErrMilestoneMissing, "milestone %d: %s", index, err))
		}

		return nil, p.fail(err)
	}

	metadata, exists, err := p.tangle.Metadata(record.BlockID)
	if err != nil {
		return nil, p.fail(err)
	}
	if !exists || !metadata.IsSolid() {
		return nil, deferral(ierrors.Wrapf(whiteflag.ErrUnsolidBlock, "milestone %d block %s", index, record.BlockID))
	}

	p.ledger.WriteLockLedger()
	defer p.ledger.WriteUnlockLedger()

	ledgerIndex, err := p.ledger.ReadLedgerIndexWithoutLocking()
	if err != nil {
		return nil, p.fail(err)
	}
	if ledgerIndex != confirmedIndex {
		return nil, p.fail(ierrors.Errorf("ledger index %d does not match confirmed milestone index %d", ledgerIndex, confirmedIndex))
	}

	start := time.Now()

	mutations, err := whiteflag.ComputeWhiteFlagMutations(ctx, p.ledger, p.tangle, record.BlockID, milestonePayload,
		whiteflag.WithEnforceInclusionMerkleRoot(p.optsEnforceInclusionMerkleRoot),
	)
	if err != nil {
		if ierrors.Is(err, whiteflag.ErrMissingBlock) || ierrors.Is(err, whiteflag.ErrUnsolidBlock) ||
			ierrors.Is(err, context.Canceled) || ierrors.Is(err, context.DeadlineExceeded) {
			return nil, deferral(err)
		}

		return nil, p.fail(err)
	}

	if !mutations.InclusionMerkleRootMatches {
		p.LogWarn("inclusion merkle root mismatch", "index", index, "computed", mutations.InclusionMerkleRoot, "milestone", milestonePayload.InclusionMerkleRoot)
	}

	if err := p.commit(index, mutations); err != nil {
		return nil, p.fail(err)
	}

	return &ConfirmationResult{
		Index:            index,
		MilestoneID:      record.MilestoneID,
		MilestoneBlockID: record.BlockID,
		Timestamp:        milestonePayload.Time(),
		Mutations:        mutations,
		Duration:         time.Since(start),
	}, nil
}

// commit writes the metadata stamps, the ledger diff and the confirmed milestone index in one batch.
func (p *Protocol) commit(index model.MilestoneIndex, mutations *whiteflag.WhiteFlagMutations) error {
	batch, err := p.tangle.KVStore().Batched()
	if err != nil {
		return err
	}

	confirmation, err := p.tangle.NewConfirmationBatch(batch, index)
	if err != nil {
		batch.Cancel()
		return err
	}

	for _, result := range mutations.BlockResults {
		if err := confirmation.Confirm(result.BlockID, result.InclusionState, result.Conflict); err != nil {
			batch.Cancel()
			return err
		}
	}

	diff := mutations.Diff()
	if err := p.ledger.StageDiffWithoutLocking(diff, batch); err != nil {
		batch.Cancel()
		return err
	}

	if err := confirmation.StageConfirmedMilestoneIndex(); err != nil {
		batch.Cancel()
		return err
	}

	if err := batch.Commit(); err != nil {
		return ierrors.Wrapf(err, "failed to commit confirmation of milestone %d", index)
	}

	if err := p.ledger.ApplyStateTreeWithoutLocking(diff); err != nil {
		return err
	}

	confirmation.Apply()

	return nil
}

func (p *Protocol) publish(result *ConfirmationResult) {
	p.LogInfo("milestone confirmed",
		"index", result.Index,
		"referenced", result.Referenced(),
		"included", result.Included(),
		"conflicting", result.ExcludedConflicting(),
		"noTransaction", result.ExcludedNoTransaction(),
		"duration", result.Duration,
	)

	if p.retainer != nil {
		if err := p.retainer.StoreMilestoneResults(result.Index, result.Mutations.BlockResults); err != nil {
			p.LogError("failed to retain transactions", "index", result.Index, "err", err)
		}
	}

	for _, output := range result.Mutations.NewOutputs {
		p.Events.OutputCreated.Trigger(output)
	}
	for _, spent := range result.Mutations.NewSpents {
		p.Events.OutputConsumed.Trigger(spent)
	}

	p.Events.MilestoneConfirmed.Trigger(result)
}
