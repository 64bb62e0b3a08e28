package protocol

import (
	"context"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/event"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/hive.go/runtime/workerpool"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/milestone"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/retainer"
	"github.com/iotaledger/tangle-core/pkg/snapshot"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

// Protocol drives the confirmation of milestones. The tangle and the ledger must share one key-value store,
// so that a confirmation is committed in a single batch.
type Protocol struct {
	Events  *Events
	Workers *workerpool.Group

	tangle    *tangle.Tangle
	ledger    *utxo.Manager
	validator *milestone.Validator

	pruning   *pruning.Manager
	snapshots *snapshot.Manager
	retainer  *retainer.Retainer

	// confirmationMutex makes the confirmation single-writer.
	confirmationMutex syncutils.Mutex

	corruption      error
	corruptionMutex syncutils.RWMutex

	optsEnforceInclusionMerkleRoot bool

	log.Logger
}

func New(logger log.Logger, workers *workerpool.Group, tangle *tangle.Tangle, ledger *utxo.Manager, validator *milestone.Validator, opts ...options.Option[Protocol]) *Protocol {
	return options.Apply(&Protocol{
		Events:    NewEvents(),
		Workers:   workers,
		Logger:    logger,
		tangle:    tangle,
		ledger:    ledger,
		validator: validator,
	}, opts, func(p *Protocol) {
		if p.pruning != nil && p.retainer != nil {
			p.pruning.Events.Pruned.Hook(func(index model.MilestoneIndex) {
				if err := p.retainer.PruneMilestoneIndex(index); err != nil {
					p.LogError("failed to prune transaction retainer", "index", index, "err", err)
				}
			})
		}
	})
}

// Run confirms milestones as soon as their blocks become solid until the context is canceled.
func (p *Protocol) Run(ctx context.Context) error {
	confirmationWorker := p.Workers.CreatePool("Confirmation", workerpool.WithWorkerCount(1))

	unhook := p.tangle.Events.BlockSolid.Hook(func(metadata *model.BlockMetadata) {
		block, exists, err := p.tangle.Block(metadata.BlockID())
		if err != nil || !exists {
			return
		}
		if _, isMilestone := block.Milestone(); !isMilestone {
			return
		}

		if _, err := p.ProcessMilestoneBlock(block); err != nil {
			return
		}
		if _, err := p.ConfirmPending(ctx); err != nil && !IsDeferral(err) {
			p.LogError("confirmation stopped", "err", err)
		}
	}, event.WithWorkerPool(confirmationWorker)).Unhook

	p.Events.Running.Trigger()

	// milestones may have become solid before the hook was attached
	if _, err := p.ConfirmPending(ctx); err != nil && !IsDeferral(err) {
		p.LogError("confirmation stopped", "err", err)
	}

	<-ctx.Done()

	unhook()
	p.Workers.Shutdown()

	return ctx.Err()
}

// ProcessMilestoneBlock validates the milestone carried by the block and stores it.
// A rejected milestone is ignored for confirmation purposes and stays an ordinary block.
func (p *Protocol) ProcessMilestoneBlock(block *model.Block) (*tangle.Milestone, error) {
	milestonePayload, err := p.validator.ValidateBlock(block)
	if err != nil {
		p.LogWarn("milestone rejected", "block", block.ID(), "err", err)
		p.Events.MilestoneRejected.Trigger(block, err)

		return nil, err
	}

	record, _, err := p.tangle.StoreMilestone(block.ID(), milestonePayload)
	if err != nil {
		return nil, ierrors.Wrapf(err, "failed to store milestone %d", milestonePayload.Index)
	}

	return record, nil
}

// Health returns the confirmation health of the node.
func (p *Protocol) Health() Health {
	if p.Corruption() != nil {
		return HealthCorrupted
	}
	if !p.tangle.IsSynced() {
		return HealthSyncing
	}

	return HealthHealthy
}

// Corruption returns the error that stopped the confirmation, if any.
func (p *Protocol) Corruption() error {
	p.corruptionMutex.RLock()
	defer p.corruptionMutex.RUnlock()

	return p.corruption
}

// fail marks the node as corrupted. Only the first fatal error is kept.
func (p *Protocol) fail(err error) error {
	fatalErr := ierrors.Join(ErrFatal, err)

	p.corruptionMutex.Lock()
	firstFailure := p.corruption == nil
	if firstFailure {
		p.corruption = fatalErr
	}
	p.corruptionMutex.Unlock()

	if firstFailure {
		p.LogError("ledger diverged, confirmation stopped", "err", err)
		p.Events.Corrupted.Trigger(fatalErr)
	}

	return fatalErr
}

// maintain runs the pruning and snapshot steps the policies ask for after a confirmation.
func (p *Protocol) maintain(ctx context.Context, confirmedIndex model.MilestoneIndex) {
	if p.snapshots != nil && p.snapshots.ShouldTakeSnapshot(confirmedIndex) {
		if err := p.snapshots.CreateSnapshotForConfirmedIndex(ctx, confirmedIndex); err != nil {
			p.LogError("failed to create snapshot", "confirmedIndex", confirmedIndex, "err", err)
		}
	}

	if p.pruning != nil {
		if _, err := p.pruning.Prune(ctx); err != nil && !ierrors.Is(err, pruning.ErrPruningRunning) {
			p.LogError("failed to prune", "confirmedIndex", confirmedIndex, "err", err)
		}
	}
}
