package testsuite

import (
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/whiteflag"
)

// pendingState accumulates the effects of all milestones created by the suite,
// whether they were confirmed on the node or not.
type pendingState struct {
	referenced map[model.BlockID]model.MilestoneIndex
	created    map[model.OutputID]*utxo.Output
	spent      map[model.OutputID]struct{}
}

func newPendingState() *pendingState {
	return &pendingState{
		referenced: make(map[model.BlockID]model.MilestoneIndex),
		created:    make(map[model.OutputID]*utxo.Output),
		spent:      make(map[model.OutputID]struct{}),
	}
}

func (p *pendingState) record(index model.MilestoneIndex, mutations *whiteflag.WhiteFlagMutations) {
	for _, blockID := range mutations.ReferencedBlocks {
		p.referenced[blockID] = index
	}
	for _, output := range mutations.NewOutputs {
		p.created[output.OutputID()] = output
	}
	for _, spent := range mutations.NewSpents {
		p.spent[spent.OutputID()] = struct{}{}
	}
}

// pendingProvider resolves blocks from the tangle and falls back to blocks the suite created but did not attach.
type pendingProvider struct {
	suite  *TestSuite
	ledger *pendingLedger
}

var _ whiteflag.BlockProvider = &pendingProvider{}

func newPendingProvider(suite *TestSuite) *pendingProvider {
	return &pendingProvider{
		suite:  suite,
		ledger: &pendingLedger{suite: suite},
	}
}

func (p *pendingProvider) Block(blockID model.BlockID) (*model.Block, bool, error) {
	block, exists, err := p.suite.Tangle.Block(blockID)
	if err != nil || exists {
		return block, exists, err
	}

	block, exists = p.registeredBlock(blockID)

	return block, exists, nil
}

func (p *pendingProvider) Metadata(blockID model.BlockID) (*model.BlockMetadata, bool, error) {
	metadata, exists, err := p.suite.Tangle.Metadata(blockID)
	if err != nil {
		return nil, false, err
	}

	switch {
	case !exists:
		if _, registered := p.registeredBlock(blockID); !registered {
			return nil, false, nil
		}
		metadata = model.NewBlockMetadata(blockID, p.suite.genesisTime)
		metadata.SetSolid(p.suite.genesisTime)
	case !metadata.IsSolid():
		// the suite knows every block it created, attached or not
		metadata = metadata.Clone()
		metadata.SetSolid(p.suite.genesisTime)
	}

	p.suite.mutex.RLock()
	index, referenced := p.suite.pending.referenced[blockID]
	p.suite.mutex.RUnlock()

	if referenced && !metadata.IsConfirmed() {
		metadata = metadata.Clone()
		metadata.SetConfirmed(index, model.InclusionStateUnknown, model.ConflictNone)
	}

	return metadata, true, nil
}

func (p *pendingProvider) IsSolidEntryPoint(blockID model.BlockID) bool {
	return p.suite.Tangle.IsSolidEntryPoint(blockID)
}

func (p *pendingProvider) registeredBlock(blockID model.BlockID) (*model.Block, bool) {
	p.suite.mutex.RLock()
	defer p.suite.mutex.RUnlock()

	var found *model.Block
	p.suite.blocks.ForEach(func(_ string, block *model.Block) bool {
		if block.ID() == blockID {
			found = block
			return false
		}

		return true
	})

	return found, found != nil
}

// pendingLedger is the ledger of the node with the effects of the created milestones applied on top.
type pendingLedger struct {
	suite *TestSuite
}

var _ whiteflag.LedgerReader = &pendingLedger{}

func (l *pendingLedger) ReadOutputByOutputIDWithoutLocking(outputID model.OutputID) (*utxo.Output, error) {
	l.suite.mutex.RLock()
	output, created := l.suite.pending.created[outputID]
	l.suite.mutex.RUnlock()

	if created {
		return output, nil
	}

	return l.suite.Ledger.ReadOutputByOutputIDWithoutLocking(outputID)
}

func (l *pendingLedger) IsOutputIDUnspentWithoutLocking(outputID model.OutputID) (bool, error) {
	l.suite.mutex.RLock()
	_, spent := l.suite.pending.spent[outputID]
	_, created := l.suite.pending.created[outputID]
	l.suite.mutex.RUnlock()

	if spent {
		return false, nil
	}
	if created {
		return true, nil
	}

	return l.suite.Ledger.IsOutputIDUnspentWithoutLocking(outputID)
}

func (l *pendingLedger) ReadTreasuryWithoutLocking() (uint64, error) {
	return l.suite.Ledger.ReadTreasuryWithoutLocking()
}
