package testsuite

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/tangle"
	"github.com/iotaledger/tangle-core/pkg/whiteflag"
)

// MilestoneID returns the id of the milestone the suite created for the given index.
func (t *TestSuite) MilestoneID(index model.MilestoneIndex) model.MilestoneID {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	milestoneID, exists := t.milestoneIDs.Get(index)
	if !exists {
		panic(fmt.Sprintf("milestone %d not created", index))
	}

	return milestoneID
}

// WithIndex overrides the index of the created milestone.
func WithIndex(index model.MilestoneIndex) options.Option[model.Milestone] {
	return func(m *model.Milestone) {
		m.Index = index
	}
}

// WithAppliedMerkleRoot overrides the computed applied merkle root.
func WithAppliedMerkleRoot(root model.MerkleRoot) options.Option[model.Milestone] {
	return func(m *model.Milestone) {
		m.AppliedMerkleRoot = root
	}
}

// WithInclusionMerkleRoot overrides the computed inclusion merkle root.
func WithInclusionMerkleRoot(root model.MerkleRoot) options.Option[model.Milestone] {
	return func(m *model.Milestone) {
		m.InclusionMerkleRoot = root
	}
}

func WithReceipt(receipt *model.Receipt) options.Option[model.Milestone] {
	return func(m *model.Milestone) {
		m.Receipt = receipt
	}
}

// WithSigners signs the milestone with the given wallets instead of the coordinator keys.
func WithSigners(walletAliases ...string) options.Option[model.Milestone] {
	return func(m *model.Milestone) {
		m.Signatures = nil
		for _, alias := range walletAliases {
			essence, err := m.Essence()
			if err != nil {
				panic(err)
			}
			key := walletKey(alias)
			m.Signatures = append(m.Signatures, &model.MilestoneSignature{
				PublicKey: key.Public(),
				Signature: key.Sign(essence),
			})
		}
	}
}

// CreateMilestone builds a signed milestone on top of the given parents and registers its block
// without attaching it. The Merkle roots are computed on the current tangle as if all previously
// created milestones were confirmed.
func (t *TestSuite) CreateMilestone(alias string, parentAliases []string, opts ...options.Option[model.Milestone]) *model.Block {
	t.mutex.RLock()
	index := t.nextMilestone
	previousMilestoneID, _ := t.milestoneIDs.Get(index - 1)
	t.mutex.RUnlock()

	parents := t.BlockIDs(parentAliases...).RemoveDupsAndSort()

	provider := newPendingProvider(t)
	order, err := whiteflag.ComputeOrder(context.Background(), provider, parents)
	require.NoError(t.Testing, err)

	t.Ledger.ReadLockLedger()
	mutations, err := whiteflag.ApplyOrder(provider.ledger, provider, order, index, uint32(t.MilestoneTime(index).Unix()))
	t.Ledger.ReadUnlockLedger()
	require.NoError(t.Testing, err)

	milestonePayload := &model.Milestone{
		Index:               index,
		Timestamp:           uint32(t.MilestoneTime(index).Unix()),
		PreviousMilestoneID: previousMilestoneID,
		Parents:             parents,
		InclusionMerkleRoot: mutations.InclusionMerkleRoot,
		AppliedMerkleRoot:   mutations.AppliedMerkleRoot,
	}

	// the options run on an unsigned milestone, so that overridden fields are covered by the signatures
	signed := false
	options.Apply(milestonePayload, opts, func(m *model.Milestone) {
		signed = len(m.Signatures) > 0
	})
	if !signed {
		require.NoError(t.Testing, milestonePayload.Sign(t.coordinatorKeys...))
	}

	block := t.CreateBlock(alias, milestonePayload, parentAliases...)

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.milestoneIDs.Set(milestonePayload.Index, milestonePayload.ID())
	t.nextMilestone = milestonePayload.Index + 1
	t.pending.record(milestonePayload.Index, mutations)

	return block
}

// IssueMilestone creates a milestone, attaches its block and stores it as a valid milestone.
func (t *TestSuite) IssueMilestone(alias string, parentAliases []string, opts ...options.Option[model.Milestone]) *tangle.Milestone {
	block := t.AttachBlock(t.CreateMilestone(alias, parentAliases, opts...))

	record, err := t.Protocol.ProcessMilestoneBlock(block)
	require.NoError(t.Testing, err)

	return record
}

// IssueAndConfirmMilestone issues a milestone and confirms it.
func (t *TestSuite) IssueAndConfirmMilestone(alias string, parentAliases ...string) *tangle.Milestone {
	record := t.IssueMilestone(alias, parentAliases)
	t.ConfirmMilestone(record.Index)

	return record
}
