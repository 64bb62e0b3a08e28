package utxo

import (
	"github.com/iotaledger/hive.go/ads"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/tangle-core/pkg/model"
)

type stateTreeMetadata struct {
	MilestoneIndexBooked model.MilestoneIndex
}

func newStateMetadata(output *Output) *stateTreeMetadata {
	return &stateTreeMetadata{
		MilestoneIndexBooked: output.MilestoneIndexBooked(),
	}
}

func stateMetadataFromBytes(b []byte) (*stateTreeMetadata, int, error) {
	s := new(stateTreeMetadata)

	var err error
	var n int
	s.MilestoneIndexBooked, n, err = model.MilestoneIndexFromBytes(b)
	if err != nil {
		return nil, 0, err
	}

	return s, n, nil
}

func (s *stateTreeMetadata) Bytes() ([]byte, error) {
	return s.MilestoneIndexBooked.Bytes()
}

func newStateTree(store kvstore.KVStore) ads.Map[model.MerkleRoot, model.OutputID, *stateTreeMetadata] {
	return ads.NewMap[model.MerkleRoot](store,
		model.MerkleRoot.Bytes,
		model.MerkleRootFromBytes,
		model.OutputID.Bytes,
		model.OutputIDFromBytes,
		(*stateTreeMetadata).Bytes,
		stateMetadataFromBytes,
	)
}

func (m *Manager) stateTreeStore() kvstore.KVStore {
	return lo.PanicOnErr(m.store.WithExtendedRealm(kvstore.Realm{StoreKeyPrefixStateTree}))
}

// StateTreeRoot returns the root of the authenticated map over all unspent outputs.
func (m *Manager) StateTreeRoot() model.MerkleRoot {
	return m.stateTree.Root()
}

func (m *Manager) CheckStateTree() bool {
	comparisonTree := newStateTree(mapdb.NewMapDB())

	if err := m.ForEachUnspentOutput(func(output *Output) bool {
		if err := comparisonTree.Set(output.OutputID(), newStateMetadata(output)); err != nil {
			panic(ierrors.Wrapf(err, "failed to set output in comparison tree, outputID: %s", output.OutputID().ToHex()))
		}

		return true
	}); err != nil {
		return false
	}

	return comparisonTree.Root() == m.StateTreeRoot()
}

// RebuildStateTree drops the stored state tree and recreates it from the unspent outputs.
func (m *Manager) RebuildStateTree() error {
	m.WriteLockLedger()
	defer m.WriteUnlockLedger()

	if err := m.stateTreeStore().Clear(); err != nil {
		return ierrors.Wrap(err, "failed to clear state tree")
	}
	m.stateTree = newStateTree(m.stateTreeStore())

	var innerErr error
	if err := m.ForEachUnspentOutput(func(output *Output) bool {
		if innerErr = m.stateTree.Set(output.OutputID(), newStateMetadata(output)); innerErr != nil {
			return false
		}

		return true
	}, ReadLockLedger(false)); err != nil {
		return err
	}
	if innerErr != nil {
		return ierrors.Wrap(innerErr, "failed to set output in state tree")
	}

	return m.stateTree.Commit()
}
