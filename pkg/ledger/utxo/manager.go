package utxo

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/iotaledger/hive.go/ads"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/tangle-core/pkg/model"
)

var (
	// ErrOutputsSumNotEqualTotalSupply is returned if the sum of the output amounts and the treasury is not equal the total supply of tokens.
	ErrOutputsSumNotEqualTotalSupply = ierrors.New("accumulated output balance is not equal to total supply")
	// ErrBalancesNotEqualOutputsSum is returned if the address balances do not add up to the unspent outputs.
	ErrBalancesNotEqualOutputsSum = ierrors.New("accumulated address balances are not equal to the unspent outputs")
	// ErrUnexpectedLedgerIndex is returned if a diff does not follow the current ledger index.
	ErrUnexpectedLedgerIndex = ierrors.New("unexpected ledger index")
)

type Manager struct {
	store     kvstore.KVStore
	storeLock syncutils.RWMutex

	stateTree ads.Map[model.MerkleRoot, model.OutputID, *stateTreeMetadata]
}

func New(store kvstore.KVStore) *Manager {
	m := &Manager{
		store: store,
	}
	m.stateTree = newStateTree(m.stateTreeStore())

	return m
}

// KVStore returns the underlying KVStore.
func (m *Manager) KVStore() kvstore.KVStore {
	return m.store
}

// ClearLedgerState removes all entries from the ledger (spent, unspent, diff, balances, treasury, state tree).
func (m *Manager) ClearLedgerState() (err error) {
	m.WriteLockLedger()
	defer m.WriteUnlockLedger()

	defer func() {
		if errFlush := m.store.Flush(); err == nil && errFlush != nil {
			err = errFlush
		}
	}()

	for _, prefix := range []byte{
		StoreKeyPrefixLedgerMilestoneIndex,
		StoreKeyPrefixOutput,
		StoreKeyPrefixOutputSpent,
		StoreKeyPrefixOutputUnspent,
		StoreKeyPrefixMilestoneDiffs,
		StoreKeyPrefixBalances,
		StoreKeyPrefixTreasury,
		StoreKeyPrefixStateTree,
	} {
		if err := m.store.DeletePrefix([]byte{prefix}); err != nil {
			return err
		}
	}

	m.stateTree = newStateTree(m.stateTreeStore())

	return nil
}

func (m *Manager) ReadLockLedger() {
	m.storeLock.RLock()
}

func (m *Manager) ReadUnlockLedger() {
	m.storeLock.RUnlock()
}

func (m *Manager) WriteLockLedger() {
	m.storeLock.Lock()
}

func (m *Manager) WriteUnlockLedger() {
	m.storeLock.Unlock()
}

// PruneMilestoneIndexWithoutLocking removes the diff of the given milestone together
// with the outputs it consumed. Outputs that are still unspent are kept.
func (m *Manager) PruneMilestoneIndexWithoutLocking(index model.MilestoneIndex) error {
	mutations, err := m.store.Batched()
	if err != nil {
		return err
	}

	if err := m.StagePruneMilestoneIndexWithoutLocking(index, mutations); err != nil {
		mutations.Cancel()

		return err
	}

	return mutations.Commit()
}

// StagePruneMilestoneIndexWithoutLocking adds the deletions of PruneMilestoneIndexWithoutLocking to the given batch.
func (m *Manager) StagePruneMilestoneIndexWithoutLocking(index model.MilestoneIndex, mutations kvstore.BatchedMutations) error {
	diff, err := m.MilestoneDiffWithoutLocking(index)
	if err != nil {
		// There's no need to prune this milestone.
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return nil
		}

		return err
	}

	for _, spent := range diff.Spents {
		if err := deleteOutput(spent.output, mutations); err != nil {
			return err
		}

		if err := deleteSpent(spent, mutations); err != nil {
			return err
		}
	}

	return deleteDiff(index, mutations)
}

func storeLedgerIndex(index model.MilestoneIndex, mutations kvstore.BatchedMutations) error {
	return mutations.Set([]byte{StoreKeyPrefixLedgerMilestoneIndex}, lo.PanicOnErr(index.Bytes()))
}

func (m *Manager) StoreLedgerIndexWithoutLocking(index model.MilestoneIndex) error {
	return m.store.Set([]byte{StoreKeyPrefixLedgerMilestoneIndex}, lo.PanicOnErr(index.Bytes()))
}

func (m *Manager) StoreLedgerIndex(index model.MilestoneIndex) error {
	m.WriteLockLedger()
	defer m.WriteUnlockLedger()

	return m.StoreLedgerIndexWithoutLocking(index)
}

func (m *Manager) ReadLedgerIndexWithoutLocking() (model.MilestoneIndex, error) {
	value, err := m.store.Get([]byte{StoreKeyPrefixLedgerMilestoneIndex})
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			// there is no ledger milestone yet => return 0
			return 0, nil
		}

		return 0, ierrors.Errorf("failed to load ledger milestone index: %w", err)
	}

	return lo.DropCount(model.MilestoneIndexFromBytes(value))
}

func (m *Manager) ReadLedgerIndex() (model.MilestoneIndex, error) {
	m.ReadLockLedger()
	defer m.ReadUnlockLedger()

	return m.ReadLedgerIndexWithoutLocking()
}

// StageDiffWithoutLocking adds all ledger mutations of the diff to the given batch.
// The state tree is not touched; call ApplyStateTreeWithoutLocking once the batch is committed.
func (m *Manager) StageDiffWithoutLocking(diff *MilestoneDiff, mutations kvstore.BatchedMutations) error {
	ledgerIndex, err := m.ReadLedgerIndexWithoutLocking()
	if err != nil {
		return err
	}
	if diff.Index != ledgerIndex+1 {
		return ierrors.Wrapf(ErrUnexpectedLedgerIndex, "ledger index %d, diff index %d", ledgerIndex, diff.Index)
	}

	for _, output := range diff.Outputs {
		if err := storeOutput(output, mutations); err != nil {
			return err
		}
		if err := markAsUnspent(output, mutations); err != nil {
			return err
		}
	}

	consumed := make(Outputs, 0, len(diff.Spents))
	for _, spent := range diff.Spents {
		if err := storeSpentAndMarkOutputAsSpent(spent, mutations); err != nil {
			return err
		}
		consumed = append(consumed, spent.output)
	}

	if err := m.stageBalances(diff.Outputs, consumed, mutations); err != nil {
		return err
	}

	if err := m.stageTreasuryMutation(diff.TreasuryMutation, mutations); err != nil {
		return err
	}

	if err := storeDiff(diff, mutations); err != nil {
		return err
	}

	return storeLedgerIndex(diff.Index, mutations)
}

// ApplyStateTreeWithoutLocking moves the state tree forward by the given, already committed, diff.
func (m *Manager) ApplyStateTreeWithoutLocking(diff *MilestoneDiff) error {
	for _, output := range diff.Outputs {
		if err := m.stateTree.Set(output.OutputID(), newStateMetadata(output)); err != nil {
			return ierrors.Wrapf(err, "failed to set new output in state tree, outputID: %s", output.OutputID())
		}
	}
	for _, spent := range diff.Spents {
		if _, err := m.stateTree.Delete(spent.OutputID()); err != nil {
			return ierrors.Wrapf(err, "failed to delete spent output from state tree, outputID: %s", spent.OutputID())
		}
	}

	if err := m.stateTree.Commit(); err != nil {
		return ierrors.Wrap(err, "failed to commit state tree")
	}

	return nil
}

func (m *Manager) ApplyDiffWithoutLocking(diff *MilestoneDiff) error {
	mutations, err := m.store.Batched()
	if err != nil {
		return err
	}

	if err := m.StageDiffWithoutLocking(diff, mutations); err != nil {
		mutations.Cancel()

		return err
	}

	if err := mutations.Commit(); err != nil {
		return err
	}

	return m.ApplyStateTreeWithoutLocking(diff)
}

func (m *Manager) ApplyDiff(diff *MilestoneDiff) error {
	m.WriteLockLedger()
	defer m.WriteUnlockLedger()

	return m.ApplyDiffWithoutLocking(diff)
}

func (m *Manager) RollbackDiffWithoutLocking(diff *MilestoneDiff) error {
	ledgerIndex, err := m.ReadLedgerIndexWithoutLocking()
	if err != nil {
		return err
	}
	if diff.Index != ledgerIndex {
		return ierrors.Wrapf(ErrUnexpectedLedgerIndex, "ledger index %d, rollback index %d", ledgerIndex, diff.Index)
	}

	mutations, err := m.store.Batched()
	if err != nil {
		return err
	}

	// we have to store the spents as output and mark them as unspent
	restored := make(Outputs, 0, len(diff.Spents))
	for _, spent := range diff.Spents {
		if err := storeOutput(spent.output, mutations); err != nil {
			mutations.Cancel()

			return err
		}

		if err := deleteSpentAndMarkOutputAsUnspent(spent, mutations); err != nil {
			mutations.Cancel()

			return err
		}
		restored = append(restored, spent.output)
	}

	// we have to delete the newOutputs of this milestone
	for _, output := range diff.Outputs {
		if err := deleteOutput(output, mutations); err != nil {
			mutations.Cancel()

			return err
		}
		if err := deleteOutputLookups(output, mutations); err != nil {
			mutations.Cancel()

			return err
		}
	}

	if err := m.stageBalances(restored, diff.Outputs, mutations); err != nil {
		mutations.Cancel()

		return err
	}

	if diff.TreasuryMutation != nil {
		if err := m.stageTreasuryMutation(&TreasuryMutation{
			Previous: diff.TreasuryMutation.New,
			New:      diff.TreasuryMutation.Previous,
		}, mutations); err != nil {
			mutations.Cancel()

			return err
		}
	}

	if err := deleteDiff(diff.Index, mutations); err != nil {
		mutations.Cancel()

		return err
	}

	if err := storeLedgerIndex(diff.Index-1, mutations); err != nil {
		mutations.Cancel()

		return err
	}

	if err := mutations.Commit(); err != nil {
		return err
	}

	for _, spent := range diff.Spents {
		if err := m.stateTree.Set(spent.OutputID(), newStateMetadata(spent.Output())); err != nil {
			return ierrors.Wrapf(err, "failed to set new spent output in state tree, outputID: %s", spent.OutputID())
		}
	}
	for _, output := range diff.Outputs {
		if _, err := m.stateTree.Delete(output.OutputID()); err != nil {
			return ierrors.Wrapf(err, "failed to delete new output from state tree, outputID: %s", output.OutputID())
		}
	}

	if err := m.stateTree.Commit(); err != nil {
		return ierrors.Wrap(err, "failed to commit state tree")
	}

	return nil
}

func (m *Manager) RollbackDiff(diff *MilestoneDiff) error {
	m.WriteLockLedger()
	defer m.WriteUnlockLedger()

	return m.RollbackDiffWithoutLocking(diff)
}

// CheckLedgerState verifies that the unspent outputs plus the treasury add up to the token supply
// and that the address balances match the unspent outputs.
func (m *Manager) CheckLedgerState(tokenSupply uint64) error {
	m.ReadLockLedger()
	defer m.ReadUnlockLedger()

	total, _, err := m.ComputeLedgerBalance(ReadLockLedger(false))
	if err != nil {
		return err
	}

	treasury, err := m.ReadTreasuryWithoutLocking()
	if err != nil {
		return err
	}

	if total+treasury < total || total+treasury != tokenSupply {
		return ierrors.Wrapf(ErrOutputsSumNotEqualTotalSupply, "outputs %d, treasury %d, supply %d", total, treasury, tokenSupply)
	}

	var balances uint64
	if err := m.ForEachBalance(func(_ model.Address, balance uint64) bool {
		balances += balance

		return true
	}, ReadLockLedger(false)); err != nil {
		return err
	}

	if balances != total {
		return ierrors.Wrapf(ErrBalancesNotEqualOutputsSum, "balances %d, outputs %d", balances, total)
	}

	return nil
}

func (m *Manager) AddGenesisUnspentOutputWithoutLocking(unspentOutput *Output) error {
	if err := m.importUnspentOutputWithoutLocking(unspentOutput); err != nil {
		return ierrors.Wrapf(err, "failed to import unspent output, outputID: %s", unspentOutput.OutputID())
	}

	if err := m.stateTree.Commit(); err != nil {
		return ierrors.Wrap(err, "failed to commit state tree")
	}

	return nil
}

func (m *Manager) importUnspentOutputWithoutLocking(unspentOutput *Output) error {
	mutations, err := m.store.Batched()
	if err != nil {
		return err
	}

	if err := storeOutput(unspentOutput, mutations); err != nil {
		mutations.Cancel()

		return err
	}

	if err := markAsUnspent(unspentOutput, mutations); err != nil {
		mutations.Cancel()

		return err
	}

	if err := m.stageBalances(Outputs{unspentOutput}, nil, mutations); err != nil {
		mutations.Cancel()

		return err
	}

	if err := mutations.Commit(); err != nil {
		return err
	}

	if err := m.stateTree.Set(unspentOutput.OutputID(), newStateMetadata(unspentOutput)); err != nil {
		return ierrors.Wrapf(err, "failed to set state tree entry for output, outputID: %s", unspentOutput.OutputID())
	}

	return nil
}

func (m *Manager) AddGenesisUnspentOutput(unspentOutput *Output) error {
	m.WriteLockLedger()
	defer m.WriteUnlockLedger()

	return m.AddGenesisUnspentOutputWithoutLocking(unspentOutput)
}

func (m *Manager) LedgerStateSHA256Sum() ([]byte, error) {
	m.ReadLockLedger()
	defer m.ReadUnlockLedger()

	ledgerStateHash := sha256.New()

	ledgerIndex, err := m.ReadLedgerIndexWithoutLocking()
	if err != nil {
		return nil, err
	}
	if err := binary.Write(ledgerStateHash, binary.LittleEndian, ledgerIndex); err != nil {
		return nil, err
	}

	treasury, err := m.ReadTreasuryWithoutLocking()
	if err != nil {
		return nil, err
	}
	if err := binary.Write(ledgerStateHash, binary.LittleEndian, treasury); err != nil {
		return nil, err
	}

	// get all UTXOs and sort them by outputID
	outputIDs, err := m.UnspentOutputsIDs(ReadLockLedger(false))
	if err != nil {
		return nil, err
	}
	outputIDs.Sort()

	for _, outputID := range outputIDs {
		output, err := m.ReadOutputByOutputIDWithoutLocking(outputID)
		if err != nil {
			return nil, err
		}

		if _, err := ledgerStateHash.Write(output.outputID[:]); err != nil {
			return nil, err
		}

		if _, err := ledgerStateHash.Write(output.KVStorableValue()); err != nil {
			return nil, err
		}
	}

	// Add root of the state tree
	stateTreeRoot := m.StateTreeRoot()
	if _, err := ledgerStateHash.Write(stateTreeRoot[:]); err != nil {
		return nil, err
	}

	// calculate sha256 hash
	return ledgerStateHash.Sum(nil), nil
}
