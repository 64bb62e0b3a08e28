package utxo

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
)

// ErrTreasuryMismatch is returned if a treasury mutation does not start from the stored treasury.
var ErrTreasuryMismatch = ierrors.New("treasury mutation does not match the stored treasury")

func treasuryStorageKey() []byte {
	return []byte{StoreKeyPrefixTreasury}
}

func storeTreasury(amount uint64, mutations kvstore.BatchedMutations) error {
	return mutations.Set(treasuryStorageKey(), balanceBytes(amount))
}

func (m *Manager) ReadTreasuryWithoutLocking() (uint64, error) {
	value, err := m.store.Get(treasuryStorageKey())
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return 0, nil
		}

		return 0, ierrors.Wrap(err, "failed to load treasury")
	}

	return balanceFromBytes(value)
}

func (m *Manager) ReadTreasury() (uint64, error) {
	m.ReadLockLedger()
	defer m.ReadUnlockLedger()

	return m.ReadTreasuryWithoutLocking()
}

func (m *Manager) StoreTreasuryWithoutLocking(amount uint64) error {
	return m.store.Set(treasuryStorageKey(), balanceBytes(amount))
}

// StoreTreasury overwrites the treasury. Used for genesis and snapshot import.
func (m *Manager) StoreTreasury(amount uint64) error {
	m.WriteLockLedger()
	defer m.WriteUnlockLedger()

	return m.StoreTreasuryWithoutLocking(amount)
}

func (m *Manager) stageTreasuryMutation(mutation *TreasuryMutation, mutations kvstore.BatchedMutations) error {
	if mutation == nil {
		return nil
	}

	current, err := m.ReadTreasuryWithoutLocking()
	if err != nil {
		return err
	}
	if current != mutation.Previous {
		return ierrors.Wrapf(ErrTreasuryMismatch, "stored %d, previous %d", current, mutation.Previous)
	}

	return storeTreasury(mutation.New, mutations)
}
