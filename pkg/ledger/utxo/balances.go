package utxo

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
	"github.com/iotaledger/tangle-core/pkg/model"
)

var (
	ErrBalanceUnderflow = ierrors.New("address balance underflow")
	ErrBalanceOverflow  = ierrors.New("address balance overflow")
)

// BalanceConsumer is a function that consumes an address balance.
// Returning false from this function indicates to abort the iteration.
type BalanceConsumer func(address model.Address, balance uint64) bool

func balanceStorageKeyForAddress(address model.Address) []byte {
	ms := marshalutil.New(1 + model.AddressLength)
	ms.WriteByte(StoreKeyPrefixBalances) // 1 byte
	ms.WriteBytes(address[:])            // 32 bytes

	return ms.Bytes()
}

func balanceBytes(balance uint64) []byte {
	ms := marshalutil.New(8)
	ms.WriteUint64(balance)

	return ms.Bytes()
}

func balanceFromBytes(value []byte) (uint64, error) {
	return marshalutil.New(value).ReadUint64()
}

// balanceDelta collects the credits and debits of a single address within a diff.
type balanceDelta struct {
	credit uint64
	debit  uint64
}

func (m *Manager) readBalanceWithoutLocking(address model.Address) (uint64, error) {
	value, err := m.store.Get(balanceStorageKeyForAddress(address))
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return 0, nil
		}

		return 0, err
	}

	return balanceFromBytes(value)
}

// AddressBalanceWithoutLocking returns the sum of all unspent outputs on the address.
func (m *Manager) AddressBalanceWithoutLocking(address model.Address) (uint64, error) {
	return m.readBalanceWithoutLocking(address)
}

func (m *Manager) AddressBalance(address model.Address) (uint64, error) {
	m.ReadLockLedger()
	defer m.ReadUnlockLedger()

	return m.AddressBalanceWithoutLocking(address)
}

// stageBalances writes the new balances of every address touched by created and consumed outputs.
// A zero balance removes the record.
func (m *Manager) stageBalances(created Outputs, consumed Outputs, mutations kvstore.BatchedMutations) error {
	deltas := make(map[model.Address]*balanceDelta)
	delta := func(address model.Address) *balanceDelta {
		d, exists := deltas[address]
		if !exists {
			d = &balanceDelta{}
			deltas[address] = d
		}

		return d
	}

	for _, output := range created {
		d := delta(output.Address())
		if d.credit+output.Amount() < d.credit {
			return ierrors.Wrapf(ErrBalanceOverflow, "address %s", output.Address())
		}
		d.credit += output.Amount()
	}
	for _, output := range consumed {
		d := delta(output.Address())
		if d.debit+output.Amount() < d.debit {
			return ierrors.Wrapf(ErrBalanceOverflow, "address %s", output.Address())
		}
		d.debit += output.Amount()
	}

	for address, d := range deltas {
		balance, err := m.readBalanceWithoutLocking(address)
		if err != nil {
			return err
		}

		if balance+d.credit < balance {
			return ierrors.Wrapf(ErrBalanceOverflow, "address %s", address)
		}
		balance += d.credit

		if balance < d.debit {
			return ierrors.Wrapf(ErrBalanceUnderflow, "address %s: balance %d, debit %d", address, balance, d.debit)
		}
		balance -= d.debit

		key := balanceStorageKeyForAddress(address)
		if balance == 0 {
			if err := mutations.Delete(key); err != nil {
				return err
			}

			continue
		}

		if err := mutations.Set(key, balanceBytes(balance)); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) ForEachBalance(consumer BalanceConsumer, options ...IterateOption) error {
	opt := iterateOptions(options)

	if opt.readLockLedger {
		m.ReadLockLedger()
		defer m.ReadUnlockLedger()
	}

	var innerErr error
	var i int
	if err := m.store.Iterate([]byte{StoreKeyPrefixBalances}, func(key kvstore.Key, value kvstore.Value) bool {
		if (opt.maxResultCount > 0) && (i >= opt.maxResultCount) {
			return false
		}
		i++

		address, _, err := model.AddressFromBytes(key[1:])
		if err != nil {
			innerErr = err
			return false
		}

		balance, err := balanceFromBytes(value)
		if err != nil {
			innerErr = err
			return false
		}

		return consumer(address, balance)
	}); err != nil {
		return err
	}

	return innerErr
}
