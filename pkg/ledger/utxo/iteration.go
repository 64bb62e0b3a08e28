package utxo

import (
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/model"
)

type IterateOptions struct {
	readLockLedger bool
	maxResultCount int
}

type IterateOption = options.Option[IterateOptions]

// ReadLockLedger defines whether the ledger is read locked during the iteration.
func ReadLockLedger(lockLedger bool) IterateOption {
	return func(o *IterateOptions) {
		o.readLockLedger = lockLedger
	}
}

// MaxResultCount stops the iteration after count elements. Zero means unlimited.
func MaxResultCount(count int) IterateOption {
	return func(o *IterateOptions) {
		o.maxResultCount = count
	}
}

func iterateOptions(optionalOptions []IterateOption) *IterateOptions {
	return options.Apply(&IterateOptions{
		readLockLedger: true,
		maxResultCount: 0,
	}, optionalOptions)
}

func (m *Manager) ForEachOutput(consumer OutputConsumer, options ...IterateOption) error {
	opt := iterateOptions(options)

	if opt.readLockLedger {
		m.ReadLockLedger()
		defer m.ReadUnlockLedger()
	}

	var innerErr error
	var i int
	if err := m.store.Iterate([]byte{StoreKeyPrefixOutput}, func(key kvstore.Key, value kvstore.Value) bool {
		if (opt.maxResultCount > 0) && (i >= opt.maxResultCount) {
			return false
		}
		i++

		output := &Output{}
		if err := output.kvStorableLoad(m, key, value); err != nil {
			innerErr = err
			return false
		}

		return consumer(output)
	}); err != nil {
		return err
	}

	return innerErr
}

func (m *Manager) ForEachSpentOutput(consumer SpentConsumer, options ...IterateOption) error {
	opt := iterateOptions(options)

	if opt.readLockLedger {
		m.ReadLockLedger()
		defer m.ReadUnlockLedger()
	}

	var innerErr error
	var i int
	if err := m.store.Iterate([]byte{StoreKeyPrefixOutputSpent}, func(key kvstore.Key, value kvstore.Value) bool {
		if (opt.maxResultCount > 0) && (i >= opt.maxResultCount) {
			return false
		}
		i++

		spent := &Spent{}
		if err := spent.kvStorableLoad(m, key, value); err != nil {
			innerErr = err
			return false
		}

		if err := m.loadOutputOfSpent(spent); err != nil {
			innerErr = err
			return false
		}

		return consumer(spent)
	}); err != nil {
		return err
	}

	return innerErr
}

func (m *Manager) ForEachUnspentOutputID(consumer OutputIDConsumer, options ...IterateOption) error {
	opt := iterateOptions(options)

	if opt.readLockLedger {
		m.ReadLockLedger()
		defer m.ReadUnlockLedger()
	}

	var innerErr error
	var i int
	if err := m.store.IterateKeys([]byte{StoreKeyPrefixOutputUnspent}, func(key kvstore.Key) bool {
		if (opt.maxResultCount > 0) && (i >= opt.maxResultCount) {
			return false
		}
		i++

		outputID, err := outputIDFromDatabaseKey(key)
		if err != nil {
			innerErr = err
			return false
		}

		return consumer(outputID)
	}); err != nil {
		return err
	}

	return innerErr
}

func (m *Manager) ForEachUnspentOutput(consumer OutputConsumer, options ...IterateOption) error {
	var innerErr error
	if err := m.ForEachUnspentOutputID(func(outputID model.OutputID) bool {
		output, err := m.ReadOutputByOutputIDWithoutLocking(outputID)
		if err != nil {
			innerErr = err
			return false
		}

		return consumer(output)
	}, options...); err != nil {
		return err
	}

	return innerErr
}

func (m *Manager) UnspentOutputsIDs(options ...IterateOption) (model.OutputIDs, error) {
	var outputIDs model.OutputIDs
	consumerFunc := func(outputID model.OutputID) bool {
		outputIDs = append(outputIDs, outputID)

		return true
	}

	if err := m.ForEachUnspentOutputID(consumerFunc, options...); err != nil {
		return nil, err
	}

	return outputIDs, nil
}

func (m *Manager) UnspentOutputs(options ...IterateOption) (Outputs, error) {
	var outputs Outputs
	consumerFunc := func(output *Output) bool {
		outputs = append(outputs, output)

		return true
	}

	if err := m.ForEachUnspentOutput(consumerFunc, options...); err != nil {
		return nil, err
	}

	return outputs, nil
}

func (m *Manager) SpentOutputs(options ...IterateOption) (Spents, error) {
	var spents Spents
	consumerFunc := func(spent *Spent) bool {
		spents = append(spents, spent)

		return true
	}

	if err := m.ForEachSpentOutput(consumerFunc, options...); err != nil {
		return nil, err
	}

	return spents, nil
}

// ComputeLedgerBalance sums up the amounts of all unspent outputs.
func (m *Manager) ComputeLedgerBalance(options ...IterateOption) (balance uint64, count int, err error) {
	balance = 0
	count = 0

	var overflow bool
	consumerFunc := func(output *Output) bool {
		count++
		if balance+output.Amount() < balance {
			overflow = true
			return false
		}
		balance += output.Amount()

		return true
	}

	if err := m.ForEachUnspentOutput(consumerFunc, options...); err != nil {
		return 0, 0, err
	}
	if overflow {
		return 0, 0, ErrBalanceOverflow
	}

	return balance, count, nil
}
