package utxo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo/tpkg"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/utils"
)

func TestUTXOComputeBalance(t *testing.T) {
	manager := utxo.New(mapdb.NewMapDB())

	initialOutput := tpkg.RandLedgerStateOutputOnAddressWithAmount(utils.RandAddress(), 2_134_656_365)
	require.NoError(t, manager.AddGenesisUnspentOutput(initialOutput))
	require.NoError(t, manager.AddGenesisUnspentOutput(tpkg.RandLedgerStateOutputOnAddressWithAmount(utils.RandAddress(), 56_549_524)))
	require.NoError(t, manager.AddGenesisUnspentOutput(tpkg.RandLedgerStateOutputOnAddressWithAmount(utils.RandAddress(), 25_548_858)))
	require.NoError(t, manager.AddGenesisUnspentOutput(tpkg.RandLedgerStateOutputOnAddressWithAmount(utils.RandAddress(), 545_699_656)))
	require.NoError(t, manager.AddGenesisUnspentOutput(tpkg.RandLedgerStateOutputOnAddressWithAmount(utils.RandAddress(), 626_659_696)))

	index := model.MilestoneIndex(1)

	outputs := utxo.Outputs{
		tpkg.RandLedgerStateOutputOnAddressWithAmount(utils.RandAddress(), 2_134_656_365),
	}

	spents := utxo.Spents{
		tpkg.RandLedgerStateSpentWithOutput(initialOutput, index),
	}

	require.NoError(t, manager.ApplyDiffWithoutLocking(&utxo.MilestoneDiff{Index: index, Outputs: outputs, Spents: spents}))

	spent, err := manager.SpentOutputs()
	require.NoError(t, err)
	require.Equal(t, 1, len(spent))

	unspent, err := manager.UnspentOutputs()
	require.NoError(t, err)
	require.Equal(t, 5, len(unspent))

	balance, count, err := manager.ComputeLedgerBalance()
	require.NoError(t, err)
	require.Equal(t, 5, count)
	require.Equal(t, uint64(2_134_656_365+56_549_524+25_548_858+545_699_656+626_659_696), balance)
}

func TestUTXOIteration(t *testing.T) {
	manager := utxo.New(mapdb.NewMapDB())

	outputs := make(utxo.Outputs, 0, 16)
	for range 16 {
		outputs = append(outputs, tpkg.RandLedgerStateOutput())
	}

	index := model.MilestoneIndex(1)

	spents := utxo.Spents{
		tpkg.RandLedgerStateSpentWithOutput(outputs[3], index),
		tpkg.RandLedgerStateSpentWithOutput(outputs[2], index),
		tpkg.RandLedgerStateSpentWithOutput(outputs[9], index),
	}

	require.NoError(t, manager.ApplyDiffWithoutLocking(&utxo.MilestoneDiff{Index: index, Outputs: outputs, Spents: spents}))

	// Prepare values to check
	outputByID := make(map[string]struct{})
	unspentByID := make(map[string]struct{})
	spentByID := make(map[string]struct{})

	for _, output := range outputs {
		outputByID[output.MapKey()] = struct{}{}
		unspentByID[output.MapKey()] = struct{}{}
	}
	for _, spent := range spents {
		spentByID[spent.MapKey()] = struct{}{}
		delete(unspentByID, spent.MapKey())
	}

	// Test iteration without filters
	require.NoError(t, manager.ForEachOutput(func(output *utxo.Output) bool {
		_, has := outputByID[output.MapKey()]
		require.True(t, has)
		delete(outputByID, output.MapKey())

		return true
	}))
	require.Empty(t, outputByID)

	require.NoError(t, manager.ForEachUnspentOutput(func(output *utxo.Output) bool {
		_, has := unspentByID[output.MapKey()]
		require.True(t, has)
		delete(unspentByID, output.MapKey())

		return true
	}))
	require.Empty(t, unspentByID)

	require.NoError(t, manager.ForEachSpentOutput(func(spent *utxo.Spent) bool {
		_, has := spentByID[spent.MapKey()]
		require.True(t, has)
		delete(spentByID, spent.MapKey())

		return true
	}))
	require.Empty(t, spentByID)

	limited, err := manager.UnspentOutputsIDs(utxo.MaxResultCount(5))
	require.NoError(t, err)
	require.Len(t, limited, 5)

	var balances int
	require.NoError(t, manager.ForEachBalance(func(_ model.Address, balance uint64) bool {
		require.NotZero(t, balance)
		balances++

		return true
	}))
	require.Equal(t, 13, balances)
}
