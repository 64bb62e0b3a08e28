package utxo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo/tpkg"
	"github.com/iotaledger/tangle-core/pkg/model"
)

func TestMilestoneDiffSerialization(t *testing.T) {
	manager := utxo.New(mapdb.NewMapDB())

	genesis := tpkg.RandLedgerStateOutput()
	require.NoError(t, manager.AddGenesisUnspentOutput(genesis))

	diff := &utxo.MilestoneDiff{
		Index: 1,
		Outputs: utxo.Outputs{
			tpkg.RandLedgerStateOutputBookedAt(1, genesis.Address(), genesis.Amount()),
			tpkg.RandLedgerStateOutput(),
		},
		Spents: utxo.Spents{
			tpkg.RandLedgerStateSpentWithOutput(genesis, 1),
		},
	}
	require.NoError(t, manager.ApplyDiff(diff))

	loaded, err := manager.MilestoneDiff(1)
	require.NoError(t, err)
	require.Equal(t, model.MilestoneIndex(1), loaded.Index)
	require.Nil(t, loaded.TreasuryMutation)
	tpkg.EqualOutputs(t, diff.Outputs, loaded.Outputs)
	tpkg.EqualSpents(t, diff.Spents, loaded.Spents)

	// the stored order is lexical, so the checksum does not depend on the order of the input
	expectedSum, err := diff.SHA256Sum()
	require.NoError(t, err)
	loadedSum, err := loaded.SHA256Sum()
	require.NoError(t, err)
	require.Equal(t, expectedSum, loadedSum)

	// the diff key is big endian so that diffs iterate in index order
	require.Equal(t, []byte{utxo.StoreKeyPrefixMilestoneDiffs, 0, 0, 0, 1}, loaded.KVStorableKey())
}

func TestOutputAndSpentStorage(t *testing.T) {
	manager := utxo.New(mapdb.NewMapDB())

	output := tpkg.RandLedgerStateOutputBookedAt(1, tpkg.RandLedgerStateOutput().Address(), 42)
	require.NoError(t, manager.ApplyDiff(&utxo.MilestoneDiff{Index: 1, Outputs: utxo.Outputs{output}}))

	loaded, err := manager.ReadOutputByOutputID(output.OutputID())
	require.NoError(t, err)
	tpkg.EqualOutput(t, output, loaded)

	spent := tpkg.RandLedgerStateSpentWithOutput(output, 2)
	require.NoError(t, manager.ApplyDiff(&utxo.MilestoneDiff{Index: 2, Spents: utxo.Spents{spent}}))

	manager.ReadLockLedger()
	loadedSpent, err := manager.ReadSpentForOutputIDWithoutLocking(output.OutputID())
	manager.ReadUnlockLedger()
	require.NoError(t, err)
	tpkg.EqualSpent(t, spent, loadedSpent)

	unspent, err := manager.IsOutputIDUnspent(output.OutputID())
	require.NoError(t, err)
	require.False(t, unspent)
}
