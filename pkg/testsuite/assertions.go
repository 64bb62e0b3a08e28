package testsuite

import (
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/tangle-core/pkg/model"
)

// AssertBlockState checks the confirmation state of the blocks with the given aliases.
func (t *TestSuite) AssertBlockState(confirmationIndex model.MilestoneIndex, state model.InclusionState, conflict model.ConflictReason, aliases ...string) {
	for _, alias := range aliases {
		metadata, exists, err := t.Tangle.Metadata(t.BlockID(alias))
		require.NoError(t.Testing, err)
		require.Truef(t.Testing, exists, "metadata of block %s not found", alias)

		require.Truef(t.Testing, metadata.IsConfirmed(), "block %s not confirmed", alias)
		require.Equalf(t.Testing, confirmationIndex, metadata.ConfirmationIndex(), "confirmation index of block %s", alias)
		require.Equalf(t.Testing, state, metadata.InclusionState(), "inclusion state of block %s", alias)
		require.Equalf(t.Testing, conflict, metadata.Conflict(), "conflict of block %s", alias)
	}
}

// AssertBlocksIncluded checks that the blocks were confirmed with an applied transaction.
func (t *TestSuite) AssertBlocksIncluded(confirmationIndex model.MilestoneIndex, aliases ...string) {
	t.AssertBlockState(confirmationIndex, model.InclusionStateIncluded, model.ConflictNone, aliases...)
}

// AssertBlocksUnconfirmed checks that the blocks exist and are not confirmed.
func (t *TestSuite) AssertBlocksUnconfirmed(aliases ...string) {
	for _, alias := range aliases {
		metadata, exists, err := t.Tangle.Metadata(t.BlockID(alias))
		require.NoError(t.Testing, err)
		require.Truef(t.Testing, exists, "metadata of block %s not found", alias)
		require.Falsef(t.Testing, metadata.IsConfirmed(), "block %s confirmed", alias)
	}
}

// AssertBlocksExist checks whether the blocks are stored in the tangle.
func (t *TestSuite) AssertBlocksExist(expected bool, aliases ...string) {
	for _, alias := range aliases {
		exists, err := t.Tangle.BlockExists(t.BlockID(alias))
		require.NoError(t.Testing, err)
		require.Equalf(t.Testing, expected, exists, "existence of block %s", alias)
	}
}

// AssertIndices checks the confirmed milestone index of the tangle and the ledger and the pruning index.
func (t *TestSuite) AssertIndices(confirmedIndex model.MilestoneIndex, pruningIndex model.MilestoneIndex) {
	require.Equal(t.Testing, confirmedIndex, t.Tangle.ConfirmedMilestoneIndex(), "confirmed milestone index")
	require.Equal(t.Testing, pruningIndex, t.Tangle.PruningIndex(), "pruning index")

	ledgerIndex, err := t.Ledger.ReadLedgerIndex()
	require.NoError(t.Testing, err)
	require.Equal(t.Testing, confirmedIndex, ledgerIndex, "ledger index")
}

// AssertBalance checks the balance of the wallet with the given alias.
func (t *TestSuite) AssertBalance(walletAlias string, expected uint64) {
	balance, err := t.Ledger.AddressBalance(t.Address(walletAlias))
	require.NoError(t.Testing, err)
	require.Equalf(t.Testing, expected, balance, "balance of %s", walletAlias)
}

// AssertOutputsUnspent checks the spent status of the outputs with the given aliases.
func (t *TestSuite) AssertOutputsUnspent(expected bool, aliases ...string) {
	for _, alias := range aliases {
		unspent, err := t.Ledger.IsOutputIDUnspent(t.OutputID(alias))
		require.NoError(t.Testing, err)
		require.Equalf(t.Testing, expected, unspent, "unspent status of output %s", alias)
	}
}

// AssertLedgerState checks that the ledger still holds the whole token supply.
func (t *TestSuite) AssertLedgerState() {
	require.NoError(t.Testing, t.Ledger.CheckLedgerState(t.TokenSupply()))
}
