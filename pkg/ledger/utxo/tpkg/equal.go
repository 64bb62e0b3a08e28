package tpkg

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
)

func EqualOutput(t *testing.T, expected *utxo.Output, actual *utxo.Output) {
	t.Helper()

	require.Equal(t, expected.OutputID(), actual.OutputID())
	require.Equal(t, expected.BlockID(), actual.BlockID())
	require.Equal(t, expected.MilestoneIndexBooked(), actual.MilestoneIndexBooked())
	require.Equal(t, expected.MilestoneTimestampBooked(), actual.MilestoneTimestampBooked())
	require.Equal(t, expected.Address(), actual.Address())
	require.Equal(t, expected.Amount(), actual.Amount())
	require.EqualValues(t, expected.Output(), actual.Output())
}

func EqualSpent(t *testing.T, expected *utxo.Spent, actual *utxo.Spent) {
	t.Helper()

	require.Equal(t, expected.OutputID(), actual.OutputID())
	require.Equal(t, expected.TransactionIDSpent(), actual.TransactionIDSpent())
	require.Equal(t, expected.MilestoneIndexSpent(), actual.MilestoneIndexSpent())
	require.Equal(t, expected.MilestoneTimestampSpent(), actual.MilestoneTimestampSpent())
	EqualOutput(t, expected.Output(), actual.Output())
}

func EqualOutputs(t *testing.T, expected utxo.Outputs, actual utxo.Outputs) {
	t.Helper()

	require.Equal(t, len(expected), len(actual))

	// Sort Outputs by output ID.
	sort.Slice(expected, func(i int, j int) bool {
		iOutputID := expected[i].OutputID()
		jOutputID := expected[j].OutputID()

		return bytes.Compare(iOutputID[:], jOutputID[:]) == -1
	})
	sort.Slice(actual, func(i int, j int) bool {
		iOutputID := actual[i].OutputID()
		jOutputID := actual[j].OutputID()

		return bytes.Compare(iOutputID[:], jOutputID[:]) == -1
	})

	for i := range expected {
		EqualOutput(t, expected[i], actual[i])
	}
}

func EqualSpents(t *testing.T, expected utxo.Spents, actual utxo.Spents) {
	t.Helper()

	require.Equal(t, len(expected), len(actual))

	// Sort Spents by output ID.
	sort.Slice(expected, func(i int, j int) bool {
		iOutputID := expected[i].OutputID()
		jOutputID := expected[j].OutputID()

		return bytes.Compare(iOutputID[:], jOutputID[:]) == -1
	})
	sort.Slice(actual, func(i int, j int) bool {
		iOutputID := actual[i].OutputID()
		jOutputID := actual[j].OutputID()

		return bytes.Compare(iOutputID[:], jOutputID[:]) == -1
	})

	for i := range expected {
		EqualSpent(t, expected[i], actual[i])
	}
}
