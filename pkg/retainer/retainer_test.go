package retainer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/retainer"
	"github.com/iotaledger/tangle-core/pkg/storage/sqlite"
	"github.com/iotaledger/tangle-core/pkg/utils"
	"github.com/iotaledger/tangle-core/pkg/whiteflag"
)

func newTestRetainer(t *testing.T) *retainer.Retainer {
	logger := log.NewLogger().NewChildLogger(t.Name())

	database, err := sqlite.New(logger, t.TempDir(), "retainer.db", func(err error) {
		require.NoError(t, err)
	})
	require.NoError(t, err)
	t.Cleanup(database.Shutdown)

	txRetainer, err := retainer.New(logger, database.ExecDBFunc())
	require.NoError(t, err)

	return txRetainer
}

func TestRetainer_StoreAndQuery(t *testing.T) {
	txRetainer := newTestRetainer(t)

	included := &whiteflag.BlockResult{
		BlockID:        utils.RandBlockID(),
		InclusionState: model.InclusionStateIncluded,
		TransactionID:  utils.RandTransactionID(),
	}
	conflicting := &whiteflag.BlockResult{
		BlockID:        utils.RandBlockID(),
		InclusionState: model.InclusionStateConflicting,
		Conflict:       model.ConflictInputAlreadySpent,
		TransactionID:  utils.RandTransactionID(),
	}
	noTransaction := &whiteflag.BlockResult{
		BlockID:        utils.RandBlockID(),
		InclusionState: model.InclusionStateNoTransaction,
	}

	require.NoError(t, txRetainer.StoreMilestoneResults(3, []*whiteflag.BlockResult{included, conflicting, noTransaction}))

	txMeta, err := txRetainer.TransactionMetadata(included.TransactionID)
	require.NoError(t, err)
	require.True(t, txMeta.Included())
	require.Equal(t, included.BlockID[:], txMeta.BlockID)
	require.Equal(t, uint32(3), txMeta.MilestoneIndex)
	require.Contains(t, txMeta.String(), included.TransactionID.ToHex())
	require.Contains(t, txMeta.String(), included.BlockID.ToHex())

	txMeta, err = txRetainer.TransactionMetadata(conflicting.TransactionID)
	require.NoError(t, err)
	require.False(t, txMeta.Included())
	require.Equal(t, model.ConflictInputAlreadySpent, model.ConflictReason(txMeta.ConflictReason))

	_, err = txRetainer.TransactionMetadata(model.EmptyTransactionID)
	require.True(t, ierrors.Is(err, retainer.ErrEntryNotFound))
}

func TestRetainer_IncludedAttachmentWins(t *testing.T) {
	txRetainer := newTestRetainer(t)

	transactionID := utils.RandTransactionID()
	firstAttachment := utils.RandBlockID()

	require.NoError(t, txRetainer.StoreMilestoneResults(1, []*whiteflag.BlockResult{{
		BlockID:        firstAttachment,
		InclusionState: model.InclusionStateIncluded,
		TransactionID:  transactionID,
	}}))

	// a reattachment confirmed later conflicts with the first one
	require.NoError(t, txRetainer.StoreMilestoneResults(2, []*whiteflag.BlockResult{{
		BlockID:        utils.RandBlockID(),
		InclusionState: model.InclusionStateConflicting,
		Conflict:       model.ConflictInputAlreadySpent,
		TransactionID:  transactionID,
	}}))

	txMeta, err := txRetainer.TransactionMetadata(transactionID)
	require.NoError(t, err)
	require.True(t, txMeta.Included())
	require.Equal(t, firstAttachment[:], txMeta.BlockID)
	require.Equal(t, uint32(1), txMeta.MilestoneIndex)
}

func TestRetainer_PruneMilestoneIndex(t *testing.T) {
	txRetainer := newTestRetainer(t)

	transactionIDs := make([]model.TransactionID, 0)
	for index := model.MilestoneIndex(1); index <= 4; index++ {
		transactionID := utils.RandTransactionID()
		transactionIDs = append(transactionIDs, transactionID)

		require.NoError(t, txRetainer.StoreMilestoneResults(index, []*whiteflag.BlockResult{{
			BlockID:        utils.RandBlockID(),
			InclusionState: model.InclusionStateIncluded,
			TransactionID:  transactionID,
		}}))
	}

	require.NoError(t, txRetainer.PruneMilestoneIndex(2))

	for i, transactionID := range transactionIDs {
		_, err := txRetainer.TransactionMetadata(transactionID)
		if i < 2 {
			require.True(t, ierrors.Is(err, retainer.ErrEntryNotFound))
		} else {
			require.NoError(t, err)
		}
	}
}
