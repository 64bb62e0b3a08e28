package retainer

import (
	"gorm.io/gorm"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/storage/sqlite"
	"github.com/iotaledger/tangle-core/pkg/whiteflag"
)

var (
	ErrEntryNotFound = ierrors.New("entry not found")

	dbTables = []interface{}{
		&TransactionMetadata{},
	}
)

// Retainer records the inclusion state of every confirmed transaction.
type Retainer struct {
	logger     log.Logger
	dbExecFunc sqlite.ExecFunc
}

// New creates the tables if needed.
func New(logger log.Logger, dbExecFunc sqlite.ExecFunc) (*Retainer, error) {
	if err := dbExecFunc(func(db *gorm.DB) error {
		return db.AutoMigrate(dbTables...)
	}); err != nil {
		return nil, ierrors.Wrap(err, "failed to auto migrate tables")
	}

	return &Retainer{
		logger:     logger,
		dbExecFunc: dbExecFunc,
	}, nil
}

// StoreMilestoneResults stores the transactions referenced by a confirmed milestone in one database transaction.
func (r *Retainer) StoreMilestoneResults(index model.MilestoneIndex, results []*whiteflag.BlockResult) error {
	if err := r.dbExecFunc(func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			for _, result := range results {
				if result.InclusionState == model.InclusionStateNoTransaction {
					continue
				}

				if err := updateTransactionMetadata(tx, &TransactionMetadata{
					TransactionID:  lo.CopySlice(result.TransactionID[:]),
					BlockID:        lo.CopySlice(result.BlockID[:]),
					MilestoneIndex: uint32(index),
					InclusionState: byte(result.InclusionState),
					ConflictReason: byte(result.Conflict),
				}); err != nil {
					return err
				}
			}

			return nil
		})
	}); err != nil {
		return ierrors.Wrapf(err, "failed to store transaction metadata of milestone %d", index)
	}

	return nil
}

// updateTransactionMetadata keeps an included transaction once it was recorded. A transaction that was
// attached several times is otherwise described by its latest confirmation.
func updateTransactionMetadata(dbTx *gorm.DB, newTxMeta *TransactionMetadata) error {
	txMeta := &TransactionMetadata{}
	if err := dbTx.First(txMeta, &TransactionMetadata{TransactionID: newTxMeta.TransactionID}).Error; err == nil {
		if txMeta.Included() {
			return nil
		}
	} else if !ierrors.Is(err, gorm.ErrRecordNotFound) {
		return ierrors.Wrapf(err, "failed to read transaction metadata of %x", newTxMeta.TransactionID)
	}

	return dbTx.Save(newTxMeta).Error
}

// TransactionMetadata returns the recorded inclusion state of the transaction.
func (r *Retainer) TransactionMetadata(transactionID model.TransactionID) (*TransactionMetadata, error) {
	txMeta := &TransactionMetadata{}
	if err := r.dbExecFunc(func(db *gorm.DB) error {
		return db.First(txMeta, &TransactionMetadata{TransactionID: transactionID[:]}).Error
	}); err != nil {
		if ierrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ierrors.Wrapf(ErrEntryNotFound, "transaction %s", transactionID)
		}

		return nil, ierrors.Wrap(err, "failed to query transaction metadata")
	}

	return txMeta, nil
}

// PruneMilestoneIndex deletes all transactions confirmed at or below the given index.
func (r *Retainer) PruneMilestoneIndex(index model.MilestoneIndex) error {
	if err := r.dbExecFunc(func(db *gorm.DB) error {
		return db.Where("milestone_index <= ?", uint32(index)).Delete(&TransactionMetadata{}).Error
	}); err != nil {
		return ierrors.Wrapf(err, "failed to prune transaction metadata up to milestone %d", index)
	}

	return nil
}
