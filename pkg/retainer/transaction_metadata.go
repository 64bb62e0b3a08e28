package retainer

import (
	"fmt"

	"github.com/iotaledger/iota.go/v4/hexutil"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// TransactionMetadata is the row kept per confirmed transaction.
type TransactionMetadata struct {
	TransactionID  []byte `gorm:"primaryKey;unique;notnull"`
	BlockID        []byte `gorm:"notnull"`
	MilestoneIndex uint32 `gorm:"notnull;index:transaction_metadata_milestone_indexes"`
	InclusionState byte   `gorm:"notnull"`
	ConflictReason byte   `gorm:"notnull"`
}

func (m *TransactionMetadata) String() string {
	return fmt.Sprintf("tx metadata => TxID: %s, BlockID: %s, MilestoneIndex: %d, InclusionState: %s, Conflict: %s",
		hexutil.EncodeHex(m.TransactionID), hexutil.EncodeHex(m.BlockID), m.MilestoneIndex,
		model.InclusionState(m.InclusionState), model.ConflictReason(m.ConflictReason))
}

func (m *TransactionMetadata) Included() bool {
	return model.InclusionState(m.InclusionState) == model.InclusionStateIncluded
}
