package tangle

import "github.com/iotaledger/hive.go/ierrors"

var (
	ErrBlockNotFound     = ierrors.New("block not found")
	ErrMilestoneNotFound = ierrors.New("milestone not found")

	// ErrIllegalMetadataTransition is returned if a metadata update would break the
	// Pending -> Solid -> Confirmed state machine. The caller must treat it as fatal.
	ErrIllegalMetadataTransition = ierrors.New("illegal block metadata transition")

	// ErrIndexInvariantViolated is returned if an index update would break pruning <= confirmed <= latest.
	ErrIndexInvariantViolated = ierrors.New("milestone index invariant violated")

	ErrMilestoneConflict = ierrors.New("a different milestone is already stored at this index")
)
