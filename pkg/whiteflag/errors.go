package whiteflag

import "github.com/iotaledger/hive.go/ierrors"

var (
	// ErrMissingBlock is returned if the past cone of a milestone references a block that is not stored.
	ErrMissingBlock = ierrors.New("block missing in past cone")
	// ErrUnsolidBlock is returned if the past cone of a milestone contains a block that is not solid yet.
	ErrUnsolidBlock = ierrors.New("unsolid block in past cone")

	ErrAppliedMerkleRootMismatch   = ierrors.New("applied merkle root does not match the milestone")
	ErrInclusionMerkleRootMismatch = ierrors.New("inclusion merkle root does not match the milestone")
	ErrSupplyOverflow              = ierrors.New("token supply overflow")
	ErrTreasuryMismatch            = ierrors.New("receipt does not conserve the treasury")
)
