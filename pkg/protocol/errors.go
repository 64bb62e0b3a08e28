package protocol

import "github.com/iotaledger/hive.go/ierrors"

var (
	// ErrConfirmationDeferred signals that the milestone can not be confirmed yet. Nothing was changed and
	// the confirmation can be attempted again later.
	ErrConfirmationDeferred = ierrors.New("confirmation deferred")
	// ErrFatal signals that the ledger diverged from the network or the database is broken.
	// The node stops confirming milestones until it is resynchronized.
	ErrFatal = ierrors.New("fatal confirmation error")

	ErrMilestoneMissing              = ierrors.New("milestone is missing")
	ErrPreviousMilestoneNotConfirmed = ierrors.New("previous milestone is not confirmed")
	ErrMilestoneAlreadyConfirmed     = ierrors.New("milestone is already confirmed")
)

// IsDeferral reports whether the error only postpones the confirmation.
func IsDeferral(err error) bool {
	return ierrors.Is(err, ErrConfirmationDeferred)
}

// IsFatal reports whether the error marked the node as corrupted.
func IsFatal(err error) bool {
	return ierrors.Is(err, ErrFatal)
}

func deferral(err error) error {
	return ierrors.Join(ErrConfirmationDeferred, err)
}
