package milestone

import "github.com/iotaledger/hive.go/ierrors"

var (
	ErrInvalidMilestone   = ierrors.New("invalid milestone")
	ErrTooFewSignatures   = ierrors.New("too few valid milestone signatures")
	ErrUnknownSigner      = ierrors.New("milestone signed by a key that is not valid for its index")
	ErrInvalidSignature   = ierrors.New("invalid milestone signature")
	ErrDuplicateSigner    = ierrors.New("milestone signed twice by the same key")
	ErrInvalidKeyRange    = ierrors.New("invalid public key range")
	ErrNoMilestonePayload = ierrors.New("block does not carry a milestone payload")
)
