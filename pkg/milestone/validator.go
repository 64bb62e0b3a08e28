package milestone

import (
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// Validator checks that a milestone was issued by the coordinator.
type Validator struct {
	keyManager *KeyManager

	optsMinThreshold int
}

func NewValidator(keyManager *KeyManager, opts ...options.Option[Validator]) *Validator {
	return options.Apply(&Validator{
		keyManager:       keyManager,
		optsMinThreshold: 1,
	}, opts)
}

// WithMinThreshold sets the number of distinct valid signatures a milestone needs.
func WithMinThreshold(minThreshold int) options.Option[Validator] {
	return func(v *Validator) {
		v.optsMinThreshold = minThreshold
	}
}

func (v *Validator) MinThreshold() int {
	return v.optsMinThreshold
}

// Validate verifies the signatures of the milestone against the keys valid for its index.
func (v *Validator) Validate(milestone *model.Milestone) error {
	if milestone == nil {
		return ierrors.Wrap(ErrInvalidMilestone, "no milestone given")
	}
	if milestone.Index == 0 {
		return ierrors.Wrap(ErrInvalidMilestone, "milestone index 0 is reserved for genesis")
	}
	if len(milestone.Signatures) > model.MaxMilestoneSignatures {
		return ierrors.Wrapf(ErrInvalidMilestone, "%d signatures", len(milestone.Signatures))
	}
	if len(milestone.Signatures) < v.optsMinThreshold {
		return ierrors.Wrapf(ErrTooFewSignatures, "milestone %d has %d signatures, %d required", milestone.Index, len(milestone.Signatures), v.optsMinThreshold)
	}

	essence, err := milestone.Essence()
	if err != nil {
		return ierrors.Join(ErrInvalidMilestone, err)
	}

	validKeys := v.keyManager.PublicKeysSetForMilestoneIndex(milestone.Index)
	seenKeys := make(map[ed25519.PublicKey]struct{}, len(milestone.Signatures))

	for _, signature := range milestone.Signatures {
		if signature == nil {
			return ierrors.Wrapf(ErrInvalidMilestone, "milestone %d contains an empty signature", milestone.Index)
		}
		if _, seen := seenKeys[signature.PublicKey]; seen {
			return ierrors.Wrapf(ErrDuplicateSigner, "milestone %d, key %x", milestone.Index, signature.PublicKey[:])
		}
		seenKeys[signature.PublicKey] = struct{}{}

		if _, valid := validKeys[signature.PublicKey]; !valid {
			return ierrors.Wrapf(ErrUnknownSigner, "milestone %d, key %x", milestone.Index, signature.PublicKey[:])
		}
		if !signature.PublicKey.VerifySignature(essence, signature.Signature) {
			return ierrors.Wrapf(ErrInvalidSignature, "milestone %d, key %x", milestone.Index, signature.PublicKey[:])
		}
	}

	return nil
}

// ValidateBlock returns the milestone carried by the block if the block is a valid milestone block.
// The milestone has to approve exactly the parents of its block.
func (v *Validator) ValidateBlock(block *model.Block) (*model.Milestone, error) {
	milestone, isMilestone := block.Milestone()
	if !isMilestone {
		return nil, ierrors.Wrapf(ErrNoMilestonePayload, "block %s", block.ID())
	}

	blockParents := block.Parents()
	if len(blockParents) != len(milestone.Parents) {
		return nil, ierrors.Wrapf(ErrInvalidMilestone, "milestone %d approves %d parents, its block %d", milestone.Index, len(milestone.Parents), len(blockParents))
	}
	for i, parent := range milestone.Parents {
		if parent != blockParents[i] {
			return nil, ierrors.Wrapf(ErrInvalidMilestone, "milestone %d parent %s differs from block parent %s", milestone.Index, parent, blockParents[i])
		}
	}

	if err := v.Validate(milestone); err != nil {
		return nil, err
	}

	return milestone, nil
}
