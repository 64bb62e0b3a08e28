package milestone

import (
	"sort"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/iota.go/v4/hexutil"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// KeyRange is a public key and the milestone indexes it may sign.
// A range with StartIndex == EndIndex never expires.
type KeyRange struct {
	PublicKey  ed25519.PublicKey
	StartIndex model.MilestoneIndex
	EndIndex   model.MilestoneIndex
}

func (r *KeyRange) validFor(index model.MilestoneIndex) bool {
	return r.StartIndex <= index && (r.EndIndex >= index || r.StartIndex == r.EndIndex)
}

// KeyManager holds the coordinator keys ordered by the start of their validity.
type KeyManager struct {
	keyRanges []*KeyRange
	mutex     syncutils.RWMutex
}

func NewKeyManager() *KeyManager {
	return &KeyManager{
		keyRanges: make([]*KeyRange, 0),
	}
}

// AddKeyRange registers a public key for the given range of milestone indexes.
func (k *KeyManager) AddKeyRange(publicKey ed25519.PublicKey, startIndex model.MilestoneIndex, endIndex model.MilestoneIndex) error {
	if endIndex < startIndex {
		return ierrors.Wrapf(ErrInvalidKeyRange, "end index %d is lower than start index %d", endIndex, startIndex)
	}

	k.mutex.Lock()
	defer k.mutex.Unlock()

	k.keyRanges = append(k.keyRanges, &KeyRange{
		PublicKey:  publicKey,
		StartIndex: startIndex,
		EndIndex:   endIndex,
	})

	sort.SliceStable(k.keyRanges, func(i, j int) bool {
		return k.keyRanges[i].StartIndex < k.keyRanges[j].StartIndex
	})

	return nil
}

// AddHexKeyRange registers a hex encoded public key, as found in the node configuration.
func (k *KeyManager) AddHexKeyRange(publicKeyHex string, startIndex model.MilestoneIndex, endIndex model.MilestoneIndex) error {
	publicKeyBytes, err := hexutil.DecodeHex(publicKeyHex)
	if err != nil {
		return ierrors.Wrapf(ErrInvalidKeyRange, "can not decode public key %s: %s", publicKeyHex, err)
	}
	if len(publicKeyBytes) != ed25519.PublicKeySize {
		return ierrors.Wrapf(ErrInvalidKeyRange, "public key %s has length %d", publicKeyHex, len(publicKeyBytes))
	}

	publicKey, _, err := ed25519.PublicKeyFromBytes(publicKeyBytes)
	if err != nil {
		return ierrors.Wrapf(ErrInvalidKeyRange, "can not parse public key %s: %s", publicKeyHex, err)
	}

	return k.AddKeyRange(publicKey, startIndex, endIndex)
}

// PublicKeysForMilestoneIndex returns the keys that may sign the milestone with the given index.
func (k *KeyManager) PublicKeysForMilestoneIndex(index model.MilestoneIndex) []ed25519.PublicKey {
	k.mutex.RLock()
	defer k.mutex.RUnlock()

	publicKeys := make([]ed25519.PublicKey, 0)
	for _, keyRange := range k.keyRanges {
		if keyRange.StartIndex > index {
			// the ranges are sorted, no later range can be valid
			break
		}
		if keyRange.validFor(index) {
			publicKeys = append(publicKeys, keyRange.PublicKey)
		}
	}

	return publicKeys
}

// PublicKeysSetForMilestoneIndex returns the valid keys of the given index as a set.
func (k *KeyManager) PublicKeysSetForMilestoneIndex(index model.MilestoneIndex) map[ed25519.PublicKey]struct{} {
	publicKeysSet := make(map[ed25519.PublicKey]struct{})
	for _, publicKey := range k.PublicKeysForMilestoneIndex(index) {
		publicKeysSet[publicKey] = struct{}{}
	}

	return publicKeysSet
}

func (k *KeyManager) KeyRanges() []*KeyRange {
	k.mutex.RLock()
	defer k.mutex.RUnlock()

	keyRanges := make([]*KeyRange, len(k.keyRanges))
	copy(keyRanges, k.keyRanges)

	return keyRanges
}
