package milestone_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/iota.go/v4/hexutil"
	"github.com/iotaledger/tangle-core/pkg/milestone"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/utils"
)

func newMilestone(index model.MilestoneIndex, keys ...ed25519.PrivateKey) *model.Milestone {
	ms := &model.Milestone{
		Index:     index,
		Timestamp: uint32(time.Now().Unix()),
		Parents:   model.BlockIDs{utils.RandBlockID()}.RemoveDupsAndSort(),
	}
	if err := ms.Sign(keys...); err != nil {
		panic(err)
	}

	return ms
}

func TestKeyManager_PublicKeysForMilestoneIndex(t *testing.T) {
	keyA := utils.RandPrivateKey()
	keyB := utils.RandPrivateKey()
	keyC := utils.RandPrivateKey()

	km := milestone.NewKeyManager()
	require.NoError(t, km.AddKeyRange(keyB.Public(), 10, 20))
	require.NoError(t, km.AddKeyRange(keyA.Public(), 0, 0))
	require.NoError(t, km.AddKeyRange(keyC.Public(), 15, 30))
	require.True(t, ierrors.Is(km.AddKeyRange(keyC.Public(), 5, 4), milestone.ErrInvalidKeyRange))

	// ranges are kept ordered by their start
	ranges := km.KeyRanges()
	require.Len(t, ranges, 3)
	require.Equal(t, keyA.Public(), ranges[0].PublicKey)

	require.ElementsMatch(t, []ed25519.PublicKey{keyA.Public()}, km.PublicKeysForMilestoneIndex(5))
	require.ElementsMatch(t, []ed25519.PublicKey{keyA.Public(), keyB.Public()}, km.PublicKeysForMilestoneIndex(10))
	require.ElementsMatch(t, []ed25519.PublicKey{keyA.Public(), keyB.Public(), keyC.Public()}, km.PublicKeysForMilestoneIndex(17))
	require.ElementsMatch(t, []ed25519.PublicKey{keyA.Public(), keyC.Public()}, km.PublicKeysForMilestoneIndex(21))
	require.ElementsMatch(t, []ed25519.PublicKey{keyA.Public()}, km.PublicKeysForMilestoneIndex(31))
}

func TestKeyManager_AddHexKeyRange(t *testing.T) {
	key := utils.RandPrivateKey()
	publicKey := key.Public()

	km := milestone.NewKeyManager()
	require.NoError(t, km.AddHexKeyRange(hexutil.EncodeHex(publicKey[:]), 1, 1))
	require.Contains(t, km.PublicKeysSetForMilestoneIndex(1000), publicKey)

	require.True(t, ierrors.Is(km.AddHexKeyRange("0x1234", 1, 1), milestone.ErrInvalidKeyRange))
	require.True(t, ierrors.Is(km.AddHexKeyRange("not hex", 1, 1), milestone.ErrInvalidKeyRange))
}

func TestValidator_Validate(t *testing.T) {
	keyA := utils.RandPrivateKey()
	keyB := utils.RandPrivateKey()
	keyC := utils.RandPrivateKey()
	expired := utils.RandPrivateKey()

	km := milestone.NewKeyManager()
	require.NoError(t, km.AddKeyRange(keyA.Public(), 1, 1))
	require.NoError(t, km.AddKeyRange(keyB.Public(), 1, 1))
	require.NoError(t, km.AddKeyRange(keyC.Public(), 1, 1))
	require.NoError(t, km.AddKeyRange(expired.Public(), 1, 3))

	validator := milestone.NewValidator(km, milestone.WithMinThreshold(2))
	require.Equal(t, 2, validator.MinThreshold())

	require.NoError(t, validator.Validate(newMilestone(5, keyA, keyB)))
	require.NoError(t, validator.Validate(newMilestone(5, keyC, keyA, keyB)))
	require.NoError(t, validator.Validate(newMilestone(2, keyA, expired)))

	require.True(t, ierrors.Is(validator.Validate(newMilestone(5, keyA)), milestone.ErrTooFewSignatures))
	require.True(t, ierrors.Is(validator.Validate(newMilestone(5)), milestone.ErrTooFewSignatures))
	require.True(t, ierrors.Is(validator.Validate(newMilestone(5, keyA, expired)), milestone.ErrUnknownSigner))
	require.True(t, ierrors.Is(validator.Validate(newMilestone(5, keyA, utils.RandPrivateKey())), milestone.ErrUnknownSigner))
	require.True(t, ierrors.Is(validator.Validate(newMilestone(5, keyA, keyA)), milestone.ErrDuplicateSigner))
	require.True(t, ierrors.Is(validator.Validate(newMilestone(0, keyA, keyB)), milestone.ErrInvalidMilestone))
	require.True(t, ierrors.Is(validator.Validate(nil), milestone.ErrInvalidMilestone))

	// a signature over a different essence does not verify
	tampered := newMilestone(5, keyA, keyB)
	tampered.Timestamp++
	require.True(t, ierrors.Is(validator.Validate(tampered), milestone.ErrInvalidSignature))
}

func TestValidator_ValidateBlock(t *testing.T) {
	key := utils.RandPrivateKey()

	km := milestone.NewKeyManager()
	require.NoError(t, km.AddKeyRange(key.Public(), 1, 1))
	validator := milestone.NewValidator(km)

	ms := newMilestone(1, key)
	block := lo.PanicOnErr(model.NewBlock(ms.Parents, ms, 0))

	validated, err := validator.ValidateBlock(block)
	require.NoError(t, err)
	require.Equal(t, ms.ID(), validated.ID())

	otherParents := lo.PanicOnErr(model.NewBlock(model.BlockIDs{utils.RandBlockID()}, ms, 0))
	_, err = validator.ValidateBlock(otherParents)
	require.True(t, ierrors.Is(err, milestone.ErrInvalidMilestone))

	plain := lo.PanicOnErr(model.NewBlock(model.BlockIDs{model.EmptyBlockID}, nil, 0))
	_, err = validator.ValidateBlock(plain)
	require.True(t, ierrors.Is(err, milestone.ErrNoMilestonePayload))
}
