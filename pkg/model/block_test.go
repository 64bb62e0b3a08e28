package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/tangle-core/pkg/model"
)

func randBlockID(b byte) model.BlockID {
	var id model.BlockID
	for i := range id {
		id[i] = b
	}

	return id
}

func TestBlock_ParentsAreSortedAndDeduplicated(t *testing.T) {
	blk, err := model.NewBlock(model.BlockIDs{randBlockID(3), randBlockID(1), randBlockID(3), randBlockID(2)}, nil, 7)
	require.NoError(t, err)

	require.Equal(t, model.BlockIDs{randBlockID(1), randBlockID(2), randBlockID(3)}, blk.Parents())

	parsed, err := model.BlockFromBytes(blk.Data())
	require.NoError(t, err)
	require.Equal(t, blk.ID(), parsed.ID())
	require.Equal(t, blk.Parents(), parsed.Parents())
	require.Equal(t, uint64(7), parsed.Nonce())
	require.Nil(t, parsed.Payload())
}

func TestBlock_IDDependsOnContent(t *testing.T) {
	a := lo.PanicOnErr(model.NewBlock(model.BlockIDs{model.EmptyBlockID}, nil, 1))
	b := lo.PanicOnErr(model.NewBlock(model.BlockIDs{model.EmptyBlockID}, nil, 2))
	c := lo.PanicOnErr(model.NewBlock(model.BlockIDs{model.EmptyBlockID}, nil, 1))

	require.NotEqual(t, a.ID(), b.ID())
	require.Equal(t, a.ID(), c.ID())
}

func TestBlock_InvalidParents(t *testing.T) {
	_, err := model.NewBlock(model.BlockIDs{}, nil, 0)
	require.True(t, ierrors.Is(err, model.ErrInvalidParentsCount))

	tooMany := make(model.BlockIDs, model.MaxParentsCount+1)
	for i := range tooMany {
		tooMany[i] = randBlockID(byte(i + 1))
	}
	_, err = model.NewBlock(tooMany, nil, 0)
	require.True(t, ierrors.Is(err, model.ErrInvalidParentsCount))
}

func TestBlock_RejectsTrailingBytes(t *testing.T) {
	blk := lo.PanicOnErr(model.NewBlock(model.BlockIDs{model.EmptyBlockID}, nil, 1))

	_, err := model.BlockFromBytes(append(append([]byte{}, blk.Data()...), 0x00))
	require.Error(t, err)
}

func TestBlock_TransactionPayload(t *testing.T) {
	seed := randBlockID(9)
	key := ed25519.PrivateKeyFromSeed(seed[:])
	input := model.OutputIDFromTransactionIDAndIndex(model.TransactionID(randBlockID(4)), 0)

	tx, err := model.NewTransaction(&model.TransactionEssence{
		Inputs:  model.OutputIDs{input},
		Outputs: model.Outputs{{Address: model.AddressFromPublicKey(key.Public()), Amount: 100}},
	}, key)
	require.NoError(t, err)
	require.NoError(t, tx.SyntacticallyValidate())

	blk, err := model.NewBlock(model.BlockIDs{model.EmptyBlockID}, tx, 0)
	require.NoError(t, err)

	parsed, err := model.BlockFromBytes(blk.Data())
	require.NoError(t, err)

	parsedTx, isTx := parsed.Transaction()
	require.True(t, isTx)
	require.Equal(t, tx.ID(), parsedTx.ID())
	require.Equal(t, input, parsedTx.Essence.Inputs[0])
	require.Equal(t, uint64(100), parsedTx.Essence.Outputs[0].Amount)

	message, err := parsedTx.Essence.SigningMessage()
	require.NoError(t, err)
	require.True(t, parsedTx.Unlocks[0].PublicKey.VerifySignature(message, parsedTx.Unlocks[0].Signature))
}

func TestTransaction_FixedWidthFieldsRoundTrip(t *testing.T) {
	seed := randBlockID(8)
	key := ed25519.PrivateKeyFromSeed(seed[:])
	inputs := model.OutputIDs{
		model.OutputIDFromTransactionIDAndIndex(model.TransactionID(randBlockID(4)), 1),
		model.OutputIDFromTransactionIDAndIndex(model.TransactionID(randBlockID(5)), 300),
	}

	tx, err := model.NewTransaction(&model.TransactionEssence{
		Inputs:  inputs,
		Outputs: model.Outputs{{Address: model.AddressFromPublicKey(key.Public()), Amount: 7}},
	}, key, key)
	require.NoError(t, err)

	blk, err := model.NewBlock(model.BlockIDs{model.EmptyBlockID}, tx, 0)
	require.NoError(t, err)

	parsed, err := model.BlockFromBytes(blk.Data())
	require.NoError(t, err)

	parsedTx, isTx := parsed.Transaction()
	require.True(t, isTx)
	require.Equal(t, inputs, parsedTx.Essence.Inputs)
	require.EqualValues(t, 300, parsedTx.Essence.Inputs[1].Index())
	require.Len(t, parsedTx.Unlocks, 2)
	for i, unlock := range parsedTx.Unlocks {
		require.Equal(t, tx.Unlocks[i].PublicKey, unlock.PublicKey)
		require.Equal(t, tx.Unlocks[i].Signature, unlock.Signature)
	}

	// a truncated signature is rejected
	data := blk.Data()
	_, err = model.BlockFromBytes(append(data[:len(data)-9:len(data)-9], data[len(data)-8:]...))
	require.Error(t, err)
}

func TestTransaction_SyntacticValidation(t *testing.T) {
	input := model.OutputIDFromTransactionIDAndIndex(model.TransactionID(randBlockID(4)), 0)

	tx := &model.Transaction{
		Essence: &model.TransactionEssence{
			Inputs:  model.OutputIDs{input, input},
			Outputs: model.Outputs{{Amount: 1}},
		},
		Unlocks: make([]*model.SignatureUnlock, 2),
	}
	require.True(t, ierrors.Is(tx.SyntacticallyValidate(), model.ErrDuplicateInputs))

	tx = &model.Transaction{
		Essence: &model.TransactionEssence{
			Inputs:  model.OutputIDs{input},
			Outputs: model.Outputs{{Amount: 0}},
		},
		Unlocks: make([]*model.SignatureUnlock, 1),
	}
	require.True(t, ierrors.Is(tx.SyntacticallyValidate(), model.ErrZeroAmountOutput))
}

func TestMilestone_SignaturesCoverEssence(t *testing.T) {
	seed := randBlockID(5)
	key := ed25519.PrivateKeyFromSeed(seed[:])

	milestone := &model.Milestone{
		Index:     3,
		Timestamp: uint32(time.Now().Unix()),
		Parents:   model.BlockIDs{randBlockID(1), randBlockID(2)},
		Receipt: &model.Receipt{
			MigratedAt:     2,
			Funds:          []*model.MigratedFunds{{Address: model.Address(randBlockID(6)), Amount: 10}},
			TreasuryAmount: 90,
		},
	}
	require.NoError(t, milestone.Sign(key))

	blk, err := model.NewBlock(milestone.Parents, milestone, 0)
	require.NoError(t, err)

	parsed, err := model.BlockFromBytes(blk.Data())
	require.NoError(t, err)

	parsedMilestone, isMilestone := parsed.Milestone()
	require.True(t, isMilestone)
	require.Equal(t, milestone.ID(), parsedMilestone.ID())
	require.Equal(t, uint64(90), parsedMilestone.Receipt.TreasuryAmount)

	require.Equal(t, milestone.Signatures[0].Signature, parsedMilestone.Signatures[0].Signature)

	essence, err := parsedMilestone.Essence()
	require.NoError(t, err)
	require.True(t, parsedMilestone.Signatures[0].PublicKey.VerifySignature(essence, parsedMilestone.Signatures[0].Signature))

	// the signatures are not part of the id
	parsedMilestone.Signatures = nil
	require.Equal(t, milestone.ID(), parsedMilestone.ID())
}

func TestBlockMetadata_Bytes(t *testing.T) {
	arrival := time.Unix(1700000000, 0)
	metadata := model.NewBlockMetadata(randBlockID(1), arrival)
	metadata.SetSolid(arrival.Add(time.Second))
	metadata.SetConfirmed(4, model.InclusionStateConflicting, model.ConflictInputAlreadySpent)

	parsed, err := model.BlockMetadataFromBytes(randBlockID(1), lo.PanicOnErr(metadata.Bytes()))
	require.NoError(t, err)

	require.True(t, parsed.IsSolid())
	require.True(t, parsed.IsConfirmed())
	require.False(t, parsed.IsMilestone())
	require.Equal(t, model.MilestoneIndex(4), parsed.ConfirmationIndex())
	require.Equal(t, model.InclusionStateConflicting, parsed.InclusionState())
	require.Equal(t, model.ConflictInputAlreadySpent, parsed.Conflict())
	require.True(t, arrival.Equal(parsed.ArrivalTime()))
}
