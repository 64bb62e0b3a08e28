package model

import (
	"io"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
)

const (
	MaxInputsCount  = 128
	MaxOutputsCount = 128
)

var (
	ErrInputsCount         = ierrors.New("invalid inputs count")
	ErrOutputsCount        = ierrors.New("invalid outputs count")
	ErrDuplicateInputs     = ierrors.New("duplicate inputs")
	ErrZeroAmountOutput    = ierrors.New("output with zero amount")
	ErrUnlocksCountInvalid = ierrors.New("unlocks count does not match inputs count")
)

// TransactionEssence is the signed part of a transaction.
type TransactionEssence struct {
	Inputs  OutputIDs
	Outputs Outputs
}

// Bytes returns the serialized essence.
func (e *TransactionEssence) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()
	if err := e.write(byteBuffer); err != nil {
		return nil, err
	}

	return byteBuffer.Bytes()
}

// SigningMessage is the hash every unlock signs.
func (e *TransactionEssence) SigningMessage() ([]byte, error) {
	essenceBytes, err := e.Bytes()
	if err != nil {
		return nil, err
	}
	hash := blake2b.Sum256(essenceBytes)

	return hash[:], nil
}

func (e *TransactionEssence) write(w io.WriteSeeker) error {
	if err := stream.WriteCollection(w, serializer.SeriLengthPrefixTypeAsUint16, func() (int, error) {
		for _, input := range e.Inputs {
			if err := stream.WriteBytes(w, input[:]); err != nil {
				return 0, ierrors.Wrap(err, "unable to write input")
			}
		}

		return len(e.Inputs), nil
	}); err != nil {
		return ierrors.Wrap(err, "unable to write inputs")
	}

	if err := stream.WriteCollection(w, serializer.SeriLengthPrefixTypeAsUint16, func() (int, error) {
		for _, output := range e.Outputs {
			if err := output.write(w); err != nil {
				return 0, err
			}
		}

		return len(e.Outputs), nil
	}); err != nil {
		return ierrors.Wrap(err, "unable to write outputs")
	}

	return nil
}

func readTransactionEssence(r io.ReadSeeker) (*TransactionEssence, error) {
	inputsCount, err := stream.PeekSize(r, serializer.SeriLengthPrefixTypeAsUint16)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to peek inputs count")
	}
	if inputsCount > MaxInputsCount {
		return nil, ierrors.Wrapf(ErrInputsCount, "%d inputs", inputsCount)
	}

	essence := &TransactionEssence{Inputs: make(OutputIDs, inputsCount)}
	if err := stream.ReadCollection(r, serializer.SeriLengthPrefixTypeAsUint16, func(i int) error {
		essence.Inputs[i], err = stream.ReadObject(r, OutputIDLength, OutputIDFromBytes)

		return err
	}); err != nil {
		return nil, ierrors.Wrap(err, "unable to read inputs")
	}

	outputsCount, err := stream.PeekSize(r, serializer.SeriLengthPrefixTypeAsUint16)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to peek outputs count")
	}
	if outputsCount > MaxOutputsCount {
		return nil, ierrors.Wrapf(ErrOutputsCount, "%d outputs", outputsCount)
	}

	essence.Outputs = make(Outputs, outputsCount)
	if err := stream.ReadCollection(r, serializer.SeriLengthPrefixTypeAsUint16, func(i int) error {
		essence.Outputs[i], err = readOutput(r)

		return err
	}); err != nil {
		return nil, ierrors.Wrap(err, "unable to read outputs")
	}

	return essence, nil
}

// SignatureUnlock authorizes spending the input at the same position.
type SignatureUnlock struct {
	PublicKey ed25519.PublicKey
	Signature ed25519.Signature
}

// Transaction moves funds from its inputs to newly created outputs.
type Transaction struct {
	Essence *TransactionEssence
	Unlocks []*SignatureUnlock

	idOnce sync.Once
	id     TransactionID
}

// NewTransaction signs the essence once per input with the key at the same position.
func NewTransaction(essence *TransactionEssence, signers ...ed25519.PrivateKey) (*Transaction, error) {
	if len(signers) != len(essence.Inputs) {
		return nil, ierrors.Wrapf(ErrUnlocksCountInvalid, "%d signers for %d inputs", len(signers), len(essence.Inputs))
	}

	message, err := essence.SigningMessage()
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		Essence: essence,
		Unlocks: make([]*SignatureUnlock, len(signers)),
	}
	for i, signer := range signers {
		tx.Unlocks[i] = &SignatureUnlock{
			PublicKey: signer.Public(),
			Signature: signer.Sign(message),
		}
	}

	return tx, nil
}

func (t *Transaction) PayloadType() PayloadType {
	return PayloadTransaction
}

func (t *Transaction) Bytes() ([]byte, error) {
	return payloadBytes(t)
}

// ID returns the hash of the serialized transaction payload.
func (t *Transaction) ID() TransactionID {
	t.idOnce.Do(func() {
		t.id = blake2b.Sum256(lo.PanicOnErr(t.Bytes()))
	})

	return t.id
}

// OutputID returns the id of the index-th created output.
func (t *Transaction) OutputID(index uint16) OutputID {
	return OutputIDFromTransactionIDAndIndex(t.ID(), index)
}

// SyntacticallyValidate checks the structural rules that do not depend on the ledger.
func (t *Transaction) SyntacticallyValidate() error {
	if len(t.Essence.Inputs) == 0 || len(t.Essence.Inputs) > MaxInputsCount {
		return ierrors.Wrapf(ErrInputsCount, "%d inputs", len(t.Essence.Inputs))
	}
	if len(t.Essence.Outputs) == 0 || len(t.Essence.Outputs) > MaxOutputsCount {
		return ierrors.Wrapf(ErrOutputsCount, "%d outputs", len(t.Essence.Outputs))
	}
	if t.Essence.Inputs.HasDuplicates() {
		return ErrDuplicateInputs
	}
	for i, output := range t.Essence.Outputs {
		if output.Amount == 0 {
			return ierrors.Wrapf(ErrZeroAmountOutput, "output %d", i)
		}
	}
	if len(t.Unlocks) != len(t.Essence.Inputs) {
		return ierrors.Wrapf(ErrUnlocksCountInvalid, "%d unlocks for %d inputs", len(t.Unlocks), len(t.Essence.Inputs))
	}

	return nil
}

func (t *Transaction) write(w io.WriteSeeker) error {
	if err := t.Essence.write(w); err != nil {
		return err
	}

	return stream.WriteCollection(w, serializer.SeriLengthPrefixTypeAsUint16, func() (int, error) {
		for _, unlock := range t.Unlocks {
			if err := stream.Write(w, unlock.PublicKey); err != nil {
				return 0, ierrors.Wrap(err, "unable to write unlock public key")
			}
			if err := stream.WriteBytes(w, unlock.Signature[:]); err != nil {
				return 0, ierrors.Wrap(err, "unable to write unlock signature")
			}
		}

		return len(t.Unlocks), nil
	})
}

func readTransaction(r io.ReadSeeker) (*Transaction, error) {
	essence, err := readTransactionEssence(r)
	if err != nil {
		return nil, err
	}

	unlocksCount, err := stream.PeekSize(r, serializer.SeriLengthPrefixTypeAsUint16)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to peek unlocks count")
	}
	if unlocksCount > MaxInputsCount {
		return nil, ierrors.Wrapf(ErrUnlocksCountInvalid, "%d unlocks", unlocksCount)
	}

	tx := &Transaction{
		Essence: essence,
		Unlocks: make([]*SignatureUnlock, unlocksCount),
	}
	if err := stream.ReadCollection(r, serializer.SeriLengthPrefixTypeAsUint16, func(i int) error {
		unlock := &SignatureUnlock{}
		if unlock.PublicKey, err = stream.Read[ed25519.PublicKey](r); err != nil {
			return ierrors.Wrap(err, "unable to read unlock public key")
		}
		if unlock.Signature, err = stream.ReadObject(r, ed25519.SignatureSize, ed25519.SignatureFromBytes); err != nil {
			return ierrors.Wrap(err, "unable to read unlock signature")
		}
		tx.Unlocks[i] = unlock

		return nil
	}); err != nil {
		return nil, ierrors.Wrap(err, "unable to read unlocks")
	}

	return tx, nil
}
