package model

import (
	"io"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
)

const (
	MaxMilestoneSignatures = 255
	MaxMigratedFunds       = 128
)

// MilestoneSignature is a signature over the milestone essence by a coordinator key.
type MilestoneSignature struct {
	PublicKey ed25519.PublicKey
	Signature ed25519.Signature
}

// MigratedFunds is a receipt entry minting Amount tokens to Address out of the treasury.
type MigratedFunds struct {
	Address Address
	Amount  uint64
}

// Receipt moves funds from the treasury into the ledger.
type Receipt struct {
	MigratedAt MilestoneIndex
	Funds      []*MigratedFunds
	// TreasuryAmount is the treasury balance after the receipt is applied.
	TreasuryAmount uint64
}

// Sum returns the total amount of migrated funds and whether it overflowed.
func (r *Receipt) Sum() (sum uint64, overflow bool) {
	for _, funds := range r.Funds {
		next := sum + funds.Amount
		if next < sum {
			return 0, true
		}
		sum = next
	}

	return sum, false
}

func (r *Receipt) write(w io.WriteSeeker) error {
	if err := stream.Write(w, r.MigratedAt); err != nil {
		return ierrors.Wrap(err, "unable to write migrated at")
	}

	if err := stream.WriteCollection(w, serializer.SeriLengthPrefixTypeAsUint16, func() (int, error) {
		for _, funds := range r.Funds {
			if err := stream.Write(w, funds.Address); err != nil {
				return 0, ierrors.Wrap(err, "unable to write funds address")
			}
			if err := stream.Write(w, funds.Amount); err != nil {
				return 0, ierrors.Wrap(err, "unable to write funds amount")
			}
		}

		return len(r.Funds), nil
	}); err != nil {
		return ierrors.Wrap(err, "unable to write migrated funds")
	}

	return stream.Write(w, r.TreasuryAmount)
}

func readReceipt(r io.ReadSeeker) (*Receipt, error) {
	receipt := &Receipt{}

	var err error
	if receipt.MigratedAt, err = stream.Read[MilestoneIndex](r); err != nil {
		return nil, ierrors.Wrap(err, "unable to read migrated at")
	}

	fundsCount, err := stream.PeekSize(r, serializer.SeriLengthPrefixTypeAsUint16)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to peek funds count")
	}
	if fundsCount > MaxMigratedFunds {
		return nil, ierrors.Wrapf(ErrInvalidEncoding, "%d migrated funds", fundsCount)
	}

	receipt.Funds = make([]*MigratedFunds, fundsCount)
	if err := stream.ReadCollection(r, serializer.SeriLengthPrefixTypeAsUint16, func(i int) error {
		funds := &MigratedFunds{}
		if funds.Address, err = stream.Read[Address](r); err != nil {
			return ierrors.Wrap(err, "unable to read funds address")
		}
		if funds.Amount, err = stream.Read[uint64](r); err != nil {
			return ierrors.Wrap(err, "unable to read funds amount")
		}
		receipt.Funds[i] = funds

		return nil
	}); err != nil {
		return nil, ierrors.Wrap(err, "unable to read migrated funds")
	}

	if receipt.TreasuryAmount, err = stream.Read[uint64](r); err != nil {
		return nil, ierrors.Wrap(err, "unable to read treasury amount")
	}

	return receipt, nil
}

// Milestone is a coordinator checkpoint that confirms its past cone.
type Milestone struct {
	Index               MilestoneIndex
	Timestamp           uint32
	PreviousMilestoneID MilestoneID
	Parents             BlockIDs
	InclusionMerkleRoot MerkleRoot
	AppliedMerkleRoot   MerkleRoot
	Receipt             *Receipt
	Signatures          []*MilestoneSignature
}

func (m *Milestone) PayloadType() PayloadType {
	return PayloadMilestone
}

func (m *Milestone) Bytes() ([]byte, error) {
	return payloadBytes(m)
}

// Time returns the milestone timestamp.
func (m *Milestone) Time() time.Time {
	return time.Unix(int64(m.Timestamp), 0)
}

// Essence returns the signed part of the milestone.
func (m *Milestone) Essence() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()
	if err := m.writeEssence(byteBuffer); err != nil {
		return nil, err
	}

	return byteBuffer.Bytes()
}

// ID returns the hash of the milestone essence.
func (m *Milestone) ID() MilestoneID {
	return blake2b.Sum256(lo.PanicOnErr(m.Essence()))
}

// Sign appends one signature per key over the milestone essence.
func (m *Milestone) Sign(keys ...ed25519.PrivateKey) error {
	essence, err := m.Essence()
	if err != nil {
		return err
	}
	for _, key := range keys {
		m.Signatures = append(m.Signatures, &MilestoneSignature{
			PublicKey: key.Public(),
			Signature: key.Sign(essence),
		})
	}

	return nil
}

func (m *Milestone) writeEssence(w io.WriteSeeker) error {
	if err := stream.Write(w, m.Index); err != nil {
		return ierrors.Wrap(err, "unable to write index")
	}
	if err := stream.Write(w, m.Timestamp); err != nil {
		return ierrors.Wrap(err, "unable to write timestamp")
	}
	if err := stream.Write(w, m.PreviousMilestoneID); err != nil {
		return ierrors.Wrap(err, "unable to write previous milestone id")
	}
	if err := writeParents(w, m.Parents); err != nil {
		return err
	}
	if err := stream.Write(w, m.InclusionMerkleRoot); err != nil {
		return ierrors.Wrap(err, "unable to write inclusion merkle root")
	}
	if err := stream.Write(w, m.AppliedMerkleRoot); err != nil {
		return ierrors.Wrap(err, "unable to write applied merkle root")
	}

	if err := stream.Write(w, m.Receipt != nil); err != nil {
		return ierrors.Wrap(err, "unable to write receipt flag")
	}
	if m.Receipt != nil {
		if err := m.Receipt.write(w); err != nil {
			return err
		}
	}

	return nil
}

func (m *Milestone) write(w io.WriteSeeker) error {
	if err := m.writeEssence(w); err != nil {
		return err
	}

	return stream.WriteCollection(w, serializer.SeriLengthPrefixTypeAsByte, func() (int, error) {
		for _, sig := range m.Signatures {
			if err := stream.Write(w, sig.PublicKey); err != nil {
				return 0, ierrors.Wrap(err, "unable to write signature public key")
			}
			if err := stream.WriteBytes(w, sig.Signature[:]); err != nil {
				return 0, ierrors.Wrap(err, "unable to write signature")
			}
		}

		return len(m.Signatures), nil
	})
}

func readMilestone(r io.ReadSeeker) (*Milestone, error) {
	m := &Milestone{}

	var err error
	if m.Index, err = stream.Read[MilestoneIndex](r); err != nil {
		return nil, ierrors.Wrap(err, "unable to read index")
	}
	if m.Timestamp, err = stream.Read[uint32](r); err != nil {
		return nil, ierrors.Wrap(err, "unable to read timestamp")
	}
	if m.PreviousMilestoneID, err = stream.Read[MilestoneID](r); err != nil {
		return nil, ierrors.Wrap(err, "unable to read previous milestone id")
	}
	if m.Parents, err = readParents(r); err != nil {
		return nil, err
	}
	if m.InclusionMerkleRoot, err = stream.Read[MerkleRoot](r); err != nil {
		return nil, ierrors.Wrap(err, "unable to read inclusion merkle root")
	}
	if m.AppliedMerkleRoot, err = stream.Read[MerkleRoot](r); err != nil {
		return nil, ierrors.Wrap(err, "unable to read applied merkle root")
	}

	hasReceipt, err := stream.Read[bool](r)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to read receipt flag")
	}
	if hasReceipt {
		if m.Receipt, err = readReceipt(r); err != nil {
			return nil, err
		}
	}

	signaturesCount, err := stream.PeekSize(r, serializer.SeriLengthPrefixTypeAsByte)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to peek signatures count")
	}

	m.Signatures = make([]*MilestoneSignature, signaturesCount)
	if err := stream.ReadCollection(r, serializer.SeriLengthPrefixTypeAsByte, func(i int) error {
		sig := &MilestoneSignature{}
		if sig.PublicKey, err = stream.Read[ed25519.PublicKey](r); err != nil {
			return ierrors.Wrap(err, "unable to read signature public key")
		}
		if sig.Signature, err = stream.ReadObject(r, ed25519.SignatureSize, ed25519.SignatureFromBytes); err != nil {
			return ierrors.Wrap(err, "unable to read signature")
		}
		m.Signatures[i] = sig

		return nil
	}); err != nil {
		return nil, ierrors.Wrap(err, "unable to read signatures")
	}

	return m, nil
}
