package model

import (
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
)

const (
	ProtocolVersion = 2

	MinParentsCount = 1
	MaxParentsCount = 8
)

// Block is an immutable vertex of the tangle.
type Block struct {
	blockID BlockID
	data    []byte

	protocolVersion byte
	parents         BlockIDs
	payload         Payload
	nonce           uint64
}

// NewBlock serializes the block and derives its id. Parents are sorted and deduplicated.
func NewBlock(parents BlockIDs, payload Payload, nonce uint64) (*Block, error) {
	blk := &Block{
		protocolVersion: ProtocolVersion,
		parents:         parents.RemoveDupsAndSort(),
		payload:         payload,
		nonce:           nonce,
	}

	byteBuffer := stream.NewByteBuffer()
	if err := blk.write(byteBuffer); err != nil {
		return nil, err
	}

	data, err := byteBuffer.Bytes()
	if err != nil {
		return nil, err
	}

	blk.data = data
	blk.blockID = blake2b.Sum256(data)

	return blk, nil
}

// BlockFromBytes parses a serialized block and derives its id.
func BlockFromBytes(data []byte) (*Block, error) {
	reader := stream.NewByteReader(data)

	blk := &Block{data: data}

	var err error
	if blk.protocolVersion, err = stream.Read[byte](reader); err != nil {
		return nil, ierrors.Wrap(err, "unable to read protocol version")
	}
	if blk.protocolVersion != ProtocolVersion {
		return nil, ierrors.Wrapf(ErrInvalidEncoding, "unsupported protocol version %d", blk.protocolVersion)
	}
	if blk.parents, err = readParents(reader); err != nil {
		return nil, err
	}

	payloadBytes, err := stream.ReadBytesWithSize(reader, serializer.SeriLengthPrefixTypeAsUint32)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to read payload")
	}
	if blk.payload, err = PayloadFromBytes(payloadBytes); err != nil {
		return nil, err
	}

	if blk.nonce, err = stream.Read[uint64](reader); err != nil {
		return nil, ierrors.Wrap(err, "unable to read nonce")
	}
	if err := ensureConsumed(reader, len(data)); err != nil {
		return nil, err
	}

	blk.blockID = blake2b.Sum256(data)

	return blk, nil
}

// BlockFromBytesFunc adapts BlockFromBytes to the signature used by typed stores.
func BlockFromBytesFunc(data []byte) (*Block, int, error) {
	blk, err := BlockFromBytes(data)
	if err != nil {
		return nil, 0, err
	}

	return blk, len(data), nil
}

func (blk *Block) write(w io.WriteSeeker) error {
	if err := stream.Write(w, blk.protocolVersion); err != nil {
		return ierrors.Wrap(err, "unable to write protocol version")
	}
	if err := writeParents(w, blk.parents); err != nil {
		return err
	}

	var payloadData []byte
	if blk.payload != nil {
		var err error
		if payloadData, err = blk.payload.Bytes(); err != nil {
			return err
		}
	}
	if err := stream.WriteBytesWithSize(w, payloadData, serializer.SeriLengthPrefixTypeAsUint32); err != nil {
		return ierrors.Wrap(err, "unable to write payload")
	}

	return stream.Write(w, blk.nonce)
}

func (blk *Block) ID() BlockID {
	return blk.blockID
}

func (blk *Block) Data() []byte {
	return blk.data
}

func (blk *Block) Bytes() ([]byte, error) {
	return blk.data, nil
}

// Parents returns the sorted, unique parent ids.
func (blk *Block) Parents() BlockIDs {
	return blk.parents
}

func (blk *Block) Payload() Payload {
	return blk.payload
}

func (blk *Block) Nonce() uint64 {
	return blk.nonce
}

func (blk *Block) Transaction() (tx *Transaction, isTransaction bool) {
	tx, isTransaction = blk.payload.(*Transaction)
	return tx, isTransaction
}

func (blk *Block) Milestone() (milestone *Milestone, isMilestone bool) {
	milestone, isMilestone = blk.payload.(*Milestone)
	return milestone, isMilestone
}

func (blk *Block) TaggedData() (taggedData *TaggedData, isTaggedData bool) {
	taggedData, isTaggedData = blk.payload.(*TaggedData)
	return taggedData, isTaggedData
}

func (blk *Block) String() string {
	return blk.blockID.ToHex()
}

func writeParents(w io.WriteSeeker, parents BlockIDs) error {
	if len(parents) < MinParentsCount || len(parents) > MaxParentsCount {
		return ierrors.Wrapf(ErrInvalidParentsCount, "%d parents", len(parents))
	}
	if !parents.IsSortedAndUnique() {
		return ErrParentsNotSorted
	}

	return stream.WriteCollection(w, serializer.SeriLengthPrefixTypeAsByte, func() (int, error) {
		for _, parent := range parents {
			if err := stream.Write(w, parent); err != nil {
				return 0, ierrors.Wrap(err, "unable to write parent")
			}
		}

		return len(parents), nil
	})
}

func readParents(r io.ReadSeeker) (BlockIDs, error) {
	parentsCount, err := stream.PeekSize(r, serializer.SeriLengthPrefixTypeAsByte)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to peek parents count")
	}
	if parentsCount < MinParentsCount || parentsCount > MaxParentsCount {
		return nil, ierrors.Wrapf(ErrInvalidParentsCount, "%d parents", parentsCount)
	}

	parents := make(BlockIDs, parentsCount)
	if err := stream.ReadCollection(r, serializer.SeriLengthPrefixTypeAsByte, func(i int) error {
		parents[i], err = stream.Read[BlockID](r)

		return err
	}); err != nil {
		return nil, ierrors.Wrap(err, "unable to read parents")
	}

	if !parents.IsSortedAndUnique() {
		return nil, ErrParentsNotSorted
	}

	return parents, nil
}
