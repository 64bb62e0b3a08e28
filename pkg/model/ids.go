package model

import (
	"bytes"
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/iota.go/v4/hexutil"
)

const (
	// IdentifierLength is the length of every hash based identifier.
	IdentifierLength = blake2b.Size256
	// OutputIndexLength is the length of the output index suffix of an OutputID.
	OutputIndexLength = 2
	// OutputIDLength is the length of an OutputID.
	OutputIDLength = IdentifierLength + OutputIndexLength
	// MilestoneIndexLength is the serialized length of a MilestoneIndex.
	MilestoneIndexLength = 4
)

var ErrInvalidIdentifierLength = ierrors.New("invalid identifier length")

// BlockID is the blake2b-256 hash of a block's serialized bytes.
type BlockID [IdentifierLength]byte

// EmptyBlockID is the genesis solid entry point.
var EmptyBlockID = BlockID{}

func BlockIDFromBytes(b []byte) (BlockID, int, error) {
	var id BlockID
	if len(b) < IdentifierLength {
		return id, 0, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", IdentifierLength, len(b))
	}
	copy(id[:], b)

	return id, IdentifierLength, nil
}

func BlockIDFromHexString(hexString string) (BlockID, error) {
	b, err := hexutil.DecodeHex(hexString)
	if err != nil {
		return EmptyBlockID, err
	}

	id, n, err := BlockIDFromBytes(b)
	if err != nil {
		return EmptyBlockID, err
	}
	if n != len(b) {
		return EmptyBlockID, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", IdentifierLength, len(b))
	}

	return id, nil
}

func (id BlockID) Bytes() ([]byte, error) {
	return id[:], nil
}

func (id BlockID) ToHex() string {
	return hexutil.EncodeHex(id[:])
}

func (id BlockID) String() string {
	return id.ToHex()
}

func (id BlockID) Empty() bool {
	return id == EmptyBlockID
}

// BlockIDs is a slice of BlockID.
type BlockIDs []BlockID

// Sort sorts the ids lexicographically in place.
func (ids BlockIDs) Sort() {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}

// IsSortedAndUnique reports whether the ids are strictly ascending.
func (ids BlockIDs) IsSortedAndUnique() bool {
	for i := 1; i < len(ids); i++ {
		if bytes.Compare(ids[i-1][:], ids[i][:]) >= 0 {
			return false
		}
	}

	return true
}

// RemoveDupsAndSort returns a sorted copy without duplicates.
func (ids BlockIDs) RemoveDupsAndSort() BlockIDs {
	seen := make(map[BlockID]struct{}, len(ids))
	result := make(BlockIDs, 0, len(ids))
	for _, id := range ids {
		if _, has := seen[id]; has {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	result.Sort()

	return result
}

func (ids BlockIDs) ToHex() []string {
	result := make([]string, len(ids))
	for i, id := range ids {
		result[i] = id.ToHex()
	}

	return result
}

// TransactionID is the blake2b-256 hash of a transaction payload.
type TransactionID [IdentifierLength]byte

var EmptyTransactionID = TransactionID{}

func TransactionIDFromBytes(b []byte) (TransactionID, int, error) {
	var id TransactionID
	if len(b) < IdentifierLength {
		return id, 0, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", IdentifierLength, len(b))
	}
	copy(id[:], b)

	return id, IdentifierLength, nil
}

func TransactionIDFromHexString(hexString string) (TransactionID, error) {
	b, err := hexutil.DecodeHex(hexString)
	if err != nil {
		return EmptyTransactionID, err
	}
	if len(b) != IdentifierLength {
		return EmptyTransactionID, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", IdentifierLength, len(b))
	}

	id, _, err := TransactionIDFromBytes(b)

	return id, err
}

func (id TransactionID) Bytes() ([]byte, error) {
	return id[:], nil
}

func (id TransactionID) ToHex() string {
	return hexutil.EncodeHex(id[:])
}

func (id TransactionID) String() string {
	return id.ToHex()
}

// MilestoneID is the blake2b-256 hash of a milestone essence.
type MilestoneID [IdentifierLength]byte

var EmptyMilestoneID = MilestoneID{}

func MilestoneIDFromBytes(b []byte) (MilestoneID, int, error) {
	var id MilestoneID
	if len(b) < IdentifierLength {
		return id, 0, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", IdentifierLength, len(b))
	}
	copy(id[:], b)

	return id, IdentifierLength, nil
}

func (id MilestoneID) Bytes() ([]byte, error) {
	return id[:], nil
}

func (id MilestoneID) ToHex() string {
	return hexutil.EncodeHex(id[:])
}

func (id MilestoneID) String() string {
	return id.ToHex()
}

// OutputID identifies an output by the transaction that created it and its position.
type OutputID [OutputIDLength]byte

var EmptyOutputID = OutputID{}

// OutputIDFromTransactionIDAndIndex builds the OutputID of the index-th output of a transaction.
func OutputIDFromTransactionIDAndIndex(txID TransactionID, index uint16) OutputID {
	var id OutputID
	copy(id[:IdentifierLength], txID[:])
	binary.LittleEndian.PutUint16(id[IdentifierLength:], index)

	return id
}

// OutputIDFromMilestoneIDAndIndex builds the OutputID of a migrated fund entry.
func OutputIDFromMilestoneIDAndIndex(msID MilestoneID, index uint16) OutputID {
	return OutputIDFromTransactionIDAndIndex(TransactionID(msID), index)
}

func OutputIDFromBytes(b []byte) (OutputID, int, error) {
	var id OutputID
	if len(b) < OutputIDLength {
		return id, 0, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", OutputIDLength, len(b))
	}
	copy(id[:], b)

	return id, OutputIDLength, nil
}

func OutputIDFromHexString(hexString string) (OutputID, error) {
	b, err := hexutil.DecodeHex(hexString)
	if err != nil {
		return EmptyOutputID, err
	}
	if len(b) != OutputIDLength {
		return EmptyOutputID, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", OutputIDLength, len(b))
	}

	id, _, err := OutputIDFromBytes(b)

	return id, err
}

func (id OutputID) TransactionID() TransactionID {
	var txID TransactionID
	copy(txID[:], id[:IdentifierLength])

	return txID
}

func (id OutputID) Index() uint16 {
	return binary.LittleEndian.Uint16(id[IdentifierLength:])
}

func (id OutputID) Bytes() ([]byte, error) {
	return id[:], nil
}

func (id OutputID) ToHex() string {
	return hexutil.EncodeHex(id[:])
}

func (id OutputID) String() string {
	return id.ToHex()
}

// OutputIDs is a slice of OutputID.
type OutputIDs []OutputID

// Sort sorts the ids lexicographically in place.
func (ids OutputIDs) Sort() {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}

// HasDuplicates reports whether an OutputID appears more than once.
func (ids OutputIDs) HasDuplicates() bool {
	seen := make(map[OutputID]struct{}, len(ids))
	for _, id := range ids {
		if _, has := seen[id]; has {
			return true
		}
		seen[id] = struct{}{}
	}

	return false
}

// MilestoneIndex is the sequence number of a milestone.
type MilestoneIndex uint32

func MilestoneIndexFromBytes(b []byte) (MilestoneIndex, int, error) {
	if len(b) < MilestoneIndexLength {
		return 0, 0, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", MilestoneIndexLength, len(b))
	}

	return MilestoneIndex(binary.LittleEndian.Uint32(b)), MilestoneIndexLength, nil
}

func (i MilestoneIndex) Bytes() ([]byte, error) {
	b := make([]byte, MilestoneIndexLength)
	binary.LittleEndian.PutUint32(b, uint32(i))

	return b, nil
}

// BigEndianBytes is used for storage keys that have to iterate in index order.
func (i MilestoneIndex) BigEndianBytes() []byte {
	b := make([]byte, MilestoneIndexLength)
	binary.BigEndian.PutUint32(b, uint32(i))

	return b
}

func MilestoneIndexFromBigEndianBytes(b []byte) (MilestoneIndex, int, error) {
	if len(b) < MilestoneIndexLength {
		return 0, 0, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", MilestoneIndexLength, len(b))
	}

	return MilestoneIndex(binary.BigEndian.Uint32(b)), MilestoneIndexLength, nil
}

// MerkleRoot is a blake2b-256 merkle tree hash.
type MerkleRoot [IdentifierLength]byte

func (r MerkleRoot) ToHex() string {
	return hexutil.EncodeHex(r[:])
}

func (r MerkleRoot) String() string {
	return r.ToHex()
}

func MerkleRootFromBytes(b []byte) (MerkleRoot, int, error) {
	var root MerkleRoot
	if len(b) < IdentifierLength {
		return root, 0, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", IdentifierLength, len(b))
	}
	copy(root[:], b)

	return root, IdentifierLength, nil
}

func (r MerkleRoot) Bytes() ([]byte, error) {
	return r[:], nil
}
