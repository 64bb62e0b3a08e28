package model

import (
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
)

// InclusionState describes how a confirmed block affected the ledger.
type InclusionState byte

const (
	InclusionStateUnknown InclusionState = iota
	InclusionStateNoTransaction
	InclusionStateIncluded
	InclusionStateConflicting
)

func (s InclusionState) String() string {
	switch s {
	case InclusionStateNoTransaction:
		return "noTransaction"
	case InclusionStateIncluded:
		return "included"
	case InclusionStateConflicting:
		return "conflicting"
	default:
		return "unknown"
	}
}

// ConflictReason explains why a transaction was not applied to the ledger.
type ConflictReason byte

const (
	ConflictNone ConflictReason = iota
	ConflictInputAlreadySpent
	ConflictInputAlreadySpentInThisMilestone
	ConflictInputNotFound
	ConflictInputOutputSumMismatch
	ConflictInvalidSignature
	ConflictSemanticValidationFailed
)

func (c ConflictReason) String() string {
	switch c {
	case ConflictNone:
		return "none"
	case ConflictInputAlreadySpent:
		return "inputAlreadySpent"
	case ConflictInputAlreadySpentInThisMilestone:
		return "inputAlreadySpentInThisMilestone"
	case ConflictInputNotFound:
		return "inputNotFound"
	case ConflictInputOutputSumMismatch:
		return "inputOutputSumMismatch"
	case ConflictInvalidSignature:
		return "invalidSignature"
	case ConflictSemanticValidationFailed:
		return "semanticValidationFailed"
	default:
		return "unknown"
	}
}

const (
	metadataFlagSolid byte = 1 << iota
	metadataFlagMilestone
	metadataFlagConfirmed
)

// BlockMetadataLength is the serialized length of a BlockMetadata.
const BlockMetadataLength = 1 + 4 + 4 + 1 + 1 + 8 + 8

// BlockMetadata is the mutable state the node tracks per block.
type BlockMetadata struct {
	blockID BlockID

	flags              byte
	milestoneIndex     MilestoneIndex
	confirmationIndex  MilestoneIndex
	inclusionState     InclusionState
	conflict           ConflictReason
	arrivalTime        time.Time
	solidificationTime time.Time
}

// NewBlockMetadata returns the pending metadata of a freshly stored block.
func NewBlockMetadata(blockID BlockID, arrivalTime time.Time) *BlockMetadata {
	return &BlockMetadata{
		blockID:     blockID,
		arrivalTime: arrivalTime,
	}
}

func (m *BlockMetadata) BlockID() BlockID {
	return m.blockID
}

func (m *BlockMetadata) IsSolid() bool {
	return m.flags&metadataFlagSolid != 0
}

func (m *BlockMetadata) SetSolid(solidificationTime time.Time) {
	m.flags |= metadataFlagSolid
	m.solidificationTime = solidificationTime
}

func (m *BlockMetadata) IsMilestone() bool {
	return m.flags&metadataFlagMilestone != 0
}

// MilestoneIndex returns the index of the milestone payload carried by the block.
func (m *BlockMetadata) MilestoneIndex() MilestoneIndex {
	return m.milestoneIndex
}

func (m *BlockMetadata) SetMilestone(index MilestoneIndex) {
	m.flags |= metadataFlagMilestone
	m.milestoneIndex = index
}

func (m *BlockMetadata) IsConfirmed() bool {
	return m.flags&metadataFlagConfirmed != 0
}

// ConfirmationIndex returns the index of the milestone that confirmed the block.
func (m *BlockMetadata) ConfirmationIndex() MilestoneIndex {
	return m.confirmationIndex
}

func (m *BlockMetadata) InclusionState() InclusionState {
	return m.inclusionState
}

func (m *BlockMetadata) Conflict() ConflictReason {
	return m.conflict
}

func (m *BlockMetadata) SetConfirmed(index MilestoneIndex, state InclusionState, conflict ConflictReason) {
	m.flags |= metadataFlagConfirmed
	m.confirmationIndex = index
	m.inclusionState = state
	m.conflict = conflict
}

func (m *BlockMetadata) ArrivalTime() time.Time {
	return m.arrivalTime
}

func (m *BlockMetadata) SolidificationTime() time.Time {
	return m.solidificationTime
}

// Clone returns a deep copy.
func (m *BlockMetadata) Clone() *BlockMetadata {
	c := *m
	return &c
}

func (m *BlockMetadata) Bytes() ([]byte, error) {
	ms := marshalutil.New(BlockMetadataLength)
	ms.WriteByte(m.flags)
	ms.WriteUint32(uint32(m.milestoneIndex))
	ms.WriteUint32(uint32(m.confirmationIndex))
	ms.WriteByte(byte(m.inclusionState))
	ms.WriteByte(byte(m.conflict))
	ms.WriteInt64(timeToUnixNano(m.arrivalTime))
	ms.WriteInt64(timeToUnixNano(m.solidificationTime))

	return ms.Bytes(), nil
}

// BlockMetadataFromBytes parses metadata stored for the given block.
func BlockMetadataFromBytes(blockID BlockID, data []byte) (*BlockMetadata, error) {
	if len(data) != BlockMetadataLength {
		return nil, ierrors.Wrapf(ErrInvalidEncoding, "block metadata needs %d bytes, got %d", BlockMetadataLength, len(data))
	}

	ms := marshalutil.New(data)
	m := &BlockMetadata{blockID: blockID}

	var err error
	if m.flags, err = ms.ReadByte(); err != nil {
		return nil, err
	}

	milestoneIndex, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	m.milestoneIndex = MilestoneIndex(milestoneIndex)

	confirmationIndex, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	m.confirmationIndex = MilestoneIndex(confirmationIndex)

	inclusionState, err := ms.ReadByte()
	if err != nil {
		return nil, err
	}
	m.inclusionState = InclusionState(inclusionState)

	conflict, err := ms.ReadByte()
	if err != nil {
		return nil, err
	}
	m.conflict = ConflictReason(conflict)

	arrival, err := ms.ReadInt64()
	if err != nil {
		return nil, err
	}
	m.arrivalTime = unixNanoToTime(arrival)

	solidification, err := ms.ReadInt64()
	if err != nil {
		return nil, err
	}
	m.solidificationTime = unixNanoToTime(solidification)

	return m, nil
}

func timeToUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

func unixNanoToTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, ns)
}
