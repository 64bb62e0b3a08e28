package utxo

import (
	"bytes"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// SpentConsumer is a function that consumes a spent output.
// Returning false from this function indicates to abort the iteration.
type SpentConsumer func(spent *Spent) bool

// LexicalOrderedSpents are spents ordered in lexical order by their outputID.
type LexicalOrderedSpents []*Spent

func (l LexicalOrderedSpents) Len() int {
	return len(l)
}

func (l LexicalOrderedSpents) Less(i, j int) bool {
	return bytes.Compare(l[i].outputID[:], l[j].outputID[:]) < 0
}

func (l LexicalOrderedSpents) Swap(i, j int) {
	l[i], l[j] = l[j], l[i]
}

// Spent are already spent TXOs (transaction outputs).
type Spent struct {
	outputID model.OutputID
	// the ID of the transaction that spent the output
	transactionIDSpent model.TransactionID
	// the index of the milestone that spent the output
	milestoneIndexSpent model.MilestoneIndex
	// the timestamp of the milestone that spent the output
	milestoneTimestampSpent uint32

	output *Output
}

func (s *Spent) Output() *Output {
	return s.output
}

func (s *Spent) OutputID() model.OutputID {
	return s.outputID
}

func (s *Spent) MapKey() string {
	return string(s.outputID[:])
}

func (s *Spent) BlockID() model.BlockID {
	return s.output.BlockID()
}

func (s *Spent) Address() model.Address {
	return s.output.Address()
}

func (s *Spent) Amount() uint64 {
	return s.output.Amount()
}

// TransactionIDSpent returns the ID of the transaction that spent the output.
func (s *Spent) TransactionIDSpent() model.TransactionID {
	return s.transactionIDSpent
}

// MilestoneIndexSpent returns the index of the milestone that spent the output.
func (s *Spent) MilestoneIndexSpent() model.MilestoneIndex {
	return s.milestoneIndexSpent
}

func (s *Spent) MilestoneTimestampSpent() uint32 {
	return s.milestoneTimestampSpent
}

type Spents []*Spent

func NewSpent(output *Output, transactionIDSpent model.TransactionID, milestoneIndexSpent model.MilestoneIndex, milestoneTimestampSpent uint32) *Spent {
	return &Spent{
		outputID:                output.outputID,
		output:                  output,
		transactionIDSpent:      transactionIDSpent,
		milestoneIndexSpent:     milestoneIndexSpent,
		milestoneTimestampSpent: milestoneTimestampSpent,
	}
}

func spentStorageKeyForOutputID(outputID model.OutputID) []byte {
	ms := marshalutil.New(1 + model.OutputIDLength)
	ms.WriteByte(StoreKeyPrefixOutputSpent) // 1 byte
	ms.WriteBytes(outputID[:])              // 34 bytes

	return ms.Bytes()
}

func (s *Spent) KVStorableKey() (key []byte) {
	return spentStorageKeyForOutputID(s.outputID)
}

func (s *Spent) KVStorableValue() (value []byte) {
	ms := marshalutil.New(model.IdentifierLength + 2*model.MilestoneIndexLength)
	ms.WriteBytes(s.transactionIDSpent[:])        // 32 bytes
	ms.WriteUint32(uint32(s.milestoneIndexSpent)) // 4 bytes
	ms.WriteUint32(s.milestoneTimestampSpent)     // 4 bytes

	return ms.Bytes()
}

func (s *Spent) kvStorableLoad(_ *Manager, key []byte, value []byte) error {
	keyUtil := marshalutil.New(key)

	// Read prefix output
	if _, err := keyUtil.ReadByte(); err != nil {
		return err
	}

	outputIDBytes, err := keyUtil.ReadBytes(model.OutputIDLength)
	if err != nil {
		return ierrors.Wrap(err, "unable to read outputID")
	}
	copy(s.outputID[:], outputIDBytes)

	valueUtil := marshalutil.New(value)

	transactionIDBytes, err := valueUtil.ReadBytes(model.IdentifierLength)
	if err != nil {
		return ierrors.Wrap(err, "unable to read transactionID")
	}
	copy(s.transactionIDSpent[:], transactionIDBytes)

	milestoneIndex, err := valueUtil.ReadUint32()
	if err != nil {
		return ierrors.Wrap(err, "unable to read milestone index")
	}
	s.milestoneIndexSpent = model.MilestoneIndex(milestoneIndex)

	if s.milestoneTimestampSpent, err = valueUtil.ReadUint32(); err != nil {
		return ierrors.Wrap(err, "unable to read milestone timestamp")
	}

	return nil
}

func (m *Manager) loadOutputOfSpent(s *Spent) error {
	output, err := m.ReadOutputByOutputIDWithoutLocking(s.outputID)
	if err != nil {
		return err
	}
	s.output = output

	return nil
}

func (m *Manager) ReadSpentForOutputIDWithoutLocking(outputID model.OutputID) (*Spent, error) {
	output, err := m.ReadOutputByOutputIDWithoutLocking(outputID)
	if err != nil {
		return nil, err
	}

	key := spentStorageKeyForOutputID(outputID)
	value, err := m.store.Get(key)
	if err != nil {
		return nil, err
	}

	spent := &Spent{}
	if err := spent.kvStorableLoad(m, key, value); err != nil {
		return nil, err
	}

	spent.output = output

	return spent, nil
}

func storeSpent(spent *Spent, mutations kvstore.BatchedMutations) error {
	return mutations.Set(spent.KVStorableKey(), spent.KVStorableValue())
}

func deleteSpent(spent *Spent, mutations kvstore.BatchedMutations) error {
	return mutations.Delete(spent.KVStorableKey())
}

// code guards.
var _ kvStorable = &Spent{}
