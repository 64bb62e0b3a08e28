package utxo

import (
	"bytes"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// LexicalOrderedOutputs are outputs ordered in lexical order by their outputID.
type LexicalOrderedOutputs []*Output

func (l LexicalOrderedOutputs) Len() int {
	return len(l)
}

func (l LexicalOrderedOutputs) Less(i int, j int) bool {
	return bytes.Compare(l[i].outputID[:], l[j].outputID[:]) < 0
}

func (l LexicalOrderedOutputs) Swap(i int, j int) {
	l[i], l[j] = l[j], l[i]
}

// Output is an output created by a confirmed transaction or a receipt.
type Output struct {
	outputID                 model.OutputID
	blockID                  model.BlockID
	milestoneIndexBooked     model.MilestoneIndex
	milestoneTimestampBooked uint32

	output *model.Output
}

func (o *Output) OutputID() model.OutputID {
	return o.outputID
}

func (o *Output) MapKey() string {
	return string(o.outputID[:])
}

func (o *Output) BlockID() model.BlockID {
	return o.blockID
}

func (o *Output) MilestoneIndexBooked() model.MilestoneIndex {
	return o.milestoneIndexBooked
}

func (o *Output) MilestoneTimestampBooked() uint32 {
	return o.milestoneTimestampBooked
}

func (o *Output) Output() *model.Output {
	return o.output
}

func (o *Output) Address() model.Address {
	return o.output.Address
}

func (o *Output) Amount() uint64 {
	return o.output.Amount
}

type Outputs []*Output

func NewOutput(outputID model.OutputID, blockID model.BlockID, milestoneIndexBooked model.MilestoneIndex, milestoneTimestampBooked uint32, output *model.Output) *Output {
	return &Output{
		outputID:                 outputID,
		blockID:                  blockID,
		milestoneIndexBooked:     milestoneIndexBooked,
		milestoneTimestampBooked: milestoneTimestampBooked,
		output:                   output,
	}
}

// - kvStorable

func outputStorageKeyForOutputID(outputID model.OutputID) []byte {
	byteBuffer := stream.NewByteBuffer(model.OutputIDLength + serializer.OneByte)

	// There can't be any errors.
	_ = stream.Write(byteBuffer, StoreKeyPrefixOutput)
	_ = stream.WriteBytes(byteBuffer, outputID[:])

	return lo.PanicOnErr(byteBuffer.Bytes())
}

func (o *Output) KVStorableKey() (key []byte) {
	return outputStorageKeyForOutputID(o.outputID)
}

func (o *Output) KVStorableValue() (value []byte) {
	byteBuffer := stream.NewByteBuffer()

	// There can't be any errors.
	_ = stream.Write(byteBuffer, o.blockID)
	_ = stream.Write(byteBuffer, o.milestoneIndexBooked)
	_ = stream.Write(byteBuffer, o.milestoneTimestampBooked)
	_ = stream.WriteBytes(byteBuffer, lo.PanicOnErr(o.output.Bytes()))

	return lo.PanicOnErr(byteBuffer.Bytes())
}

func (o *Output) kvStorableLoad(_ *Manager, key []byte, value []byte) error {
	var err error

	keyReader := stream.NewByteReader(key)

	if _, err = stream.Read[byte](keyReader); err != nil {
		return ierrors.Wrap(err, "unable to read prefix")
	}
	if o.outputID, err = stream.ReadObject(keyReader, model.OutputIDLength, model.OutputIDFromBytes); err != nil {
		return ierrors.Wrap(err, "unable to read outputID")
	}

	valueReader := stream.NewByteReader(value)
	if o.blockID, err = stream.Read[model.BlockID](valueReader); err != nil {
		return ierrors.Wrap(err, "unable to read blockID")
	}
	if o.milestoneIndexBooked, err = stream.Read[model.MilestoneIndex](valueReader); err != nil {
		return ierrors.Wrap(err, "unable to read milestoneIndexBooked")
	}
	if o.milestoneTimestampBooked, err = stream.Read[uint32](valueReader); err != nil {
		return ierrors.Wrap(err, "unable to read milestoneTimestampBooked")
	}

	offset := model.IdentifierLength + serializer.UInt32ByteSize + serializer.UInt32ByteSize
	if o.output, _, err = model.OutputFromBytes(value[offset:]); err != nil {
		return ierrors.Wrap(err, "unable to read output")
	}

	return nil
}

// - Helper

func storeOutput(output *Output, mutations kvstore.BatchedMutations) error {
	return mutations.Set(output.KVStorableKey(), output.KVStorableValue())
}

func deleteOutput(output *Output, mutations kvstore.BatchedMutations) error {
	return mutations.Delete(output.KVStorableKey())
}

// - Manager

func (m *Manager) ReadOutputByOutputIDWithoutLocking(outputID model.OutputID) (*Output, error) {
	key := outputStorageKeyForOutputID(outputID)
	value, err := m.store.Get(key)
	if err != nil {
		return nil, err
	}

	output := &Output{}
	if err := output.kvStorableLoad(m, key, value); err != nil {
		return nil, err
	}

	return output, nil
}

func (m *Manager) ReadOutputByOutputID(outputID model.OutputID) (*Output, error) {
	m.ReadLockLedger()
	defer m.ReadUnlockLedger()

	return m.ReadOutputByOutputIDWithoutLocking(outputID)
}

// code guards.
var _ kvStorable = &Output{}
