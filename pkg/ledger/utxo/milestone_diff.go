package utxo

import (
	"crypto/sha256"
	"sort"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// TreasuryMutation moves the treasury balance from Previous to New.
type TreasuryMutation struct {
	Previous uint64
	New      uint64
}

// MilestoneDiff represents the generated and spent outputs by a milestone's confirmation.
type MilestoneDiff struct {
	// The index of the milestone.
	Index model.MilestoneIndex
	// The outputs newly generated with this diff.
	Outputs Outputs
	// The outputs spent with this diff.
	Spents Spents
	// The treasury mutation of a receipt carried by the milestone, if any.
	TreasuryMutation *TreasuryMutation
}

func milestoneDiffKeyForIndex(index model.MilestoneIndex) []byte {
	byteBuffer := stream.NewByteBuffer(serializer.OneByte + model.MilestoneIndexLength)

	// There can't be any errors.
	_ = stream.Write(byteBuffer, StoreKeyPrefixMilestoneDiffs)
	_ = stream.WriteBytes(byteBuffer, index.BigEndianBytes())

	return lo.PanicOnErr(byteBuffer.Bytes())
}

func (md *MilestoneDiff) KVStorableKey() []byte {
	return milestoneDiffKeyForIndex(md.Index)
}

func (md *MilestoneDiff) KVStorableValue() []byte {
	byteBuffer := stream.NewByteBuffer()

	// There can't be any errors.
	_ = stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint32, func() (elementsCount int, err error) {
		for _, output := range md.sortedOutputs() {
			_ = stream.WriteBytes(byteBuffer, output.outputID[:])
		}

		return len(md.Outputs), nil
	})

	_ = stream.WriteCollection(byteBuffer, serializer.SeriLengthPrefixTypeAsUint32, func() (elementsCount int, err error) {
		for _, spent := range md.sortedSpents() {
			_ = stream.WriteBytes(byteBuffer, spent.output.outputID[:])
		}

		return len(md.Spents), nil
	})

	_ = stream.Write(byteBuffer, md.TreasuryMutation != nil)
	if md.TreasuryMutation != nil {
		_ = stream.Write(byteBuffer, md.TreasuryMutation.Previous)
		_ = stream.Write(byteBuffer, md.TreasuryMutation.New)
	}

	return lo.PanicOnErr(byteBuffer.Bytes())
}

// note that this method relies on the data being available within other "tables".
func (md *MilestoneDiff) kvStorableLoad(manager *Manager, key []byte, value []byte) error {
	var err error

	if md.Index, _, err = model.MilestoneIndexFromBigEndianBytes(key[1:]); err != nil {
		return err
	}

	byteReader := stream.NewByteReader(value)

	outputsCount, err := stream.PeekSize(byteReader, serializer.SeriLengthPrefixTypeAsUint32)
	if err != nil {
		return ierrors.Wrap(err, "unable to peek outputs count")
	}

	outputs := make(Outputs, outputsCount)
	if err = stream.ReadCollection(byteReader, serializer.SeriLengthPrefixTypeAsUint32, func(i int) error {
		outputID, err := stream.ReadObject(byteReader, model.OutputIDLength, model.OutputIDFromBytes)
		if err != nil {
			return ierrors.Wrap(err, "unable to read outputID")
		}

		output, err := manager.ReadOutputByOutputIDWithoutLocking(outputID)
		if err != nil {
			return err
		}

		outputs[i] = output

		return nil
	}); err != nil {
		return ierrors.Wrapf(err, "unable to read milestone diff outputs")
	}

	spentsCount, err := stream.PeekSize(byteReader, serializer.SeriLengthPrefixTypeAsUint32)
	if err != nil {
		return ierrors.Wrap(err, "unable to peek spents count")
	}

	spents := make(Spents, spentsCount)
	if err = stream.ReadCollection(byteReader, serializer.SeriLengthPrefixTypeAsUint32, func(i int) error {
		outputID, err := stream.ReadObject(byteReader, model.OutputIDLength, model.OutputIDFromBytes)
		if err != nil {
			return ierrors.Wrap(err, "unable to read outputID")
		}

		spent, err := manager.ReadSpentForOutputIDWithoutLocking(outputID)
		if err != nil {
			return err
		}

		spents[i] = spent

		return nil
	}); err != nil {
		return ierrors.Wrapf(err, "unable to read milestone diff spents")
	}

	hasTreasuryMutation, err := stream.Read[bool](byteReader)
	if err != nil {
		return ierrors.Wrap(err, "unable to read treasury mutation flag")
	}
	if hasTreasuryMutation {
		mutation := &TreasuryMutation{}
		if mutation.Previous, err = stream.Read[uint64](byteReader); err != nil {
			return ierrors.Wrap(err, "unable to read previous treasury")
		}
		if mutation.New, err = stream.Read[uint64](byteReader); err != nil {
			return ierrors.Wrap(err, "unable to read new treasury")
		}
		md.TreasuryMutation = mutation
	}

	md.Outputs = outputs
	md.Spents = spents

	return nil
}

func (md *MilestoneDiff) sortedOutputs() LexicalOrderedOutputs {
	// do not sort in place
	sortedOutputs := make(LexicalOrderedOutputs, len(md.Outputs))
	copy(sortedOutputs, md.Outputs)
	sort.Sort(sortedOutputs)

	return sortedOutputs
}

func (md *MilestoneDiff) sortedSpents() LexicalOrderedSpents {
	// do not sort in place
	sortedSpents := make(LexicalOrderedSpents, len(md.Spents))
	copy(sortedSpents, md.Spents)
	sort.Sort(sortedSpents)

	return sortedSpents
}

// SHA256Sum computes the sha256 of the milestone diff byte representation.
func (md *MilestoneDiff) SHA256Sum() ([]byte, error) {
	mdDiffHash := sha256.New()

	if err := stream.WriteBytes(mdDiffHash, md.KVStorableKey()); err != nil {
		return nil, ierrors.Wrap(err, "unable to serialize milestone diff")
	}

	if err := stream.WriteBytes(mdDiffHash, md.KVStorableValue()); err != nil {
		return nil, ierrors.Wrap(err, "unable to serialize milestone diff")
	}

	// calculate sha256 hash
	return mdDiffHash.Sum(nil), nil
}

// DB helper functions.

func storeDiff(diff *MilestoneDiff, mutations kvstore.BatchedMutations) error {
	return mutations.Set(diff.KVStorableKey(), diff.KVStorableValue())
}

func deleteDiff(index model.MilestoneIndex, mutations kvstore.BatchedMutations) error {
	return mutations.Delete(milestoneDiffKeyForIndex(index))
}

// Manager functions.

func (m *Manager) MilestoneDiffWithoutLocking(index model.MilestoneIndex) (*MilestoneDiff, error) {
	key := milestoneDiffKeyForIndex(index)

	value, err := m.store.Get(key)
	if err != nil {
		return nil, err
	}

	diff := &MilestoneDiff{}
	if err := diff.kvStorableLoad(m, key, value); err != nil {
		return nil, err
	}

	return diff, nil
}

func (m *Manager) MilestoneDiff(index model.MilestoneIndex) (*MilestoneDiff, error) {
	m.ReadLockLedger()
	defer m.ReadUnlockLedger()

	return m.MilestoneDiffWithoutLocking(index)
}

// code guards.
var _ kvStorable = &MilestoneDiff{}
