package tangle

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// Milestone is the stored record of a validated milestone.
type Milestone struct {
	Index       model.MilestoneIndex
	MilestoneID model.MilestoneID
	BlockID     model.BlockID
	Timestamp   uint32
}

func (m *Milestone) Bytes() ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	if err := stream.Write(byteBuffer, m.Index); err != nil {
		return nil, ierrors.Wrap(err, "failed to write milestone index")
	}
	if err := stream.Write(byteBuffer, m.MilestoneID); err != nil {
		return nil, ierrors.Wrap(err, "failed to write milestone id")
	}
	if err := stream.Write(byteBuffer, m.BlockID); err != nil {
		return nil, ierrors.Wrap(err, "failed to write block id")
	}
	if err := stream.Write(byteBuffer, m.Timestamp); err != nil {
		return nil, ierrors.Wrap(err, "failed to write timestamp")
	}

	return byteBuffer.Bytes()
}

func MilestoneFromBytes(b []byte) (*Milestone, int, error) {
	reader := stream.NewByteReader(b)

	m := &Milestone{}

	var err error
	if m.Index, err = stream.Read[model.MilestoneIndex](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read milestone index")
	}
	if m.MilestoneID, err = stream.Read[model.MilestoneID](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read milestone id")
	}
	if m.BlockID, err = stream.Read[model.BlockID](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read block id")
	}
	if m.Timestamp, err = stream.Read[uint32](reader); err != nil {
		return nil, 0, ierrors.Wrap(err, "failed to read timestamp")
	}

	return m, reader.BytesRead(), nil
}

// StoreMilestone records a validated milestone carried by the given block, flags the block as milestone
// and raises the latest milestone index. It returns false if the milestone was already stored.
func (t *Tangle) StoreMilestone(blockID model.BlockID, milestone *model.Milestone) (*Milestone, bool, error) {
	record := &Milestone{
		Index:       milestone.Index,
		MilestoneID: milestone.ID(),
		BlockID:     blockID,
		Timestamp:   milestone.Timestamp,
	}

	existing, exists, err := t.Milestone(record.Index)
	if err != nil {
		return nil, false, err
	}
	if exists {
		if existing.MilestoneID != record.MilestoneID {
			return nil, false, ierrors.Wrapf(ErrMilestoneConflict, "milestone %d: stored %s, received %s", record.Index, existing.MilestoneID, record.MilestoneID)
		}

		return existing, false, nil
	}

	if _, err := t.UpdateMetadata(blockID, func(metadata *model.BlockMetadata) {
		metadata.SetMilestone(record.Index)
	}); err != nil {
		return nil, false, err
	}

	mutations, err := t.store.Batched()
	if err != nil {
		return nil, false, err
	}
	if err := t.stageMilestone(mutations, record); err != nil {
		mutations.Cancel()
		return nil, false, err
	}
	if err := mutations.Commit(); err != nil {
		return nil, false, ierrors.Wrapf(err, "failed to commit milestone %d", record.Index)
	}

	t.Events.MilestoneStored.Trigger(record)

	if _, err := t.RaiseLatestMilestoneIndex(record.Index); err != nil {
		return nil, false, err
	}

	return record, true, nil
}

func (t *Tangle) stageMilestone(mutations kvstore.BatchedMutations, record *Milestone) error {
	if err := mutations.Set(milestoneKey(record.Index), lo.PanicOnErr(record.Bytes())); err != nil {
		return err
	}

	return mutations.Set(milestoneIDKey(record.MilestoneID), lo.PanicOnErr(record.Index.Bytes()))
}

// Milestone returns the milestone record stored for the given index.
func (t *Tangle) Milestone(index model.MilestoneIndex) (*Milestone, bool, error) {
	record, err := t.milestones.Get(index)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, false, nil
		}

		return nil, false, ierrors.Wrapf(err, "failed to load milestone %d", index)
	}

	return record, true, nil
}

// MilestoneIndexByID returns the index of the milestone with the given id.
func (t *Tangle) MilestoneIndexByID(milestoneID model.MilestoneID) (model.MilestoneIndex, bool, error) {
	index, err := t.milestoneIndexByID.Get(milestoneID)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return 0, false, nil
		}

		return 0, false, ierrors.Wrapf(err, "failed to load index of milestone %s", milestoneID)
	}

	return index, true, nil
}

// MilestonePayload loads the milestone payload stored for the given index.
func (t *Tangle) MilestonePayload(index model.MilestoneIndex) (*model.Milestone, *Milestone, error) {
	record, exists, err := t.Milestone(index)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, ierrors.Wrapf(ErrMilestoneNotFound, "index %d", index)
	}

	block, exists, err := t.Block(record.BlockID)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, ierrors.Wrapf(ErrBlockNotFound, "milestone %d block %s", index, record.BlockID)
	}

	milestone, isMilestone := block.Milestone()
	if !isMilestone {
		return nil, nil, ierrors.Errorf("block %s of milestone %d carries no milestone payload", record.BlockID, index)
	}

	return milestone, record, nil
}

// StageDeleteMilestone removes the milestone record within the given batch.
func (t *Tangle) StageDeleteMilestone(mutations kvstore.BatchedMutations, index model.MilestoneIndex) error {
	record, exists, err := t.Milestone(index)
	if err != nil || !exists {
		return err
	}

	if err := mutations.Delete(milestoneIDKey(record.MilestoneID)); err != nil {
		return err
	}

	return mutations.Delete(milestoneKey(index))
}
