package utxo

import (
	"io"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/utils"
)

// Helpers to serialize/deserialize into/from snapshots

func (o *Output) SnapshotBytes() []byte {
	m := marshalutil.New()
	m.WriteBytes(o.outputID[:])
	m.WriteBytes(o.blockID[:])
	m.WriteUint32(uint32(o.milestoneIndexBooked))
	m.WriteUint32(o.milestoneTimestampBooked)
	m.WriteBytes(lo.PanicOnErr(o.output.Bytes()))

	return m.Bytes()
}

func OutputFromSnapshotReader(reader io.ReadSeeker) (*Output, error) {
	outputID, err := stream.ReadObject(reader, model.OutputIDLength, model.OutputIDFromBytes)
	if err != nil {
		return nil, ierrors.Errorf("unable to read LS output ID: %w", err)
	}

	blockID, err := stream.Read[model.BlockID](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read LS block ID: %w", err)
	}

	indexBooked, err := stream.Read[model.MilestoneIndex](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read LS output milestone index booked: %w", err)
	}

	timestampBooked, err := stream.Read[uint32](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read LS output milestone timestamp booked: %w", err)
	}

	address, err := stream.Read[model.Address](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read LS output address: %w", err)
	}

	amount, err := stream.Read[uint64](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read LS output amount: %w", err)
	}

	return NewOutput(outputID, blockID, indexBooked, timestampBooked, &model.Output{Address: address, Amount: amount}), nil
}

func (s *Spent) SnapshotBytes() []byte {
	m := marshalutil.New()
	m.WriteBytes(s.Output().SnapshotBytes())
	m.WriteBytes(s.transactionIDSpent[:])
	m.WriteUint32(s.milestoneTimestampSpent)
	// we don't need to write indexSpent because this info is available in the milestoneDiff that consumes the output
	return m.Bytes()
}

func SpentFromSnapshotReader(reader io.ReadSeeker, indexSpent model.MilestoneIndex) (*Spent, error) {
	output, err := OutputFromSnapshotReader(reader)
	if err != nil {
		return nil, err
	}

	transactionIDSpent, err := stream.Read[model.TransactionID](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read LS transaction ID spent: %w", err)
	}

	timestampSpent, err := stream.Read[uint32](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read LS output milestone timestamp spent: %w", err)
	}

	return NewSpent(output, transactionIDSpent, indexSpent, timestampSpent), nil
}

func ReadMilestoneDiffFromSnapshotReader(reader io.ReadSeeker) (*MilestoneDiff, error) {
	milestoneDiff := &MilestoneDiff{}

	var err error
	if milestoneDiff.Index, err = stream.Read[model.MilestoneIndex](reader); err != nil {
		return nil, ierrors.Errorf("unable to read milestone diff index: %w", err)
	}

	createdCount, err := stream.Read[uint64](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read milestone diff created count: %w", err)
	}

	milestoneDiff.Outputs = make(Outputs, createdCount)

	for i := uint64(0); i < createdCount; i++ {
		milestoneDiff.Outputs[i], err = OutputFromSnapshotReader(reader)
		if err != nil {
			return nil, ierrors.Errorf("unable to read milestone diff output: %w", err)
		}
	}

	consumedCount, err := stream.Read[uint64](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read milestone diff consumed count: %w", err)
	}

	milestoneDiff.Spents = make(Spents, consumedCount)

	for i := uint64(0); i < consumedCount; i++ {
		milestoneDiff.Spents[i], err = SpentFromSnapshotReader(reader, milestoneDiff.Index)
		if err != nil {
			return nil, ierrors.Errorf("unable to read milestone diff spent: %w", err)
		}
	}

	hasTreasuryMutation, err := stream.Read[bool](reader)
	if err != nil {
		return nil, ierrors.Errorf("unable to read milestone diff treasury flag: %w", err)
	}
	if hasTreasuryMutation {
		mutation := &TreasuryMutation{}
		if mutation.Previous, err = stream.Read[uint64](reader); err != nil {
			return nil, ierrors.Errorf("unable to read milestone diff previous treasury: %w", err)
		}
		if mutation.New, err = stream.Read[uint64](reader); err != nil {
			return nil, ierrors.Errorf("unable to read milestone diff new treasury: %w", err)
		}
		milestoneDiff.TreasuryMutation = mutation
	}

	return milestoneDiff, nil
}

func WriteMilestoneDiffToSnapshotWriter(writer io.WriteSeeker, diff *MilestoneDiff) (written int64, err error) {
	var totalBytesWritten int64

	if err := utils.WriteValueFunc(writer, uint32(diff.Index), &totalBytesWritten); err != nil {
		return 0, ierrors.Wrap(err, "unable to write milestone diff index")
	}

	if err := utils.WriteValueFunc(writer, uint64(len(diff.Outputs)), &totalBytesWritten); err != nil {
		return 0, ierrors.Wrap(err, "unable to write milestone diff created count")
	}

	for _, output := range diff.sortedOutputs() {
		if err := utils.WriteBytesFunc(writer, output.SnapshotBytes(), &totalBytesWritten); err != nil {
			return 0, ierrors.Wrap(err, "unable to write milestone diff created output")
		}
	}

	if err := utils.WriteValueFunc(writer, uint64(len(diff.Spents)), &totalBytesWritten); err != nil {
		return 0, ierrors.Wrap(err, "unable to write milestone diff consumed count")
	}

	for _, spent := range diff.sortedSpents() {
		if err := utils.WriteBytesFunc(writer, spent.SnapshotBytes(), &totalBytesWritten); err != nil {
			return 0, ierrors.Wrap(err, "unable to write milestone diff consumed output")
		}
	}

	if err := utils.WriteValueFunc(writer, diff.TreasuryMutation != nil, &totalBytesWritten); err != nil {
		return 0, ierrors.Wrap(err, "unable to write milestone diff treasury flag")
	}
	if diff.TreasuryMutation != nil {
		if err := utils.WriteValueFunc(writer, diff.TreasuryMutation.Previous, &totalBytesWritten); err != nil {
			return 0, ierrors.Wrap(err, "unable to write milestone diff previous treasury")
		}
		if err := utils.WriteValueFunc(writer, diff.TreasuryMutation.New, &totalBytesWritten); err != nil {
			return 0, ierrors.Wrap(err, "unable to write milestone diff new treasury")
		}
	}

	return totalBytesWritten, nil
}

// Import imports the ledger state from the given reader and rolls it back to the target index of the snapshot.
func (m *Manager) Import(reader io.ReadSeeker) error {
	m.WriteLockLedger()
	defer m.WriteUnlockLedger()

	snapshotLedgerIndex, err := stream.Read[model.MilestoneIndex](reader)
	if err != nil {
		return ierrors.Errorf("unable to read LS ledger index: %w", err)
	}

	if err := m.StoreLedgerIndexWithoutLocking(snapshotLedgerIndex); err != nil {
		return err
	}

	treasury, err := stream.Read[uint64](reader)
	if err != nil {
		return ierrors.Errorf("unable to read LS treasury: %w", err)
	}

	if err := m.StoreTreasuryWithoutLocking(treasury); err != nil {
		return err
	}

	outputCount, err := stream.Read[uint64](reader)
	if err != nil {
		return ierrors.Errorf("unable to read LS output count: %w", err)
	}

	milestoneDiffCount, err := stream.Read[uint64](reader)
	if err != nil {
		return ierrors.Errorf("unable to read LS milestone diff count: %w", err)
	}

	for i := uint64(0); i < outputCount; i++ {
		output, err := OutputFromSnapshotReader(reader)
		if err != nil {
			return ierrors.Errorf("at pos %d: %w", i, err)
		}

		if err := m.importUnspentOutputWithoutLocking(output); err != nil {
			return err
		}
	}

	for i := uint64(0); i < milestoneDiffCount; i++ {
		milestoneDiff, err := ReadMilestoneDiffFromSnapshotReader(reader)
		if err != nil {
			return err
		}

		if milestoneDiff.Index != snapshotLedgerIndex-model.MilestoneIndex(i) {
			return ierrors.Errorf("invalid LS milestone index. %d vs %d", milestoneDiff.Index, snapshotLedgerIndex-model.MilestoneIndex(i))
		}

		if err := m.RollbackDiffWithoutLocking(milestoneDiff); err != nil {
			return err
		}
	}

	if err := m.stateTree.Commit(); err != nil {
		return ierrors.Wrap(err, "unable to commit state tree")
	}

	return nil
}

// Export exports the ledger state to the given writer. The diffs back to targetIndex are included
// so that the importer can roll the ledger back to the target index.
func (m *Manager) Export(writer io.WriteSeeker, targetIndex model.MilestoneIndex) error {
	m.ReadLockLedger()
	defer m.ReadUnlockLedger()

	ledgerIndex, err := m.ReadLedgerIndexWithoutLocking()
	if err != nil {
		return err
	}
	if targetIndex > ledgerIndex {
		return ierrors.Errorf("target index %d is above the ledger index %d", targetIndex, ledgerIndex)
	}
	if err := utils.WriteValueFunc(writer, uint32(ledgerIndex)); err != nil {
		return ierrors.Wrap(err, "unable to write ledger index")
	}

	treasury, err := m.ReadTreasuryWithoutLocking()
	if err != nil {
		return err
	}
	if err := utils.WriteValueFunc(writer, treasury); err != nil {
		return ierrors.Wrap(err, "unable to write treasury")
	}

	var relativeCountersPosition int64

	var outputCount uint64
	var milestoneDiffCount uint64

	// Outputs Count
	// The amount of UTXOs contained within this snapshot.
	if err := utils.WriteValueFunc(writer, outputCount, &relativeCountersPosition); err != nil {
		return ierrors.Wrap(err, "unable to write outputs count")
	}

	// Milestone Diffs Count
	// The amount of milestone diffs contained within this snapshot.
	if err := utils.WriteValueFunc(writer, milestoneDiffCount, &relativeCountersPosition); err != nil {
		return ierrors.Wrap(err, "unable to write milestone diffs count")
	}

	// Get all UTXOs and sort them by outputID
	outputIDs, err := m.UnspentOutputsIDs(ReadLockLedger(false))
	if err != nil {
		return ierrors.Wrap(err, "error while retrieving unspent outputIDs")
	}
	outputIDs.Sort()

	for _, outputID := range outputIDs {
		output, err := m.ReadOutputByOutputIDWithoutLocking(outputID)
		if err != nil {
			return ierrors.Wrapf(err, "error while retrieving output %s", outputID)
		}

		if err := utils.WriteBytesFunc(writer, output.SnapshotBytes(), &relativeCountersPosition); err != nil {
			return ierrors.Wrap(err, "unable to write output")
		}

		outputCount++
	}

	for diffIndex := ledgerIndex; diffIndex > targetIndex; diffIndex-- {
		milestoneDiff, err := m.MilestoneDiffWithoutLocking(diffIndex)
		if err != nil {
			return ierrors.Wrapf(err, "error while retrieving milestone diff for milestone %d", diffIndex)
		}

		written, err := WriteMilestoneDiffToSnapshotWriter(writer, milestoneDiff)
		if err != nil {
			return ierrors.Wrapf(err, "error while writing milestone diff for milestone %d", diffIndex)
		}

		relativeCountersPosition += written
		milestoneDiffCount++
	}

	// seek back to the file position of the counters
	if _, err := writer.Seek(-relativeCountersPosition, io.SeekCurrent); err != nil {
		return ierrors.Errorf("unable to seek to LS counter placeholders: %w", err)
	}

	var countersSize int64

	if err := utils.WriteValueFunc(writer, outputCount, &countersSize); err != nil {
		return ierrors.Wrap(err, "unable to write outputs count")
	}

	if err := utils.WriteValueFunc(writer, milestoneDiffCount, &countersSize); err != nil {
		return ierrors.Wrap(err, "unable to write milestone diffs count")
	}

	// seek back to the last write position
	if _, err := writer.Seek(relativeCountersPosition-countersSize, io.SeekCurrent); err != nil {
		return ierrors.Errorf("unable to seek to LS last written position: %w", err)
	}

	return nil
}

// Rollback rolls back ledger state to the given target milestone.
func (m *Manager) Rollback(targetIndex model.MilestoneIndex) error {
	m.WriteLockLedger()
	defer m.WriteUnlockLedger()

	ledgerIndex, err := m.ReadLedgerIndexWithoutLocking()
	if err != nil {
		return err
	}

	for diffIndex := ledgerIndex; diffIndex > targetIndex; diffIndex-- {
		milestoneDiff, err := m.MilestoneDiffWithoutLocking(diffIndex)
		if err != nil {
			return err
		}

		if err := m.RollbackDiffWithoutLocking(milestoneDiff); err != nil {
			return err
		}
	}

	return nil
}
