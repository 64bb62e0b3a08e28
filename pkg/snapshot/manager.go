package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	copydir "github.com/otiai10/copy"
	"go.uber.org/atomic"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/ioutils"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/tangle"
	"github.com/iotaledger/tangle-core/pkg/utils"
)

// Manager writes and loads full ledger snapshots.
type Manager struct {
	Events *Events

	logger  log.Logger
	tangle  *tangle.Tangle
	ledger  *utxo.Manager
	pruning *pruning.Manager

	isSnapshotting *atomic.Bool

	optsFilePath         string
	optsArchiveDirectory string
}

func New(logger log.Logger, tangle *tangle.Tangle, ledger *utxo.Manager, pruningManager *pruning.Manager, opts ...options.Option[Manager]) *Manager {
	return options.Apply(&Manager{
		Events:         NewEvents(),
		logger:         logger,
		tangle:         tangle,
		ledger:         ledger,
		pruning:        pruningManager,
		isSnapshotting: atomic.NewBool(false),
		optsFilePath:   "snapshot.bin",
	}, opts)
}

func (m *Manager) FilePath() string {
	return m.optsFilePath
}

// ShouldTakeSnapshot reports whether the policy asks for a snapshot at the given confirmed index.
func (m *Manager) ShouldTakeSnapshot(confirmedIndex model.MilestoneIndex) bool {
	return m.pruning.Policy().ShouldSnapshot(confirmedIndex, m.tangle.SnapshotIndex())
}

// CreateSnapshotForConfirmedIndex creates the snapshot the policy targets at the given confirmed index.
func (m *Manager) CreateSnapshotForConfirmedIndex(ctx context.Context, confirmedIndex model.MilestoneIndex) error {
	targetIndex, ok := m.pruning.Policy().SnapshotTargetIndex(confirmedIndex)
	if !ok {
		return ierrors.Wrapf(ErrInvalidTargetIndex, "confirmed index %d is below the snapshot depth", confirmedIndex)
	}

	return m.CreateSnapshot(ctx, targetIndex)
}

// CreateSnapshot writes the ledger state at the target index together with the solid entry points
// that replace the history below it. The file is written next to the final path and renamed once complete.
func (m *Manager) CreateSnapshot(ctx context.Context, targetIndex model.MilestoneIndex) error {
	if !m.isSnapshotting.CompareAndSwap(false, true) {
		return ErrSnapshotRunning
	}
	defer m.isSnapshotting.Store(false)

	if pruningIndex, confirmedIndex := m.tangle.PruningIndex(), m.tangle.ConfirmedMilestoneIndex(); targetIndex < pruningIndex || targetIndex > confirmedIndex {
		return ierrors.Wrapf(ErrInvalidTargetIndex, "target %d, pruning index %d, confirmed index %d", targetIndex, pruningIndex, confirmedIndex)
	}

	entries, err := m.pruning.SolidEntryPoints(ctx, targetIndex)
	if err != nil {
		return ierrors.Wrap(err, "failed to compute solid entry points")
	}

	if err := ioutils.CreateDirectory(filepath.Dir(m.optsFilePath), 0o700); err != nil {
		return ierrors.Wrap(err, "failed to create snapshot directory")
	}

	tempFilePath := m.optsFilePath + "_tmp"
	if err := m.writeSnapshot(tempFilePath, targetIndex, entries); err != nil {
		_ = os.Remove(tempFilePath)

		return err
	}

	if err := os.Rename(tempFilePath, m.optsFilePath); err != nil {
		return ierrors.Wrap(err, "failed to move snapshot file")
	}

	if m.optsArchiveDirectory != "" {
		archivePath := filepath.Join(m.optsArchiveDirectory, fmt.Sprintf("snapshot_%d.bin", targetIndex))
		if err := copydir.Copy(m.optsFilePath, archivePath); err != nil {
			return ierrors.Wrapf(err, "failed to archive snapshot to %s", archivePath)
		}
	}

	if err := m.tangle.SetSnapshotIndex(targetIndex); err != nil {
		return err
	}

	m.logger.LogInfo("snapshot created", "index", targetIndex, "solidEntryPoints", len(entries), "path", m.optsFilePath)

	m.Events.Snapshotted.Trigger(targetIndex)

	return nil
}

func (m *Manager) writeSnapshot(filePath string, targetIndex model.MilestoneIndex, entries map[model.BlockID]model.MilestoneIndex) error {
	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return ierrors.Wrapf(err, "failed to create snapshot file %s", filePath)
	}
	defer file.Close()

	header := &Header{
		Version:       FormatVersion,
		SnapshotIndex: targetIndex,
		Timestamp:     m.milestoneTime(targetIndex),
	}
	if err := header.write(utils.NewPositionedWriter(file)); err != nil {
		return ierrors.Wrap(err, "failed to write snapshot header")
	}

	if err := tangle.WriteSolidEntryPoints(file, entries); err != nil {
		return err
	}

	if err := m.ledger.Export(file, targetIndex); err != nil {
		return ierrors.Wrap(err, "failed to write ledger state")
	}

	return file.Sync()
}

// milestoneTime returns the timestamp of the target milestone, if it is still known.
func (m *Manager) milestoneTime(targetIndex model.MilestoneIndex) time.Time {
	if record, exists, err := m.tangle.Milestone(targetIndex); err == nil && exists {
		return time.Unix(int64(record.Timestamp), 0)
	}

	return time.Unix(0, 0)
}

// LoadSnapshot seeds an empty database from a snapshot file and returns its header.
func (m *Manager) LoadSnapshot(filePath string) (*Header, error) {
	ledgerIndex, err := m.ledger.ReadLedgerIndex()
	if err != nil {
		return nil, err
	}
	if ledgerIndex != 0 || m.tangle.ConfirmedMilestoneIndex() != 0 {
		return nil, ierrors.Wrapf(ErrNotEmpty, "ledger index %d, confirmed index %d", ledgerIndex, m.tangle.ConfirmedMilestoneIndex())
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, ierrors.Wrapf(err, "failed to open snapshot file %s", filePath)
	}
	defer file.Close()

	header, err := ReadHeader(file)
	if err != nil {
		return nil, err
	}

	if err := m.tangle.SolidEntryPoints().Import(file); err != nil {
		return nil, err
	}

	if err := m.ledger.Import(file); err != nil {
		return nil, ierrors.Wrap(err, "failed to import ledger state")
	}

	if ledgerIndex, err = m.ledger.ReadLedgerIndex(); err != nil {
		return nil, err
	}
	if ledgerIndex != header.SnapshotIndex {
		return nil, ierrors.Wrapf(ErrInvalidTargetIndex, "ledger was rolled back to %d instead of %d", ledgerIndex, header.SnapshotIndex)
	}

	if err := m.tangle.InitializeFromSnapshot(header.SnapshotIndex); err != nil {
		return nil, err
	}

	m.logger.LogInfo("snapshot loaded", "index", header.SnapshotIndex, "solidEntryPoints", m.tangle.SolidEntryPoints().Size())

	return header, nil
}
