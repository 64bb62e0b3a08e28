package snapshot

import (
	"io"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/utils"
)

// FormatVersion is the version of the snapshot file layout.
const FormatVersion byte = 1

// Header is the fixed size prefix of a snapshot file.
// It is followed by the solid entry points and the ledger state.
type Header struct {
	Version       byte
	SnapshotIndex model.MilestoneIndex
	Timestamp     time.Time
}

func (h *Header) write(writer *utils.PositionedWriter) error {
	if err := writer.WriteValue("version", h.Version); err != nil {
		return err
	}
	if err := writer.WriteValue("snapshot index", uint32(h.SnapshotIndex)); err != nil {
		return err
	}

	return writer.WriteValue("timestamp", h.Timestamp.Unix())
}

// ReadHeader reads the header at the current position of the reader.
func ReadHeader(reader io.ReadSeeker) (*Header, error) {
	version, err := stream.Read[byte](reader)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to read snapshot version")
	}
	if version != FormatVersion {
		return nil, ierrors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}

	snapshotIndex, err := stream.Read[model.MilestoneIndex](reader)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to read snapshot index")
	}

	timestamp, err := stream.Read[int64](reader)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to read snapshot timestamp")
	}

	return &Header{
		Version:       version,
		SnapshotIndex: snapshotIndex,
		Timestamp:     time.Unix(timestamp, 0),
	}, nil
}
