package snapshot

import "github.com/iotaledger/hive.go/ierrors"

var (
	ErrUnsupportedVersion = ierrors.New("unsupported snapshot version")
	ErrInvalidTargetIndex = ierrors.New("invalid snapshot target index")
	ErrNotEmpty           = ierrors.New("snapshots can only be loaded into an empty database")
	ErrSnapshotRunning    = ierrors.New("snapshot creation is already running")
)
