package pruning

import "github.com/iotaledger/hive.go/ierrors"

var (
	ErrPruningRunning   = ierrors.New("pruning is already running")
	ErrNotEnoughHistory = ierrors.New("not enough history to compute solid entry points")
)
