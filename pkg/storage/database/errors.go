package database

import "github.com/iotaledger/hive.go/ierrors"

var (
	ErrDatabaseCorrupted = ierrors.New("database is corrupted")
	ErrUnsupportedEngine = ierrors.New("unsupported database engine")
)
