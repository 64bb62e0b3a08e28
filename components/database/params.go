package database

import (
	"github.com/iotaledger/hive.go/app"
)

// ParametersDatabase contains the definition of configuration parameters used by the storage layer.
type ParametersDatabase struct {
	// Engine defines the used database engine (rocksdb/mapdb).
	Engine string `default:"rocksdb" usage:"the used database engine (rocksdb/mapdb)"`
	// Path defines the path to the database folder.
	Path string `default:"testnet/database" usage:"the path to the database folder"`
	// AutoRevalidation defines whether to automatically start revalidation on startup if the database is corrupted.
	AutoRevalidation bool `default:"false" usage:"whether to automatically start revalidation on startup if the database is corrupted"`
	// CheckLedgerStateOnStartup defines whether to check the ledger state against the total supply on startup.
	CheckLedgerStateOnStartup bool `default:"false" usage:"whether to check the ledger state on startup"`
}

// ParamsDatabase contains the configuration used by the database component.
var ParamsDatabase = &ParametersDatabase{}

var params = &app.ComponentParams{
	Params: map[string]any{
		"db": ParamsDatabase,
	},
}
