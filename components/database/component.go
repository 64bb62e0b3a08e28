package database

import (
	"context"
	"os"

	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/tangle-core/pkg/daemon"
	"github.com/iotaledger/tangle-core/pkg/storage/database"
)

const (
	// DatabaseVersion is the schema version of the node database.
	DatabaseVersion byte = 1
)

func init() {
	Component = &app.Component{
		Name:     "Database",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Params:   params,
		Provide:  provide,
		Run:      run,
	}
}

var (
	Component *app.Component
	deps      dependencies
)

type dependencies struct {
	dig.In

	DatabaseInstance *database.DBInstance
}

func provide(c *dig.Container) error {
	if err := c.Provide(func() (*database.DBInstance, error) {
		engine, err := database.EngineFromString(ParamsDatabase.Engine)
		if err != nil {
			return nil, err
		}

		dbConfig := database.Config{
			Engine:       engine,
			Directory:    ParamsDatabase.Path,
			Version:      DatabaseVersion,
			PrefixHealth: []byte{database.StorePrefixHealth},
		}

		Component.LogInfof("opening %s database in %s ...", engine, ParamsDatabase.Path)

		instance, err := database.NewDBInstance(dbConfig)
		if err == nil || !ierrors.Is(err, database.ErrDatabaseCorrupted) || !ParamsDatabase.AutoRevalidation {
			return instance, err
		}

		// the node starts over from the configured snapshot
		Component.LogWarnf("database is corrupted, deleting %s and starting from the snapshot ...", ParamsDatabase.Path)
		if err := os.RemoveAll(ParamsDatabase.Path); err != nil {
			return nil, ierrors.Wrapf(err, "failed to remove corrupted database %s", ParamsDatabase.Path)
		}

		return database.NewDBInstance(dbConfig)
	}); err != nil {
		return err
	}

	return c.Provide(func(instance *database.DBInstance) kvstore.KVStore {
		return instance.KVStore()
	})
}

func run() error {
	return Component.Daemon().BackgroundWorker("Close database", func(ctx context.Context) {
		<-ctx.Done()

		Component.LogInfo("Syncing databases to disk ...")
		if err := deps.DatabaseInstance.Close(); err != nil {
			Component.LogErrorf("failed to close database: %s", err)
		}
		Component.LogInfo("Syncing databases to disk ... done")
	}, daemon.PriorityCloseDatabase)
}
