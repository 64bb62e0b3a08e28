package database

import (
	"runtime"
	"strings"

	"go.uber.org/atomic"

	"github.com/iotaledger/hive.go/db"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/kvstore/rocksdb"
	"github.com/iotaledger/hive.go/runtime/ioutils"
)

// DBInstance owns the single key-value store shared by the tangle and the ledger.
type DBInstance struct {
	store         kvstore.KVStore
	healthTracker *kvstore.StoreHealthTracker
	dbConfig      Config
	// corrupted is set once the content of the store can no longer be trusted.
	corrupted *atomic.Bool
}

func NewDBInstance(dbConfig Config) (*DBInstance, error) {
	store, err := StoreWithDefaultSettings(dbConfig.Directory, true, dbConfig.Engine)
	if err != nil {
		return nil, err
	}

	return NewDBInstanceFromStore(store, dbConfig)
}

// NewMemDBInstance wraps an in-memory store, used by tests and tools.
func NewMemDBInstance() *DBInstance {
	instance, err := NewDBInstanceFromStore(mapdb.NewMapDB(), Config{
		Engine:       db.EngineMapDB,
		Version:      1,
		PrefixHealth: []byte{StorePrefixHealth},
	})
	if err != nil {
		panic(err)
	}

	return instance
}

// NewDBInstanceFromStore refuses stores that were not closed properly and marks the store as in use.
func NewDBInstanceFromStore(store kvstore.KVStore, dbConfig Config) (*DBInstance, error) {
	storeHealthTracker, err := kvstore.NewStoreHealthTracker(store, dbConfig.PrefixHealth, dbConfig.Version, nil)
	if err != nil {
		return nil, ierrors.Wrapf(err, "database in %s is corrupted, delete database and resync node", dbConfig.Directory)
	}

	if corrupted, err := storeHealthTracker.IsCorrupted(); err != nil {
		return nil, err
	} else if corrupted {
		return nil, ierrors.Wrapf(ErrDatabaseCorrupted, "database in %s was not shut down properly", dbConfig.Directory)
	}

	if err = storeHealthTracker.MarkCorrupted(); err != nil {
		return nil, err
	}

	return &DBInstance{
		store:         store,
		healthTracker: storeHealthTracker,
		dbConfig:      dbConfig,
		corrupted:     atomic.NewBool(false),
	}, nil
}

// StoreWithDefaultSettings opens the key-value store for the given engine.
func StoreWithDefaultSettings(directory string, createDatabaseIfNotExists bool, dbEngine db.Engine) (kvstore.KVStore, error) {
	switch dbEngine {
	case db.EngineRocksDB:
		if !createDatabaseIfNotExists {
			exists, isDirectory, err := ioutils.PathExists(directory)
			if err != nil {
				return nil, err
			}
			if !exists || !isDirectory {
				return nil, ierrors.Errorf("database not found: %s", directory)
			}
		}

		rocksDB, err := rocksdb.CreateDB(directory,
			rocksdb.IncreaseParallelism(runtime.NumCPU()-1),
			rocksdb.Custom([]string{
				"periodic_compaction_seconds=43200",
				"level_compaction_dynamic_level_bytes=true",
				"keep_log_file_num=2",
				"max_log_file_size=50000000",
			}),
		)
		if err != nil {
			return nil, ierrors.Wrapf(err, "failed to create rocksdb in %s", directory)
		}

		return rocksdb.New(rocksDB), nil

	case db.EngineMapDB:
		return mapdb.NewMapDB(), nil

	default:
		return nil, ierrors.Wrapf(ErrUnsupportedEngine, "%s", dbEngine)
	}
}

func (d *DBInstance) KVStore() kvstore.KVStore {
	return d.store
}

func (d *DBInstance) Config() Config {
	return d.dbConfig
}

// MarkCorrupted flags the store so that the next start refuses to open it.
func (d *DBInstance) MarkCorrupted() error {
	d.corrupted.Store(true)

	return d.healthTracker.MarkCorrupted()
}

func (d *DBInstance) IsCorrupted() bool {
	return d.corrupted.Load()
}

// Size returns the on-disk size of the database. In-memory stores report zero.
func (d *DBInstance) Size() (int64, error) {
	if d.dbConfig.Engine != db.EngineRocksDB {
		return 0, nil
	}

	return ioutils.FolderSize(d.dbConfig.Directory)
}

// Close flushes the store and marks it healthy. A store marked corrupted while running stays corrupted.
func (d *DBInstance) Close() error {
	if !d.IsCorrupted() {
		if err := d.healthTracker.MarkHealthy(); err != nil {
			return err
		}
	}

	if err := d.store.Flush(); err != nil {
		return err
	}

	return d.store.Close()
}

// EngineFromString parses a configured engine name.
func EngineFromString(engine string) (db.Engine, error) {
	switch dbEngine := db.Engine(strings.ToLower(engine)); dbEngine {
	case db.EngineRocksDB, db.EngineMapDB:
		return dbEngine, nil
	default:
		return "", ierrors.Wrapf(ErrUnsupportedEngine, "%s", engine)
	}
}
