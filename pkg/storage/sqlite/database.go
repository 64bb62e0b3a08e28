package sqlite

import (
	"path/filepath"

	"gorm.io/gorm"

	"github.com/iotaledger/hive.go/db"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/ioutils"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/hive.go/sql"
)

// ExecFunc runs a function against the database while holding the access lock.
type ExecFunc func(func(*gorm.DB) error) error

// Database is a gorm SQLite database that can be closed while other goroutines still hold an ExecFunc.
type Database struct {
	logger       log.Logger
	directory    string
	filename     string
	errorHandler func(error)

	accessMutex *syncutils.StarvingMutex
	database    *gorm.DB
}

// New opens or creates the SQLite database file in the given directory.
func New(logger log.Logger, directory string, filename string, errorHandler func(error)) (*Database, error) {
	d := &Database{
		logger:       logger,
		directory:    directory,
		filename:     filename,
		errorHandler: errorHandler,
		accessMutex:  syncutils.NewStarvingMutex(),
	}

	if err := d.openDatabaseWithoutLocking(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Database) openDatabaseWithoutLocking() error {
	if err := ioutils.CreateDirectory(d.directory, 0o700); err != nil {
		return ierrors.Wrapf(err, "failed to create database directory %s", d.directory)
	}

	gormDB, _, err := sql.New(
		d.logger,
		sql.DatabaseParameters{
			Engine:   db.EngineSQLite,
			Path:     d.directory,
			Filename: d.filename,
		},
		true,
		[]db.Engine{db.EngineSQLite},
	)
	if err != nil {
		return ierrors.Wrapf(err, "failed to create/open SQLite database: %s", filepath.Join(d.directory, d.filename))
	}

	d.database = gormDB

	return nil
}

func (d *Database) closeDatabaseWithoutLocking() error {
	sqlDB, err := d.database.DB()
	if err != nil {
		return ierrors.Wrapf(err, "failed to get SQLite database: %s", filepath.Join(d.directory, d.filename))
	}

	return sqlDB.Close()
}

// ExecDBFunc returns a function that executes its argument with the database locked for reading.
func (d *Database) ExecDBFunc() ExecFunc {
	return func(dbFunc func(*gorm.DB) error) error {
		d.accessMutex.RLock()
		defer d.accessMutex.RUnlock()

		return dbFunc(d.database)
	}
}

// Size returns the size of the database directory on disk.
func (d *Database) Size() int64 {
	folderSize, err := ioutils.FolderSize(d.directory)
	if err != nil {
		d.errorHandler(ierrors.Wrapf(err, "get folder size failed for %s", d.directory))
	}

	return folderSize
}

// Shutdown closes the database.
func (d *Database) Shutdown() {
	d.accessMutex.Lock()
	defer d.accessMutex.Unlock()

	if err := d.closeDatabaseWithoutLocking(); err != nil {
		d.errorHandler(ierrors.Wrap(err, "failed to close SQLite database"))
	}
}
