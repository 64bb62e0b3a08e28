package snapshot

import (
	"github.com/iotaledger/hive.go/runtime/options"
)

// WithFilePath sets the path the snapshot is written to.
func WithFilePath(filePath string) options.Option[Manager] {
	return func(m *Manager) {
		m.optsFilePath = filePath
	}
}

// WithArchiveDirectory keeps a copy of every created snapshot in the given directory.
func WithArchiveDirectory(directory string) options.Option[Manager] {
	return func(m *Manager) {
		m.optsArchiveDirectory = directory
	}
}
