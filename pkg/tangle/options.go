package tangle

import (
	"time"

	"github.com/iotaledger/hive.go/runtime/options"
)

// WithBlockCacheSize sets the maximum size in bytes of the block bytes cache.
func WithBlockCacheSize(size int) options.Option[Tangle] {
	return func(t *Tangle) {
		t.optsBlockCacheSize = size
	}
}

// WithMetadataCacheSize sets the number of block metadata entries kept in memory.
func WithMetadataCacheSize(count int) options.Option[Tangle] {
	return func(t *Tangle) {
		t.optsMetadataCacheSize = count
	}
}

// WithTimeProvider overrides the clock used for arrival and solidification times.
func WithTimeProvider(now func() time.Time) options.Option[Tangle] {
	return func(t *Tangle) {
		t.optsTimeProvider = now
	}
}
