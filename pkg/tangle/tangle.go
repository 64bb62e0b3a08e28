package tangle

import (
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/zyedidia/generic/cache"

	"github.com/iotaledger/hive.go/ds/shrinkingmap"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/storage/database"
)

const blockLockStripes = 256

// Tangle stores blocks, their metadata and the parent/child adjacency, and keeps track of
// the tips, the solid entry points and the milestone index pointers.
type Tangle struct {
	Events *Events

	logger log.Logger
	store  kvstore.KVStore

	blocks             *kvstore.TypedStore[model.BlockID, *model.Block]
	milestones         *kvstore.TypedStore[model.MilestoneIndex, *Milestone]
	milestoneIndexByID *kvstore.TypedStore[model.MilestoneID, model.MilestoneIndex]

	blockCache         *fastcache.Cache
	metadataCache      *cache.Cache[model.BlockID, *model.BlockMetadata]
	metadataCacheMutex syncutils.Mutex

	// blockLocks serialize writers of the same block without locking the whole store.
	blockLocks [blockLockStripes]syncutils.Mutex

	tips             *shrinkingmap.ShrinkingMap[model.BlockID, time.Time]
	solidEntryPoints *SolidEntryPoints

	latestMilestoneIndex    *model.StoredIndex
	confirmedMilestoneIndex *model.StoredIndex
	pruningIndex            *model.StoredIndex
	snapshotIndex           *model.StoredIndex
	indexMutex              syncutils.RWMutex

	optsBlockCacheSize    int
	optsMetadataCacheSize int
	optsTimeProvider      func() time.Time
}

func New(logger log.Logger, store kvstore.KVStore, opts ...options.Option[Tangle]) (*Tangle, error) {
	t := options.Apply(&Tangle{
		Events:                NewEvents(),
		logger:                logger,
		store:                 store,
		tips:                  shrinkingmap.New[model.BlockID, time.Time](),
		optsBlockCacheSize:    32 << 20,
		optsMetadataCacheSize: 100_000,
		optsTimeProvider:      time.Now,
	}, opts, func(t *Tangle) {
		t.blocks = kvstore.NewTypedStore(realm(store, database.StorePrefixBlocks),
			model.BlockID.Bytes, model.BlockIDFromBytes,
			(*model.Block).Bytes, model.BlockFromBytesFunc,
		)
		t.milestones = kvstore.NewTypedStore(realm(store, database.StorePrefixMilestones),
			milestoneIndexBigEndianBytes, model.MilestoneIndexFromBigEndianBytes,
			(*Milestone).Bytes, MilestoneFromBytes,
		)
		t.milestoneIndexByID = kvstore.NewTypedStore(realm(store, database.StorePrefixMilestoneIndexByID),
			model.MilestoneID.Bytes, model.MilestoneIDFromBytes,
			model.MilestoneIndex.Bytes, model.MilestoneIndexFromBytes,
		)

		t.blockCache = fastcache.New(t.optsBlockCacheSize)
		t.metadataCache = cache.New[model.BlockID, *model.BlockMetadata](t.optsMetadataCacheSize)

		t.solidEntryPoints = NewSolidEntryPoints(store)

		t.latestMilestoneIndex = model.NewStoredIndex(store, indexKey(indexKeyLatestMilestone))
		t.confirmedMilestoneIndex = model.NewStoredIndex(store, indexKey(indexKeyConfirmedMilestone))
		t.pruningIndex = model.NewStoredIndex(store, indexKey(indexKeyPruning))
		t.snapshotIndex = model.NewStoredIndex(store, indexKey(indexKeySnapshot))
	})

	if err := t.restore(); err != nil {
		return nil, ierrors.Wrap(err, "failed to restore tangle state")
	}

	return t, nil
}

func (t *Tangle) restore() error {
	for _, index := range []*model.StoredIndex{t.latestMilestoneIndex, t.confirmedMilestoneIndex, t.pruningIndex, t.snapshotIndex} {
		if err := index.RestoreFromDisk(); err != nil {
			return err
		}
	}

	if err := t.checkIndexInvariant(t.pruningIndex.Index(), t.confirmedMilestoneIndex.Index(), t.latestMilestoneIndex.Index()); err != nil {
		return err
	}

	if err := t.solidEntryPoints.Load(); err != nil {
		return ierrors.Wrap(err, "failed to load solid entry points")
	}

	if t.solidEntryPoints.Size() == 0 {
		// a fresh database starts from genesis
		if err := t.solidEntryPoints.Add(model.EmptyBlockID, 0); err != nil {
			return err
		}
	}

	t.logger.LogDebug("tangle restored",
		"latestMilestoneIndex", t.latestMilestoneIndex.Index(),
		"confirmedMilestoneIndex", t.confirmedMilestoneIndex.Index(),
		"pruningIndex", t.pruningIndex.Index(),
		"solidEntryPoints", t.solidEntryPoints.Size(),
	)

	return nil
}

// KVStore returns the store shared with the ledger, so that confirmations can span both in one batch.
func (t *Tangle) KVStore() kvstore.KVStore {
	return t.store
}

func (t *Tangle) Flush() error {
	return t.store.Flush()
}

func (t *Tangle) now() time.Time {
	return t.optsTimeProvider()
}

func (t *Tangle) blockLock(blockID model.BlockID) *syncutils.Mutex {
	return &t.blockLocks[blockID[0]]
}

// ResetCaches drops all cached blocks and metadata, e.g. after a snapshot import replaced the store content.
func (t *Tangle) ResetCaches() {
	t.blockCache.Reset()

	t.metadataCacheMutex.Lock()
	defer t.metadataCacheMutex.Unlock()

	t.metadataCache = cache.New[model.BlockID, *model.BlockMetadata](t.optsMetadataCacheSize)
}
