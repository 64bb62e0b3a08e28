package tangle

import (
	"io"

	"github.com/iotaledger/hive.go/ds/shrinkingmap"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/storage/database"
)

// SolidEntryPoints are the stand-ins for pruned history. A parent that is a solid entry point
// counts as solid and confirmed, and the traversal does not descend below it.
type SolidEntryPoints struct {
	store      kvstore.KVStore
	typedStore *kvstore.TypedStore[model.BlockID, model.MilestoneIndex]
	entries    *shrinkingmap.ShrinkingMap[model.BlockID, model.MilestoneIndex]
	mutex      syncutils.RWMutex
}

func NewSolidEntryPoints(store kvstore.KVStore) *SolidEntryPoints {
	return &SolidEntryPoints{
		store: store,
		typedStore: kvstore.NewTypedStore(realm(store, database.StorePrefixSolidEntryPoints),
			model.BlockID.Bytes, model.BlockIDFromBytes,
			model.MilestoneIndex.Bytes, model.MilestoneIndexFromBytes,
		),
		entries: shrinkingmap.New[model.BlockID, model.MilestoneIndex](),
	}
}

// Load fills the in-memory set from the store.
func (s *SolidEntryPoints) Load() error {
	entries := make(map[model.BlockID]model.MilestoneIndex)
	if err := s.typedStore.Iterate(kvstore.EmptyPrefix, func(blockID model.BlockID, index model.MilestoneIndex) bool {
		entries[blockID] = index
		return true
	}); err != nil {
		return err
	}

	s.SetInMemory(entries)

	return nil
}

func (s *SolidEntryPoints) current() *shrinkingmap.ShrinkingMap[model.BlockID, model.MilestoneIndex] {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.entries
}

func (s *SolidEntryPoints) Contains(blockID model.BlockID) bool {
	return s.current().Has(blockID)
}

// Index returns the milestone index that subsumed the solid entry point.
func (s *SolidEntryPoints) Index(blockID model.BlockID) (model.MilestoneIndex, bool) {
	return s.current().Get(blockID)
}

func (s *SolidEntryPoints) Size() int {
	return s.current().Size()
}

// Add persists a single solid entry point.
func (s *SolidEntryPoints) Add(blockID model.BlockID, index model.MilestoneIndex) error {
	if err := s.typedStore.Set(blockID, index); err != nil {
		return ierrors.Wrapf(err, "failed to store solid entry point %s", blockID)
	}
	s.current().Set(blockID, index)

	return nil
}

// SortedIDs returns the ids of all solid entry points in lexical order.
func (s *SolidEntryPoints) SortedIDs() model.BlockIDs {
	blockIDs := model.BlockIDs(s.current().Keys())
	blockIDs.Sort()

	return blockIDs
}

// ForEach iterates the solid entry points in lexical order of their ids.
func (s *SolidEntryPoints) ForEach(consumer func(blockID model.BlockID, index model.MilestoneIndex) bool) {
	for _, blockID := range s.SortedIDs() {
		index, exists := s.current().Get(blockID)
		if !exists {
			continue
		}
		if !consumer(blockID, index) {
			return
		}
	}
}

// StageReplace writes a new set of solid entry points into the batch, removing the current ones.
// The in-memory set changes only with SetInMemory after the batch was committed.
func (s *SolidEntryPoints) StageReplace(mutations kvstore.BatchedMutations, entries map[model.BlockID]model.MilestoneIndex) error {
	for _, blockID := range s.current().Keys() {
		if _, kept := entries[blockID]; kept {
			continue
		}
		if err := mutations.Delete(solidEntryPointKey(blockID)); err != nil {
			return err
		}
	}

	for blockID, index := range entries {
		if err := mutations.Set(solidEntryPointKey(blockID), lo.PanicOnErr(index.Bytes())); err != nil {
			return err
		}
	}

	return nil
}

func (s *SolidEntryPoints) SetInMemory(entries map[model.BlockID]model.MilestoneIndex) {
	replaced := shrinkingmap.New[model.BlockID, model.MilestoneIndex]()
	for blockID, index := range entries {
		replaced.Set(blockID, index)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries = replaced
}

// Replace swaps the persisted and the in-memory solid entry points in one batch.
func (s *SolidEntryPoints) Replace(entries map[model.BlockID]model.MilestoneIndex) error {
	mutations, err := s.store.Batched()
	if err != nil {
		return err
	}

	if err := s.StageReplace(mutations, entries); err != nil {
		mutations.Cancel()
		return err
	}

	if err := mutations.Commit(); err != nil {
		return ierrors.Wrap(err, "failed to commit solid entry points")
	}

	s.SetInMemory(entries)

	return nil
}

// Export writes the solid entry points sorted by id.
func (s *SolidEntryPoints) Export(writer io.WriteSeeker) error {
	entries := make(map[model.BlockID]model.MilestoneIndex, s.Size())
	s.ForEach(func(blockID model.BlockID, index model.MilestoneIndex) bool {
		entries[blockID] = index
		return true
	})

	return WriteSolidEntryPoints(writer, entries)
}

// WriteSolidEntryPoints writes the given solid entry points sorted by id in the format Import reads.
func WriteSolidEntryPoints(writer io.WriteSeeker, entries map[model.BlockID]model.MilestoneIndex) error {
	blockIDs := make(model.BlockIDs, 0, len(entries))
	for blockID := range entries {
		blockIDs = append(blockIDs, blockID)
	}
	blockIDs.Sort()

	if err := stream.WriteCollection(writer, serializer.SeriLengthPrefixTypeAsUint32, func() (int, error) {
		for _, blockID := range blockIDs {
			if err := stream.Write(writer, blockID); err != nil {
				return 0, err
			}
			if err := stream.Write(writer, entries[blockID]); err != nil {
				return 0, err
			}
		}

		return len(blockIDs), nil
	}); err != nil {
		return ierrors.Wrap(err, "unable to write solid entry points")
	}

	return nil
}

// Import replaces the solid entry points with the ones read from the reader.
func (s *SolidEntryPoints) Import(reader io.ReadSeeker) error {
	entries := make(map[model.BlockID]model.MilestoneIndex)
	if err := stream.ReadCollection(reader, serializer.SeriLengthPrefixTypeAsUint32, func(int) error {
		blockID, err := stream.Read[model.BlockID](reader)
		if err != nil {
			return ierrors.Wrap(err, "unable to read solid entry point id")
		}
		index, err := stream.Read[model.MilestoneIndex](reader)
		if err != nil {
			return ierrors.Wrap(err, "unable to read solid entry point index")
		}
		entries[blockID] = index

		return nil
	}); err != nil {
		return ierrors.Wrap(err, "unable to read solid entry points")
	}

	return s.Replace(entries)
}
