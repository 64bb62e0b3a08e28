package model

import (
	"go.uber.org/atomic"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
)

// StoredIndex is a persisted MilestoneIndex singleton with an in-memory mirror.
type StoredIndex struct {
	kv  kvstore.KVStore
	key kvstore.Key

	index *atomic.Uint32
}

func NewStoredIndex(kv kvstore.KVStore, key kvstore.Key) *StoredIndex {
	return &StoredIndex{
		kv:    kv,
		key:   key,
		index: atomic.NewUint32(0),
	}
}

// Index returns the in-memory value.
func (s *StoredIndex) Index() MilestoneIndex {
	return MilestoneIndex(s.index.Load())
}

// Set persists the index and updates the in-memory value.
func (s *StoredIndex) Set(index MilestoneIndex) error {
	if err := s.kv.Set(s.key, lo.PanicOnErr(index.Bytes())); err != nil {
		return ierrors.Wrapf(err, "failed to store index %d", index)
	}
	s.index.Store(uint32(index))

	return nil
}

// Stage writes the index into a batch. The in-memory value only changes via SetInMemory.
func (s *StoredIndex) Stage(batch kvstore.BatchedMutations, index MilestoneIndex) error {
	return batch.Set(s.key, lo.PanicOnErr(index.Bytes()))
}

// SetInMemory updates the mirror after a staged write was committed.
func (s *StoredIndex) SetInMemory(index MilestoneIndex) {
	s.index.Store(uint32(index))
}

func (s *StoredIndex) RestoreFromDisk() error {
	indexBytes, err := s.kv.Get(s.key)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			s.index.Store(0)

			return nil
		}

		return err
	}

	index, _, err := MilestoneIndexFromBytes(indexBytes)
	if err != nil {
		return err
	}
	s.index.Store(uint32(index))

	return nil
}
