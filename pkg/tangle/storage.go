package tangle

import (
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/storage/database"
)

// keys of the index pointers below StorePrefixTangleIndices.
const (
	indexKeyLatestMilestone byte = iota
	indexKeyConfirmedMilestone
	indexKeyPruning
	indexKeySnapshot
)

func blockKey(blockID model.BlockID) []byte {
	return append([]byte{database.StorePrefixBlocks}, blockID[:]...)
}

func metadataKey(blockID model.BlockID) []byte {
	return append([]byte{database.StorePrefixBlockMetadata}, blockID[:]...)
}

func childrenPrefix(parentID model.BlockID) []byte {
	return append([]byte{database.StorePrefixChildren}, parentID[:]...)
}

func childKey(parentID model.BlockID, childID model.BlockID) []byte {
	return append(childrenPrefix(parentID), childID[:]...)
}

func confirmedBlocksPrefix(index model.MilestoneIndex) []byte {
	return append([]byte{database.StorePrefixConfirmedBlocks}, index.BigEndianBytes()...)
}

func confirmedBlockKey(index model.MilestoneIndex, blockID model.BlockID) []byte {
	return append(confirmedBlocksPrefix(index), blockID[:]...)
}

func unreferencedBlocksPrefix(index model.MilestoneIndex) []byte {
	return append([]byte{database.StorePrefixUnreferencedBlocks}, index.BigEndianBytes()...)
}

func unreferencedBlockKey(index model.MilestoneIndex, blockID model.BlockID) []byte {
	return append(unreferencedBlocksPrefix(index), blockID[:]...)
}

func solidEntryPointKey(blockID model.BlockID) []byte {
	return append([]byte{database.StorePrefixSolidEntryPoints}, blockID[:]...)
}

func indexKey(key byte) []byte {
	return []byte{database.StorePrefixTangleIndices, key}
}

// blockIDFromKeySuffix extracts the BlockID stored in the last bytes of a composite key.
func blockIDFromKeySuffix(key []byte) (model.BlockID, error) {
	if len(key) < model.IdentifierLength {
		return model.EmptyBlockID, ierrors.Errorf("key too short to contain a block id: %d", len(key))
	}

	blockID, _, err := model.BlockIDFromBytes(key[len(key)-model.IdentifierLength:])

	return blockID, err
}

func realm(store kvstore.KVStore, prefix byte) kvstore.KVStore {
	return lo.PanicOnErr(store.WithExtendedRealm(kvstore.Realm{prefix}))
}

func milestoneIndexBigEndianBytes(index model.MilestoneIndex) ([]byte, error) {
	return index.BigEndianBytes(), nil
}

func milestoneKey(index model.MilestoneIndex) []byte {
	return append([]byte{database.StorePrefixMilestones}, index.BigEndianBytes()...)
}

func milestoneIDKey(milestoneID model.MilestoneID) []byte {
	return append([]byte{database.StorePrefixMilestoneIndexByID}, milestoneID[:]...)
}
