package testsuite

import (
	"fmt"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// Block returns the block registered with the given alias.
func (t *TestSuite) Block(alias string) *model.Block {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	block, exists := t.blocks.Get(alias)
	if !exists {
		panic(fmt.Sprintf("block %s not registered", alias))
	}

	return block
}

// BlockID resolves an alias to a block id. The genesis alias resolves to the empty block id.
func (t *TestSuite) BlockID(alias string) model.BlockID {
	if alias == GenesisAlias {
		return model.EmptyBlockID
	}

	return t.Block(alias).ID()
}

func (t *TestSuite) BlockIDs(aliases ...string) model.BlockIDs {
	return lo.Map(aliases, t.BlockID)
}

func (t *TestSuite) registerBlock(alias string, block *model.Block) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, exists := t.blocks.Get(alias); exists {
		panic(fmt.Sprintf("block alias %s already registered", alias))
	}
	t.blocks.Set(alias, block)
}

func (t *TestSuite) nonce() uint64 {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.nextNonce++

	return t.nextNonce
}

// CreateBlock registers a block with the given payload without inserting it into the tangle.
func (t *TestSuite) CreateBlock(alias string, payload model.Payload, parentAliases ...string) *model.Block {
	block, err := model.NewBlock(t.BlockIDs(parentAliases...), payload, t.nonce())
	require.NoError(t.Testing, err)

	t.registerBlock(alias, block)

	return block
}

// IssueBlock creates a block without payload and attaches it to the tangle.
func (t *TestSuite) IssueBlock(alias string, parentAliases ...string) *model.Block {
	return t.AttachBlock(t.CreateBlock(alias, nil, parentAliases...))
}

// IssueTransactionBlock creates a block carrying the transaction and attaches it to the tangle.
func (t *TestSuite) IssueTransactionBlock(alias string, transactionAlias string, parentAliases ...string) *model.Block {
	return t.AttachBlock(t.CreateBlock(alias, t.Transaction(transactionAlias), parentAliases...))
}

// AttachBlock inserts a created block and propagates solidity.
func (t *TestSuite) AttachBlock(block *model.Block) *model.Block {
	_, err := t.Tangle.Insert(block)
	require.NoError(t.Testing, err)

	_, err = t.Tangle.CheckSolidity(block.ID())
	require.NoError(t.Testing, err)

	return block
}

// AttachBlocks attaches the blocks with the given aliases in the given order.
func (t *TestSuite) AttachBlocks(aliases ...string) {
	for _, alias := range aliases {
		t.AttachBlock(t.Block(alias))
	}
}
