package whiteflag

import (
	"context"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// BlockProvider is the read access the traversal needs to the tangle.
type BlockProvider interface {
	Block(blockID model.BlockID) (*model.Block, bool, error)
	Metadata(blockID model.BlockID) (*model.BlockMetadata, bool, error)
	IsSolidEntryPoint(blockID model.BlockID) bool
}

type stackEntry struct {
	blockID  model.BlockID
	expanded bool
}

// ComputeOrder returns the not yet confirmed blocks of the past cone of the given parents in
// depth-first post-order: the parents of a block, in their canonical order, precede the block.
// Confirmed blocks and solid entry points are leaves that are not part of the result.
// A missing or unsolid block aborts the traversal with ErrMissingBlock or ErrUnsolidBlock.
func ComputeOrder(ctx context.Context, provider BlockProvider, parents model.BlockIDs) (model.BlockIDs, error) {
	order := make(model.BlockIDs, 0)
	visited := make(map[model.BlockID]struct{})

	stack := make([]*stackEntry, 0, len(parents))
	pushReversed := func(blockIDs model.BlockIDs) {
		for i := len(blockIDs) - 1; i >= 0; i-- {
			if _, seen := visited[blockIDs[i]]; !seen {
				stack = append(stack, &stackEntry{blockID: blockIDs[i]})
			}
		}
	}
	pushReversed(parents)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]

		if top.expanded {
			stack = stack[:len(stack)-1]
			order = append(order, top.blockID)

			continue
		}

		if _, seen := visited[top.blockID]; seen {
			stack = stack[:len(stack)-1]
			continue
		}
		visited[top.blockID] = struct{}{}

		isLeaf, block, err := resolve(provider, top.blockID)
		if err != nil {
			return nil, err
		}
		if isLeaf {
			stack = stack[:len(stack)-1]
			continue
		}

		top.expanded = true
		pushReversed(block.Parents())
	}

	return order, nil
}

// resolve returns whether the block ends the traversal, or the block to descend into.
func resolve(provider BlockProvider, blockID model.BlockID) (bool, *model.Block, error) {
	if provider.IsSolidEntryPoint(blockID) {
		return true, nil, nil
	}

	metadata, exists, err := provider.Metadata(blockID)
	if err != nil {
		return false, nil, err
	}
	if !exists {
		return false, nil, ierrors.Wrapf(ErrMissingBlock, "block %s", blockID)
	}
	if metadata.IsConfirmed() {
		return true, nil, nil
	}
	if !metadata.IsSolid() {
		return false, nil, ierrors.Wrapf(ErrUnsolidBlock, "block %s", blockID)
	}

	block, exists, err := provider.Block(blockID)
	if err != nil {
		return false, nil, err
	}
	if !exists {
		return false, nil, ierrors.Wrapf(ErrMissingBlock, "block %s", blockID)
	}

	return false, block, nil
}
