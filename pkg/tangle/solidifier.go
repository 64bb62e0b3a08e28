package tangle

import (
	"github.com/iotaledger/hive.go/ds/walker"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// CheckSolidity marks the block as solid if all of its parents are solid or solid entry points,
// and propagates newly gained solidity to the children. It returns whether the block is solid.
func (t *Tangle) CheckSolidity(blockID model.BlockID) (bool, error) {
	solidWalker := walker.New[model.BlockID](false).Push(blockID)

	for solidWalker.HasNext() {
		currentID := solidWalker.Next()

		becameSolid, err := t.solidify(currentID)
		if err != nil {
			return false, err
		}
		if !becameSolid {
			continue
		}

		children, err := t.Children(currentID)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			solidWalker.Push(child)
		}
	}

	return t.isSolid(blockID)
}

// solidify returns true only if the block transitioned to solid.
func (t *Tangle) solidify(blockID model.BlockID) (bool, error) {
	metadata, exists, err := t.loadMetadata(blockID)
	if err != nil || !exists || metadata.IsSolid() {
		return false, err
	}

	block, exists, err := t.Block(blockID)
	if err != nil || !exists {
		return false, err
	}

	for _, parent := range block.Parents() {
		parentSolid, err := t.isSolid(parent)
		if err != nil || !parentSolid {
			return false, err
		}
	}

	becameSolid := false
	if _, err := t.UpdateMetadata(blockID, func(metadata *model.BlockMetadata) {
		if !metadata.IsSolid() {
			metadata.SetSolid(t.now())
			becameSolid = true
		}
	}); err != nil {
		return false, err
	}

	return becameSolid, nil
}

func (t *Tangle) isSolid(blockID model.BlockID) (bool, error) {
	if t.IsSolidEntryPoint(blockID) {
		return true, nil
	}

	metadata, exists, err := t.loadMetadata(blockID)
	if err != nil || !exists {
		return false, err
	}

	return metadata.IsSolid(), nil
}
