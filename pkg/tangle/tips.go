package tangle

import (
	"time"

	"github.com/iotaledger/tangle-core/pkg/model"
)

// Tips returns the blocks without stored children, sorted by id.
func (t *Tangle) Tips() model.BlockIDs {
	tips := model.BlockIDs(t.tips.Keys())
	tips.Sort()

	return tips
}

func (t *Tangle) IsTip(blockID model.BlockID) bool {
	return t.tips.Has(blockID)
}

func (t *Tangle) TipCount() int {
	return t.tips.Size()
}

// RemoveTipsOlderThan drops tips that arrived before the given time and returns how many were removed.
func (t *Tangle) RemoveTipsOlderThan(threshold time.Time) int {
	var removed int
	for _, blockID := range t.tips.Keys() {
		if arrival, exists := t.tips.Get(blockID); exists && arrival.Before(threshold) && t.tips.Delete(blockID) {
			removed++
		}
	}

	return removed
}
