package pruning

import (
	"github.com/iotaledger/tangle-core/pkg/model"
)

// PruneRange is an inclusive range of milestone indices to prune.
type PruneRange struct {
	Start model.MilestoneIndex
	End   model.MilestoneIndex
}

// Len returns the number of milestones in the range.
// The genesis index is never pruned, so the zero value is the empty range.
func (r PruneRange) Len() int {
	if r.Start == 0 || r.End < r.Start {
		return 0
	}

	return int(r.End-r.Start) + 1
}

// IsEmpty returns true if the range contains no milestones.
func (r PruneRange) IsEmpty() bool {
	return r.Len() == 0
}

// Policy decides how much history is kept and when snapshots are taken.
type Policy struct {
	// Delay is the number of confirmed milestones that are never pruned.
	Delay model.MilestoneIndex
	// SolidEntryPointThresholdPast is the number of milestones below the pruning target whose cones are
	// searched for solid entry points. Pruning always leaves that much history.
	SolidEntryPointThresholdPast model.MilestoneIndex
	// MaxMilestonesPerRun bounds a single pruning run.
	MaxMilestonesPerRun int

	// SnapshotDepth is the distance of a snapshot target below the confirmed milestone.
	SnapshotDepth model.MilestoneIndex
	// SnapshotInterval is the number of milestones between two snapshots.
	SnapshotInterval model.MilestoneIndex
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Delay:                        60480,
		SolidEntryPointThresholdPast: 15,
		MaxMilestonesPerRun:          100,
		SnapshotDepth:                50,
		SnapshotInterval:             200,
	}
}

// TargetIndex returns the highest milestone index that may be pruned at the given confirmed index.
func (p Policy) TargetIndex(confirmedIndex model.MilestoneIndex) (model.MilestoneIndex, bool) {
	keep := p.Delay
	if minimumHistory := p.SolidEntryPointThresholdPast + 1; keep < minimumHistory {
		keep = minimumHistory
	}

	if confirmedIndex <= keep {
		return 0, false
	}

	return confirmedIndex - keep, true
}

// ShouldPrune returns the next range to prune, bounded by MaxMilestonesPerRun.
func (p Policy) ShouldPrune(confirmedIndex model.MilestoneIndex, pruningIndex model.MilestoneIndex) (PruneRange, bool) {
	return p.rangeUntil(confirmedIndex, pruningIndex, confirmedIndex)
}

// RangeUntil clamps a requested target to the policy and returns the range to prune towards it.
func (p Policy) RangeUntil(confirmedIndex model.MilestoneIndex, pruningIndex model.MilestoneIndex, requestedIndex model.MilestoneIndex) (PruneRange, bool) {
	return p.rangeUntil(confirmedIndex, pruningIndex, requestedIndex)
}

func (p Policy) rangeUntil(confirmedIndex model.MilestoneIndex, pruningIndex model.MilestoneIndex, requestedIndex model.MilestoneIndex) (PruneRange, bool) {
	target, ok := p.TargetIndex(confirmedIndex)
	if !ok {
		return PruneRange{}, false
	}
	if requestedIndex < target {
		target = requestedIndex
	}
	if target <= pruningIndex {
		return PruneRange{}, false
	}

	pruneRange := PruneRange{Start: pruningIndex + 1, End: target}
	if p.MaxMilestonesPerRun > 0 && pruneRange.Len() > p.MaxMilestonesPerRun {
		pruneRange.End = pruneRange.Start + model.MilestoneIndex(p.MaxMilestonesPerRun) - 1
	}

	return pruneRange, true
}

// SnapshotTargetIndex returns the index a snapshot taken at the given confirmed index describes.
func (p Policy) SnapshotTargetIndex(confirmedIndex model.MilestoneIndex) (model.MilestoneIndex, bool) {
	if confirmedIndex < p.SnapshotDepth {
		return 0, false
	}

	return confirmedIndex - p.SnapshotDepth, true
}

// ShouldSnapshot reports whether a new snapshot is due.
func (p Policy) ShouldSnapshot(confirmedIndex model.MilestoneIndex, snapshotIndex model.MilestoneIndex) bool {
	target, ok := p.SnapshotTargetIndex(confirmedIndex)
	if !ok || p.SnapshotInterval == 0 {
		return false
	}

	return target >= snapshotIndex+p.SnapshotInterval
}
