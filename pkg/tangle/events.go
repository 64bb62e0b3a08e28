package tangle

import (
	"github.com/iotaledger/hive.go/runtime/event"
	"github.com/iotaledger/tangle-core/pkg/model"
)

type Events struct {
	// BlockStored is triggered when a block was inserted for the first time.
	BlockStored *event.Event1[*model.Block]
	// BlockSolid is triggered when a block and its whole past cone are available.
	BlockSolid *event.Event1[*model.BlockMetadata]
	// BlockConfirmed is triggered after the confirmation of a block was committed.
	BlockConfirmed *event.Event1[*model.BlockMetadata]
	// MilestoneStored is triggered when a validated milestone was stored.
	MilestoneStored *event.Event1[*Milestone]

	LatestMilestoneIndexChanged    *event.Event1[model.MilestoneIndex]
	ConfirmedMilestoneIndexChanged *event.Event1[model.MilestoneIndex]
	PruningIndexChanged            *event.Event1[model.MilestoneIndex]

	event.Group[Events, *Events]
}

// NewEvents contains the constructor of the Events object (it is generated by a generic factory).
var NewEvents = event.CreateGroupConstructor(func() *Events {
	return &Events{
		BlockStored:                    event.New1[*model.Block](),
		BlockSolid:                     event.New1[*model.BlockMetadata](),
		BlockConfirmed:                 event.New1[*model.BlockMetadata](),
		MilestoneStored:                event.New1[*Milestone](),
		LatestMilestoneIndexChanged:    event.New1[model.MilestoneIndex](),
		ConfirmedMilestoneIndexChanged: event.New1[model.MilestoneIndex](),
		PruningIndexChanged:            event.New1[model.MilestoneIndex](),
	}
})
