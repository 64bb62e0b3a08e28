package pruning

import (
	"github.com/iotaledger/hive.go/runtime/event"
	"github.com/iotaledger/tangle-core/pkg/model"
)

type Events struct {
	// Pruned is triggered after all data of a milestone was removed.
	Pruned *event.Event1[model.MilestoneIndex]

	event.Group[Events, *Events]
}

// NewEvents contains the constructor of the Events object (it is generated by a generic factory).
var NewEvents = event.CreateGroupConstructor(func() *Events {
	return &Events{
		Pruned: event.New1[model.MilestoneIndex](),
	}
})
