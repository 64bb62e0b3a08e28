package snapshot

import (
	"github.com/iotaledger/hive.go/runtime/event"
	"github.com/iotaledger/tangle-core/pkg/model"
)

type Events struct {
	// Snapshotted is triggered after a snapshot file for the index was written.
	Snapshotted *event.Event1[model.MilestoneIndex]

	event.Group[Events, *Events]
}

// NewEvents contains the constructor of the Events object (it is generated by a generic factory).
var NewEvents = event.CreateGroupConstructor(func() *Events {
	return &Events{
		Snapshotted: event.New1[model.MilestoneIndex](),
	}
})
