package protocol

import (
	"github.com/iotaledger/hive.go/runtime/event"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
)

type Events struct {
	// Running is triggered once Run listens for solid milestone blocks.
	Running *event.Event

	// MilestoneConfirmed is triggered after the confirmation of a milestone was committed.
	MilestoneConfirmed *event.Event1[*ConfirmationResult]
	OutputCreated      *event.Event1[*utxo.Output]
	OutputConsumed     *event.Event1[*utxo.Spent]

	// MilestoneRejected is triggered when a milestone block fails validation.
	MilestoneRejected *event.Event2[*model.Block, error]
	// Corrupted is triggered once when a fatal error stops the confirmation.
	Corrupted *event.Event1[error]

	event.Group[Events, *Events]
}

// NewEvents contains the constructor of the Events object (it is generated by a generic factory).
var NewEvents = event.CreateGroupConstructor(func() *Events {
	return &Events{
		Running:            event.New(),
		MilestoneConfirmed: event.New1[*ConfirmationResult](),
		OutputCreated:      event.New1[*utxo.Output](),
		OutputConsumed:     event.New1[*utxo.Spent](),
		MilestoneRejected:  event.New2[*model.Block, error](),
		Corrupted:          event.New1[error](),
	}
})
