package tpkg

import (
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/utils"
)

func RandLedgerStateOutput() *utxo.Output {
	return RandLedgerStateOutputOnAddress(utils.RandAddress())
}

func RandLedgerStateOutputOnAddress(address model.Address) *utxo.Output {
	return RandLedgerStateOutputOnAddressWithAmount(address, utils.RandAmount(1_000_000_000))
}

func RandLedgerStateOutputOnAddressWithAmount(address model.Address, amount uint64) *utxo.Output {
	return utxo.NewOutput(utils.RandOutputID(), utils.RandBlockID(), utils.RandMilestoneIndex(), utils.RandUint32(1<<31), utils.RandOutputOnAddressWithAmount(address, amount))
}

func RandLedgerStateOutputBookedAt(index model.MilestoneIndex, address model.Address, amount uint64) *utxo.Output {
	return utxo.NewOutput(utils.RandOutputID(), utils.RandBlockID(), index, utils.RandUint32(1<<31), utils.RandOutputOnAddressWithAmount(address, amount))
}

func RandLedgerStateSpent(indexSpent model.MilestoneIndex) *utxo.Spent {
	return utxo.NewSpent(RandLedgerStateOutput(), utils.RandTransactionID(), indexSpent, utils.RandUint32(1<<31))
}

func RandLedgerStateSpentWithOutput(output *utxo.Output, indexSpent model.MilestoneIndex) *utxo.Spent {
	return utxo.NewSpent(output, utils.RandTransactionID(), indexSpent, utils.RandUint32(1<<31))
}
