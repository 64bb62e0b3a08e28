package snapshot

import (
	"context"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

// GenesisOptions describes the initial ledger of a network.
type GenesisOptions struct {
	// FilePath is the path of the generated snapshot file.
	FilePath string
	// Allocations are the genesis outputs. Output i gets the OutputID of the empty transaction with index i.
	Allocations []*model.Output
	// Treasury is the initial treasury balance.
	Treasury uint64
}

func WithGenesisFilePath(filePath string) options.Option[GenesisOptions] {
	return func(o *GenesisOptions) {
		o.FilePath = filePath
	}
}

// WithAllocation adds a genesis output.
func WithAllocation(address model.Address, amount uint64) options.Option[GenesisOptions] {
	return func(o *GenesisOptions) {
		o.Allocations = append(o.Allocations, &model.Output{Address: address, Amount: amount})
	}
}

func WithGenesisTreasury(amount uint64) options.Option[GenesisOptions] {
	return func(o *GenesisOptions) {
		o.Treasury = amount
	}
}

// TokenSupply returns the sum of all allocations and the treasury.
func (o *GenesisOptions) TokenSupply() (uint64, error) {
	supply := o.Treasury
	for _, allocation := range o.Allocations {
		if supply+allocation.Amount < supply {
			return 0, ierrors.New("genesis token supply overflows")
		}
		supply += allocation.Amount
	}

	return supply, nil
}

// CreateGenesisSnapshot writes the snapshot of a network at milestone index 0.
func CreateGenesisSnapshot(logger log.Logger, opts ...options.Option[GenesisOptions]) (*GenesisOptions, error) {
	genesis := options.Apply(&GenesisOptions{
		FilePath: "snapshot.bin",
	}, opts)

	if len(genesis.Allocations) == 0 {
		return nil, ierrors.New("genesis needs at least one allocation")
	}
	if len(genesis.Allocations) > int(^uint16(0)) {
		return nil, ierrors.Errorf("too many genesis allocations: %d", len(genesis.Allocations))
	}

	tokenSupply, err := genesis.TokenSupply()
	if err != nil {
		return nil, err
	}

	store := mapdb.NewMapDB()
	defer store.Close()

	genesisTangle, err := tangle.New(logger.NewChildLogger("Tangle"), store)
	if err != nil {
		return nil, err
	}

	ledger := utxo.New(store)
	for i, allocation := range genesis.Allocations {
		if allocation.Amount == 0 {
			return nil, ierrors.Errorf("genesis allocation %d has no amount", i)
		}

		outputID := model.OutputIDFromTransactionIDAndIndex(model.EmptyTransactionID, uint16(i))
		if err := ledger.AddGenesisUnspentOutput(utxo.NewOutput(outputID, model.EmptyBlockID, 0, 0, allocation.Clone())); err != nil {
			return nil, ierrors.Wrapf(err, "failed to add genesis allocation %d", i)
		}
	}

	if err := ledger.StoreTreasury(genesis.Treasury); err != nil {
		return nil, err
	}

	if err := ledger.CheckLedgerState(tokenSupply); err != nil {
		return nil, err
	}

	pruningManager := pruning.New(logger.NewChildLogger("Pruning"), genesisTangle, ledger)
	manager := New(logger, genesisTangle, ledger, pruningManager, WithFilePath(genesis.FilePath))

	if err := manager.CreateSnapshot(context.Background(), 0); err != nil {
		return nil, ierrors.Wrap(err, "failed to write genesis snapshot")
	}

	return genesis, nil
}
