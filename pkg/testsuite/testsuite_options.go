package testsuite

import (
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/protocol"
	"github.com/iotaledger/tangle-core/pkg/pruning"
)

// WithGenesisAmount sets the amount of the genesis output.
func WithGenesisAmount(amount uint64) options.Option[TestSuite] {
	return func(t *TestSuite) {
		t.optsGenesisAmount = amount
	}
}

// WithTreasury seeds the treasury at genesis.
func WithTreasury(amount uint64) options.Option[TestSuite] {
	return func(t *TestSuite) {
		t.optsTreasury = amount
	}
}

func WithCoordinatorKeyCount(count int) options.Option[TestSuite] {
	return func(t *TestSuite) {
		t.optsCoordinatorKeyCount = count
	}
}

func WithPruningPolicy(policy pruning.Policy) options.Option[TestSuite] {
	return func(t *TestSuite) {
		t.optsPruningPolicy = policy
	}
}

func WithProtocolOptions(opts ...options.Option[protocol.Protocol]) options.Option[TestSuite] {
	return func(t *TestSuite) {
		t.optsProtocolOptions = append(t.optsProtocolOptions, opts...)
	}
}

// WithStore builds the suite on an existing store.
func WithStore(store kvstore.KVStore) options.Option[TestSuite] {
	return func(t *TestSuite) {
		t.optsStore = store
	}
}

// WithoutGenesis leaves the ledger empty, e.g. to load it from a snapshot.
func WithoutGenesis() options.Option[TestSuite] {
	return func(t *TestSuite) {
		t.optsSkipGenesis = true
	}
}
