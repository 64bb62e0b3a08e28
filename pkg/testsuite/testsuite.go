package testsuite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/ds/shrinkingmap"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/syncutils"
	"github.com/iotaledger/hive.go/runtime/workerpool"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/milestone"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/protocol"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/snapshot"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

// GenesisAlias names the genesis block and the wallet owning the genesis output.
const GenesisAlias = "Genesis"

// TestSuite builds a tangle by alias on a single store and confirms it with signed milestones.
type TestSuite struct {
	Testing   *testing.T
	Directory string
	Logger    log.Logger

	Store      kvstore.KVStore
	Tangle     *tangle.Tangle
	Ledger     *utxo.Manager
	KeyManager *milestone.KeyManager
	Validator  *milestone.Validator
	Pruning    *pruning.Manager
	Snapshots  *snapshot.Manager
	Protocol   *protocol.Protocol
	Workers    *workerpool.Group

	coordinatorKeys []ed25519.PrivateKey
	genesisTime     time.Time

	blocks        *shrinkingmap.ShrinkingMap[string, *model.Block]
	outputs       *shrinkingmap.ShrinkingMap[string, *aliasedOutput]
	transactions  *shrinkingmap.ShrinkingMap[string, *model.Transaction]
	milestoneIDs  *shrinkingmap.ShrinkingMap[model.MilestoneIndex, model.MilestoneID]
	pending       *pendingState
	nextMilestone model.MilestoneIndex
	nextNonce     uint64
	mutex         syncutils.RWMutex

	optsGenesisAmount       uint64
	optsTreasury            uint64
	optsCoordinatorKeyCount int
	optsPruningPolicy       pruning.Policy
	optsProtocolOptions     []options.Option[protocol.Protocol]
	optsStore               kvstore.KVStore
	optsSkipGenesis         bool
}

// aliasedOutput is an output created by the suite, possibly not booked yet.
type aliasedOutput struct {
	outputID model.OutputID
	owner    string
	amount   uint64
}

func NewTestSuite(testingT *testing.T, opts ...options.Option[TestSuite]) *TestSuite {
	return options.Apply(&TestSuite{
		Testing:                 testingT,
		Directory:               testingT.TempDir(),
		Logger:                  log.NewLogger().NewChildLogger(testingT.Name()),
		genesisTime:             time.Unix(1_700_000_000, 0),
		blocks:                  shrinkingmap.New[string, *model.Block](),
		outputs:                 shrinkingmap.New[string, *aliasedOutput](),
		transactions:            shrinkingmap.New[string, *model.Transaction](),
		milestoneIDs:            shrinkingmap.New[model.MilestoneIndex, model.MilestoneID](),
		pending:                 newPendingState(),
		nextMilestone:           1,
		optsGenesisAmount:       1_000_000_000,
		optsCoordinatorKeyCount: 2,
		optsPruningPolicy:       pruning.DefaultPolicy(),
	}, opts, func(t *TestSuite) {
		t.Store = t.optsStore
		if t.Store == nil {
			t.Store = mapdb.NewMapDB()
		}

		var err error
		t.Tangle, err = tangle.New(t.Logger.NewChildLogger("Tangle"), t.Store, tangle.WithMetadataCacheSize(64))
		require.NoError(t.Testing, err)

		t.Ledger = utxo.New(t.Store)

		t.KeyManager = milestone.NewKeyManager()
		for i := 0; i < t.optsCoordinatorKeyCount; i++ {
			key := t.Wallet(fmt.Sprintf("Coordinator%d", i))
			t.coordinatorKeys = append(t.coordinatorKeys, key)
			require.NoError(t.Testing, t.KeyManager.AddKeyRange(key.Public(), 0, 0))
		}
		t.Validator = milestone.NewValidator(t.KeyManager, milestone.WithMinThreshold(t.optsCoordinatorKeyCount))

		t.Pruning = pruning.New(t.Logger.NewChildLogger("Pruning"), t.Tangle, t.Ledger, pruning.WithPolicy(t.optsPruningPolicy))
		t.Snapshots = snapshot.New(t.Logger.NewChildLogger("Snapshot"), t.Tangle, t.Ledger, t.Pruning,
			snapshot.WithFilePath(filepath.Join(t.Directory, "snapshot.bin")),
		)

		t.Workers = workerpool.NewGroup(testingT.Name())
		t.Protocol = protocol.New(t.Logger.NewChildLogger("Protocol"), t.Workers, t.Tangle, t.Ledger, t.Validator,
			append([]options.Option[protocol.Protocol]{
				protocol.WithPruningManager(t.Pruning),
			}, t.optsProtocolOptions...)...,
		)

		if !t.optsSkipGenesis {
			t.setupGenesis()
		}
	})
}

func (t *TestSuite) setupGenesis() {
	genesisOutputID := model.OutputIDFromTransactionIDAndIndex(model.EmptyTransactionID, 0)
	t.outputs.Set(GenesisAlias, &aliasedOutput{
		outputID: genesisOutputID,
		owner:    GenesisAlias,
		amount:   t.optsGenesisAmount,
	})

	ledgerIndex, err := t.Ledger.ReadLedgerIndex()
	require.NoError(t.Testing, err)
	if ledgerIndex != 0 {
		return
	}

	require.NoError(t.Testing, t.Ledger.AddGenesisUnspentOutput(utxo.NewOutput(
		genesisOutputID,
		model.EmptyBlockID,
		0,
		0,
		&model.Output{Address: t.Address(GenesisAlias), Amount: t.optsGenesisAmount},
	)))

	if t.optsTreasury > 0 {
		require.NoError(t.Testing, t.Ledger.StoreTreasury(t.optsTreasury))
	}
}

// TokenSupply returns the amount of tokens in the ledger and the treasury at genesis.
func (t *TestSuite) TokenSupply() uint64 {
	return t.optsGenesisAmount + t.optsTreasury
}

// Wallet returns the key derived from the alias.
func (t *TestSuite) Wallet(alias string) ed25519.PrivateKey {
	return walletKey(alias)
}

func walletKey(alias string) ed25519.PrivateKey {
	seed := blake2b.Sum256([]byte(alias))

	return ed25519.PrivateKeyFromSeed(seed[:])
}

// Address returns the address of the wallet with the given alias.
func (t *TestSuite) Address(walletAlias string) model.Address {
	return model.AddressFromPublicKey(t.Wallet(walletAlias).Public())
}

func (t *TestSuite) CoordinatorKeys() []ed25519.PrivateKey {
	return t.coordinatorKeys
}

// MilestoneTime returns the timestamp the suite assigns to the milestone with the given index.
func (t *TestSuite) MilestoneTime(index model.MilestoneIndex) time.Time {
	return t.genesisTime.Add(time.Duration(index) * 10 * time.Second)
}

// ConfirmMilestone confirms the milestone with the given index and requires it to succeed.
func (t *TestSuite) ConfirmMilestone(index model.MilestoneIndex) *protocol.ConfirmationResult {
	result, err := t.Protocol.AttemptConfirmation(context.Background(), index)
	require.NoError(t.Testing, err)
	require.Equal(t.Testing, index, result.Index)

	return result
}

// Reopen returns a new suite on the store of this one, with the aliases of this suite.
func (t *TestSuite) Reopen(opts ...options.Option[TestSuite]) *TestSuite {
	reopened := NewTestSuite(t.Testing, append([]options.Option[TestSuite]{
		WithStore(t.Store),
		WithGenesisAmount(t.optsGenesisAmount),
		WithTreasury(t.optsTreasury),
		WithCoordinatorKeyCount(t.optsCoordinatorKeyCount),
		WithPruningPolicy(t.optsPruningPolicy),
	}, opts...)...)
	reopened.inheritAliases(t)

	return reopened
}

// inheritAliases copies the registered blocks, outputs and milestones of another suite.
func (t *TestSuite) inheritAliases(other *TestSuite) {
	other.mutex.RLock()
	defer other.mutex.RUnlock()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	other.blocks.ForEach(func(alias string, block *model.Block) bool {
		t.blocks.Set(alias, block)
		return true
	})
	other.outputs.ForEach(func(alias string, output *aliasedOutput) bool {
		t.outputs.Set(alias, output)
		return true
	})
	other.transactions.ForEach(func(alias string, tx *model.Transaction) bool {
		t.transactions.Set(alias, tx)
		return true
	})
	other.milestoneIDs.ForEach(func(index model.MilestoneIndex, milestoneID model.MilestoneID) bool {
		t.milestoneIDs.Set(index, milestoneID)
		return true
	})
	t.pending = other.pending
	t.nextMilestone = other.nextMilestone
	t.nextNonce = other.nextNonce
}

func (t *TestSuite) Shutdown() {
	t.Workers.Shutdown()
	require.NoError(t.Testing, t.Tangle.Flush())
}
