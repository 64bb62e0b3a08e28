package protocol

import (
	"context"
	"os"

	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/workerpool"
	databasecomponent "github.com/iotaledger/tangle-core/components/database"
	"github.com/iotaledger/tangle-core/pkg/daemon"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/milestone"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/protocol"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/retainer"
	"github.com/iotaledger/tangle-core/pkg/snapshot"
	"github.com/iotaledger/tangle-core/pkg/storage/database"
	"github.com/iotaledger/tangle-core/pkg/storage/sqlite"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

func init() {
	Component = &app.Component{
		Name:      "Protocol",
		DepsFunc:  func(cDeps dependencies) { deps = cDeps },
		Params:    params,
		Provide:   provide,
		Configure: configure,
		Run:       run,
	}
}

var (
	Component *app.Component
	deps      dependencies
)

type dependencies struct {
	dig.In

	DatabaseInstance *database.DBInstance
	Tangle           *tangle.Tangle
	Ledger           *utxo.Manager
	PruningManager   *pruning.Manager
	SnapshotManager  *snapshot.Manager
	RetainerDatabase *sqlite.Database
	Protocol         *protocol.Protocol
}

func provide(c *dig.Container) error {
	if err := c.Provide(func(store kvstore.KVStore) (*tangle.Tangle, error) {
		return tangle.New(Component.Logger().NewChildLogger("Tangle"), store)
	}); err != nil {
		return err
	}

	if err := c.Provide(func(store kvstore.KVStore) *utxo.Manager {
		return utxo.New(store)
	}); err != nil {
		return err
	}

	if err := c.Provide(func() (*milestone.Validator, error) {
		keyManager := milestone.NewKeyManager()
		for _, keyRange := range ParamsProtocol.PublicKeyRanges {
			if err := keyManager.AddHexKeyRange(keyRange.Key, model.MilestoneIndex(keyRange.StartIndex), model.MilestoneIndex(keyRange.EndIndex)); err != nil {
				return nil, ierrors.Wrapf(err, "invalid milestone public key range %s", keyRange.Key)
			}
		}

		return milestone.NewValidator(keyManager, milestone.WithMinThreshold(ParamsProtocol.MilestonePublicKeyCount)), nil
	}); err != nil {
		return err
	}

	if err := c.Provide(func(tangle *tangle.Tangle, ledger *utxo.Manager) *pruning.Manager {
		return pruning.New(Component.Logger().NewChildLogger("Pruning"), tangle, ledger, pruning.WithPolicy(pruning.Policy{
			Delay:                        model.MilestoneIndex(ParamsPruning.Delay),
			SolidEntryPointThresholdPast: model.MilestoneIndex(ParamsPruning.SolidEntryPointThresholdPast),
			MaxMilestonesPerRun:          int(ParamsPruning.MaxMilestonesPerRun),
			SnapshotDepth:                model.MilestoneIndex(ParamsSnapshots.Depth),
			SnapshotInterval:             model.MilestoneIndex(ParamsSnapshots.Interval),
		}))
	}); err != nil {
		return err
	}

	if err := c.Provide(func(tangle *tangle.Tangle, ledger *utxo.Manager, pruningManager *pruning.Manager) *snapshot.Manager {
		return snapshot.New(Component.Logger().NewChildLogger("Snapshots"), tangle, ledger, pruningManager,
			snapshot.WithFilePath(ParamsSnapshots.Path),
			snapshot.WithArchiveDirectory(ParamsSnapshots.ArchiveDirectory),
		)
	}); err != nil {
		return err
	}

	if err := c.Provide(func() (*sqlite.Database, error) {
		if !ParamsRetainer.Enabled {
			return nil, nil
		}

		return sqlite.New(Component.Logger().NewChildLogger("RetainerDB"), ParamsRetainer.Path, "retainer.db", func(err error) {
			Component.LogErrorf("retainer database error: %s", err)
		})
	}); err != nil {
		return err
	}

	if err := c.Provide(func(retainerDatabase *sqlite.Database) (*retainer.Retainer, error) {
		if retainerDatabase == nil {
			return nil, nil
		}

		return retainer.New(Component.Logger().NewChildLogger("Retainer"), retainerDatabase.ExecDBFunc())
	}); err != nil {
		return err
	}

	type protocolDeps struct {
		dig.In

		Tangle          *tangle.Tangle
		Ledger          *utxo.Manager
		Validator       *milestone.Validator
		PruningManager  *pruning.Manager
		SnapshotManager *snapshot.Manager
		Retainer        *retainer.Retainer
	}

	return c.Provide(func(deps protocolDeps) *protocol.Protocol {
		opts := []options.Option[protocol.Protocol]{
			protocol.WithEnforceInclusionMerkleRoot(ParamsProtocol.EnforceInclusionMerkleRoot),
		}
		if ParamsPruning.Enabled {
			opts = append(opts, protocol.WithPruningManager(deps.PruningManager))
		}
		if ParamsSnapshots.Enabled {
			opts = append(opts, protocol.WithSnapshotManager(deps.SnapshotManager))
		}
		if deps.Retainer != nil {
			opts = append(opts, protocol.WithRetainer(deps.Retainer))
		}

		return protocol.New(Component.Logger(), workerpool.NewGroup("Protocol"), deps.Tangle, deps.Ledger, deps.Validator, opts...)
	})
}

func configure() error {
	if err := loadInitialSnapshot(); err != nil {
		Component.LogPanicf("failed to load snapshot: %s", err)
	}

	if databasecomponent.ParamsDatabase.CheckLedgerStateOnStartup {
		Component.LogInfo("Checking ledger state ...")
		if err := deps.Ledger.CheckLedgerState(ParamsProtocol.TokenSupply); err != nil {
			markCorrupted()
			Component.LogPanicf("ledger state is invalid: %s", err)
		}
		if !deps.Ledger.CheckStateTree() {
			Component.LogWarn("Ledger state tree does not match the unspent outputs, rebuilding ...")
			if err := deps.Ledger.RebuildStateTree(); err != nil {
				Component.LogPanicf("failed to rebuild ledger state tree: %s", err)
			}
		}
		Component.LogInfo("Checking ledger state ... done")
	}

	deps.Protocol.Events.MilestoneConfirmed.Hook(func(result *protocol.ConfirmationResult) {
		Component.LogInfof("Milestone confirmed: %d (%s), referenced: %d, included: %d, conflicting: %d, took %v",
			result.Index, result.MilestoneID, result.Referenced(), result.Included(), result.ExcludedConflicting(), result.Duration)
	})

	deps.Protocol.Events.MilestoneRejected.Hook(func(block *model.Block, err error) {
		Component.LogWarnf("Milestone rejected: %s, %s", block.ID(), err)
	})

	deps.Protocol.Events.Corrupted.Hook(func(err error) {
		markCorrupted()
		Component.LogErrorf("Ledger diverged, confirmation stopped: %s", err)
	})

	deps.PruningManager.Events.Pruned.Hook(func(index model.MilestoneIndex) {
		Component.LogDebugf("Pruned milestone %d", index)
	})

	deps.SnapshotManager.Events.Snapshotted.Hook(func(index model.MilestoneIndex) {
		Component.LogInfof("Created snapshot for milestone %d", index)
	})

	return nil
}

// markCorrupted makes the next start fail or revalidate the database.
func markCorrupted() {
	if err := deps.DatabaseInstance.MarkCorrupted(); err != nil {
		Component.LogErrorf("failed to mark database as corrupted: %s", err)
	}
}

// loadInitialSnapshot seeds an empty database from the configured snapshot file.
func loadInitialSnapshot() error {
	ledgerIndex, err := deps.Ledger.ReadLedgerIndex()
	if err != nil {
		return err
	}

	unspentOutputs, err := deps.Ledger.UnspentOutputsIDs(utxo.MaxResultCount(1))
	if err != nil {
		return err
	}
	if ledgerIndex != 0 || len(unspentOutputs) != 0 {
		Component.LogInfof("Database is at ledger index %d", ledgerIndex)
		return nil
	}

	if _, err := os.Stat(ParamsSnapshots.Path); err != nil {
		return ierrors.Wrapf(err, "database is empty and no snapshot was found at %s", ParamsSnapshots.Path)
	}

	Component.LogInfof("Loading snapshot %s ...", ParamsSnapshots.Path)
	header, err := deps.SnapshotManager.LoadSnapshot(ParamsSnapshots.Path)
	if err != nil {
		return err
	}

	if err := deps.Ledger.CheckLedgerState(ParamsProtocol.TokenSupply); err != nil {
		return ierrors.Wrap(err, "snapshot does not match the configured token supply")
	}
	Component.LogInfof("Loading snapshot %s ... done, snapshot index: %d", ParamsSnapshots.Path, header.SnapshotIndex)

	return deps.Tangle.Flush()
}

func run() error {
	if err := Component.Daemon().BackgroundWorker(Component.Name, func(ctx context.Context) {
		Component.LogInfo("Starting protocol ... done")
		if err := deps.Protocol.Run(ctx); err != nil && !ierrors.Is(err, context.Canceled) {
			Component.LogErrorf("Protocol stopped: %s", err)
		}
		Component.LogInfo("Gracefully shutting down the protocol ... done")
	}, daemon.PriorityProtocol); err != nil {
		return err
	}

	if deps.RetainerDatabase == nil {
		return nil
	}

	return Component.Daemon().BackgroundWorker("Close retainer", func(ctx context.Context) {
		<-ctx.Done()
		deps.RetainerDatabase.Shutdown()
	}, daemon.PriorityCloseRetainer)
}
