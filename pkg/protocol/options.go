package protocol

import (
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/pruning"
	"github.com/iotaledger/tangle-core/pkg/retainer"
	"github.com/iotaledger/tangle-core/pkg/snapshot"
)

// WithEnforceInclusionMerkleRoot makes a mismatching inclusion merkle root a fatal error.
func WithEnforceInclusionMerkleRoot(enforce bool) options.Option[Protocol] {
	return func(p *Protocol) {
		p.optsEnforceInclusionMerkleRoot = enforce
	}
}

// WithPruningManager prunes old history after every confirmation.
func WithPruningManager(pruningManager *pruning.Manager) options.Option[Protocol] {
	return func(p *Protocol) {
		p.pruning = pruningManager
	}
}

// WithSnapshotManager creates snapshots after confirmations as the policy demands.
func WithSnapshotManager(snapshotManager *snapshot.Manager) options.Option[Protocol] {
	return func(p *Protocol) {
		p.snapshots = snapshotManager
	}
}

// WithRetainer records the inclusion state of confirmed transactions.
func WithRetainer(txRetainer *retainer.Retainer) options.Option[Protocol] {
	return func(p *Protocol) {
		p.retainer = txRetainer
	}
}
