package pruning

import (
	"github.com/iotaledger/hive.go/runtime/options"
)

// WithPolicy sets the pruning and snapshot policy.
func WithPolicy(policy Policy) options.Option[Manager] {
	return func(m *Manager) {
		m.optsPolicy = policy
	}
}
