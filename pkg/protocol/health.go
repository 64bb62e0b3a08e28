package protocol

// Health is the confirmation state of the node as reported to operators.
type Health byte

const (
	// HealthHealthy means the node confirmed the latest known milestone.
	HealthHealthy Health = iota
	// HealthSyncing means the node is behind the latest known milestone.
	HealthSyncing
	// HealthCorrupted means a fatal error stopped the confirmation. The node needs to be resynchronized.
	HealthCorrupted
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthSyncing:
		return "syncing"
	case HealthCorrupted:
		return "corrupted"
	default:
		return "unknown"
	}
}
