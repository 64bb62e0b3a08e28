package database

// Every record of the node lives in one keyspace so that a single batch can span the
// tangle and the ledger. Each prefix is unique across both.
const (
	StorePrefixHealth byte = iota
	StorePrefixBlocks
	StorePrefixBlockMetadata
	StorePrefixChildren
	StorePrefixMilestones
	StorePrefixSolidEntryPoints
	StorePrefixTangleIndices
	StorePrefixConfirmedBlocks
	StorePrefixUnreferencedBlocks
	StorePrefixMilestoneIndexByID
)

const (
	StorePrefixLedgerIndex byte = iota + 10
	StorePrefixOutput
	StorePrefixOutputSpent
	StorePrefixOutputUnspent
	StorePrefixMilestoneDiffs
	StorePrefixBalances
	StorePrefixTreasury
	StorePrefixStateTree
)
