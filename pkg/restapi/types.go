package restapi

// InfoResponse defines the response of a GET info REST API call.
type InfoResponse struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Status      *NodeStatus `json:"status"`
	TokenSupply string      `json:"tokenSupply"`
	Tips        int         `json:"tips"`
}

// NodeStatus holds the confirmation indices and the health of the node.
type NodeStatus struct {
	IsHealthy               bool   `json:"isHealthy"`
	Health                  string `json:"health"`
	LatestMilestoneIndex    uint32 `json:"latestMilestoneIndex"`
	ConfirmedMilestoneIndex uint32 `json:"confirmedMilestoneIndex"`
	LedgerIndex             uint32 `json:"ledgerIndex"`
	PruningIndex            uint32 `json:"pruningIndex"`
	SnapshotIndex           uint32 `json:"snapshotIndex"`
}

// SubmitBlockRequest carries a serialized block.
type SubmitBlockRequest struct {
	// Raw is the hex encoded block.
	Raw string `json:"raw"`
}

// BlockCreatedResponse defines the response of a POST blocks REST API call.
type BlockCreatedResponse struct {
	// The hex encoded block ID of the block.
	BlockID string `json:"blockId"`
	// Whether the past cone of the block is complete.
	Solid bool `json:"solid"`
}

// BlockResponse defines the response of a GET block REST API call.
type BlockResponse struct {
	BlockID       string   `json:"blockId"`
	Parents       []string `json:"parents"`
	PayloadType   string   `json:"payloadType,omitempty"`
	TransactionID string   `json:"transactionId,omitempty"`
	// MilestoneIndex is set if the block carries a milestone payload.
	MilestoneIndex uint32 `json:"milestoneIndex,omitempty"`
	Nonce          string `json:"nonce"`
	Raw            string `json:"raw"`
}

// BlockMetadataResponse defines the response of a GET block metadata REST API call.
type BlockMetadataResponse struct {
	BlockID                    string   `json:"blockId"`
	Parents                    []string `json:"parents"`
	Solid                      bool     `json:"isSolid"`
	ReferencedByMilestoneIndex uint32   `json:"referencedByMilestoneIndex,omitempty"`
	MilestoneIndex             uint32   `json:"milestoneIndex,omitempty"`
	LedgerInclusionState       string   `json:"ledgerInclusionState,omitempty"`
	ConflictReason             string   `json:"conflictReason,omitempty"`
	SolidEntryPoint            bool     `json:"isSolidEntryPoint,omitempty"`
}

// ChildrenResponse defines the response of a GET block children REST API call.
type ChildrenResponse struct {
	BlockID    string   `json:"blockId"`
	MaxResults uint32   `json:"maxResults"`
	Count      uint32   `json:"count"`
	Children   []string `json:"children"`
}

// MilestoneResponse defines the response of a GET milestone REST API call.
type MilestoneResponse struct {
	Index               uint32           `json:"index"`
	MilestoneID         string           `json:"milestoneId"`
	BlockID             string           `json:"blockId"`
	Timestamp           uint32           `json:"timestamp"`
	PreviousMilestoneID string           `json:"previousMilestoneId"`
	Parents             []string         `json:"parents"`
	InclusionMerkleRoot string           `json:"inclusionMerkleRoot"`
	AppliedMerkleRoot   string           `json:"appliedMerkleRoot"`
	Signatures          int              `json:"signatures"`
	Receipt             *ReceiptResponse `json:"receipt,omitempty"`
}

// ReceiptResponse describes the treasury movement carried by a milestone.
type ReceiptResponse struct {
	MigratedFunds int    `json:"migratedFunds"`
	Treasury      string `json:"treasury"`
}

// UTXOChangesResponse defines the response of a GET milestone UTXO changes REST API call.
type UTXOChangesResponse struct {
	Index           uint32   `json:"index"`
	CreatedOutputs  []string `json:"createdOutputs"`
	ConsumedOutputs []string `json:"consumedOutputs"`
}

// AddressBalanceResponse defines the response of a GET address balance REST API call.
type AddressBalanceResponse struct {
	Address     string `json:"address"`
	Balance     string `json:"balance"`
	LedgerIndex uint32 `json:"ledgerIndex"`
}

// OutputResponse defines the response of a GET output REST API call.
type OutputResponse struct {
	Metadata *OutputMetadataResponse `json:"metadata"`
	Output   *OutputContent          `json:"output"`
}

// OutputContent is the owner and the amount of an output.
type OutputContent struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// OutputMetadataResponse describes where an output was booked and spent.
type OutputMetadataResponse struct {
	BlockID                  string `json:"blockId"`
	TransactionID            string `json:"transactionId"`
	OutputIndex              uint16 `json:"outputIndex"`
	Spent                    bool   `json:"isSpent"`
	MilestoneIndexSpent      uint32 `json:"milestoneIndexSpent,omitempty"`
	MilestoneTimestampSpent  uint32 `json:"milestoneTimestampSpent,omitempty"`
	TransactionIDSpent       string `json:"transactionIdSpent,omitempty"`
	MilestoneIndexBooked     uint32 `json:"milestoneIndexBooked"`
	MilestoneTimestampBooked uint32 `json:"milestoneTimestampBooked"`
	LedgerIndex              uint32 `json:"ledgerIndex"`
}

// TransactionMetadataResponse defines the response of a GET transaction metadata REST API call.
type TransactionMetadataResponse struct {
	TransactionID        string `json:"transactionId"`
	BlockID              string `json:"blockId"`
	MilestoneIndex       uint32 `json:"milestoneIndex"`
	LedgerInclusionState string `json:"ledgerInclusionState"`
	ConflictReason       string `json:"conflictReason,omitempty"`
}

// PruneDatabaseRequest defines the request of a POST prune database REST API call.
type PruneDatabaseRequest struct {
	// The milestone index to prune up to. The pruning policy may prune less.
	Index uint32 `json:"index"`
}

// PruneDatabaseResponse defines the response of a POST prune database REST API call.
type PruneDatabaseResponse struct {
	PrunedMilestones uint32 `json:"prunedMilestones"`
	PruningIndex     uint32 `json:"pruningIndex"`
}

// CreateSnapshotRequest defines the request of a POST create snapshot REST API call.
type CreateSnapshotRequest struct {
	// The target milestone index. Zero targets the confirmed milestone.
	Index uint32 `json:"index"`
}

// CreateSnapshotResponse defines the response of a POST create snapshot REST API call.
type CreateSnapshotResponse struct {
	Index    uint32 `json:"index"`
	FilePath string `json:"filePath"`
}
