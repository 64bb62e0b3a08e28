package protocol

import (
	"github.com/iotaledger/hive.go/app"
)

// ParametersProtocol contains the definition of the parameters used by the protocol.
type ParametersProtocol struct {
	// TokenSupply is the total supply of tokens of the network.
	TokenSupply uint64 `default:"2779530283277761" usage:"the total supply of tokens of the network"`
	// MilestonePublicKeyCount defines the amount of public keys that have to sign a milestone.
	MilestonePublicKeyCount int `default:"1" usage:"the amount of public keys in a milestone"`
	// PublicKeyRanges are the milestone public keys and the milestone index ranges they are valid for.
	PublicKeyRanges []*PublicKeyRange `noflag:"true" usage:"the milestone public key ranges"`
	// EnforceInclusionMerkleRoot makes a mismatching inclusion merkle root a fatal error.
	EnforceInclusionMerkleRoot bool `default:"false" usage:"whether a mismatching inclusion merkle root stops the confirmation"`
}

// PublicKeyRange is a milestone public key and the milestone index range it is valid for.
// An EndIndex of 0 means the key has no expiry.
type PublicKeyRange struct {
	Key        string `default:"0000000000000000000000000000000000000000000000000000000000000000" usage:"the ed25519 public key in hex"`
	StartIndex uint32 `default:"0" usage:"the first milestone index the key is valid for"`
	EndIndex   uint32 `default:"0" usage:"the last milestone index the key is valid for"`
}

// ParametersPruning contains the definition of the parameters used by the pruning manager.
type ParametersPruning struct {
	// Enabled defines whether to delete old history after a confirmation.
	Enabled bool `default:"true" usage:"whether to delete old history"`
	// Delay is the amount of milestones the node keeps below the confirmed milestone.
	Delay uint32 `default:"60480" usage:"the amount of milestones to keep in the database"`
	// MaxMilestonesPerRun limits how many milestones are pruned in one run.
	MaxMilestonesPerRun uint32 `default:"100" usage:"the maximum amount of milestones pruned in one run"`
	// SolidEntryPointThresholdPast is the amount of milestones whose cones provide the solid entry points.
	SolidEntryPointThresholdPast uint32 `default:"15" usage:"the amount of milestones below the target index that are walked for solid entry points"`
}

// ParametersSnapshots contains the definition of the parameters used by the snapshot manager.
type ParametersSnapshots struct {
	// Enabled defines whether the node writes snapshots.
	Enabled bool `default:"true" usage:"whether to create snapshots"`
	// Depth is the amount of milestone diffs a snapshot contains below the ledger index.
	Depth uint32 `default:"50" usage:"the depth of the snapshot in milestones"`
	// Interval is the amount of milestones between two snapshots.
	Interval uint32 `default:"200" usage:"the interval in milestones between two snapshots"`
	// Path is the file the node writes snapshots to and loads the initial ledger from.
	Path string `default:"testnet/snapshots/snapshot.bin" usage:"the path to the snapshot file"`
	// ArchiveDirectory is the directory previous snapshot files are copied to.
	ArchiveDirectory string `default:"" usage:"the directory to archive previous snapshots in, empty to disable"`
}

// ParametersRetainer contains the definition of the parameters used by the transaction retainer.
type ParametersRetainer struct {
	// Enabled defines whether the inclusion state of confirmed transactions is recorded.
	Enabled bool `default:"true" usage:"whether to record the inclusion state of confirmed transactions"`
	// Path is the directory of the retainer database.
	Path string `default:"testnet/retainer" usage:"the path to the retainer database directory"`
}

var (
	// ParamsProtocol contains the configuration used by the protocol.
	ParamsProtocol = &ParametersProtocol{
		PublicKeyRanges: []*PublicKeyRange{},
	}

	ParamsPruning   = &ParametersPruning{}
	ParamsSnapshots = &ParametersSnapshots{}
	ParamsRetainer  = &ParametersRetainer{}
)

var params = &app.ComponentParams{
	Params: map[string]any{
		"protocol":  ParamsProtocol,
		"pruning":   ParamsPruning,
		"snapshots": ParamsSnapshots,
		"retainer":  ParamsRetainer,
	},
	Masked: nil,
}
