package whiteflag

import (
	"hash"
	"math/bits"

	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// Domain separation prefixes of leaves and inner nodes.
const (
	LeafHashPrefix = 0
	NodeHashPrefix = 1
)

// ErrProofIndexOutOfRange is returned if a proof is requested for a leaf that does not exist.
var ErrProofIndexOutOfRange = ierrors.New("proof index out of range")

// Hasher computes the Merkle tree hash of an ordered list of block ids.
// The tree splits n leaves at the largest power of two smaller than n.
type Hasher struct {
	newHash func() hash.Hash
}

func NewHasher() *Hasher {
	return &Hasher{
		newHash: func() hash.Hash {
			return lo.PanicOnErr(blake2b.New256(nil))
		},
	}
}

// EmptyRoot returns the hash of an empty tree.
func (h *Hasher) EmptyRoot() model.MerkleRoot {
	var root model.MerkleRoot
	copy(root[:], h.newHash().Sum(nil))

	return root
}

// Hash returns the Merkle tree hash of the given block ids.
func (h *Hasher) Hash(blockIDs model.BlockIDs) model.MerkleRoot {
	var root model.MerkleRoot
	copy(root[:], h.hash(blockIDs))

	return root
}

func (h *Hasher) hash(blockIDs model.BlockIDs) []byte {
	switch len(blockIDs) {
	case 0:
		return h.newHash().Sum(nil)
	case 1:
		return h.hashLeaf(blockIDs[0])
	default:
		k := largestPowerOfTwo(len(blockIDs))

		return h.hashNode(h.hash(blockIDs[:k]), h.hash(blockIDs[k:]))
	}
}

func (h *Hasher) hashLeaf(blockID model.BlockID) []byte {
	leafHash := h.newHash()
	_, _ = leafHash.Write([]byte{LeafHashPrefix})
	_, _ = leafHash.Write(blockID[:])

	return leafHash.Sum(nil)
}

func (h *Hasher) hashNode(left []byte, right []byte) []byte {
	nodeHash := h.newHash()
	_, _ = nodeHash.Write([]byte{NodeHashPrefix})
	_, _ = nodeHash.Write(left)
	_, _ = nodeHash.Write(right)

	return nodeHash.Sum(nil)
}

// largestPowerOfTwo returns the largest power of two less than n, for n > 1.
func largestPowerOfTwo(n int) int {
	return 1 << (bits.Len(uint(n-1)) - 1)
}

// ProofStep is a sibling hash on the path from a leaf to the root.
type ProofStep struct {
	Hash []byte
	// Left is true if the sibling is the left child of the node.
	Left bool
}

// Proof shows that a block id is part of a Merkle tree.
type Proof struct {
	BlockID model.BlockID
	Path    []*ProofStep
}

// ComputeProof returns the inclusion proof of the block id at the given position.
func (h *Hasher) ComputeProof(blockIDs model.BlockIDs, index int) (*Proof, error) {
	if index < 0 || index >= len(blockIDs) {
		return nil, ierrors.Wrapf(ErrProofIndexOutOfRange, "index %d, %d leaves", index, len(blockIDs))
	}

	proof := &Proof{
		BlockID: blockIDs[index],
		Path:    make([]*ProofStep, 0),
	}

	// walk down from the root, siblings are collected top-down and reversed afterwards
	for len(blockIDs) > 1 {
		k := largestPowerOfTwo(len(blockIDs))
		if index < k {
			proof.Path = append(proof.Path, &ProofStep{Hash: h.hash(blockIDs[k:]), Left: false})
			blockIDs = blockIDs[:k]

			continue
		}

		proof.Path = append(proof.Path, &ProofStep{Hash: h.hash(blockIDs[:k]), Left: true})
		blockIDs = blockIDs[k:]
		index -= k
	}

	for i, j := 0, len(proof.Path)-1; i < j; i, j = i+1, j-1 {
		proof.Path[i], proof.Path[j] = proof.Path[j], proof.Path[i]
	}

	return proof, nil
}

// Root recomputes the root of the tree the proof was computed for.
func (p *Proof) Root(h *Hasher) model.MerkleRoot {
	current := h.hashLeaf(p.BlockID)
	for _, step := range p.Path {
		if step.Left {
			current = h.hashNode(step.Hash, current)
		} else {
			current = h.hashNode(current, step.Hash)
		}
	}

	var root model.MerkleRoot
	copy(root[:], current)

	return root
}
