package utils

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"math/big"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/tangle-core/pkg/model"
)

func RandomRead(p []byte) (n int, err error) {
	return rand.Read(p)
}

func RandomIntn(n int) int {
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}

	return int(result.Int64())
}

func RandomInt63n(n int64) int64 {
	result, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		panic(err)
	}

	return result.Int64()
}

// RandBytes returns length amount random bytes.
func RandBytes(length int) []byte {
	b := make([]byte, length)
	if _, err := RandomRead(b); err != nil {
		panic(err)
	}

	return b
}

// RandUint16 returns a random uint16.
func RandUint16(max uint16) uint16 {
	return uint16(RandomInt63n(int64(max)))
}

// RandUint32 returns a random uint32.
func RandUint32(max uint32) uint32 {
	return uint32(RandomInt63n(int64(max)))
}

// RandAmount returns a random non-zero amount below max.
func RandAmount(max uint64) uint64 {
	if max > math.MaxInt64 {
		max = math.MaxInt64
	}

	return uint64(RandomInt63n(int64(max-1))) + 1
}

func RandBlockID() model.BlockID {
	blockID := model.BlockID{}
	copy(blockID[:], RandBytes(model.IdentifierLength))

	return blockID
}

func RandTransactionID() model.TransactionID {
	transactionID := model.TransactionID{}
	copy(transactionID[:], RandBytes(model.IdentifierLength))

	return transactionID
}

func RandMilestoneID() model.MilestoneID {
	milestoneID := model.MilestoneID{}
	copy(milestoneID[:], RandBytes(model.IdentifierLength))

	return milestoneID
}

func RandOutputID(index ...uint16) model.OutputID {
	idx := RandUint16(126)
	if len(index) > 0 {
		idx = index[0]
	}

	var outputID model.OutputID
	copy(outputID[:model.IdentifierLength], RandBytes(model.IdentifierLength))
	binary.LittleEndian.PutUint16(outputID[model.IdentifierLength:], idx)

	return outputID
}

func RandAddress() model.Address {
	address := model.Address{}
	copy(address[:], RandBytes(model.AddressLength))

	return address
}

func RandMilestoneIndex() model.MilestoneIndex {
	return model.MilestoneIndex(RandUint32(math.MaxUint32))
}

func RandOutput() *model.Output {
	return RandOutputOnAddressWithAmount(RandAddress(), RandAmount(math.MaxUint32))
}

func RandOutputOnAddressWithAmount(address model.Address, amount uint64) *model.Output {
	return &model.Output{
		Address: address,
		Amount:  amount,
	}
}

// RandPrivateKey returns a fresh ed25519 key.
func RandPrivateKey() ed25519.PrivateKey {
	return ed25519.PrivateKeyFromSeed(RandBytes(ed25519.SeedSize))
}
