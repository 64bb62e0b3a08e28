package model

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
	"github.com/iotaledger/iota.go/v4/hexutil"
)

const (
	// AddressLength is the length of an Ed25519 address.
	AddressLength = blake2b.Size256
	// OutputLength is the serialized length of a BasicOutput.
	OutputLength = AddressLength + 8
)

// Address is the blake2b-256 hash of an Ed25519 public key.
type Address [AddressLength]byte

// AddressFromPublicKey derives the address controlled by the given key.
func AddressFromPublicKey(publicKey ed25519.PublicKey) Address {
	return blake2b.Sum256(publicKey[:])
}

func AddressFromBytes(b []byte) (Address, int, error) {
	var addr Address
	if len(b) < AddressLength {
		return addr, 0, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", AddressLength, len(b))
	}
	copy(addr[:], b)

	return addr, AddressLength, nil
}

func AddressFromHexString(hexString string) (Address, error) {
	b, err := hexutil.DecodeHex(hexString)
	if err != nil {
		return Address{}, err
	}
	if len(b) != AddressLength {
		return Address{}, ierrors.Wrapf(ErrInvalidIdentifierLength, "expected %d bytes, got %d", AddressLength, len(b))
	}

	addr, _, err := AddressFromBytes(b)

	return addr, err
}

func (a Address) Bytes() ([]byte, error) {
	return a[:], nil
}

func (a Address) ToHex() string {
	return hexutil.EncodeHex(a[:])
}

func (a Address) String() string {
	return a.ToHex()
}

// Output is a basic output transferring Amount tokens to Address.
type Output struct {
	Address Address
	Amount  uint64
}

// Outputs is a slice of Output.
type Outputs []*Output

func OutputFromBytes(b []byte) (*Output, int, error) {
	if len(b) < OutputLength {
		return nil, 0, ierrors.Wrapf(ErrInvalidEncoding, "output needs %d bytes, got %d", OutputLength, len(b))
	}

	output := &Output{}
	copy(output.Address[:], b[:AddressLength])
	output.Amount = binary.LittleEndian.Uint64(b[AddressLength:OutputLength])

	return output, OutputLength, nil
}

func (o *Output) Bytes() ([]byte, error) {
	b := make([]byte, OutputLength)
	copy(b, o.Address[:])
	binary.LittleEndian.PutUint64(b[AddressLength:], o.Amount)

	return b, nil
}

func (o *Output) write(w io.WriteSeeker) error {
	if err := stream.Write(w, o.Address); err != nil {
		return ierrors.Wrap(err, "unable to write output address")
	}

	return stream.Write(w, o.Amount)
}

func readOutput(r io.ReadSeeker) (*Output, error) {
	output := &Output{}

	var err error
	if output.Address, err = stream.Read[Address](r); err != nil {
		return nil, ierrors.Wrap(err, "unable to read output address")
	}
	if output.Amount, err = stream.Read[uint64](r); err != nil {
		return nil, ierrors.Wrap(err, "unable to read output amount")
	}

	return output, nil
}

// Clone returns a copy of the output.
func (o *Output) Clone() *Output {
	return &Output{Address: o.Address, Amount: o.Amount}
}
