package model

import (
	"io"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
)

var (
	ErrInvalidEncoding     = ierrors.New("invalid encoding")
	ErrUnknownPayloadType  = ierrors.New("unknown payload type")
	ErrInvalidParentsCount = ierrors.New("invalid parents count")
	ErrParentsNotSorted    = ierrors.New("parents are not sorted and unique")
)

// PayloadType denotes the kind of a block payload.
type PayloadType uint32

const (
	PayloadTransaction PayloadType = 1
	PayloadMilestone   PayloadType = 2
	PayloadTaggedData  PayloadType = 3
)

func (t PayloadType) String() string {
	switch t {
	case PayloadTransaction:
		return "Transaction"
	case PayloadMilestone:
		return "Milestone"
	case PayloadTaggedData:
		return "TaggedData"
	default:
		return "Unknown"
	}
}

// Payload is the content carried by a block.
type Payload interface {
	PayloadType() PayloadType
	Bytes() ([]byte, error)

	write(w io.WriteSeeker) error
}

func payloadBytes(p Payload) ([]byte, error) {
	byteBuffer := stream.NewByteBuffer()

	if err := stream.Write(byteBuffer, uint32(p.PayloadType())); err != nil {
		return nil, ierrors.Wrap(err, "unable to write payload type")
	}
	if err := p.write(byteBuffer); err != nil {
		return nil, err
	}

	return byteBuffer.Bytes()
}

// PayloadFromBytes parses a type-prefixed payload. An empty slice yields a nil payload.
func PayloadFromBytes(data []byte) (Payload, error) {
	if len(data) == 0 {
		return nil, nil
	}

	reader := stream.NewByteReader(data)

	payloadType, err := stream.Read[uint32](reader)
	if err != nil {
		return nil, ierrors.Wrap(err, "unable to read payload type")
	}

	var payload Payload
	switch PayloadType(payloadType) {
	case PayloadTransaction:
		payload, err = readTransaction(reader)
	case PayloadMilestone:
		payload, err = readMilestone(reader)
	case PayloadTaggedData:
		payload, err = readTaggedData(reader)
	default:
		return nil, ierrors.Wrapf(ErrUnknownPayloadType, "type %d", payloadType)
	}
	if err != nil {
		return nil, ierrors.Wrapf(err, "unable to read %s payload", PayloadType(payloadType))
	}

	if err := ensureConsumed(reader, len(data)); err != nil {
		return nil, err
	}

	return payload, nil
}

func ensureConsumed(reader io.Seeker, length int) error {
	offset := lo.PanicOnErr(reader.Seek(0, io.SeekCurrent))
	if offset != int64(length) {
		return ierrors.Wrapf(ErrInvalidEncoding, "%d trailing bytes", int64(length)-offset)
	}

	return nil
}
