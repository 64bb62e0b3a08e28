package model

import (
	"io"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/iotaledger/hive.go/serializer/v2/stream"
)

const MaxTagLength = 64

// TaggedData is an opaque payload that never touches the ledger.
type TaggedData struct {
	Tag  []byte
	Data []byte
}

func (t *TaggedData) PayloadType() PayloadType {
	return PayloadTaggedData
}

func (t *TaggedData) Bytes() ([]byte, error) {
	return payloadBytes(t)
}

func (t *TaggedData) write(w io.WriteSeeker) error {
	if len(t.Tag) > MaxTagLength {
		return ierrors.Wrapf(ErrInvalidEncoding, "tag exceeds %d bytes", MaxTagLength)
	}
	if err := stream.WriteBytesWithSize(w, t.Tag, serializer.SeriLengthPrefixTypeAsByte); err != nil {
		return ierrors.Wrap(err, "unable to write tag")
	}

	return stream.WriteBytesWithSize(w, t.Data, serializer.SeriLengthPrefixTypeAsUint32)
}

func readTaggedData(r io.ReadSeeker) (*TaggedData, error) {
	t := &TaggedData{}

	var err error
	if t.Tag, err = stream.ReadBytesWithSize(r, serializer.SeriLengthPrefixTypeAsByte); err != nil {
		return nil, ierrors.Wrap(err, "unable to read tag")
	}
	if len(t.Tag) > MaxTagLength {
		return nil, ierrors.Wrapf(ErrInvalidEncoding, "tag exceeds %d bytes", MaxTagLength)
	}
	if t.Data, err = stream.ReadBytesWithSize(r, serializer.SeriLengthPrefixTypeAsUint32); err != nil {
		return nil, ierrors.Wrap(err, "unable to read data")
	}

	return t, nil
}
