package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes the envelope with RFC 8949 CBOR using integer map keys.
// A standards-backed alternative to Msgpack with comparable density.
type CBOR struct{}

func (CBOR) Name() string { return "cbor" }

func (CBOR) Encode(e Envelope) ([]byte, error) {
	e.Version = EnvelopeVersion
	return cbor.Marshal(e)
}

func (CBOR) Decode(blob []byte) (Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(blob, &e); err != nil {
		return Envelope{}, err
	}
	if e.Version != EnvelopeVersion {
		return Envelope{}, fmt.Errorf("%w: %d", ErrVersion, e.Version)
	}
	return e, nil
}

var _ Codec = CBOR{}
