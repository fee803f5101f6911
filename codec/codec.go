// Package codec defines the envelope format secondary-tier providers use
// to store flattened cache values, with interchangeable encodings.
//
// The envelope carries a format version next to the payload so a tier
// surviving across process restarts (e.g. Redis) can reject blobs
// written by an incompatible build instead of feeding them to the
// reconstruction callback.
package codec

import "errors"

// EnvelopeVersion is the current envelope format version.
const EnvelopeVersion = 1

// ErrVersion is returned by Decode for an envelope written with an
// unsupported format version.
var ErrVersion = errors.New("codec: unsupported envelope version")

// Envelope wraps a flattened cache value for tier storage.
type Envelope struct {
	Version uint8  `json:"v" msgpack:"v" cbor:"1,keyasint"`
	Payload []byte `json:"p" msgpack:"p" cbor:"2,keyasint"`
}

// Codec encodes envelopes to the byte blobs a provider stores.
// Implementations must be safe for concurrent use.
type Codec interface {
	Name() string
	Encode(e Envelope) ([]byte, error)
	Decode(blob []byte) (Envelope, error)
}
