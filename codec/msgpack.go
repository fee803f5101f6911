package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack encodes the envelope with MessagePack: compact, fast, and the
// default for the Redis-backed tier.
type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }

func (Msgpack) Encode(e Envelope) ([]byte, error) {
	e.Version = EnvelopeVersion
	return msgpack.Marshal(e)
}

func (Msgpack) Decode(blob []byte) (Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(blob, &e); err != nil {
		return Envelope{}, err
	}
	if e.Version != EnvelopeVersion {
		return Envelope{}, fmt.Errorf("%w: %d", ErrVersion, e.Version)
	}
	return e, nil
}

var _ Codec = Msgpack{}
