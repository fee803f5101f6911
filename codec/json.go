package codec

import (
	"encoding/json"
	"fmt"
)

// JSON encodes the envelope with encoding/json. Payload bytes go through
// base64, so it is the least compact option; useful when tier contents
// must stay inspectable with standard tools.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(e Envelope) ([]byte, error) {
	e.Version = EnvelopeVersion
	return json.Marshal(e)
}

func (JSON) Decode(blob []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(blob, &e); err != nil {
		return Envelope{}, err
	}
	if e.Version != EnvelopeVersion {
		return Envelope{}, fmt.Errorf("%w: %d", ErrVersion, e.Version)
	}
	return e, nil
}

var _ Codec = JSON{}
