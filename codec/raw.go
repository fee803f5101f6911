package codec

// Raw stores the payload bytes as-is, with no envelope. Suited to
// in-process tiers that cannot outlive the writing build, so the version
// check buys nothing.
type Raw struct{}

func (Raw) Name() string { return "raw" }

func (Raw) Encode(e Envelope) ([]byte, error) {
	return e.Payload, nil
}

func (Raw) Decode(blob []byte) (Envelope, error) {
	return Envelope{Version: EnvelopeVersion, Payload: blob}, nil
}

var _ Codec = Raw{}
