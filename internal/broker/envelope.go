package broker

import "github.com/vmihailenco/msgpack/v5"

// Envelope wraps a client frame with its origin so subscribers can skip
// echoing a frame back to the participant that produced it. Origin names
// the server instance that published it.
type Envelope struct {
	Origin string `msgpack:"origin,omitempty"`
	Sender string `msgpack:"sender"`
	Echo   bool   `msgpack:"echo,omitempty"`
	Frame  []byte `msgpack:"frame"`
}

func (e Envelope) Encode() ([]byte, error) {
	return msgpack.Marshal(&e)
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	err := msgpack.Unmarshal(b, &e)
	return e, err
}

// SkipFor reports whether the frame must not be delivered to participantID.
func (e Envelope) SkipFor(participantID string) bool {
	return !e.Echo && e.Sender != "" && e.Sender == participantID
}
