package client

import (
	"errors"
	"fmt"

	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// presenceLabel names the data channel that carries presence announcements.
const presenceLabel = "presence"

var ErrBadPresence = errors.New("bad presence payload")

func EncodePresence(p domain.PresencePayload) ([]byte, error) {
	return msgpack.Marshal(&p)
}

func DecodePresence(b []byte) (domain.PresencePayload, error) {
	var p domain.PresencePayload
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return domain.PresencePayload{}, fmt.Errorf("%w: %v", ErrBadPresence, err)
	}
	if p.Type != domain.PresenceUserJoined || p.UserID == "" {
		return domain.PresencePayload{}, ErrBadPresence
	}
	return p, nil
}
