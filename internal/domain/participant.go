package domain

import "time"

const displayNamePrefixLength = 4

// Participant is a roster entry. PeerID is the participant's connection
// endpoint name, empty until the endpoint is open.
type Participant struct {
	ID       string    `json:"id" msgpack:"id"`
	Name     string    `json:"name" msgpack:"name"`
	IsHost   bool      `json:"is_host,omitempty" msgpack:"is_host,omitempty"`
	PeerID   string    `json:"peer_id,omitempty" msgpack:"peer_id,omitempty"`
	Muted    bool      `json:"muted,omitempty" msgpack:"muted,omitempty"`
	VideoOff bool      `json:"video_off,omitempty" msgpack:"video_off,omitempty"`
	JoinedAt time.Time `json:"joined_at" msgpack:"joined_at"`
}

func NewParticipant(id string, isHost bool) Participant {
	return Participant{
		ID:       id,
		Name:     DisplayName(id),
		IsHost:   isHost,
		JoinedAt: time.Now().UTC(),
	}
}

// DisplayName derives the default name shown for a participant id.
func DisplayName(id string) string {
	prefix := id
	if len(prefix) > displayNamePrefixLength {
		prefix = prefix[:displayNamePrefixLength]
	}
	return "User " + prefix
}

// ParticipantPatch carries the fields an update may change. Nil fields are
// left untouched.
type ParticipantPatch struct {
	Name     *string `json:"name,omitempty"`
	IsHost   *bool   `json:"is_host,omitempty"`
	PeerID   *string `json:"peer_id,omitempty"`
	Muted    *bool   `json:"muted,omitempty"`
	VideoOff *bool   `json:"video_off,omitempty"`
}

func (p ParticipantPatch) IsEmpty() bool {
	return p.Name == nil && p.IsHost == nil && p.PeerID == nil && p.Muted == nil && p.VideoOff == nil
}

func (p ParticipantPatch) apply(dst *Participant) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.IsHost != nil {
		dst.IsHost = *p.IsHost
	}
	if p.PeerID != nil {
		dst.PeerID = *p.PeerID
	}
	if p.Muted != nil {
		dst.Muted = *p.Muted
	}
	if p.VideoOff != nil {
		dst.VideoOff = *p.VideoOff
	}
}

// ValidParticipantID reports whether id can name a participant and its
// endpoint. Suffixes of room-wide channels are reserved.
func ValidParticipantID(id string) bool {
	if validate.Var(id, "required,alphanum,max=64") != nil {
		return false
	}
	return !reservedChannel(id)
}
