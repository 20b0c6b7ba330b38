package domain

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is a tutoring session shared by a host and its participants. It owns
// the roster, the open peer endpoints and the three shared documents.
type Room struct {
	Mutex      sync.RWMutex
	ID         uuid.UUID
	Code       string
	SessionID  string
	HostKey    string
	Name       string
	Roster     *Roster
	Peers      map[string]*Peer
	Editor     *EditorDocument
	Whiteboard *Whiteboard
	Terminal   *Transcript
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// NewRoom constructs a room. Missing identifiers are minted.
func NewRoom(name, sessionID, code string, lifetime time.Duration) *Room {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	if code == "" {
		code = NewRoomCode()
	}
	if name == "" {
		name = "Room " + code
	}

	now := time.Now().UTC()
	room := &Room{
		ID:        uuid.New(),
		Code:      code,
		SessionID: sessionID,
		HostKey:   NewHostKey(),
		Name:      name,
		CreatedAt: now,
	}
	room.Init()

	if lifetime > 0 {
		room.ExpiresAt = now.Add(lifetime)
	}

	return room
}

// Init allocates the in-memory state of a room loaded from storage.
func (r *Room) Init() {
	if r.Roster == nil {
		r.Roster = NewRoster()
	}
	if r.Peers == nil {
		r.Peers = make(map[string]*Peer)
	}
	if r.Editor == nil {
		r.Editor = NewEditorDocument()
	}
	if r.Whiteboard == nil {
		r.Whiteboard = NewWhiteboard()
	}
	if r.Terminal == nil {
		r.Terminal = NewTranscript()
	}
}

// IsExpired reports whether the room is no longer valid.
func (r *Room) IsExpired() bool {
	if r == nil {
		return true
	}
	if r.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(r.ExpiresAt)
}

func (r *Room) AcceptsSession(sessionID string) bool {
	return sessionID != "" && sessionID == r.SessionID
}

func (r *Room) IsHostKey(key string) bool {
	if key == "" || r.HostKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(r.HostKey)) == 1
}

// Session returns the session a participant of this room resolves to.
func (r *Room) Session(role Role) Session {
	return Session{ID: r.SessionID, RoomCode: r.Code, Role: role}
}

func (r *Room) Peer(participantID string) (*Peer, bool) {
	r.Mutex.RLock()
	defer r.Mutex.RUnlock()
	p, ok := r.Peers[participantID]
	return p, ok
}

func (r *Room) PeerCount() int {
	r.Mutex.RLock()
	defer r.Mutex.RUnlock()
	return len(r.Peers)
}
