package domain

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

const (
	sessionIDLength     = 12
	participantIDLength = 10
	roomCodeLength      = 6
	roomCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	querySession = "session"
	queryRoom    = "room"
)

var ErrInvalidInviteLink = errors.New("invalid invite link")

var validate = validator.New(validator.WithRequiredStructEnabled())

// InviteParams are the two values carried by an invite link.
type InviteParams struct {
	Session string `validate:"required,alphanum,min=4,max=64"`
	Room    string `validate:"required,alphanum,min=4,max=16"`
}

// Valid reports whether both values are present and well formed.
func (p InviteParams) Valid() bool {
	return validate.Struct(p) == nil
}

// Session is the identity a client settles on at startup.
type Session struct {
	ID       string `json:"session_id"`
	RoomCode string `json:"room_code"`
	Role     Role   `json:"role"`
}

func (s Session) IsHost() bool {
	return s.Role == RoleHost
}

// ResolveSession adopts a complete, valid invite as a participant. Anything
// else, including a half-filled or malformed invite, makes the caller a host
// of a freshly minted room.
func ResolveSession(params InviteParams) Session {
	if params.Valid() {
		return Session{
			ID:       params.Session,
			RoomCode: params.Room,
			Role:     RoleParticipant,
		}
	}

	return Session{
		ID:       NewSessionID(),
		RoomCode: NewRoomCode(),
		Role:     RoleHost,
	}
}

// ParseInviteQuery reads session and room from a raw query string. A leading
// "?" is tolerated. Unparseable input yields empty params.
func ParseInviteQuery(rawQuery string) InviteParams {
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return InviteParams{}
	}
	return InviteParams{
		Session: strings.TrimSpace(values.Get(querySession)),
		Room:    strings.TrimSpace(values.Get(queryRoom)),
	}
}

func ParseInviteLink(link string) (InviteParams, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return InviteParams{}, errors.Join(ErrInvalidInviteLink, err)
	}
	return ParseInviteQuery(u.RawQuery), nil
}

// InviteLink appends the session and room to base, replacing any query base
// already carries.
func (s Session) InviteLink(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Join(ErrInvalidInviteLink, err)
	}

	q := url.Values{}
	q.Set(querySession, s.ID)
	q.Set(queryRoom, s.RoomCode)
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String(), nil
}

func NewSessionID() string {
	return shortID(sessionIDLength)
}

func NewParticipantID() string {
	return shortID(participantIDLength)
}

func NewHostKey() string {
	return uuid.NewString()
}

func NewRoomCode() string {
	var b strings.Builder
	b.Grow(roomCodeLength)
	for i := 0; i < roomCodeLength; i++ {
		b.WriteByte(roomCodeAlphabet[randomIndex(len(roomCodeAlphabet))])
	}
	return b.String()
}

func shortID(n int) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(id) <= n {
		return id
	}
	return id[:n]
}

func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic("domain: crypto/rand failed: " + err.Error())
	}
	return int(n.Int64())
}
