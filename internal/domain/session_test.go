package domain

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSessionFromInvite(t *testing.T) {
	s := ResolveSession(ParseInviteQuery("?session=abc123&room=XY9Z12"))

	assert.Equal(t, "abc123", s.ID)
	assert.Equal(t, "XY9Z12", s.RoomCode)
	assert.Equal(t, RoleParticipant, s.Role)
	assert.False(t, s.IsHost())
}

func TestResolveSessionMintsHost(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"room only":       "room=XY9Z12",
		"session only":    "session=abc123",
		"malformed room":  "session=abc123&room=XY-9",
		"room too long":   "session=abc123&room=ABCDEFGHIJKLMNOPQ",
		"session symbols": "session=abc%20123&room=XY9Z12",
	}

	for name, query := range cases {
		t.Run(name, func(t *testing.T) {
			s := ResolveSession(ParseInviteQuery(query))
			assert.Equal(t, RoleHost, s.Role)
			assert.NotEmpty(t, s.ID)
			assert.Len(t, s.RoomCode, roomCodeLength)
			assert.NotEqual(t, "abc123", s.ID)
		})
	}
}

func TestResolveSessionFreshIdentifiers(t *testing.T) {
	a := ResolveSession(InviteParams{})
	b := ResolveSession(InviteParams{})

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID+a.RoomCode, b.ID+b.RoomCode)
	assert.True(t, InviteParams{Session: a.ID, Room: a.RoomCode}.Valid())
}

func TestInviteLinkRoundTrip(t *testing.T) {
	s := Session{ID: "abc123", RoomCode: "XY9Z12", Role: RoleHost}

	link, err := s.InviteLink("https://tutor.example/app?tab=code#top")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/app", u.Path)
	assert.Empty(t, u.Fragment)
	assert.Empty(t, u.Query().Get("tab"))

	params, err := ParseInviteLink(link)
	require.NoError(t, err)
	resolved := ResolveSession(params)
	assert.Equal(t, Session{ID: "abc123", RoomCode: "XY9Z12", Role: RoleParticipant}, resolved)
}

func TestNewRoomCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := NewRoomCode()
		require.Len(t, code, roomCodeLength)
		for _, r := range code {
			assert.Contains(t, roomCodeAlphabet, string(r))
		}
	}
}
