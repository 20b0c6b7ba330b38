package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "XY9Z12-abc", EndpointName("XY9Z12", "abc"))
	assert.Equal(t, "XY9Z12-editor", ReplicationChannel("XY9Z12", PanelEditor))
	assert.Equal(t, "XY9Z12-whiteboard", ReplicationChannel("XY9Z12", PanelWhiteboard))
	assert.Equal(t, "XY9Z12-terminal", ReplicationChannel("XY9Z12", PanelTerminal))
	assert.Equal(t, []string{
		"XY9Z12-presence",
		"XY9Z12-editor",
		"XY9Z12-whiteboard",
		"XY9Z12-terminal",
	}, RoomChannels("XY9Z12"))
}

func TestParsePanel(t *testing.T) {
	p, err := ParsePanel(" Whiteboard ")
	require.NoError(t, err)
	assert.Equal(t, PanelWhiteboard, p)

	_, err = ParsePanel("layout")
	assert.ErrorIs(t, err, ErrUnknownPanel)
}

func TestEndpointNamesNeverShadowRoomChannels(t *testing.T) {
	for _, id := range []string{"presence", "Presence", "editor", "whiteboard", "TERMINAL"} {
		assert.False(t, ValidParticipantID(id), id)
	}
	for _, id := range []string{"alice", "presence2", "editors", "a1b2c3"} {
		assert.True(t, ValidParticipantID(id), id)
	}

	channels := RoomChannels("XY9Z12")
	for _, id := range []string{"alice", "presence2"} {
		assert.NotContains(t, channels, EndpointName("XY9Z12", id))
	}
}
