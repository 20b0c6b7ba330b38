package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaStateDoubleToggle(t *testing.T) {
	var m MediaState

	assert.True(t, m.ToggleMute())
	assert.False(t, m.ToggleMute())
	assert.False(t, m.Muted())

	assert.True(t, m.ToggleVideo())
	assert.False(t, m.ToggleVideo())
	assert.False(t, m.VideoOff())
}

func TestMediaStatePatch(t *testing.T) {
	var m MediaState
	m.ToggleVideo()

	patch := m.Patch()
	assert.False(t, *patch.Muted)
	assert.True(t, *patch.VideoOff)
}
