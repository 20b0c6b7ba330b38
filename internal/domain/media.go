package domain

import "sync"

// MediaState holds the local microphone and camera switches.
type MediaState struct {
	mu       sync.Mutex
	muted    bool
	videoOff bool
}

func (m *MediaState) ToggleMute() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = !m.muted
	return m.muted
}

func (m *MediaState) ToggleVideo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoOff = !m.videoOff
	return m.videoOff
}

func (m *MediaState) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *MediaState) VideoOff() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoOff
}

// Patch returns the flags as a roster patch.
func (m *MediaState) Patch() ParticipantPatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	muted, videoOff := m.muted, m.videoOff
	return ParticipantPatch{Muted: &muted, VideoOff: &videoOff}
}
