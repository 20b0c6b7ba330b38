package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/lib/logger/handlers/slogdiscard"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wire relays negotiation between two meshes in order, the way the
// server does, stamping the sender.
type wire struct {
	mu    sync.Mutex
	queue chan domain.SignalMessage
	peers map[string]Mesh
}

func newWire(t *testing.T) *wire {
	w := &wire{queue: make(chan domain.SignalMessage, 256), peers: make(map[string]Mesh)}
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		for {
			select {
			case msg := <-w.queue:
				w.mu.Lock()
				target := w.peers[msg.TargetID]
				w.mu.Unlock()
				if target != nil {
					_ = target.HandleSignal(msg)
				}
			case <-done:
				return
			}
		}
	}()
	return w
}

func (w *wire) sender(from string) func(domain.SignalMessage) error {
	return func(msg domain.SignalMessage) error {
		msg.SenderID = from
		w.queue <- msg
		return nil
	}
}

func (w *wire) attach(id string, m Mesh) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.peers[id] = m
}

func TestPionMeshNegotiates(t *testing.T) {
	log := slogdiscard.NewDiscardLogger()
	api, err := NewAPI(log)
	require.NoError(t, err)
	w := newWire(t)

	newMesh := func(id string) *PionMesh {
		local, err := StaticMediaSource{StreamID: id, Audio: true, Video: true}.Acquire(context.Background())
		require.NoError(t, err)
		m, err := NewPionMesh(api, MeshConfig{
			SelfID:     id,
			EndpointID: domain.EndpointName("ROOM42", id),
			Media:      local,
			Send:       w.sender(id),
		}, log)
		require.NoError(t, err)
		t.Cleanup(func() { _ = m.Close() })
		w.attach(id, m)
		return m
	}

	alice := newMesh("alice")
	bob := newMesh("bob")

	require.NoError(t, alice.Connect("bob"))

	require.Eventually(t, func() bool {
		state, ok := alice.SignalingState("bob")
		return ok && state == webrtc.SignalingStateStable
	}, 5*time.Second, 20*time.Millisecond)

	state, ok := bob.SignalingState("alice")
	require.True(t, ok)
	assert.Equal(t, webrtc.SignalingStateStable, state)

	require.NoError(t, bob.Remove("alice"))
	_, ok = bob.SignalingState("alice")
	assert.False(t, ok)
	require.NoError(t, bob.Remove("alice"))

	require.NoError(t, alice.Close())
	assert.ErrorIs(t, alice.Connect("bob"), ErrSignalerClosed)
}

func TestPionMeshRejectsBadSignals(t *testing.T) {
	log := slogdiscard.NewDiscardLogger()
	api, err := NewAPI(log)
	require.NoError(t, err)

	_, err = NewPionMesh(api, MeshConfig{SelfID: "alice"}, log)
	require.Error(t, err)

	m, err := NewPionMesh(api, MeshConfig{SelfID: "alice", Send: func(domain.SignalMessage) error { return nil }}, log)
	require.NoError(t, err)
	defer m.Close()

	assert.Error(t, m.HandleSignal(domain.SignalMessage{Type: domain.SignalOffer}))
	assert.Error(t, m.HandleSignal(domain.SignalMessage{Type: domain.SignalOffer, SenderID: "bob"}))
	assert.ErrorIs(t, m.HandleSignal(domain.SignalMessage{
		Type:     domain.SignalAnswer,
		SenderID: "bob",
		SDP:      &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"},
	}), ErrUnknownRemote)
	assert.ErrorIs(t, m.HandleSignal(domain.SignalMessage{Type: domain.SignalChat, SenderID: "bob"}), ErrUnsupportedNegotiation)

	early := "candidate:1 1 udp 2130706431 10.0.0.1 50000 typ host"
	require.NoError(t, m.HandleSignal(domain.SignalMessage{
		Type:      domain.SignalICECandidate,
		SenderID:  "bob",
		Candidate: &webrtc.ICECandidateInit{Candidate: early},
	}))
}
