package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	httpapi "github.com/immxrtalbeast/codetutor/internal/api/http"
	"github.com/immxrtalbeast/codetutor/internal/broker"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/internal/repository"
	"github.com/immxrtalbeast/codetutor/internal/service"
	"github.com/immxrtalbeast/codetutor/lib/logger/handlers/slogdiscard"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRoomServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slogdiscard.NewDiscardLogger()
	b := broker.NewMemory(64, log)
	rooms := service.NewRoomService(
		repository.NewInMemoryRoomRepository(),
		repository.NewInMemoryContentRepository(),
		b,
		log,
		service.Options{ICEServers: []string{"stun:stun.example:3478"}},
	)
	router := httpapi.SetupRouter(
		[]string{"http://localhost:3000"},
		httpapi.NewRoomController(rooms, "https://tutor.example/", log),
		httpapi.NewSessionController(service.NewSessionService("https://tutor.example/", log)),
		nil,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		rooms.Close()
		_ = b.Close()
	})
	return srv
}

// fakeMesh records what the agent asks of it. Connect sends a stub offer
// so negotiation relay through the server is exercised.
type fakeMesh struct {
	cfg MeshConfig

	mu        sync.Mutex
	connected []string
	received  []domain.SignalMessage
	removed   []string
	closed    bool
}

func (m *fakeMesh) Connect(remoteID string) error {
	m.mu.Lock()
	m.connected = append(m.connected, remoteID)
	m.mu.Unlock()
	return m.cfg.Send(domain.SignalMessage{
		Type:     domain.SignalOffer,
		SDP:      &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"},
		TargetID: remoteID,
	})
}

func (m *fakeMesh) HandleSignal(msg domain.SignalMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, msg)
	return nil
}

func (m *fakeMesh) Remove(remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, remoteID)
	return nil
}

func (m *fakeMesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeMesh) snapshot() (connected, removed []string, received []domain.SignalMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.connected...), append([]string(nil), m.removed...), append([]domain.SignalMessage(nil), m.received...)
}

type meshRecorder struct {
	mu     sync.Mutex
	meshes []*fakeMesh
}

func (r *meshRecorder) factory(cfg MeshConfig) (Mesh, error) {
	m := &fakeMesh{cfg: cfg}
	r.mu.Lock()
	r.meshes = append(r.meshes, m)
	r.mu.Unlock()
	return m, nil
}

func (r *meshRecorder) last() *fakeMesh {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.meshes) == 0 {
		return nil
	}
	return r.meshes[len(r.meshes)-1]
}

type runningAgent struct {
	*Agent
	meshes *meshRecorder
	result chan error
}

func startAgent(t *testing.T, cfg Config) *runningAgent {
	t.Helper()
	rec := &meshRecorder{}
	cfg.NewMesh = rec.factory
	if cfg.Media == nil {
		cfg.Media = StaticMediaSource{StreamID: cfg.ParticipantID, Audio: true, Video: true}
	}
	cfg.RetryInitial = 10 * time.Millisecond

	a, err := NewAgent(cfg, slogdiscard.NewDiscardLogger())
	require.NoError(t, err)

	ra := &runningAgent{Agent: a, meshes: rec, result: make(chan error, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { ra.result <- a.Run(ctx) }()
	t.Cleanup(func() {
		_ = a.Close()
		cancel()
	})
	return ra
}

func (ra *runningAgent) waitConnected(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return ra.State() == StateConnected }, waitFor, tick)
}

func TestAgentsCollaborate(t *testing.T) {
	srv := newRoomServer(t)
	api := NewAPIClient(srv.URL, nil)

	created, err := api.CreateRoom(context.Background(), CreateRoomRequest{Name: "Algebra"})
	require.NoError(t, err)
	invite, err := ParseInvite(created.InviteLink)
	require.NoError(t, err)
	assert.Equal(t, created.Room.Code, invite.Room)

	var (
		chatMu sync.Mutex
		chats  []domain.ChatPayload
	)
	host := startAgent(t, Config{
		ServerURL:     srv.URL,
		RoomCode:      invite.Room,
		SessionID:     invite.Session,
		ParticipantID: "host1",
		HostKey:       created.HostKey,
		Name:          "Tutor",
		OnChat: func(p domain.ChatPayload) {
			chatMu.Lock()
			chats = append(chats, p)
			chatMu.Unlock()
		},
	})
	host.waitConnected(t)
	session, ok := host.Session()
	require.True(t, ok)
	assert.True(t, session.IsHost())

	guest := startAgent(t, Config{
		ServerURL:     srv.URL,
		RoomCode:      invite.Room,
		SessionID:     invite.Session,
		ParticipantID: "guest1",
	})
	guest.waitConnected(t)

	// The newcomer calls everyone already in the room.
	connected, _, _ := guest.meshes.last().snapshot()
	assert.Equal(t, []string{"host1"}, connected)
	require.Eventually(t, func() bool {
		_, _, received := host.meshes.last().snapshot()
		return len(received) == 1 && received[0].SenderID == "guest1" && received[0].Type == domain.SignalOffer
	}, waitFor, tick)

	require.Eventually(t, func() bool {
		_, ok := host.Roster().Get("guest1")
		p, named := guest.Roster().Get("host1")
		return ok && named && p.Name == "Tutor" && p.IsHost
	}, waitFor, tick)

	assert.ErrorIs(t, guest.RunCommand("ls"), domain.ErrHostOnly)
	require.NoError(t, host.RunCommand("ls"))
	require.Eventually(t, func() bool { return guest.Transcript().Len() == 1 }, waitFor, tick)
	assert.Equal(t, "$ ls\n> Command executed", guest.Transcript().Since(0)[0].Output)

	require.NoError(t, guest.DrawStroke(domain.Stroke{Color: "#ff0000", Width: 3, Points: []domain.Point{{X: 1, Y: 1}}}))
	require.Eventually(t, func() bool { return host.Whiteboard().Len() == 1 && guest.Whiteboard().Len() == 1 }, waitFor, tick)
	require.NoError(t, host.ClearWhiteboard())
	require.Eventually(t, func() bool {
		return guest.Whiteboard().Len() == 0 && guest.Whiteboard().Epoch() == 1
	}, waitFor, tick)

	require.NoError(t, guest.PublishEditor([]byte("state"), true))
	require.Eventually(t, func() bool { return host.Editor().Len() == 1 }, waitFor, tick)

	muted, err := guest.ToggleMute()
	require.NoError(t, err)
	assert.True(t, muted)
	assert.False(t, guest.Media().Enabled(webrtc.RTPCodecTypeAudio))
	require.Eventually(t, func() bool {
		p, ok := host.Roster().Get("guest1")
		return ok && p.Muted
	}, waitFor, tick)

	require.NoError(t, guest.Chat("hello"))
	require.Eventually(t, func() bool {
		chatMu.Lock()
		defer chatMu.Unlock()
		return len(chats) == 1 && chats[0].Message == "hello"
	}, waitFor, tick)

	require.NoError(t, guest.Close())
	assert.Equal(t, StateClosed, guest.State())
	_, present := guest.Roster().Get("guest1")
	assert.False(t, present)

	select {
	case err := <-guest.result:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("guest agent did not stop")
	}

	require.Eventually(t, func() bool {
		_, ok := host.Roster().Get("guest1")
		_, removed, _ := host.meshes.last().snapshot()
		return !ok && len(removed) == 1 && removed[0] == "guest1"
	}, waitFor, tick)

	participants, err := api.Participants(context.Background(), invite.Room)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "host1", participants[0].ID)
}

func TestAgentRefusedForeignSession(t *testing.T) {
	srv := newRoomServer(t)
	api := NewAPIClient(srv.URL, nil)
	created, err := api.CreateRoom(context.Background(), CreateRoomRequest{})
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		states []ConnState
	)
	a := startAgent(t, Config{
		ServerURL:     srv.URL,
		RoomCode:      created.Room.Code,
		SessionID:     "someoneelse",
		ParticipantID: "mallory",
		OnStateChange: func(_, to ConnState, _ error) {
			mu.Lock()
			states = append(states, to)
			mu.Unlock()
		},
	})

	select {
	case err := <-a.result:
		var status *StatusError
		require.True(t, errors.As(err, &status))
		assert.Equal(t, http.StatusForbidden, status.Code)
	case <-time.After(waitFor):
		t.Fatal("refused agent kept retrying")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ConnState{StateAcquiringMedia, StateConnecting, StateFailed}, states)
}

func TestAgentRetriesMediaFailure(t *testing.T) {
	srv := newRoomServer(t)
	api := NewAPIClient(srv.URL, nil)
	created, err := api.CreateRoom(context.Background(), CreateRoomRequest{})
	require.NoError(t, err)

	a := startAgent(t, Config{
		ServerURL:     srv.URL,
		RoomCode:      created.Room.Code,
		SessionID:     created.Room.SessionID,
		ParticipantID: "host1",
		HostKey:       created.HostKey,
		Media:         &flakySource{failures: 2},
	})
	a.waitConnected(t)
}

// flakySource fails a fixed number of times before handing out media.
type flakySource struct {
	mu       sync.Mutex
	failures int
}

func (s *flakySource) Acquire(ctx context.Context) (*LocalMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("camera busy")
	}
	return StaticMediaSource{Audio: true}.Acquire(ctx)
}

func TestCreateRoomRefused(t *testing.T) {
	srv := newRoomServer(t)
	api := NewAPIClient(srv.URL, nil)

	_, err := api.CreateRoom(context.Background(), CreateRoomRequest{RoomCode: "ROOM42"})
	require.NoError(t, err)
	_, err = api.CreateRoom(context.Background(), CreateRoomRequest{RoomCode: "ROOM42"})

	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusConflict, status.Code)

	_, err = ParseInvite("https://tutor.example/?room=ROOM42")
	assert.ErrorIs(t, err, domain.ErrInvalidInviteLink)
}
