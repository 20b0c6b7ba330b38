package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/codetutor/internal/broker"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/internal/repository"
	"github.com/immxrtalbeast/codetutor/lib/logger/handlers/slogdiscard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *RoomService {
	t.Helper()
	b := broker.NewMemory(64, slogdiscard.NewDiscardLogger())
	t.Cleanup(func() { _ = b.Close() })
	return newServiceOn(t, repository.NewInMemoryRoomRepository(), repository.NewInMemoryContentRepository(), b)
}

// newServiceOn starts a service instance on shared storage and broker, the
// way several server processes share them.
func newServiceOn(t *testing.T, rooms repository.RoomRepository, content repository.ContentRepository, b broker.Broker) *RoomService {
	t.Helper()
	svc := NewRoomService(
		rooms,
		content,
		b,
		slogdiscard.NewDiscardLogger(),
		Options{ICEServers: []string{"stun:stun.example:3478"}},
	)
	t.Cleanup(svc.Close)
	return svc
}

// lossyBroker loses every message published on the listed channels.
type lossyBroker struct {
	broker.Broker
	lost map[string]bool
}

func (b *lossyBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.lost[channel] {
		return nil
	}
	return b.Broker.Publish(ctx, channel, payload)
}

// nextFrame waits for the next frame of the given type, skipping others.
func nextFrame(t *testing.T, peer *domain.Peer, signalType string) domain.SignalMessage {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-peer.Events:
			require.True(t, ok, "peer closed while waiting for %s", signalType)
			var msg domain.SignalMessage
			require.NoError(t, json.Unmarshal(frame, &msg))
			if msg.Type == signalType {
				return msg
			}
		case <-timeout:
			t.Fatalf("no %s frame for %s", signalType, peer.ID)
		}
	}
}

func assertNoFrame(t *testing.T, peer *domain.Peer, signalType string) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case frame, ok := <-peer.Events:
			if !ok {
				return
			}
			var msg domain.SignalMessage
			require.NoError(t, json.Unmarshal(frame, &msg))
			assert.NotEqual(t, signalType, msg.Type)
		case <-timeout:
			return
		}
	}
}

func createRoom(t *testing.T, svc *RoomService) *domain.Room {
	t.Helper()
	room, err := svc.CreateRoom(context.Background(), CreateRoomRequest{SessionID: "sess1234", RoomCode: "ROOM42"})
	require.NoError(t, err)
	return room
}

func join(t *testing.T, svc *RoomService, room *domain.Room, participantID, hostKey string) *domain.Peer {
	t.Helper()
	peer, err := svc.Join(context.Background(), room.Code, JoinRequest{
		SessionID:     room.SessionID,
		ParticipantID: participantID,
		HostKey:       hostKey,
	})
	require.NoError(t, err)
	return peer
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	room := createRoom(t, svc)
	assert.Equal(t, "ROOM42", room.Code)
	assert.Equal(t, "sess1234", room.SessionID)
	assert.NotEmpty(t, room.HostKey)

	_, err := svc.CreateRoom(ctx, CreateRoomRequest{RoomCode: "ROOM42"})
	assert.ErrorIs(t, err, ErrRoomCodeTaken)

	_, err = svc.CreateRoom(ctx, CreateRoomRequest{RoomCode: "no!"})
	assert.ErrorIs(t, err, ErrInvalidRoomParams)

	minted, err := svc.CreateRoom(ctx, CreateRoomRequest{})
	require.NoError(t, err)
	assert.True(t, domain.InviteParams{Session: minted.SessionID, Room: minted.Code}.Valid())
}

func TestJoinWelcome(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	_, err := svc.Join(ctx, room.Code, JoinRequest{SessionID: "other999", ParticipantID: "alice"})
	assert.ErrorIs(t, err, ErrSessionMismatch)

	_, err = svc.Join(ctx, room.Code, JoinRequest{SessionID: room.SessionID, ParticipantID: "bad id!"})
	assert.ErrorIs(t, err, ErrInvalidParticipant)

	_, err = svc.Join(ctx, "NOPE00", JoinRequest{SessionID: room.SessionID})
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	host := join(t, svc, room, "host1", room.HostKey)
	welcome := nextFrame(t, host, domain.SignalWelcome)

	var payload domain.WelcomePayload
	require.NoError(t, welcome.DecodePayload(&payload))
	assert.Equal(t, "host1", payload.Self.ID)
	assert.True(t, payload.Self.IsHost)
	assert.Equal(t, domain.RoleHost, payload.Session.Role)
	assert.Equal(t, []string{"stun:stun.example:3478"}, payload.ICEServers)
	require.Len(t, payload.Participants, 1)

	guest := join(t, svc, room, "guest1", "wrong-key")
	welcome = nextFrame(t, guest, domain.SignalWelcome)
	require.NoError(t, welcome.DecodePayload(&payload))
	assert.False(t, payload.Self.IsHost)
	assert.Equal(t, domain.RoleParticipant, payload.Session.Role)
	assert.Len(t, payload.Participants, 2)

	joined := nextFrame(t, host, domain.SignalParticipantJoined)
	var p domain.ParticipantPayload
	require.NoError(t, joined.DecodePayload(&p))
	assert.Equal(t, "guest1", p.Participant.ID)
	assert.Equal(t, "User gues", p.Participant.Name)
}

func TestJoinMintsParticipantID(t *testing.T) {
	svc := newTestService(t)
	room := createRoom(t, svc)

	peer, err := svc.Join(context.Background(), room.Code, JoinRequest{SessionID: room.SessionID})
	require.NoError(t, err)
	assert.NotEmpty(t, peer.ParticipantID)
	assert.Equal(t, domain.EndpointName(room.Code, peer.ParticipantID), peer.ID)
}

func TestRejoinReplacesEndpoint(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	first := join(t, svc, room, "alice", "")
	second := join(t, svc, room, "alice", "")

	assert.True(t, first.Closed())
	participants, err := svc.ListParticipants(ctx, room.Code)
	require.NoError(t, err)
	assert.Len(t, participants, 1)

	// The stale socket going away must not remove the new endpoint.
	require.NoError(t, svc.Disconnect(ctx, room.Code, first))
	active, err := svc.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	current, ok := active.Peer("alice")
	require.True(t, ok)
	assert.Same(t, second, current)
}

func TestReservedParticipantIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	for _, id := range []string{"presence", "editor", "whiteboard", "terminal"} {
		_, err := svc.Join(ctx, room.Code, JoinRequest{SessionID: room.SessionID, ParticipantID: id})
		assert.ErrorIs(t, err, ErrInvalidParticipant, id)
	}

	alice := join(t, svc, room, "alice", "")
	msg, err := domain.NewSignal(domain.SignalChat, domain.ChatPayload{Message: "once"})
	require.NoError(t, err)
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &msg))

	nextFrame(t, alice, domain.SignalChat)
	assertNoFrame(t, alice, domain.SignalChat)
}

func TestKeylessJoinCannotTakeOverHost(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	host := join(t, svc, room, "host1", room.HostKey)

	_, err := svc.Join(ctx, room.Code, JoinRequest{SessionID: room.SessionID, ParticipantID: "host1"})
	assert.ErrorIs(t, err, ErrHostKeyRequired)
	assert.False(t, host.Closed())

	cmd, err := domain.NewSignal(domain.SignalTerminalCommand, domain.CommandPayload{Command: "ls"})
	require.NoError(t, err)
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "host1", &cmd))

	guest := join(t, svc, room, "guest1", "")
	var wp domain.WelcomePayload
	require.NoError(t, nextFrame(t, guest, domain.SignalWelcome).DecodePayload(&wp))
	assert.False(t, wp.Self.IsHost)

	promoted := join(t, svc, room, "guest1", room.HostKey)
	require.NoError(t, nextFrame(t, promoted, domain.SignalWelcome).DecodePayload(&wp))
	assert.True(t, wp.Self.IsHost)
	assert.Equal(t, domain.RoleHost, wp.Session.Role)

	// Once the host has left, its id carries no privilege.
	require.NoError(t, svc.Leave(ctx, room.Code, "host1"))
	impostor := join(t, svc, room, "host1", "")
	require.NoError(t, nextFrame(t, impostor, domain.SignalWelcome).DecodePayload(&wp))
	assert.False(t, wp.Self.IsHost)
	assert.ErrorIs(t, svc.HandleSignal(ctx, room.Code, "host1", &cmd), domain.ErrHostOnly)
}

func TestRelayTargetedNegotiation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	alice := join(t, svc, room, "alice", "")
	bob := join(t, svc, room, "bob", "")
	carol := join(t, svc, room, "carol", "")

	offer := &domain.SignalMessage{Type: domain.SignalOffer, TargetID: "bob"}
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", offer))

	got := nextFrame(t, bob, domain.SignalOffer)
	assert.Equal(t, "alice", got.SenderID)
	assert.Equal(t, room.Code, got.Room)
	assertNoFrame(t, carol, domain.SignalOffer)
	assertNoFrame(t, alice, domain.SignalOffer)

	err := svc.HandleSignal(ctx, room.Code, "alice", &domain.SignalMessage{Type: domain.SignalAnswer, TargetID: "ghost"})
	assert.ErrorIs(t, err, ErrPeerNotFound)

	err = svc.HandleSignal(ctx, room.Code, "alice", &domain.SignalMessage{Type: "teleport"})
	assert.ErrorIs(t, err, ErrUnsupportedSignal)

	err = svc.HandleSignal(ctx, room.Code, "mallory", offer)
	assert.ErrorIs(t, err, ErrPeerNotFound)
}

func TestPresenceAndMediaUpdates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	alice := join(t, svc, room, "alice", "")
	bob := join(t, svc, room, "bob", "")

	presence, err := domain.NewSignal(domain.SignalPresence, domain.NewPresence("bob", "ROOM42-bob"))
	require.NoError(t, err)
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "bob", &presence))

	updated := nextFrame(t, alice, domain.SignalParticipantUpdated)
	var p domain.ParticipantPayload
	require.NoError(t, updated.DecodePayload(&p))
	assert.Equal(t, "ROOM42-bob", p.Participant.PeerID)

	spoofed, err := domain.NewSignal(domain.SignalPresence, domain.NewPresence("alice", "x"))
	require.NoError(t, err)
	assert.ErrorIs(t, svc.HandleSignal(ctx, room.Code, "bob", &spoofed), ErrInvalidPayload)

	var media domain.MediaState
	media.ToggleMute()
	update, err := domain.NewSignal(domain.SignalUpdate, media.Patch())
	require.NoError(t, err)
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "bob", &update))

	updated = nextFrame(t, alice, domain.SignalParticipantUpdated)
	require.NoError(t, updated.DecodePayload(&p))
	assert.True(t, p.Participant.Muted)
	assert.False(t, p.Participant.VideoOff)
	assert.Equal(t, "ROOM42-bob", p.Participant.PeerID)
	assertNoFrame(t, bob, domain.SignalParticipantUpdated)

	promote := true
	escalate, err := domain.NewSignal(domain.SignalUpdate, domain.ParticipantPatch{IsHost: &promote})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.HandleSignal(ctx, room.Code, "bob", &escalate), ErrInvalidPayload)
	active, err := svc.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	got, _ := active.Roster.Get("bob")
	assert.False(t, got.IsHost)
}

func TestTerminalIsHostOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	host := join(t, svc, room, "host1", room.HostKey)
	guest := join(t, svc, room, "guest1", "")

	cmd, err := domain.NewSignal(domain.SignalTerminalCommand, domain.CommandPayload{Command: "go test ./..."})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.HandleSignal(ctx, room.Code, "guest1", &cmd), domain.ErrHostOnly)
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "host1", &cmd))

	for _, peer := range []*domain.Peer{host, guest} {
		out := nextFrame(t, peer, domain.SignalTerminalOutput)
		var line domain.TranscriptPayload
		require.NoError(t, out.DecodePayload(&line))
		assert.Equal(t, "$ go test ./...\n> Command executed", line.Line.Output)
		assert.Equal(t, int64(1), out.Seq)
	}

	snap, err := svc.PanelSnapshot(ctx, room.Code, domain.PanelTerminal, 0)
	require.NoError(t, err)
	require.Len(t, snap.Terminal, 1)
	assert.Equal(t, int64(1), snap.Seq)
}

func TestWhiteboardReplication(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	alice := join(t, svc, room, "alice", "")
	bob := join(t, svc, room, "bob", "")

	stroke, err := domain.NewSignal(domain.SignalStroke, domain.StrokePayload{Stroke: domain.Stroke{
		Color:  "#00ff00",
		Width:  3,
		Points: []domain.Point{{X: 1, Y: 1}, {X: 2, Y: 2}},
	}})
	require.NoError(t, err)
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &stroke))
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &stroke))

	first := nextFrame(t, bob, domain.SignalStroke)
	var sp domain.StrokePayload
	require.NoError(t, first.DecodePayload(&sp))
	assert.Equal(t, "alice", sp.Stroke.AuthorID)
	nextFrame(t, alice, domain.SignalStroke)

	require.Eventually(t, func() bool {
		snap, err := svc.PanelSnapshot(ctx, room.Code, domain.PanelWhiteboard, 0)
		return err == nil && len(snap.Whiteboard.Strokes) == 2
	}, time.Second, 10*time.Millisecond)

	snap, err := svc.PanelSnapshot(ctx, room.Code, domain.PanelWhiteboard, first.Seq)
	require.NoError(t, err)
	assert.Len(t, snap.Whiteboard.Strokes, 1)

	bad, err := domain.NewSignal(domain.SignalStroke, domain.StrokePayload{Stroke: domain.Stroke{Color: "green"}})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.HandleSignal(ctx, room.Code, "alice", &bad), domain.ErrInvalidStroke)

	clearMsg := domain.SignalMessage{Type: domain.SignalWhiteboardClear}
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "bob", &clearMsg))
	cleared := nextFrame(t, alice, domain.SignalWhiteboardClear)
	var cp domain.ClearPayload
	require.NoError(t, cleared.DecodePayload(&cp))
	assert.Equal(t, int64(1), cp.Epoch)

	require.Eventually(t, func() bool {
		snap, err := svc.PanelSnapshot(ctx, room.Code, domain.PanelWhiteboard, 0)
		return err == nil && snap.Whiteboard.Epoch == 1 && len(snap.Whiteboard.Strokes) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestEditorReplication(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	alice := join(t, svc, room, "alice", "")
	bob := join(t, svc, room, "bob", "")

	update, err := domain.NewSignal(domain.SignalEditorUpdate, domain.EditorPayload{Update: domain.EditorUpdate{Data: []byte{1, 2, 3}}})
	require.NoError(t, err)
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &update))

	got := nextFrame(t, bob, domain.SignalEditorUpdate)
	var ep domain.EditorPayload
	require.NoError(t, got.DecodePayload(&ep))
	assert.Equal(t, []byte{1, 2, 3}, ep.Update.Data)
	assert.Equal(t, "alice", ep.Update.AuthorID)
	assertNoFrame(t, alice, domain.SignalEditorUpdate)

	empty, err := domain.NewSignal(domain.SignalEditorUpdate, domain.EditorPayload{})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.HandleSignal(ctx, room.Code, "alice", &empty), domain.ErrEmptyUpdate)

	// A late joiner catches up from the welcome.
	carol := join(t, svc, room, "carol", "")
	welcome := nextFrame(t, carol, domain.SignalWelcome)
	var wp domain.WelcomePayload
	require.NoError(t, welcome.DecodePayload(&wp))
	require.Len(t, wp.Editor, 1)
	assert.Equal(t, []byte{1, 2, 3}, wp.Editor[0].Data)
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	alice := join(t, svc, room, "alice", "")
	bob := join(t, svc, room, "bob", "")

	msg, err := domain.NewSignal(domain.SignalChat, domain.ChatPayload{Message: "  hello  "})
	require.NoError(t, err)
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &msg))

	for _, peer := range []*domain.Peer{alice, bob} {
		got := nextFrame(t, peer, domain.SignalChat)
		var cp domain.ChatPayload
		require.NoError(t, got.DecodePayload(&cp))
		assert.Equal(t, "hello", cp.Message)
		assert.Equal(t, "User alic", cp.Sender)
	}

	blank, err := domain.NewSignal(domain.SignalChat, domain.ChatPayload{Message: "  "})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.HandleSignal(ctx, room.Code, "alice", &blank), domain.ErrEmptyChatMessage)
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	room := createRoom(t, svc)

	alice := join(t, svc, room, "alice", "")
	bob := join(t, svc, room, "bob", "")

	leave := domain.SignalMessage{Type: domain.SignalLeave}
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "bob", &leave))
	assert.True(t, bob.Closed())

	left := nextFrame(t, alice, domain.SignalParticipantLeft)
	var p domain.ParticipantPayload
	require.NoError(t, left.DecodePayload(&p))
	assert.Equal(t, "bob", p.Participant.ID)

	participants, err := svc.ListParticipants(ctx, room.Code)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "alice", participants[0].ID)

	assert.ErrorIs(t, svc.Leave(ctx, room.Code, "bob"), ErrPeerNotFound)

	require.NoError(t, svc.Disconnect(ctx, room.Code, alice))
	assert.True(t, alice.Closed())
	assert.Nil(t, svc.getActiveRoom(room.Code))
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for _, code := range []string{"SHORT1", "SHORT2"} {
		_, err := svc.CreateRoom(ctx, CreateRoomRequest{RoomCode: code, Lifetime: time.Millisecond})
		require.NoError(t, err)
	}
	_, err := svc.CreateRoom(ctx, CreateRoomRequest{RoomCode: "LONG01", Lifetime: time.Hour})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = svc.GetRoom(ctx, "SHORT1")
	assert.ErrorIs(t, err, ErrRoomExpired)

	n, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, code := range []string{"SHORT1", "SHORT2"} {
		_, err = svc.GetRoom(ctx, code)
		assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	}

	_, err = svc.GetRoom(ctx, "LONG01")
	assert.NoError(t, err)
}

func TestPanelSnapshotUnknownPanel(t *testing.T) {
	svc := newTestService(t)
	room := createRoom(t, svc)

	_, err := svc.PanelSnapshot(context.Background(), room.Code, domain.Panel("chat"), 0)
	assert.ErrorIs(t, err, domain.ErrUnknownPanel)
}

func TestCatchUpServesStoredContentAfterLostBroadcasts(t *testing.T) {
	ctx := context.Background()
	mem := broker.NewMemory(64, slogdiscard.NewDiscardLogger())
	t.Cleanup(func() { _ = mem.Close() })
	lossy := &lossyBroker{Broker: mem, lost: map[string]bool{
		domain.ReplicationChannel("ROOM42", domain.PanelEditor):     true,
		domain.ReplicationChannel("ROOM42", domain.PanelWhiteboard): true,
	}}
	svc := newServiceOn(t, repository.NewInMemoryRoomRepository(), repository.NewInMemoryContentRepository(), lossy)
	room := createRoom(t, svc)
	join(t, svc, room, "alice", "")

	stroke, err := domain.NewSignal(domain.SignalStroke, domain.StrokePayload{Stroke: domain.Stroke{
		Color:  "#000000",
		Width:  2,
		Points: []domain.Point{{X: 1, Y: 1}},
	}})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &stroke))
	}
	clearMsg := domain.SignalMessage{Type: domain.SignalWhiteboardClear}
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &clearMsg))
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &stroke))

	update, err := domain.NewSignal(domain.SignalEditorUpdate, domain.EditorPayload{Update: domain.EditorUpdate{Data: []byte("x")}})
	require.NoError(t, err)
	require.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &update))

	snap, err := svc.PanelSnapshot(ctx, room.Code, domain.PanelWhiteboard, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Whiteboard.Epoch)
	assert.Len(t, snap.Whiteboard.Strokes, 1)

	carol := join(t, svc, room, "carol", "")
	var wp domain.WelcomePayload
	require.NoError(t, nextFrame(t, carol, domain.SignalWelcome).DecodePayload(&wp))
	assert.Equal(t, int64(1), wp.Whiteboard.Epoch)
	assert.Len(t, wp.Whiteboard.Strokes, 1)
	require.Len(t, wp.Editor, 1)
	assert.Equal(t, []byte("x"), wp.Editor[0].Data)
}

func TestCatchUpAfterBurstOnSmallBuffer(t *testing.T) {
	ctx := context.Background()
	b := broker.NewMemory(1, slogdiscard.NewDiscardLogger())
	t.Cleanup(func() { _ = b.Close() })
	svc := newServiceOn(t, repository.NewInMemoryRoomRepository(), repository.NewInMemoryContentRepository(), b)
	room := createRoom(t, svc)
	join(t, svc, room, "alice", "")

	stroke, err := domain.NewSignal(domain.SignalStroke, domain.StrokePayload{Stroke: domain.Stroke{
		Color:  "#123456",
		Width:  1,
		Points: []domain.Point{{X: 0, Y: 0}},
	}})
	require.NoError(t, err)

	const strokes = 300
	var wg sync.WaitGroup
	for i := 0; i < strokes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := stroke
			assert.NoError(t, svc.HandleSignal(ctx, room.Code, "alice", &msg))
		}()
	}
	wg.Wait()

	snap, err := svc.PanelSnapshot(ctx, room.Code, domain.PanelWhiteboard, 0)
	require.NoError(t, err)
	assert.Len(t, snap.Whiteboard.Strokes, strokes)

	late := join(t, svc, room, "late", "")
	var wp domain.WelcomePayload
	require.NoError(t, nextFrame(t, late, domain.SignalWelcome).DecodePayload(&wp))
	assert.Len(t, wp.Whiteboard.Strokes, strokes)
}

func TestRestartForgetsDisconnectedParticipants(t *testing.T) {
	ctx := context.Background()
	rooms := repository.NewInMemoryRoomRepository()
	content := repository.NewInMemoryContentRepository()
	b := broker.NewMemory(64, slogdiscard.NewDiscardLogger())
	t.Cleanup(func() { _ = b.Close() })

	first := newServiceOn(t, rooms, content, b)
	room := createRoom(t, first)
	join(t, first, room, "alice", "")
	first.Close()

	second := newServiceOn(t, rooms, content, b)
	participants, err := second.ListParticipants(ctx, room.Code)
	require.NoError(t, err)
	assert.Empty(t, participants)
	assert.ErrorIs(t, second.Leave(ctx, room.Code, "alice"), ErrPeerNotFound)

	bob := join(t, second, room, "bob", "")
	var wp domain.WelcomePayload
	require.NoError(t, nextFrame(t, bob, domain.SignalWelcome).DecodePayload(&wp))
	require.Len(t, wp.Participants, 1)
	assert.Equal(t, "bob", wp.Participants[0].ID)
}

func TestRosterSyncAcrossInstances(t *testing.T) {
	ctx := context.Background()
	rooms := repository.NewInMemoryRoomRepository()
	content := repository.NewInMemoryContentRepository()
	b := broker.NewMemory(64, slogdiscard.NewDiscardLogger())
	t.Cleanup(func() { _ = b.Close() })

	east := newServiceOn(t, rooms, content, b)
	west := newServiceOn(t, rooms, content, b)
	room := createRoom(t, east)
	join(t, east, room, "alice", "")

	// west learns about alice when it activates the room.
	require.Eventually(t, func() bool {
		participants, err := west.ListParticipants(ctx, room.Code)
		return err == nil && len(participants) == 1 && participants[0].ID == "alice"
	}, time.Second, 10*time.Millisecond)

	bob := join(t, west, room, "bob", "")
	var wp domain.WelcomePayload
	require.NoError(t, nextFrame(t, bob, domain.SignalWelcome).DecodePayload(&wp))
	assert.Len(t, wp.Participants, 2)

	west.SyncRosters(ctx, time.Minute)
	participants, err := west.ListParticipants(ctx, room.Code)
	require.NoError(t, err)
	assert.Len(t, participants, 2)

	// east goes away without announcing departures.
	east.Close()
	time.Sleep(50 * time.Millisecond)
	west.SyncRosters(ctx, 20*time.Millisecond)

	left := nextFrame(t, bob, domain.SignalParticipantLeft)
	var p domain.ParticipantPayload
	require.NoError(t, left.DecodePayload(&p))
	assert.Equal(t, "alice", p.Participant.ID)

	participants, err = west.ListParticipants(ctx, room.Code)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "bob", participants[0].ID)
}
