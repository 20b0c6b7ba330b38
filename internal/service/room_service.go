package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/codetutor/internal/broker"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/internal/metrics"
	"github.com/immxrtalbeast/codetutor/internal/repository"
	"github.com/immxrtalbeast/codetutor/lib/logger/sl"
)

var (
	ErrRoomExpired        = errors.New("room expired")
	ErrPeerNotFound       = errors.New("peer not found")
	ErrSessionMismatch    = errors.New("session does not belong to this room")
	ErrRoomCodeTaken      = errors.New("room code already in use")
	ErrInvalidRoomParams  = errors.New("invalid session id or room code")
	ErrInvalidParticipant = errors.New("invalid participant id")
	ErrHostKeyRequired    = errors.New("participant id belongs to the host")
)

const (
	roomCodeAttempts = 8
	// rosterLeaseTicks is how many sweep intervals a participant served by
	// another instance stays listed without being announced again.
	rosterLeaseTicks = 3
)

type CreateRoomRequest struct {
	Name      string
	SessionID string
	RoomCode  string
	Lifetime  time.Duration
}

type JoinRequest struct {
	SessionID     string
	ParticipantID string
	HostKey       string
}

// PanelSnapshot is the catch-up state of one panel after a sequence number.
type PanelSnapshot struct {
	Panel      domain.Panel               `json:"panel"`
	Seq        int64                      `json:"seq"`
	Editor     []domain.EditorUpdate      `json:"editor,omitempty"`
	Whiteboard *domain.WhiteboardSnapshot `json:"whiteboard,omitempty"`
	Terminal   []domain.TranscriptLine    `json:"terminal,omitempty"`
}

type Options struct {
	ICEServers []string
	// Lifetime applies to rooms created without an explicit one.
	Lifetime time.Duration
	Metrics  *metrics.Metrics
}

type activeRoom struct {
	room *domain.Room
	sub  broker.Subscription

	// seen holds when each participant served by another instance was
	// last announced.
	seenMu sync.Mutex
	seen   map[string]time.Time
}

func (ar *activeRoom) touch(participantID string) {
	ar.seenMu.Lock()
	ar.seen[participantID] = time.Now()
	ar.seenMu.Unlock()
}

func (ar *activeRoom) forget(participantID string) {
	ar.seenMu.Lock()
	delete(ar.seen, participantID)
	ar.seenMu.Unlock()
}

func (ar *activeRoom) lastSeen(participantID string) time.Time {
	ar.seenMu.Lock()
	defer ar.seenMu.Unlock()
	return ar.seen[participantID]
}

// RoomService keeps the rooms that have peers on this instance in memory.
// Every change is published through the broker and applied to the cached
// room by its listener, so several instances converge on the same state.
type RoomService struct {
	// instance tells the events published here apart from those of
	// other instances sharing the broker.
	instance   string
	rooms      repository.RoomRepository
	content    repository.ContentRepository
	broker     broker.Broker
	metrics    *metrics.Metrics
	log        *slog.Logger
	iceServers []string
	lifetime   time.Duration

	// locks serializes activation, joins and leaves of each room.
	locks       roomLocks
	mu          sync.RWMutex
	activeRooms map[string]*activeRoom
	endpoints   map[*domain.Peer]broker.Subscription
}

func NewRoomService(
	rooms repository.RoomRepository,
	content repository.ContentRepository,
	b broker.Broker,
	log *slog.Logger,
	opts Options,
) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	return &RoomService{
		instance:    uuid.NewString(),
		rooms:       rooms,
		content:     content,
		broker:      b,
		metrics:     opts.Metrics,
		log:         log,
		iceServers:  opts.ICEServers,
		lifetime:    opts.Lifetime,
		activeRooms: make(map[string]*activeRoom),
		endpoints:   make(map[*domain.Peer]broker.Subscription),
	}
}

func (s *RoomService) CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op))

	lifetime := req.Lifetime
	if lifetime <= 0 {
		lifetime = s.lifetime
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = domain.NewSessionID()
	}
	explicit := req.RoomCode != ""

	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code := req.RoomCode
		if !explicit {
			code = domain.NewRoomCode()
		}
		if !(domain.InviteParams{Session: sessionID, Room: code}).Valid() {
			return nil, ErrInvalidRoomParams
		}

		room := domain.NewRoom(req.Name, sessionID, code, lifetime)
		err := s.rooms.Create(ctx, room)
		if errors.Is(err, repository.ErrRoomCodeExists) {
			if explicit {
				return nil, ErrRoomCodeTaken
			}
			continue
		}
		if err != nil {
			log.Error("failed to store room", sl.Err(err))
			return nil, err
		}

		log.Info("room created",
			slog.String("room", room.Code),
			slog.String("session", room.SessionID),
			slog.Time("expires_at", room.ExpiresAt),
		)
		return room, nil
	}

	return nil, ErrRoomCodeTaken
}

func (s *RoomService) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	if ar := s.getActiveRoom(code); ar != nil && !ar.room.IsExpired() {
		return ar.room, nil
	}

	unlock := s.locks.lock(code)
	defer unlock()

	ar, err := s.activeRoomLocked(ctx, code)
	if err != nil {
		return nil, err
	}
	return ar.room, nil
}

func (s *RoomService) Join(ctx context.Context, code string, req JoinRequest) (*domain.Peer, error) {
	const op = "service.room.join"

	if req.ParticipantID == "" {
		req.ParticipantID = domain.NewParticipantID()
	}
	if !domain.ValidParticipantID(req.ParticipantID) {
		return nil, ErrInvalidParticipant
	}

	log := s.log.With(
		slog.String("op", op),
		slog.String("room", code),
		slog.String("participant", req.ParticipantID),
	)

	unlock := s.locks.lock(code)
	defer unlock()

	ar, err := s.activeRoomLocked(ctx, code)
	if err != nil {
		log.Info("room unavailable", sl.Err(err))
		return nil, err
	}
	room := ar.room

	if !room.AcceptsSession(req.SessionID) {
		return nil, ErrSessionMismatch
	}

	role := domain.RoleParticipant
	isHost := room.IsHostKey(req.HostKey)
	if isHost {
		role = domain.RoleHost
	}

	// Participant ids are public, so taking over the host's entry needs the key.
	if existing, ok := room.Roster.Get(req.ParticipantID); ok && existing.IsHost && !isHost {
		log.Warn("refused keyless join under the host's id")
		return nil, ErrHostKeyRequired
	}

	endpoint, err := s.broker.Subscribe(context.WithoutCancel(ctx), domain.EndpointName(code, req.ParticipantID))
	if err != nil {
		log.Error("failed to subscribe endpoint", sl.Err(err))
		return nil, err
	}

	// The cached panels may have missed broker messages; storage is
	// authoritative for what the welcome serves.
	if err := s.hydrate(ctx, room); err != nil {
		log.Warn("failed to refresh room content", sl.Err(err))
	}

	room.Roster.Upsert(domain.NewParticipant(req.ParticipantID, isHost))
	self, _ := room.Roster.Update(req.ParticipantID, domain.ParticipantPatch{IsHost: &isHost})
	peer := domain.NewPeer(code, req.ParticipantID)

	// The welcome is queued before the peer can receive any broadcast.
	room.Mutex.Lock()
	previous := room.Peers[req.ParticipantID]
	room.Peers[req.ParticipantID] = peer
	welcome, err := s.welcomeFrame(room, self, role)
	if err == nil {
		peer.EnqueueEvent(welcome)
	} else {
		if previous != nil {
			room.Peers[req.ParticipantID] = previous
		} else {
			delete(room.Peers, req.ParticipantID)
		}
	}
	room.Mutex.Unlock()

	if err != nil {
		_ = endpoint.Close()
		log.Error("failed to build welcome", sl.Err(err))
		return nil, err
	}

	s.trackEndpoint(peer, endpoint)
	go s.pumpEndpoint(peer, endpoint)

	if previous != nil {
		log.Info("replacing previous endpoint", slog.String("peer", previous.ID))
		s.closePeer(previous)
	}

	if err := s.rooms.Update(ctx, room); err != nil {
		log.Error("failed to persist roster", sl.Err(err))
	}

	if err := s.publishEvent(ctx, domain.PresenceChannel(code), self.ID, false,
		code, domain.SignalParticipantJoined, domain.ParticipantPayload{Participant: self}); err != nil {
		log.Error("failed to announce participant", sl.Err(err))
	}

	log.Info("participant joined",
		slog.String("peer", peer.ID),
		slog.String("role", string(role)),
		slog.Int("roster", room.Roster.Len()),
	)
	return peer, nil
}

func (s *RoomService) Leave(ctx context.Context, code string, participantID string) error {
	unlock := s.locks.lock(code)
	defer unlock()

	ar := s.getActiveRoom(code)
	if ar == nil {
		return ErrPeerNotFound
	}
	return s.leaveLocked(ctx, ar, participantID)
}

// Disconnect is called when the socket of peer goes away. The participant
// only leaves when peer is still its current endpoint.
func (s *RoomService) Disconnect(ctx context.Context, code string, peer *domain.Peer) error {
	if peer == nil {
		return ErrPeerNotFound
	}

	unlock := s.locks.lock(code)
	defer unlock()

	ar := s.getActiveRoom(code)
	if ar != nil {
		if current, ok := ar.room.Peer(peer.ParticipantID); ok && current == peer {
			return s.leaveLocked(ctx, ar, peer.ParticipantID)
		}
	}

	s.closePeer(peer)
	return nil
}

func (s *RoomService) ListParticipants(ctx context.Context, code string) ([]domain.Participant, error) {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return room.Roster.List(), nil
}

func (s *RoomService) PanelSnapshot(ctx context.Context, code string, panel domain.Panel, after int64) (*PanelSnapshot, error) {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.hydratePanel(ctx, room, panel); err != nil {
		return nil, err
	}

	snap := &PanelSnapshot{Panel: panel}
	switch panel {
	case domain.PanelEditor:
		snap.Seq = room.Editor.Seq()
		snap.Editor = room.Editor.Since(after)
	case domain.PanelWhiteboard:
		snap.Seq = room.Whiteboard.Seq()
		snap.Whiteboard = &domain.WhiteboardSnapshot{
			Epoch:   room.Whiteboard.Epoch(),
			Strokes: room.Whiteboard.Since(after),
		}
	case domain.PanelTerminal:
		snap.Seq = room.Terminal.Seq()
		snap.Terminal = room.Terminal.Since(after)
	default:
		return nil, domain.ErrUnknownPanel
	}
	return snap, nil
}

// SweepExpired drops every expired room with its content and reports how
// many were removed.
func (s *RoomService) SweepExpired(ctx context.Context) (int, error) {
	const op = "service.room.sweep"
	log := s.log.With(slog.String("op", op))

	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, room := range rooms {
		if !room.IsExpired() {
			continue
		}
		unlock := s.locks.lock(room.Code)
		err := s.expireLocked(ctx, room.Code)
		unlock()
		if err != nil {
			log.Error("failed to expire room", slog.String("room", room.Code), sl.Err(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// Run sweeps expired rooms and refreshes the rosters of active rooms every
// interval until ctx is done.
func (s *RoomService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncRosters(ctx, rosterLeaseTicks*interval)

			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.log.Error("sweep failed", sl.Err(err))
				continue
			}
			if n > 0 {
				s.log.Info("expired rooms removed", slog.Int("count", n))
			}
		}
	}
}

// Close deactivates every room and disconnects its peers.
func (s *RoomService) Close() {
	s.mu.RLock()
	codes := make([]string, 0, len(s.activeRooms))
	for code := range s.activeRooms {
		codes = append(codes, code)
	}
	s.mu.RUnlock()

	for _, code := range codes {
		unlock := s.locks.lock(code)
		s.deactivateLocked(code)
		unlock()
	}
}

func (s *RoomService) leaveLocked(ctx context.Context, ar *activeRoom, participantID string) error {
	const op = "service.room.leave"
	room := ar.room
	log := s.log.With(
		slog.String("op", op),
		slog.String("room", room.Code),
		slog.String("participant", participantID),
	)

	room.Mutex.Lock()
	peer, ok := room.Peers[participantID]
	delete(room.Peers, participantID)
	empty := len(room.Peers) == 0
	room.Mutex.Unlock()

	if !ok {
		return ErrPeerNotFound
	}
	s.closePeer(peer)

	left, _ := room.Roster.Get(participantID)
	room.Roster.Remove(participantID)

	if err := s.rooms.Update(ctx, room); err != nil {
		log.Error("failed to persist roster", sl.Err(err))
	}

	if err := s.publishEvent(ctx, domain.PresenceChannel(room.Code), participantID, false,
		room.Code, domain.SignalParticipantLeft, domain.ParticipantPayload{Participant: left}); err != nil {
		log.Error("failed to announce departure", sl.Err(err))
	}

	if empty {
		s.deactivateLocked(room.Code)
	}

	log.Info("participant left", slog.Bool("room_empty", empty))
	return nil
}

func (s *RoomService) welcomeFrame(room *domain.Room, self domain.Participant, role domain.Role) ([]byte, error) {
	msg, err := domain.NewSignal(domain.SignalWelcome, domain.WelcomePayload{
		Self:         self,
		Session:      room.Session(role),
		Participants: room.Roster.List(),
		Editor:       room.Editor.Since(0),
		Whiteboard: domain.WhiteboardSnapshot{
			Epoch:   room.Whiteboard.Epoch(),
			Strokes: room.Whiteboard.Since(0),
		},
		Terminal:   room.Terminal.Since(0),
		ICEServers: s.iceServers,
	})
	if err != nil {
		return nil, err
	}
	msg.Room = room.Code
	return json.Marshal(msg)
}

func (s *RoomService) getActiveRoom(code string) *activeRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRooms[code]
}

// activeRoomLocked returns the cached room, loading and subscribing it on
// first use. The caller holds the lock of code.
func (s *RoomService) activeRoomLocked(ctx context.Context, code string) (*activeRoom, error) {
	if ar := s.getActiveRoom(code); ar != nil {
		if ar.room.IsExpired() {
			if err := s.expireLocked(ctx, code); err != nil {
				s.log.Error("failed to expire room", slog.String("room", code), sl.Err(err))
			}
			return nil, ErrRoomExpired
		}
		return ar, nil
	}

	room, err := s.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.IsExpired() {
		if err := s.expireLocked(ctx, code); err != nil {
			s.log.Error("failed to expire room", slog.String("room", code), sl.Err(err))
		}
		return nil, ErrRoomExpired
	}
	room.Init()
	// Stored entries have no endpoint behind them. Participants served by
	// other instances are listed again once they answer the sync request.
	room.Roster.Replace(nil)

	// Content is loaded lazily by Join and PanelSnapshot, after this
	// subscription exists, so nothing published in between is lost.
	sub, err := s.broker.Subscribe(context.WithoutCancel(ctx), domain.RoomChannels(code)...)
	if err != nil {
		return nil, err
	}

	ar := &activeRoom{room: room, sub: sub, seen: make(map[string]time.Time)}
	s.mu.Lock()
	s.activeRooms[code] = ar
	s.mu.Unlock()

	go s.listen(ar)
	if err := s.requestRosterSync(ctx, code); err != nil {
		s.log.Warn("failed to request roster sync", slog.String("room", code), sl.Err(err))
	}
	s.metrics.RoomActivated()
	s.log.Info("room activated",
		slog.String("room", room.Code),
		slog.String("name", room.Name),
		slog.Int("roster", room.Roster.Len()),
	)
	return ar, nil
}

// hydrate merges the stored content of every panel into the cached room.
// Entries the cache already holds are ignored, so it is safe to repeat.
func (s *RoomService) hydrate(ctx context.Context, room *domain.Room) error {
	for _, panel := range domain.Panels() {
		if err := s.hydratePanel(ctx, room, panel); err != nil {
			return err
		}
	}
	return nil
}

func (s *RoomService) hydratePanel(ctx context.Context, room *domain.Room, panel domain.Panel) error {
	switch panel {
	case domain.PanelEditor:
		updates, err := s.content.EditorUpdates(ctx, room.Code)
		if err != nil {
			return err
		}
		for _, u := range updates {
			room.Editor.Insert(u)
		}

	case domain.PanelWhiteboard:
		board, err := s.content.Strokes(ctx, room.Code)
		if err != nil {
			return err
		}
		room.Whiteboard.ClearTo(board.Epoch)
		for _, stroke := range board.Strokes {
			room.Whiteboard.Insert(stroke)
		}

	case domain.PanelTerminal:
		lines, err := s.content.Transcript(ctx, room.Code)
		if err != nil {
			return err
		}
		for _, line := range lines {
			room.Terminal.Insert(line)
		}

	default:
		return domain.ErrUnknownPanel
	}
	return nil
}

func (s *RoomService) deactivateLocked(code string) {
	s.mu.Lock()
	ar := s.activeRooms[code]
	delete(s.activeRooms, code)
	s.mu.Unlock()
	if ar == nil {
		return
	}

	_ = ar.sub.Close()

	ar.room.Mutex.Lock()
	peers := make([]*domain.Peer, 0, len(ar.room.Peers))
	for id, peer := range ar.room.Peers {
		peers = append(peers, peer)
		delete(ar.room.Peers, id)
	}
	ar.room.Mutex.Unlock()

	for _, peer := range peers {
		s.closePeer(peer)
	}

	s.metrics.RoomDeactivated()
	s.log.Info("room deactivated", slog.String("room", code))
}

func (s *RoomService) expireLocked(ctx context.Context, code string) error {
	s.deactivateLocked(code)

	if err := s.rooms.Delete(ctx, code); err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
		return err
	}
	return s.content.DeleteContent(ctx, code)
}

func (s *RoomService) trackEndpoint(peer *domain.Peer, sub broker.Subscription) {
	s.mu.Lock()
	s.endpoints[peer] = sub
	s.mu.Unlock()
	s.metrics.PeerConnected()
}

// closePeer releases the endpoint subscription and the socket of peer.
func (s *RoomService) closePeer(peer *domain.Peer) {
	s.mu.Lock()
	sub, ok := s.endpoints[peer]
	delete(s.endpoints, peer)
	s.mu.Unlock()

	if ok {
		_ = sub.Close()
		s.metrics.PeerDisconnected()
	}
	peer.Close()
}
