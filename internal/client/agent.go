package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

var (
	ErrNotConnected   = errors.New("agent is not connected")
	ErrAgentClosed    = errors.New("agent is closed")
	ErrConnectionLost = errors.New("connection to server lost")
)

const (
	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 15 * time.Second
)

// Config identifies the agent in a room and wires its collaborators.
type Config struct {
	ServerURL     string
	RoomCode      string
	SessionID     string
	ParticipantID string
	HostKey       string
	Name          string

	Media   MediaSource
	NewMesh MeshFactory

	RetryInitial time.Duration
	RetryMax     time.Duration
	// MaxElapsed bounds the total time spent reconnecting. Zero retries
	// until the context ends.
	MaxElapsed time.Duration

	OnStateChange StateChangeFunc
	OnChat        func(domain.ChatPayload)
	OnTerminal    func(domain.TranscriptLine)
	OnServerError func(string)
}

// Agent is a headless room participant. It keeps local replicas of the
// roster and the shared panels and holds one media call per remote peer.
type Agent struct {
	cfg   Config
	log   *slog.Logger
	state *StateMachine

	roster     *domain.Roster
	editor     *domain.EditorDocument
	whiteboard *domain.Whiteboard
	transcript *domain.Transcript
	media      domain.MediaState

	mu       sync.Mutex
	name     string
	session  *domain.Session
	local    *LocalMedia
	signaler *Signaler
	mesh     Mesh

	done      chan struct{}
	closeOnce sync.Once
}

func NewAgent(cfg Config, log *slog.Logger) (*Agent, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RoomCode == "" || cfg.SessionID == "" {
		return nil, errors.New("room code and session id are required")
	}
	if !domain.ValidParticipantID(cfg.ParticipantID) {
		return nil, fmt.Errorf("invalid participant id %q", cfg.ParticipantID)
	}
	if cfg.NewMesh == nil {
		factory, err := NewPionMeshFactory(log)
		if err != nil {
			return nil, err
		}
		cfg.NewMesh = factory
	}
	if cfg.Media == nil {
		cfg.Media = StaticMediaSource{StreamID: cfg.ParticipantID, Audio: true, Video: true}
	}

	log = log.With(
		slog.String("room", cfg.RoomCode),
		slog.String("participant", cfg.ParticipantID),
	)
	a := &Agent{
		cfg:        cfg,
		log:        log,
		roster:     domain.NewRoster(),
		editor:     domain.NewEditorDocument(),
		whiteboard: domain.NewWhiteboard(),
		transcript: domain.NewTranscript(),
		name:       cfg.Name,
		done:       make(chan struct{}),
	}
	a.state = NewStateMachine(a.stateChanged)
	return a, nil
}

func (a *Agent) stateChanged(from, to ConnState, cause error) {
	if cause != nil {
		a.log.Warn("connection state changed",
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			sl.Err(cause),
		)
	} else {
		a.log.Info("connection state changed", slog.String("from", string(from)), slog.String("to", string(to)))
	}
	if a.cfg.OnStateChange != nil {
		a.cfg.OnStateChange(from, to, cause)
	}
}

// Run connects and keeps the agent in the room until ctx ends, Close is
// called or the server refuses the participant for good. Every other
// failure moves the agent to failed and is retried with exponential
// backoff.
func (a *Agent) Run(ctx context.Context) error {
	const op = "client.agent.run"

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = durationOr(a.cfg.RetryInitial, defaultRetryInitial)
	bo.MaxInterval = durationOr(a.cfg.RetryMax, defaultRetryMax)
	bo.MaxElapsedTime = a.cfg.MaxElapsed

	attempt := func() error {
		select {
		case <-a.done:
			return backoff.Permanent(ErrAgentClosed)
		default:
		}

		err := a.connectOnce(ctx, bo)
		if err == nil {
			return nil
		}
		if a.isClosed() {
			return backoff.Permanent(ErrAgentClosed)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		_ = a.state.Transition(StateFailed, err)

		var status *StatusError
		if errors.As(err, &status) && !status.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		a.log.Info("reconnecting", slog.String("op", op), slog.Duration("in", wait), sl.Err(err))
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(bo, ctx), notify)
	if errors.Is(err, ErrAgentClosed) {
		return nil
	}
	return err
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// connectOnce runs one session. It returns when the session ends.
func (a *Agent) connectOnce(ctx context.Context, bo backoff.BackOff) error {
	if err := a.acquireMedia(ctx); err != nil {
		return fmt.Errorf("acquire media: %w", err)
	}
	if err := a.state.Transition(StateConnecting, nil); err != nil {
		return err
	}

	wsURL, err := JoinURL(a.cfg.ServerURL, a.cfg.RoomCode, a.cfg.SessionID, a.cfg.ParticipantID, a.cfg.HostKey)
	if err != nil {
		return backoff.Permanent(err)
	}
	sig, err := DialSignaler(ctx, wsURL, a.log)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.isClosed() {
		a.mu.Unlock()
		_ = sig.Close()
		return ErrAgentClosed
	}
	a.signaler = sig
	a.mu.Unlock()

	defer a.dropSession(sig)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.done:
			return ErrAgentClosed
		case msg, ok := <-sig.Incoming():
			if !ok {
				return ErrConnectionLost
			}
			if err := a.handle(msg, bo); err != nil {
				a.log.Warn("failed to handle frame", slog.String("type", msg.Type), sl.Err(err))
			}
		}
	}
}

func (a *Agent) acquireMedia(ctx context.Context) error {
	a.mu.Lock()
	acquired := a.local != nil
	a.mu.Unlock()
	if acquired {
		return nil
	}

	if err := a.state.Transition(StateAcquiringMedia, nil); err != nil {
		return err
	}
	local, err := a.cfg.Media.Acquire(ctx)
	if err != nil {
		return err
	}
	local.SetEnabled(webrtc.RTPCodecTypeAudio, !a.media.Muted())
	local.SetEnabled(webrtc.RTPCodecTypeVideo, !a.media.VideoOff())

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.isClosed() {
		_ = local.Stop()
		return ErrAgentClosed
	}
	a.local = local
	return nil
}

// dropSession hangs up every call and forgets sig once its session ended.
func (a *Agent) dropSession(sig *Signaler) {
	a.mu.Lock()
	var mesh Mesh
	if a.signaler == sig {
		a.signaler = nil
		mesh = a.mesh
		a.mesh = nil
	}
	a.mu.Unlock()

	if mesh != nil {
		if err := mesh.Close(); err != nil {
			a.log.Debug("failed to close mesh", sl.Err(err))
		}
	}
	_ = sig.Close()
}

func (a *Agent) handle(msg domain.SignalMessage, bo backoff.BackOff) error {
	switch msg.Type {
	case domain.SignalWelcome:
		var welcome domain.WelcomePayload
		if err := msg.DecodePayload(&welcome); err != nil {
			return err
		}
		if err := a.welcome(welcome); err != nil {
			return err
		}
		bo.Reset()
		return nil

	case domain.SignalParticipantJoined, domain.SignalParticipantUpdated:
		var payload domain.ParticipantPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return err
		}
		a.roster.Upsert(payload.Participant)

	case domain.SignalParticipantLeft:
		var payload domain.ParticipantPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return err
		}
		a.roster.Remove(payload.Participant.ID)
		if mesh := a.currentMesh(); mesh != nil {
			return mesh.Remove(payload.Participant.ID)
		}

	case domain.SignalOffer, domain.SignalAnswer, domain.SignalICECandidate:
		mesh := a.currentMesh()
		if mesh == nil {
			return ErrNotConnected
		}
		return mesh.HandleSignal(msg)

	case domain.SignalEditorUpdate, domain.SignalEditorSnapshot:
		var payload domain.EditorPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return err
		}
		a.editor.Insert(payload.Update)

	case domain.SignalStroke:
		var payload domain.StrokePayload
		if err := msg.DecodePayload(&payload); err != nil {
			return err
		}
		a.whiteboard.Insert(payload.Stroke)

	case domain.SignalWhiteboardClear:
		var payload domain.ClearPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return err
		}
		a.whiteboard.ClearTo(payload.Epoch)

	case domain.SignalTerminalOutput:
		var payload domain.TranscriptPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return err
		}
		if a.transcript.Insert(payload.Line) && a.cfg.OnTerminal != nil {
			a.cfg.OnTerminal(payload.Line)
		}

	case domain.SignalChat:
		var payload domain.ChatPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return err
		}
		if a.cfg.OnChat != nil {
			a.cfg.OnChat(payload)
		}

	case domain.SignalError:
		var payload domain.ErrorPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return err
		}
		a.log.Warn("server refused frame", slog.String("error", payload.Error))
		if a.cfg.OnServerError != nil {
			a.cfg.OnServerError(payload.Error)
		}

	default:
		a.log.Debug("ignoring frame", slog.String("type", msg.Type))
	}
	return nil
}

// welcome replaces the local replicas with the server's state and calls
// every participant already in the room. Participants that join later
// call this agent.
func (a *Agent) welcome(w domain.WelcomePayload) error {
	session := w.Session
	a.roster.Replace(w.Participants)
	for _, u := range w.Editor {
		a.editor.Insert(u)
	}
	a.whiteboard.ClearTo(w.Whiteboard.Epoch)
	for _, s := range w.Whiteboard.Strokes {
		a.whiteboard.Insert(s)
	}
	for _, line := range w.Terminal {
		a.transcript.Insert(line)
	}

	a.mu.Lock()
	sig := a.signaler
	local := a.local
	a.session = &session
	a.mu.Unlock()
	if sig == nil {
		return ErrNotConnected
	}

	endpoint := domain.EndpointName(a.cfg.RoomCode, a.cfg.ParticipantID)
	mesh, err := a.cfg.NewMesh(MeshConfig{
		SelfID:     a.cfg.ParticipantID,
		EndpointID: endpoint,
		ICEServers: w.ICEServers,
		Media:      local,
		Send:       sig.Send,
		OnPresence: func(p domain.PresencePayload) {
			a.roster.Upsert(p.Participant())
		},
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	previous := a.mesh
	a.mesh = mesh
	a.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}

	for _, p := range w.Participants {
		if p.ID == a.cfg.ParticipantID {
			continue
		}
		if err := mesh.Connect(p.ID); err != nil {
			a.log.Warn("failed to call participant", slog.String("remote", p.ID), sl.Err(err))
		}
	}

	presence, err := domain.NewSignal(domain.SignalPresence, domain.NewPresence(a.cfg.ParticipantID, endpoint))
	if err != nil {
		return err
	}
	if err := sig.Send(presence); err != nil {
		return err
	}

	patch := a.media.Patch()
	if name := a.displayName(); name != "" {
		patch.Name = &name
	}
	if err := a.sendUpdate(patch); err != nil {
		return err
	}

	a.log.Info("joined room",
		slog.String("role", string(session.Role)),
		slog.Int("participants", len(w.Participants)),
	)
	return a.state.Transition(StateConnected, nil)
}

func (a *Agent) currentMesh() Mesh {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mesh
}

func (a *Agent) send(t string, payload any) error {
	msg, err := domain.NewSignal(t, payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	sig := a.signaler
	a.mu.Unlock()
	if sig == nil {
		return ErrNotConnected
	}
	return sig.Send(msg)
}

func (a *Agent) sendUpdate(patch domain.ParticipantPatch) error {
	a.roster.Update(a.cfg.ParticipantID, patch)
	return a.send(domain.SignalUpdate, patch)
}

// RunCommand submits a terminal command. Only the host may do that.
func (a *Agent) RunCommand(command string) error {
	session, ok := a.Session()
	if !ok {
		return ErrNotConnected
	}
	if !session.IsHost() {
		return domain.ErrHostOnly
	}
	return a.send(domain.SignalTerminalCommand, domain.CommandPayload{Command: command})
}

func (a *Agent) ClearWhiteboard() error {
	return a.send(domain.SignalWhiteboardClear, nil)
}

func (a *Agent) DrawStroke(s domain.Stroke) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return a.send(domain.SignalStroke, domain.StrokePayload{Stroke: s})
}

// PublishEditor sends an opaque update produced by the editor replication
// library. A snapshot supersedes every earlier update.
func (a *Agent) PublishEditor(data []byte, snapshot bool) error {
	update, err := domain.NewEditorUpdate(a.cfg.ParticipantID, data, snapshot)
	if err != nil {
		return err
	}
	t := domain.SignalEditorUpdate
	if snapshot {
		t = domain.SignalEditorSnapshot
	}
	return a.send(t, domain.EditorPayload{Update: update})
}

func (a *Agent) Chat(message string) error {
	return a.send(domain.SignalChat, domain.ChatPayload{Sender: a.displayName(), Message: message})
}

func (a *Agent) SetName(name string) error {
	a.mu.Lock()
	a.name = name
	a.mu.Unlock()
	return a.sendUpdate(domain.ParticipantPatch{Name: &name})
}

func (a *Agent) displayName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

// ToggleMute flips the microphone and returns whether it is now muted.
func (a *Agent) ToggleMute() (bool, error) {
	muted := a.media.ToggleMute()
	a.localMedia().SetEnabled(webrtc.RTPCodecTypeAudio, !muted)
	return muted, a.sendMediaState()
}

// ToggleVideo flips the camera and returns whether it is now off.
func (a *Agent) ToggleVideo() (bool, error) {
	off := a.media.ToggleVideo()
	a.localMedia().SetEnabled(webrtc.RTPCodecTypeVideo, !off)
	return off, a.sendMediaState()
}

func (a *Agent) sendMediaState() error {
	err := a.sendUpdate(a.media.Patch())
	if errors.Is(err, ErrNotConnected) {
		// Announced with the next welcome.
		return nil
	}
	return err
}

func (a *Agent) localMedia() *LocalMedia {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.local
}

func (a *Agent) Session() (domain.Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return domain.Session{}, false
	}
	return *a.session, true
}

func (a *Agent) State() ConnState               { return a.state.State() }
func (a *Agent) Roster() *domain.Roster         { return a.roster }
func (a *Agent) Editor() *domain.EditorDocument { return a.editor }
func (a *Agent) Whiteboard() *domain.Whiteboard { return a.whiteboard }
func (a *Agent) Transcript() *domain.Transcript { return a.transcript }
func (a *Agent) Media() *LocalMedia             { return a.localMedia() }
func (a *Agent) MediaState() *domain.MediaState { return &a.media }

func (a *Agent) isClosed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Close leaves the room. Every teardown step runs even when an earlier
// one fails; their errors are joined.
func (a *Agent) Close() error {
	first := false
	a.closeOnce.Do(func() {
		close(a.done)
		first = true
	})
	if !first {
		return nil
	}

	a.mu.Lock()
	local, mesh, sig := a.local, a.mesh, a.signaler
	a.local, a.mesh, a.signaler = nil, nil, nil
	a.mu.Unlock()

	var errs []error
	if err := local.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop media: %w", err))
	}
	if mesh != nil {
		if err := mesh.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mesh: %w", err))
		}
	}
	if sig != nil {
		leave, err := domain.NewSignal(domain.SignalLeave, nil)
		if err == nil {
			err = sig.Send(leave)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("send leave: %w", err))
		}
		if err := sig.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close signaling: %w", err))
		}
	}
	a.roster.Remove(a.cfg.ParticipantID)

	if err := a.state.Transition(StateClosed, nil); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
