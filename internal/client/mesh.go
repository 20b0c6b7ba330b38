package client

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

var (
	ErrUnknownRemote          = errors.New("no connection to remote participant")
	ErrUnsupportedNegotiation = errors.New("unsupported negotiation message")
)

// Mesh holds one peer connection per remote participant.
type Mesh interface {
	// Connect calls remoteID: it opens the presence channel, adds the
	// local tracks and sends an offer.
	Connect(remoteID string) error
	// HandleSignal applies an offer, answer or ICE candidate relayed by
	// the server.
	HandleSignal(msg domain.SignalMessage) error
	Remove(remoteID string) error
	Close() error
}

type MeshConfig struct {
	SelfID     string
	EndpointID string
	ICEServers []string
	Media      *LocalMedia
	// Send delivers negotiation to the server. TargetID is always set.
	Send       func(domain.SignalMessage) error
	OnPresence func(domain.PresencePayload)
}

type MeshFactory func(cfg MeshConfig) (Mesh, error)

// NewAPI builds a pion API with the default codecs whose internals log
// through log.
func NewAPI(log *slog.Logger) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	s := webrtc.SettingEngine{
		LoggerFactory: NewPionLoggerFactory(log),
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(s)), nil
}

// NewPionMeshFactory returns a factory of meshes sharing one pion API.
func NewPionMeshFactory(log *slog.Logger) (MeshFactory, error) {
	api, err := NewAPI(log)
	if err != nil {
		return nil, err
	}
	return func(cfg MeshConfig) (Mesh, error) {
		return NewPionMesh(api, cfg, log)
	}, nil
}

type meshPeer struct {
	pc      *webrtc.PeerConnection
	pending []webrtc.ICECandidateInit
}

type PionMesh struct {
	api *webrtc.API
	cfg MeshConfig
	log *slog.Logger

	mu     sync.Mutex
	peers  map[string]*meshPeer
	early  map[string][]webrtc.ICECandidateInit
	closed bool
}

func NewPionMesh(api *webrtc.API, cfg MeshConfig, log *slog.Logger) (*PionMesh, error) {
	if cfg.Send == nil {
		return nil, errors.New("mesh needs a send function")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PionMesh{
		api:   api,
		cfg:   cfg,
		log:   log.With(slog.String("self", cfg.SelfID)),
		peers: make(map[string]*meshPeer),
		early: make(map[string][]webrtc.ICECandidateInit),
	}, nil
}

func (m *PionMesh) Connect(remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSignalerClosed
	}
	if _, ok := m.peers[remoteID]; ok {
		_ = m.dropLocked(remoteID)
	}

	peer, err := m.newPeerLocked(remoteID)
	if err != nil {
		return err
	}

	dc, err := peer.pc.CreateDataChannel(presenceLabel, nil)
	if err != nil {
		_ = m.dropLocked(remoteID)
		return err
	}
	m.bindPresence(remoteID, dc)

	offer, err := peer.pc.CreateOffer(nil)
	if err != nil {
		_ = m.dropLocked(remoteID)
		return err
	}
	if err := peer.pc.SetLocalDescription(offer); err != nil {
		_ = m.dropLocked(remoteID)
		return err
	}

	m.log.Debug("calling participant", slog.String("remote", remoteID))
	return m.cfg.Send(domain.SignalMessage{
		Type:     domain.SignalOffer,
		SDP:      &offer,
		TargetID: remoteID,
	})
}

func (m *PionMesh) HandleSignal(msg domain.SignalMessage) error {
	remoteID := msg.SenderID
	if remoteID == "" {
		return fmt.Errorf("%s without sender", msg.Type)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSignalerClosed
	}

	switch msg.Type {
	case domain.SignalOffer:
		if msg.SDP == nil {
			return fmt.Errorf("offer from %s has no description", remoteID)
		}
		return m.answerLocked(remoteID, *msg.SDP)

	case domain.SignalAnswer:
		if msg.SDP == nil {
			return fmt.Errorf("answer from %s has no description", remoteID)
		}
		peer, ok := m.peers[remoteID]
		if !ok {
			return ErrUnknownRemote
		}
		if err := peer.pc.SetRemoteDescription(*msg.SDP); err != nil {
			return err
		}
		return m.flushCandidatesLocked(peer)

	case domain.SignalICECandidate:
		if msg.Candidate == nil {
			return nil
		}
		peer, ok := m.peers[remoteID]
		if !ok {
			// The candidate overtook the offer.
			m.early[remoteID] = append(m.early[remoteID], *msg.Candidate)
			return nil
		}
		if peer.pc.RemoteDescription() == nil {
			peer.pending = append(peer.pending, *msg.Candidate)
			return nil
		}
		return peer.pc.AddICECandidate(*msg.Candidate)
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedNegotiation, msg.Type)
}

// answerLocked accepts a call. An existing connection to the caller is
// replaced.
func (m *PionMesh) answerLocked(remoteID string, offer webrtc.SessionDescription) error {
	if _, ok := m.peers[remoteID]; ok {
		_ = m.dropLocked(remoteID)
	}

	peer, err := m.newPeerLocked(remoteID)
	if err != nil {
		return err
	}
	peer.pending = append(peer.pending, m.early[remoteID]...)
	delete(m.early, remoteID)

	peer.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() == presenceLabel {
			m.bindPresence(remoteID, dc)
		}
	})

	if err := peer.pc.SetRemoteDescription(offer); err != nil {
		_ = m.dropLocked(remoteID)
		return err
	}
	if err := m.flushCandidatesLocked(peer); err != nil {
		m.log.Warn("failed to add early candidate", slog.String("remote", remoteID), sl.Err(err))
	}

	answer, err := peer.pc.CreateAnswer(nil)
	if err != nil {
		_ = m.dropLocked(remoteID)
		return err
	}
	if err := peer.pc.SetLocalDescription(answer); err != nil {
		_ = m.dropLocked(remoteID)
		return err
	}

	m.log.Debug("answering participant", slog.String("remote", remoteID))
	return m.cfg.Send(domain.SignalMessage{
		Type:     domain.SignalAnswer,
		SDP:      &answer,
		TargetID: remoteID,
	})
}

func (m *PionMesh) flushCandidatesLocked(peer *meshPeer) error {
	pending := peer.pending
	peer.pending = nil
	var errs []error
	for _, c := range pending {
		errs = append(errs, peer.pc.AddICECandidate(c))
	}
	return errors.Join(errs...)
}

func (m *PionMesh) newPeerLocked(remoteID string) (*meshPeer, error) {
	pc, err := m.api.NewPeerConnection(m.configuration())
	if err != nil {
		return nil, err
	}
	log := m.log.With(slog.String("remote", remoteID))

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			log.Debug("ICE gathering complete")
			return
		}
		candidate := c.ToJSON()
		if err := m.cfg.Send(domain.SignalMessage{
			Type:      domain.SignalICECandidate,
			Candidate: &candidate,
			TargetID:  remoteID,
		}); err != nil {
			log.Debug("failed to send candidate", sl.Err(err))
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("peer connection state", slog.String("state", state.String()))
	})

	if m.cfg.Media != nil {
		for _, track := range m.cfg.Media.Tracks {
			sender, err := pc.AddTrack(track)
			if err != nil {
				_ = pc.Close()
				return nil, err
			}
			go func() {
				rtcpBuf := make([]byte, 1500)
				for {
					if _, _, err := sender.Read(rtcpBuf); err != nil {
						return
					}
				}
			}()
		}
	}

	peer := &meshPeer{pc: pc}
	m.peers[remoteID] = peer
	return peer, nil
}

func (m *PionMesh) configuration() webrtc.Configuration {
	var cfg webrtc.Configuration
	if len(m.cfg.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: m.cfg.ICEServers}}
	}
	return cfg
}

func (m *PionMesh) bindPresence(remoteID string, dc *webrtc.DataChannel) {
	log := m.log.With(slog.String("remote", remoteID))

	dc.OnOpen(func() {
		data, err := EncodePresence(domain.NewPresence(m.cfg.SelfID, m.cfg.EndpointID))
		if err != nil {
			log.Error("failed to encode presence", sl.Err(err))
			return
		}
		if err := dc.Send(data); err != nil {
			log.Debug("failed to send presence", sl.Err(err))
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		presence, err := DecodePresence(msg.Data)
		if err != nil {
			log.Debug("ignoring presence", sl.Err(err))
			return
		}
		if m.cfg.OnPresence != nil {
			m.cfg.OnPresence(presence)
		}
	})
}

// SignalingState reports the negotiation state of the connection to remoteID.
func (m *PionMesh) SignalingState(remoteID string) (webrtc.SignalingState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	peer, ok := m.peers[remoteID]
	if !ok {
		return webrtc.SignalingState(webrtc.Unknown), false
	}
	return peer.pc.SignalingState(), true
}

func (m *PionMesh) Remove(remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.early, remoteID)
	if _, ok := m.peers[remoteID]; !ok {
		return nil
	}
	return m.dropLocked(remoteID)
}

func (m *PionMesh) dropLocked(remoteID string) error {
	peer := m.peers[remoteID]
	delete(m.peers, remoteID)
	if peer == nil {
		return nil
	}
	return peer.pc.Close()
}

// Close hangs up every call.
func (m *PionMesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for id := range m.peers {
		if err := m.dropLocked(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	clear(m.early)
	return errors.Join(errs...)
}
