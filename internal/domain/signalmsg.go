package domain

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v3"
)

const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"

	SignalWelcome            = "welcome"
	SignalParticipantJoined  = "participant-joined"
	SignalParticipantLeft    = "participant-left"
	SignalParticipantUpdated = "participant-updated"
	SignalPresence           = "presence"
	SignalUpdate             = "update"
	SignalLeave              = "leave"
	SignalChat               = "chat"
	SignalError              = "error"

	SignalEditorUpdate    = "editor-update"
	SignalEditorSnapshot  = "editor-snapshot"
	SignalStroke          = "stroke"
	SignalWhiteboardClear = "whiteboard-clear"
	SignalTerminalCommand = "terminal-command"
	SignalTerminalOutput  = "terminal-output"

	// SignalRosterSync asks every server instance to announce the
	// participants it serves. It never reaches clients.
	SignalRosterSync = "roster-sync"
)

// PresenceUserJoined is the type tag of a presence announcement.
const PresenceUserJoined = "userJoined"

var ErrEmptyPayload = errors.New("payload is empty")

type SignalMessage struct {
	Type      string                     `json:"type"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Room      string                     `json:"room,omitempty"`
	SenderID  string                     `json:"sender_id,omitempty"`
	TargetID  string                     `json:"target_id,omitempty"`
	Seq       int64                      `json:"seq,omitempty"`
	Payload   json.RawMessage            `json:"payload,omitempty"`
}

// NewSignal builds a message of type t with payload encoded as JSON.
func NewSignal(t string, payload any) (SignalMessage, error) {
	msg := SignalMessage{Type: t}
	if payload == nil {
		return msg, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return SignalMessage{}, err
	}
	msg.Payload = b
	return msg, nil
}

func (m SignalMessage) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(m.Payload, v)
}

// IsNegotiation reports whether m is an SDP or ICE message relayed between peers.
func (m SignalMessage) IsNegotiation() bool {
	switch m.Type {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

// PresencePayload announces a participant to another peer. It travels over
// the peer data channel and through the room presence channel.
type PresencePayload struct {
	Type   string `json:"type" msgpack:"type"`
	UserID string `json:"userId" msgpack:"userId"`
	PeerID string `json:"peerId" msgpack:"peerId"`
}

func NewPresence(userID, peerID string) PresencePayload {
	return PresencePayload{Type: PresenceUserJoined, UserID: userID, PeerID: peerID}
}

// Participant turns the announcement into a roster entry.
func (p PresencePayload) Participant() Participant {
	participant := NewParticipant(p.UserID, false)
	participant.PeerID = p.PeerID
	return participant
}

type WhiteboardSnapshot struct {
	Epoch   int64    `json:"epoch"`
	Strokes []Stroke `json:"strokes"`
}

// WelcomePayload is sent to a participant right after it joins.
type WelcomePayload struct {
	Self         Participant        `json:"self"`
	Session      Session            `json:"session"`
	Participants []Participant      `json:"participants"`
	Editor       []EditorUpdate     `json:"editor"`
	Whiteboard   WhiteboardSnapshot `json:"whiteboard"`
	Terminal     []TranscriptLine   `json:"terminal"`
	ICEServers   []string           `json:"ice_servers,omitempty"`
}

type ParticipantPayload struct {
	Participant Participant `json:"participant"`
}

type EditorPayload struct {
	Update EditorUpdate `json:"update"`
}

type StrokePayload struct {
	Stroke Stroke `json:"stroke"`
}

type ClearPayload struct {
	Epoch int64 `json:"epoch"`
}

type CommandPayload struct {
	Command string `json:"command"`
}

type TranscriptPayload struct {
	Line TranscriptLine `json:"line"`
}

type ChatPayload struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
