package domain

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type PeerStatus string

const (
	PeerStatusConnected    PeerStatus = "connected"
	PeerStatusConnecting   PeerStatus = "connecting"
	PeerStatusDisconnected PeerStatus = "disconnected"
)

const peerEventBuffer = 64

// Peer is the open connection endpoint of one participant on this server.
// Events holds encoded frames waiting to be written to Socket.
type Peer struct {
	ID            string
	ParticipantID string
	Status        PeerStatus
	JoinedAt      time.Time
	LastSeen      time.Time
	Mutex         sync.RWMutex
	Socket        *websocket.Conn
	Events        chan []byte

	closed bool
}

func NewPeer(roomCode, participantID string) *Peer {
	now := time.Now().UTC()
	return &Peer{
		ID:            EndpointName(roomCode, participantID),
		ParticipantID: participantID,
		Status:        PeerStatusConnecting,
		JoinedAt:      now,
		LastSeen:      now,
		Events:        make(chan []byte, peerEventBuffer),
	}
}

func (p *Peer) Touch() {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	p.LastSeen = time.Now().UTC()
}

// EnqueueEvent queues a frame for delivery. It reports false when the
// queue is full or the peer is closed; the frame is dropped.
func (p *Peer) EnqueueEvent(frame []byte) bool {
	p.Mutex.RLock()
	defer p.Mutex.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.Events <- frame:
		return true
	default:
		return false
	}
}

// Attach binds the websocket serving this peer and marks it connected.
func (p *Peer) Attach(conn *websocket.Conn) {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	p.Socket = conn
	if !p.closed {
		p.Status = PeerStatusConnected
	}
}

func (p *Peer) SetStatus(status PeerStatus) {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	p.Status = status
}

func (p *Peer) GetStatus() PeerStatus {
	p.Mutex.RLock()
	defer p.Mutex.RUnlock()
	return p.Status
}

// Close marks the peer disconnected, closes its event queue and its socket.
// It is safe to call more than once.
func (p *Peer) Close() {
	p.Mutex.Lock()
	defer p.Mutex.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.Status = PeerStatusDisconnected
	close(p.Events)
	if p.Socket != nil {
		_ = p.Socket.Close()
	}
}

func (p *Peer) Closed() bool {
	p.Mutex.RLock()
	defer p.Mutex.RUnlock()
	return p.closed
}
