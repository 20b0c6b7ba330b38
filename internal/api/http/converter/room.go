package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/codetutor/internal/domain"
)

type RoomResponse struct {
	ID           uuid.UUID            `json:"id"`
	Code         string               `json:"code"`
	SessionID    string               `json:"session_id"`
	Name         string               `json:"name"`
	Participants []domain.Participant `json:"participants"`
	Peers        []PeerResponse       `json:"peers"`
	CreatedAt    time.Time            `json:"created_at"`
	ExpiresAt    time.Time            `json:"expires_at,omitempty"`
	IsExpired    bool                 `json:"is_expired"`
}

// PeerResponse describes an endpoint open on this server instance.
type PeerResponse struct {
	ID            string            `json:"id"`
	ParticipantID string            `json:"participant_id"`
	Status        domain.PeerStatus `json:"status"`
	LastSeen      time.Time         `json:"last_seen"`
}

// CreatedRoomResponse is only returned to the creator. The host key in it
// is the one credential that grants the host role.
type CreatedRoomResponse struct {
	Room       *RoomResponse `json:"room"`
	HostKey    string        `json:"host_key"`
	InviteLink string        `json:"invite_link"`
}

func RoomToApi(r *domain.Room) *RoomResponse {
	r.Mutex.RLock()
	peers := make([]PeerResponse, 0, len(r.Peers))
	for _, peer := range r.Peers {
		peer.Mutex.RLock()
		peers = append(peers, PeerResponse{
			ID:            peer.ID,
			ParticipantID: peer.ParticipantID,
			Status:        peer.Status,
			LastSeen:      peer.LastSeen,
		})
		peer.Mutex.RUnlock()
	}
	r.Mutex.RUnlock()

	participants := []domain.Participant{}
	if r.Roster != nil {
		participants = r.Roster.List()
	}

	return &RoomResponse{
		ID:           r.ID,
		Code:         r.Code,
		SessionID:    r.SessionID,
		Name:         r.Name,
		Participants: participants,
		Peers:        peers,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt,
		IsExpired:    r.IsExpired(),
	}
}

func CreatedRoomToApi(r *domain.Room, publicURL string) (*CreatedRoomResponse, error) {
	link, err := r.Session(domain.RoleHost).InviteLink(publicURL)
	if err != nil {
		return nil, err
	}
	return &CreatedRoomResponse{
		Room:       RoomToApi(r),
		HostKey:    r.HostKey,
		InviteLink: link,
	}, nil
}
