package service

//go:generate mockgen -source=service.go -destination=mocks/service.go -package=mocks

import (
	"context"

	"github.com/immxrtalbeast/codetutor/internal/domain"
)

type RoomInteractor interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error)
	GetRoom(ctx context.Context, code string) (*domain.Room, error)
	Join(ctx context.Context, code string, req JoinRequest) (*domain.Peer, error)
	Leave(ctx context.Context, code string, participantID string) error
	Disconnect(ctx context.Context, code string, peer *domain.Peer) error
	HandleSignal(ctx context.Context, code string, participantID string, message *domain.SignalMessage) error
	ListParticipants(ctx context.Context, code string) ([]domain.Participant, error)
	PanelSnapshot(ctx context.Context, code string, panel domain.Panel, after int64) (*PanelSnapshot, error)
}

type SessionInteractor interface {
	Resolve(ctx context.Context, params domain.InviteParams) (*ResolvedSession, error)
}
