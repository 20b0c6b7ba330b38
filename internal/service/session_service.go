package service

import (
	"context"
	"log/slog"

	"github.com/immxrtalbeast/codetutor/internal/domain"
)

// ResolvedSession is the outcome of resolving invite parameters. The
// invite link is only set for a freshly minted host session.
type ResolvedSession struct {
	Session    domain.Session `json:"session"`
	InviteLink string         `json:"invite_link,omitempty"`
}

type SessionService struct {
	publicURL string
	log       *slog.Logger
}

func NewSessionService(publicURL string, log *slog.Logger) *SessionService {
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{
		publicURL: publicURL,
		log:       log,
	}
}

func (s *SessionService) Resolve(ctx context.Context, params domain.InviteParams) (*ResolvedSession, error) {
	const op = "service.session.resolve"
	log := s.log.With(slog.String("op", op))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session := domain.ResolveSession(params)
	res := &ResolvedSession{Session: session}
	if !session.IsHost() {
		log.Debug("joining existing session", slog.String("room", session.RoomCode))
		return res, nil
	}

	link, err := session.InviteLink(s.publicURL)
	if err != nil {
		return nil, err
	}
	res.InviteLink = link

	log.Info("host session minted", slog.String("room", session.RoomCode))
	return res, nil
}
