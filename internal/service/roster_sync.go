package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/immxrtalbeast/codetutor/internal/broker"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/lib/logger/sl"
)

// requestRosterSync asks every instance serving code to announce its
// participants again.
func (s *RoomService) requestRosterSync(ctx context.Context, code string) error {
	return s.publishEvent(ctx, domain.PresenceChannel(code), "", false, code, domain.SignalRosterSync, nil)
}

// announceLocal republishes the roster entries of the participants that
// have an endpoint on this instance.
func (s *RoomService) announceLocal(ctx context.Context, ar *activeRoom) {
	room := ar.room

	room.Mutex.RLock()
	ids := make([]string, 0, len(room.Peers))
	for id := range room.Peers {
		ids = append(ids, id)
	}
	room.Mutex.RUnlock()

	for _, id := range ids {
		p, ok := room.Roster.Get(id)
		if !ok {
			continue
		}
		if err := s.publishEvent(ctx, domain.PresenceChannel(room.Code), id, false,
			room.Code, domain.SignalParticipantUpdated, domain.ParticipantPayload{Participant: p}); err != nil {
			s.log.Warn("failed to announce participant",
				slog.String("room", room.Code),
				slog.String("participant", id),
				sl.Err(err),
			)
		}
	}
}

// SyncRosters drops the participants served by other instances that were
// not announced within staleAfter, then asks the live ones to announce
// themselves again. Local peers are told about every dropped participant.
func (s *RoomService) SyncRosters(ctx context.Context, staleAfter time.Duration) {
	const op = "service.room.sync_rosters"
	log := s.log.With(slog.String("op", op))

	s.mu.RLock()
	codes := make([]string, 0, len(s.activeRooms))
	for code := range s.activeRooms {
		codes = append(codes, code)
	}
	s.mu.RUnlock()

	for _, code := range codes {
		unlock := s.locks.lock(code)
		ar := s.getActiveRoom(code)
		var dropped []domain.Participant
		if ar != nil {
			dropped = s.dropStaleLocked(ar, staleAfter)
		}
		unlock()
		if ar == nil {
			continue
		}

		for _, p := range dropped {
			log.Info("dropping unannounced participant", slog.String("room", code), slog.String("participant", p.ID))
			if err := s.deliverLeft(ar.room, p); err != nil {
				log.Error("failed to notify peers", slog.String("room", code), sl.Err(err))
			}
		}
		if err := s.requestRosterSync(ctx, code); err != nil {
			log.Warn("failed to request roster sync", slog.String("room", code), sl.Err(err))
		}
	}
}

func (s *RoomService) dropStaleLocked(ar *activeRoom, staleAfter time.Duration) []domain.Participant {
	deadline := time.Now().Add(-staleAfter)

	var dropped []domain.Participant
	for _, p := range ar.room.Roster.List() {
		if _, local := ar.room.Peer(p.ID); local {
			continue
		}
		if ar.lastSeen(p.ID).After(deadline) {
			continue
		}
		if ar.room.Roster.Remove(p.ID) {
			ar.forget(p.ID)
			dropped = append(dropped, p)
		}
	}
	return dropped
}

// deliverLeft tells the local peers of room that p is gone. Other instances
// run their own sync, so nothing is published.
func (s *RoomService) deliverLeft(room *domain.Room, p domain.Participant) error {
	msg, err := domain.NewSignal(domain.SignalParticipantLeft, domain.ParticipantPayload{Participant: p})
	if err != nil {
		return err
	}
	msg.Room = room.Code
	msg.SenderID = p.ID

	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.deliver(room, broker.Envelope{Sender: p.ID, Frame: frame})
	return nil
}
