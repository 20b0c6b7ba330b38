package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/immxrtalbeast/codetutor/internal/broker"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/lib/logger/sl"
)

// publish sends msg on channel. Subscribers deliver it to every local peer
// except sender, unless echo is set.
func (s *RoomService) publish(ctx context.Context, channel, sender string, echo bool, msg domain.SignalMessage) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	env, err := broker.Envelope{Origin: s.instance, Sender: sender, Echo: echo, Frame: frame}.Encode()
	if err != nil {
		return err
	}
	return s.broker.Publish(ctx, channel, env)
}

func (s *RoomService) publishEvent(ctx context.Context, channel, sender string, echo bool, room, signalType string, payload any) error {
	msg, err := domain.NewSignal(signalType, payload)
	if err != nil {
		return err
	}
	msg.Room = room
	msg.SenderID = sender
	return s.publish(ctx, channel, sender, echo, msg)
}

// listen applies the events of a room to its cached state and hands them
// to the local peers. It returns when the subscription is closed.
func (s *RoomService) listen(ar *activeRoom) {
	log := s.log.With(slog.String("room", ar.room.Code))

	for msg := range ar.sub.C() {
		env, err := broker.DecodeEnvelope(msg.Payload)
		if err != nil {
			log.Warn("undecodable broker message", slog.String("channel", msg.Channel), sl.Err(err))
			continue
		}

		var signal domain.SignalMessage
		if err := json.Unmarshal(env.Frame, &signal); err != nil {
			log.Warn("undecodable frame", slog.String("channel", msg.Channel), sl.Err(err))
			continue
		}

		own := env.Origin == s.instance
		if signal.Type == domain.SignalRosterSync {
			if !own {
				s.announceLocal(context.Background(), ar)
			}
			continue
		}

		s.apply(ar, signal, own)
		s.deliver(ar.room, env)
	}
}

// apply updates the cached room with msg. Roster events published by this
// instance were applied when they happened and are skipped.
func (s *RoomService) apply(ar *activeRoom, msg domain.SignalMessage, own bool) {
	room := ar.room
	switch msg.Type {
	case domain.SignalParticipantJoined, domain.SignalParticipantUpdated:
		var p domain.ParticipantPayload
		if own || msg.DecodePayload(&p) != nil || p.Participant.ID == "" {
			return
		}
		// Participants served here are already up to date.
		if _, local := room.Peer(p.Participant.ID); !local {
			room.Roster.Upsert(p.Participant)
			ar.touch(p.Participant.ID)
		}
	case domain.SignalParticipantLeft:
		var p domain.ParticipantPayload
		if !own && msg.DecodePayload(&p) == nil {
			// A participant that rejoined through this instance stays.
			if _, local := room.Peer(p.Participant.ID); !local {
				room.Roster.Remove(p.Participant.ID)
				ar.forget(p.Participant.ID)
			}
		}
	case domain.SignalEditorUpdate, domain.SignalEditorSnapshot:
		var p domain.EditorPayload
		if msg.DecodePayload(&p) == nil {
			room.Editor.Insert(p.Update)
		}
	case domain.SignalStroke:
		var p domain.StrokePayload
		if msg.DecodePayload(&p) == nil {
			room.Whiteboard.Insert(p.Stroke)
		}
	case domain.SignalWhiteboardClear:
		var p domain.ClearPayload
		if msg.DecodePayload(&p) == nil {
			room.Whiteboard.ClearTo(p.Epoch)
		}
	case domain.SignalTerminalOutput:
		var p domain.TranscriptPayload
		if msg.DecodePayload(&p) == nil {
			room.Terminal.Insert(p.Line)
		}
	}
}

func (s *RoomService) deliver(room *domain.Room, env broker.Envelope) {
	room.Mutex.RLock()
	peers := make([]*domain.Peer, 0, len(room.Peers))
	for id, peer := range room.Peers {
		if env.SkipFor(id) {
			continue
		}
		peers = append(peers, peer)
	}
	room.Mutex.RUnlock()

	for _, peer := range peers {
		s.enqueue(peer, env.Frame)
	}
}

// pumpEndpoint forwards the signals addressed to one participant.
func (s *RoomService) pumpEndpoint(peer *domain.Peer, sub broker.Subscription) {
	for msg := range sub.C() {
		env, err := broker.DecodeEnvelope(msg.Payload)
		if err != nil {
			s.log.Warn("undecodable endpoint message", slog.String("peer", peer.ID), sl.Err(err))
			continue
		}
		s.enqueue(peer, env.Frame)
	}
}

func (s *RoomService) enqueue(peer *domain.Peer, frame []byte) {
	if peer.EnqueueEvent(frame) {
		return
	}
	if peer.Closed() {
		return
	}
	s.metrics.FrameDropped()
	s.log.Debug("dropping frame", slog.String("peer", peer.ID))
}
