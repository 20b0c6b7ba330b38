package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/lib/logger/sl"
)

var (
	ErrUnsupportedSignal = errors.New("unsupported signal type")
	ErrInvalidPayload    = errors.New("invalid signal payload")
)

const maxDisplayNameLength = 64

func (s *RoomService) HandleSignal(ctx context.Context, code string, participantID string, message *domain.SignalMessage) error {
	const op = "service.room.signal"
	if message == nil {
		return fmt.Errorf("%w: message is required", ErrInvalidPayload)
	}
	log := s.log.With(
		slog.String("op", op),
		slog.String("room", code),
		slog.String("participant", participantID),
		slog.String("type", message.Type),
	)
	log.Debug("new signal", slog.String("target", message.TargetID))

	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if _, ok := room.Peer(participantID); !ok {
		return ErrPeerNotFound
	}
	sender, ok := room.Roster.Get(participantID)
	if !ok {
		return ErrPeerNotFound
	}
	s.metrics.SignalHandled(message.Type)

	switch message.Type {
	case domain.SignalOffer, domain.SignalAnswer, domain.SignalICECandidate:
		err = s.relay(ctx, room, sender, *message)
	case domain.SignalPresence:
		err = s.announce(ctx, room, sender, message)
	case domain.SignalUpdate:
		err = s.updateParticipant(ctx, room, sender, message)
	case domain.SignalEditorUpdate, domain.SignalEditorSnapshot:
		err = s.editorUpdate(ctx, room, sender, message)
	case domain.SignalStroke:
		err = s.stroke(ctx, room, sender, message)
	case domain.SignalWhiteboardClear:
		err = s.clearWhiteboard(ctx, room, sender)
	case domain.SignalTerminalCommand:
		err = s.terminalCommand(ctx, room, sender, message)
	case domain.SignalChat:
		err = s.chat(ctx, room, sender, message)
	case domain.SignalLeave:
		log.Info("participant is leaving")
		return s.Leave(ctx, code, participantID)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSignal, message.Type)
	}

	if err != nil {
		log.Info("signal rejected", sl.Err(err))
	}
	return err
}

// relay forwards negotiation to the target endpoint, or to the whole room
// when no target is set.
func (s *RoomService) relay(ctx context.Context, room *domain.Room, sender domain.Participant, msg domain.SignalMessage) error {
	msg.Room = room.Code
	msg.SenderID = sender.ID

	if msg.TargetID == "" {
		return s.publish(ctx, domain.PresenceChannel(room.Code), sender.ID, false, msg)
	}
	if _, ok := room.Roster.Get(msg.TargetID); !ok {
		return ErrPeerNotFound
	}
	return s.publish(ctx, domain.EndpointName(room.Code, msg.TargetID), sender.ID, false, msg)
}

func (s *RoomService) announce(ctx context.Context, room *domain.Room, sender domain.Participant, msg *domain.SignalMessage) error {
	var presence domain.PresencePayload
	if err := decodePayload(msg, &presence); err != nil {
		return err
	}
	if presence.UserID != sender.ID {
		return fmt.Errorf("%w: presence for another participant", ErrInvalidPayload)
	}

	peerID := strings.TrimSpace(presence.PeerID)
	updated, ok := room.Roster.Update(sender.ID, domain.ParticipantPatch{PeerID: &peerID})
	if !ok {
		return ErrPeerNotFound
	}
	return s.participantUpdated(ctx, room, updated)
}

func (s *RoomService) updateParticipant(ctx context.Context, room *domain.Room, sender domain.Participant, msg *domain.SignalMessage) error {
	var patch domain.ParticipantPatch
	if err := decodePayload(msg, &patch); err != nil {
		return err
	}
	// The host flag only comes from the host key.
	patch.IsHost = nil
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
			return fmt.Errorf("%w: bad display name", ErrInvalidPayload)
		}
		patch.Name = &name
	}
	if patch.IsEmpty() {
		return fmt.Errorf("%w: empty update", ErrInvalidPayload)
	}

	updated, ok := room.Roster.Update(sender.ID, patch)
	if !ok {
		return ErrPeerNotFound
	}
	return s.participantUpdated(ctx, room, updated)
}

func (s *RoomService) participantUpdated(ctx context.Context, room *domain.Room, p domain.Participant) error {
	if err := s.rooms.Update(ctx, room); err != nil {
		s.log.Error("failed to persist roster", slog.String("room", room.Code), sl.Err(err))
	}
	return s.publishEvent(ctx, domain.PresenceChannel(room.Code), p.ID, false,
		room.Code, domain.SignalParticipantUpdated, domain.ParticipantPayload{Participant: p})
}

func (s *RoomService) editorUpdate(ctx context.Context, room *domain.Room, sender domain.Participant, msg *domain.SignalMessage) error {
	var payload domain.EditorPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	update, err := domain.NewEditorUpdate(sender.ID, payload.Update.Data, msg.Type == domain.SignalEditorSnapshot)
	if err != nil {
		return err
	}
	stored, err := s.content.AppendEditorUpdate(ctx, room.Code, update)
	if err != nil {
		return err
	}

	event, err := domain.NewSignal(msg.Type, domain.EditorPayload{Update: stored})
	if err != nil {
		return err
	}
	event.Room = room.Code
	event.SenderID = sender.ID
	event.Seq = stored.Seq
	return s.publish(ctx, domain.ReplicationChannel(room.Code, domain.PanelEditor), sender.ID, false, event)
}

func (s *RoomService) stroke(ctx context.Context, room *domain.Room, sender domain.Participant, msg *domain.SignalMessage) error {
	var payload domain.StrokePayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	stroke := payload.Stroke
	stroke.AuthorID = sender.ID
	stroke.Seq = 0
	stroke.Epoch = 0
	stored, err := s.content.AppendStroke(ctx, room.Code, stroke)
	if err != nil {
		return err
	}

	event, err := domain.NewSignal(domain.SignalStroke, domain.StrokePayload{Stroke: stored})
	if err != nil {
		return err
	}
	event.Room = room.Code
	event.SenderID = sender.ID
	event.Seq = stored.Seq
	return s.publish(ctx, domain.ReplicationChannel(room.Code, domain.PanelWhiteboard), sender.ID, true, event)
}

func (s *RoomService) clearWhiteboard(ctx context.Context, room *domain.Room, sender domain.Participant) error {
	epoch, err := s.content.ClearStrokes(ctx, room.Code)
	if err != nil {
		return err
	}
	return s.publishEvent(ctx, domain.ReplicationChannel(room.Code, domain.PanelWhiteboard), sender.ID, true,
		room.Code, domain.SignalWhiteboardClear, domain.ClearPayload{Epoch: epoch})
}

func (s *RoomService) terminalCommand(ctx context.Context, room *domain.Room, sender domain.Participant, msg *domain.SignalMessage) error {
	var payload domain.CommandPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	line, err := domain.NewTranscriptLine(sender, payload.Command)
	if err != nil {
		return err
	}
	stored, err := s.content.AppendTranscript(ctx, room.Code, line)
	if err != nil {
		return err
	}

	event, err := domain.NewSignal(domain.SignalTerminalOutput, domain.TranscriptPayload{Line: stored})
	if err != nil {
		return err
	}
	event.Room = room.Code
	event.SenderID = sender.ID
	event.Seq = stored.Seq
	return s.publish(ctx, domain.ReplicationChannel(room.Code, domain.PanelTerminal), sender.ID, true, event)
}

func (s *RoomService) chat(ctx context.Context, room *domain.Room, sender domain.Participant, msg *domain.SignalMessage) error {
	var payload domain.ChatPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	chatMsg, err := domain.NewChatMessage(room.Code, sender, payload.Message, payload.Sender)
	if err != nil {
		return err
	}
	if err := s.content.SaveChatMessage(ctx, chatMsg); err != nil {
		s.log.Error("failed to save chat message", slog.String("room", room.Code), sl.Err(err))
		return err
	}

	return s.publishEvent(ctx, domain.PresenceChannel(room.Code), sender.ID, true,
		room.Code, domain.SignalChat, chatMsg.Payload())
}

func decodePayload(msg *domain.SignalMessage, v any) error {
	if err := msg.DecodePayload(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
