package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxChatMessageLength = 4000
	maxChatSenderLength  = 255
)

var (
	ErrEmptyChatMessage   = errors.New("chat message cannot be empty")
	ErrChatMessageTooLong = errors.New("chat message is too long")
	ErrChatSenderTooLong  = errors.New("chat sender is too long")
)

type ChatMessage struct {
	ID            uuid.UUID
	RoomCode      string
	ParticipantID string
	DisplayName   string
	Content       string
	CreatedAt     time.Time
}

// NewChatMessage validates content and attributes it to sender. An explicit
// display name overrides the sender's roster name.
func NewChatMessage(roomCode string, sender Participant, content, displayName string) (*ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyChatMessage
	}
	if utf8.RuneCountInString(content) > maxChatMessageLength {
		return nil, ErrChatMessageTooLong
	}

	displayName = strings.TrimSpace(displayName)
	if utf8.RuneCountInString(displayName) > maxChatSenderLength {
		return nil, ErrChatSenderTooLong
	}
	if displayName == "" {
		displayName = sender.Name
	}

	return &ChatMessage{
		ID:            uuid.New(),
		RoomCode:      roomCode,
		ParticipantID: sender.ID,
		DisplayName:   displayName,
		Content:       content,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (m *ChatMessage) Payload() ChatPayload {
	return ChatPayload{
		ID:        m.ID.String(),
		Sender:    m.DisplayName,
		Message:   m.Content,
		Timestamp: m.CreatedAt.Format(time.RFC3339Nano),
	}
}
