package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/codetutor/internal/domain"
)

type Room struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Code         string        `gorm:"size:16;uniqueIndex;not null"`
	SessionID    string        `gorm:"size:64;not null"`
	HostKey      string        `gorm:"size:64;not null"`
	Name         string        `gorm:"size:255;not null"`
	CreatedAt    time.Time     `gorm:"not null"`
	ExpiresAt    *time.Time    `gorm:"index"`
	Participants []Participant `gorm:"constraint:OnDelete:CASCADE"`
}

type Participant struct {
	RoomID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ID        string    `gorm:"size:64;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	IsHost    bool      `gorm:"not null"`
	PeerID    string    `gorm:"size:96"`
	Muted     bool      `gorm:"not null"`
	VideoOff  bool      `gorm:"not null"`
	JoinedAt  time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type WhiteboardState struct {
	RoomCode  string `gorm:"size:16;primaryKey"`
	Epoch     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

type Stroke struct {
	Seq       int64          `gorm:"primaryKey;autoIncrement"`
	RoomCode  string         `gorm:"size:16;not null;index:idx_strokes_room_epoch"`
	Epoch     int64          `gorm:"not null;index:idx_strokes_room_epoch"`
	AuthorID  string         `gorm:"size:64;not null"`
	Color     string         `gorm:"size:16;not null"`
	Width     int            `gorm:"not null"`
	Points    []domain.Point `gorm:"serializer:json;type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

type TranscriptLine struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement"`
	RoomCode  string    `gorm:"size:16;not null;index"`
	AuthorID  string    `gorm:"size:64;not null"`
	Command   string    `gorm:"type:text;not null"`
	Output    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type EditorUpdate struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement"`
	RoomCode  string    `gorm:"size:16;not null;index"`
	AuthorID  string    `gorm:"size:64;not null"`
	Data      []byte    `gorm:"type:bytea;not null"`
	Snapshot  bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type ChatMessage struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomCode      string    `gorm:"size:16;not null;index"`
	ParticipantID string    `gorm:"size:64;not null"`
	DisplayName   string    `gorm:"size:255;not null"`
	Content       string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

// All lists every model for auto-migration.
func All() []any {
	return []any{
		&Room{},
		&Participant{},
		&WhiteboardState{},
		&Stroke{},
		&TranscriptLine{},
		&EditorUpdate{},
		&ChatMessage{},
	}
}
