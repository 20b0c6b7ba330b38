package repository

import (
	"context"
	"errors"

	"github.com/immxrtalbeast/codetutor/internal/domain"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomCodeExists = errors.New("room code already exists")
)

// RoomRepository stores room metadata together with a snapshot of its roster.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByCode(ctx context.Context, code string) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]*domain.Room, error)
}

// ContentRepository stores the shared documents of rooms. Append methods
// assign the sequence number, so every server instance agrees on ordering.
type ContentRepository interface {
	AppendStroke(ctx context.Context, code string, stroke domain.Stroke) (domain.Stroke, error)
	ClearStrokes(ctx context.Context, code string) (int64, error)
	Strokes(ctx context.Context, code string) (domain.WhiteboardSnapshot, error)

	AppendTranscript(ctx context.Context, code string, line domain.TranscriptLine) (domain.TranscriptLine, error)
	Transcript(ctx context.Context, code string) ([]domain.TranscriptLine, error)

	AppendEditorUpdate(ctx context.Context, code string, update domain.EditorUpdate) (domain.EditorUpdate, error)
	EditorUpdates(ctx context.Context, code string) ([]domain.EditorUpdate, error)

	SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error

	DeleteContent(ctx context.Context, code string) error
}
