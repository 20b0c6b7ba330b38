package repository

import (
	"context"
	"sync"

	"github.com/immxrtalbeast/codetutor/internal/domain"
)

type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewInMemoryRoomRepository() *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms: make(map[string]*domain.Room),
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.Code]; ok {
		return ErrRoomCodeExists
	}

	r.rooms[room.Code] = detach(room)
	return nil
}

func (r *InMemoryRoomRepository) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return detach(room), nil
}

func (r *InMemoryRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.Code]; !ok {
		return ErrRoomNotFound
	}

	r.rooms[room.Code] = detach(room)
	return nil
}

func (r *InMemoryRoomRepository) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[code]; !ok {
		return ErrRoomNotFound
	}

	delete(r.rooms, code)
	return nil
}

func (r *InMemoryRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		result = append(result, detach(room))
	}
	return result, nil
}

// detach copies the stored fields of room the way a database round trip
// would. Peers and cached content are never shared between callers.
func detach(room *domain.Room) *domain.Room {
	copied := &domain.Room{
		ID:        room.ID,
		Code:      room.Code,
		SessionID: room.SessionID,
		HostKey:   room.HostKey,
		Name:      room.Name,
		CreatedAt: room.CreatedAt,
		ExpiresAt: room.ExpiresAt,
	}
	copied.Init()
	if room.Roster != nil {
		copied.Roster.Replace(room.Roster.List())
	}
	return copied
}

type roomContent struct {
	whiteboard *domain.Whiteboard
	transcript *domain.Transcript
	editor     *domain.EditorDocument
	chat       []*domain.ChatMessage
}

type InMemoryContentRepository struct {
	mu    sync.Mutex
	rooms map[string]*roomContent
}

func NewInMemoryContentRepository() *InMemoryContentRepository {
	return &InMemoryContentRepository{
		rooms: make(map[string]*roomContent),
	}
}

func (r *InMemoryContentRepository) content(code string) *roomContent {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.rooms[code]
	if !ok {
		c = &roomContent{
			whiteboard: domain.NewWhiteboard(),
			transcript: domain.NewTranscript(),
			editor:     domain.NewEditorDocument(),
		}
		r.rooms[code] = c
	}
	return c
}

func (r *InMemoryContentRepository) AppendStroke(ctx context.Context, code string, stroke domain.Stroke) (domain.Stroke, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stroke{}, err
	}
	return r.content(code).whiteboard.Append(stroke)
}

func (r *InMemoryContentRepository) ClearStrokes(ctx context.Context, code string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.content(code).whiteboard.Clear(), nil
}

func (r *InMemoryContentRepository) Strokes(ctx context.Context, code string) (domain.WhiteboardSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.WhiteboardSnapshot{}, err
	}
	wb := r.content(code).whiteboard
	return domain.WhiteboardSnapshot{Epoch: wb.Epoch(), Strokes: wb.Since(0)}, nil
}

func (r *InMemoryContentRepository) AppendTranscript(ctx context.Context, code string, line domain.TranscriptLine) (domain.TranscriptLine, error) {
	if err := ctx.Err(); err != nil {
		return domain.TranscriptLine{}, err
	}
	return r.content(code).transcript.Append(line), nil
}

func (r *InMemoryContentRepository) Transcript(ctx context.Context, code string) ([]domain.TranscriptLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.content(code).transcript.Since(0), nil
}

func (r *InMemoryContentRepository) AppendEditorUpdate(ctx context.Context, code string, update domain.EditorUpdate) (domain.EditorUpdate, error) {
	if err := ctx.Err(); err != nil {
		return domain.EditorUpdate{}, err
	}
	return r.content(code).editor.Apply(update), nil
}

func (r *InMemoryContentRepository) EditorUpdates(ctx context.Context, code string) ([]domain.EditorUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.content(code).editor.Since(0), nil
}

func (r *InMemoryContentRepository) SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := r.content(msg.RoomCode)

	r.mu.Lock()
	defer r.mu.Unlock()
	c.chat = append(c.chat, msg)
	return nil
}

func (r *InMemoryContentRepository) DeleteContent(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
	return nil
}
