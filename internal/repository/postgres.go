package repository

import (
	"context"
	"errors"
	"time"

	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/internal/repository/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewPostgresRoomRepository(db *gorm.DB) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	roomModel := toModelRoom(room)

	if err := r.db.WithContext(ctx).Create(roomModel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomCodeExists
		}
		return err
	}
	return nil
}

func (r *PostgresRoomRepository) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := r.db.WithContext(ctx).Preload("Participants").First(&room, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return toDomainRoom(&room), nil
}

func (r *PostgresRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	roomModel := toModelRoom(room)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"name":       roomModel.Name,
			"session_id": roomModel.SessionID,
		}

		if roomModel.ExpiresAt == nil {
			updates["expires_at"] = gorm.Expr("NULL")
		} else {
			updates["expires_at"] = roomModel.ExpiresAt
		}

		res := tx.Model(&model.Room{}).Where("id = ?", roomModel.ID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotFound
		}

		if err := tx.Where("room_id = ?", roomModel.ID).Delete(&model.Participant{}).Error; err != nil {
			return err
		}

		if len(roomModel.Participants) > 0 {
			if err := tx.Create(&roomModel.Participants).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *PostgresRoomRepository) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Delete(&model.Room{}, "code = ?", code)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *PostgresRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rooms []model.Room
	if err := r.db.WithContext(ctx).Preload("Participants").Find(&rooms).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Room, 0, len(rooms))
	for i := range rooms {
		result = append(result, toDomainRoom(&rooms[i]))
	}

	return result, nil
}

type PostgresContentRepository struct {
	db *gorm.DB
}

func NewPostgresContentRepository(db *gorm.DB) *PostgresContentRepository {
	return &PostgresContentRepository{db: db}
}

func (r *PostgresContentRepository) AppendStroke(ctx context.Context, code string, stroke domain.Stroke) (domain.Stroke, error) {
	if err := stroke.Validate(); err != nil {
		return domain.Stroke{}, err
	}

	var row model.Stroke
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := lockWhiteboardState(tx, code)
		if err != nil {
			return err
		}

		row = model.Stroke{
			RoomCode:  code,
			Epoch:     state.Epoch,
			AuthorID:  stroke.AuthorID,
			Color:     stroke.Color,
			Width:     stroke.Width,
			Points:    stroke.Points,
			CreatedAt: createdAt(stroke.CreatedAt),
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return domain.Stroke{}, err
	}

	return toDomainStroke(&row), nil
}

func (r *PostgresContentRepository) ClearStrokes(ctx context.Context, code string) (int64, error) {
	var epoch int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := lockWhiteboardState(tx, code)
		if err != nil {
			return err
		}

		state.Epoch++
		if err := tx.Save(state).Error; err != nil {
			return err
		}
		epoch = state.Epoch

		return tx.Where("room_code = ?", code).Delete(&model.Stroke{}).Error
	})
	return epoch, err
}

func (r *PostgresContentRepository) Strokes(ctx context.Context, code string) (domain.WhiteboardSnapshot, error) {
	var state model.WhiteboardState
	err := r.db.WithContext(ctx).Where("room_code = ?", code).Limit(1).Find(&state).Error
	if err != nil {
		return domain.WhiteboardSnapshot{}, err
	}

	var rows []model.Stroke
	err = r.db.WithContext(ctx).
		Where("room_code = ? AND epoch = ?", code, state.Epoch).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return domain.WhiteboardSnapshot{}, err
	}

	snapshot := domain.WhiteboardSnapshot{
		Epoch:   state.Epoch,
		Strokes: make([]domain.Stroke, 0, len(rows)),
	}
	for i := range rows {
		snapshot.Strokes = append(snapshot.Strokes, toDomainStroke(&rows[i]))
	}
	return snapshot, nil
}

func (r *PostgresContentRepository) AppendTranscript(ctx context.Context, code string, line domain.TranscriptLine) (domain.TranscriptLine, error) {
	row := model.TranscriptLine{
		RoomCode:  code,
		AuthorID:  line.AuthorID,
		Command:   line.Command,
		Output:    line.Output,
		CreatedAt: createdAt(line.CreatedAt),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.TranscriptLine{}, err
	}
	return toDomainTranscriptLine(&row), nil
}

func (r *PostgresContentRepository) Transcript(ctx context.Context, code string) ([]domain.TranscriptLine, error) {
	var rows []model.TranscriptLine
	if err := r.db.WithContext(ctx).Where("room_code = ?", code).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]domain.TranscriptLine, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainTranscriptLine(&rows[i]))
	}
	return result, nil
}

// AppendEditorUpdate stores update. A snapshot drops every earlier update
// of the room in the same transaction.
func (r *PostgresContentRepository) AppendEditorUpdate(ctx context.Context, code string, update domain.EditorUpdate) (domain.EditorUpdate, error) {
	row := model.EditorUpdate{
		RoomCode:  code,
		AuthorID:  update.AuthorID,
		Data:      update.Data,
		Snapshot:  update.Snapshot,
		CreatedAt: createdAt(update.CreatedAt),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if !row.Snapshot {
			return nil
		}
		return tx.Where("room_code = ? AND seq < ?", code, row.Seq).Delete(&model.EditorUpdate{}).Error
	})
	if err != nil {
		return domain.EditorUpdate{}, err
	}

	return toDomainEditorUpdate(&row), nil
}

func (r *PostgresContentRepository) EditorUpdates(ctx context.Context, code string) ([]domain.EditorUpdate, error) {
	var rows []model.EditorUpdate
	if err := r.db.WithContext(ctx).Where("room_code = ?", code).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]domain.EditorUpdate, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainEditorUpdate(&rows[i]))
	}
	return result, nil
}

func (r *PostgresContentRepository) SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if msg == nil {
		return errors.New("chat message is nil")
	}
	row := model.ChatMessage{
		ID:            msg.ID,
		RoomCode:      msg.RoomCode,
		ParticipantID: msg.ParticipantID,
		DisplayName:   msg.DisplayName,
		Content:       msg.Content,
		CreatedAt:     createdAt(msg.CreatedAt),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *PostgresContentRepository) DeleteContent(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{
			&model.Stroke{},
			&model.WhiteboardState{},
			&model.TranscriptLine{},
			&model.EditorUpdate{},
			&model.ChatMessage{},
		} {
			if err := tx.Where("room_code = ?", code).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// lockWhiteboardState returns the whiteboard row of a room, creating it on
// first use, locked for the rest of the transaction.
func lockWhiteboardState(tx *gorm.DB, code string) (*model.WhiteboardState, error) {
	seed := model.WhiteboardState{RoomCode: code, UpdatedAt: time.Now().UTC()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var state model.WhiteboardState
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&state, "room_code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func toModelRoom(room *domain.Room) *model.Room {
	var expiresAt *time.Time
	if !room.ExpiresAt.IsZero() {
		t := room.ExpiresAt.UTC()
		expiresAt = &t
	}

	var participants []model.Participant
	if room.Roster != nil {
		list := room.Roster.List()
		participants = make([]model.Participant, 0, len(list))
		for _, p := range list {
			participants = append(participants, model.Participant{
				RoomID:   room.ID,
				ID:       p.ID,
				Name:     p.Name,
				IsHost:   p.IsHost,
				PeerID:   p.PeerID,
				Muted:    p.Muted,
				VideoOff: p.VideoOff,
				JoinedAt: createdAt(p.JoinedAt),
			})
		}
	}

	return &model.Room{
		ID:           room.ID,
		Code:         room.Code,
		SessionID:    room.SessionID,
		HostKey:      room.HostKey,
		Name:         room.Name,
		CreatedAt:    room.CreatedAt.UTC(),
		ExpiresAt:    expiresAt,
		Participants: participants,
	}
}

func toDomainRoom(room *model.Room) *domain.Room {
	var expiresAt time.Time
	if room.ExpiresAt != nil {
		expiresAt = room.ExpiresAt.UTC()
	}

	result := &domain.Room{
		ID:        room.ID,
		Code:      room.Code,
		SessionID: room.SessionID,
		HostKey:   room.HostKey,
		Name:      room.Name,
		CreatedAt: room.CreatedAt.UTC(),
		ExpiresAt: expiresAt,
	}
	result.Init()

	participants := make([]domain.Participant, 0, len(room.Participants))
	for _, p := range room.Participants {
		participants = append(participants, domain.Participant{
			ID:       p.ID,
			Name:     p.Name,
			IsHost:   p.IsHost,
			PeerID:   p.PeerID,
			Muted:    p.Muted,
			VideoOff: p.VideoOff,
			JoinedAt: p.JoinedAt.UTC(),
		})
	}
	result.Roster.Replace(participants)

	return result
}

func toDomainStroke(row *model.Stroke) domain.Stroke {
	return domain.Stroke{
		Seq:       row.Seq,
		Epoch:     row.Epoch,
		AuthorID:  row.AuthorID,
		Color:     row.Color,
		Width:     row.Width,
		Points:    row.Points,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func toDomainTranscriptLine(row *model.TranscriptLine) domain.TranscriptLine {
	return domain.TranscriptLine{
		Seq:       row.Seq,
		AuthorID:  row.AuthorID,
		Command:   row.Command,
		Output:    row.Output,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func toDomainEditorUpdate(row *model.EditorUpdate) domain.EditorUpdate {
	return domain.EditorUpdate{
		Seq:       row.Seq,
		AuthorID:  row.AuthorID,
		Data:      row.Data,
		Snapshot:  row.Snapshot,
		CreatedAt: row.CreatedAt.UTC(),
	}
}
