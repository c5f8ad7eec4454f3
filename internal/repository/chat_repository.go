package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/notebridge/notebridge-api/internal/models"
)

const chatColumns = "id, teacher_id, student_id, subject, created_at, last_message_at"

// ChatRepository provides database access for 1:1 conversations.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// FindByID returns a chat by identifier.
func (r *ChatRepository) FindByID(ctx context.Context, id string) (*models.Chat, error) {
	query := fmt.Sprintf("SELECT %s FROM chats WHERE id = $1 LIMIT 1", chatColumns)
	var chat models.Chat
	if err := r.db.GetContext(ctx, &chat, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find chat by id: %w", err)
	}
	return &chat, nil
}

// FindByParticipants returns the chat for the (teacher, student) pair.
// The pair is unique: the chats table carries a unique constraint on it.
func (r *ChatRepository) FindByParticipants(ctx context.Context, teacherID, studentID string) (*models.Chat, error) {
	query := fmt.Sprintf("SELECT %s FROM chats WHERE teacher_id = $1 AND student_id = $2 LIMIT 1", chatColumns)
	var chat models.Chat
	if err := r.db.GetContext(ctx, &chat, query, teacherID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find chat by participants: %w", err)
	}
	return &chat, nil
}

// ListForUser returns every chat the user participates in, most recently
// active first.
func (r *ChatRepository) ListForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	query := fmt.Sprintf("SELECT %s FROM chats WHERE teacher_id = $1 OR student_id = $1 ORDER BY last_message_at DESC", chatColumns)
	var chats []models.Chat
	if err := r.db.SelectContext(ctx, &chats, query, userID); err != nil {
		return nil, fmt.Errorf("list chats for user: %w", err)
	}
	return chats, nil
}

// Create inserts a new chat.
func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	if chat.LastMessageAt.IsZero() {
		chat.LastMessageAt = now
	}

	const query = `INSERT INTO chats (id, teacher_id, student_id, subject, created_at, last_message_at) VALUES (:id, :teacher_id, :student_id, :subject, :created_at, :last_message_at)`
	if _, err := r.db.NamedExecContext(ctx, query, chat); err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

// UpdateSubject replaces the chat's subject label.
func (r *ChatRepository) UpdateSubject(ctx context.Context, id, subject string) error {
	const query = `UPDATE chats SET subject = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, subject); err != nil {
		return fmt.Errorf("update chat subject: %w", err)
	}
	return nil
}
