package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/notebridge/notebridge-api/internal/models"
)

const messageColumns = "id, chat_id, sender_id, content, sent_at, is_read"

// MessageRepository provides database access for messages and owns the
// read-state SQL: unread counts and the bulk mark-read update are derived
// from message rows, there is no separate read-state table.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new instance of MessageRepository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreateInChat inserts the message and advances the chat's
// last_message_at inside a single transaction, so a reader never sees a
// message whose chat ordering timestamp lags behind it.
func (r *MessageRepository) CreateInChat(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin send transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertQuery = `INSERT INTO messages (id, chat_id, sender_id, content, sent_at, is_read) VALUES (:id, :chat_id, :sender_id, :content, :sent_at, :is_read)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, message); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	const touchQuery = `UPDATE chats SET last_message_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, touchQuery, message.ChatID, message.SentAt); err != nil {
		return fmt.Errorf("advance chat last_message_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit send transaction: %w", err)
	}
	return nil
}

// ListByChat returns a page of the chat's messages, newest first, with
// the total message count.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID string, page, size int) ([]models.Message, int, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := page * size

	listQuery := fmt.Sprintf("SELECT %s FROM messages WHERE chat_id = $1 ORDER BY sent_at DESC LIMIT %d OFFSET %d", messageColumns, size, offset)
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, listQuery, chatID); err != nil {
		return nil, 0, fmt.Errorf("list chat messages: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM messages WHERE chat_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, chatID); err != nil {
		return nil, 0, fmt.Errorf("count chat messages: %w", err)
	}

	return messages, total, nil
}

// ListRecent returns the chat's latest messages up to limit, newest first.
func (r *MessageRepository) ListRecent(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM messages WHERE chat_id = $1 ORDER BY sent_at DESC LIMIT %d", messageColumns, limit)
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, chatID); err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	return messages, nil
}

// CountUnread counts messages in the chat the viewer has not read. The
// sender predicate keeps a participant's own messages out of their count.
func (r *MessageRepository) CountUnread(ctx context.Context, chatID, viewerID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE chat_id = $1 AND sender_id <> $2 AND is_read = FALSE`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, chatID, viewerID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}

// CountTotalUnread sums unread messages across every chat the viewer
// participates in, as teacher or student.
func (r *MessageRepository) CountTotalUnread(ctx context.Context, viewerID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM messages m JOIN chats c ON c.id = m.chat_id WHERE (c.teacher_id = $1 OR c.student_id = $1) AND m.sender_id <> $1 AND m.is_read = FALSE`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, viewerID); err != nil {
		return 0, fmt.Errorf("count total unread messages: %w", err)
	}
	return count, nil
}

// MarkAllRead flags every message the viewer has not read in the chat and
// returns the number of rows affected. Idempotent: a second call matches
// nothing and reports zero.
func (r *MessageRepository) MarkAllRead(ctx context.Context, chatID, viewerID string) (int64, error) {
	const query = `UPDATE messages SET is_read = TRUE WHERE chat_id = $1 AND sender_id <> $2 AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, query, chatID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark messages read rows affected: %w", err)
	}
	return affected, nil
}
