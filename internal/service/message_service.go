package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/notebridge/notebridge-api/internal/models"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
)

type messageRepository interface {
	CreateInChat(ctx context.Context, message *models.Message) error
	ListByChat(ctx context.Context, chatID string, page, size int) ([]models.Message, int, error)
	ListRecent(ctx context.Context, chatID string, limit int) ([]models.Message, error)
	CountUnread(ctx context.Context, chatID, viewerID string) (int64, error)
	CountTotalUnread(ctx context.Context, viewerID string) (int64, error)
	MarkAllRead(ctx context.Context, chatID, viewerID string) (int64, error)
}

type messageChatFinder interface {
	FindByID(ctx context.Context, id string) (*models.Chat, error)
}

// SendMessageRequest carries a new message body.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// MessageService owns message flow and the per-viewer read state of
// each chat.
type MessageService struct {
	repo      messageRepository
	chats     messageChatFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMessageService constructs a MessageService.
func NewMessageService(repo messageRepository, chats messageChatFinder, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, chats: chats, validator: validate, logger: logger}
}

// Send appends a message to the chat. New messages start unread for the
// recipient and the chat's activity timestamp advances with the send.
func (s *MessageService) Send(ctx context.Context, chatID, senderID string, req SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message content is empty")
	}

	if _, err := s.requireParticipant(ctx, chatID, senderID); err != nil {
		return nil, err
	}

	message := &models.Message{ChatID: chatID, SenderID: senderID, Content: content}
	if err := s.repo.CreateInChat(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	return message, nil
}

// List returns a page of the chat's messages, newest first.
func (s *MessageService) List(ctx context.Context, chatID, viewerID string, page, size int) ([]models.Message, *models.Pagination, error) {
	if _, err := s.requireParticipant(ctx, chatID, viewerID); err != nil {
		return nil, nil, err
	}

	messages, total, err := s.repo.ListByChat(ctx, chatID, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}

	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	pagination := &models.Pagination{Page: page + 1, PageSize: size, TotalCount: total}
	return messages, pagination, nil
}

// Recent returns the chat's latest messages for the conversation view.
func (s *MessageService) Recent(ctx context.Context, chatID, viewerID string) ([]models.Message, error) {
	if _, err := s.requireParticipant(ctx, chatID, viewerID); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListRecent(ctx, chatID, 50)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, nil
}

// MarkAllRead clears the viewer's unread state in the chat and reports
// how many messages it touched. Calling it twice is harmless.
func (s *MessageService) MarkAllRead(ctx context.Context, chatID, viewerID string) (int64, error) {
	if _, err := s.requireParticipant(ctx, chatID, viewerID); err != nil {
		return 0, err
	}

	affected, err := s.repo.MarkAllRead(ctx, chatID, viewerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark messages read")
	}
	return affected, nil
}

// UnreadCount returns how many messages in the chat the viewer has not
// read. The viewer's own messages never count.
func (s *MessageService) UnreadCount(ctx context.Context, chatID, viewerID string) (int64, error) {
	if _, err := s.requireParticipant(ctx, chatID, viewerID); err != nil {
		return 0, err
	}

	count, err := s.repo.CountUnread(ctx, chatID, viewerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread messages")
	}
	return count, nil
}

// TotalUnread sums the viewer's unread messages across all their chats.
func (s *MessageService) TotalUnread(ctx context.Context, viewerID string) (int64, error) {
	count, err := s.repo.CountTotalUnread(ctx, viewerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread messages")
	}
	return count, nil
}

func (s *MessageService) requireParticipant(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chat not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chat")
	}
	if !chat.HasParticipant(userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this chat")
	}
	return chat, nil
}
