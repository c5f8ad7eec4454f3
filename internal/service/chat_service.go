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

type chatRepository interface {
	FindByID(ctx context.Context, id string) (*models.Chat, error)
	FindByParticipants(ctx context.Context, teacherID, studentID string) (*models.Chat, error)
	ListForUser(ctx context.Context, userID string) ([]models.Chat, error)
	Create(ctx context.Context, chat *models.Chat) error
	UpdateSubject(ctx context.Context, id, subject string) error
}

type chatUserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context, chatID, viewerID string) (int64, error)
}

// CreateChatRequest opens or resumes a conversation with another user.
type CreateChatRequest struct {
	OtherUserID string `json:"other_user_id" validate:"required"`
	Subject     string `json:"subject" validate:"max=200"`
}

// UpdateChatSubjectRequest relabels an existing conversation.
type UpdateChatSubjectRequest struct {
	Subject string `json:"subject" validate:"required,max=200"`
}

// ChatService orchestrates 1:1 conversations between teachers and
// students.
type ChatService struct {
	repo      chatRepository
	users     chatUserFinder
	unread    unreadCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(repo chatRepository, users chatUserFinder, unread unreadCounter, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{repo: repo, users: users, unread: unread, validator: validate, logger: logger}
}

// CreateOrGet opens a chat between the caller and the other user, or
// returns the existing one untouched. An existing chat keeps its
// subject; the request subject only applies to a brand new chat. The
// unread count in the summary is relative to the caller.
func (s *ChatService) CreateOrGet(ctx context.Context, callerID string, callerRole models.UserRole, req CreateChatRequest) (*models.ChatSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chat payload")
	}
	if req.OtherUserID == callerID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot open a chat with yourself")
	}

	other, err := s.users.FindByID(ctx, req.OtherUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	teacherID, studentID, err := resolvePair(callerID, callerRole, other)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByParticipants(ctx, teacherID, studentID)
	if err == nil {
		count, countErr := s.unread.CountUnread(ctx, existing.ID, callerID)
		if countErr != nil {
			return nil, appErrors.Wrap(countErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread messages")
		}
		return &models.ChatSummary{Chat: *existing, UnreadCount: count}, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chat")
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = models.DefaultChatSubject
	}
	chat := &models.Chat{TeacherID: teacherID, StudentID: studentID, Subject: subject}
	if err := s.repo.Create(ctx, chat); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create chat")
	}
	return &models.ChatSummary{Chat: *chat, IsNew: true}, nil
}

// List returns the caller's chats ordered by latest activity, each with
// the caller's unread count.
func (s *ChatService) List(ctx context.Context, callerID string) ([]models.ChatSummary, error) {
	chats, err := s.repo.ListForUser(ctx, callerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chats")
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		count, err := s.unread.CountUnread(ctx, chat.ID, callerID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread messages")
		}
		summaries = append(summaries, models.ChatSummary{Chat: chat, UnreadCount: count})
	}
	return summaries, nil
}

// Get returns a chat the caller participates in.
func (s *ChatService) Get(ctx context.Context, chatID, callerID string) (*models.Chat, error) {
	chat, err := s.loadForParticipant(ctx, chatID, callerID)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// UpdateSubject relabels a chat on behalf of one of its participants.
func (s *ChatService) UpdateSubject(ctx context.Context, chatID, callerID string, req UpdateChatSubjectRequest) (*models.Chat, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	chat, err := s.loadForParticipant(ctx, chatID, callerID)
	if err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(req.Subject)
	if err := s.repo.UpdateSubject(ctx, chatID, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update chat subject")
	}
	chat.Subject = subject
	return chat, nil
}

func (s *ChatService) loadForParticipant(ctx context.Context, chatID, callerID string) (*models.Chat, error) {
	chat, err := s.repo.FindByID(ctx, chatID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chat not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chat")
	}
	if !chat.HasParticipant(callerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this chat")
	}
	return chat, nil
}

// resolvePair maps the caller and counterpart onto the chat's fixed
// teacher and student slots. Conversations only exist between one
// teacher and one student.
func resolvePair(callerID string, callerRole models.UserRole, other *models.User) (teacherID, studentID string, err error) {
	switch callerRole {
	case models.RoleTeacher:
		if other.Role != models.RoleStudent {
			return "", "", appErrors.Clone(appErrors.ErrValidation, "teachers can only chat with students")
		}
		return callerID, other.ID, nil
	case models.RoleStudent:
		if other.Role != models.RoleTeacher {
			return "", "", appErrors.Clone(appErrors.ErrValidation, "students can only chat with teachers")
		}
		return other.ID, callerID, nil
	default:
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "administrators do not participate in chats")
	}
}
