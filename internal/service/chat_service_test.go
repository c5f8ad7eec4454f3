package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notebridge/notebridge-api/internal/models"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
)

type mockChatRepo struct {
	items map[string]*models.Chat
}

func newMockChatRepo(chats ...models.Chat) *mockChatRepo {
	repo := &mockChatRepo{items: make(map[string]*models.Chat)}
	for i := range chats {
		cp := chats[i]
		repo.items[cp.ID] = &cp
	}
	return repo
}

func (m *mockChatRepo) FindByID(ctx context.Context, id string) (*models.Chat, error) {
	if chat, ok := m.items[id]; ok {
		cp := *chat
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChatRepo) FindByParticipants(ctx context.Context, teacherID, studentID string) (*models.Chat, error) {
	for _, chat := range m.items {
		if chat.TeacherID == teacherID && chat.StudentID == studentID {
			cp := *chat
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockChatRepo) ListForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	var out []models.Chat
	for _, chat := range m.items {
		if chat.HasParticipant(userID) {
			out = append(out, *chat)
		}
	}
	return out, nil
}

func (m *mockChatRepo) Create(ctx context.Context, chat *models.Chat) error {
	if chat.ID == "" {
		chat.ID = "generated"
	}
	chat.CreatedAt = time.Now()
	chat.LastMessageAt = chat.CreatedAt
	cp := *chat
	m.items[chat.ID] = &cp
	return nil
}

func (m *mockChatRepo) UpdateSubject(ctx context.Context, id, subject string) error {
	if chat, ok := m.items[id]; ok {
		chat.Subject = subject
	}
	return nil
}

type mockUserFinder struct {
	users map[string]*models.User
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockUnreadCounter struct {
	counts map[string]int64
}

func (m *mockUnreadCounter) CountUnread(ctx context.Context, chatID, viewerID string) (int64, error) {
	return m.counts[chatID+"/"+viewerID], nil
}

func newChatServiceFixture(chats ...models.Chat) (*ChatService, *mockChatRepo, *mockUnreadCounter) {
	repo := newMockChatRepo(chats...)
	users := &mockUserFinder{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, Active: true},
		"student-1": {ID: "student-1", Role: models.RoleStudent, Active: true},
		"student-2": {ID: "student-2", Role: models.RoleStudent, Active: true},
	}}
	unread := &mockUnreadCounter{counts: make(map[string]int64)}
	svc := NewChatService(repo, users, unread, nil, zap.NewNop())
	return svc, repo, unread
}

func sampleChat(id string) models.Chat {
	return models.Chat{
		ID:            id,
		TeacherID:     "teacher-1",
		StudentID:     "student-1",
		Subject:       "Scales homework",
		CreatedAt:     time.Now().Add(-time.Hour),
		LastMessageAt: time.Now().Add(-time.Minute),
	}
}

func TestChatServiceCreateOrGetCreatesWithDefaultSubject(t *testing.T) {
	svc, repo, _ := newChatServiceFixture()

	summary, err := svc.CreateOrGet(context.Background(), "student-1", models.RoleStudent, CreateChatRequest{OtherUserID: "teacher-1"})
	require.NoError(t, err)
	assert.True(t, summary.IsNew)
	assert.Equal(t, models.DefaultChatSubject, summary.Subject)
	assert.Equal(t, "teacher-1", summary.TeacherID)
	assert.Equal(t, "student-1", summary.StudentID)
	assert.Len(t, repo.items, 1)
}

func TestChatServiceCreateOrGetPreservesExistingSubject(t *testing.T) {
	svc, repo, unread := newChatServiceFixture(sampleChat("chat-1"))
	unread.counts["chat-1/student-1"] = 4

	summary, err := svc.CreateOrGet(context.Background(), "student-1", models.RoleStudent, CreateChatRequest{OtherUserID: "teacher-1", Subject: "Ignored"})
	require.NoError(t, err)
	assert.False(t, summary.IsNew)
	assert.Equal(t, "Scales homework", summary.Subject)
	assert.Equal(t, int64(4), summary.UnreadCount)
	assert.Len(t, repo.items, 1)
}

func TestChatServiceCreateOrGetRejectsSelf(t *testing.T) {
	svc, _, _ := newChatServiceFixture()

	_, err := svc.CreateOrGet(context.Background(), "student-1", models.RoleStudent, CreateChatRequest{OtherUserID: "student-1"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestChatServiceCreateOrGetRejectsSameRolePair(t *testing.T) {
	svc, _, _ := newChatServiceFixture()

	_, err := svc.CreateOrGet(context.Background(), "student-1", models.RoleStudent, CreateChatRequest{OtherUserID: "student-2"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestChatServiceCreateOrGetRejectsAdmins(t *testing.T) {
	svc, _, _ := newChatServiceFixture()

	_, err := svc.CreateOrGet(context.Background(), "admin-1", models.RoleAdmin, CreateChatRequest{OtherUserID: "student-1"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestChatServiceListIncludesUnreadCounts(t *testing.T) {
	svc, _, unread := newChatServiceFixture(sampleChat("chat-1"))
	unread.counts["chat-1/teacher-1"] = 2

	summaries, err := svc.List(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(2), summaries[0].UnreadCount)
}

func TestChatServiceGetForbiddenForOutsider(t *testing.T) {
	svc, _, _ := newChatServiceFixture(sampleChat("chat-1"))

	_, err := svc.Get(context.Background(), "chat-1", "student-2")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestChatServiceUpdateSubject(t *testing.T) {
	svc, repo, _ := newChatServiceFixture(sampleChat("chat-1"))

	chat, err := svc.UpdateSubject(context.Background(), "chat-1", "teacher-1", UpdateChatSubjectRequest{Subject: "Recital prep"})
	require.NoError(t, err)
	assert.Equal(t, "Recital prep", chat.Subject)
	assert.Equal(t, "Recital prep", repo.items["chat-1"].Subject)
}
