package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebridge/notebridge-api/internal/middleware"
	"github.com/notebridge/notebridge-api/internal/models"
	"github.com/notebridge/notebridge-api/internal/service"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
)

type chatRepoStub struct {
	byPair  map[string]*models.Chat
	created []*models.Chat
}

func pairKey(teacherID, studentID string) string {
	return teacherID + "/" + studentID
}

func (s *chatRepoStub) FindByID(ctx context.Context, id string) (*models.Chat, error) {
	for _, chat := range s.byPair {
		if chat.ID == id {
			return chat, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *chatRepoStub) FindByParticipants(ctx context.Context, teacherID, studentID string) (*models.Chat, error) {
	chat, ok := s.byPair[pairKey(teacherID, studentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return chat, nil
}

func (s *chatRepoStub) ListForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	for _, chat := range s.byPair {
		if chat.HasParticipant(userID) {
			chats = append(chats, *chat)
		}
	}
	return chats, nil
}

func (s *chatRepoStub) Create(ctx context.Context, chat *models.Chat) error {
	if s.byPair == nil {
		s.byPair = make(map[string]*models.Chat)
	}
	s.byPair[pairKey(chat.TeacherID, chat.StudentID)] = chat
	s.created = append(s.created, chat)
	return nil
}

func (s *chatRepoStub) UpdateSubject(ctx context.Context, id, subject string) error {
	for _, chat := range s.byPair {
		if chat.ID == id {
			chat.Subject = subject
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "chat not found")
}

type userFinderStub struct {
	users map[string]*models.User
}

func (s *userFinderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type unreadStub struct {
	counts map[string]int64
}

func (s *unreadStub) CountUnread(ctx context.Context, chatID, viewerID string) (int64, error) {
	return s.counts[chatID+"/"+viewerID], nil
}

func newChatHandlerFixture(repo *chatRepoStub, unread *unreadStub) *ChatHandler {
	users := &userFinderStub{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher},
		"student-1": {ID: "student-1", Role: models.RoleStudent},
	}}
	if unread == nil {
		unread = &unreadStub{}
	}
	svc := service.NewChatService(repo, users, unread, nil, nil)
	return NewChatHandler(svc)
}

func chatTestContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestChatHandlerCreateReturns201ForNewChat(t *testing.T) {
	repo := &chatRepoStub{byPair: map[string]*models.Chat{}}
	h := newChatHandlerFixture(repo, nil)

	payload, _ := json.Marshal(service.CreateChatRequest{OtherUserID: "teacher-1"})
	c, w := chatTestContext(t, http.MethodPost, "/chats", payload,
		&models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	h.CreateOrGet(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.DefaultChatSubject, repo.created[0].Subject)
}

func TestChatHandlerCreateReturns200ForExistingChat(t *testing.T) {
	repo := &chatRepoStub{byPair: map[string]*models.Chat{
		pairKey("teacher-1", "student-1"): {ID: "chat-1", TeacherID: "teacher-1", StudentID: "student-1", Subject: "Piano"},
	}}
	unread := &unreadStub{counts: map[string]int64{"chat-1/student-1": 2}}
	h := newChatHandlerFixture(repo, unread)

	payload, _ := json.Marshal(service.CreateChatRequest{OtherUserID: "teacher-1", Subject: "ignored"})
	c, w := chatTestContext(t, http.MethodPost, "/chats", payload,
		&models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	h.CreateOrGet(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, repo.created)

	var envelope struct {
		Data models.ChatSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "Piano", envelope.Data.Subject)
	assert.Equal(t, int64(2), envelope.Data.UnreadCount)
}

func TestChatHandlerCreateWithoutClaims(t *testing.T) {
	h := newChatHandlerFixture(&chatRepoStub{}, nil)

	payload, _ := json.Marshal(service.CreateChatRequest{OtherUserID: "teacher-1"})
	c, w := chatTestContext(t, http.MethodPost, "/chats", payload, nil)

	h.CreateOrGet(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatHandlerGetOutsiderForbidden(t *testing.T) {
	repo := &chatRepoStub{byPair: map[string]*models.Chat{
		pairKey("teacher-1", "student-1"): {ID: "chat-1", TeacherID: "teacher-1", StudentID: "student-1"},
	}}
	h := newChatHandlerFixture(repo, nil)

	c, w := chatTestContext(t, http.MethodGet, "/chats/chat-1", nil,
		&models.JWTClaims{UserID: "student-2", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "chat-1"}}

	h.Get(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestChatHandlerUpdateSubject(t *testing.T) {
	repo := &chatRepoStub{byPair: map[string]*models.Chat{
		pairKey("teacher-1", "student-1"): {ID: "chat-1", TeacherID: "teacher-1", StudentID: "student-1", Subject: "Piano"},
	}}
	h := newChatHandlerFixture(repo, nil)

	payload, _ := json.Marshal(service.UpdateChatSubjectRequest{Subject: "Guitar"})
	c, w := chatTestContext(t, http.MethodPut, "/chats/chat-1/subject", payload,
		&models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	c.Params = gin.Params{{Key: "id", Value: "chat-1"}}

	h.UpdateSubject(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Guitar", repo.byPair[pairKey("teacher-1", "student-1")].Subject)
}
