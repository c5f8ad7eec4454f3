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
	"golang.org/x/crypto/bcrypt"

	"github.com/notebridge/notebridge-api/internal/models"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
)

type mockAuthRepo struct {
	users   map[string]*models.User
	byEmail map[string]string
	tokens  map[string]*models.RefreshToken
	revoked []string
	audits  []models.AuditLog
}

func newMockAuthRepo(users ...models.User) *mockAuthRepo {
	repo := &mockAuthRepo{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]string),
		tokens:  make(map[string]*models.RefreshToken),
	}
	for i := range users {
		cp := users[i]
		repo.users[cp.ID] = &cp
		repo.byEmail[cp.Email] = cp.ID
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if id, ok := m.byEmail[email]; ok {
		cp := *m.users[id]
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated"
	}
	cp := *user
	m.users[user.ID] = &cp
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if user, ok := m.users[id]; ok {
		user.LastLogin = &ts
	}
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if user, ok := m.users[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, token := range m.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	cp := *token
	m.tokens[token.Token] = &cp
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := m.tokens[token]; ok {
		cp := *stored
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

func authTestConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "notebridge",
	}
}

func hashedPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func activeTeacher(t *testing.T) models.User {
	return models.User{
		ID:           "teacher-1",
		Email:        "anna@example.com",
		PasswordHash: hashedPassword(t, "secret123"),
		FirstName:    "Anna",
		LastName:     "Keys",
		Role:         models.RoleTeacher,
		Active:       true,
	}
}

func TestAuthServiceRegisterIssuesSession(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, zap.NewNop(), authTestConfig())

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "Ben@Example.com",
		Password:  "secret123",
		Role:      models.RoleStudent,
		FirstName: "Ben",
		LastName:  "Bow",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleStudent, resp.User.Role)

	// Email is stored lower cased.
	_, ok := repo.byEmail["ben@example.com"]
	assert.True(t, ok)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo(activeTeacher(t))
	svc := NewAuthService(repo, nil, zap.NewNop(), authTestConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "anna@example.com",
		Password:  "secret123",
		Role:      models.RoleTeacher,
		FirstName: "Anna",
		LastName:  "Keys",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo(activeTeacher(t))
	svc := NewAuthService(repo, nil, zap.NewNop(), authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "wrong"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeTeacher(t)
	user.Active = false
	repo := newMockAuthRepo(user)
	svc := NewAuthService(repo, nil, zap.NewNop(), authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "secret123"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceLoginAndValidateToken(t *testing.T) {
	repo := newMockAuthRepo(activeTeacher(t))
	svc := NewAuthService(repo, nil, zap.NewNop(), authTestConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "secret123"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo(activeTeacher(t))
	svc := NewAuthService(repo, nil, zap.NewNop(), authTestConfig())

	session, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	repo := newMockAuthRepo(activeTeacher(t))
	svc := NewAuthService(repo, nil, zap.NewNop(), authTestConfig())

	err := svc.ChangePassword(context.Background(), "teacher-1", models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "evenmoresecret",
	})
	require.NoError(t, err)
	assert.Contains(t, repo.revoked, "teacher-1")

	err = bcrypt.CompareHashAndPassword([]byte(repo.users["teacher-1"].PasswordHash), []byte("evenmoresecret"))
	assert.NoError(t, err)
}
