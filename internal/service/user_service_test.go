package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebridge/notebridge-api/internal/models"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]*models.User
	audits  []*models.AuditLog
	deleted []string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{
		"admin-1":   {ID: "admin-1", Role: models.RoleAdmin, FirstName: "Ada", LastName: "Root", Active: true},
		"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, FirstName: "Tom", LastName: "Keys", Active: true},
		"student-1": {ID: "student-1", Role: models.RoleStudent, FirstName: "Sue", LastName: "Note", Active: true},
	}}
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, user := range m.users {
		out = append(out, *user)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) (int64, error) {
	if _, ok := m.users[id]; !ok {
		return 0, nil
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return 1, nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func TestUserServiceGetUnknownNotFound(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateProfileTrimsFields(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.UpdateProfile(context.Background(), "student-1", UpdateProfileRequest{
		FirstName:   "  Susan ",
		LastName:    "Note",
		Bio:         " loves violin ",
		PhoneNumber: "+31 6 1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "Susan", user.FirstName)
	assert.Equal(t, "loves violin", user.Bio)
	assert.Equal(t, "Susan", repo.users["student-1"].FirstName)
}

func TestUserServiceUpdateProfileRejectsEmptyName(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)

	_, err := svc.UpdateProfile(context.Background(), "student-1", UpdateProfileRequest{LastName: "Note"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceAdminUpdateChangesRoleAndActive(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	role := "TEACHER"
	active := false
	user, err := svc.AdminUpdate(context.Background(), "admin-1", "student-1", AdminUpdateUserRequest{
		FirstName: "Sue",
		LastName:  "Note",
		Role:      &role,
		Active:    &active,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.False(t, user.Active)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionUserUpdate, repo.audits[0].Action)
}

func TestUserServiceAdminUpdateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)

	role := "SUPERUSER"
	_, err := svc.AdminUpdate(context.Background(), "admin-1", "student-1", AdminUpdateUserRequest{
		FirstName: "Sue",
		LastName:  "Note",
		Role:      &role,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteSelfRejected(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	err := svc.Delete(context.Background(), "admin-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Contains(t, repo.users, "admin-1")
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	err := svc.Delete(context.Background(), "admin-1", "student-1")
	require.NoError(t, err)
	assert.NotContains(t, repo.users, "student-1")
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionUserDelete, repo.audits[0].Action)

	err = svc.Delete(context.Background(), "admin-1", "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
