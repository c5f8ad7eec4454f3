package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notebridge/notebridge-api/internal/models"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
)

type mockObjectStore struct {
	objects map[string][]byte
	deleted []string
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{objects: make(map[string][]byte)}
}

func (m *mockObjectStore) Create(objectName string, data []byte) error {
	m.objects[objectName] = data
	return nil
}

func (m *mockObjectStore) Open(objectName string) (io.ReadCloser, error) {
	data, ok := m.objects[objectName]
	if !ok {
		return nil, errors.New("object not found: " + objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockObjectStore) Delete(objectName string) error {
	delete(m.objects, objectName)
	m.deleted = append(m.deleted, objectName)
	return nil
}

func (m *mockObjectStore) Exists(objectName string) (bool, error) {
	_, ok := m.objects[objectName]
	return ok, nil
}

func (m *mockObjectStore) PublicURL(objectName string) string {
	return "http://localhost/media/" + objectName
}

type mockProfileSetter struct {
	urls map[string]*string
	err  error
}

func (m *mockProfileSetter) SetProfileURL(ctx context.Context, id string, url *string) error {
	if m.err != nil {
		return m.err
	}
	if m.urls == nil {
		m.urls = make(map[string]*string)
	}
	m.urls[id] = url
	return nil
}

type mockLessonImages struct {
	repo    *mockLessonRepo
	err     error
	findErr error
}

func (m *mockLessonImages) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.repo.FindByID(ctx, id)
}

func (m *mockLessonImages) SetImageURL(ctx context.Context, id string, url *string) error {
	if m.err != nil {
		return m.err
	}
	if lesson, ok := m.repo.items[id]; ok {
		lesson.ImageURL = url
	}
	return nil
}

func newFileServiceFixture(lessons *mockLessonImages) (*FileService, *mockObjectStore, *mockProfileSetter) {
	store := newMockObjectStore()
	users := &mockProfileSetter{}
	cache, _ := newTestLessonCache()
	cfg := FileConfig{MaxFileSizeBytes: 1024, AllowedMIMEs: []string{"image/png", "image/jpeg"}}
	svc := NewFileService(store, users, lessons, cache, cfg, zap.NewNop())
	return svc, store, users
}

func TestFileServiceUploadProfilePicture(t *testing.T) {
	svc, store, users := newFileServiceFixture(&mockLessonImages{repo: newMockLessonRepo()})

	url, err := svc.UploadProfilePicture(context.Background(), "user-1", "avatar.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Contains(t, url, "profiles/user-1/")
	require.NotNil(t, users.urls["user-1"])
	assert.Equal(t, url, *users.urls["user-1"])
	assert.Len(t, store.objects, 1)
}

func TestFileServiceUploadCompensatesOnDBFailure(t *testing.T) {
	svc, store, users := newFileServiceFixture(&mockLessonImages{repo: newMockLessonRepo()})
	users.err = errors.New("connection reset")

	_, err := svc.UploadProfilePicture(context.Background(), "user-1", "avatar.png", "image/png", []byte("png-bytes"))
	require.Error(t, err)
	assert.Empty(t, store.objects)
	assert.Len(t, store.deleted, 1)
}

func TestFileServiceRejectsDisallowedMIME(t *testing.T) {
	svc, store, _ := newFileServiceFixture(&mockLessonImages{repo: newMockLessonRepo()})

	_, err := svc.UploadProfilePicture(context.Background(), "user-1", "malware.exe", "application/octet-stream", []byte("bytes"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, store.objects)
}

func TestFileServiceRejectsOversizedFile(t *testing.T) {
	svc, _, _ := newFileServiceFixture(&mockLessonImages{repo: newMockLessonRepo()})

	_, err := svc.UploadProfilePicture(context.Background(), "user-1", "big.png", "image/png", make([]byte, 2048))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestFileServiceLessonImageOwnershipEnforced(t *testing.T) {
	lessons := &mockLessonImages{repo: newMockLessonRepo(sampleLesson("lesson-1", "teacher-1"))}
	svc, _, _ := newFileServiceFixture(lessons)

	_, err := svc.UploadLessonImage(context.Background(), "teacher-2", models.RoleTeacher, "lesson-1", "cover.png", "image/png", []byte("bytes"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestFileServiceLessonImageMissingReturnsNotFound(t *testing.T) {
	lessons := &mockLessonImages{repo: newMockLessonRepo()}
	svc, _, _ := newFileServiceFixture(lessons)

	_, err := svc.UploadLessonImage(context.Background(), "teacher-1", models.RoleTeacher, "missing", "cover.png", "image/png", []byte("bytes"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestFileServiceLessonImageRepoFailureIsInternal(t *testing.T) {
	lessons := &mockLessonImages{repo: newMockLessonRepo(), findErr: errors.New("connection refused")}
	svc, store, _ := newFileServiceFixture(lessons)

	_, err := svc.UploadLessonImage(context.Background(), "teacher-1", models.RoleTeacher, "lesson-1", "cover.png", "image/png", []byte("bytes"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.Empty(t, store.objects)
}

func TestFileServiceLessonImageAdminBypassesOwnership(t *testing.T) {
	lessons := &mockLessonImages{repo: newMockLessonRepo(sampleLesson("lesson-1", "teacher-1"))}
	svc, _, _ := newFileServiceFixture(lessons)

	url, err := svc.UploadLessonImage(context.Background(), "admin-1", models.RoleAdmin, "lesson-1", "cover.png", "image/png", []byte("bytes"))
	require.NoError(t, err)
	require.NotNil(t, lessons.repo.items["lesson-1"].ImageURL)
	assert.Equal(t, url, *lessons.repo.items["lesson-1"].ImageURL)
}

func TestFileServiceDeleteLessonImage(t *testing.T) {
	lesson := sampleLesson("lesson-1", "teacher-1")
	img := "http://localhost/media/lessons/lesson-1/old.png"
	lesson.ImageURL = &img
	lessons := &mockLessonImages{repo: newMockLessonRepo(lesson)}
	svc, _, _ := newFileServiceFixture(lessons)

	err := svc.DeleteLessonImage(context.Background(), "teacher-1", models.RoleTeacher, "lesson-1")
	require.NoError(t, err)
	assert.Nil(t, lessons.repo.items["lesson-1"].ImageURL)
}
