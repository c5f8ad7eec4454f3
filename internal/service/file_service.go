package service

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notebridge/notebridge-api/internal/models"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
	"github.com/notebridge/notebridge-api/pkg/storage"
)

type profileURLSetter interface {
	SetProfileURL(ctx context.Context, id string, url *string) error
}

type lessonImageSetter interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	SetImageURL(ctx context.Context, id string, url *string) error
}

// FileConfig bounds what the upload endpoints accept.
type FileConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// FileService stores uploaded media and keeps the owning records
// consistent with blob storage. When the database write after a
// successful upload fails, the stored object is deleted again so no
// orphan blobs accumulate.
type FileService struct {
	store   storage.ObjectStore
	users   profileURLSetter
	lessons lessonImageSetter
	cache   *LessonCache
	config  FileConfig
	logger  *zap.Logger
}

// NewFileService constructs a FileService.
func NewFileService(store storage.ObjectStore, users profileURLSetter, lessons lessonImageSetter, cache *LessonCache, config FileConfig, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{store: store, users: users, lessons: lessons, cache: cache, config: config, logger: logger}
}

// UploadProfilePicture stores the image and points the user record at it.
func (s *FileService) UploadProfilePicture(ctx context.Context, userID, filename, contentType string, data []byte) (string, error) {
	if err := s.validateUpload(contentType, int64(len(data))); err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("profiles/%s/%s%s", userID, uuid.NewString(), extensionOf(filename))
	if err := s.store.Create(objectName, data); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	url := s.store.PublicURL(objectName)
	if err := s.users.SetProfileURL(ctx, userID, &url); err != nil {
		s.compensate(objectName)
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile picture")
	}
	return url, nil
}

// DeleteProfilePicture clears the user's profile picture reference.
func (s *FileService) DeleteProfilePicture(ctx context.Context, userID string) error {
	if err := s.users.SetProfileURL(ctx, userID, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear profile picture")
	}
	return nil
}

// UploadLessonImage stores the image and attaches it to a lesson the
// caller owns. Administrators may pass any lesson. The lesson's cache
// regions refresh so readers see the new image immediately.
func (s *FileService) UploadLessonImage(ctx context.Context, callerID string, callerRole models.UserRole, lessonID, filename, contentType string, data []byte) (string, error) {
	if err := s.validateUpload(contentType, int64(len(data))); err != nil {
		return "", err
	}

	lesson, err := s.loadLesson(ctx, callerID, callerRole, lessonID)
	if err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("lessons/%s/%s%s", lessonID, uuid.NewString(), extensionOf(filename))
	if err := s.store.Create(objectName, data); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	url := s.store.PublicURL(objectName)
	if err := s.lessons.SetImageURL(ctx, lessonID, &url); err != nil {
		s.compensate(objectName)
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson image")
	}

	lesson.ImageURL = &url
	s.cache.InvalidateAfterChange(ctx, lesson)
	return url, nil
}

// DeleteLessonImage detaches the image from the lesson.
func (s *FileService) DeleteLessonImage(ctx context.Context, callerID string, callerRole models.UserRole, lessonID string) error {
	lesson, err := s.loadLesson(ctx, callerID, callerRole, lessonID)
	if err != nil {
		return err
	}

	if err := s.lessons.SetImageURL(ctx, lessonID, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear lesson image")
	}

	lesson.ImageURL = nil
	s.cache.InvalidateAfterChange(ctx, lesson)
	return nil
}

func (s *FileService) loadLesson(ctx context.Context, callerID string, callerRole models.UserRole, lessonID string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if callerRole != models.RoleAdmin && lesson.TeacherID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
	}
	return lesson, nil
}

func (s *FileService) validateUpload(contentType string, size int64) error {
	if size == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if s.config.MaxFileSizeBytes > 0 && size > s.config.MaxFileSizeBytes {
		return appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum size")
	}
	if len(s.config.AllowedMIMEs) == 0 {
		return nil
	}
	mime := strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range s.config.AllowedMIMEs {
		if mime == strings.ToLower(allowed) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "file type is not allowed")
}

func (s *FileService) compensate(objectName string) {
	if err := s.store.Delete(objectName); err != nil {
		s.logger.Warn("failed to delete orphaned object", zap.String("object", objectName), zap.Error(err))
	}
}

func extensionOf(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	default:
		return ""
	}
}
