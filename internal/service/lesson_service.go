package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/notebridge/notebridge-api/internal/models"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
)

type lessonRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListActive(ctx context.Context) ([]models.Lesson, error)
	ListAll(ctx context.Context) ([]models.Lesson, error)
	ListActiveByTeacher(ctx context.Context, teacherID string) ([]models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	SetCancelled(ctx context.Context, id string, cancelled bool) error
	Delete(ctx context.Context, id string) (int64, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type lessonTeacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateLessonRequest represents payload for publishing a lesson.
type CreateLessonRequest struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Instrument      string     `json:"instrument" validate:"required,max=100"`
	Description     string     `json:"description" validate:"max=2000"`
	Location        string     `json:"location" validate:"required,oneof=ONLINE IN_PERSON HYBRID"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	MeetingLink     string     `json:"meeting_link" validate:"omitempty,url,max=500"`
	PhysicalAddress string     `json:"physical_address" validate:"max=500"`
}

// AdminCreateLessonRequest carries a lesson payload together with the
// teacher who will own it, for the administrative create path.
type AdminCreateLessonRequest struct {
	CreateLessonRequest
	TeacherID string `json:"teacher_id" validate:"required,uuid4"`
}

// UpdateLessonRequest represents payload for editing a lesson. TeacherID
// is honored only on the administrative path and reassigns the lesson.
type UpdateLessonRequest struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Instrument      string     `json:"instrument" validate:"required,max=100"`
	Description     string     `json:"description" validate:"max=2000"`
	Location        string     `json:"location" validate:"required,oneof=ONLINE IN_PERSON HYBRID"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	MeetingLink     string     `json:"meeting_link" validate:"omitempty,url,max=500"`
	PhysicalAddress string     `json:"physical_address" validate:"max=500"`
	TeacherID       string     `json:"teacher_id" validate:"omitempty,uuid4"`
}

// LessonService orchestrates catalog operations and keeps the cache
// regions coherent through the LessonCache coordinator.
type LessonService struct {
	repo      lessonRepository
	users     lessonTeacherFinder
	cache     *LessonCache
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs a LessonService.
func NewLessonService(repo lessonRepository, users lessonTeacherFinder, cache *LessonCache, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{repo: repo, users: users, cache: cache, audit: audit, validator: validate, logger: logger}
}

// ListActive returns the public catalog of non-cancelled lessons.
func (s *LessonService) ListActive(ctx context.Context) ([]models.Lesson, error) {
	lessons, err := s.cache.ActiveLessons(ctx, s.repo.ListActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// ListAll returns every lesson including cancelled ones. Administrative
// listings bypass the cache so moderation always sees fresh state.
func (s *LessonService) ListAll(ctx context.Context) ([]models.Lesson, error) {
	lessons, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// ListByTeacher returns a teacher's active lessons.
func (s *LessonService) ListByTeacher(ctx context.Context, teacherID string) ([]models.Lesson, error) {
	lessons, err := s.cache.TeacherLessons(ctx, teacherID, func(ctx context.Context) ([]models.Lesson, error) {
		return s.repo.ListActiveByTeacher(ctx, teacherID)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher lessons")
	}
	return lessons, nil
}

// Get returns a lesson by id.
func (s *LessonService) Get(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.cache.Lesson(ctx, id, func(ctx context.Context) (*models.Lesson, error) {
		return s.repo.FindByID(ctx, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// Create publishes a new lesson owned by the acting teacher.
func (s *LessonService) Create(ctx context.Context, teacherID string, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	return s.create(ctx, teacherID, teacherID, req)
}

// CreateAsAdmin publishes a lesson on behalf of a teacher. The target
// user must exist and hold the teacher role.
func (s *LessonService) CreateAsAdmin(ctx context.Context, adminID, teacherID string, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if strings.TrimSpace(teacherID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}

	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lessons can only be assigned to teachers")
	}

	return s.create(ctx, adminID, teacherID, req)
}

func (s *LessonService) create(ctx context.Context, actorID, teacherID string, req CreateLessonRequest) (*models.Lesson, error) {
	lesson := &models.Lesson{
		TeacherID:       teacherID,
		Title:           strings.TrimSpace(req.Title),
		Instrument:      strings.TrimSpace(req.Instrument),
		Description:     strings.TrimSpace(req.Description),
		Location:        models.LessonLocation(req.Location),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		MeetingLink:     strings.TrimSpace(req.MeetingLink),
		PhysicalAddress: strings.TrimSpace(req.PhysicalAddress),
	}

	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	s.cache.InvalidateAfterCreate(ctx, teacherID)
	s.recordAudit(ctx, actorID, models.AuditActionLessonCreate, lesson.ID)
	return lesson, nil
}

// Update edits a lesson on behalf of its owning teacher.
func (s *LessonService) Update(ctx context.Context, teacherID, lessonID string, req UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson, err := s.loadOwned(ctx, teacherID, lessonID)
	if err != nil {
		return nil, err
	}

	s.applyUpdate(lesson, req)
	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}

	s.cache.InvalidateAfterChange(ctx, lesson)
	s.recordAudit(ctx, teacherID, models.AuditActionLessonUpdate, lesson.ID)
	return lesson, nil
}

// UpdateAsAdmin edits any lesson and may reassign it to another teacher.
// The broad eviction covers the previous owner's cached listing.
func (s *LessonService) UpdateAsAdmin(ctx context.Context, adminID, lessonID string, req UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson, err := s.load(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	s.applyUpdate(lesson, req)
	if req.TeacherID != "" {
		lesson.TeacherID = req.TeacherID
	}
	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}

	s.cache.InvalidateBroad(ctx, lesson)
	s.recordAudit(ctx, adminID, models.AuditActionLessonUpdate, lesson.ID)
	return lesson, nil
}

// Cancel soft-deletes a lesson on behalf of its owning teacher. Repeat
// cancels are no-ops.
func (s *LessonService) Cancel(ctx context.Context, teacherID, lessonID string) (*models.Lesson, error) {
	return s.setCancelledOwned(ctx, teacherID, lessonID, true)
}

// Reactivate restores a cancelled lesson for its owning teacher.
func (s *LessonService) Reactivate(ctx context.Context, teacherID, lessonID string) (*models.Lesson, error) {
	return s.setCancelledOwned(ctx, teacherID, lessonID, false)
}

// CancelAsAdmin soft-deletes any lesson.
func (s *LessonService) CancelAsAdmin(ctx context.Context, adminID, lessonID string) (*models.Lesson, error) {
	return s.setCancelledAdmin(ctx, adminID, lessonID, true)
}

// ReactivateAsAdmin restores any cancelled lesson.
func (s *LessonService) ReactivateAsAdmin(ctx context.Context, adminID, lessonID string) (*models.Lesson, error) {
	return s.setCancelledAdmin(ctx, adminID, lessonID, false)
}

// Delete permanently removes a lesson. Only administrators reach this
// path; teachers cancel instead.
func (s *LessonService) Delete(ctx context.Context, adminID, lessonID string) error {
	affected, err := s.repo.Delete(ctx, lessonID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}

	s.cache.InvalidateAfterDelete(ctx, lessonID)
	s.recordAudit(ctx, adminID, models.AuditActionLessonDelete, lessonID)
	return nil
}

func (s *LessonService) setCancelledOwned(ctx context.Context, teacherID, lessonID string, cancelled bool) (*models.Lesson, error) {
	lesson, err := s.loadOwned(ctx, teacherID, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Cancelled == cancelled {
		return lesson, nil
	}
	if err := s.repo.SetCancelled(ctx, lessonID, cancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change lesson status")
	}
	lesson.Cancelled = cancelled
	lesson.UpdatedAt = time.Now().UTC()

	s.cache.InvalidateAfterChange(ctx, lesson)
	s.recordAudit(ctx, teacherID, cancelAuditAction(cancelled), lesson.ID)
	return lesson, nil
}

func (s *LessonService) setCancelledAdmin(ctx context.Context, adminID, lessonID string, cancelled bool) (*models.Lesson, error) {
	lesson, err := s.load(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Cancelled == cancelled {
		return lesson, nil
	}
	if err := s.repo.SetCancelled(ctx, lessonID, cancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change lesson status")
	}
	lesson.Cancelled = cancelled
	lesson.UpdatedAt = time.Now().UTC()

	s.cache.InvalidateBroad(ctx, lesson)
	s.recordAudit(ctx, adminID, cancelAuditAction(cancelled), lesson.ID)
	return lesson, nil
}

func (s *LessonService) load(ctx context.Context, lessonID string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, lessonID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

func (s *LessonService) loadOwned(ctx context.Context, teacherID, lessonID string) (*models.Lesson, error) {
	lesson, err := s.load(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson belongs to another teacher")
	}
	return lesson, nil
}

func (s *LessonService) applyUpdate(lesson *models.Lesson, req UpdateLessonRequest) {
	lesson.Title = strings.TrimSpace(req.Title)
	lesson.Instrument = strings.TrimSpace(req.Instrument)
	lesson.Description = strings.TrimSpace(req.Description)
	lesson.Location = models.LessonLocation(req.Location)
	lesson.StartTime = req.StartTime
	lesson.EndTime = req.EndTime
	lesson.StartDate = req.StartDate
	lesson.EndDate = req.EndDate
	lesson.MeetingLink = strings.TrimSpace(req.MeetingLink)
	lesson.PhysicalAddress = strings.TrimSpace(req.PhysicalAddress)
}

func (s *LessonService) recordAudit(ctx context.Context, userID, action, lessonID string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{UserID: &userID, Action: action, Resource: "lesson", ResourceID: &lessonID}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func cancelAuditAction(cancelled bool) string {
	if cancelled {
		return models.AuditActionLessonCancel
	}
	return models.AuditActionLessonReactivate
}
