package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/notebridge/notebridge-api/internal/models"
)

const lessonColumns = "id, teacher_id, title, instrument, description, image_url, location, start_time, end_time, start_date, end_date, meeting_link, physical_address, cancelled, created_at, updated_at"

// LessonRepository provides database access for the lesson catalog.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new instance of LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// FindByID returns a lesson by identifier, cancelled or not.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1 LIMIT 1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson by id: %w", err)
	}
	return &lesson, nil
}

// ListActive returns every non-cancelled lesson, newest first.
func (r *LessonRepository) ListActive(ctx context.Context) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE cancelled = FALSE ORDER BY created_at DESC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query); err != nil {
		return nil, fmt.Errorf("list active lessons: %w", err)
	}
	return lessons, nil
}

// ListAll returns every lesson including cancelled ones, newest first.
func (r *LessonRepository) ListAll(ctx context.Context) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons ORDER BY created_at DESC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query); err != nil {
		return nil, fmt.Errorf("list all lessons: %w", err)
	}
	return lessons, nil
}

// ListActiveByTeacher returns a teacher's non-cancelled lessons, newest first.
func (r *LessonRepository) ListActiveByTeacher(ctx context.Context, teacherID string) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE teacher_id = $1 AND cancelled = FALSE ORDER BY created_at DESC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, teacherID); err != nil {
		return nil, fmt.Errorf("list lessons by teacher: %w", err)
	}
	return lessons, nil
}

// Create inserts a new lesson.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, teacher_id, title, instrument, description, image_url, location, start_time, end_time, start_date, end_date, meeting_link, physical_address, cancelled, created_at, updated_at) VALUES (:id, :teacher_id, :title, :instrument, :description, :image_url, :location, :start_time, :end_time, :start_date, :end_date, :meeting_link, :physical_address, :cancelled, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update rewrites the mutable content fields of a lesson.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET teacher_id = :teacher_id, title = :title, instrument = :instrument, description = :description, location = :location, start_time = :start_time, end_time = :end_time, start_date = :start_date, end_date = :end_date, meeting_link = :meeting_link, physical_address = :physical_address, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// SetCancelled flips the soft-delete flag.
func (r *LessonRepository) SetCancelled(ctx context.Context, id string, cancelled bool) error {
	const query = `UPDATE lessons SET cancelled = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, cancelled, time.Now().UTC()); err != nil {
		return fmt.Errorf("set lesson cancelled: %w", err)
	}
	return nil
}

// SetImageURL sets or clears the lesson image reference.
func (r *LessonRepository) SetImageURL(ctx context.Context, id string, url *string) error {
	const query = `UPDATE lessons SET image_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("set lesson image url: %w", err)
	}
	return nil
}

// Delete removes the lesson row permanently and returns rows affected,
// letting callers detect no-op deletes.
func (r *LessonRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM lessons WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete lesson: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete lesson rows affected: %w", err)
	}
	return affected, nil
}
