package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notebridge/notebridge-api/internal/models"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
	"github.com/notebridge/notebridge-api/pkg/export"
	"github.com/notebridge/notebridge-api/pkg/jobs"
	"github.com/notebridge/notebridge-api/pkg/storage"
)

// Export formats supported by the catalog export job.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// Export job states.
const (
	ExportStatusPending   = "PENDING"
	ExportStatusRunning   = "RUNNING"
	ExportStatusCompleted = "COMPLETED"
	ExportStatusFailed    = "FAILED"
)

type exportLessonLister interface {
	ListAll(ctx context.Context) ([]models.Lesson, error)
}

// ExportStatus reports the state of a requested export.
type ExportStatus struct {
	ID          string     `json:"id"`
	Format      string     `json:"format"`
	Status      string     `json:"status"`
	URL         string     `json:"url,omitempty"`
	Error       string     `json:"error,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExportService produces catalog exports on a background worker pool.
// Status lives in memory; a restart forgets pending exports, which is
// acceptable because clients simply request a new one.
type ExportService struct {
	lessons exportLessonLister
	store   storage.ObjectStore
	csv     *export.CSVRenderer
	pdf     *export.PDFRenderer
	queue   *jobs.Queue
	logger  *zap.Logger

	mu       sync.RWMutex
	statuses map[string]*ExportStatus
}

// NewExportService constructs an ExportService and its queue.
func NewExportService(lessons exportLessonLister, store storage.ObjectStore, workers, retries int, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		lessons:  lessons,
		store:    store,
		csv:      export.NewCSVRenderer(),
		pdf:      export.NewPDFRenderer(),
		logger:   logger,
		statuses: make(map[string]*ExportStatus),
	}
	s.queue = jobs.NewQueue("catalog-exports", s.handle, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request enqueues a catalog export and returns its tracking status.
func (s *ExportService) Request(ctx context.Context, format string) (*ExportStatus, error) {
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	status := &ExportStatus{
		ID:          uuid.NewString(),
		Format:      format,
		Status:      ExportStatusPending,
		RequestedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.statuses[status.ID] = status
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: status.ID, Type: format}); err != nil {
		s.setFailed(status.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return s.Status(status.ID)
}

// Status returns the current state of an export.
func (s *ExportService) Status(id string) (*ExportStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	copied := *status
	return &copied, nil
}

// Download opens a completed export artifact for streaming. The second
// return value is the filename to suggest to the client.
func (s *ExportService) Download(id string) (io.ReadCloser, string, error) {
	status, err := s.Status(id)
	if err != nil {
		return nil, "", err
	}
	if status.Status != ExportStatusCompleted {
		return nil, "", appErrors.Clone(appErrors.ErrConflict, "export is not completed yet")
	}

	objectName := fmt.Sprintf("exports/%s.%s", status.ID, status.Format)
	reader, err := s.store.Open(objectName)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export artifact")
	}
	return reader, fmt.Sprintf("lesson-catalog-%s.%s", status.ID, status.Format), nil
}

func (s *ExportService) handle(ctx context.Context, job jobs.Job) error {
	s.setRunning(job.ID)

	lessons, err := s.lessons.ListAll(ctx)
	if err != nil {
		s.setFailed(job.ID, err)
		return err
	}

	table := lessonsTable(lessons)
	var payload []byte
	switch job.Type {
	case ExportFormatPDF:
		payload, err = s.pdf.Render(table, "Lesson Catalog")
	default:
		payload, err = s.csv.Render(table)
	}
	if err != nil {
		s.setFailed(job.ID, err)
		return err
	}

	objectName := fmt.Sprintf("exports/%s.%s", job.ID, job.Type)
	if err := s.store.Create(objectName, payload); err != nil {
		s.setFailed(job.ID, err)
		return err
	}

	s.setCompleted(job.ID, s.store.PublicURL(objectName))
	return nil
}

func (s *ExportService) setRunning(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[id]; ok {
		status.Status = ExportStatusRunning
		status.Error = ""
	}
}

func (s *ExportService) setFailed(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[id]; ok {
		status.Status = ExportStatusFailed
		status.Error = err.Error()
	}
}

func (s *ExportService) setCompleted(id, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[id]; ok {
		now := time.Now().UTC()
		status.Status = ExportStatusCompleted
		status.URL = url
		status.Error = ""
		status.CompletedAt = &now
	}
}

func lessonsTable(lessons []models.Lesson) export.Table {
	table := export.Table{
		Columns: []string{"ID", "Teacher", "Title", "Instrument", "Location", "Cancelled", "Created"},
	}
	for _, lesson := range lessons {
		table.Rows = append(table.Rows, []string{
			lesson.ID,
			lesson.TeacherID,
			lesson.Title,
			lesson.Instrument,
			string(lesson.Location),
			strconv.FormatBool(lesson.Cancelled),
			lesson.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return table
}
