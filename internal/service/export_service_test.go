package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notebridge/notebridge-api/internal/models"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
)

func newExportServiceFixture(lessons ...models.Lesson) (*ExportService, *mockObjectStore) {
	store := newMockObjectStore()
	svc := NewExportService(newMockLessonRepo(lessons...), store, 1, 1, zap.NewNop())
	return svc, store
}

func waitForExport(t *testing.T, svc *ExportService, id string) *ExportStatus {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		status, err := svc.Status(id)
		require.NoError(t, err)
		switch status.Status {
		case ExportStatusCompleted, ExportStatusFailed:
			return status
		}
		select {
		case <-deadline:
			t.Fatalf("export %s did not finish, last status %s", id, status.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestExportServiceRendersCSV(t *testing.T) {
	svc, store := newExportServiceFixture(sampleLesson("lesson-1", "teacher-1"))
	svc.Start(context.Background())
	defer svc.Stop()

	status, err := svc.Request(context.Background(), ExportFormatCSV)
	require.NoError(t, err)

	done := waitForExport(t, svc, status.ID)
	assert.Equal(t, ExportStatusCompleted, done.Status)
	assert.Contains(t, done.URL, "exports/"+status.ID+".csv")
	require.NotNil(t, done.CompletedAt)

	payload := store.objects["exports/"+status.ID+".csv"]
	require.NotEmpty(t, payload)
	assert.Contains(t, string(payload), "lesson-1")
}

func TestExportServiceRendersPDF(t *testing.T) {
	svc, store := newExportServiceFixture(sampleLesson("lesson-1", "teacher-1"))
	svc.Start(context.Background())
	defer svc.Stop()

	status, err := svc.Request(context.Background(), ExportFormatPDF)
	require.NoError(t, err)

	done := waitForExport(t, svc, status.ID)
	assert.Equal(t, ExportStatusCompleted, done.Status)

	payload := store.objects["exports/"+status.ID+".pdf"]
	require.NotEmpty(t, payload)
	assert.Equal(t, "%PDF", string(payload[:4]))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceFixture()
	svc.Start(context.Background())
	defer svc.Stop()

	_, err := svc.Request(context.Background(), "xlsx")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExportServiceDownload(t *testing.T) {
	svc, store := newExportServiceFixture(sampleLesson("lesson-1", "teacher-1"))
	svc.Start(context.Background())
	defer svc.Stop()

	status, err := svc.Request(context.Background(), ExportFormatCSV)
	require.NoError(t, err)
	waitForExport(t, svc, status.ID)

	reader, filename, err := svc.Download(status.ID)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "lesson-catalog-"+status.ID+".csv", filename)
	payload, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, store.objects["exports/"+status.ID+".csv"], payload)
}

func TestExportServiceDownloadPendingConflict(t *testing.T) {
	svc, _ := newExportServiceFixture()
	svc.statuses["export-1"] = &ExportStatus{
		ID:          "export-1",
		Format:      ExportFormatCSV,
		Status:      ExportStatusPending,
		RequestedAt: time.Now().UTC(),
	}

	_, _, err := svc.Download("export-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestExportServiceStatusUnknownID(t *testing.T) {
	svc, _ := newExportServiceFixture()

	_, err := svc.Status("missing")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
