package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebridge/notebridge-api/internal/models"
)

func newChatMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func chatRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "subject", "created_at", "last_message_at"})
}

func TestChatRepositoryFindByParticipants(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	rows := chatRows().AddRow("chat-1", "teacher-1", "student-1", "Piano questions", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+chatColumns+" FROM chats WHERE teacher_id = $1 AND student_id = $2 LIMIT 1")).
		WithArgs("teacher-1", "student-1").
		WillReturnRows(rows)

	chat, err := repo.FindByParticipants(context.Background(), "teacher-1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, "Piano questions", chat.Subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryFindByParticipantsNotFound(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+chatColumns+" FROM chats WHERE teacher_id = $1 AND student_id = $2 LIMIT 1")).
		WithArgs("teacher-1", "student-2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByParticipants(context.Background(), "teacher-1", "student-2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryListForUser(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	rows := chatRows().
		AddRow("chat-2", "teacher-1", "student-2", models.DefaultChatSubject, time.Now(), time.Now()).
		AddRow("chat-1", "teacher-1", "student-1", models.DefaultChatSubject, time.Now(), time.Now().Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+chatColumns+" FROM chats WHERE teacher_id = $1 OR student_id = $1 ORDER BY last_message_at DESC")).
		WithArgs("teacher-1").
		WillReturnRows(rows)

	chats, err := repo.ListForUser(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Len(t, chats, 2)
	assert.Equal(t, "chat-2", chats[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectExec("INSERT INTO chats").
		WillReturnResult(sqlmock.NewResult(1, 1))

	chat := &models.Chat{TeacherID: "teacher-1", StudentID: "student-1", Subject: models.DefaultChatSubject}
	err := repo.Create(context.Background(), chat)
	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID)
	assert.False(t, chat.LastMessageAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryUpdateSubject(t *testing.T) {
	db, mock, cleanup := newChatMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE chats SET subject = $2 WHERE id = $1")).
		WithArgs("chat-1", "Exam prep").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSubject(context.Background(), "chat-1", "Exam prep")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
