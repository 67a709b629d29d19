package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdesk/classdesk-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestAttendanceSaveDayBatchCommitsInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO attendance`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE attendance SET is_present`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserts := []models.Attendance{
		{StudentID: "s1", ClassID: "class-1", SessionDate: time.Now(), IsPresent: true, MarkedBy: "teacher-1"},
	}
	updates := []models.Attendance{
		{ID: "existing-1", IsPresent: false},
	}

	err := repo.SaveDayBatch(context.Background(), inserts, updates)
	require.NoError(t, err)
	assert.NotEmpty(t, inserts[0].ID, "inserted rows are assigned ids")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSaveDayBatchRollsBackOnInsertError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO attendance`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	inserts := []models.Attendance{
		{StudentID: "s1", ClassID: "class-1", SessionDate: time.Now(), IsPresent: true, MarkedBy: "teacher-1"},
	}

	err := repo.SaveDayBatch(context.Background(), inserts, nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSaveDayBatchNoopWhenEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttendanceRepository(db)

	err := repo.SaveDayBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceFindDayRecordsFiltersDeletedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttendanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "class_id", "session_date", "is_present", "notes",
		"marked_by", "is_deleted", "deleted_at", "created_at", "updated_at",
	}).AddRow("att-1", "s1", "class-1", now, true, nil, "teacher-1", false, nil, now, now)

	mock.ExpectQuery(`(?s)SELECT .+ FROM attendance\s+WHERE class_id = \$1 AND session_date >= \$2 AND session_date <= \$3 AND is_deleted = FALSE`).
		WithArgs("class-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	records, err := repo.FindDayRecords(context.Background(), "class-1", start, end)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceListBuildsFilterClauses(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "student_id", "class_id", "session_date", "is_present", "notes",
		"marked_by", "is_deleted", "deleted_at", "created_at", "updated_at",
		"student_name", "class_name", "marked_by_name",
	})

	mock.ExpectQuery(`(?s)SELECT .+ FROM attendance a\s+JOIN users s .+ WHERE a\.student_id = \$1 AND a\.class_id = \$2 AND a\.is_deleted = FALSE`).
		WithArgs("s1", "class-1").
		WillReturnRows(rows)

	_, err := repo.List(context.Background(), models.AttendanceFilter{StudentID: "s1", ClassID: "class-1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSoftDeleteMarksRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(`UPDATE attendance SET is_deleted = TRUE`).
		WithArgs("att-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SoftDelete(context.Background(), "att-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
