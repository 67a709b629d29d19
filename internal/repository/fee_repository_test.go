package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdesk/classdesk-api/internal/models"
)

func TestFeeSaveDayBatchAppliesAllThreeSets(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO fees`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE fees SET amount`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE fees SET is_deleted = TRUE`).
		WithArgs("fee-gone", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserts := []models.Fee{
		{StudentID: "s1", ClassID: "class-1", Amount: 1500, PaymentDate: time.Now(), Status: models.FeeStatusPaid, RecordedBy: "teacher-1"},
	}
	updates := []models.Fee{
		{ID: "fee-existing", Amount: 1800, RecordedBy: "teacher-1"},
	}

	err := repo.SaveDayBatch(context.Background(), inserts, updates, []string{"fee-gone"})
	require.NoError(t, err)
	assert.NotEmpty(t, inserts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeSaveDayBatchRollsBackOnUpdateError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE fees SET amount`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	updates := []models.Fee{{ID: "fee-existing", Amount: 1800}}

	err := repo.SaveDayBatch(context.Background(), nil, updates, nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeListFiltersByStatusAndWindow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeeRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "student_id", "class_id", "amount", "payment_date", "due_date", "status", "notes",
		"recorded_by", "is_deleted", "deleted_at", "created_at", "updated_at",
		"student_name", "class_name", "recorded_by_name",
	})

	mock.ExpectQuery(`(?s)SELECT .+ FROM fees f\s+JOIN users s .+ WHERE f\.class_id = \$1 AND f\.status = \$2 AND f\.payment_date >= \$3 AND f\.payment_date <= \$4 AND f\.is_deleted = FALSE`).
		WithArgs("class-1", string(models.FeeStatusPaid), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	_, err := repo.List(context.Background(), models.FeeFilter{
		ClassID:   "class-1",
		Status:    models.FeeStatusPaid,
		StartDate: &start,
		EndDate:   &end,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
