package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdesk/classdesk-api/internal/models"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
)

type fakeFeeRepo struct {
	existing     []models.Fee
	listRows     []models.FeeRecord
	savedInserts []models.Fee
	savedUpdates []models.Fee
	softDeleted  []string
	created      []models.Fee
	byID         map[string]*models.Fee
}

func (f *fakeFeeRepo) List(_ context.Context, _ models.FeeFilter) ([]models.FeeRecord, error) {
	return f.listRows, nil
}

func (f *fakeFeeRepo) FindDayRecords(_ context.Context, _ string, _, _ time.Time) ([]models.Fee, error) {
	return f.existing, nil
}

func (f *fakeFeeRepo) SaveDayBatch(_ context.Context, inserts, updates []models.Fee, softDeleteIDs []string) error {
	for i := range inserts {
		if inserts[i].ID == "" {
			inserts[i].ID = fmt.Sprintf("fee-%d", i+1)
		}
	}
	f.savedInserts = append(f.savedInserts, inserts...)
	f.savedUpdates = append(f.savedUpdates, updates...)
	f.softDeleted = append(f.softDeleted, softDeleteIDs...)
	return nil
}

func (f *fakeFeeRepo) FindRecordsByIDs(_ context.Context, ids []string) ([]models.FeeRecord, error) {
	records := make([]models.FeeRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, models.FeeRecord{Fee: models.Fee{ID: id}})
	}
	return records, nil
}

func (f *fakeFeeRepo) Create(_ context.Context, rec *models.Fee) error {
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("fee-adhoc-%d", len(f.created)+1)
	}
	f.created = append(f.created, *rec)
	return nil
}

func (f *fakeFeeRepo) FindByID(_ context.Context, id string) (*models.Fee, error) {
	rec, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

func (f *fakeFeeRepo) Update(_ context.Context, _ *models.Fee) error {
	return nil
}

func (f *fakeFeeRepo) SoftDelete(_ context.Context, id string) error {
	f.softDeleted = append(f.softDeleted, id)
	return nil
}

func newFeeServiceForTest(repo *fakeFeeRepo, roster []string) *FeeService {
	classes := &stubClassReader{class: &models.Class{ID: "class-1", Name: "Grade 10"}}
	cache := NewCacheService(nil, nil, 0, nil, false)
	return NewFeeService(repo, classes, &stubRosterReader{ids: roster}, cache, nil, nil)
}

func TestFeeBulkMarkInsertsWithDefaultAmount(t *testing.T) {
	repo := &fakeFeeRepo{}
	svc := newFeeServiceForTest(repo, []string{"s1", "s2"})

	defaultAmount := 1500.0
	override := 2000.0
	result, err := svc.BulkMark(context.Background(), "teacher-1", BulkMarkFeesRequest{
		ClassID:     "class-1",
		PaymentDate: "2026-03-02",
		Amount:      &defaultAmount,
		Students: []BulkFeeEntry{
			{StudentID: "s1"},
			{StudentID: "s2", Amount: &override},
		},
	})
	require.NoError(t, err)

	require.Len(t, repo.savedInserts, 2)
	assert.Equal(t, 1500.0, repo.savedInserts[0].Amount, "top-level amount is the per-student default")
	assert.Equal(t, 2000.0, repo.savedInserts[1].Amount, "entry amount overrides the default")
	assert.Equal(t, models.FeeStatusPaid, repo.savedInserts[0].Status)
	assert.Equal(t, "teacher-1", repo.savedInserts[0].RecordedBy)
	assert.Len(t, result.Records, 2)
}

func TestFeeBulkMarkAcceptsWireFieldNames(t *testing.T) {
	repo := &fakeFeeRepo{}
	svc := newFeeServiceForTest(repo, []string{"s1"})

	payload := `{"class":"class-1","paymentDate":"2026-03-02","amount":1500,"students":[{"student":"s1","isPaid":true}]}`
	var req BulkMarkFeesRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))
	assert.Equal(t, "class-1", req.ClassID)

	result, err := svc.BulkMark(context.Background(), "teacher-1", req)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Len(t, repo.savedInserts, 1)
	assert.Equal(t, 1500.0, repo.savedInserts[0].Amount)
}

func TestFeeBulkMarkUnpaidSoftDeletesExistingRow(t *testing.T) {
	repo := &fakeFeeRepo{
		existing: []models.Fee{
			{ID: "fee-existing", StudentID: "s1", ClassID: "class-1", Amount: 1500, Status: models.FeeStatusPaid},
		},
	}
	svc := newFeeServiceForTest(repo, []string{"s1"})

	unpaid := false
	result, err := svc.BulkMark(context.Background(), "teacher-1", BulkMarkFeesRequest{
		ClassID:     "class-1",
		PaymentDate: "2026-03-02",
		Students:    []BulkFeeEntry{{StudentID: "s1", IsPaid: &unpaid}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"fee-existing"}, repo.softDeleted)
	assert.Empty(t, repo.savedInserts)
	assert.Empty(t, repo.savedUpdates)
	assert.Empty(t, result.Records, "a cleared payment does not come back in the response")
}

func TestFeeBulkMarkUnpaidWithoutRowIsNoop(t *testing.T) {
	repo := &fakeFeeRepo{}
	svc := newFeeServiceForTest(repo, []string{"s1"})

	unpaid := false
	result, err := svc.BulkMark(context.Background(), "teacher-1", BulkMarkFeesRequest{
		ClassID:     "class-1",
		PaymentDate: "2026-03-02",
		Students:    []BulkFeeEntry{{StudentID: "s1", IsPaid: &unpaid}},
	})
	require.NoError(t, err)

	assert.Empty(t, repo.savedInserts)
	assert.Empty(t, repo.softDeleted)
	assert.Empty(t, result.Records)
}

func TestFeeBulkMarkUpdatesExistingPaidRow(t *testing.T) {
	repo := &fakeFeeRepo{
		existing: []models.Fee{
			{ID: "fee-existing", StudentID: "s1", ClassID: "class-1", Amount: 1000, Status: models.FeeStatusPaid, RecordedBy: "old-teacher"},
		},
	}
	svc := newFeeServiceForTest(repo, []string{"s1"})

	amount := 1800.0
	_, err := svc.BulkMark(context.Background(), "teacher-2", BulkMarkFeesRequest{
		ClassID:     "class-1",
		PaymentDate: "2026-03-02",
		Students:    []BulkFeeEntry{{StudentID: "s1", Amount: &amount}},
	})
	require.NoError(t, err)

	assert.Empty(t, repo.savedInserts, "re-marking paid must not create a second row for the day")
	require.Len(t, repo.savedUpdates, 1)
	assert.Equal(t, "fee-existing", repo.savedUpdates[0].ID)
	assert.Equal(t, 1800.0, repo.savedUpdates[0].Amount)
	assert.Equal(t, "teacher-2", repo.savedUpdates[0].RecordedBy)
}

func TestFeeBulkMarkSkipsUnenrolledStudents(t *testing.T) {
	repo := &fakeFeeRepo{}
	svc := newFeeServiceForTest(repo, []string{"s1"})

	result, err := svc.BulkMark(context.Background(), "teacher-1", BulkMarkFeesRequest{
		ClassID:     "class-1",
		PaymentDate: "2026-03-02",
		Students: []BulkFeeEntry{
			{StudentID: "s1"},
			{StudentID: "ghost"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ghost"}, result.Skipped)
	assert.Len(t, repo.savedInserts, 1)
}

func TestFeeBulkMarkRejectsNegativeAmount(t *testing.T) {
	svc := newFeeServiceForTest(&fakeFeeRepo{}, []string{"s1"})

	negative := -100.0
	_, err := svc.BulkMark(context.Background(), "teacher-1", BulkMarkFeesRequest{
		ClassID:     "class-1",
		PaymentDate: "2026-03-02",
		Students:    []BulkFeeEntry{{StudentID: "s1", Amount: &negative}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFeeCreateRequiresEnrollment(t *testing.T) {
	svc := newFeeServiceForTest(&fakeFeeRepo{}, []string{"other"})

	amount := 1500.0
	_, err := svc.Create(context.Background(), "teacher-1", CreateFeeRequest{
		StudentID: "s1",
		ClassID:   "class-1",
		Amount:    &amount,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFeeCreateDefaultsStatusToPaid(t *testing.T) {
	repo := &fakeFeeRepo{}
	svc := newFeeServiceForTest(repo, []string{"s1"})

	amount := 1500.0
	_, err := svc.Create(context.Background(), "teacher-1", CreateFeeRequest{
		StudentID:   "s1",
		ClassID:     "class-1",
		Amount:      &amount,
		PaymentDate: "2026-03-05",
	})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Equal(t, models.FeeStatusPaid, repo.created[0].Status)
	assert.Equal(t, "2026-03-05", repo.created[0].PaymentDate.Format("2006-01-02"))
}

func TestBuildFeeHistorySumsAmountsPerDayAndTotal(t *testing.T) {
	day := func(d string) time.Time {
		parsed, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		return parsed
	}
	rows := []models.FeeRecord{
		{Fee: models.Fee{StudentID: "s1", PaymentDate: day("2026-03-02"), Amount: 1500}, StudentName: "Amara"},
		{Fee: models.Fee{StudentID: "s1", PaymentDate: day("2026-03-09"), Amount: 500}, StudentName: "Amara"},
		{Fee: models.Fee{StudentID: "s1", PaymentDate: day("2026-03-09"), Amount: 250}, StudentName: "Amara"},
		{Fee: models.Fee{StudentID: "s2", PaymentDate: day("2026-03-02"), Amount: 1500}, StudentName: "Bimal"},
	}

	history := buildFeeHistory("class-1", "2026-03", rows)

	assert.Equal(t, []string{"2026-03-02", "2026-03-09"}, history.Days)

	s1 := history.Students["s1"]
	require.NotNil(t, s1)
	assert.Equal(t, 1500.0, s1.Days["2026-03-02"])
	assert.Equal(t, 750.0, s1.Days["2026-03-09"], "same-day records accumulate")
	assert.Equal(t, 2250.0, s1.Total)

	s2 := history.Students["s2"]
	require.NotNil(t, s2)
	assert.Equal(t, 1500.0, s2.Total)
}
