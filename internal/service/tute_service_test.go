package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdesk/classdesk-api/internal/models"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
)

type fakeTuteRepo struct {
	tutes []models.Tute
	byID  map[string]*models.Tute
}

func (f *fakeTuteRepo) List(_ context.Context, _ models.TuteFilter) ([]models.Tute, error) {
	return f.tutes, nil
}

func (f *fakeTuteRepo) FindByID(_ context.Context, id string) (*models.Tute, error) {
	tute, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return tute, nil
}

func (f *fakeTuteRepo) Create(_ context.Context, tute *models.Tute) error {
	if tute.ID == "" {
		tute.ID = "tute-created"
	}
	f.tutes = append(f.tutes, *tute)
	return nil
}

func (f *fakeTuteRepo) Update(_ context.Context, _ *models.Tute) error {
	return nil
}

func (f *fakeTuteRepo) SoftDelete(_ context.Context, _ string) error {
	return nil
}

type fakeAssignmentRepo struct {
	studentWindow []models.TuteAssignment
	classWindow   []models.TuteAssignmentRecord
	syncInserts   []models.TuteAssignment
	syncDeletes   []string
	batchInserts  []models.TuteAssignment
	syncCalls     int
}

func (f *fakeAssignmentRepo) ListForStudentInWindow(_ context.Context, _, _ string, _, _ time.Time) ([]models.TuteAssignment, error) {
	return f.studentWindow, nil
}

func (f *fakeAssignmentRepo) ListByClassInWindow(_ context.Context, _ string, _, _ time.Time) ([]models.TuteAssignmentRecord, error) {
	return f.classWindow, nil
}

func (f *fakeAssignmentRepo) SyncBatch(_ context.Context, inserts []models.TuteAssignment, deleteIDs []string) error {
	f.syncCalls++
	f.syncInserts = append(f.syncInserts, inserts...)
	f.syncDeletes = append(f.syncDeletes, deleteIDs...)
	return nil
}

func (f *fakeAssignmentRepo) AssignBatch(_ context.Context, inserts []models.TuteAssignment) error {
	f.batchInserts = append(f.batchInserts, inserts...)
	return nil
}

func newTuteServiceForTest(tutes *fakeTuteRepo, assignments *fakeAssignmentRepo, roster []string) *TuteService {
	classes := &stubClassReader{class: &models.Class{ID: "class-1", Name: "Grade 10"}}
	cache := NewCacheService(nil, nil, 0, nil, false)
	return NewTuteService(tutes, assignments, classes, &stubRosterReader{ids: roster}, cache, nil, nil)
}

func TestSyncAssignmentsSetDifference(t *testing.T) {
	assignments := &fakeAssignmentRepo{
		studentWindow: []models.TuteAssignment{
			{ID: "row-a", StudentID: "s1", ClassID: "class-1", TuteID: "tute-a"},
			{ID: "row-b", StudentID: "s1", ClassID: "class-1", TuteID: "tute-b"},
		},
	}
	svc := newTuteServiceForTest(&fakeTuteRepo{}, assignments, []string{"s1"})

	result, err := svc.SyncAssignments(context.Background(), SyncAssignmentsRequest{
		ClassID:   "class-1",
		StudentID: "s1",
		TuteIDs:   []string{"tute-b", "tute-c"},
		Date:      "2026-03-15",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"row-a"}, assignments.syncDeletes, "only the removed tute leaves the month")
	require.Len(t, assignments.syncInserts, 2)
	assert.Equal(t, "tute-b", assignments.syncInserts[0].TuteID)
	assert.Equal(t, "tute-c", assignments.syncInserts[1].TuteID)
	assert.Equal(t, 2, result.Assigned)
	assert.Equal(t, 1, result.Removed)
	assert.False(t, result.Skipped)
}

func TestSyncAssignmentsDedupesRequestedTutes(t *testing.T) {
	assignments := &fakeAssignmentRepo{}
	svc := newTuteServiceForTest(&fakeTuteRepo{}, assignments, []string{"s1"})

	_, err := svc.SyncAssignments(context.Background(), SyncAssignmentsRequest{
		ClassID:   "class-1",
		StudentID: "s1",
		TuteIDs:   []string{"tute-a", "tute-a", "tute-b"},
		Date:      "2026-03-15",
	})
	require.NoError(t, err)

	assert.Len(t, assignments.syncInserts, 2)
}

func TestSyncAssignmentsEmptyDesiredClearsMonth(t *testing.T) {
	assignments := &fakeAssignmentRepo{
		studentWindow: []models.TuteAssignment{
			{ID: "row-a", StudentID: "s1", TuteID: "tute-a"},
		},
	}
	svc := newTuteServiceForTest(&fakeTuteRepo{}, assignments, []string{"s1"})

	result, err := svc.SyncAssignments(context.Background(), SyncAssignmentsRequest{
		ClassID:   "class-1",
		StudentID: "s1",
		TuteIDs:   []string{},
		Date:      "2026-03-15",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"row-a"}, assignments.syncDeletes)
	assert.Empty(t, assignments.syncInserts)
	assert.Equal(t, 1, result.Removed)
}

func TestSyncAssignmentsSkipsUnenrolledStudent(t *testing.T) {
	assignments := &fakeAssignmentRepo{}
	svc := newTuteServiceForTest(&fakeTuteRepo{}, assignments, []string{"other"})

	result, err := svc.SyncAssignments(context.Background(), SyncAssignmentsRequest{
		ClassID:   "class-1",
		StudentID: "s1",
		TuteIDs:   []string{"tute-a"},
		Date:      "2026-03-15",
	})
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Zero(t, assignments.syncCalls, "no writes for an unenrolled student")
}

func TestSyncAssignmentsScopesRemovalsToTheMonthWindow(t *testing.T) {
	// The repository only hands back rows inside the month window, so a
	// February assignment can never land in the removal set of a March
	// sync. The fake models that contract.
	assignments := &fakeAssignmentRepo{studentWindow: nil}
	svc := newTuteServiceForTest(&fakeTuteRepo{}, assignments, []string{"s1"})

	_, err := svc.SyncAssignments(context.Background(), SyncAssignmentsRequest{
		ClassID:   "class-1",
		StudentID: "s1",
		TuteIDs:   []string{"tute-new"},
		Date:      "2026-03-15",
	})
	require.NoError(t, err)

	assert.Empty(t, assignments.syncDeletes)
	require.Len(t, assignments.syncInserts, 1)
	assert.Equal(t, "tute-new", assignments.syncInserts[0].TuteID)
}

func TestAssignTuteDefaultsToFullRoster(t *testing.T) {
	tutes := &fakeTuteRepo{byID: map[string]*models.Tute{
		"tute-a": {ID: "tute-a", Title: "Algebra 1"},
	}}
	assignments := &fakeAssignmentRepo{}
	svc := newTuteServiceForTest(tutes, assignments, []string{"s1", "s2", "s3"})

	result, err := svc.AssignTute(context.Background(), AssignTuteRequest{
		ClassID: "class-1",
		TuteID:  "tute-a",
		Date:    "2026-03-15",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Assigned)
	assert.Len(t, assignments.batchInserts, 3)
	assert.Empty(t, result.Skipped)
}

func TestAssignTuteSkipsStudentsOutsideRoster(t *testing.T) {
	tutes := &fakeTuteRepo{byID: map[string]*models.Tute{
		"tute-a": {ID: "tute-a", Title: "Algebra 1"},
	}}
	assignments := &fakeAssignmentRepo{}
	svc := newTuteServiceForTest(tutes, assignments, []string{"s1"})

	result, err := svc.AssignTute(context.Background(), AssignTuteRequest{
		ClassID:  "class-1",
		TuteID:   "tute-a",
		Students: []string{"s1", "ghost"},
		Date:     "2026-03-15",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Assigned)
	assert.Equal(t, []string{"ghost"}, result.Skipped)
}

func TestAssignTuteRejectsMissingTute(t *testing.T) {
	svc := newTuteServiceForTest(&fakeTuteRepo{byID: map[string]*models.Tute{}}, &fakeAssignmentRepo{}, []string{"s1"})

	_, err := svc.AssignTute(context.Background(), AssignTuteRequest{
		ClassID: "class-1",
		TuteID:  "missing",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreateMaterialValidatesMonthFormat(t *testing.T) {
	svc := newTuteServiceForTest(&fakeTuteRepo{}, &fakeAssignmentRepo{}, nil)

	_, err := svc.CreateMaterial(context.Background(), "teacher-1", CreateTuteRequest{
		Title: "Algebra 1",
		Grade: "10",
		Month: "March",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMonthAssignmentsBundlesTutesAndAssignments(t *testing.T) {
	tutes := &fakeTuteRepo{tutes: []models.Tute{{ID: "tute-a", Title: "Algebra 1", Month: "2026-03"}}}
	assignments := &fakeAssignmentRepo{
		classWindow: []models.TuteAssignmentRecord{
			{TuteAssignment: models.TuteAssignment{ID: "row-1", StudentID: "s1", TuteID: "tute-a"}, StudentName: "Amara"},
		},
	}
	svc := newTuteServiceForTest(tutes, assignments, []string{"s1"})

	result, err := svc.MonthAssignments(context.Background(), "class-1", "2026-03", "")
	require.NoError(t, err)

	assert.Equal(t, "2026-03", result.Month)
	require.Len(t, result.Tutes, 1)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, "Amara", result.Assignments[0].StudentName)
}
