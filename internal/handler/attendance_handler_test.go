package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdesk/classdesk-api/internal/middleware"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/internal/service"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
	"github.com/classdesk/classdesk-api/pkg/response"
)

type stubAttendanceService struct {
	bulkResult *service.BulkAttendanceResult
	bulkErr    error
	lastActor  string
	lastBulk   service.BulkMarkAttendanceRequest
	lastFilter models.AttendanceFilter
	history    *models.AttendanceHistory
	historyErr error
}

func (s *stubAttendanceService) BulkMark(_ context.Context, actorID string, req service.BulkMarkAttendanceRequest) (*service.BulkAttendanceResult, error) {
	s.lastActor = actorID
	s.lastBulk = req
	return s.bulkResult, s.bulkErr
}

func (s *stubAttendanceService) Mark(_ context.Context, _ string, _ service.MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{}, nil
}

func (s *stubAttendanceService) List(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	s.lastFilter = filter
	return nil, nil
}

func (s *stubAttendanceService) Update(_ context.Context, _ string, _ service.UpdateAttendanceRequest) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{}, nil
}

func (s *stubAttendanceService) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *stubAttendanceService) MonthlyHistory(_ context.Context, _, _ string) (*models.AttendanceHistory, error) {
	return s.history, s.historyErr
}

func (s *stubAttendanceService) ExportHistory(_ context.Context, _, _, _ string) ([]byte, string, string, error) {
	return []byte("Student\n"), "attendance.csv", "text/csv", nil
}

func withTestClaims() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
		c.Next()
	}
}

func newAttendanceRouter(svc *stubAttendanceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAttendanceHandler(svc)
	r.POST("/attendance/bulk", withTestClaims(), h.BulkMark)
	r.GET("/attendance", h.List)
	r.GET("/attendance/history", h.History)
	r.GET("/attendance/history/export", withTestClaims(), h.ExportHistory)
	return r
}

func TestBulkMarkReturnsRecordsWithSkippedMeta(t *testing.T) {
	svc := &stubAttendanceService{
		bulkResult: &service.BulkAttendanceResult{
			Records: []models.AttendanceRecord{{Attendance: models.Attendance{ID: "att-1"}}},
			Skipped: []string{"ghost"},
		},
	}
	r := newAttendanceRouter(svc)

	body := `{"class":"class-1","sessionDate":"2026-03-02","students":[{"student":"s1"},{"student":"ghost"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/attendance/bulk", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", svc.lastActor)
	assert.Equal(t, "class-1", svc.lastBulk.ClassID)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Meta)
	skipped, ok := envelope.Meta["skipped"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "ghost", skipped[0])
}

func TestListReadsClassAndStudentQueryParams(t *testing.T) {
	svc := &stubAttendanceService{}
	r := newAttendanceRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/attendance?class=class-1&student=s1&startDate=2026-03-01&endDate=2026-03-31", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-1", svc.lastFilter.ClassID)
	assert.Equal(t, "s1", svc.lastFilter.StudentID)
	require.NotNil(t, svc.lastFilter.StartDate)
	assert.Equal(t, "2026-03-01", svc.lastFilter.StartDate.Format("2006-01-02"))
}

func TestBulkMarkRejectsMalformedBody(t *testing.T) {
	r := newAttendanceRouter(&stubAttendanceService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/attendance/bulk", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkMarkPropagatesServiceError(t *testing.T) {
	svc := &stubAttendanceService{bulkErr: appErrors.Clone(appErrors.ErrNotFound, "class not found")}
	r := newAttendanceRouter(svc)

	body := `{"class":"missing","sessionDate":"2026-03-02","students":[{"student":"s1"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/attendance/bulk", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, envelope.Error.Code)
}

func TestHistoryReturnsMatrix(t *testing.T) {
	svc := &stubAttendanceService{
		history: &models.AttendanceHistory{
			ClassID:  "class-1",
			Month:    "2026-03",
			Days:     []string{"2026-03-02"},
			Students: map[string]*models.StudentAttendanceHistory{},
		},
	}
	r := newAttendanceRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/attendance/history?classId=class-1&month=2026-03", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2026-03-02")
}

func TestExportHistorySetsDownloadHeaders(t *testing.T) {
	r := newAttendanceRouter(&stubAttendanceService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/attendance/history/export?classId=class-1&month=2026-03&format=csv", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance.csv")
}
