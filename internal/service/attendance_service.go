package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/pkg/datewindow"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
	"github.com/classdesk/classdesk-api/pkg/export"
)

// attendanceRepository abstracts attendance persistence.
type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	FindDayRecords(ctx context.Context, classID string, start, end time.Time) ([]models.Attendance, error)
	SaveDayBatch(ctx context.Context, inserts, updates []models.Attendance) error
	FindRecordsByIDs(ctx context.Context, ids []string) ([]models.AttendanceRecord, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	Update(ctx context.Context, rec *models.Attendance) error
	SoftDelete(ctx context.Context, id string) error
}

// AttendanceService implements the daily attendance reconciliation flow and
// the monthly history view.
type AttendanceService struct {
	repo     attendanceRepository
	classes  classReader
	roster   rosterReader
	cache    *CacheService
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, classes classReader, roster rosterReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:     repo,
		classes:  classes,
		roster:   roster,
		cache:    cache,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
	}
}

// BulkAttendanceEntry is one student entry in a bulk marking request.
type BulkAttendanceEntry struct {
	StudentID string  `json:"student" validate:"required"`
	IsPresent *bool   `json:"isPresent"`
	Notes     *string `json:"notes"`
}

// BulkMarkAttendanceRequest marks attendance for a whole class roster on
// one session day.
type BulkMarkAttendanceRequest struct {
	ClassID     string                `json:"class" validate:"required"`
	SessionDate string                `json:"sessionDate" validate:"required"`
	Students    []BulkAttendanceEntry `json:"students" validate:"required,min=1,dive"`
}

// BulkAttendanceResult carries the saved records plus the entries skipped
// because the student is not actively enrolled.
type BulkAttendanceResult struct {
	Records []models.AttendanceRecord `json:"records"`
	Skipped []string                  `json:"skipped,omitempty"`
}

// BulkMark reconciles the submitted entries against the records already
// stored for the session day. Entries for students outside the active
// roster are skipped, existing records are updated in place, and the whole
// batch is written in one transaction. Repeating the same request is a
// no-op beyond refreshed timestamps.
func (s *AttendanceService) BulkMark(ctx context.Context, actorID string, req BulkMarkAttendanceRequest) (*BulkAttendanceResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}
	date, err := datewindow.ParseDate(req.SessionDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sessionDate must be YYYY-MM-DD")
	}
	if _, err := loadActiveClass(ctx, s.classes, req.ClassID); err != nil {
		return nil, err
	}
	roster, err := rosterSet(ctx, s.roster, req.ClassID)
	if err != nil {
		return nil, err
	}

	// Dedupe the payload per student, last entry wins.
	order := make([]string, 0, len(req.Students))
	desired := make(map[string]BulkAttendanceEntry, len(req.Students))
	skipped := []string{}
	for _, entry := range req.Students {
		if _, enrolled := roster[entry.StudentID]; !enrolled {
			skipped = append(skipped, entry.StudentID)
			continue
		}
		if _, seen := desired[entry.StudentID]; !seen {
			order = append(order, entry.StudentID)
		}
		desired[entry.StudentID] = entry
	}

	start, end := datewindow.Day(date)
	existing, err := s.repo.FindDayRecords(ctx, req.ClassID, start, end)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string]models.Attendance, len(existing))
	for _, rec := range existing {
		byStudent[rec.StudentID] = rec
	}

	inserts := []models.Attendance{}
	updates := []models.Attendance{}
	for _, studentID := range order {
		entry := desired[studentID]
		present := true
		if entry.IsPresent != nil {
			present = *entry.IsPresent
		}
		if prev, ok := byStudent[studentID]; ok {
			notes := prev.Notes
			if entry.Notes != nil {
				notes = entry.Notes
			}
			prev.IsPresent = present
			prev.Notes = notes
			updates = append(updates, prev)
			continue
		}
		inserts = append(inserts, models.Attendance{
			StudentID:   studentID,
			ClassID:     req.ClassID,
			SessionDate: start,
			IsPresent:   present,
			Notes:       entry.Notes,
			MarkedBy:    actorID,
		})
	}

	s.metrics.ObserveBatch("attendance", len(inserts)+len(updates))
	if err := s.repo.SaveDayBatch(ctx, inserts, updates); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(inserts)+len(updates))
	for _, rec := range inserts {
		ids = append(ids, rec.ID)
	}
	for _, rec := range updates {
		ids = append(ids, rec.ID)
	}
	records, err := s.repo.FindRecordsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, fmt.Sprintf("history:attendance:%s:*", req.ClassID))
	s.logger.Info("attendance batch saved",
		zap.String("class_id", req.ClassID),
		zap.String("session_date", datewindow.DayKey(start)),
		zap.Int("inserted", len(inserts)),
		zap.Int("updated", len(updates)),
		zap.Int("skipped", len(skipped)))

	return &BulkAttendanceResult{Records: records, Skipped: skipped}, nil
}

// MarkAttendanceRequest marks a single student for one session day.
type MarkAttendanceRequest struct {
	StudentID   string  `json:"student" validate:"required"`
	ClassID     string  `json:"class" validate:"required"`
	SessionDate string  `json:"sessionDate" validate:"required"`
	IsPresent   *bool   `json:"isPresent"`
	Notes       *string `json:"notes"`
}

// Mark records attendance for a single student. Unlike the bulk flow a
// missing enrollment here is an error, not a silent skip.
func (s *AttendanceService) Mark(ctx context.Context, actorID string, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := datewindow.ParseDate(req.SessionDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sessionDate must be YYYY-MM-DD")
	}
	if _, err := loadActiveClass(ctx, s.classes, req.ClassID); err != nil {
		return nil, err
	}
	roster, err := rosterSet(ctx, s.roster, req.ClassID)
	if err != nil {
		return nil, err
	}
	if _, enrolled := roster[req.StudentID]; !enrolled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this class")
	}

	result, err := s.BulkMark(ctx, actorID, BulkMarkAttendanceRequest{
		ClassID:     req.ClassID,
		SessionDate: datewindow.DayKey(date),
		Students: []BulkAttendanceEntry{{
			StudentID: req.StudentID,
			IsPresent: req.IsPresent,
			Notes:     req.Notes,
		}},
	})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInternal, "attendance record not persisted")
	}
	return &result.Records[0], nil
}

// List returns attendance records for the given filter. A session date
// filter is expanded to the full calendar day.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	if filter.SessionDate != nil {
		start, end := datewindow.Day(*filter.SessionDate)
		filter.StartDate = &start
		filter.EndDate = &end
	}
	return s.repo.List(ctx, filter)
}

// UpdateAttendanceRequest updates an existing attendance record.
type UpdateAttendanceRequest struct {
	IsPresent   *bool   `json:"isPresent"`
	Notes       *string `json:"notes"`
	SessionDate *string `json:"sessionDate"`
}

// Update applies the provided fields to an attendance record.
func (s *AttendanceService) Update(ctx context.Context, id string, req UpdateAttendanceRequest) (*models.AttendanceRecord, error) {
	rec, err := s.findExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.IsPresent != nil {
		rec.IsPresent = *req.IsPresent
	}
	if req.Notes != nil {
		rec.Notes = req.Notes
	}
	if req.SessionDate != nil {
		date, err := datewindow.ParseDate(*req.SessionDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "sessionDate must be YYYY-MM-DD")
		}
		start, _ := datewindow.Day(date)
		rec.SessionDate = start
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, fmt.Sprintf("history:attendance:%s:*", rec.ClassID))

	records, err := s.repo.FindRecordsByIDs(ctx, []string{rec.ID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	return &records[0], nil
}

// Delete soft deletes an attendance record.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	rec, err := s.findExisting(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, rec.ID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, fmt.Sprintf("history:attendance:%s:*", rec.ClassID))
	return nil
}

func (s *AttendanceService) findExisting(ctx context.Context, id string) (*models.Attendance, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, err
	}
	if rec.IsDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	return rec, nil
}

// MonthlyHistory aggregates a class's attendance for one calendar month
// into a per-student, per-day matrix.
func (s *AttendanceService) MonthlyHistory(ctx context.Context, classID, month string) (*models.AttendanceHistory, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	ref, err := datewindow.ParseMonth(month)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be YYYY-MM")
	}
	if _, err := loadActiveClass(ctx, s.classes, classID); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("history:attendance:%s:%s", classID, month)
	var cached models.AttendanceHistory
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	start, end := datewindow.Month(ref)
	rows, err := s.repo.List(ctx, models.AttendanceFilter{
		ClassID:   classID,
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		return nil, err
	}

	history := buildAttendanceHistory(classID, month, rows)
	s.cache.Set(ctx, cacheKey, history)
	return history, nil
}

func buildAttendanceHistory(classID, month string, rows []models.AttendanceRecord) *models.AttendanceHistory {
	history := &models.AttendanceHistory{
		ClassID:  classID,
		Month:    month,
		Days:     []string{},
		Students: map[string]*models.StudentAttendanceHistory{},
	}

	daySet := map[string]struct{}{}
	for _, rec := range rows {
		day := datewindow.DayKey(rec.SessionDate)
		daySet[day] = struct{}{}

		student, ok := history.Students[rec.StudentID]
		if !ok {
			student = &models.StudentAttendanceHistory{
				StudentID:   rec.StudentID,
				StudentName: rec.StudentName,
				Days:        map[string]models.AttendanceDayCell{},
			}
			history.Students[rec.StudentID] = student
		}
		student.Days[day] = models.AttendanceDayCell{Present: rec.IsPresent, Notes: rec.Notes}
	}

	for day := range daySet {
		history.Days = append(history.Days, day)
	}
	sort.Strings(history.Days)

	for _, student := range history.Students {
		student.RecordedDays = len(student.Days)
		student.PresentDays = 0
		for _, cell := range student.Days {
			if cell.Present {
				student.PresentDays++
			}
		}
		if student.RecordedDays > 0 {
			student.Rate = float64(student.PresentDays) / float64(student.RecordedDays) * 100
		}
	}

	return history
}

// ExportHistory renders the monthly attendance matrix as CSV or PDF.
func (s *AttendanceService) ExportHistory(ctx context.Context, classID, month, format string) ([]byte, string, string, error) {
	history, err := s.MonthlyHistory(ctx, classID, month)
	if err != nil {
		return nil, "", "", err
	}

	headers := append([]string{"Student"}, history.Days...)
	headers = append(headers, "Present", "Recorded", "Rate")

	students := make([]*models.StudentAttendanceHistory, 0, len(history.Students))
	for _, student := range history.Students {
		students = append(students, student)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].StudentName != students[j].StudentName {
			return students[i].StudentName < students[j].StudentName
		}
		return students[i].StudentID < students[j].StudentID
	})

	rows := make([]map[string]string, 0, len(students))
	for _, student := range students {
		row := map[string]string{"Student": student.StudentName}
		for _, day := range history.Days {
			cell, recorded := student.Days[day]
			switch {
			case !recorded:
				row[day] = ""
			case cell.Present:
				row[day] = "P"
			default:
				row[day] = "A"
			}
		}
		row["Present"] = fmt.Sprintf("%d", student.PresentDays)
		row["Recorded"] = fmt.Sprintf("%d", student.RecordedDays)
		row["Rate"] = fmt.Sprintf("%.1f%%", student.Rate)
		rows = append(rows, row)
	}

	dataset := export.Dataset{Headers: headers, Rows: rows}
	switch format {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", err
		}
		return payload, fmt.Sprintf("attendance-%s-%s.csv", classID, month), "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Attendance %s", month))
		if err != nil {
			return nil, "", "", err
		}
		return payload, fmt.Sprintf("attendance-%s-%s.pdf", classID, month), "application/pdf", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
