package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/pkg/datewindow"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
)

// tuteRepository abstracts tute material persistence.
type tuteRepository interface {
	List(ctx context.Context, filter models.TuteFilter) ([]models.Tute, error)
	FindByID(ctx context.Context, id string) (*models.Tute, error)
	Create(ctx context.Context, tute *models.Tute) error
	Update(ctx context.Context, tute *models.Tute) error
	SoftDelete(ctx context.Context, id string) error
}

// tuteAssignmentRepository abstracts assignment persistence.
type tuteAssignmentRepository interface {
	ListForStudentInWindow(ctx context.Context, studentID, classID string, start, end time.Time) ([]models.TuteAssignment, error)
	ListByClassInWindow(ctx context.Context, classID string, start, end time.Time) ([]models.TuteAssignmentRecord, error)
	SyncBatch(ctx context.Context, inserts []models.TuteAssignment, deleteIDs []string) error
	AssignBatch(ctx context.Context, inserts []models.TuteAssignment) error
}

// TuteService manages tute materials and the assignment reconciliation
// flows.
type TuteService struct {
	tutes       tuteRepository
	assignments tuteAssignmentRepository
	classes     classReader
	roster      rosterReader
	cache       *CacheService
	metrics     *MetricsService
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewTuteService constructs the tute service.
func NewTuteService(tutes tuteRepository, assignments tuteAssignmentRepository, classes classReader, roster rosterReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *TuteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TuteService{
		tutes:       tutes,
		assignments: assignments,
		classes:     classes,
		roster:      roster,
		cache:       cache,
		metrics:     metrics,
		validate:    validator.New(),
		logger:      logger,
	}
}

// SyncAssignmentsRequest replaces one student's assignment set for the
// month containing Date.
type SyncAssignmentsRequest struct {
	ClassID   string   `json:"classId" validate:"required"`
	StudentID string   `json:"studentId" validate:"required"`
	TuteIDs   []string `json:"tuteIds"`
	Date      string   `json:"date" validate:"required"`
}

// SyncAssignmentsResult reports what the sync did.
type SyncAssignmentsResult struct {
	Assigned int  `json:"assigned"`
	Removed  int  `json:"removed"`
	Skipped  bool `json:"skipped"`
}

// SyncAssignments makes the student's assignment set for the month equal
// to the requested tute ids. Assignments outside the month window are
// never removed, and a (student, tute) pair that already exists anywhere
// is left untouched. A student outside the active roster is skipped
// without error.
func (s *TuteService) SyncAssignments(ctx context.Context, req SyncAssignmentsRequest) (*SyncAssignmentsResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sync payload")
	}
	date, err := datewindow.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	if _, err := loadActiveClass(ctx, s.classes, req.ClassID); err != nil {
		return nil, err
	}
	roster, err := rosterSet(ctx, s.roster, req.ClassID)
	if err != nil {
		return nil, err
	}
	if _, enrolled := roster[req.StudentID]; !enrolled {
		s.logger.Info("sync skipped for unenrolled student",
			zap.String("class_id", req.ClassID),
			zap.String("student_id", req.StudentID))
		return &SyncAssignmentsResult{Skipped: true}, nil
	}

	start, end := datewindow.Month(date)
	existing, err := s.assignments.ListForStudentInWindow(ctx, req.StudentID, req.ClassID, start, end)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(req.TuteIDs))
	desired := make(map[string]struct{}, len(req.TuteIDs))
	for _, tuteID := range req.TuteIDs {
		if _, seen := desired[tuteID]; !seen {
			order = append(order, tuteID)
		}
		desired[tuteID] = struct{}{}
	}

	deleteIDs := []string{}
	for _, assignment := range existing {
		if _, keep := desired[assignment.TuteID]; !keep {
			deleteIDs = append(deleteIDs, assignment.ID)
		}
	}

	inserts := make([]models.TuteAssignment, 0, len(order))
	for _, tuteID := range order {
		inserts = append(inserts, models.TuteAssignment{
			StudentID:  req.StudentID,
			ClassID:    req.ClassID,
			TuteID:     tuteID,
			AssignedAt: date,
		})
	}

	s.metrics.ObserveBatch("tute_sync", len(inserts)+len(deleteIDs))
	if err := s.assignments.SyncBatch(ctx, inserts, deleteIDs); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, fmt.Sprintf("tutes:assignments:%s:*", req.ClassID))
	s.logger.Info("assignments synced",
		zap.String("class_id", req.ClassID),
		zap.String("student_id", req.StudentID),
		zap.String("month", datewindow.MonthKey(date)),
		zap.Int("desired", len(inserts)),
		zap.Int("removed", len(deleteIDs)))

	return &SyncAssignmentsResult{Assigned: len(inserts), Removed: len(deleteIDs)}, nil
}

// AssignTuteRequest assigns one tute to a set of students. An empty
// student list targets the full active roster.
type AssignTuteRequest struct {
	ClassID  string   `json:"classId" validate:"required"`
	TuteID   string   `json:"tuteId" validate:"required"`
	Students []string `json:"students"`
	Date     string   `json:"date"`
}

// AssignTuteResult reports how many students were targeted and which
// entries were skipped.
type AssignTuteResult struct {
	Assigned int      `json:"assigned"`
	Skipped  []string `json:"skipped,omitempty"`
}

// AssignTute idempotently assigns a tute to the requested students.
// Students outside the active roster are skipped, and pairs that already
// exist are left untouched.
func (s *TuteService) AssignTute(ctx context.Context, req AssignTuteRequest) (*AssignTuteResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assign payload")
	}
	if _, err := loadActiveClass(ctx, s.classes, req.ClassID); err != nil {
		return nil, err
	}
	if _, err := s.findExistingTute(ctx, req.TuteID); err != nil {
		return nil, err
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := datewindow.ParseDate(req.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
		}
		date = parsed
	}

	rosterIDs, err := s.roster.ActiveStudentIDs(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}

	targets := rosterIDs
	skipped := []string{}
	if len(req.Students) > 0 {
		roster := make(map[string]struct{}, len(rosterIDs))
		for _, id := range rosterIDs {
			roster[id] = struct{}{}
		}
		targets = make([]string, 0, len(req.Students))
		seen := make(map[string]struct{}, len(req.Students))
		for _, studentID := range req.Students {
			if _, dup := seen[studentID]; dup {
				continue
			}
			seen[studentID] = struct{}{}
			if _, enrolled := roster[studentID]; !enrolled {
				skipped = append(skipped, studentID)
				continue
			}
			targets = append(targets, studentID)
		}
	}

	inserts := make([]models.TuteAssignment, 0, len(targets))
	for _, studentID := range targets {
		inserts = append(inserts, models.TuteAssignment{
			StudentID:  studentID,
			ClassID:    req.ClassID,
			TuteID:     req.TuteID,
			AssignedAt: date,
		})
	}

	s.metrics.ObserveBatch("tute_assign", len(inserts))
	if err := s.assignments.AssignBatch(ctx, inserts); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, fmt.Sprintf("tutes:assignments:%s:*", req.ClassID))
	s.logger.Info("tute assigned",
		zap.String("class_id", req.ClassID),
		zap.String("tute_id", req.TuteID),
		zap.Int("assigned", len(inserts)),
		zap.Int("skipped", len(skipped)))

	return &AssignTuteResult{Assigned: len(inserts), Skipped: skipped}, nil
}

// MonthAssignments returns the materials and assignment rows for a class
// month, shaped for the monthly grid.
func (s *TuteService) MonthAssignments(ctx context.Context, classID, month, grade string) (*models.MonthAssignments, error) {
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

	cacheKey := fmt.Sprintf("tutes:assignments:%s:%s:%s", classID, month, grade)
	var cached models.MonthAssignments
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	tutes, err := s.tutes.List(ctx, models.TuteFilter{Grade: grade, Month: month})
	if err != nil {
		return nil, err
	}

	start, end := datewindow.Month(ref)
	assignments, err := s.assignments.ListByClassInWindow(ctx, classID, start, end)
	if err != nil {
		return nil, err
	}

	result := &models.MonthAssignments{
		ClassID:     classID,
		Month:       month,
		Tutes:       tutes,
		Assignments: assignments,
	}
	s.cache.Set(ctx, cacheKey, result)
	return result, nil
}

// CreateTuteRequest creates a tute material.
type CreateTuteRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
	Grade       string  `json:"grade" validate:"required"`
	Month       string  `json:"month" validate:"required"`
	FileURL     *string `json:"fileUrl"`
	FileName    *string `json:"fileName"`
}

// CreateMaterial stores a new tute material.
func (s *TuteService) CreateMaterial(ctx context.Context, actorID string, req CreateTuteRequest) (*models.Tute, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tute payload")
	}
	if _, err := datewindow.ParseMonth(req.Month); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be YYYY-MM")
	}

	tute := &models.Tute{
		Title:       req.Title,
		Description: req.Description,
		Grade:       req.Grade,
		Month:       req.Month,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
		CreatedBy:   actorID,
	}
	if err := s.tutes.Create(ctx, tute); err != nil {
		return nil, err
	}
	return tute, nil
}

// ListMaterials returns tute materials for the given filter.
func (s *TuteService) ListMaterials(ctx context.Context, filter models.TuteFilter) ([]models.Tute, error) {
	if filter.Month != "" {
		if _, err := datewindow.ParseMonth(filter.Month); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "month must be YYYY-MM")
		}
	}
	return s.tutes.List(ctx, filter)
}

// GetMaterial returns a tute material by id.
func (s *TuteService) GetMaterial(ctx context.Context, id string) (*models.Tute, error) {
	return s.findExistingTute(ctx, id)
}

// UpdateTuteRequest updates a tute material.
type UpdateTuteRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Grade       *string `json:"grade"`
	Month       *string `json:"month"`
	FileURL     *string `json:"fileUrl"`
	FileName    *string `json:"fileName"`
}

// UpdateMaterial applies the provided fields to a tute material.
func (s *TuteService) UpdateMaterial(ctx context.Context, id string, req UpdateTuteRequest) (*models.Tute, error) {
	tute, err := s.findExistingTute(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title must not be empty")
		}
		tute.Title = *req.Title
	}
	if req.Description != nil {
		tute.Description = req.Description
	}
	if req.Grade != nil {
		tute.Grade = *req.Grade
	}
	if req.Month != nil {
		if _, err := datewindow.ParseMonth(*req.Month); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "month must be YYYY-MM")
		}
		tute.Month = *req.Month
	}
	if req.FileURL != nil {
		tute.FileURL = req.FileURL
	}
	if req.FileName != nil {
		tute.FileName = req.FileName
	}

	if err := s.tutes.Update(ctx, tute); err != nil {
		return nil, err
	}
	return tute, nil
}

// DeleteMaterial soft deletes a tute material. Existing assignments keep
// pointing at the deleted row for history purposes.
func (s *TuteService) DeleteMaterial(ctx context.Context, id string) error {
	tute, err := s.findExistingTute(ctx, id)
	if err != nil {
		return err
	}
	return s.tutes.SoftDelete(ctx, tute.ID)
}

func (s *TuteService) findExistingTute(ctx context.Context, id string) (*models.Tute, error) {
	tute, err := s.tutes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tute not found")
		}
		return nil, err
	}
	if tute.IsDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "tute not found")
	}
	return tute, nil
}
