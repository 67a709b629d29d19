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

// feeRepository abstracts fee persistence.
type feeRepository interface {
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecord, error)
	FindDayRecords(ctx context.Context, classID string, start, end time.Time) ([]models.Fee, error)
	SaveDayBatch(ctx context.Context, inserts, updates []models.Fee, softDeleteIDs []string) error
	FindRecordsByIDs(ctx context.Context, ids []string) ([]models.FeeRecord, error)
	Create(ctx context.Context, rec *models.Fee) error
	FindByID(ctx context.Context, id string) (*models.Fee, error)
	Update(ctx context.Context, rec *models.Fee) error
	SoftDelete(ctx context.Context, id string) error
}

// FeeService implements the daily fee reconciliation flow, ad hoc fee
// records and the monthly payment history view.
type FeeService struct {
	repo     feeRepository
	classes  classReader
	roster   rosterReader
	cache    *CacheService
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
}

// NewFeeService constructs the fee service.
func NewFeeService(repo feeRepository, classes classReader, roster rosterReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *FeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
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

// BulkFeeEntry is one student entry in a bulk fee marking request.
type BulkFeeEntry struct {
	StudentID string   `json:"student" validate:"required"`
	IsPaid    *bool    `json:"isPaid"`
	Amount    *float64 `json:"amount"`
	Notes     *string  `json:"notes"`
}

// BulkMarkFeesRequest toggles fee payments for a class roster on one
// payment day. Amount is the default applied to entries that carry none.
type BulkMarkFeesRequest struct {
	ClassID     string         `json:"class" validate:"required"`
	PaymentDate string         `json:"paymentDate" validate:"required"`
	Amount      *float64       `json:"amount"`
	Students    []BulkFeeEntry `json:"students" validate:"required,min=1,dive"`
}

// BulkFeeResult carries the saved records plus the entries skipped because
// the student is not actively enrolled.
type BulkFeeResult struct {
	Records []models.FeeRecord `json:"records"`
	Skipped []string           `json:"skipped,omitempty"`
}

// BulkMark reconciles the submitted payment toggles against the records
// already stored for the payment day. A paid entry upserts the day's row,
// an unpaid entry soft deletes it, and the absence of a row is what
// "unpaid" means. The whole batch is written in one transaction.
func (s *FeeService) BulkMark(ctx context.Context, actorID string, req BulkMarkFeesRequest) (*BulkFeeResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk fee payload")
	}
	date, err := datewindow.ParseDate(req.PaymentDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "paymentDate must be YYYY-MM-DD")
	}
	if _, err := loadActiveClass(ctx, s.classes, req.ClassID); err != nil {
		return nil, err
	}
	roster, err := rosterSet(ctx, s.roster, req.ClassID)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(req.Students))
	desired := make(map[string]BulkFeeEntry, len(req.Students))
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
	byStudent := make(map[string]models.Fee, len(existing))
	for _, rec := range existing {
		byStudent[rec.StudentID] = rec
	}

	inserts := []models.Fee{}
	updates := []models.Fee{}
	softDeleteIDs := []string{}
	for _, studentID := range order {
		entry := desired[studentID]
		paid := true
		if entry.IsPaid != nil {
			paid = *entry.IsPaid
		}
		prev, exists := byStudent[studentID]

		if !paid {
			if exists {
				softDeleteIDs = append(softDeleteIDs, prev.ID)
			}
			continue
		}

		amount := 0.0
		if req.Amount != nil {
			amount = *req.Amount
		}
		if entry.Amount != nil {
			amount = *entry.Amount
		}
		if amount < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("amount for student %s must not be negative", studentID))
		}

		if exists {
			notes := prev.Notes
			if entry.Notes != nil {
				notes = entry.Notes
			}
			prev.Amount = amount
			prev.Notes = notes
			prev.RecordedBy = actorID
			updates = append(updates, prev)
			continue
		}
		inserts = append(inserts, models.Fee{
			StudentID:   studentID,
			ClassID:     req.ClassID,
			Amount:      amount,
			PaymentDate: start,
			Status:      models.FeeStatusPaid,
			Notes:       entry.Notes,
			RecordedBy:  actorID,
		})
	}

	s.metrics.ObserveBatch("fees", len(inserts)+len(updates)+len(softDeleteIDs))
	if err := s.repo.SaveDayBatch(ctx, inserts, updates, softDeleteIDs); err != nil {
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

	s.cache.Invalidate(ctx, fmt.Sprintf("history:fees:%s:*", req.ClassID))
	s.logger.Info("fee batch saved",
		zap.String("class_id", req.ClassID),
		zap.String("payment_date", datewindow.DayKey(start)),
		zap.Int("inserted", len(inserts)),
		zap.Int("updated", len(updates)),
		zap.Int("cleared", len(softDeleteIDs)),
		zap.Int("skipped", len(skipped)))

	return &BulkFeeResult{Records: records, Skipped: skipped}, nil
}

// CreateFeeRequest creates an ad hoc fee record outside the daily bulk
// flow.
type CreateFeeRequest struct {
	StudentID   string   `json:"student" validate:"required"`
	ClassID     string   `json:"class" validate:"required"`
	Amount      *float64 `json:"amount" validate:"required"`
	PaymentDate string   `json:"paymentDate"`
	DueDate     *string  `json:"dueDate"`
	Status      string   `json:"status"`
	Notes       *string  `json:"notes"`
}

// Create stores an ad hoc fee record. This path requires an active
// enrollment and does not enforce the one-row-per-day rule of the bulk
// flow.
func (s *FeeService) Create(ctx context.Context, actorID string, req CreateFeeRequest) (*models.FeeRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	if *req.Amount < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must not be negative")
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

	paymentDate := time.Now().UTC()
	if req.PaymentDate != "" {
		parsed, err := datewindow.ParseDate(req.PaymentDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "paymentDate must be YYYY-MM-DD")
		}
		paymentDate = parsed
	}

	var dueDate *time.Time
	if req.DueDate != nil {
		parsed, err := datewindow.ParseDate(*req.DueDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dueDate must be YYYY-MM-DD")
		}
		dueDate = &parsed
	}

	status := models.FeeStatusPaid
	if req.Status != "" {
		switch models.FeeStatus(req.Status) {
		case models.FeeStatusPaid, models.FeeStatusPending:
			status = models.FeeStatus(req.Status)
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be paid or pending")
		}
	}

	rec := &models.Fee{
		StudentID:   req.StudentID,
		ClassID:     req.ClassID,
		Amount:      *req.Amount,
		PaymentDate: paymentDate,
		DueDate:     dueDate,
		Status:      status,
		Notes:       req.Notes,
		RecordedBy:  actorID,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, fmt.Sprintf("history:fees:%s:*", req.ClassID))

	records, err := s.repo.FindRecordsByIDs(ctx, []string{rec.ID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInternal, "fee record not persisted")
	}
	return &records[0], nil
}

// List returns fee records for the given filter.
func (s *FeeService) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecord, error) {
	return s.repo.List(ctx, filter)
}

// UpdateFeeRequest updates an existing fee record.
type UpdateFeeRequest struct {
	Amount      *float64 `json:"amount"`
	PaymentDate *string  `json:"paymentDate"`
	DueDate     *string  `json:"dueDate"`
	Status      *string  `json:"status"`
	Notes       *string  `json:"notes"`
}

// Update applies the provided fields to a fee record.
func (s *FeeService) Update(ctx context.Context, id string, req UpdateFeeRequest) (*models.FeeRecord, error) {
	rec, err := s.findExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Amount != nil {
		if *req.Amount < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "amount must not be negative")
		}
		rec.Amount = *req.Amount
	}
	if req.PaymentDate != nil {
		parsed, err := datewindow.ParseDate(*req.PaymentDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "paymentDate must be YYYY-MM-DD")
		}
		rec.PaymentDate = parsed
	}
	if req.DueDate != nil {
		parsed, err := datewindow.ParseDate(*req.DueDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dueDate must be YYYY-MM-DD")
		}
		rec.DueDate = &parsed
	}
	if req.Status != nil {
		switch models.FeeStatus(*req.Status) {
		case models.FeeStatusPaid, models.FeeStatusPending:
			rec.Status = models.FeeStatus(*req.Status)
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be paid or pending")
		}
	}
	if req.Notes != nil {
		rec.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, fmt.Sprintf("history:fees:%s:*", rec.ClassID))

	records, err := s.repo.FindRecordsByIDs(ctx, []string{rec.ID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
	}
	return &records[0], nil
}

// Delete soft deletes a fee record.
func (s *FeeService) Delete(ctx context.Context, id string) error {
	rec, err := s.findExisting(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, rec.ID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, fmt.Sprintf("history:fees:%s:*", rec.ClassID))
	return nil
}

func (s *FeeService) findExisting(ctx context.Context, id string) (*models.Fee, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
		}
		return nil, err
	}
	if rec.IsDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
	}
	return rec, nil
}

// MonthlyHistory aggregates a class's paid fees for one calendar month
// into a per-student, per-day amount matrix.
func (s *FeeService) MonthlyHistory(ctx context.Context, classID, month string) (*models.FeeHistory, error) {
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

	cacheKey := fmt.Sprintf("history:fees:%s:%s", classID, month)
	var cached models.FeeHistory
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	start, end := datewindow.Month(ref)
	rows, err := s.repo.List(ctx, models.FeeFilter{
		ClassID:   classID,
		Status:    models.FeeStatusPaid,
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		return nil, err
	}

	history := buildFeeHistory(classID, month, rows)
	s.cache.Set(ctx, cacheKey, history)
	return history, nil
}

func buildFeeHistory(classID, month string, rows []models.FeeRecord) *models.FeeHistory {
	history := &models.FeeHistory{
		ClassID:  classID,
		Month:    month,
		Days:     []string{},
		Students: map[string]*models.StudentFeeHistory{},
	}

	daySet := map[string]struct{}{}
	for _, rec := range rows {
		day := datewindow.DayKey(rec.PaymentDate)
		daySet[day] = struct{}{}

		student, ok := history.Students[rec.StudentID]
		if !ok {
			student = &models.StudentFeeHistory{
				StudentID:   rec.StudentID,
				StudentName: rec.StudentName,
				Days:        map[string]float64{},
			}
			history.Students[rec.StudentID] = student
		}
		student.Days[day] += rec.Amount
		student.Total += rec.Amount
	}

	for day := range daySet {
		history.Days = append(history.Days, day)
	}
	sort.Strings(history.Days)

	return history
}

// ExportHistory renders the monthly fee matrix as CSV or PDF.
func (s *FeeService) ExportHistory(ctx context.Context, classID, month, format string) ([]byte, string, string, error) {
	history, err := s.MonthlyHistory(ctx, classID, month)
	if err != nil {
		return nil, "", "", err
	}

	headers := append([]string{"Student"}, history.Days...)
	headers = append(headers, "Total")

	students := make([]*models.StudentFeeHistory, 0, len(history.Students))
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
			if amount, ok := student.Days[day]; ok {
				row[day] = fmt.Sprintf("%.2f", amount)
			} else {
				row[day] = ""
			}
		}
		row["Total"] = fmt.Sprintf("%.2f", student.Total)
		rows = append(rows, row)
	}

	dataset := export.Dataset{Headers: headers, Rows: rows}
	switch format {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", err
		}
		return payload, fmt.Sprintf("fees-%s-%s.csv", classID, month), "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Fees %s", month))
		if err != nil {
			return nil, "", "", err
		}
		return payload, fmt.Sprintf("fees-%s-%s.pdf", classID, month), "application/pdf", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
