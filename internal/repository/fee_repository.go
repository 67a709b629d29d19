package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classdesk/classdesk-api/internal/models"
)

// FeeRepository handles persistence for fee payment records.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

const feeRecordColumns = `f.id, f.student_id, f.class_id, f.amount, f.payment_date, f.due_date, f.status, f.notes, f.recorded_by, f.is_deleted, f.deleted_at, f.created_at, f.updated_at,
        s.full_name AS student_name, c.name AS class_name, rec.full_name AS recorded_by_name`

const feeRecordJoins = `FROM fees f
JOIN users s ON s.id = f.student_id
LEFT JOIN classes c ON c.id = f.class_id
LEFT JOIN users rec ON rec.id = f.recorded_by`

// List returns fee rows matching the provided filter, newest first.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecord, error) {
	where := []string{}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("f.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.StartDate != nil {
		where = append(where, fmt.Sprintf("f.payment_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		where = append(where, fmt.Sprintf("f.payment_date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}
	if !filter.IncludeDeleted {
		where = append(where, "f.is_deleted = FALSE")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s
        %s%s
        ORDER BY f.payment_date DESC, f.created_at DESC`, feeRecordColumns, feeRecordJoins, clause)

	var rows []models.FeeRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	return rows, nil
}

// FindDayRecords returns the non-deleted fee rows for a class whose
// payment_date falls inside the given day window.
func (r *FeeRepository) FindDayRecords(ctx context.Context, classID string, start, end time.Time) ([]models.Fee, error) {
	const query = `SELECT id, student_id, class_id, amount, payment_date, due_date, status, notes, recorded_by, is_deleted, deleted_at, created_at, updated_at
        FROM fees
        WHERE class_id = $1 AND payment_date >= $2 AND payment_date <= $3 AND is_deleted = FALSE`
	var rows []models.Fee
	if err := r.db.SelectContext(ctx, &rows, query, classID, start, end); err != nil {
		return nil, fmt.Errorf("find day fees: %w", err)
	}
	return rows, nil
}

// SaveDayBatch applies the reconciled inserts, updates and soft deletes for
// one payment day in a single transaction.
func (r *FeeRepository) SaveDayBatch(ctx context.Context, inserts, updates []models.Fee, softDeleteIDs []string) error {
	if len(inserts) == 0 && len(updates) == 0 && len(softDeleteIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fee batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO fees (id, student_id, class_id, amount, payment_date, due_date, status, notes, recorded_by, is_deleted, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11)`
	for i := range inserts {
		rec := &inserts[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, insertQuery, rec.ID, rec.StudentID, rec.ClassID, rec.Amount, rec.PaymentDate, rec.DueDate, rec.Status, rec.Notes, rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("insert fee %s: %w", rec.StudentID, err)
		}
	}

	const updateQuery = `UPDATE fees SET amount = $2, notes = $3, recorded_by = $4, updated_at = $5 WHERE id = $1`
	for i := range updates {
		rec := &updates[i]
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, updateQuery, rec.ID, rec.Amount, rec.Notes, rec.RecordedBy, rec.UpdatedAt); err != nil {
			return fmt.Errorf("update fee %s: %w", rec.ID, err)
		}
	}

	const deleteQuery = `UPDATE fees SET is_deleted = TRUE, deleted_at = $2, updated_at = $2 WHERE id = $1`
	for _, id := range softDeleteIDs {
		if _, err := tx.ExecContext(ctx, deleteQuery, id, now); err != nil {
			return fmt.Errorf("soft delete fee %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fee batch: %w", err)
	}
	committed = true
	return nil
}

// FindRecordsByIDs re-reads fee records with display metadata after a batch.
func (r *FeeRepository) FindRecordsByIDs(ctx context.Context, ids []string) ([]models.FeeRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s
        %s
        WHERE f.id IN (%s)
        ORDER BY s.full_name`, feeRecordColumns, feeRecordJoins, strings.Join(placeholders, ","))
	var rows []models.FeeRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find fees by ids: %w", err)
	}
	return rows, nil
}

// Create persists an ad hoc fee record. Unlike the daily batch flow this
// path does not enforce one row per (student, class, day).
func (r *FeeRepository) Create(ctx context.Context, rec *models.Fee) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	const query = `INSERT INTO fees (id, student_id, class_id, amount, payment_date, due_date, status, notes, recorded_by, is_deleted, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :amount, :payment_date, :due_date, :status, :notes, :recorded_by, FALSE, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("create fee: %w", err)
	}
	return nil
}

// FindByID returns a fee row by its ID.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.Fee, error) {
	const query = `SELECT id, student_id, class_id, amount, payment_date, due_date, status, notes, recorded_by, is_deleted, deleted_at, created_at, updated_at
        FROM fees WHERE id = $1`
	var rec models.Fee
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update persists the mutable fields of a fee row.
func (r *FeeRepository) Update(ctx context.Context, rec *models.Fee) error {
	rec.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fees SET amount = $2, payment_date = $3, due_date = $4, status = $5, notes = $6, updated_at = $7 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, rec.ID, rec.Amount, rec.PaymentDate, rec.DueDate, rec.Status, rec.Notes, rec.UpdatedAt); err != nil {
		return fmt.Errorf("update fee: %w", err)
	}
	return nil
}

// SoftDelete marks a fee row as deleted.
func (r *FeeRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE fees SET is_deleted = TRUE, deleted_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("soft delete fee: %w", err)
	}
	return nil
}
