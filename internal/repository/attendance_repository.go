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

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceRecordColumns = `a.id, a.student_id, a.class_id, a.session_date, a.is_present, a.notes, a.marked_by, a.is_deleted, a.deleted_at, a.created_at, a.updated_at,
        s.full_name AS student_name, c.name AS class_name, m.full_name AS marked_by_name`

const attendanceRecordJoins = `FROM attendance a
JOIN users s ON s.id = a.student_id
LEFT JOIN classes c ON c.id = a.class_id
LEFT JOIN users m ON m.id = a.marked_by`

// List returns attendance rows matching the provided filter, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	where := []string{}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StartDate != nil {
		where = append(where, fmt.Sprintf("a.session_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		where = append(where, fmt.Sprintf("a.session_date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}
	if !filter.IncludeDeleted {
		where = append(where, "a.is_deleted = FALSE")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s
        %s%s
        ORDER BY a.session_date DESC, a.created_at DESC`, attendanceRecordColumns, attendanceRecordJoins, clause)

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}

// FindDayRecords returns the non-deleted records for a class whose
// session_date falls inside the given day window.
func (r *AttendanceRepository) FindDayRecords(ctx context.Context, classID string, start, end time.Time) ([]models.Attendance, error) {
	const query = `SELECT id, student_id, class_id, session_date, is_present, notes, marked_by, is_deleted, deleted_at, created_at, updated_at
        FROM attendance
        WHERE class_id = $1 AND session_date >= $2 AND session_date <= $3 AND is_deleted = FALSE`
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, classID, start, end); err != nil {
		return nil, fmt.Errorf("find day attendance: %w", err)
	}
	return rows, nil
}

// SaveDayBatch applies the reconciled inserts and updates for one day in a
// single transaction so a partial batch is never observable.
func (r *AttendanceRepository) SaveDayBatch(ctx context.Context, inserts, updates []models.Attendance) error {
	if len(inserts) == 0 && len(updates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO attendance (id, student_id, class_id, session_date, is_present, notes, marked_by, is_deleted, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9)`
	for i := range inserts {
		rec := &inserts[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, insertQuery, rec.ID, rec.StudentID, rec.ClassID, rec.SessionDate, rec.IsPresent, rec.Notes, rec.MarkedBy, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("insert attendance %s: %w", rec.StudentID, err)
		}
	}

	const updateQuery = `UPDATE attendance SET is_present = $2, notes = $3, updated_at = $4 WHERE id = $1`
	for i := range updates {
		rec := &updates[i]
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, updateQuery, rec.ID, rec.IsPresent, rec.Notes, rec.UpdatedAt); err != nil {
			return fmt.Errorf("update attendance %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance batch: %w", err)
	}
	committed = true
	return nil
}

// FindRecordsByIDs re-reads records with display metadata after a batch.
func (r *AttendanceRepository) FindRecordsByIDs(ctx context.Context, ids []string) ([]models.AttendanceRecord, error) {
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
        WHERE a.id IN (%s)
        ORDER BY s.full_name`, attendanceRecordColumns, attendanceRecordJoins, strings.Join(placeholders, ","))
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find attendance by ids: %w", err)
	}
	return rows, nil
}

// FindByID returns an attendance row by its ID.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	const query = `SELECT id, student_id, class_id, session_date, is_present, notes, marked_by, is_deleted, deleted_at, created_at, updated_at
        FROM attendance WHERE id = $1`
	var rec models.Attendance
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update persists the mutable fields of an attendance row.
func (r *AttendanceRepository) Update(ctx context.Context, rec *models.Attendance) error {
	rec.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendance SET is_present = $2, notes = $3, session_date = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, rec.ID, rec.IsPresent, rec.Notes, rec.SessionDate, rec.UpdatedAt); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// SoftDelete marks an attendance row as deleted.
func (r *AttendanceRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE attendance SET is_deleted = TRUE, deleted_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("soft delete attendance: %w", err)
	}
	return nil
}
