package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classdesk/classdesk-api/internal/models"
)

// TuteAssignmentRepository handles persistence of tute assignments. The
// table carries a UNIQUE (student_id, tute_id) constraint spanning all
// classes and months; inserts rely on it for insert-only-if-absent
// semantics.
type TuteAssignmentRepository struct {
	db *sqlx.DB
}

// NewTuteAssignmentRepository constructs the repository.
func NewTuteAssignmentRepository(db *sqlx.DB) *TuteAssignmentRepository {
	return &TuteAssignmentRepository{db: db}
}

const assignmentColumns = `id, student_id, class_id, tute_id, assigned_at, status, created_at, updated_at`

// ListForStudentInWindow returns a student's assignments in a class whose
// assigned_at falls inside the given window. The sync flow uses this to
// scope which existing assignments are eligible for removal.
func (r *TuteAssignmentRepository) ListForStudentInWindow(ctx context.Context, studentID, classID string, start, end time.Time) ([]models.TuteAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM tute_assignments
        WHERE student_id = $1 AND class_id = $2 AND assigned_at >= $3 AND assigned_at <= $4`, assignmentColumns)
	var rows []models.TuteAssignment
	if err := r.db.SelectContext(ctx, &rows, query, studentID, classID, start, end); err != nil {
		return nil, fmt.Errorf("list student assignments: %w", err)
	}
	return rows, nil
}

// ListByClassInWindow returns assignment records with display metadata for
// a class within the given window, for the monthly grid.
func (r *TuteAssignmentRepository) ListByClassInWindow(ctx context.Context, classID string, start, end time.Time) ([]models.TuteAssignmentRecord, error) {
	const query = `SELECT ta.id, ta.student_id, ta.class_id, ta.tute_id, ta.assigned_at, ta.status, ta.created_at, ta.updated_at,
        s.full_name AS student_name, t.title AS tute_title
        FROM tute_assignments ta
        JOIN users s ON s.id = ta.student_id
        LEFT JOIN tutes t ON t.id = ta.tute_id
        WHERE ta.class_id = $1 AND ta.assigned_at >= $2 AND ta.assigned_at <= $3
        ORDER BY ta.assigned_at, s.full_name`
	var rows []models.TuteAssignmentRecord
	if err := r.db.SelectContext(ctx, &rows, query, classID, start, end); err != nil {
		return nil, fmt.Errorf("list class assignments: %w", err)
	}
	return rows, nil
}

// SyncBatch inserts the desired assignments and deletes the removed ones in
// a single transaction. Inserts use ON CONFLICT DO NOTHING on
// (student_id, tute_id) so an assignment existing from any month, in any
// class, is left completely untouched.
func (r *TuteAssignmentRepository) SyncBatch(ctx context.Context, inserts []models.TuteAssignment, deleteIDs []string) error {
	if len(inserts) == 0 && len(deleteIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment sync: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := insertAssignments(ctx, tx, inserts); err != nil {
		return err
	}

	const deleteQuery = `DELETE FROM tute_assignments WHERE id = $1`
	for _, id := range deleteIDs {
		if _, err := tx.ExecContext(ctx, deleteQuery, id); err != nil {
			return fmt.Errorf("delete assignment %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment sync: %w", err)
	}
	committed = true
	return nil
}

// AssignBatch idempotently creates assignments for a set of students in a
// single transaction.
func (r *TuteAssignmentRepository) AssignBatch(ctx context.Context, inserts []models.TuteAssignment) error {
	if len(inserts) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := insertAssignments(ctx, tx, inserts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment batch: %w", err)
	}
	committed = true
	return nil
}

func insertAssignments(ctx context.Context, tx *sqlx.Tx, inserts []models.TuteAssignment) error {
	const query = `INSERT INTO tute_assignments (id, student_id, class_id, tute_id, assigned_at, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (student_id, tute_id) DO NOTHING`
	now := time.Now().UTC()
	for i := range inserts {
		rec := &inserts[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.Status == "" {
			rec.Status = models.AssignmentStatusAssigned
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, query, rec.ID, rec.StudentID, rec.ClassID, rec.TuteID, rec.AssignedAt, rec.Status, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("insert assignment %s/%s: %w", rec.StudentID, rec.TuteID, err)
		}
	}
	return nil
}
