package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/classdesk/classdesk-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with display metadata for the given filter.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	base := `FROM enrollments e
JOIN users s ON s.id = e.student_id
LEFT JOIN classes c ON c.id = e.class_id`
	where := []string{"e.is_deleted = FALSE"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.class_id, e.status, e.joined_at, e.left_at, e.is_deleted, e.deleted_at, e.created_at, e.updated_at,
        s.full_name AS student_name, c.name AS class_name
        %s WHERE %s
        ORDER BY s.full_name`, base, strings.Join(where, " AND "))

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ActiveStudentIDs returns the ids of actively enrolled, non-deleted
// students for a class. Every reconciler gates its entries on this roster.
func (r *EnrollmentRepository) ActiveStudentIDs(ctx context.Context, classID string) ([]string, error) {
	const query = `SELECT student_id FROM enrollments
        WHERE class_id = $1 AND status = $2 AND is_deleted = FALSE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, classID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active roster: %w", err)
	}
	return ids, nil
}
