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

// TuteRepository handles persistence of tute materials.
type TuteRepository struct {
	db *sqlx.DB
}

// NewTuteRepository constructs the repository.
func NewTuteRepository(db *sqlx.DB) *TuteRepository {
	return &TuteRepository{db: db}
}

const tuteColumns = `id, title, description, grade, month, file_url, file_name, created_by, is_deleted, deleted_at, created_at, updated_at`

// List returns tute materials matching the provided filter.
func (r *TuteRepository) List(ctx context.Context, filter models.TuteFilter) ([]models.Tute, error) {
	where := []string{}
	args := []interface{}{}
	if filter.Grade != "" {
		where = append(where, fmt.Sprintf("grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Month != "" {
		where = append(where, fmt.Sprintf("month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if !filter.IncludeDeleted {
		where = append(where, "is_deleted = FALSE")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM tutes%s ORDER BY created_at DESC`, tuteColumns, clause)

	var tutes []models.Tute
	if err := r.db.SelectContext(ctx, &tutes, query, args...); err != nil {
		return nil, fmt.Errorf("list tutes: %w", err)
	}
	return tutes, nil
}

// FindByID returns a tute by its ID.
func (r *TuteRepository) FindByID(ctx context.Context, id string) (*models.Tute, error) {
	query := fmt.Sprintf(`SELECT %s FROM tutes WHERE id = $1`, tuteColumns)
	var tute models.Tute
	if err := r.db.GetContext(ctx, &tute, query, id); err != nil {
		return nil, err
	}
	return &tute, nil
}

// Create persists a new tute material.
func (r *TuteRepository) Create(ctx context.Context, tute *models.Tute) error {
	if tute.ID == "" {
		tute.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tute.CreatedAt = now
	tute.UpdatedAt = now
	const query = `INSERT INTO tutes (id, title, description, grade, month, file_url, file_name, created_by, is_deleted, created_at, updated_at)
        VALUES (:id, :title, :description, :grade, :month, :file_url, :file_name, :created_by, FALSE, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tute); err != nil {
		return fmt.Errorf("create tute: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a tute material.
func (r *TuteRepository) Update(ctx context.Context, tute *models.Tute) error {
	tute.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tutes SET title = $2, description = $3, grade = $4, month = $5, file_url = $6, file_name = $7, updated_at = $8 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, tute.ID, tute.Title, tute.Description, tute.Grade, tute.Month, tute.FileURL, tute.FileName, tute.UpdatedAt); err != nil {
		return fmt.Errorf("update tute: %w", err)
	}
	return nil
}

// SoftDelete marks a tute material as deleted.
func (r *TuteRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE tutes SET is_deleted = TRUE, deleted_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("soft delete tute: %w", err)
	}
	return nil
}
