package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/classdesk/classdesk-api/internal/models"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
)

// classReader exposes the class lookups the reconcilers need.
type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// rosterReader exposes the active roster for a class. Every reconciler
// gates its entries on this roster.
type rosterReader interface {
	ActiveStudentIDs(ctx context.Context, classID string) ([]string, error)
}

// loadActiveClass fetches a class and rejects missing or soft-deleted ones.
func loadActiveClass(ctx context.Context, classes classReader, classID string) (*models.Class, error) {
	class, err := classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, err
	}
	if class.IsDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return class, nil
}

// rosterSet loads the active roster as a membership set.
func rosterSet(ctx context.Context, roster rosterReader, classID string) (map[string]struct{}, error) {
	ids, err := roster.ActiveStudentIDs(ctx, classID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
