package service

import (
	"context"

	"github.com/classdesk/classdesk-api/internal/models"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
)

// enrollmentRepository abstracts enrollment persistence.
type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	ActiveStudentIDs(ctx context.Context, classID string) ([]string, error)
}

// EnrollmentService exposes the roster views used by the UI.
type EnrollmentService struct {
	repo enrollmentRepository
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository) *EnrollmentService {
	return &EnrollmentService{repo: repo}
}

// List returns enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	if filter.Status != "" {
		switch filter.Status {
		case models.EnrollmentStatusActive, models.EnrollmentStatusInactive, models.EnrollmentStatusDeleted:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status")
		}
	}
	return s.repo.List(ctx, filter)
}
