package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classdesk/classdesk-api/internal/middleware"
	"github.com/classdesk/classdesk-api/internal/models"
	"github.com/classdesk/classdesk-api/pkg/datewindow"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
)

// actor returns the authenticated claims or an unauthorized error when the
// route is reached without them.
func actor(c *gin.Context) (*models.JWTClaims, error) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	return claims, nil
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := datewindow.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, name+" must be YYYY-MM-DD")
	}
	return &parsed, nil
}
