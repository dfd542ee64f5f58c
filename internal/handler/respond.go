package handler

import (
	"advisor-app/session-service/internal/models"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError maps domain sentinels onto HTTP statuses so callers always
// get a specific error kind, never a generic failure.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrAdvisorBusy),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrSessionClosed),
		errors.Is(err, models.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func actor(c *gin.Context) (string, string) {
	userID, _ := c.Get("user_id")
	role, _ := c.Get("role")
	id, _ := userID.(string)
	r, _ := role.(string)
	return id, r
}
