package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"realestate-leads/scoring"
	"realestate-leads/services"
	"realestate-leads/storage"
)

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": message}})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, scoring.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrDuplicateDeal),
		errors.Is(err, services.ErrIngestRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Internal errors are logged and reported
// with a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		abortWithError(c, status, "internal server error")
		return
	}
	abortWithError(c, status, err.Error())
}

// notFound lifts a storage miss into the service-level sentinel.
func notFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("property: %w", services.ErrNotFound)
	}
	return err
}
