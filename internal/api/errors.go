package api

import (
	"alcyxob/climb-sim/internal/params"
	"alcyxob/climb-sim/internal/repository"
	"alcyxob/climb-sim/internal/schema"
	"alcyxob/climb-sim/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError maps engine errors to HTTP statuses. Unknown errors are attached to the
// gin context so the request logger records them, and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var violation *schema.Violation
	switch {
	case errors.As(err, &violation):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":    schema.ErrSchemaViolation.Error(),
			"document": violation.Document,
			"errors":   violation.Errors,
		})
	case errors.Is(err, service.ErrEpisodeNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrMissingRecommendation),
		errors.Is(err, service.ErrRecommendationConflict),
		errors.Is(err, service.ErrEpisodeCompleted),
		errors.Is(err, service.ErrStaleEpisode),
		errors.Is(err, service.ErrStepOutOfRange):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidEpisodeOptions):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, params.ErrNoActiveParameterSet):
		abortWithError(c, http.StatusFailedDependency, err.Error())
	case errors.Is(err, repository.ErrWriteBoundaryViolation):
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Internal write boundary violation")
	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
