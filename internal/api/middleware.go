package api

import (
	stderrors "errors"
	"net/http"

	"github.com/SIMPLYBOYS/tweetpulse/internal/errors"
	"github.com/SIMPLYBOYS/tweetpulse/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorMiddleware renders the last error a JSON handler attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var (
			apiErr       *errors.APIError
			notFound     *errors.NotFoundError
			precondition *errors.PreconditionError
			upstream     *errors.UpstreamError
			storageErr   *errors.StorageError
		)
		switch {
		case stderrors.As(err, &apiErr):
			if apiErr.StatusCode >= http.StatusInternalServerError {
				logger.Error("API error: %v", apiErr)
			} else {
				logger.Debug("API error: %v", apiErr)
			}
			c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
		case stderrors.As(err, &notFound):
			c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		case stderrors.As(err, &precondition):
			c.JSON(http.StatusBadRequest, gin.H{"error": precondition.Message})
		case stderrors.As(err, &upstream):
			logger.Error("Upstream error: %v", upstream)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream service unavailable"})
		case stderrors.As(err, &storageErr):
			logger.Error("Storage error: %v", storageErr)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		default:
			logger.Error("Unexpected error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		c.Abort()
	}
}
