package middleware

import (
	"errors"

	apiError "approval-workflow/internal/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			var apiErr *apiError.APIError

			// if it's our custom APIError
			if !errors.As(err, &apiErr) {
				// If it's a raw error we didn't wrap, treat as Internal
				apiErr = apiError.Internal(err)
			}

			fields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Int("status", apiErr.Status),
				zap.String("code", string(apiErr.Code)),
			}
			if apiErr.Internal != nil {
				fields = append(fields, zap.Error(apiErr.Internal))
			}
			if apiErr.Status >= 500 {
				logger.Error(apiErr.Message, fields...)
			} else {
				logger.Info(apiErr.Message, fields...)
			}

			if apiErr.Retryable() {
				c.Header("Retry-After", "0")
			}
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
		}
	}
}
