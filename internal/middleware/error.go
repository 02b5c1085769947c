package middleware

import (
	"errors"
	"strconv"

	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle if there are errors
		if len(c.Errors) == 0 {
			return
		}

		// Get the last error
		err := c.Errors.Last().Err
		var appErr *apperrors.AppError

		if !errors.As(err, &appErr) {
			// Unknown error, wrap as Internal
			appErr = apperrors.New(apperrors.ErrInternal, err.Error(), err)
		}

		// Log the error
		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"reason", appErr.Reason,
			"client_ip", c.ClientIP(),
		}
		if p, ok := GetPrincipal(c); ok {
			logFields = append(logFields, "tenant_id", p.TenantID)
		}

		ctx := c.Request.Context()
		if appErr.HTTPStatus >= 500 {
			logger.LogError(ctx, appErr, "Internal Server Error", logFields...)
			// 不向客户端暴露内部错误细节
			appErr = &apperrors.AppError{
				Type:       appErr.Type,
				Message:    "internal error",
				Suggestion: appErr.Suggestion,
				Reason:     appErr.Reason,
				HTTPStatus: appErr.HTTPStatus,
			}
		} else {
			logger.FromContext(ctx).Warn(appErr.Message, logFields...)
		}

		if appErr.RetryAfterSeconds > 0 {
			c.Header("Retry-After", strconv.Itoa(appErr.RetryAfterSeconds))
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.HTTPStatus, appErr)
	}
}
