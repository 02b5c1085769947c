package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/GoPolymarket/hookgate/internal/config"
	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/gin-gonic/gin"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminMiddleware guards billing and operator routes. Rejected attempts are
// audited as permission_denied.
func AdminMiddleware(cfg *config.Config, audit service.Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || cfg.Auth.AdminKey == "" {
			c.Error(apperrors.New(apperrors.ErrForbidden, "admin key not configured", nil))
			c.Abort()
			return
		}
		given := c.GetHeader(HeaderAdminKey)
		if subtle.ConstantTimeCompare([]byte(given), []byte(cfg.Auth.AdminKey)) != 1 {
			info := RequestInfoFrom(c)
			audit.Record(c.Request.Context(), &model.SecurityAuditEvent{
				Kind:       model.AuditPermissionDenied,
				KeyPrefix:  model.KeyPrefix(given),
				IP:         info.IP,
				UserAgent:  info.UserAgent,
				Path:       info.Path,
				Method:     info.Method,
				StatusCode: http.StatusUnauthorized,
				Error:      "invalid admin key",
			}).Log(c.Request.Context())
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "invalid admin key", nil).WithReason("invalid_admin_key"))
			c.Abort()
			return
		}
		c.Next()
	}
}
