package middleware

import (
	"errors"

	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAPIKey        = "x-api-key"
	HeaderSignature     = "x-signature"
	HeaderTimestamp     = "x-timestamp"
	ContextPrincipalKey = "principal"
)

// AuthMiddleware resolves x-api-key for tenant-scoped read routes.
// Ingestion authenticates inside the pipeline instead.
func AuthMiddleware(dir *service.KeyDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := dir.Authenticate(c.Request.Context(), c.GetHeader(HeaderAPIKey), RequestInfoFrom(c))
		if errors.Is(err, service.ErrInvalidCredential) {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing or invalid API key", nil).WithReason("invalid_credential"))
			c.Abort()
			return
		}
		if err != nil {
			c.Error(apperrors.NewInternal("authentication unavailable", err))
			c.Abort()
			return
		}

		// 将调用方信息存入上下文
		c.Set(ContextPrincipalKey, p)
		c.Next()
	}
}

// GetPrincipal returns the caller set by AuthMiddleware.
func GetPrincipal(c *gin.Context) (*service.Principal, bool) {
	v, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*service.Principal)
	return p, ok
}

// RequestInfoFrom extracts the attributes recorded on audit entries.
func RequestInfoFrom(c *gin.Context) service.RequestInfo {
	return service.RequestInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	}
}
