package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID  = "X-Request-ID"
	ContextRequestID = "request_id"

	maxLoggedBody = 4 << 10
)

// RequestContext tags every request with an id, stores a request-scoped
// logger in the context and writes one access log line per request.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Header(HeaderRequestID, reqID)
		c.Set(ContextRequestID, reqID)

		log := logger.With("request_id", reqID)
		ctx := logger.NewContext(c.Request.Context(), log)
		c.Request = c.Request.WithContext(ctx)

		// 调试级别下记录脱敏后的请求体
		if log.Enabled(ctx, slog.LevelDebug) && logsBody(c.Request.URL.Path) && c.Request.Body != nil {
			body, _ := io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBody+1))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
			if len(body) <= maxLoggedBody {
				log.Debug("request body", "path", c.Request.URL.Path, "body", redactBody(body))
			}
		}

		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if p, ok := GetPrincipal(c); ok {
			fields = append(fields, "tenant_id", p.TenantID)
		}
		log.Info("request completed", fields...)
	}
}

// Ingestion payloads are tenant data and never logged.
func logsBody(path string) bool {
	switch {
	case strings.HasPrefix(path, "/v1/admin"):
		return true
	case strings.HasPrefix(path, "/v1/endpoints"):
		return true
	default:
		return false
	}
}

func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "[redacted]"
	}
	out, err := json.Marshal(redact(data))
	if err != nil {
		return "[redacted]"
	}
	return string(out)
}

// redact masks sensitive keys in place at any depth.
func redact(v any) any {
	switch raw := v.(type) {
	case map[string]any:
		for k, val := range raw {
			if isSensitiveKey(k) {
				raw[k] = "***"
				continue
			}
			raw[k] = redact(val)
		}
	case []any:
		for i, val := range raw {
			raw[i] = redact(val)
		}
	}
	return v
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "api_key",
		"apikey",
		"x-api-key",
		"secret",
		"signature",
		"admin_key",
		"billingcustomerid",
		"billing_customer_id":
		return true
	default:
		return false
	}
}
