package handler

import (
	"net/http"

	"github.com/GoPolymarket/hookgate/internal/config"
	"github.com/GoPolymarket/hookgate/internal/middleware"
	"github.com/GoPolymarket/hookgate/internal/ratelimit"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers and middleware into the public HTTP surface.
type Router struct {
	Config      *config.Config
	Keys        *service.KeyDirectory
	Auditor     service.Auditor
	ReadLimiter *ratelimit.Limiter
	Idempotency middleware.IdempotencyStore

	Ingest    *IngestHandler
	Events    *EventHandler
	Endpoints *EndpointHandler
	Tenants   *TenantHandler
	Audit     *AuditHandler
}

func (rt Router) Engine() *gin.Engine {
	r := gin.New()

	// Global Middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestContext())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "hookgate"})
	})

	// Metrics Endpoint
	if rt.Config.Metrics.Enabled {
		r.GET(rt.Config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.ReadOnlyMiddleware(rt.Config.Server.ReadOnly))

	// ingestion authenticates and signs inside the pipeline
	v1.POST("/events", rt.Ingest.Submit)

	tenant := v1.Group("")
	tenant.Use(middleware.AuthMiddleware(rt.Keys))
	tenant.Use(middleware.RateLimitMiddleware(rt.ReadLimiter, rt.Auditor))
	{
		tenant.GET("/events", rt.Events.List)
		tenant.GET("/endpoints", rt.Endpoints.List)
		tenant.POST("/endpoints", middleware.IdempotencyMiddleware(rt.Idempotency), rt.Endpoints.Create)
		tenant.PATCH("/endpoints/:id", rt.Endpoints.Update)
		tenant.DELETE("/endpoints/:id", rt.Endpoints.Delete)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminMiddleware(rt.Config, rt.Auditor))
	{
		admin.GET("/tenants/:id", rt.Tenants.Get)
		admin.POST("/tenants/:id/plan", rt.Tenants.ChangePlan)
		admin.GET("/audit", rt.Audit.List)
	}

	return r
}
