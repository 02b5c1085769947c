package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/hookgate/internal/config"
	"github.com/GoPolymarket/hookgate/internal/handler"
	"github.com/GoPolymarket/hookgate/internal/middleware"
	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/notify"
	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/GoPolymarket/hookgate/internal/ratelimit"
	"github.com/GoPolymarket/hookgate/internal/repository"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/GoPolymarket/hookgate/internal/signer"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type stores struct {
	tenants   service.TenantStore
	keys      service.KeyStore
	events    service.EventStore
	endpoints service.EndpointStore
	audit     service.AuditRepo
}

func main() {
	// 0. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 1. Initialize Logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(gin.ReleaseMode)

	// 2. Initialize Persistence
	// Records (Postgres > Memory)
	var st stores
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		if cfg.Database.AutoMigrate {
			if err := repository.Migrate(db); err != nil {
				log.Fatalf("Failed to migrate DB: %v", err)
			}
		}
		logger.Info("✅ Connected to PostgreSQL")
		st = stores{
			tenants:   repository.NewPostgresTenantRepo(db),
			keys:      repository.NewPostgresKeyRepo(db),
			events:    repository.NewPostgresEventRepo(db),
			endpoints: repository.NewPostgresEndpointRepo(db),
			audit:     repository.NewPostgresAuditRepo(db),
		}
	} else {
		logger.Warn("⚠️ No database configured, records are kept in memory")
		keys := repository.NewMemoryKeyRepo()
		st = stores{
			tenants:   repository.NewMemoryTenantRepo(keys),
			keys:      keys,
			events:    repository.NewMemoryEventRepo(),
			endpoints: repository.NewMemoryEndpointRepo(),
			audit:     repository.NewMemoryAuditRepo(cfg.Redis.AuditListMax),
		}
	}

	// Counters, audit trail and idempotency records (Redis > Memory)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
			redisClient = nil
		}
	}

	var (
		limiterStore     ratelimit.Store
		idempotencyStore middleware.IdempotencyStore
	)
	if redisClient != nil {
		if cfg.RateLimit.Backend == "redis" {
			limiterStore = ratelimit.NewRedisStore(redisClient, nil)
		}
		if cfg.Database.DSN == "" {
			st.audit = repository.NewRedisAuditRepo(redisClient, cfg.Redis.AuditListPrefix, cfg.Redis.AuditListMax)
		}
		idempotencyStore = repository.NewRedisIdempotencyStore(redisClient, cfg.Idempotency.TTL(), cfg.Idempotency.LockTTL())
	}
	if limiterStore == nil {
		limiterStore = ratelimit.NewMemoryStore(ratelimit.MemoryConfig{MaxKeys: cfg.RateLimit.MaxKeys})
	}
	if idempotencyStore == nil {
		idempotencyStore = middleware.NewInMemIdempotencyStore(cfg.Idempotency.TTL(), cfg.Idempotency.LockTTL())
	}

	// Delivery notices (NATS > none)
	var notifier notify.Notifier = notify.Noop{}
	if cfg.NATS.URL != "" {
		n, err := notify.NewNATSNotifier(notify.Config{URL: cfg.NATS.URL, Subject: cfg.NATS.Subject, Name: "hookgate"})
		if err == nil {
			logger.Info("✅ Connected to NATS")
			notifier = n
		} else {
			logger.Error("⚠️ Failed to connect to NATS, delivery notices disabled", "error", err)
		}
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := service.Seed(bootCtx, st.tenants, st.keys, st.endpoints, cfg.Tenants); err != nil {
		log.Fatalf("Failed to seed tenants: %v", err)
	}
	bootCancel()

	// 3. Initialize Core Services
	auditSvc := service.NewAuditService(st.audit, cfg.Audit.Buffer)

	ceilings := map[model.Plan]int{
		model.PlanFree: cfg.RateLimit.Free,
		model.PlanPro:  cfg.RateLimit.Pro,
		model.PlanTeam: cfg.RateLimit.Team,
	}
	ingestLimiter := ratelimit.NewLimiter(limiterStore, ratelimit.Options{
		Window:     cfg.RateLimit.Window(),
		Ceilings:   ceilings,
		FailClosed: cfg.RateLimit.FailClosed,
		Prefix:     "ratelimit",
	})
	readLimiter := ratelimit.NewLimiter(limiterStore, ratelimit.Options{
		Window:     cfg.RateLimit.Window(),
		Ceilings:   ceilings,
		FailClosed: cfg.RateLimit.FailClosed,
		Prefix:     "ratelimit:read",
	})

	scheme, err := signer.ParseScheme(cfg.Signature.Scheme)
	if err != nil {
		log.Fatalf("Invalid signature scheme: %v", err)
	}
	validator, err := service.NewSubmissionValidator()
	if err != nil {
		log.Fatalf("Failed to compile submission schema: %v", err)
	}

	forwarder := service.NewForwarder(st.endpoints, st.events, notifier, service.ForwarderConfig{
		Timeout:          cfg.Forwarding.Timeout(),
		MaxAttempts:      cfg.Forwarding.MaxAttempts,
		Backoff:          cfg.Forwarding.Backoff(),
		UserAgent:        cfg.Forwarding.UserAgent,
		MaxResponseBytes: cfg.Forwarding.MaxResponseBytes,
	})

	keyDir := service.NewKeyDirectory(st.keys, auditSvc)
	ingestSvc := service.NewIngestService(
		keyDir,
		signer.NewVerifier(scheme, cfg.Signature.Tolerance()),
		validator,
		service.NewIdempotencyGuard(st.events),
		st.tenants,
		st.events,
		service.NewUsageGate(ingestLimiter, auditSvc, cfg.Billing.UpgradeURL),
		auditSvc,
		forwarder,
	)

	// 4. Initialize Handlers
	// 5. Setup Router
	r := handler.Router{
		Config:      cfg,
		Keys:        keyDir,
		Auditor:     auditSvc,
		ReadLimiter: readLimiter,
		Idempotency: idempotencyStore,
		Ingest:      handler.NewIngestHandler(ingestSvc),
		Events:      handler.NewEventHandler(service.NewEventService(st.events, st.tenants)),
		Endpoints:   handler.NewEndpointHandler(service.NewEndpointService(st.endpoints, net.DefaultResolver)),
		Tenants:     handler.NewTenantHandler(service.NewTenantService(st.tenants)),
		Audit:       handler.NewAuditHandler(auditSvc),
	}.Engine()

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("🚀 HookGate started", "port", cfg.Server.Port, "scheme", string(scheme), "read_only", cfg.Server.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	// 等待在途投递完成
	if err := forwarder.Stop(ctx); err != nil {
		logger.Warn("in-flight deliveries cancelled", "error", err)
	}
	if err := auditSvc.Close(ctx); err != nil {
		logger.Warn("audit queue not fully drained", "error", err)
	}
	if err := notifier.Close(); err != nil {
		logger.Warn("notifier close failed", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("Server exiting")
}
