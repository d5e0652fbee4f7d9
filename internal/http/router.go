// Package httpapi wires the HTTP transport (Gin) to the tutoring services,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/nexus-reussite/aria-backend/internal/clients/document"
	"github.com/nexus-reussite/aria-backend/internal/clients/generation"
	"github.com/nexus-reussite/aria-backend/internal/clients/ingestion"
	"github.com/nexus-reussite/aria-backend/internal/config"
	"github.com/nexus-reussite/aria-backend/internal/http/handlers"
	"github.com/nexus-reussite/aria-backend/internal/http/middleware"
	"github.com/nexus-reussite/aria-backend/internal/repo"
	"github.com/nexus-reussite/aria-backend/internal/services"
)

// maxChatQueryRunes caps the accepted query length at the service layer.
const maxChatQueryRunes = 2000

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine and returns the orchestrator so the caller can drain its background
// tasks on shutdown.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip (responses only; /metrics excluded)
//  8. Idempotency validator (before rate limiter so replays bypass it)
//  9. Rate limiter (per student/IP)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) *services.Orchestrator {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 8) Idempotency validation; replays skip the rate limiter
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, studentID, key string, now time.Time) (bool, error) {
			return repo.HasIdempotency(ctx, db, studentID, key, now)
		},
	))

	// 9) Token-bucket rate limiter per student/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByStudentOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (allow all when no origins configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Student-ID", middleware.HeaderIdempotencyKey}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (optional)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: clients ← config, services ← clients + db
	orch := &services.Orchestrator{
		DB:                db,
		Contexts:          &services.ContextBuilder{DB: db, HistoryWindow: cfg.HistoryWindow},
		Generator:         generation.New(cfg.Services.LLMBaseURL),
		Documents:         document.New(cfg.Services.PDFBaseURL),
		Ingestor:          ingestion.New(cfg.Services.RAGBaseURL),
		Ingest:            services.IngestionPolicy{MinWords: cfg.Ingest.MinWords, RequireStructure: cfg.Ingest.RequireStructure},
		GenerationTimeout: cfg.Services.GenerationTimeout,
		DocumentTimeout:   cfg.Services.DocumentTimeout,
		IngestionTimeout:  cfg.Services.IngestionTimeout,
		MaxQueryRunes:     maxChatQueryRunes,
	}
	histSvc := &services.HistoryService{DB: db}
	fbSvc := &services.FeedbackService{DB: db}
	h := handlers.New(orch, histSvc, fbSvc, db, cfg.IdempotencyTTL)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/aria/chat", h.PostChat)
		api.GET("/aria/conversations/:subject/messages", h.ListMessages)
		api.POST("/messages/:id/feedback", h.LeaveFeedback)
	}

	return orch
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; oversized bodies error on read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
