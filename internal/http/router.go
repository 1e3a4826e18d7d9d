// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, member authentication, idempotency,
// and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Event streams bypass compression, latency histograms and rate limits
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

	"github.com/tbourn/go-notification-backend/internal/config"
	"github.com/tbourn/go-notification-backend/internal/http/handlers"
	"github.com/tbourn/go-notification-backend/internal/http/middleware"
	"github.com/tbourn/go-notification-backend/internal/livepush"
	"github.com/tbourn/go-notification-backend/internal/services"
)

// BasePath is the prefix of every notification route.
const BasePath = "/api/notifications"

// StreamPath is the registered route of the live event stream.
const StreamPath = BasePath + "/stream"

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. push serves live streams and receives operator resends.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger (redacting unless LOG_REDACT=false)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics (streams tracked by gauge only)
//  7. Gzip (streams excluded)
//  8. CORS and Security headers
//
// Per group: MemberAuth, then for operators RequireRole and the idempotency
// validator, and finally the rate limiter so replays can bypass it.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, push *livepush.Registry, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging, with redaction by default
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{middleware.HeaderIdempotencyKey},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(StreamPath))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression; a gzip writer would buffer events
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{StreamPath, "/metrics"})))

	// 8) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", "Last-Event-ID",
		middleware.HeaderMemberID, middleware.HeaderMemberRole, middleware.HeaderIdempotencyKey,
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
		StreamPaths:  []string{StreamPath},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "streams": push.Len()})
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/registry
	idem := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	h := handlers.New(handlers.Deps{
		Notifications: services.NewNotificationService(db, cfg.RecentLimit),
		Settings:      &services.SettingService{DB: db},
		Templates:     services.NewTemplateService(db),
		Admin:         &services.AdminService{DB: db, Pusher: push},
		Idempotency:   idem,
		Stream:        push,
	})

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByMemberOrIP()).SkipPaths(StreamPath)

	// Operator API. Static segments win over the member /:id routes.
	admin := r.Group(BasePath,
		middleware.MemberAuth(),
		middleware.RequireRole(middleware.RoleAdmin),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 200},
			func(ctx context.Context, memberID int64, scope, key string, _ time.Time) (bool, error) {
				rec, err := idem.Lookup(ctx, memberID, scope, key)
				if err != nil || rec == nil {
					return false, nil
				}
				return true, nil
			},
		),
		rl.Handler(),
	)
	{
		admin.POST("/templates", h.CreateTemplate)
		admin.GET("/templates", h.ListTemplates)
		admin.PATCH("/templates/:id", h.UpdateTemplate)
		admin.DELETE("/templates/:id", h.DeleteTemplate)
		admin.POST("/resend/:id", h.Resend)
		admin.GET("/search", h.Search)
		admin.DELETE("/stream/:memberId", h.DisconnectStream)
	}

	// Member API
	member := r.Group(BasePath, middleware.MemberAuth(), rl.Handler())
	{
		member.GET("", h.ListRecent)
		member.GET("/unread-count", h.UnreadCount)
		member.GET("/settings", h.GetSettings)
		member.PATCH("/settings", h.UpdateSetting)
		member.GET("/stream", h.Stream)
		member.POST("/read", h.MarkRead)
		member.GET("/:id", h.GetNotification)
		member.DELETE("/:id", h.DeleteNotification)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
