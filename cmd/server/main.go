// @title          Notification API
// @version        1.0
// @description    Member notifications, delivery settings, live event stream and operator tools.
// @description
// @description    Members are identified by the X-Member-ID header set by the gateway; operator
// @description    routes also require X-Member-Role: ROLE_ADMIN.
// @host           localhost:8080
// @BasePath       /
// @schemes        http
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-notification-backend/docs"
	"github.com/tbourn/go-notification-backend/internal/config"
	httpapi "github.com/tbourn/go-notification-backend/internal/http"
	"github.com/tbourn/go-notification-backend/internal/intake"
	"github.com/tbourn/go-notification-backend/internal/livepush"
	"github.com/tbourn/go-notification-backend/internal/observability"
	"github.com/tbourn/go-notification-backend/internal/repo"
	"github.com/tbourn/go-notification-backend/internal/services"
	"github.com/tbourn/go-notification-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load(".env", "../../.env")

	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)
	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	registry := livepush.NewRegistry(livepush.Options{
		Timeout:      cfg.SSE.Timeout,
		WriteTimeout: cfg.SSE.WriteTimeout,
	})

	var background sync.WaitGroup

	idem := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	background.Add(1)
	go func() {
		defer background.Done()
		idem.RunJanitor(ctx, time.Hour)
	}()

	if cfg.Kafka.Enabled {
		for _, c := range buildConsumers(db, registry, cfg) {
			background.Add(1)
			go func(c *intake.Consumer) {
				defer background.Done()
				if err := c.Run(ctx); err != nil {
					log.Error().Err(err).Msg("consumer stopped with error")
				}
			}(c)
		}
		log.Info().Strs("topics", intake.Topics).Strs("brokers", cfg.Kafka.Brokers).Msg("event intake started")
	} else {
		log.Warn().Msg("event intake disabled (KAFKA_ENABLED=false)")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, registry, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Streams block Shutdown until they end, so close them first.
	registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	background.Wait()
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
