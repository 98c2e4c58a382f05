// Command server runs the pet adoption HTTP API.
//
// @title                       Pet Adoption API
// @version                     1.0
// @description                 Pet listings, adoption applications and their approval workflow.
// @license.name                MIT
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	_ "github.com/tbourn/go-adoption-backend/docs"
	"github.com/tbourn/go-adoption-backend/internal/auth"
	"github.com/tbourn/go-adoption-backend/internal/config"
	httpapi "github.com/tbourn/go-adoption-backend/internal/http"
	"github.com/tbourn/go-adoption-backend/internal/notify"
	"github.com/tbourn/go-adoption-backend/internal/observability"
	"github.com/tbourn/go-adoption-backend/internal/repo"
	"github.com/tbourn/go-adoption-backend/internal/storage"
	"github.com/tbourn/go-adoption-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	logger := sysutil.ConfigureLogger(os.Stderr, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	if err := repo.Instrument(db); err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	secret, generated := sysutil.SigningSecret(cfg.Auth.JWTSecret)
	if generated {
		logger.Warn().Msg("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}

	infra := httpapi.Infra{Tokens: auth.NewTokenManager(secret, cfg.Auth.TokenTTL)}

	if infra.Notifier, err = notify.FromConfig(ctx, cfg, logger); err != nil {
		return err
	}

	if cfg.S3.Bucket != "" {
		images, err := storage.NewS3Presigner(ctx, cfg.S3, cfg.AWSRegion)
		if err != nil {
			return err
		}
		infra.Images = images
	} else {
		logger.Info().Msg("S3_BUCKET not set; image uploads disabled")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; rate limiter fails open until it recovers")
		}
		infra.Redis = client
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, infra, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("db", cfg.DB.Driver).
			Str("notify", cfg.Notify.Driver).
			Bool("swagger", cfg.SwaggerEnabled).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
