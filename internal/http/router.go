// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, identity, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; infrastructure clients are injected
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-adoption-backend/internal/auth"
	"github.com/tbourn/go-adoption-backend/internal/config"
	"github.com/tbourn/go-adoption-backend/internal/http/handlers"
	"github.com/tbourn/go-adoption-backend/internal/http/middleware"
	"github.com/tbourn/go-adoption-backend/internal/repo"
	"github.com/tbourn/go-adoption-backend/internal/services"
)

// Infra carries the optional infrastructure clients built by the caller.
// Nil fields disable the feature they back.
type Infra struct {
	// Tokens signs and verifies bearer tokens; nil builds one from cfg.Auth.
	Tokens *auth.TokenManager
	// Notifier delivers application decisions.
	Notifier services.Notifier
	// Images presigns object storage URLs for pet and profile pictures.
	Images services.ImageSigner
	// Redis backs the shared rate limiter when set.
	Redis redis.Cmdable
}

// maxBodyBytes caps request bodies for every endpoint.
const maxBodyBytes = 1 << 20

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers, so that auth failures carry them too
//  8. Authenticate: resolve the bearer token into a principal
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP, bypass on replay; Redis when configured)
//  11. gzip
func RegisterRoutes(r *gin.Engine, db *gorm.DB, infra Infra, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	if infra.Tokens == nil {
		infra.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.Use(middleware.Authenticate(infra.Tokens, cfg.Auth.DevHeader))
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idempotencyLookup(db),
	))
	if infra.Redis != nil {
		rl := middleware.NewRedisRateLimiter(infra.Redis, cfg.RateRPS, cfg.RateBurst, time.Second, middleware.KeyByUserOrIP())
		r.Use(rl.Handler())
	} else {
		rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
		r.Use(rl.Handler())
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/infra
	pets := services.NewPetService(db, infra.Images, cfg.PageSize)
	pets.Locale = language.English
	h := handlers.New(handlers.Deps{
		Users:    &services.UserService{DB: db, Tokens: infra.Tokens, Images: infra.Images},
		Pets:     pets,
		Vaccines: &services.VaccineService{DB: db},
		Applications: &services.ApplicationService{
			DB:             db,
			IdempotencyTTL: cfg.IdempotencyTTL,
			Images:         infra.Images,
			ImageTTL:       cfg.S3.PresignTTL,
		},
		Lifecycle:   &services.LifecycleService{DB: db, Notifier: infra.Notifier},
		PetPageSize: cfg.PageSize,
	})

	user := middleware.RequireUser()
	staff := middleware.RequireStaff()

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Accounts
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.GET("/me", user, h.GetMe)
		api.PUT("/me", user, h.UpdateMe)
		api.POST("/me/image/upload-url", user, h.MyImageUploadURL)

		// Pets
		api.GET("/pets", h.SearchPets)
		api.POST("/pets", user, h.CreatePet)
		api.GET("/pets/mine", user, h.ListMyPets)
		api.GET("/pets/latest", h.LatestPets)
		api.GET("/pets/breeds", h.ListBreeds)
		api.GET("/pets/:id", h.GetPet)
		api.PUT("/pets/:id", user, h.UpdatePet)
		api.DELETE("/pets/:id", user, h.DeletePet)
		api.GET("/pets/:id/pdf", h.PetPDF)
		api.POST("/pets/:id/image/upload-url", user, h.PetImageUploadURL)

		// Applications
		api.POST("/pets/:id/applications", user, h.SubmitApplication)
		api.GET("/applications/mine", user, h.ListMyApplications)
		api.GET("/applications/manage", user, h.ListManagedApplications)
		api.GET("/applications/:id", user, h.GetApplication)
		api.GET("/applications/:id/pdf", user, h.ApplicationPDF)
		api.POST("/applications/:id/approve", user, h.ApproveApplication)
		api.POST("/applications/:id/reject", user, h.RejectApplication)

		// Vaccines
		api.GET("/vaccines", h.ListVaccines)
		api.GET("/vaccines/:id", h.GetVaccine)
		api.POST("/vaccines", staff, h.CreateVaccine)
		api.PUT("/vaccines/:id", staff, h.UpdateVaccine)
		api.DELETE("/vaccines/:id", staff, h.DeleteVaccine)
	}
}

// idempotencyLookup reports whether a live submission record exists for the
// caller, pet, and key. Lookup errors count as a miss.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, petID, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, petID, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return rec != nil, nil
	}
}

var (
	corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderDevUser, middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "Content-Length", "Content-Disposition", "ETag", "Retry-After", handlers.HeaderIdempotencyReplayed}
)

// corsMiddleware allows every origin when origins is empty, and echoes
// allow-listed origins otherwise.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header, for simple health checks.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     corsMethods,
				AllowHeaders:     corsHeaders,
				ExposeHeaders:    corsExpose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody caps the request body size to maxBytes using
// http.MaxBytesReader. Oversized bodies fail at bind time.
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
