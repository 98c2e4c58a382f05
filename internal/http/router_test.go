package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "github.com/tbourn/go-adoption-backend/docs"
	"github.com/tbourn/go-adoption-backend/internal/config"
	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/http/middleware"
	"github.com/tbourn/go-adoption-backend/internal/repo"
)

func init() { gin.SetMode(gin.TestMode) }

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(repo.SQLiteDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		PageSize:       6,
		RateRPS:        100,
		RateBurst:      100,
		IdempotencyTTL: time.Hour,
		Auth:           config.AuthConfig{JWTSecret: "router-test-secret-0123", TokenTTL: time.Hour},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config, infra Infra) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	r := gin.New()
	RegisterRoutes(r, db, infra, cfg)
	return r, db
}

func send(r http.Handler, method, path, token string, body any, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig(), Infra{})

	w := send(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = send(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	w = send(r, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"not_found"`)

	w = send(r, http.MethodPost, "/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = send(r, http.MethodGet, "/swagger/index.html", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "swagger is off by default")
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	r, _ := newRouter(t, cfg, Infra{})

	w := send(r, http.MethodGet, "/health", "", nil, "Origin", "http://example.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://example.com", w.Header().Get("Access-Control-Allow-Origin"))

	// auth failures still carry CORS headers
	w = send(r, http.MethodGet, "/api/v1/me", "garbage", nil, "Origin", "http://example.com")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "http://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ := newRouter(t, cfg, Infra{})

	w := send(r, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Pet Adoption API")
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	r, _ := newRouter(t, testConfig(), Infra{})
	w := send(r, http.MethodGet, "/api/v1/vaccines", "", nil, "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

// End to end: register, log in, list a pet, apply twice with the same key,
// and approve.
func TestRegisterRoutes_AdoptionFlow(t *testing.T) {
	r, db := newRouter(t, testConfig(), Infra{})

	login := func(name string) (string, string) {
		w := send(r, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"username": name, "email": name + "@example.com", "password": "correct-horse",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		w = send(r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"login": name, "password": "correct-horse"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var s struct {
			Token string      `json:"token"`
			User  domain.User `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
		return s.Token, s.User.ID
	}
	ownerTok, _ := login("owner")
	aliceTok, _ := login("alice")

	w := send(r, http.MethodPost, "/api/v1/pets", ownerTok, map[string]any{"name": "rex", "species": "dog"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pet domain.Pet
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pet))
	assert.Equal(t, "/api/v1/pets/"+pet.ID, w.Header().Get("Location"))

	body := map[string]string{"notes": "Big garden", "housing_type": "House", "home_ownership": "Own"}
	path := "/api/v1/pets/" + pet.ID + "/applications"
	w = send(r, http.MethodPost, path, aliceTok, body, middleware.HeaderIdempotencyKey, "flow-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var app domain.Application
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &app))

	w = send(r, http.MethodPost, path, aliceTok, body, middleware.HeaderIdempotencyKey, "flow-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "true", w.Header().Get("Idempotency-Replayed"))

	w = send(r, http.MethodPost, "/api/v1/applications/"+app.ID+"/approve", ownerTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored domain.Pet
	require.NoError(t, db.First(&stored, "id = ?", pet.ID).Error)
	assert.Equal(t, domain.PetAdopted, stored.Status)

	// vaccine writes are staff only
	w = send(r, http.MethodPost, "/api/v1/vaccines", ownerTok, map[string]string{"name": "Rabies"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterRoutes_RedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.RateRPS = 1
	cfg.RateBurst = 2
	r, _ := newRouter(t, cfg, Infra{Redis: client})

	limited := 0
	for i := 0; i < 10; i++ {
		w := send(r, http.MethodGet, "/health", "", nil)
		if w.Code == http.StatusTooManyRequests {
			limited++
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.GreaterOrEqual(t, limited, 4)
	assert.NotEmpty(t, mr.Keys())
}

func TestIdempotencyLookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lookup := idempotencyLookup(db)

	hit, err := lookup(ctx, "u1", "p1", "k1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, hit)

	owner := &domain.User{ID: uuid.NewString(), Username: "owner", Email: "owner@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(owner).Error)
	applicant := &domain.User{ID: uuid.NewString(), Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(applicant).Error)
	pet := &domain.Pet{ID: uuid.NewString(), OwnerID: owner.ID, Name: "Rex", Species: "Dog", Status: domain.PetAvailable}
	require.NoError(t, db.Create(pet).Error)
	app := &domain.Application{PetID: pet.ID, ApplicantID: applicant.ID, Status: domain.StatusPending, Notes: "n", HousingType: "House", HomeOwnership: "Own", SubmittedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateApplication(ctx, db, app))
	_, err = repo.CreateIdempotency(ctx, db, applicant.ID, pet.ID, "k1", app.ID, http.StatusCreated, time.Hour)
	require.NoError(t, err)

	hit, err = lookup(ctx, applicant.ID, pet.ID, "k1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = lookup(ctx, applicant.ID, pet.ID, "k1", time.Now().Add(2*time.Hour).UTC())
	require.NoError(t, err)
	assert.False(t, hit, "expired records do not count")
}

func Test_limitBody_Middleware(t *testing.T) {
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func Test_groupWithPrefix(t *testing.T) {
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := send(r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, want, w.Body.String(), path)
	}
}
