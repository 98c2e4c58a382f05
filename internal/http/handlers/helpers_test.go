package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-adoption-backend/internal/auth"
	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/http/middleware"
	"github.com/tbourn/go-adoption-backend/internal/repo"
	"github.com/tbourn/go-adoption-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

const testSecret = "0123456789abcdef0123"

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(repo.SQLiteDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

// env is a router backed by real services over an in-memory database.
type env struct {
	db     *gorm.DB
	tokens *auth.TokenManager
	router *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := newTestDB(t)
	tm := auth.NewTokenManager(testSecret, time.Hour)
	pets := services.NewPetService(db, nil, 6)
	h := New(Deps{
		Users:        &services.UserService{DB: db, Tokens: tm, Cost: 4},
		Pets:         pets,
		Vaccines:     &services.VaccineService{DB: db},
		Applications: &services.ApplicationService{DB: db, IdempotencyTTL: time.Hour},
		Lifecycle:    &services.LifecycleService{DB: db},
		Now:          func() time.Time { return testNow },
	})
	return &env{db: db, tokens: tm, router: testRouter(h, tm)}
}

// testRouter mounts the handlers the way the production router does, minus
// the observability and throttling layers.
func testRouter(h *Handlers, parser middleware.ClaimsParser) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Authenticate(parser, true),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))

	user := middleware.RequireUser()
	staff := middleware.RequireStaff()

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.GET("/me", user, h.GetMe)
	r.PUT("/me", user, h.UpdateMe)
	r.POST("/me/image/upload-url", user, h.MyImageUploadURL)

	r.GET("/pets", h.SearchPets)
	r.POST("/pets", user, h.CreatePet)
	r.GET("/pets/mine", user, h.ListMyPets)
	r.GET("/pets/latest", h.LatestPets)
	r.GET("/pets/breeds", h.ListBreeds)
	r.GET("/pets/:id", h.GetPet)
	r.PUT("/pets/:id", user, h.UpdatePet)
	r.DELETE("/pets/:id", user, h.DeletePet)
	r.GET("/pets/:id/pdf", h.PetPDF)
	r.POST("/pets/:id/image/upload-url", user, h.PetImageUploadURL)
	r.POST("/pets/:id/applications", user, h.SubmitApplication)

	r.GET("/applications/mine", user, h.ListMyApplications)
	r.GET("/applications/manage", user, h.ListManagedApplications)
	r.GET("/applications/:id", user, h.GetApplication)
	r.GET("/applications/:id/pdf", user, h.ApplicationPDF)
	r.POST("/applications/:id/approve", user, h.ApproveApplication)
	r.POST("/applications/:id/reject", user, h.RejectApplication)

	r.GET("/vaccines", h.ListVaccines)
	r.GET("/vaccines/:id", h.GetVaccine)
	r.POST("/vaccines", staff, h.CreateVaccine)
	r.PUT("/vaccines/:id", staff, h.UpdateVaccine)
	r.DELETE("/vaccines/:id", staff, h.DeleteVaccine)
	return r
}

func (e *env) token(t *testing.T, uid string, staff bool) string {
	t.Helper()
	tok, _, err := e.tokens.Issue(uid, staff)
	require.NoError(t, err)
	return tok
}

// do sends method path with an optional JSON body and bearer token.
func (e *env) do(t *testing.T, method, path, token string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, e.router, method, path, token, body, hdr...)
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
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

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func seedUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedPet(t *testing.T, db *gorm.DB, ownerID, name string) *domain.Pet {
	t.Helper()
	p := &domain.Pet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Species:   "Dog",
		Status:    domain.PetAvailable,
		CreatedAt: testNow,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func applicationBody() ApplicationRequest {
	return ApplicationRequest{
		Notes:         "We have a fenced garden",
		HousingType:   "House",
		HomeOwnership: "Own",
	}
}
