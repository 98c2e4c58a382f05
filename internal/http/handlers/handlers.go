// Package handlers exposes the adoption API over HTTP.
//
// Handlers are transport-thin: they bind and shape input, take the caller's
// identity from the context set by middleware.Authenticate, call a service,
// and translate the result. Business rules live in internal/services.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/http/middleware"
	"github.com/tbourn/go-adoption-backend/internal/services"
	"github.com/tbourn/go-adoption-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// UserService covers accounts and profiles.
type UserService interface {
	Register(ctx context.Context, r services.Registration) (*domain.User, error)
	Login(ctx context.Context, login, password string) (*services.Session, error)
	Profile(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, p services.ProfileUpdate) (*domain.User, error)
	ImageUploadURL(ctx context.Context, id, filename string) (*services.ImageUpload, error)
}

// PetService covers the pet registry.
type PetService interface {
	Create(ctx context.Context, ownerID string, in services.PetInput) (*domain.Pet, error)
	Get(ctx context.Context, id string) (*domain.Pet, error)
	Update(ctx context.Context, ownerID, id string, in services.PetInput) (*domain.Pet, error)
	Delete(ctx context.Context, ownerID, id string) error
	Search(ctx context.Context, viewerID string, f services.PetFilter, page, pageSize int) ([]domain.Pet, int64, error)
	ListMine(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Pet, int64, error)
	Latest(ctx context.Context, n int) ([]domain.Pet, error)
	Breeds(ctx context.Context, viewerID, species string) ([]string, error)
	ImageUploadURL(ctx context.Context, ownerID, petID, filename string) (*services.ImageUpload, error)
}

// VaccineService covers the vaccine registry. Mutations take the caller's
// staff flag.
type VaccineService interface {
	List(ctx context.Context) ([]domain.Vaccine, error)
	Get(ctx context.Context, id string) (*domain.Vaccine, error)
	Create(ctx context.Context, staff bool, in services.VaccineInput) (*domain.Vaccine, error)
	Update(ctx context.Context, staff bool, id string, in services.VaccineInput) (*domain.Vaccine, error)
	Delete(ctx context.Context, staff bool, id string) error
}

// ApplicationService covers submission, visibility, and idempotent replays.
type ApplicationService interface {
	Submit(ctx context.Context, applicantID, petID string, in services.ApplicationInput) (*domain.Application, error)
	GetForActor(ctx context.Context, id, actorID string) (*domain.Application, error)
	ListForApplicant(ctx context.Context, applicantID string) ([]domain.Application, error)
	ListForOwner(ctx context.Context, ownerID string) ([]domain.Application, error)
	ApplicantStats(ctx context.Context, applicantID string) (int64, *time.Time, error)
	OwnerStats(ctx context.Context, ownerID string) (int64, *time.Time, error)
	Replay(ctx context.Context, applicantID, petID, key string) (*domain.Application, bool, error)
	Remember(ctx context.Context, applicantID, petID, key, applicationID string, status int) error
}

// LifecycleService decides on applications.
type LifecycleService interface {
	Approve(ctx context.Context, applicationID, actorID string) (*services.ApprovalResult, error)
	Reject(ctx context.Context, applicationID, actorID string) (*services.RejectionResult, error)
}

//
// Handler wiring
//

// Deps bundles the services the handlers depend on.
type Deps struct {
	Users        UserService
	Pets         PetService
	Vaccines     VaccineService
	Applications ApplicationService
	Lifecycle    LifecycleService
	// PetPageSize is the default page size of pet listings; defaults to 6.
	PetPageSize int
	// Now stamps generated documents; defaults to time.Now.
	Now func() time.Time
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	users        UserService
	pets         PetService
	vaccines     VaccineService
	applications ApplicationService
	lifecycle    LifecycleService
	petPageSize  int
	now          func() time.Time
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	petPageSize := d.PetPageSize
	if petPageSize <= 0 {
		petPageSize = 6
	}
	return &Handlers{
		users:        d.Users,
		pets:         d.Pets,
		vaccines:     d.Vaccines,
		applications: d.Applications,
		lifecycle:    d.Lifecycle,
		petPageSize:  petPageSize,
		now:          now,
	}
}

//
// Shared DTOs and helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page and page_size. defaultSize applies when
// page_size is absent; sizes below 1 become 1 and are capped at
// utils.MaxPageSize.
func clampPagination(c *gin.Context, defaultSize int) (page, pageSize int) {
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultSize)
	if pageSize < 1 {
		pageSize = 1
	}
	return utils.PageBounds(utils.AtoiDefault(c.Query("page"), 1), pageSize, defaultSize)
}

func currentUser(c *gin.Context) string { return middleware.PrincipalID(c) }

// notModified sets a weak ETag derived from (count, newest update) and
// reports whether the client already holds that version.
func notModified(c *gin.Context, scope string, count int64, newest *time.Time) bool {
	var ts int64
	if newest != nil {
		ts = newest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, scope, count, ts)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func sendPDF(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", body)
}
