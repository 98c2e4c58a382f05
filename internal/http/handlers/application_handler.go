// Adoption application HTTP handlers.
//
//   - POST /pets/{id}/applications        (submit; honours Idempotency-Key)
//   - GET  /applications/mine             (sent by the caller, ETag support)
//   - GET  /applications/manage           (received on the caller's pets, ETag support)
//   - GET  /applications/{id}             (applicant or pet owner only)
//   - GET  /applications/{id}/pdf         (application sheet)
//   - POST /applications/{id}/approve     (owner; rejects competing applications)
//   - POST /applications/{id}/reject      (owner)
//
// Idempotency: when the client sends an Idempotency-Key and a submission
// with that key already succeeded for the same pet, the stored application is
// returned with 200 and `Idempotency-Replayed: true` instead of a new 201.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/export"
	"github.com/tbourn/go-adoption-backend/internal/http/middleware"
	"github.com/tbourn/go-adoption-backend/internal/services"
)

// HeaderIdempotencyReplayed marks responses served from a stored result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// ApplicationRequest is the JSON payload of an adoption application.
type ApplicationRequest struct {
	Notes            string `json:"notes"              example:"We have a fenced garden"`
	RequestedDate    string `json:"requested_date"     example:"2025-07-01"`
	HousingType      string `json:"housing_type"       example:"House"`
	HomeOwnership    string `json:"home_ownership"     example:"Own"`
	HasOtherPets     bool   `json:"has_other_pets"     example:"true"`
	OtherPetsDetails string `json:"other_pets_details" example:"One cat"`
	WorkSchedule     string `json:"work_schedule"      example:"Remote"`
}

// ListApplicationsResponse wraps a list of applications.
type ListApplicationsResponse struct {
	Applications []domain.Application `json:"applications"`
}

// SubmitApplication godoc
// @ID          submitApplication
// @Summary     Apply to adopt a pet
// @Description Creates a Pending application. Supports idempotency via the Idempotency-Key header (same key → same application).
// @Tags        Applications
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)" example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Pet ID (UUID)" format(uuid)
// @Param       body             body    handlers.ApplicationRequest  true  "Application"
// @Success     201  {object}  domain.Application
// @Success     200  {object}  domain.Application  "Replayed result"
// @Header      200  {string}  Idempotency-Replayed  "true"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Pet not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate pending application or pet unavailable"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /pets/{id}/applications [post]
func (h *Handlers) SubmitApplication(c *gin.Context) {
	ctx := c.Request.Context()
	uid := currentUser(c)
	petID := c.Param("id")

	key, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey {
		prev, found, err := h.applications.Replay(ctx, uid, petID, key)
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency replay lookup failed")
		}
		if found {
			c.Header(HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, prev)
			return
		}
	}

	var req ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	a, err := h.applications.Submit(ctx, uid, petID, services.ApplicationInput(req))
	if err != nil {
		failErr(c, err)
		return
	}

	if hasKey {
		if err := h.applications.Remember(ctx, uid, petID, key, a.ID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("application_id", a.ID).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, a)
}

// ListMyApplications godoc
// @ID          listMyApplications
// @Summary     Applications sent by the caller
// @Tags        Applications
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListApplicationsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Router      /applications/mine [get]
func (h *Handlers) ListMyApplications(c *gin.Context) {
	ctx := c.Request.Context()
	uid := currentUser(c)

	if count, newest, err := h.applications.ApplicantStats(ctx, uid); err == nil {
		if notModified(c, "applications:mine:"+uid, count, newest) {
			return
		}
	}
	items, err := h.applications.ListForApplicant(ctx, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListApplicationsResponse{Applications: items})
}

// ListManagedApplications godoc
// @ID          listManagedApplications
// @Summary     Applications received on the caller's pets
// @Tags        Applications
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListApplicationsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Router      /applications/manage [get]
func (h *Handlers) ListManagedApplications(c *gin.Context) {
	ctx := c.Request.Context()
	uid := currentUser(c)

	if count, newest, err := h.applications.OwnerStats(ctx, uid); err == nil {
		if notModified(c, "applications:manage:"+uid, count, newest) {
			return
		}
	}
	items, err := h.applications.ListForOwner(ctx, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListApplicationsResponse{Applications: items})
}

// GetApplication godoc
// @ID          getApplication
// @Summary     Application details
// @Description Visible to the applicant and the pet's owner only.
// @Tags        Applications
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Application ID (UUID)" format(uuid)
// @Success     200  {object}  domain.Application
// @Failure     404  {object}  handlers.ErrorResponse  "Application not found"
// @Router      /applications/{id} [get]
func (h *Handlers) GetApplication(c *gin.Context) {
	a, err := h.applications.GetForActor(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// ApplicationPDF godoc
// @ID          applicationPDF
// @Summary     Application as PDF
// @Tags        Applications
// @Produce     application/pdf
// @Security    BearerAuth
// @Param       id  path  string  true  "Application ID (UUID)" format(uuid)
// @Success     200  {file}    file
// @Failure     404  {object}  handlers.ErrorResponse  "Application not found"
// @Router      /applications/{id}/pdf [get]
func (h *Handlers) ApplicationPDF(c *gin.Context) {
	a, err := h.applications.GetForActor(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		failErr(c, err)
		return
	}
	body, err := export.ApplicationPDF(a, a.Pet, a.Applicant, h.now())
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeRenderFailed, "could not render document")
		return
	}
	name := "application"
	if a.Pet != nil {
		name = a.Pet.Name + " application"
	}
	sendPDF(c, export.Filename(name), body)
}

// ApproveApplication godoc
// @ID          approveApplication
// @Summary     Approve an application
// @Description Marks the pet Adopted and rejects every other pending application for it. Notifications are best effort.
// @Tags        Applications
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Application ID (UUID)" format(uuid)
// @Success     200  {object}  services.ApprovalResult
// @Failure     403  {object}  handlers.ErrorResponse  "Not the pet owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Application not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Not pending or pet already adopted"
// @Router      /applications/{id}/approve [post]
func (h *Handlers) ApproveApplication(c *gin.Context) {
	res, err := h.lifecycle.Approve(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// RejectApplication godoc
// @ID          rejectApplication
// @Summary     Reject an application
// @Tags        Applications
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Application ID (UUID)" format(uuid)
// @Success     200  {object}  services.RejectionResult
// @Failure     403  {object}  handlers.ErrorResponse  "Not the pet owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Application not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Not pending"
// @Router      /applications/{id}/reject [post]
func (h *Handlers) RejectApplication(c *gin.Context) {
	res, err := h.lifecycle.Reject(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
