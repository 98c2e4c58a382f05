// Vaccine registry HTTP handlers. Reads are public; writes are staff only.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-adoption-backend/internal/http/middleware"
	"github.com/tbourn/go-adoption-backend/internal/services"
)

// VaccineRequest is the JSON payload for creating or replacing a vaccine.
type VaccineRequest struct {
	Name            string `json:"name"             binding:"required" example:"Rabies"`
	Description     string `json:"description"      example:"Core vaccine"`
	ProtectsAgainst string `json:"protects_against" example:"Rabies virus"`
}

// ListVaccines godoc
// @ID          listVaccines
// @Summary     List vaccines
// @Tags        Vaccines
// @Produce     json
// @Success     200  {array}  domain.Vaccine
// @Router      /vaccines [get]
func (h *Handlers) ListVaccines(c *gin.Context) {
	items, err := h.vaccines.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetVaccine godoc
// @ID          getVaccine
// @Summary     Vaccine details
// @Tags        Vaccines
// @Produce     json
// @Param       id  path  string  true  "Vaccine ID (UUID)" format(uuid)
// @Success     200  {object}  domain.Vaccine
// @Failure     404  {object}  handlers.ErrorResponse  "Vaccine not found"
// @Router      /vaccines/{id} [get]
func (h *Handlers) GetVaccine(c *gin.Context) {
	v, err := h.vaccines.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// CreateVaccine godoc
// @ID          createVaccine
// @Summary     Add a vaccine
// @Tags        Vaccines
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.VaccineRequest  true  "Vaccine"
// @Success     201   {object}  domain.Vaccine
// @Failure     403   {object}  handlers.ErrorResponse  "Staff only"
// @Failure     409   {object}  handlers.ErrorResponse  "Name taken"
// @Failure     422   {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /vaccines [post]
func (h *Handlers) CreateVaccine(c *gin.Context) {
	var req VaccineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}
	v, err := h.vaccines.Create(c.Request.Context(), middleware.IsStaff(c), services.VaccineInput(req))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, v)
}

// UpdateVaccine godoc
// @ID          updateVaccine
// @Summary     Edit a vaccine
// @Tags        Vaccines
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                   true  "Vaccine ID (UUID)" format(uuid)
// @Param       body  body      handlers.VaccineRequest  true  "Vaccine"
// @Success     200   {object}  domain.Vaccine
// @Failure     403   {object}  handlers.ErrorResponse  "Staff only"
// @Failure     404   {object}  handlers.ErrorResponse  "Vaccine not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Name taken"
// @Router      /vaccines/{id} [put]
func (h *Handlers) UpdateVaccine(c *gin.Context) {
	var req VaccineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}
	v, err := h.vaccines.Update(c.Request.Context(), middleware.IsStaff(c), c.Param("id"), services.VaccineInput(req))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// DeleteVaccine godoc
// @ID          deleteVaccine
// @Summary     Remove a vaccine
// @Tags        Vaccines
// @Security    BearerAuth
// @Param       id  path  string  true  "Vaccine ID (UUID)" format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Staff only"
// @Failure     404  {object}  handlers.ErrorResponse  "Vaccine not found"
// @Router      /vaccines/{id} [delete]
func (h *Handlers) DeleteVaccine(c *gin.Context) {
	if err := h.vaccines.Delete(c.Request.Context(), middleware.IsStaff(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
