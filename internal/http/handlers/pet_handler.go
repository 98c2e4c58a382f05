// Pet HTTP handlers.
//
//   - GET    /pets                        (search, paginated, excludes own pets)
//   - POST   /pets                        (list a pet for adoption)
//   - GET    /pets/mine                   (own pets, paginated)
//   - GET    /pets/latest                 (landing page)
//   - GET    /pets/breeds?species=        (breed suggestions)
//   - GET    /pets/{id}                   (details)
//   - PUT    /pets/{id}                   (owner edit)
//   - DELETE /pets/{id}                   (owner delete)
//   - GET    /pets/{id}/pdf               (details sheet)
//   - POST   /pets/{id}/image/upload-url  (presigned image upload)
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/export"
	"github.com/tbourn/go-adoption-backend/internal/services"
	"github.com/tbourn/go-adoption-backend/internal/utils"
)

// PetRequest is the JSON payload for creating or replacing a pet listing.
type PetRequest struct {
	Name        string   `json:"name"         binding:"required" example:"Rex"`
	Species     string   `json:"species"      binding:"required" example:"Dog"`
	Breed       string   `json:"breed"        example:"Beagle"`
	Color       string   `json:"color"        example:"Tricolor"`
	Gender      string   `json:"gender"       example:"Male"`
	Description string   `json:"description"  example:"Loves long walks"`
	Weight      *float64 `json:"weight"       example:"12.5"`
	AdoptionFee float64  `json:"adoption_fee" example:"75"`
	DOB         string   `json:"dob"          example:"2021-02-01"`
	// VaccineIDs replaces the pet's vaccinations; omit to keep them on update.
	VaccineIDs []string `json:"vaccine_ids"`
}

func (r PetRequest) input() services.PetInput {
	return services.PetInput{
		Name:        r.Name,
		Species:     r.Species,
		Breed:       r.Breed,
		Color:       r.Color,
		Gender:      r.Gender,
		Description: r.Description,
		Weight:      r.Weight,
		AdoptionFee: r.AdoptionFee,
		DOB:         r.DOB,
		VaccineIDs:  r.VaccineIDs,
	}
}

// ListPetsResponse wraps a page of pets and pagination information.
type ListPetsResponse struct {
	Pets       []domain.Pet `json:"pets"`
	Pagination Pagination   `json:"pagination"`
}

// BreedsResponse lists breed names.
type BreedsResponse struct {
	Breeds []string `json:"breeds"`
}

// queryFloat parses an optional float query parameter.
func queryFloat(c *gin.Context, name string) (*float64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// petFilter reads the search filter, reporting the first malformed number.
func petFilter(c *gin.Context) (services.PetFilter, string) {
	f := services.PetFilter{
		Name:       c.Query("name"),
		Species:    c.Query("species"),
		Breed:      c.Query("breed"),
		Gender:     c.Query("gender"),
		Vaccinated: c.Query("vaccinated") == "true" || c.Query("vaccinated") == "1",
		Sort:       c.DefaultQuery("sort", "newest"),
	}
	var good bool
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"min_weight", &f.MinWeight},
		{"max_weight", &f.MaxWeight},
		{"min_fee", &f.MinFee},
		{"max_fee", &f.MaxFee},
	} {
		if *p.dst, good = queryFloat(c, p.name); !good {
			return f, p.name
		}
	}
	if f.MinAge, good = queryInt(c, "min_age"); !good {
		return f, "min_age"
	}
	if f.MaxAge, good = queryInt(c, "max_age"); !good {
		return f, "max_age"
	}
	return f, ""
}

// SearchPets godoc
// @ID          searchPets
// @Summary     Search pets
// @Description Filters and sorts pets listed by other users.
// @Tags        Pets
// @Produce     json
// @Param       name        query  string  false "Name contains"
// @Param       species     query  string  false "Species"          example(Dog)
// @Param       breed       query  string  false "Breed"
// @Param       gender      query  string  false "Male or Female"
// @Param       min_weight  query  number  false "Minimum weight"
// @Param       max_weight  query  number  false "Maximum weight"
// @Param       min_fee     query  number  false "Minimum adoption fee"
// @Param       max_fee     query  number  false "Maximum adoption fee"
// @Param       min_age     query  int     false "Minimum age in years"
// @Param       max_age     query  int     false "Maximum age in years"
// @Param       vaccinated  query  bool    false "Only pets with vaccinations"
// @Param       sort        query  string  false "Sort order" Enums(newest, oldest, name_az, name_za, price_low_high, price_high_low)
// @Param       page        query  int     false "Page number"    minimum(1) default(1)
// @Param       page_size   query  int     false "Items per page" minimum(1) maximum(100) default(6)
// @Success     200  {object}  handlers.ListPetsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /pets [get]
func (h *Handlers) SearchPets(c *gin.Context) {
	f, bad := petFilter(c)
	if bad != "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bad+" must be a number")
		return
	}
	page, pageSize := clampPagination(c, h.petPageSize)

	items, total, err := h.pets.Search(c.Request.Context(), currentUser(c), f, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListPetsResponse{Pets: items, Pagination: newPagination(page, pageSize, total)})
}

// CreatePet godoc
// @ID          createPet
// @Summary     List a pet for adoption
// @Tags        Pets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.PetRequest  true  "Pet"
// @Success     201   {object}  domain.Pet
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422   {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /pets [post]
func (h *Handlers) CreatePet(c *gin.Context) {
	var req PetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and species are required")
		return
	}
	p, err := h.pets.Create(c.Request.Context(), currentUser(c), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+p.ID)
	ok(c, http.StatusCreated, p)
}

// ListMyPets godoc
// @ID          listMyPets
// @Summary     Own pets
// @Tags        Pets
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false "Page number"    minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page" minimum(1) maximum(100) default(6)
// @Success     200  {object}  handlers.ListPetsResponse
// @Router      /pets/mine [get]
func (h *Handlers) ListMyPets(c *gin.Context) {
	page, pageSize := clampPagination(c, h.petPageSize)
	items, total, err := h.pets.ListMine(c.Request.Context(), currentUser(c), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListPetsResponse{Pets: items, Pagination: newPagination(page, pageSize, total)})
}

// LatestPets godoc
// @ID          latestPets
// @Summary     Recently listed pets
// @Tags        Pets
// @Produce     json
// @Param       limit  query  int  false "How many" minimum(1) maximum(50) default(8)
// @Success     200  {array}  domain.Pet
// @Router      /pets/latest [get]
func (h *Handlers) LatestPets(c *gin.Context) {
	items, err := h.pets.Latest(c.Request.Context(), utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// ListBreeds godoc
// @ID          listBreeds
// @Summary     Breeds of a species
// @Tags        Pets
// @Produce     json
// @Param       species  query  string  true  "Species" example(Dog)
// @Success     200  {object}  handlers.BreedsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /pets/breeds [get]
func (h *Handlers) ListBreeds(c *gin.Context) {
	species := strings.TrimSpace(c.Query("species"))
	if species == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "species required")
		return
	}
	out, err := h.pets.Breeds(c.Request.Context(), currentUser(c), species)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, BreedsResponse{Breeds: out})
}

// GetPet godoc
// @ID          getPet
// @Summary     Pet details
// @Tags        Pets
// @Produce     json
// @Param       id  path  string  true  "Pet ID (UUID)" format(uuid)
// @Success     200  {object}  domain.Pet
// @Failure     404  {object}  handlers.ErrorResponse  "Pet not found"
// @Router      /pets/{id} [get]
func (h *Handlers) GetPet(c *gin.Context) {
	p, err := h.pets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePet godoc
// @ID          updatePet
// @Summary     Edit an own pet
// @Description Status is not editable here; it follows the adoption workflow.
// @Tags        Pets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string               true  "Pet ID (UUID)" format(uuid)
// @Param       body  body      handlers.PetRequest  true  "Pet"
// @Success     200   {object}  domain.Pet
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403   {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404   {object}  handlers.ErrorResponse  "Pet not found"
// @Failure     422   {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /pets/{id} [put]
func (h *Handlers) UpdatePet(c *gin.Context) {
	var req PetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and species are required")
		return
	}
	p, err := h.pets.Update(c.Request.Context(), currentUser(c), c.Param("id"), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeletePet godoc
// @ID          deletePet
// @Summary     Delete an own pet
// @Description Refused while an adoption is pending.
// @Tags        Pets
// @Security    BearerAuth
// @Param       id  path  string  true  "Pet ID (UUID)" format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Pet not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Adoption pending"
// @Router      /pets/{id} [delete]
func (h *Handlers) DeletePet(c *gin.Context) {
	if err := h.pets.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// PetPDF godoc
// @ID          petPDF
// @Summary     Pet details as PDF
// @Tags        Pets
// @Produce     application/pdf
// @Param       id  path  string  true  "Pet ID (UUID)" format(uuid)
// @Success     200  {file}    file
// @Failure     404  {object}  handlers.ErrorResponse  "Pet not found"
// @Router      /pets/{id}/pdf [get]
func (h *Handlers) PetPDF(c *gin.Context) {
	p, err := h.pets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	body, err := export.PetPDF(p, h.now())
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeRenderFailed, "could not render document")
		return
	}
	sendPDF(c, export.Filename(p.Name), body)
}

// PetImageUploadURL godoc
// @ID          petImageUploadURL
// @Summary     Presigned upload URL for a pet image
// @Description Replaces the pet's image key; PUT the file to the returned URL.
// @Tags        Pets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                       true  "Pet ID (UUID)" format(uuid)
// @Param       body  body      handlers.ImageUploadRequest  true  "File name"
// @Success     200   {object}  services.ImageUpload
// @Failure     403   {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404   {object}  handlers.ErrorResponse  "Pet not found"
// @Failure     422   {object}  handlers.ErrorResponse  "Unsupported image type"
// @Failure     503   {object}  handlers.ErrorResponse  "Object storage disabled"
// @Router      /pets/{id}/image/upload-url [post]
func (h *Handlers) PetImageUploadURL(c *gin.Context) {
	var req ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "filename required")
		return
	}
	up, err := h.pets.ImageUploadURL(c.Request.Context(), currentUser(c), c.Param("id"), req.Filename)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, up)
}
