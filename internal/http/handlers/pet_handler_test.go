package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/services"
)

// stubPets records the arguments of the last call and returns canned data.
type stubPets struct {
	pet      *domain.Pet
	err      error
	total    int64
	filter   services.PetFilter
	page     int
	pageSize int
	viewer   string
	latestN  int
	species  string
}

func (s *stubPets) Create(_ context.Context, ownerID string, in services.PetInput) (*domain.Pet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Pet{ID: "new-pet", OwnerID: ownerID, Name: in.Name, Species: in.Species}, nil
}

func (s *stubPets) Get(context.Context, string) (*domain.Pet, error) { return s.pet, s.err }

func (s *stubPets) Update(context.Context, string, string, services.PetInput) (*domain.Pet, error) {
	return s.pet, s.err
}

func (s *stubPets) Delete(context.Context, string, string) error { return s.err }

func (s *stubPets) Search(_ context.Context, viewerID string, f services.PetFilter, page, pageSize int) ([]domain.Pet, int64, error) {
	s.viewer, s.filter, s.page, s.pageSize = viewerID, f, page, pageSize
	return []domain.Pet{}, s.total, s.err
}

func (s *stubPets) ListMine(_ context.Context, ownerID string, page, pageSize int) ([]domain.Pet, int64, error) {
	s.viewer, s.page, s.pageSize = ownerID, page, pageSize
	return []domain.Pet{}, s.total, s.err
}

func (s *stubPets) Latest(_ context.Context, n int) ([]domain.Pet, error) {
	s.latestN = n
	return []domain.Pet{}, s.err
}

func (s *stubPets) Breeds(_ context.Context, viewerID, species string) ([]string, error) {
	s.viewer, s.species = viewerID, species
	return []string{"Beagle", "Collie"}, s.err
}

func (s *stubPets) ImageUploadURL(context.Context, string, string, string) (*services.ImageUpload, error) {
	return nil, s.err
}

func petRouter(t *testing.T, pets *stubPets) (*gin.Engine, *env) {
	t.Helper()
	e := newEnv(t)
	return testRouter(New(Deps{Pets: pets}), e.tokens), e
}

func TestSearchPets_ParsesFilterAndPaginates(t *testing.T) {
	pets := &stubPets{total: 13}
	r, _ := petRouter(t, pets)

	w := doJSON(t, r, http.MethodGet, "/pets?species=Dog&min_weight=2.5&max_age=4&vaccinated=true&page=2", "", nil, "X-User-ID", "viewer-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "viewer-1", pets.viewer)
	assert.Equal(t, "Dog", pets.filter.Species)
	require.NotNil(t, pets.filter.MinWeight)
	assert.InDelta(t, 2.5, *pets.filter.MinWeight, 1e-9)
	require.NotNil(t, pets.filter.MaxAge)
	assert.Equal(t, 4, *pets.filter.MaxAge)
	assert.True(t, pets.filter.Vaccinated)
	assert.Equal(t, "newest", pets.filter.Sort)
	assert.Equal(t, 2, pets.page)
	assert.Equal(t, 6, pets.pageSize)

	resp := decode[ListPetsResponse](t, w)
	assert.Equal(t, Pagination{Page: 2, PageSize: 6, Total: 13, TotalPages: 3, HasNext: true}, resp.Pagination)
}

func TestSearchPets_RejectsMalformedNumbers(t *testing.T) {
	r, _ := petRouter(t, &stubPets{})
	for _, q := range []string{"min_fee=cheap", "max_weight=1,5", "min_age=two"} {
		w := doJSON(t, r, http.MethodGet, "/pets?"+q, "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code, q)
		body := decode[ErrorResponse](t, w)
		assert.Equal(t, ErrCodeBadRequest, body.Code)
		assert.Equal(t, strings.SplitN(q, "=", 2)[0]+" must be a number", body.Message)
	}
}

func TestSearchPets_PageSizeIsCapped(t *testing.T) {
	pets := &stubPets{}
	r, _ := petRouter(t, pets)
	w := doJSON(t, r, http.MethodGet, "/pets?page=-3&page_size=1000", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, pets.page)
	assert.Equal(t, 100, pets.pageSize)
}

func TestCreatePet_RequiresAuthAndSetsLocation(t *testing.T) {
	r, e := petRouter(t, &stubPets{})

	w := doJSON(t, r, http.MethodPost, "/pets", "", PetRequest{Name: "Rex", Species: "Dog"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok := e.token(t, "owner-1", false)
	w = doJSON(t, r, http.MethodPost, "/pets", tok, map[string]string{"name": "Rex"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/pets", tok, PetRequest{Name: "Rex", Species: "Dog"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/pets/new-pet", w.Header().Get("Location"))
	p := decode[domain.Pet](t, w)
	assert.Equal(t, "owner-1", p.OwnerID)
}

func TestPetErrors_MapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrPetNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
		{services.ErrPetLocked, http.StatusConflict, ErrCodePetLocked},
		{services.ErrUnknownVaccine, http.StatusUnprocessableEntity, ErrCodeValidation},
	}
	for _, tc := range cases {
		r, e := petRouter(t, &stubPets{err: tc.err})
		w := doJSON(t, r, http.MethodPut, "/pets/p1", e.token(t, "u1", false), PetRequest{Name: "Rex", Species: "Dog"})
		require.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Equal(t, tc.code, decode[ErrorResponse](t, w).Code)
	}
}

func TestDeletePet_NoContent(t *testing.T) {
	r, e := petRouter(t, &stubPets{})
	w := doJSON(t, r, http.MethodDelete, "/pets/p1", e.token(t, "u1", false), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestLatestAndBreeds(t *testing.T) {
	pets := &stubPets{}
	r, _ := petRouter(t, pets)

	w := doJSON(t, r, http.MethodGet, "/pets/latest?limit=3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, pets.latestN)

	w = doJSON(t, r, http.MethodGet, "/pets/breeds", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/pets/breeds?species=Dog", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dog", pets.species)
	assert.Equal(t, []string{"Beagle", "Collie"}, decode[BreedsResponse](t, w).Breeds)
}

func TestPetPDF_Download(t *testing.T) {
	r, _ := petRouter(t, &stubPets{pet: &domain.Pet{ID: "p1", Name: "Rex", Species: "Dog", Status: domain.PetAvailable}})
	w := doJSON(t, r, http.MethodGet, "/pets/p1/pdf", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Rex_details.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestPetImageUploadURL_StorageDisabled(t *testing.T) {
	r, e := petRouter(t, &stubPets{err: services.ErrStorageDisabled})
	tok := e.token(t, "u1", false)

	w := doJSON(t, r, http.MethodPost, "/pets/p1/image/upload-url", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/pets/p1/image/upload-url", tok, ImageUploadRequest{Filename: "rex.png"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ErrCodeUnavailable, decode[ErrorResponse](t, w).Code)
}

func TestGetPet_UnexpectedErrorIs500(t *testing.T) {
	r, _ := petRouter(t, &stubPets{err: errors.New("db down")})
	w := doJSON(t, r, http.MethodGet, "/pets/p1", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[ErrorResponse](t, w)
	assert.Equal(t, ErrCodeInternal, body.Code)
	assert.NotContains(t, w.Body.String(), "db down")
	assert.NotEmpty(t, body.RequestID)
}
