// Package services – PetService
//
// This file implements the pet registry: owners list, edit and withdraw
// pets; everyone else searches them. Free-text fields are normalized with
// golang.org/x/text so that "golden retriever" and "Golden Retriever" land
// in the same breed bucket.
package services

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/observability"
	"github.com/tbourn/go-adoption-backend/internal/repo"
	"github.com/tbourn/go-adoption-backend/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ImageSigner issues presigned object-store URLs.
type ImageSigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
	PresignPut(ctx context.Context, key, contentType string) (string, error)
}

// ImageUpload is a presigned upload target.
type ImageUpload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// imageContentType maps an uploaded file name to its MIME type.
func imageContentType(filename string) (ext, contentType string, ok bool) {
	ext = strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	contentType, ok = imageTypes[ext]
	return ext, contentType, ok
}

// attachPetImage sets p.ImageURL from its stored key. Signing failures only
// leave the URL empty.
func attachPetImage(ctx context.Context, signer ImageSigner, p *domain.Pet) {
	if signer == nil || p.ImageKey == "" {
		return
	}
	url, err := signer.PresignGet(ctx, p.ImageKey)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("pet_id", p.ID).Msg("presign pet image")
		return
	}
	p.ImageURL = url
}

// PetInput is the owner-supplied description of a pet.
type PetInput struct {
	Name        string
	Species     string
	Breed       string
	Color       string
	Gender      string
	Description string
	Weight      *float64
	AdoptionFee float64
	DOB         string // YYYY-MM-DD, optional
	// VaccineIDs replaces the pet's vaccines. Nil leaves them unchanged on
	// update.
	VaccineIDs []string
}

// PetFilter is the public search form.
type PetFilter struct {
	Name       string
	Species    string
	Breed      string
	Gender     string
	MinWeight  *float64
	MaxWeight  *float64
	MinFee     *float64
	MaxFee     *float64
	MinAge     *int // years
	MaxAge     *int // years
	Vaccinated bool
	Sort       string
}

// PetService implements the pet registry.
type PetService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Images signs pet image URLs; nil disables image features.
	Images ImageSigner
	// PageSize is the default search page size.
	PageSize int
	// Locale drives case normalization of names.
	Locale language.Tag
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewPetService constructs a PetService with listing defaults.
func NewPetService(db *gorm.DB, images ImageSigner, pageSize int) *PetService {
	if pageSize <= 0 {
		pageSize = 6
	}
	return &PetService{DB: db, Images: images, PageSize: pageSize, Locale: language.Und}
}

func (s *PetService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

func collapse(v string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(v), " ")
}

// title normalizes a label such as a species or breed to title case.
func (s *PetService) title(v string) string {
	v = collapse(v)
	if v == "" {
		return ""
	}
	return cases.Title(s.Locale).String(strings.ToLower(v))
}

// normalize validates in and returns the pet fields it describes.
func (s *PetService) normalize(in PetInput) (*domain.Pet, error) {
	ve := &ValidationError{}
	p := &domain.Pet{
		Name:        collapse(in.Name),
		Species:     s.title(in.Species),
		Breed:       s.title(in.Breed),
		Color:       s.title(in.Color),
		Gender:      s.title(in.Gender),
		Description: strings.TrimSpace(in.Description),
		Weight:      in.Weight,
		AdoptionFee: in.AdoptionFee,
	}

	check := func(field, v string, max int, required bool) {
		switch {
		case required && v == "":
			ve.add(field, "is required")
		case utf8.RuneCountInString(v) > max:
			ve.add(field, "is too long")
		}
	}
	check("name", p.Name, 100, true)
	check("species", p.Species, 100, true)
	check("breed", p.Breed, 100, false)
	check("color", p.Color, 50, false)
	if p.Gender != "" && p.Gender != "Male" && p.Gender != "Female" {
		ve.add("gender", "must be Male or Female")
	}
	if p.Weight != nil && (*p.Weight <= 0 || *p.Weight >= 1000) {
		ve.add("weight", "must be between 0 and 1000")
	}
	if p.AdoptionFee < 0 || p.AdoptionFee >= 1e8 {
		ve.add("adoption_fee", "must be between 0 and 100000000")
	}
	if d := strings.TrimSpace(in.DOB); d != "" {
		dob, err := time.ParseInLocation(dateLayout, d, time.UTC)
		switch {
		case err != nil:
			ve.add("dob", "must be YYYY-MM-DD")
		case dob.After(s.now()):
			ve.add("dob", "must not be in the future")
		default:
			p.DOB = &dob
		}
	}
	return p, ve.orNil()
}

// vaccines resolves ids to existing vaccines.
func (s *PetService) vaccines(ctx context.Context, ids []string) ([]domain.Vaccine, error) {
	if ids == nil {
		return nil, nil
	}
	uniq := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	found, err := repo.FindVaccines(ctx, s.DB, uniq)
	if err != nil {
		return nil, err
	}
	if len(found) != len(uniq) {
		return nil, ErrUnknownVaccine
	}
	return found, nil
}

// decorate attaches the computed age and image URL.
func (s *PetService) decorate(ctx context.Context, p *domain.Pet) {
	if y, m, ok := p.Age(s.now()); ok {
		p.AgeNow = &domain.PetAge{Years: y, Months: m}
	}
	attachPetImage(ctx, s.Images, p)
}

// Create lists a new Available pet owned by ownerID.
func (s *PetService) Create(ctx context.Context, ownerID string, in PetInput) (_ *domain.Pet, err error) {
	tr := otel.Tracer("services/PetService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.String("user.id", ownerID)))
	defer func() { observability.EndSpan(span, err, ErrUnknownVaccine) }()

	p, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	vs, err := s.vaccines(ctx, in.VaccineIDs)
	if err != nil {
		return nil, err
	}
	p.ID = uuid.NewString()
	p.OwnerID = ownerID
	p.Status = domain.PetAvailable
	p.Vaccines = vs
	if err := repo.CreatePet(ctx, s.DB, p); err != nil {
		return nil, err
	}
	s.decorate(ctx, p)
	return p, nil
}

// Get returns a pet by id.
func (s *PetService) Get(ctx context.Context, id string) (*domain.Pet, error) {
	p, err := repo.GetPet(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}
	s.decorate(ctx, p)
	return p, nil
}

// owned returns the pet when ownerID owns it.
func (s *PetService) owned(ctx context.Context, ownerID, id string) (*domain.Pet, error) {
	p, err := repo.GetPet(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return p, nil
}

// Update rewrites the descriptive fields of an owned pet. Status is not
// editable here.
func (s *PetService) Update(ctx context.Context, ownerID, id string, in PetInput) (_ *domain.Pet, err error) {
	tr := otel.Tracer("services/PetService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(
		attribute.String("pet.id", id),
		attribute.String("user.id", ownerID),
	))
	defer func() { observability.EndSpan(span, err, ErrPetNotFound, ErrForbidden, ErrUnknownVaccine) }()

	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return nil, err
	}
	p, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	vs, err := s.vaccines(ctx, in.VaccineIDs)
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := repo.UpdatePet(ctx, s.DB, p, vs); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete withdraws an owned pet. It is refused with ErrPetLocked while the
// pet is Pending or has Pending applications.
func (s *PetService) Delete(ctx context.Context, ownerID, id string) (err error) {
	tr := otel.Tracer("services/PetService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("pet.id", id),
		attribute.String("user.id", ownerID),
	))
	defer func() { observability.EndSpan(span, err, ErrPetNotFound, ErrForbidden, ErrPetLocked) }()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetPetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrPetNotFound
			}
			return err
		}
		if p.OwnerID != ownerID {
			return ErrForbidden
		}
		if p.Status == domain.PetPending {
			return ErrPetLocked
		}
		n, err := repo.CountPendingForPet(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrPetLocked
		}
		if err := repo.DeletePet(ctx, tx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrPetNotFound
			}
			return err
		}
		return nil
	})
}

// Search lists pets matching f, excluding those owned by viewerID, one page
// at a time. It returns the page items and the total number of matches.
func (s *PetService) Search(ctx context.Context, viewerID string, f PetFilter, page, pageSize int) ([]domain.Pet, int64, error) {
	tr := otel.Tracer("services/PetService")
	ctx, span := tr.Start(ctx, "Search", trace.WithAttributes(
		attribute.String("user.id", viewerID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	))
	defer span.End()

	page, pageSize = s.pageBounds(page, pageSize)
	q := repo.PetQuery{
		Name:           collapse(f.Name),
		Species:        s.title(f.Species),
		Breed:          s.title(f.Breed),
		Gender:         s.title(f.Gender),
		MinWeight:      f.MinWeight,
		MaxWeight:      f.MaxWeight,
		MinFee:         f.MinFee,
		MaxFee:         f.MaxFee,
		VaccinatedOnly: f.Vaccinated,
		ExcludeOwnerID: viewerID,
		Sort:           repo.PetSort(f.Sort),
		Offset:         (page - 1) * pageSize,
		Limit:          pageSize,
	}
	today := s.now().Truncate(24 * time.Hour)
	if f.MinAge != nil && *f.MinAge >= 0 {
		d := ageToBirthdate(today, *f.MinAge)
		q.BornOnOrBefore = &d
	}
	if f.MaxAge != nil && *f.MaxAge >= 0 {
		d := ageToBirthdate(today, *f.MaxAge)
		q.BornOnOrAfter = &d
	}

	items, total, err := repo.SearchPets(ctx, s.DB, q)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		s.decorate(ctx, &items[i])
	}
	return items, total, nil
}

// ageToBirthdate approximates the birth date of something years old, using
// 365-day years.
func ageToBirthdate(today time.Time, years int) time.Time {
	return today.AddDate(0, 0, -365*years)
}

// ListMine returns a page of the owner's own pets, newest first.
func (s *PetService) ListMine(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Pet, int64, error) {
	tr := otel.Tracer("services/PetService")
	ctx, span := tr.Start(ctx, "ListMine", trace.WithAttributes(attribute.String("user.id", ownerID)))
	defer span.End()

	page, pageSize = s.pageBounds(page, pageSize)
	items, total, err := repo.ListPetsByOwner(ctx, s.DB, ownerID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		s.decorate(ctx, &items[i])
	}
	return items, total, nil
}

// Latest returns up to n recently listed Available pets.
func (s *PetService) Latest(ctx context.Context, n int) ([]domain.Pet, error) {
	if n <= 0 {
		n = 8
	}
	if n > 50 {
		n = 50
	}
	items, err := repo.ListLatestPets(ctx, s.DB, n)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.decorate(ctx, &items[i])
	}
	return items, nil
}

// Breeds lists the distinct breeds of species not owned by viewerID.
func (s *PetService) Breeds(ctx context.Context, viewerID, species string) ([]string, error) {
	out, err := repo.ListBreeds(ctx, s.DB, s.title(species), viewerID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// ImageUploadURL prepares a new image for an owned pet: it stores a fresh
// object key on the pet and returns a presigned PUT URL for it.
func (s *PetService) ImageUploadURL(ctx context.Context, ownerID, petID, filename string) (_ *ImageUpload, err error) {
	tr := otel.Tracer("services/PetService")
	ctx, span := tr.Start(ctx, "ImageUploadURL", trace.WithAttributes(
		attribute.String("pet.id", petID),
		attribute.String("user.id", ownerID),
	))
	defer func() { observability.EndSpan(span, err, ErrPetNotFound, ErrForbidden, ErrStorageDisabled) }()

	if s.Images == nil {
		return nil, ErrStorageDisabled
	}
	ext, contentType, ok := imageContentType(filename)
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"filename": "must be a .jpg, .jpeg, .png, .gif or .webp image"}}
	}
	if _, err := s.owned(ctx, ownerID, petID); err != nil {
		return nil, err
	}
	key := "pet_images/" + petID + "/" + uuid.NewString() + ext
	url, err := s.Images.PresignPut(ctx, key, contentType)
	if err != nil {
		return nil, err
	}
	if err := repo.SetPetImageKey(ctx, s.DB, petID, key); err != nil {
		return nil, err
	}
	return &ImageUpload{URL: url, Key: key, Method: "PUT"}, nil
}

func (s *PetService) pageBounds(page, pageSize int) (int, int) {
	def := s.PageSize
	if def <= 0 {
		def = 6
	}
	return utils.PageBounds(page, pageSize, def)
}
