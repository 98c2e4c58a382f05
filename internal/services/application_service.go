// Package services – ApplicationService
//
// This file implements the application store: submitting adoption
// applications and reading them back for applicants and pet owners. It
// validates the applicant's free-form answers, checks the pet is Available
// with a fresh read inside the inserting transaction, and relies on the
// partial unique index over Pending rows as the final word on duplicates.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include application, pet and user identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/observability"
	"github.com/tbourn/go-adoption-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxNotesRunes   = 2000
	maxShortRunes   = 50
	maxDetailsRunes = 1000
	dateLayout      = "2006-01-02"
)

// ApplicationInput carries the applicant's answers for a new application.
type ApplicationInput struct {
	Notes            string
	RequestedDate    string // YYYY-MM-DD, optional
	HousingType      string
	HomeOwnership    string
	HasOtherPets     bool
	OtherPetsDetails string
	WorkSchedule     string
}

// validate normalizes in and returns the parsed requested date.
func (in *ApplicationInput) validate(now time.Time) (*time.Time, error) {
	ve := &ValidationError{}
	in.Notes = strings.TrimSpace(in.Notes)
	in.HousingType = strings.TrimSpace(in.HousingType)
	in.HomeOwnership = strings.TrimSpace(in.HomeOwnership)
	in.OtherPetsDetails = strings.TrimSpace(in.OtherPetsDetails)
	in.WorkSchedule = strings.TrimSpace(in.WorkSchedule)

	required := func(field, v string, max int) {
		switch {
		case v == "":
			ve.add(field, "is required")
		case utf8.RuneCountInString(v) > max:
			ve.add(field, "is too long")
		}
	}
	required("notes", in.Notes, maxNotesRunes)
	required("housing_type", in.HousingType, maxShortRunes)
	required("home_ownership", in.HomeOwnership, maxShortRunes)
	if utf8.RuneCountInString(in.OtherPetsDetails) > maxDetailsRunes {
		ve.add("other_pets_details", "is too long")
	}
	if utf8.RuneCountInString(in.WorkSchedule) > maxDetailsRunes {
		ve.add("work_schedule", "is too long")
	}

	var requested *time.Time
	if s := strings.TrimSpace(in.RequestedDate); s != "" {
		d, err := time.ParseInLocation(dateLayout, s, time.UTC)
		if err != nil {
			ve.add("requested_date", "must be YYYY-MM-DD")
		} else {
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			if d.Before(today) {
				ve.add("requested_date", "must not be in the past")
			} else {
				requested = &d
			}
		}
	}
	return requested, ve.orNil()
}

// ApplicationService implements submission and read access for adoption
// applications.
type ApplicationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// IdempotencyTTL bounds how long a submission key is remembered.
	IdempotencyTTL time.Duration
	// Images attaches presigned pet image URLs to read results when set.
	Images ImageSigner
	// ImageTTL is the lifetime of those URLs. List versions roll over every
	// half lifetime so a cached listing never holds an expired link.
	ImageTTL time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *ApplicationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Submit creates a Pending application by applicantID for petID.
//
// Errors:
//   - *ValidationError for malformed answers;
//   - ErrPetNotFound when the pet does not exist;
//   - ErrPetUnavailable when the pet is not Available;
//   - ErrDuplicateApplication when a Pending application already exists for
//     this applicant and pet, whether found by the pre-check or by the index.
func (s *ApplicationService) Submit(ctx context.Context, applicantID, petID string, in ApplicationInput) (_ *domain.Application, err error) {
	tr := otel.Tracer("services/ApplicationService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("pet.id", petID),
			attribute.String("user.id", applicantID),
		),
	)
	defer func() {
		observability.EndSpan(span, err, ErrPetNotFound, ErrPetUnavailable, ErrDuplicateApplication)
	}()

	now := s.now()
	requested, err := in.validate(now)
	if err != nil {
		return nil, err
	}

	var (
		created *domain.Application
		pet     *domain.Pet
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetPetForUpdate(ctx, tx, petID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrPetNotFound
			}
			return err
		}
		if p.Status != domain.PetAvailable {
			return ErrPetUnavailable
		}
		pet = p

		// fast path for a friendly error; the index decides under races
		dup, err := repo.HasPendingApplication(ctx, tx, applicantID, petID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateApplication
		}

		a := &domain.Application{
			PetID:            petID,
			ApplicantID:      applicantID,
			Notes:            in.Notes,
			RequestedDate:    requested,
			HousingType:      in.HousingType,
			HomeOwnership:    in.HomeOwnership,
			HasOtherPets:     in.HasOtherPets,
			OtherPetsDetails: in.OtherPetsDetails,
			WorkSchedule:     in.WorkSchedule,
			SubmittedAt:      now,
		}
		if err := repo.CreateApplication(ctx, tx, a); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateApplication
			}
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("application.id", created.ID))
	created.Pet = pet
	s.attachImage(ctx, created.Pet)
	return created, nil
}

// Get returns an application by id regardless of who asks. Callers facing
// end users should prefer GetForActor.
func (s *ApplicationService) Get(ctx context.Context, id string) (*domain.Application, error) {
	a, err := repo.GetApplication(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return a, nil
}

// GetForActor returns the application when actorID is its applicant or the
// owner of its pet, and ErrApplicationNotFound otherwise so that existence
// is not disclosed.
func (s *ApplicationService) GetForActor(ctx context.Context, id, actorID string) (_ *domain.Application, err error) {
	tr := otel.Tracer("services/ApplicationService")
	ctx, span := tr.Start(ctx, "GetForActor",
		trace.WithAttributes(
			attribute.String("application.id", id),
			attribute.String("user.id", actorID),
		),
	)
	defer func() { observability.EndSpan(span, err, ErrApplicationNotFound) }()

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ApplicantID != actorID && (a.Pet == nil || a.Pet.OwnerID != actorID) {
		return nil, ErrApplicationNotFound
	}
	s.attachImage(ctx, a.Pet)
	return a, nil
}

// ListForApplicant returns applicantID's applications, newest first.
func (s *ApplicationService) ListForApplicant(ctx context.Context, applicantID string) ([]domain.Application, error) {
	tr := otel.Tracer("services/ApplicationService")
	ctx, span := tr.Start(ctx, "ListForApplicant",
		trace.WithAttributes(attribute.String("user.id", applicantID)),
	)
	defer span.End()

	items, err := repo.ListApplicationsByApplicant(ctx, s.DB, applicantID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.attachImage(ctx, items[i].Pet)
	}
	return items, nil
}

// ListForOwner returns every application received on pets owned by
// ownerID, newest first.
func (s *ApplicationService) ListForOwner(ctx context.Context, ownerID string) ([]domain.Application, error) {
	tr := otel.Tracer("services/ApplicationService")
	ctx, span := tr.Start(ctx, "ListForOwner",
		trace.WithAttributes(attribute.String("user.id", ownerID)),
	)
	defer span.End()

	items, err := repo.ListApplicationsByOwner(ctx, s.DB, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.attachImage(ctx, items[i].Pet)
	}
	return items, nil
}

// ApplicantStats and OwnerStats return (count, version time) for ETags. The
// version is the newest update among the applications and their pets, moved
// forward to the current image URL window when images are signed.
func (s *ApplicationService) ApplicantStats(ctx context.Context, applicantID string) (int64, *time.Time, error) {
	return s.versioned(repo.ApplicantApplicationsStats(ctx, s.DB, applicantID))
}

// OwnerStats is ApplicantStats for the applications an owner received.
func (s *ApplicationService) OwnerStats(ctx context.Context, ownerID string) (int64, *time.Time, error) {
	return s.versioned(repo.OwnerApplicationsStats(ctx, s.DB, ownerID))
}

func (s *ApplicationService) versioned(count int64, newest *time.Time, err error) (int64, *time.Time, error) {
	if err != nil || count == 0 || s.Images == nil {
		return count, newest, err
	}
	ttl := s.ImageTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	window := s.now().Truncate(ttl / 2)
	if newest == nil || window.After(*newest) {
		newest = &window
	}
	return count, newest, nil
}

// Replay returns the application created earlier by applicantID for petID
// under the same Idempotency-Key, if that key is still remembered.
func (s *ApplicationService) Replay(ctx context.Context, applicantID, petID, key string) (*domain.Application, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, applicantID, petID, key, s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	a, err := repo.GetApplication(ctx, s.DB, rec.ApplicationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	s.attachImage(ctx, a.Pet)
	return a, true, nil
}

// Remember stores key → applicationID after a successful submission. A key
// already taken by a concurrent request is not an error.
func (s *ApplicationService) Remember(ctx context.Context, applicantID, petID, key, applicationID string, status int) error {
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, applicantID, petID, key, applicationID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

func (s *ApplicationService) attachImage(ctx context.Context, p *domain.Pet) {
	if p != nil {
		attachPetImage(ctx, s.Images, p)
	}
}
