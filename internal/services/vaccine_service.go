// Package services – VaccineService
//
// The vaccine registry is shared reference data. Anyone may read it; only
// staff principals may change it.
package services

import (
	"context"
	"errors"
	"strings"
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

// VaccineInput describes a vaccine.
type VaccineInput struct {
	Name            string
	Description     string
	ProtectsAgainst string
}

func (in *VaccineInput) validate() error {
	ve := &ValidationError{}
	in.Name = collapse(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.ProtectsAgainst = collapse(in.ProtectsAgainst)
	switch {
	case in.Name == "":
		ve.add("name", "is required")
	case utf8.RuneCountInString(in.Name) > 100:
		ve.add("name", "is too long")
	}
	if utf8.RuneCountInString(in.ProtectsAgainst) > 255 {
		ve.add("protects_against", "is too long")
	}
	return ve.orNil()
}

// VaccineService implements the vaccine registry.
type VaccineService struct {
	DB *gorm.DB
}

// List returns every vaccine ordered by name.
func (s *VaccineService) List(ctx context.Context) ([]domain.Vaccine, error) {
	out, err := repo.ListVaccines(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Vaccine{}
	}
	return out, nil
}

// Get returns a vaccine by id.
func (s *VaccineService) Get(ctx context.Context, id string) (*domain.Vaccine, error) {
	v, err := repo.GetVaccine(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrVaccineNotFound
	}
	return v, err
}

// Create adds a vaccine. staff reports whether the caller is a staff
// principal.
func (s *VaccineService) Create(ctx context.Context, staff bool, in VaccineInput) (_ *domain.Vaccine, err error) {
	tr := otel.Tracer("services/VaccineService")
	ctx, span := tr.Start(ctx, "Create")
	defer func() { observability.EndSpan(span, err, ErrForbidden, ErrDuplicateVaccine) }()

	if !staff {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	v := &domain.Vaccine{Name: in.Name, Description: in.Description, ProtectsAgainst: in.ProtectsAgainst}
	if err := repo.CreateVaccine(ctx, s.DB, v); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateVaccine
		}
		return nil, err
	}
	return v, nil
}

// Update rewrites a vaccine. Staff only.
func (s *VaccineService) Update(ctx context.Context, staff bool, id string, in VaccineInput) (_ *domain.Vaccine, err error) {
	tr := otel.Tracer("services/VaccineService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("vaccine.id", id)))
	defer func() { observability.EndSpan(span, err, ErrForbidden, ErrVaccineNotFound, ErrDuplicateVaccine) }()

	if !staff {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	v := &domain.Vaccine{ID: id, Name: in.Name, Description: in.Description, ProtectsAgainst: in.ProtectsAgainst}
	if err := repo.UpdateVaccine(ctx, s.DB, v); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrVaccineNotFound
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrDuplicateVaccine
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a vaccine and unlinks it from every pet. Staff only.
func (s *VaccineService) Delete(ctx context.Context, staff bool, id string) (err error) {
	tr := otel.Tracer("services/VaccineService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("vaccine.id", id)))
	defer func() { observability.EndSpan(span, err, ErrForbidden, ErrVaccineNotFound) }()

	if !staff {
		return ErrForbidden
	}
	if err := repo.DeleteVaccine(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrVaccineNotFound
		}
		return err
	}
	return nil
}
