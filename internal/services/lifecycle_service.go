// Package services – LifecycleService
//
// This file implements the decision half of the application lifecycle:
//
//	Pending ──approve──▶ Approved   (terminal)
//	Pending ──reject───▶ Rejected   (terminal)
//
// Approving one application adopts the pet and rejects every other Pending
// application for that pet in the same transaction. Applicants are told
// about the outcome only after the transaction has committed.
//
// Concurrency: the transition is a conditional update on status = 'Pending'
// and the pet update is conditional on status <> 'Adopted'. When two owners'
// requests race to approve different applications for one pet, exactly one
// pet update matches; the loser's transaction rolls back with
// ErrPetUnavailable. On PostgreSQL the application and pet rows are also
// read FOR UPDATE, and so are the sibling rows the cascade rejects.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/observability"
	"github.com/tbourn/go-adoption-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ApprovalResult is the outcome of a successful approval.
type ApprovalResult struct {
	Application     *domain.Application `json:"application"`
	CascadeRejected int                 `json:"cascade_rejected"`
	Notifications   NotificationSummary `json:"notifications"`
}

// RejectionResult is the outcome of a successful rejection.
type RejectionResult struct {
	Application   *domain.Application `json:"application"`
	Notifications NotificationSummary `json:"notifications"`
}

// LifecycleService approves and rejects applications on behalf of pet owners.
type LifecycleService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Notifier receives one StatusChange per decided application after
	// commit. Nil disables delivery.
	Notifier Notifier
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *LifecycleService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// decisionBenign lists the errors that are expected outcomes of a decision.
var decisionBenign = []error{ErrApplicationNotFound, ErrPetNotFound, ErrForbidden, ErrInvalidTransition, ErrPetUnavailable}

// loadForDecision reads the application and its pet inside tx and checks
// that actorID owns the pet.
func loadForDecision(ctx context.Context, tx *gorm.DB, applicationID, actorID string) (*domain.Application, *domain.Pet, error) {
	a, err := repo.GetApplicationForUpdate(ctx, tx, applicationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrApplicationNotFound
		}
		return nil, nil, err
	}
	p, err := repo.GetPetForUpdate(ctx, tx, a.PetID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrPetNotFound
		}
		return nil, nil, err
	}
	if p.OwnerID != actorID {
		return nil, nil, ErrForbidden
	}
	if a.Status != domain.StatusPending {
		return nil, nil, ErrInvalidTransition
	}
	return a, p, nil
}

// Approve approves applicationID on behalf of actorID.
//
// Semantics:
//   - ErrApplicationNotFound if the application does not exist;
//     ErrForbidden if actorID does not own the pet. Nothing changes.
//   - ErrInvalidTransition if the application is no longer Pending.
//   - In one transaction: the application becomes Approved with
//     ApprovedAt = now, the pet becomes Adopted, and every other Pending
//     application for the pet becomes Rejected. If the pet was already
//     Adopted the whole transaction rolls back with ErrPetUnavailable.
//   - After commit the primary applicant and each cascaded applicant are
//     notified. Delivery failures are only counted.
func (s *LifecycleService) Approve(ctx context.Context, applicationID, actorID string) (_ *ApprovalResult, err error) {
	tr := otel.Tracer("services/LifecycleService")
	ctx, span := tr.Start(ctx, "Approve",
		trace.WithAttributes(
			attribute.String("application.id", applicationID),
			attribute.String("user.id", actorID),
		),
	)
	defer func() { observability.EndSpan(span, err, decisionBenign...) }()

	now := s.now()
	var (
		pet      *domain.Pet
		cascaded []domain.Application
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, p, err := loadForDecision(ctx, tx, applicationID, actorID)
		if err != nil {
			return err
		}
		pet = p

		ok, err := repo.TransitionApplication(ctx, tx, a.ID, domain.StatusApproved, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}

		adopted, err := repo.MarkPetAdopted(ctx, tx, p.ID, now)
		if err != nil {
			return err
		}
		if !adopted {
			return ErrPetUnavailable
		}

		siblings, err := repo.ListPendingSiblings(ctx, tx, p.ID, a.ID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(siblings))
		for _, sib := range siblings {
			ids = append(ids, sib.ID)
		}
		n, err := repo.RejectApplications(ctx, tx, ids, now)
		if err != nil {
			return err
		}
		// siblings are locked, so a mismatch means something bypassed the lock
		if n != int64(len(ids)) {
			return fmt.Errorf("cascade rejected %d of %d pending applications", n, len(ids))
		}
		cascaded = siblings
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordTransition(string(domain.StatusApproved))
	observability.RecordCascade(len(cascaded))
	span.SetAttributes(attribute.Int("cascade.rejected", len(cascaded)))

	approved, err := repo.GetApplication(ctx, s.DB, applicationID)
	if err != nil {
		return nil, err
	}

	pet.Status = domain.PetAdopted
	pet.UpdatedAt = now
	changes := make([]domain.StatusChange, 0, len(cascaded)+1)
	changes = append(changes, statusChange(approved, pet, false))
	for i := range cascaded {
		sib := cascaded[i]
		sib.Status = domain.StatusRejected
		sib.UpdatedAt = now
		changes = append(changes, statusChange(&sib, pet, true))
	}

	return &ApprovalResult{
		Application:     approved,
		CascadeRejected: len(cascaded),
		Notifications:   dispatch(ctx, s.Notifier, changes),
	}, nil
}

// Reject rejects applicationID on behalf of actorID. It runs the same checks
// as Approve, touches neither the pet nor other applications, and notifies
// the applicant after commit.
func (s *LifecycleService) Reject(ctx context.Context, applicationID, actorID string) (_ *RejectionResult, err error) {
	tr := otel.Tracer("services/LifecycleService")
	ctx, span := tr.Start(ctx, "Reject",
		trace.WithAttributes(
			attribute.String("application.id", applicationID),
			attribute.String("user.id", actorID),
		),
	)
	defer func() { observability.EndSpan(span, err, decisionBenign...) }()

	now := s.now()
	var pet *domain.Pet
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, p, err := loadForDecision(ctx, tx, applicationID, actorID)
		if err != nil {
			return err
		}
		pet = p
		ok, err := repo.TransitionApplication(ctx, tx, a.ID, domain.StatusRejected, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.RecordTransition(string(domain.StatusRejected))

	rejected, err := repo.GetApplication(ctx, s.DB, applicationID)
	if err != nil {
		return nil, err
	}
	return &RejectionResult{
		Application:   rejected,
		Notifications: dispatch(ctx, s.Notifier, []domain.StatusChange{statusChange(rejected, pet, false)}),
	}, nil
}

func statusChange(a *domain.Application, pet *domain.Pet, cascade bool) domain.StatusChange {
	ch := domain.StatusChange{Application: *a, Pet: *pet, Cascade: cascade}
	if a.Applicant != nil {
		ch.Applicant = *a.Applicant
	} else {
		ch.Applicant = domain.User{ID: a.ApplicantID}
	}
	ch.Application.Pet = nil
	ch.Application.Applicant = nil
	return ch
}
