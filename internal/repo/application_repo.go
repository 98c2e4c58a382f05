// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Application model.
//
// Status transitions are written as conditional updates (WHERE status =
// 'Pending') and report whether a row changed. The lifecycle service turns a
// miss into the appropriate business error; these helpers never decide.
//
// Functions:
//
//   - CreateApplication(ctx, db, a) -> error (ErrDuplicate on the pending index)
//   - GetApplication(ctx, db, id) -> *domain.Application, error
//   - GetApplicationForUpdate(ctx, tx, id) -> *domain.Application, error
//   - ListApplicationsByApplicant(ctx, db, applicantID) -> []domain.Application, error
//   - ListApplicationsByOwner(ctx, db, ownerID) -> []domain.Application, error
//   - HasPendingApplication(ctx, db, applicantID, petID) -> bool, error
//   - CountPendingForPet(ctx, db, petID) -> int64, error
//   - TransitionApplication(ctx, db, id, to, now) -> bool, error
//   - ListPendingSiblings(ctx, db, petID, excludeID) -> []domain.Application, error
//   - RejectApplications(ctx, db, ids, now) -> int64, error
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-adoption-backend/internal/domain"
)

// unscopedPet preloads the pet even when it has been soft-deleted, so past
// applications still render.
func unscopedPet(db *gorm.DB) *gorm.DB { return db.Unscoped() }

// CreateApplication inserts a as Pending. A violation of the pending
// (applicant, pet) index is returned as ErrDuplicate.
func CreateApplication(ctx context.Context, db *gorm.DB, a *domain.Application) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Status = domain.StatusPending
	a.ApprovedAt = nil
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.SubmittedAt
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(a).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetApplication fetches an application with its pet and applicant.
func GetApplication(ctx context.Context, db *gorm.DB, id string) (*domain.Application, error) {
	var a domain.Application
	err := db.WithContext(ctx).
		Preload("Pet", unscopedPet).
		Preload("Applicant").
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetApplicationForUpdate reads the bare application row inside tx, locking
// it on PostgreSQL.
func GetApplicationForUpdate(ctx context.Context, tx *gorm.DB, id string) (*domain.Application, error) {
	q := tx.WithContext(ctx)
	if isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a domain.Application
	if err := q.Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListApplicationsByApplicant returns applicantID's applications, newest first.
func ListApplicationsByApplicant(ctx context.Context, db *gorm.DB, applicantID string) ([]domain.Application, error) {
	var out []domain.Application
	err := db.WithContext(ctx).
		Preload("Pet", unscopedPet).
		Where("applicant_id = ?", applicantID).
		Order("submitted_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// ListApplicationsByOwner returns every application for pets owned by
// ownerID, newest first.
func ListApplicationsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Application, error) {
	var out []domain.Application
	err := db.WithContext(ctx).
		Preload("Pet", unscopedPet).
		Preload("Applicant").
		Joins("JOIN pets ON pets.id = applications.pet_id").
		Where("pets.owner_id = ?", ownerID).
		Order("applications.submitted_at DESC, applications.id DESC").
		Find(&out).Error
	return out, err
}

// HasPendingApplication reports whether applicantID already has a Pending
// application for petID.
func HasPendingApplication(ctx context.Context, db *gorm.DB, applicantID, petID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Application{}).
		Where("applicant_id = ? AND pet_id = ? AND status = ?", applicantID, petID, domain.StatusPending).
		Count(&n).Error
	return n > 0, err
}

// CountPendingForPet counts Pending applications for petID.
func CountPendingForPet(ctx context.Context, db *gorm.DB, petID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Application{}).
		Where("pet_id = ? AND status = ?", petID, domain.StatusPending).
		Count(&n).Error
	return n, err
}

// TransitionApplication moves application id from Pending to `to`. Approval
// also stamps approved_at. It reports false when the row was not Pending.
func TransitionApplication(ctx context.Context, db *gorm.DB, id string, to domain.ApplicationStatus, now time.Time) (bool, error) {
	fields := map[string]any{"status": to, "updated_at": now}
	if to == domain.StatusApproved {
		fields["approved_at"] = now
	}
	res := db.WithContext(ctx).Model(&domain.Application{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPendingSiblings returns the Pending applications for petID other than
// excludeID, with their applicants loaded. On PostgreSQL the rows stay locked
// until tx ends, so a later RejectApplications in the same tx touches exactly
// these rows.
func ListPendingSiblings(ctx context.Context, tx *gorm.DB, petID, excludeID string) ([]domain.Application, error) {
	q := tx.WithContext(ctx)
	if isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "applications"}})
	}
	var out []domain.Application
	err := q.
		Preload("Applicant").
		Where("pet_id = ? AND status = ? AND id <> ?", petID, domain.StatusPending, excludeID).
		Order("submitted_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// RejectApplications moves the listed applications to Rejected as one
// statement. Rows no longer Pending are left alone.
func RejectApplications(ctx context.Context, db *gorm.DB, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Model(&domain.Application{}).
		Where("id IN ? AND status = ?", ids, domain.StatusPending).
		Updates(map[string]any{"status": domain.StatusRejected, "updated_at": now})
	return res.RowsAffected, res.Error
}
