// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vaccine model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-adoption-backend/internal/domain"
)

// ListVaccines returns every vaccine ordered by name.
func ListVaccines(ctx context.Context, db *gorm.DB) ([]domain.Vaccine, error) {
	var out []domain.Vaccine
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// FindVaccines returns the vaccines with the given ids. Unknown ids are
// silently absent from the result; callers compare lengths.
func FindVaccines(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Vaccine, error) {
	out := []domain.Vaccine{}
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&out).Error
	return out, err
}

// GetVaccine fetches a vaccine by id or returns ErrNotFound.
func GetVaccine(ctx context.Context, db *gorm.DB, id string) (*domain.Vaccine, error) {
	var v domain.Vaccine
	if err := db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVaccine inserts v. A name clash is returned as ErrDuplicate.
func CreateVaccine(ctx context.Context, db *gorm.DB, v *domain.Vaccine) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateVaccine rewrites the descriptive columns of v.
func UpdateVaccine(ctx context.Context, db *gorm.DB, v *domain.Vaccine) error {
	v.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Vaccine{}).Where("id = ?", v.ID).
		Select("name", "description", "protects_against", "updated_at").
		Updates(v)
	if res.Error != nil {
		if IsDuplicate(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteVaccine removes a vaccine and its pet links.
func DeleteVaccine(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM pet_vaccines WHERE vaccine_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Vaccine{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
