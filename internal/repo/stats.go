// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-adoption-backend/internal/domain"
)

// ApplicantApplicationsStats returns the number of applications submitted by
// applicantID and the greatest UpdatedAt among them and their pets, since
// listings embed the pet. When there are none, count is 0 and maxUpdatedAt
// is nil.
func ApplicantApplicationsStats(ctx context.Context, db *gorm.DB, applicantID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Application{}).
		Joins("JOIN pets ON pets.id = applications.pet_id").
		Where("applications.applicant_id = ?", applicantID)
	return statsOf(q)
}

// OwnerApplicationsStats is ApplicantApplicationsStats for the applications
// received on pets owned by ownerID.
func OwnerApplicationsStats(ctx context.Context, db *gorm.DB, ownerID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Application{}).
		Joins("JOIN pets ON pets.id = applications.pet_id").
		Where("pets.owner_id = ?", ownerID)
	return statsOf(q)
}

func statsOf(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// ORDER BY + LIMIT instead of MAX(), which SQLite returns as TEXT
	var newest time.Time
	for _, col := range []string{"applications.updated_at", "pets.updated_at"} {
		var row struct {
			UpdatedAt time.Time
		}
		if err = q.Session(&gorm.Session{}).Select(col + " AS updated_at").
			Order(col + " DESC").Limit(1).Scan(&row).Error; err != nil {
			return 0, nil, err
		}
		if row.UpdatedAt.After(newest) {
			newest = row.UpdatedAt
		}
	}
	return count, &newest, nil
}
