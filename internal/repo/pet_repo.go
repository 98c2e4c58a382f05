// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Pet model.
//
// Error semantics:
//   - When a pet is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound).
//   - Status writers that are conditional report whether a row changed
//     instead of failing, so callers can decide what a miss means.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-adoption-backend/internal/domain"
)

// PetSort names a supported listing order.
type PetSort string

const (
	SortNewest       PetSort = "newest"
	SortOldest       PetSort = "oldest"
	SortNameAZ       PetSort = "name_az"
	SortNameZA       PetSort = "name_za"
	SortPriceLowHigh PetSort = "price_low_high"
	SortPriceHighLow PetSort = "price_high_low"
)

var petOrder = map[PetSort]string{
	SortNewest:       "pets.created_at DESC, pets.id DESC",
	SortOldest:       "pets.created_at ASC, pets.id ASC",
	SortNameAZ:       "pets.name ASC, pets.id ASC",
	SortNameZA:       "pets.name DESC, pets.id DESC",
	SortPriceLowHigh: "pets.adoption_fee ASC, pets.id ASC",
	SortPriceHighLow: "pets.adoption_fee DESC, pets.id DESC",
}

// PetQuery holds optional search filters. Zero values mean "no filter".
type PetQuery struct {
	Name           string // case-insensitive substring
	Species        string
	Breed          string
	Gender         string
	Status         domain.PetStatus
	MinWeight      *float64
	MaxWeight      *float64
	MinFee         *float64
	MaxFee         *float64
	BornOnOrAfter  *time.Time // dob >=
	BornOnOrBefore *time.Time // dob <=
	VaccinatedOnly bool
	OwnerID        string
	ExcludeOwnerID string
	Sort           PetSort
	Offset         int
	Limit          int
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func applyPetFilters(q *gorm.DB, f PetQuery) *gorm.DB {
	if s := strings.TrimSpace(f.Name); s != "" {
		q = q.Where(`LOWER(pets.name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(s))+"%")
	}
	if f.Species != "" {
		q = q.Where("pets.species = ?", f.Species)
	}
	if f.Breed != "" {
		q = q.Where("pets.breed = ?", f.Breed)
	}
	if f.Gender != "" {
		q = q.Where("pets.gender = ?", f.Gender)
	}
	if f.Status != "" {
		q = q.Where("pets.status = ?", f.Status)
	}
	if f.MinWeight != nil {
		q = q.Where("pets.weight >= ?", *f.MinWeight)
	}
	if f.MaxWeight != nil {
		q = q.Where("pets.weight <= ?", *f.MaxWeight)
	}
	if f.MinFee != nil {
		q = q.Where("pets.adoption_fee >= ?", *f.MinFee)
	}
	if f.MaxFee != nil {
		q = q.Where("pets.adoption_fee <= ?", *f.MaxFee)
	}
	if f.BornOnOrAfter != nil {
		q = q.Where("pets.dob >= ?", f.BornOnOrAfter.UTC())
	}
	if f.BornOnOrBefore != nil {
		q = q.Where("pets.dob <= ?", f.BornOnOrBefore.UTC())
	}
	if f.VaccinatedOnly {
		q = q.Where("EXISTS (SELECT 1 FROM pet_vaccines pv WHERE pv.pet_id = pets.id)")
	}
	if f.OwnerID != "" {
		q = q.Where("pets.owner_id = ?", f.OwnerID)
	}
	if f.ExcludeOwnerID != "" {
		q = q.Where("pets.owner_id <> ?", f.ExcludeOwnerID)
	}
	return q
}

// SearchPets returns one page of pets matching f and the total match count.
func SearchPets(ctx context.Context, db *gorm.DB, f PetQuery) ([]domain.Pet, int64, error) {
	base := applyPetFilters(db.WithContext(ctx).Model(&domain.Pet{}), f)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Pet{}, 0, nil
	}

	order, ok := petOrder[f.Sort]
	if !ok {
		order = petOrder[SortNewest]
	}
	var out []domain.Pet
	q := base.Session(&gorm.Session{}).Preload("Vaccines").Order(order)
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListPetsByOwner returns a page of ownerID's pets, newest first.
func ListPetsByOwner(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Pet, int64, error) {
	return SearchPets(ctx, db, PetQuery{OwnerID: ownerID, Sort: SortNewest, Offset: offset, Limit: limit})
}

// ListLatestPets returns the n most recently listed Available pets.
func ListLatestPets(ctx context.Context, db *gorm.DB, n int) ([]domain.Pet, error) {
	var out []domain.Pet
	err := db.WithContext(ctx).
		Where("status = ?", domain.PetAvailable).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&out).Error
	return out, err
}

// ListBreeds returns the distinct non-empty breeds of species, sorted,
// skipping pets owned by excludeOwnerID.
func ListBreeds(ctx context.Context, db *gorm.DB, species, excludeOwnerID string) ([]string, error) {
	q := db.WithContext(ctx).Model(&domain.Pet{}).
		Where("breed IS NOT NULL AND breed <> ''")
	if species != "" {
		q = q.Where("species = ?", species)
	}
	if excludeOwnerID != "" {
		q = q.Where("owner_id <> ?", excludeOwnerID)
	}
	var out []string
	err := q.Distinct().Order("breed ASC").Pluck("breed", &out).Error
	return out, err
}

// CreatePet inserts p together with its vaccine links.
func CreatePet(ctx context.Context, db *gorm.DB, p *domain.Pet) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.PetAvailable
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	// vaccines already exist; only the join rows are written
	return db.WithContext(ctx).Omit("Vaccines.*").Create(p).Error
}

// GetPet fetches a pet by id with its vaccines, or ErrNotFound.
func GetPet(ctx context.Context, db *gorm.DB, id string) (*domain.Pet, error) {
	var p domain.Pet
	if err := db.WithContext(ctx).Preload("Vaccines").Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPetForUpdate fetches a pet inside a transaction, taking a row lock
// where the dialect supports one.
func GetPetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*domain.Pet, error) {
	q := tx.WithContext(ctx)
	if isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p domain.Pet
	if err := q.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePet writes the mutable columns of p and, when vaccines is non-nil,
// replaces its vaccine links.
func UpdatePet(ctx context.Context, db *gorm.DB, p *domain.Pet, vaccines []domain.Vaccine) error {
	p.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Pet{}).Where("id = ?", p.ID).
			Select("name", "species", "breed", "color", "weight", "gender",
				"description", "adoption_fee", "dob", "updated_at").
			Updates(p)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if vaccines == nil {
			return nil
		}
		return tx.Model(p).Association("Vaccines").Replace(vaccines)
	})
}

// DeletePet soft-deletes a pet and drops its vaccine links. Applications
// keep referencing the row for history.
func DeletePet(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM pet_vaccines WHERE pet_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Pet{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MarkPetAdopted moves the pet to Adopted unless it already is. It reports
// false when no row changed, which is how a lost approval race shows up.
func MarkPetAdopted(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Pet{}).
		Where("id = ? AND status <> ?", id, domain.PetAdopted).
		Updates(map[string]any{"status": domain.PetAdopted, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetPetImageKey records the object-store key of the pet picture.
func SetPetImageKey(ctx context.Context, db *gorm.DB, id, key string) error {
	res := db.WithContext(ctx).Model(&domain.Pet{}).Where("id = ?", id).
		Updates(map[string]any{"image_key": key, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
