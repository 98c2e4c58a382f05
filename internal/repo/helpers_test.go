package repo

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-adoption-backend/internal/domain"
)

// newRepoDB opens a private in-memory database with the full schema.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(SQLiteDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newBareDB opens an in-memory database without any tables.
func newBareDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:bare_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(SQLiteDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedPet(t *testing.T, db *gorm.DB, ownerID string, mutate func(p *domain.Pet)) *domain.Pet {
	t.Helper()
	p := &domain.Pet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      "Pet",
		Species:   "Dog",
		Status:    domain.PetAvailable,
		CreatedAt: time.Now().UTC(),
	}
	if mutate != nil {
		mutate(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed pet: %v", err)
	}
	return p
}

func seedApplication(t *testing.T, db *gorm.DB, petID, applicantID string, status domain.ApplicationStatus, at time.Time) *domain.Application {
	t.Helper()
	a := &domain.Application{
		ID:            uuid.NewString(),
		PetID:         petID,
		ApplicantID:   applicantID,
		Status:        status,
		Notes:         "notes",
		HousingType:   "House",
		HomeOwnership: "Own",
		SubmittedAt:   at,
		UpdatedAt:     at,
	}
	if status == domain.StatusApproved {
		a.ApprovedAt = &at
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}
	return a
}

func fptr(v float64) *float64 { return &v }
