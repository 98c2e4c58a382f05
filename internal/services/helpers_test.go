package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(repo.SQLiteDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func seedUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedPet(t *testing.T, db *gorm.DB, ownerID string, status domain.PetStatus) *domain.Pet {
	t.Helper()
	p := &domain.Pet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      "Rex",
		Species:   "Dog",
		Status:    status,
		CreatedAt: testNow,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed pet: %v", err)
	}
	return p
}

func seedApplication(t *testing.T, db *gorm.DB, petID, applicantID string, status domain.ApplicationStatus) *domain.Application {
	t.Helper()
	a := &domain.Application{
		ID:            uuid.NewString(),
		PetID:         petID,
		ApplicantID:   applicantID,
		Status:        status,
		Notes:         "notes",
		HousingType:   "House",
		HomeOwnership: "Own",
		SubmittedAt:   testNow,
		UpdatedAt:     testNow,
	}
	if status == domain.StatusApproved {
		at := testNow
		a.ApprovedAt = &at
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}
	return a
}

func validInput() ApplicationInput {
	return ApplicationInput{
		Notes:         "I have a big garden",
		HousingType:   "House",
		HomeOwnership: "Own",
	}
}

func reload(t *testing.T, db *gorm.DB, id string) *domain.Application {
	t.Helper()
	var a domain.Application
	if err := db.Where("id = ?", id).First(&a).Error; err != nil {
		t.Fatalf("reload application %s: %v", id, err)
	}
	return &a
}

func petStatus(t *testing.T, db *gorm.DB, id string) domain.PetStatus {
	t.Helper()
	var p domain.Pet
	if err := db.Unscoped().Where("id = ?", id).First(&p).Error; err != nil {
		t.Fatalf("reload pet %s: %v", id, err)
	}
	return p.Status
}

// recorder is a Notifier that keeps every change it is given and fails for
// the applicants listed in failFor.
type recorder struct {
	mu      sync.Mutex
	got     []domain.StatusChange
	failFor map[string]bool
}

func (r *recorder) NotifyStatusChange(_ context.Context, ch domain.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ch)
	if r.failFor[ch.Applicant.ID] {
		return fmt.Errorf("mailbox full")
	}
	return nil
}

// fakeSigner returns deterministic URLs.
type fakeSigner struct {
	putKeys []string
	err     error
}

func (f *fakeSigner) PresignGet(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://store.test/" + key + "?sig=get", nil
}

func (f *fakeSigner) PresignPut(_ context.Context, key, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.putKeys = append(f.putKeys, key)
	return "https://store.test/" + key + "?sig=put&ct=" + contentType, nil
}
