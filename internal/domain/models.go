// Package domain defines the persistence models for users, pets, vaccines,
// and adoption applications. These types are mapped with GORM and form the
// core data layer of the adoption backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// PetStatus is the availability of a pet in the registry.
type PetStatus string

const (
	PetAvailable PetStatus = "Available"
	PetPending   PetStatus = "Pending"
	PetAdopted   PetStatus = "Adopted"
)

// Valid reports whether s is one of the known pet statuses.
func (s PetStatus) Valid() bool {
	switch s {
	case PetAvailable, PetPending, PetAdopted:
		return true
	}
	return false
}

// ApplicationStatus is the lifecycle state of an adoption application.
// Pending is the only non-terminal state.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "Pending"
	StatusApproved ApplicationStatus = "Approved"
	StatusRejected ApplicationStatus = "Rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// User is a registered account. Users own pets and submit applications.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Username / Email: unique login identifiers.
//   - PasswordHash: bcrypt hash, never serialized.
//   - IsStaff: may manage the vaccine registry.
//   - ProfileImageKey: object-store key of the profile picture, if any.
type User struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	Username        string         `json:"username"          gorm:"type:varchar(150);not null;uniqueIndex:ux_users_username"`
	Email           string         `json:"email"             gorm:"type:varchar(254);not null;uniqueIndex:ux_users_email"`
	PasswordHash    string         `json:"-"                 gorm:"type:varchar(100);not null"`
	FirstName       string         `json:"first_name"        gorm:"type:varchar(30)"`
	LastName        string         `json:"last_name"         gorm:"type:varchar(30)"`
	PhoneNumber     string         `json:"phone_number"      gorm:"type:varchar(10)"`
	Address         string         `json:"address"           gorm:"type:text"`
	Description     string         `json:"description"       gorm:"type:text"`
	ProfileImageKey string         `json:"-"                 gorm:"type:varchar(255)"`
	IsStaff         bool           `json:"is_staff"          gorm:"not null;default:false"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`

	// ProfileImageURL is a presigned read URL attached on the way out.
	ProfileImageURL string `json:"profile_image_url,omitempty" gorm:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Vaccine is an entry of the shared vaccine registry.
type Vaccine struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Name            string    `json:"name"             gorm:"type:varchar(100);not null;uniqueIndex:ux_vaccines_name"`
	Description     string    `json:"description"      gorm:"type:text"`
	ProtectsAgainst string    `json:"protects_against" gorm:"type:varchar(255)"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for Vaccine.
func (Vaccine) TableName() string { return "vaccines" }

// Pet is a registry entry listed for adoption by its owner.
//
// Status starts Available. Approval of an application moves it to Adopted;
// nothing in this service moves it back.
type Pet struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	OwnerID     string         `json:"owner_id"     gorm:"type:char(36);not null;index:idx_owner_pets"`
	Name        string         `json:"name"         gorm:"type:varchar(100);not null"`
	Species     string         `json:"species"      gorm:"type:varchar(100);not null;index"`
	Breed       string         `json:"breed"        gorm:"type:varchar(100)"`
	Color       string         `json:"color"        gorm:"type:varchar(50)"`
	Weight      *float64       `json:"weight,omitempty"`
	Gender      string         `json:"gender"       gorm:"type:varchar(15)"`
	Status      PetStatus      `json:"status"       gorm:"type:varchar(15);not null;default:'Available';check:status IN ('Available','Pending','Adopted')"`
	Description string         `json:"description"  gorm:"type:text"`
	AdoptionFee float64        `json:"adoption_fee" gorm:"not null;default:0"`
	DOB         *time.Time     `json:"dob,omitempty"`
	ImageKey    string         `json:"-"            gorm:"type:varchar(255)"`
	CreatedAt   time.Time      `json:"created_at"   gorm:"index"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	Vaccines []Vaccine `json:"vaccines,omitempty" gorm:"many2many:pet_vaccines;constraint:OnDelete:CASCADE"`
	Owner    *User     `json:"-"                  gorm:"foreignKey:OwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	// ImageURL is a presigned read URL attached on the way out.
	ImageURL string `json:"image_url,omitempty" gorm:"-"`
	// AgeNow is the age computed at read time from DOB.
	AgeNow *PetAge `json:"age,omitempty" gorm:"-"`
}

// PetAge is an age in whole years and months.
type PetAge struct {
	Years  int `json:"years"`
	Months int `json:"months"`
}

// TableName returns the database table name for Pet.
func (Pet) TableName() string { return "pets" }

// Age returns the pet's age in whole years and months at now. ok is false
// when the date of birth is unknown.
func (p Pet) Age(now time.Time) (years, months int, ok bool) {
	if p.DOB == nil {
		return 0, 0, false
	}
	dob := p.DOB.UTC()
	now = now.UTC()
	years = now.Year() - dob.Year()
	months = int(now.Month()) - int(dob.Month())
	if now.Day() < dob.Day() {
		months--
	}
	if months < 0 {
		years--
		months += 12
	}
	return years, months, true
}

// Application is a request by a user to adopt a specific pet.
//
// Invariants:
//   - at most one Pending application per (applicant, pet), enforced by the
//     partial unique index ux_applications_pending;
//   - ApprovedAt is non-nil iff Status is Approved;
//   - Approved and Rejected are terminal.
//
// The descriptive fields carry no lifecycle meaning.
type Application struct {
	ID            string            `json:"id"             gorm:"type:char(36);primaryKey"`
	PetID         string            `json:"pet_id"         gorm:"type:char(36);not null;index:idx_app_pet_status,priority:1"`
	ApplicantID   string            `json:"applicant_id"   gorm:"type:char(36);not null;index:idx_app_applicant,priority:1"`
	Status        ApplicationStatus `json:"status"         gorm:"type:varchar(16);not null;default:'Pending';index:idx_app_pet_status,priority:2;check:status IN ('Pending','Approved','Rejected')"`
	Notes         string            `json:"notes"          gorm:"type:text;not null"`
	RequestedDate *time.Time        `json:"requested_date,omitempty"`

	HousingType      string `json:"housing_type"       gorm:"type:varchar(50);not null"`
	HomeOwnership    string `json:"home_ownership"     gorm:"type:varchar(50);not null"`
	HasOtherPets     bool   `json:"has_other_pets"     gorm:"not null;default:false"`
	OtherPetsDetails string `json:"other_pets_details" gorm:"type:text"`
	WorkSchedule     string `json:"work_schedule"      gorm:"type:text"`

	SubmittedAt time.Time  `json:"submitted_at" gorm:"not null;index:idx_app_applicant,priority:2"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`

	Pet       *Pet  `json:"pet,omitempty"       gorm:"foreignKey:PetID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Applicant *User `json:"applicant,omitempty" gorm:"foreignKey:ApplicantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Application.
func (Application) TableName() string { return "applications" }
