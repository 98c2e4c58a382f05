// Package services defines the business logic for users, pets, vaccines, and
// adoption applications. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"
	"sort"
	"strings"
)

// Application lifecycle errors.
var (
	// ErrApplicationNotFound indicates that the requested application does not
	// exist or is not visible to the current user.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrForbidden is returned when the actor does not own the pet an
	// application targets, or otherwise lacks the right to act.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateApplication is returned when the applicant already has a
	// Pending application for the same pet.
	ErrDuplicateApplication = errors.New("a pending application for this pet already exists")

	// ErrInvalidTransition is returned when approving or rejecting an
	// application that is no longer Pending.
	ErrInvalidTransition = errors.New("application is not pending")

	// ErrNotificationFailed wraps delivery failures of a notification sink.
	// It is only ever counted, never returned to API callers.
	ErrNotificationFailed = errors.New("notification failed")
)

// Pet registry errors.
var (
	// ErrPetNotFound indicates that the pet does not exist.
	ErrPetNotFound = errors.New("pet not found")

	// ErrPetUnavailable is returned when the pet is not Available for a new
	// application, or was adopted concurrently during an approval.
	ErrPetUnavailable = errors.New("pet is not available for adoption")

	// ErrPetLocked is returned when deleting a pet with adoption in progress.
	ErrPetLocked = errors.New("pet has a pending adoption")

	// ErrUnknownVaccine is returned when a pet references vaccine ids that do
	// not exist.
	ErrUnknownVaccine = errors.New("unknown vaccine")
)

// Vaccine and user errors.
var (
	// ErrVaccineNotFound indicates that the vaccine does not exist.
	ErrVaccineNotFound = errors.New("vaccine not found")

	// ErrDuplicateVaccine is returned when the vaccine name is taken.
	ErrDuplicateVaccine = errors.New("vaccine already exists")

	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when the username or email is taken.
	ErrDuplicateUser = errors.New("username or email already registered")

	// ErrInvalidCredentials is returned by Login for any authentication
	// failure, without revealing which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStorageDisabled is returned by image operations when no object store
	// is configured.
	ErrStorageDisabled = errors.New("object storage is not configured")
)

// ValidationError reports malformed input, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add records msg for field, keeping the first message per field.
func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// orNil returns e when it carries at least one field error.
func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
