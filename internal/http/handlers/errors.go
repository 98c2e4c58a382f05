// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Service errors are translated in one place, failErr, so
// every endpoint reports the same condition the same way:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "duplicate_application",
//	  "message": "a pending application for this pet already exists"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-adoption-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "service_unavailable"

	// Domain-specific:
	ErrCodeDuplicateApplication = "duplicate_application"
	ErrCodeInvalidTransition    = "invalid_transition"
	ErrCodePetUnavailable       = "pet_unavailable"
	ErrCodePetLocked            = "pet_locked"
	ErrCodeInvalidCredentials   = "invalid_credentials"
	ErrCodeRenderFailed         = "render_failed"
)

type errMapping struct {
	target error
	status int
	code   string
}

// errTable maps service sentinels to responses. Order matters only for
// errors that wrap more than one sentinel.
var errTable = []errMapping{
	{services.ErrApplicationNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrPetNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrVaccineNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	{services.ErrDuplicateApplication, http.StatusConflict, ErrCodeDuplicateApplication},
	{services.ErrInvalidTransition, http.StatusConflict, ErrCodeInvalidTransition},
	{services.ErrPetUnavailable, http.StatusConflict, ErrCodePetUnavailable},
	{services.ErrPetLocked, http.StatusConflict, ErrCodePetLocked},
	{services.ErrDuplicateVaccine, http.StatusConflict, ErrCodeConflict},
	{services.ErrDuplicateUser, http.StatusConflict, ErrCodeConflict},
	{services.ErrUnknownVaccine, http.StatusUnprocessableEntity, ErrCodeValidation},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeInvalidCredentials},
	{services.ErrStorageDisabled, http.StatusServiceUnavailable, ErrCodeUnavailable},
}

// failErr writes the response for a service error. Validation errors carry
// their per-field messages; unknown errors become a logged 500 whose message
// does not leak internals.
func failErr(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		failFields(c, http.StatusUnprocessableEntity, ErrCodeValidation, "validation failed", verr.Fields)
		return
	}
	for _, m := range errTable {
		if errors.Is(err, m.target) {
			fail(c, m.status, m.code, m.target.Error())
			return
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}
