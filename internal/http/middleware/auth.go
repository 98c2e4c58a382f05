// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity once per request. Authenticate
// parses an optional bearer token and records the principal under the
// "userID" and "staff" Gin keys; it never rejects a request by itself.
// Routes that need a principal add RequireUser or RequireStaff.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-adoption-backend/internal/auth"
)

const (
	userIDKey = "userID"
	staffKey  = "staff"

	// HeaderDevUser carries a raw user id when development identities are
	// enabled. Never enable it in production.
	HeaderDevUser = "X-User-ID"
)

// ClaimsParser verifies a raw bearer token.
type ClaimsParser interface {
	Parse(raw string) (*auth.Claims, error)
}

// Authenticate records the principal carried by the Authorization header.
// A present but invalid token is answered with 401. When allowDevHeader is
// set and no token was sent, X-User-ID is trusted as the user id.
func Authenticate(parser ClaimsParser, allowDevHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw != "" && parser != nil {
			claims, err := parser.Parse(raw)
			if err != nil {
				c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
				c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(c, "unauthorized", "invalid or expired token"))
				return
			}
			c.Set(userIDKey, claims.UserID)
			c.Set(staffKey, claims.Staff)
			c.Next()
			return
		}
		if allowDevHeader {
			if uid := strings.TrimSpace(c.GetHeader(HeaderDevUser)); uid != "" {
				c.Set(userIDKey, uid)
			}
		}
		c.Next()
	}
}

// RequireUser answers 401 unless Authenticate resolved a principal.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalID(c) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(c, "unauthorized", "authentication required"))
			return
		}
		c.Next()
	}
}

// RequireStaff answers 401 for anonymous callers and 403 for non-staff ones.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalID(c) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(c, "unauthorized", "authentication required"))
			return
		}
		if !IsStaff(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody(c, "forbidden", "staff only"))
			return
		}
		c.Next()
	}
}

// PrincipalID returns the authenticated user id, or "" for anonymous calls.
func PrincipalID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	return asString(v)
}

// IsStaff reports whether the principal carries the staff flag.
func IsStaff(c *gin.Context) bool {
	v, _ := c.Get(staffKey)
	b, _ := v.(bool)
	return b
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
