// Package services – UserService
//
// This file implements accounts: registration with bcrypt-hashed passwords,
// login that returns a signed bearer token, and the caller's own profile.
package services

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/observability"
	"github.com/tbourn/go-adoption-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string, staff bool) (string, time.Time, error)
}

// Registration is the sign-up form.
type Registration struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Email       *string
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Address     *string
	Description *string
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

var (
	usernameRE = regexp.MustCompile(`^[A-Za-z0-9_.@+-]{3,150}$`)
	phoneRE    = regexp.MustCompile(`^[0-9]{1,10}$`)
)

const minPasswordLen = 8

// UserService implements accounts and profiles.
type UserService struct {
	DB     *gorm.DB
	Tokens TokenIssuer
	// Images signs profile image URLs; nil disables image features.
	Images ImageSigner
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func validEmail(v string) bool {
	a, err := mail.ParseAddress(v)
	return err == nil && a.Address == v
}

// Register creates an account.
func (s *UserService) Register(ctx context.Context, r Registration) (_ *domain.User, err error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Register")
	defer func() { observability.EndSpan(span, err, ErrDuplicateUser) }()

	ve := &ValidationError{}
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = collapse(r.FirstName)
	r.LastName = collapse(r.LastName)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	if !usernameRE.MatchString(r.Username) {
		ve.add("username", "must be 3-150 letters, digits or @.+-_")
	}
	if !validEmail(r.Email) {
		ve.add("email", "must be a valid address")
	}
	switch {
	case utf8.RuneCountInString(r.Password) < minPasswordLen:
		ve.add("password", "must be at least 8 characters")
	case len(r.Password) > 72:
		ve.add("password", "is too long")
	}
	if utf8.RuneCountInString(r.FirstName) > 30 {
		ve.add("first_name", "is too long")
	}
	if utf8.RuneCountInString(r.LastName) > 30 {
		ve.add("last_name", "is too long")
	}
	if r.PhoneNumber != "" && !phoneRE.MatchString(r.PhoneNumber) {
		ve.add("phone_number", "must be up to 10 digits")
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), cost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: string(hash),
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PhoneNumber:  r.PhoneNumber,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return u, nil
}

// Login checks login (username or email) and password and returns a
// session token. Every failure is ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, login, password string) (_ *Session, err error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Login")
	defer func() { observability.EndSpan(span, err, ErrInvalidCredentials) }()

	u, err := repo.GetUserByLogin(ctx, s.DB, login)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	tok, exp, err := s.Tokens.Issue(u.ID, u.IsStaff)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	s.attachImage(ctx, u)
	return &Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

// Profile returns the user with id.
func (s *UserService) Profile(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.attachImage(ctx, u)
	return u, nil
}

// UpdateProfile applies the non-nil fields of p to user id.
func (s *UserService) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (_ *domain.User, err error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "UpdateProfile", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { observability.EndSpan(span, err, ErrUserNotFound, ErrDuplicateUser) }()

	ve := &ValidationError{}
	fields := map[string]any{}
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		if !validEmail(e) {
			ve.add("email", "must be a valid address")
		}
		fields["email"] = e
	}
	text := func(field string, v *string, max int) {
		if v == nil {
			return
		}
		t := strings.TrimSpace(*v)
		if max > 0 && utf8.RuneCountInString(t) > max {
			ve.add(field, "is too long")
		}
		fields[field] = t
	}
	text("first_name", p.FirstName, 30)
	text("last_name", p.LastName, 30)
	text("address", p.Address, 0)
	text("description", p.Description, 0)
	if p.PhoneNumber != nil {
		ph := strings.TrimSpace(*p.PhoneNumber)
		if ph != "" && !phoneRE.MatchString(ph) {
			ve.add("phone_number", "must be up to 10 digits")
		}
		fields["phone_number"] = ph
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := repo.UpdateUser(ctx, s.DB, id, fields); err != nil {
			switch {
			case errors.Is(err, repo.ErrNotFound):
				return nil, ErrUserNotFound
			case errors.Is(err, repo.ErrDuplicate):
				return nil, ErrDuplicateUser
			}
			return nil, err
		}
	}
	return s.Profile(ctx, id)
}

// ImageUploadURL stores a fresh profile image key for user id and returns a
// presigned PUT URL for it.
func (s *UserService) ImageUploadURL(ctx context.Context, id, filename string) (_ *ImageUpload, err error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "ImageUploadURL", trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { observability.EndSpan(span, err, ErrUserNotFound, ErrStorageDisabled) }()

	if s.Images == nil {
		return nil, ErrStorageDisabled
	}
	ext, contentType, ok := imageContentType(filename)
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"filename": "must be a .jpg, .jpeg, .png, .gif or .webp image"}}
	}
	key := "profile_images/" + id + "/" + uuid.NewString() + ext
	url, err := s.Images.PresignPut(ctx, key, contentType)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateUser(ctx, s.DB, id, map[string]any{"profile_image_key": key}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &ImageUpload{URL: url, Key: key, Method: "PUT"}, nil
}

func (s *UserService) attachImage(ctx context.Context, u *domain.User) {
	if s.Images == nil || u.ProfileImageKey == "" {
		return
	}
	url, err := s.Images.PresignGet(ctx, u.ProfileImageKey)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("user_id", u.ID).Msg("presign profile image")
		return
	}
	u.ProfileImageURL = url
}
