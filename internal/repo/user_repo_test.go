package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-adoption-backend/internal/domain"
)

func TestCreateUser_AssignsIDAndRejectsDuplicates(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	u := &domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	if err := CreateUser(ctx, db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps to be set: %+v", u)
	}

	dup := &domain.User{Username: "alice", Email: "other@example.com", PasswordHash: "h"}
	if err := CreateUser(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for username clash, got %v", err)
	}
}

func TestCreateUser_Error_NoTable(t *testing.T) {
	db := newBareDB(t)
	if err := CreateUser(context.Background(), db, &domain.User{Username: "x", Email: "x@x"}); err == nil {
		t.Fatalf("expected error without users table")
	}
}

func TestGetUserByLogin_UsernameOrEmailCaseInsensitive(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "Bob")

	for _, login := range []string{"bob", "BOB", " Bob@Example.com "} {
		got, err := GetUserByLogin(ctx, db, login)
		if err != nil || got.ID != u.ID {
			t.Fatalf("GetUserByLogin(%q) = %+v, %v", login, got, err)
		}
	}
	if _, err := GetUserByLogin(ctx, db, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAndUpdateUser(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "carol")
	seedUser(t, db, "dave")

	if err := UpdateUser(ctx, db, u.ID, map[string]any{"first_name": "Carol", "phone_number": "5551234"}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, err := GetUser(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.FirstName != "Carol" || got.PhoneNumber != "5551234" {
		t.Fatalf("update not persisted: %+v", got)
	}

	if err := UpdateUser(ctx, db, u.ID, map[string]any{"email": "dave@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on email clash, got %v", err)
	}
	if err := UpdateUser(ctx, db, "missing", map[string]any{"first_name": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := GetUser(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
