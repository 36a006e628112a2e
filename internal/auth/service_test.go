package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/depot-aim/depot-aim/internal/shared"
)

type stubRepo struct {
	user   *User
	events []EventKind
}

func (r *stubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if r.user == nil || r.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return r.user, nil
}

func (r *stubRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	if r.user == nil || r.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return r.user, nil
}

func (r *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (r *stubRepo) DeleteSession(ctx context.Context, id string) error { return nil }

func (r *stubRepo) RecordEvent(ctx context.Context, userID *int64, email string, kind EventKind, ip, ua string) error {
	r.events = append(r.events, kind)
	return nil
}

func newStubService(t *testing.T, user *User) (*Service, *stubRepo) {
	t.Helper()
	repo := &stubRepo{user: user}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, logger), repo
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, repo := newStubService(t, &User{ID: 1, Email: "ops@example.com", PasswordHash: hash(t, "correct-horse"), IsActive: true})
	user, err := svc.Authenticate(context.Background(), "ops@example.com", "correct-horse", "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != 1 {
		t.Fatalf("user = %+v", user)
	}
	if len(repo.events) != 1 || repo.events[0] != EventLoginOK {
		t.Fatalf("events = %v", repo.events)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc, repo := newStubService(t, &User{ID: 1, Email: "ops@example.com", PasswordHash: hash(t, "correct-horse"), IsActive: true})
	if _, err := svc.Authenticate(context.Background(), "ops@example.com", "wrong", "", ""); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
	if len(repo.events) != 1 || repo.events[0] != EventLoginFailed {
		t.Fatalf("events = %v", repo.events)
	}
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	svc, _ := newStubService(t, &User{ID: 1, Email: "ops@example.com", PasswordHash: hash(t, "correct-horse"), IsActive: false})
	if _, err := svc.Authenticate(context.Background(), "ops@example.com", "correct-horse", "", ""); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc, repo := newStubService(t, nil)
	if _, err := svc.Authenticate(context.Background(), "nobody@example.com", "whatever1", "", ""); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
	if len(repo.events) != 1 || repo.events[0] != EventLoginFailed {
		t.Fatalf("events = %v", repo.events)
	}
}
