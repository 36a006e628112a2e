package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

type fakeRepo struct {
	users  map[int64]User
	roles  map[int64]map[int64]struct{}
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[int64]User), roles: make(map[int64]map[int64]struct{}), nextID: 1}
}

func (f *fakeRepo) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	out := make([]User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (User, error) {
	user, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (f *fakeRepo) Create(ctx context.Context, email, fullName, passwordHash string, isActive bool) (User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return User{}, ErrDuplicateEmail
		}
	}
	user := User{ID: f.nextID, Email: email, FullName: fullName, PasswordHash: passwordHash, IsActive: isActive}
	f.users[user.ID] = user
	f.nextID++
	return user, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, fullName string, isActive bool) (User, error) {
	user, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	user.FullName = fullName
	user.IsActive = isActive
	f.users[id] = user
	return user, nil
}

func (f *fakeRepo) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	user, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.users[id] = user
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeRepo) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	set := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		set[id] = struct{}{}
	}
	f.roles[userID] = set
	return nil
}

func (f *fakeRepo) AddRole(ctx context.Context, userID, roleID int64) (bool, error) {
	set, ok := f.roles[userID]
	if !ok {
		set = make(map[int64]struct{})
		f.roles[userID] = set
	}
	if _, held := set[roleID]; held {
		return false, nil
	}
	set[roleID] = struct{}{}
	return true, nil
}

func (f *fakeRepo) RemoveRole(ctx context.Context, userID, roleID int64) (bool, error) {
	set, ok := f.roles[userID]
	if !ok {
		return false, nil
	}
	if _, held := set[roleID]; !held {
		return false, nil
	}
	delete(set, roleID)
	return true, nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return nil
}

func newTestService(repo *fakeRepo, inv Invalidator) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, nil, inv, logger)
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	user, err := svc.Create(context.Background(), 1, "Clerk@Example.com", "Depot Clerk", "hunter2hunter2", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "clerk@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	stored := repo.users[user.ID]
	if stored.PasswordHash == "hunter2hunter2" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2hunter2")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestCreateRejectsShortPassword(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)
	if _, err := svc.Create(context.Background(), 1, "a@b.co", "", "short", true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestMembershipChangesInvalidate(t *testing.T) {
	repo := newFakeRepo()
	inv := &countingInvalidator{}
	svc := newTestService(repo, inv)

	changed, err := svc.AddRole(context.Background(), 1, 5, 2)
	if err != nil || !changed {
		t.Fatalf("add role changed=%v err=%v", changed, err)
	}
	if inv.calls != 1 {
		t.Fatalf("invalidations = %d", inv.calls)
	}
	// Idempotent repeat must not invalidate again.
	changed, err = svc.AddRole(context.Background(), 1, 5, 2)
	if err != nil || changed {
		t.Fatalf("repeat add changed=%v err=%v", changed, err)
	}
	if inv.calls != 1 {
		t.Fatalf("invalidations after no-op = %d", inv.calls)
	}
	changed, err = svc.RemoveRole(context.Background(), 1, 5, 2)
	if err != nil || !changed {
		t.Fatalf("remove changed=%v err=%v", changed, err)
	}
	if inv.calls != 2 {
		t.Fatalf("invalidations = %d", inv.calls)
	}
}
