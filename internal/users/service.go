package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/depot-aim/depot-aim/internal/shared"
)

// ErrInvalidInput marks requests the service refuses to act on.
var ErrInvalidInput = errors.New("users: invalid input")

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, email, fullName, passwordHash string, isActive bool) (User, error)
	Update(ctx context.Context, id int64, fullName string, isActive bool) (User, error)
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error
	AddRole(ctx context.Context, userID, roleID int64) (bool, error)
	RemoveRole(ctx context.Context, userID, roleID int64) (bool, error)
}

// Invalidator is notified after any membership change so downstream caches
// drop stale effective rights.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service wraps account management rules.
type Service struct {
	repo        RepositoryPort
	audit       *shared.AuditLogger
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService constructs the Service. audit and invalidator may be nil.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: logger}
}

// List returns a page of accounts.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	users, total, err := s.repo.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(page, perPage, total), nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create registers an account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, actorID int64, email, fullName, password string, isActive bool) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.Create(ctx, email, strings.TrimSpace(fullName), string(hash), isActive)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "create", user.ID, nil)
	return user, nil
}

// Update changes profile fields and the active flag.
func (s *Service) Update(ctx context.Context, actorID, id int64, fullName string, isActive bool) (User, error) {
	user, err := s.repo.Update(ctx, id, strings.TrimSpace(fullName), isActive)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "update", id, map[string]any{"is_active": isActive})
	return user, nil
}

// SetPassword replaces the account password.
func (s *Service) SetPassword(ctx context.Context, actorID, id int64, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.record(ctx, actorID, "set_password", id, nil)
	return nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", id, nil)
	return nil
}

// ReplaceRoles swaps the account's memberships and drops stale rights caches.
func (s *Service) ReplaceRoles(ctx context.Context, actorID, id int64, roleIDs []int64) error {
	if err := s.repo.ReplaceRoles(ctx, id, roleIDs); err != nil {
		return err
	}
	s.afterMembershipChange(ctx)
	s.record(ctx, actorID, "replace_roles", id, map[string]any{"role_ids": roleIDs})
	return nil
}

// AddRole grants one membership, idempotently.
func (s *Service) AddRole(ctx context.Context, actorID, id, roleID int64) (bool, error) {
	changed, err := s.repo.AddRole(ctx, id, roleID)
	if err != nil {
		return false, err
	}
	if changed {
		s.afterMembershipChange(ctx)
		s.record(ctx, actorID, "add_role", id, map[string]any{"role_id": roleID})
	}
	return changed, nil
}

// RemoveRole revokes one membership, idempotently.
func (s *Service) RemoveRole(ctx context.Context, actorID, id, roleID int64) (bool, error) {
	changed, err := s.repo.RemoveRole(ctx, id, roleID)
	if err != nil {
		return false, err
	}
	if changed {
		s.afterMembershipChange(ctx)
		s.record(ctx, actorID, "remove_role", id, map[string]any{"role_id": roleID})
	}
	return changed, nil
}

func (s *Service) afterMembershipChange(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate rights cache", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
