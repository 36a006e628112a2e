package auth

import (
	"context"
	"time"

	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/depot-aim/depot-aim/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Authenticate validates email/password credentials and records the attempt.
// Unknown accounts, disabled accounts and bad passwords are indistinguishable
// to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password, ip, ua string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		s.recordEvent(ctx, nil, email, EventLoginFailed, ip, ua)
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.recordEvent(ctx, &user.ID, email, EventLoginFailed, ip, ua)
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordEvent(ctx, &user.ID, email, EventLoginFailed, ip, ua)
		return nil, shared.ErrInvalidCredentials
	}
	s.recordEvent(ctx, &user.ID, email, EventLoginOK, ip, ua)
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record and logs the logout.
func (s *Service) RemoveSession(ctx context.Context, id string, userID int64, ip, ua string) error {
	s.recordEvent(ctx, &userID, "", EventLogout, ip, ua)
	return s.repo.DeleteSession(ctx, id)
}

// UserByID loads the account backing the current session.
func (s *Service) UserByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) recordEvent(ctx context.Context, userID *int64, email string, kind EventKind, ip, ua string) {
	if err := s.repo.RecordEvent(ctx, userID, email, kind, ip, ua); err != nil {
		s.logger.Warn("record auth event", slog.Any("error", err))
	}
}
