package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	IsSystem     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EventKind classifies an authentication event.
type EventKind string

const (
	EventLoginOK     EventKind = "login_ok"
	EventLoginFailed EventKind = "login_failed"
	EventLogout      EventKind = "logout"
)
