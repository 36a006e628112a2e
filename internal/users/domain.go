package users

import "time"

// User is an administrable account. PasswordHash never leaves the package.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	IsSystem     bool
	RoleIDs      []int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
