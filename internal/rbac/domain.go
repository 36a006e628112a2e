package rbac

import "time"

// Role is a node in the authorization hierarchy. ParentID is nil for roots.
type Role struct {
	ID          int64
	Name        string
	Description string
	ParentID    *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Right is an atomic permission grant.
type Right struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assignment ties a right directly to a role. There is no inheritance:
// a role holds exactly the rights assigned to it, and cascade is the only
// mechanism that changes what descendants hold.
type Assignment struct {
	RoleID    int64
	RightID   int64
	CreatedAt time.Time
}

// Page maps a navigable path to the rights required to open it.
// An empty RequiredRights set means the page is open to any authenticated user.
type Page struct {
	ID             int64
	Path           string
	Name           string
	Description    string
	RequiredRights []int64
}

// User carries the identity facts the evaluator needs. IsSystem marks the
// super user that bypasses all rights checks.
type User struct {
	ID       int64
	IsSystem bool
	RoleIDs  []int64
}

// Action selects the direction of a single or cascaded assignment change.
type Action string

const (
	// ActionGrant adds an assignment.
	ActionGrant Action = "grant"
	// ActionRevoke removes an assignment.
	ActionRevoke Action = "revoke"
)

// Valid reports whether the action is one of the two known values.
func (a Action) Valid() bool {
	return a == ActionGrant || a == ActionRevoke
}
