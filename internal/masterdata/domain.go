package masterdata

import "time"

// Organization is a legal entity operating depots.
type Organization struct {
	ID        int64
	Name      string
	Code      string
	Address   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Department is an organizational unit equipment is issued to.
type Department struct {
	ID             int64
	OrganizationID int64
	Name           string
	Code           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ListFilters narrows listings.
type ListFilters struct {
	Query          string
	OrganizationID int64
	Limit          int
	Offset         int
}
