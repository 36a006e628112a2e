package assets

import (
	"errors"
	"time"
)

// Status enumerates asset lifecycle states.
type Status string

const (
	// StatusInStock marks an asset held at the depot, not issued.
	StatusInStock Status = "in_stock"
	// StatusIssued marks an asset issued to a department.
	StatusIssued Status = "issued"
	// StatusInRepair marks an asset sent out for repair.
	StatusInRepair Status = "in_repair"
	// StatusWrittenOff marks a decommissioned asset.
	StatusWrittenOff Status = "written_off"
)

// ErrInvalidTransition rejects a lifecycle move the state machine forbids.
var ErrInvalidTransition = errors.New("assets: invalid status transition")

// Category groups assets for reporting and search.
type Category struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Asset is a tracked piece of equipment. Tag is the external inventory
// label printed on the item; it is generated once and never reused.
type Asset struct {
	ID           int64
	Tag          string
	Name         string
	CategoryID   int64
	DepartmentID *int64
	SerialNumber string
	Status       Status
	Note         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListFilters narrows asset listings.
type ListFilters struct {
	Query        string
	CategoryID   int64
	DepartmentID int64
	Status       Status
	Limit        int
	Offset       int
}

// allowedTransitions is the asset lifecycle state machine.
var allowedTransitions = map[Status][]Status{
	StatusInStock:  {StatusIssued, StatusInRepair, StatusWrittenOff},
	StatusIssued:   {StatusInStock, StatusInRepair, StatusWrittenOff},
	StatusInRepair: {StatusInStock, StatusIssued, StatusWrittenOff},
}

func canTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
