package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks requests the service refuses to act on.
var ErrInvalidInput = errors.New("masterdata: invalid input")

// Service exposes master data operations.
type Service interface {
	ListOrganizations(ctx context.Context, filters ListFilters) ([]Organization, int, error)
	GetOrganization(ctx context.Context, id int64) (Organization, error)
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	UpdateOrganization(ctx context.Context, id int64, org Organization) error
	DeleteOrganization(ctx context.Context, id int64) error

	ListDepartments(ctx context.Context, filters ListFilters) ([]Department, int, error)
	GetDepartment(ctx context.Context, id int64) (Department, error)
	CreateDepartment(ctx context.Context, dept Department) (Department, error)
	UpdateDepartment(ctx context.Context, id int64, dept Department) error
	DeleteDepartment(ctx context.Context, id int64) error
}

type service struct {
	repo Repository
}

// NewService creates a master data service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListOrganizations(ctx context.Context, filters ListFilters) ([]Organization, int, error) {
	return s.repo.ListOrganizations(ctx, filters)
}

func (s *service) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	if id <= 0 {
		return Organization{}, fmt.Errorf("%w: invalid organization id", ErrInvalidInput)
	}
	return s.repo.GetOrganization(ctx, id)
}

func (s *service) CreateOrganization(ctx context.Context, org Organization) (Organization, error) {
	if err := validateOrganization(&org); err != nil {
		return Organization{}, err
	}
	return s.repo.CreateOrganization(ctx, org)
}

func (s *service) UpdateOrganization(ctx context.Context, id int64, org Organization) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid organization id", ErrInvalidInput)
	}
	if err := validateOrganization(&org); err != nil {
		return err
	}
	return s.repo.UpdateOrganization(ctx, id, org)
}

func (s *service) DeleteOrganization(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid organization id", ErrInvalidInput)
	}
	return s.repo.DeleteOrganization(ctx, id)
}

func (s *service) ListDepartments(ctx context.Context, filters ListFilters) ([]Department, int, error) {
	return s.repo.ListDepartments(ctx, filters)
}

func (s *service) GetDepartment(ctx context.Context, id int64) (Department, error) {
	if id <= 0 {
		return Department{}, fmt.Errorf("%w: invalid department id", ErrInvalidInput)
	}
	return s.repo.GetDepartment(ctx, id)
}

func (s *service) CreateDepartment(ctx context.Context, dept Department) (Department, error) {
	if err := validateDepartment(&dept); err != nil {
		return Department{}, err
	}
	if _, err := s.repo.GetOrganization(ctx, dept.OrganizationID); err != nil {
		return Department{}, fmt.Errorf("%w: organization %d", ErrInvalidInput, dept.OrganizationID)
	}
	return s.repo.CreateDepartment(ctx, dept)
}

func (s *service) UpdateDepartment(ctx context.Context, id int64, dept Department) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid department id", ErrInvalidInput)
	}
	if err := validateDepartment(&dept); err != nil {
		return err
	}
	return s.repo.UpdateDepartment(ctx, id, dept)
}

func (s *service) DeleteDepartment(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid department id", ErrInvalidInput)
	}
	return s.repo.DeleteDepartment(ctx, id)
}

func validateOrganization(org *Organization) error {
	org.Name = strings.TrimSpace(org.Name)
	org.Code = strings.ToUpper(strings.TrimSpace(org.Code))
	if org.Name == "" {
		return fmt.Errorf("%w: organization name required", ErrInvalidInput)
	}
	if org.Code == "" {
		return fmt.Errorf("%w: organization code required", ErrInvalidInput)
	}
	return nil
}

func validateDepartment(dept *Department) error {
	dept.Name = strings.TrimSpace(dept.Name)
	dept.Code = strings.ToUpper(strings.TrimSpace(dept.Code))
	if dept.OrganizationID <= 0 {
		return fmt.Errorf("%w: organization id required", ErrInvalidInput)
	}
	if dept.Name == "" {
		return fmt.Errorf("%w: department name required", ErrInvalidInput)
	}
	if dept.Code == "" {
		return fmt.Errorf("%w: department code required", ErrInvalidInput)
	}
	return nil
}
