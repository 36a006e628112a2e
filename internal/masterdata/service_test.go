package masterdata

import (
	"context"
	"errors"
	"testing"
)

type memRepo struct {
	orgs   map[int64]Organization
	depts  map[int64]Department
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{orgs: make(map[int64]Organization), depts: make(map[int64]Department), nextID: 1}
}

func (m *memRepo) ListOrganizations(ctx context.Context, filters ListFilters) ([]Organization, int, error) {
	out := make([]Organization, 0, len(m.orgs))
	for _, org := range m.orgs {
		out = append(out, org)
	}
	return out, len(out), nil
}

func (m *memRepo) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (m *memRepo) CreateOrganization(ctx context.Context, org Organization) (Organization, error) {
	for _, existing := range m.orgs {
		if existing.Code == org.Code {
			return Organization{}, ErrDuplicateCode
		}
	}
	org.ID = m.nextID
	m.nextID++
	m.orgs[org.ID] = org
	return org, nil
}

func (m *memRepo) UpdateOrganization(ctx context.Context, id int64, org Organization) error {
	if _, ok := m.orgs[id]; !ok {
		return ErrNotFound
	}
	org.ID = id
	m.orgs[id] = org
	return nil
}

func (m *memRepo) DeleteOrganization(ctx context.Context, id int64) error {
	delete(m.orgs, id)
	return nil
}

func (m *memRepo) ListDepartments(ctx context.Context, filters ListFilters) ([]Department, int, error) {
	out := make([]Department, 0, len(m.depts))
	for _, dept := range m.depts {
		out = append(out, dept)
	}
	return out, len(out), nil
}

func (m *memRepo) GetDepartment(ctx context.Context, id int64) (Department, error) {
	dept, ok := m.depts[id]
	if !ok {
		return Department{}, ErrNotFound
	}
	return dept, nil
}

func (m *memRepo) CreateDepartment(ctx context.Context, dept Department) (Department, error) {
	dept.ID = m.nextID
	m.nextID++
	m.depts[dept.ID] = dept
	return dept, nil
}

func (m *memRepo) UpdateDepartment(ctx context.Context, id int64, dept Department) error {
	if _, ok := m.depts[id]; !ok {
		return ErrNotFound
	}
	dept.ID = id
	m.depts[id] = dept
	return nil
}

func (m *memRepo) DeleteDepartment(ctx context.Context, id int64) error {
	delete(m.depts, id)
	return nil
}

func TestCreateOrganizationNormalizesCode(t *testing.T) {
	svc := NewService(newMemRepo())
	org, err := svc.CreateOrganization(context.Background(), Organization{Name: " Depot North ", Code: " dn-01 ", IsActive: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if org.Name != "Depot North" || org.Code != "DN-01" {
		t.Fatalf("org = %+v", org)
	}
}

func TestCreateOrganizationRequiresFields(t *testing.T) {
	svc := NewService(newMemRepo())
	if _, err := svc.CreateOrganization(context.Background(), Organization{Code: "X"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing name err = %v", err)
	}
	if _, err := svc.CreateOrganization(context.Background(), Organization{Name: "X"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing code err = %v", err)
	}
}

func TestCreateDepartmentChecksOrganization(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	if _, err := svc.CreateDepartment(context.Background(), Department{OrganizationID: 99, Name: "Tools", Code: "TL"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	org, err := svc.CreateOrganization(context.Background(), Organization{Name: "Depot", Code: "DP", IsActive: true})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	dept, err := svc.CreateDepartment(context.Background(), Department{OrganizationID: org.ID, Name: "Tools", Code: "tl"})
	if err != nil {
		t.Fatalf("create dept: %v", err)
	}
	if dept.Code != "TL" {
		t.Fatalf("dept = %+v", dept)
	}
}
