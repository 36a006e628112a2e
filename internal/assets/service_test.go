package assets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type memRepo struct {
	assets map[int64]Asset
	cats   map[int64]Category
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{assets: make(map[int64]Asset), cats: make(map[int64]Category), nextID: 1}
}

func (m *memRepo) ListCategories(ctx context.Context) ([]Category, error) {
	out := make([]Category, 0, len(m.cats))
	for _, cat := range m.cats {
		out = append(out, cat)
	}
	return out, nil
}

func (m *memRepo) CreateCategory(ctx context.Context, name, description string) (Category, error) {
	cat := Category{ID: m.nextID, Name: name, Description: description}
	m.nextID++
	m.cats[cat.ID] = cat
	return cat, nil
}

func (m *memRepo) DeleteCategory(ctx context.Context, id int64) error {
	if _, ok := m.cats[id]; !ok {
		return ErrNotFound
	}
	delete(m.cats, id)
	return nil
}

func (m *memRepo) List(ctx context.Context, filters ListFilters) ([]Asset, int, error) {
	out := make([]Asset, 0, len(m.assets))
	for _, asset := range m.assets {
		out = append(out, asset)
	}
	return out, len(out), nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (Asset, error) {
	asset, ok := m.assets[id]
	if !ok {
		return Asset{}, ErrNotFound
	}
	return asset, nil
}

func (m *memRepo) Create(ctx context.Context, asset Asset) (Asset, error) {
	for _, existing := range m.assets {
		if existing.Tag == asset.Tag {
			return Asset{}, ErrDuplicateTag
		}
	}
	asset.ID = m.nextID
	m.nextID++
	m.assets[asset.ID] = asset
	return asset, nil
}

func (m *memRepo) Update(ctx context.Context, id int64, name string, categoryID int64, serialNumber, note string) (Asset, error) {
	asset, ok := m.assets[id]
	if !ok {
		return Asset{}, ErrNotFound
	}
	asset.Name = name
	asset.CategoryID = categoryID
	asset.SerialNumber = serialNumber
	asset.Note = note
	m.assets[id] = asset
	return asset, nil
}

func (m *memRepo) SetStatus(ctx context.Context, id int64, from, to Status, departmentID *int64) (Asset, error) {
	asset, ok := m.assets[id]
	if !ok || asset.Status != from {
		return Asset{}, ErrInvalidTransition
	}
	asset.Status = to
	asset.DepartmentID = departmentID
	m.assets[id] = asset
	return asset, nil
}

func (m *memRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.assets[id]; !ok {
		return ErrNotFound
	}
	delete(m.assets, id)
	return nil
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterGeneratesTag(t *testing.T) {
	svc := newTestService(newMemRepo())
	asset, err := svc.Register(context.Background(), 1, Asset{Name: "Pallet Jack", CategoryID: 1})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.HasPrefix(asset.Tag, "AST-") {
		t.Fatalf("tag = %q", asset.Tag)
	}
	if asset.Status != StatusInStock {
		t.Fatalf("status = %q", asset.Status)
	}
}

func TestIssueAndReturn(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	asset, err := svc.Register(context.Background(), 1, Asset{Name: "Forklift", CategoryID: 1})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	issued, err := svc.Issue(context.Background(), 1, asset.ID, 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.Status != StatusIssued || issued.DepartmentID == nil || *issued.DepartmentID != 7 {
		t.Fatalf("issued = %+v", issued)
	}

	returned, err := svc.Return(context.Background(), 1, asset.ID)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if returned.Status != StatusInStock || returned.DepartmentID != nil {
		t.Fatalf("returned = %+v", returned)
	}
}

func TestWriteOffIsTerminal(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	asset, err := svc.Register(context.Background(), 1, Asset{Name: "Ladder", CategoryID: 1})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.WriteOff(context.Background(), 1, asset.ID); err != nil {
		t.Fatalf("write off: %v", err)
	}
	if _, err := svc.Issue(context.Background(), 1, asset.ID, 7); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("issue after write-off err = %v", err)
	}
	if _, err := svc.Return(context.Background(), 1, asset.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("return after write-off err = %v", err)
	}
}

func TestIssueRequiresDepartment(t *testing.T) {
	svc := newTestService(newMemRepo())
	if _, err := svc.Issue(context.Background(), 1, 1, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}
