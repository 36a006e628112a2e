package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/google/uuid"

	"github.com/depot-aim/depot-aim/internal/shared"
)

// ErrInvalidInput marks requests the service refuses to act on.
var ErrInvalidInput = errors.New("assets: invalid input")

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name, description string) (Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	List(ctx context.Context, filters ListFilters) ([]Asset, int, error)
	Get(ctx context.Context, id int64) (Asset, error)
	Create(ctx context.Context, asset Asset) (Asset, error)
	Update(ctx context.Context, id int64, name string, categoryID int64, serialNumber, note string) (Asset, error)
	SetStatus(ctx context.Context, id int64, from, to Status, departmentID *int64) (Asset, error)
	Delete(ctx context.Context, id int64) error
}

// Service coordinates the asset registry.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds the Service. audit may be nil.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Categories lists asset categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateCategory adds a category.
func (s *Service) CreateCategory(ctx context.Context, actorID int64, name, description string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name required", ErrInvalidInput)
	}
	cat, err := s.repo.CreateCategory(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Category{}, err
	}
	s.record(ctx, actorID, "create", "asset_category", cat.ID, nil)
	return cat, nil
}

// DeleteCategory removes an empty category.
func (s *Service) DeleteCategory(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", "asset_category", id, nil)
	return nil
}

// List returns a filtered page of assets.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Asset, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, id int64) (Asset, error) {
	return s.repo.Get(ctx, id)
}

// Register adds an asset in stock. An empty tag gets a generated one.
func (s *Service) Register(ctx context.Context, actorID int64, asset Asset) (Asset, error) {
	asset.Name = strings.TrimSpace(asset.Name)
	if asset.Name == "" {
		return Asset{}, fmt.Errorf("%w: asset name required", ErrInvalidInput)
	}
	if asset.CategoryID <= 0 {
		return Asset{}, fmt.Errorf("%w: category required", ErrInvalidInput)
	}
	asset.Tag = strings.ToUpper(strings.TrimSpace(asset.Tag))
	if asset.Tag == "" {
		asset.Tag = "AST-" + strings.ToUpper(uuid.NewString()[:8])
	}
	asset.Status = StatusInStock
	asset.DepartmentID = nil
	created, err := s.repo.Create(ctx, asset)
	if err != nil {
		return Asset{}, err
	}
	s.record(ctx, actorID, "register", "asset", created.ID, map[string]any{"tag": created.Tag})
	return created, nil
}

// Update changes the descriptive fields of an asset.
func (s *Service) Update(ctx context.Context, actorID, id int64, name string, categoryID int64, serialNumber, note string) (Asset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Asset{}, fmt.Errorf("%w: asset name required", ErrInvalidInput)
	}
	asset, err := s.repo.Update(ctx, id, name, categoryID, strings.TrimSpace(serialNumber), strings.TrimSpace(note))
	if err != nil {
		return Asset{}, err
	}
	s.record(ctx, actorID, "update", "asset", id, nil)
	return asset, nil
}

// Issue hands the asset to a department.
func (s *Service) Issue(ctx context.Context, actorID, id, departmentID int64) (Asset, error) {
	if departmentID <= 0 {
		return Asset{}, fmt.Errorf("%w: department required", ErrInvalidInput)
	}
	return s.transition(ctx, actorID, id, StatusIssued, &departmentID)
}

// Return puts an issued or repaired asset back in stock.
func (s *Service) Return(ctx context.Context, actorID, id int64) (Asset, error) {
	return s.transition(ctx, actorID, id, StatusInStock, nil)
}

// SendToRepair marks the asset as out for repair, keeping its department.
func (s *Service) SendToRepair(ctx context.Context, actorID, id int64) (Asset, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	if !canTransition(current.Status, StatusInRepair) {
		return Asset{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, StatusInRepair)
	}
	asset, err := s.repo.SetStatus(ctx, id, current.Status, StatusInRepair, current.DepartmentID)
	if err != nil {
		return Asset{}, err
	}
	s.record(ctx, actorID, "send_to_repair", "asset", id, nil)
	return asset, nil
}

// WriteOff decommissions the asset. Written-off is terminal.
func (s *Service) WriteOff(ctx context.Context, actorID, id int64) (Asset, error) {
	return s.transition(ctx, actorID, id, StatusWrittenOff, nil)
}

// Delete removes an asset record entirely.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", "asset", id, nil)
	return nil
}

func (s *Service) transition(ctx context.Context, actorID, id int64, to Status, departmentID *int64) (Asset, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	if !canTransition(current.Status, to) {
		return Asset{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
	}
	asset, err := s.repo.SetStatus(ctx, id, current.Status, to, departmentID)
	if err != nil {
		return Asset{}, err
	}
	meta := map[string]any{"from": string(current.Status), "to": string(to)}
	if departmentID != nil {
		meta["department_id"] = *departmentID
	}
	s.record(ctx, actorID, "transition", "asset", id, meta)
	return asset, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
