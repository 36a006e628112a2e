package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/depot-aim/depot-aim/internal/observability"
	"github.com/depot-aim/depot-aim/internal/shared"
)

// RepositoryPort defines the persistence surface the service depends on.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, description string, parentID *int64) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string, parentID *int64) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	ListRights(ctx context.Context) ([]Right, error)
	CreateRight(ctx context.Context, name, description string) (Right, error)
	UpdateRight(ctx context.Context, id int64, name, description string) (Right, error)
	DeleteRight(ctx context.Context, id int64) error

	ListAssignments(ctx context.Context) ([]Assignment, error)
	Grant(ctx context.Context, roleID, rightID int64) (bool, error)
	Revoke(ctx context.Context, roleID, rightID int64) (bool, error)
	BulkApply(ctx context.Context, roleIDs []int64, rightID int64, action Action) ([]int64, error)

	ListPages(ctx context.Context) ([]Page, error)
	CreatePage(ctx context.Context, path, name, description string, rightIDs []int64) (Page, error)
	UpdatePage(ctx context.Context, id int64, name, description string, rightIDs []int64) (Page, error)
	DeletePage(ctx context.Context, id int64) error

	UserByID(ctx context.Context, id int64) (User, error)
	EffectiveRightIDs(ctx context.Context, userID int64) ([]int64, error)
}

// snapshot is the in-memory view the evaluator and page policy run against.
// It is rebuilt from the repository, never mutated in place.
type snapshot struct {
	forest    *Forest
	warnings  []Warning
	catalog   *Catalog
	set       *AssignmentSet
	evaluator *Evaluator
	policy    *PagePolicy
	loadedAt  time.Time
}

// Service orchestrates the RBAC core: tree building, assignment mutations,
// cascades and access decisions.
type Service struct {
	repo    RepositoryPort
	cache   *RightsCache
	audit   *shared.AuditLogger
	logger  *slog.Logger
	metrics *observability.Metrics

	snapTTL time.Duration
	snapMu  sync.Mutex
	snap    *snapshot

	flight singleflight.Group

	pairMu    sync.Mutex
	pairLocks map[string]*sync.Mutex
}

// NewService constructs the RBAC service. cache, audit and metrics may be
// nil; the service degrades gracefully without them.
func NewService(repo RepositoryPort, cache *RightsCache, audit *shared.AuditLogger, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		logger:    logger,
		metrics:   metrics,
		snapTTL:   30 * time.Second,
		pairLocks: make(map[string]*sync.Mutex),
	}
}

// snapshotView returns the current snapshot, rebuilding it when expired.
func (s *Service) snapshotView(ctx context.Context) (*snapshot, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snap != nil && time.Since(s.snap.loadedAt) < s.snapTTL {
		return s.snap, nil
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		// Serve the stale view rather than failing a navigation outright.
		if s.snap != nil {
			s.logger.Warn("rbac snapshot refresh failed, serving stale", slog.Any("error", err))
			return s.snap, nil
		}
		return nil, err
	}
	s.snap = snap
	return snap, nil
}

func (s *Service) loadSnapshot(ctx context.Context) (*snapshot, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: load roles: %w", err)
	}
	rights, err := s.repo.ListRights(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: load rights: %w", err)
	}
	assignments, err := s.repo.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: load assignments: %w", err)
	}
	pages, err := s.repo.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: load pages: %w", err)
	}

	forest, warnings := BuildForest(roles)
	for _, w := range warnings {
		s.logger.Warn("role hierarchy inconsistency",
			slog.String("kind", string(w.Kind)),
			slog.Int64("role_id", w.RoleID),
			slog.Int64("parent_id", w.ParentID))
		s.metrics.ObserveInconsistency(string(w.Kind))
	}

	catalog := NewCatalog(rights)
	roleIndex := make(map[int64]struct{}, len(roles))
	for _, role := range roles {
		roleIndex[role.ID] = struct{}{}
	}
	kept := assignments[:0:0]
	for _, a := range assignments {
		_, roleOK := roleIndex[a.RoleID]
		_, rightOK := catalog.Right(a.RightID)
		if !roleOK || !rightOK {
			s.logger.Warn("dangling assignment dropped",
				slog.Int64("role_id", a.RoleID),
				slog.Int64("right_id", a.RightID))
			s.metrics.ObserveInconsistency("dangling_assignment")
			continue
		}
		kept = append(kept, a)
	}

	set := NewAssignmentSet(kept)
	evaluator := NewEvaluator(set)
	policy := NewPagePolicy(pages, evaluator)
	return &snapshot{
		forest:    forest,
		warnings:  warnings,
		catalog:   catalog,
		set:       set,
		evaluator: evaluator,
		policy:    policy,
		loadedAt:  time.Now(),
	}, nil
}

// invalidate drops the in-memory snapshot and bumps the distributed rights
// cache version after any mutation.
func (s *Service) invalidate(ctx context.Context) {
	s.snapMu.Lock()
	s.snap = nil
	s.snapMu.Unlock()
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("rights cache invalidate", slog.Any("error", err))
	}
}

// Hierarchy returns the materialized role forest with data inconsistency
// warnings. The forest is rebuilt on every snapshot refresh, never patched.
func (s *Service) Hierarchy(ctx context.Context) ([]*Node, []Warning, error) {
	snap, err := s.snapshotView(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snap.forest.Roots(), snap.warnings, nil
}

// Rights returns the catalog in collated name order.
func (s *Service) Rights(ctx context.Context) ([]Right, error) {
	snap, err := s.snapshotView(ctx)
	if err != nil {
		return nil, err
	}
	return snap.catalog.Rights(), nil
}

// Assignments returns the current role→right mapping for the matrix UI.
func (s *Service) Assignments(ctx context.Context) ([]Assignment, error) {
	return s.repo.ListAssignments(ctx)
}

// Pages returns the page catalog.
func (s *Service) Pages(ctx context.Context) ([]Page, error) {
	return s.repo.ListPages(ctx)
}

// CreateRole inserts a role after validating the parent reference.
func (s *Service) CreateRole(ctx context.Context, actor User, name, description string, parentID *int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", ErrInvalidInput)
	}
	if parentID != nil {
		if _, err := s.repo.GetRole(ctx, *parentID); err != nil {
			return Role{}, fmt.Errorf("rbac: parent role %d: %w", *parentID, err)
		}
	}
	role, err := s.repo.CreateRole(ctx, name, strings.TrimSpace(description), parentID)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "create", "role", role.ID, nil)
	return role, nil
}

// UpdateRole updates a role. Moving a role under one of its own descendants
// is refused: it would introduce a cycle the tree builder would then have to
// demote away.
func (s *Service) UpdateRole(ctx context.Context, actor User, id int64, name, description string, parentID *int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", ErrInvalidInput)
	}
	if parentID != nil {
		if *parentID == id {
			return Role{}, fmt.Errorf("%w: role cannot be its own parent", ErrInvalidInput)
		}
		snap, err := s.snapshotView(ctx)
		if err != nil {
			return Role{}, err
		}
		for _, descID := range snap.forest.Descendants(id) {
			if descID == *parentID {
				return Role{}, fmt.Errorf("%w: role cannot be moved under its own descendant", ErrInvalidInput)
			}
		}
	}
	role, err := s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description), parentID)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "update", "role", role.ID, nil)
	return role, nil
}

// DeleteRole removes a role.
func (s *Service) DeleteRole(ctx context.Context, actor User, id int64) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "delete", "role", id, nil)
	return nil
}

// CreateRight inserts a right.
func (s *Service) CreateRight(ctx context.Context, actor User, name, description string) (Right, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Right{}, fmt.Errorf("%w: right name required", ErrInvalidInput)
	}
	right, err := s.repo.CreateRight(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Right{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "create", "right", right.ID, nil)
	return right, nil
}

// UpdateRight updates a right.
func (s *Service) UpdateRight(ctx context.Context, actor User, id int64, name, description string) (Right, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Right{}, fmt.Errorf("%w: right name required", ErrInvalidInput)
	}
	right, err := s.repo.UpdateRight(ctx, id, name, strings.TrimSpace(description))
	if err != nil {
		return Right{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "update", "right", right.ID, nil)
	return right, nil
}

// DeleteRight removes a right.
func (s *Service) DeleteRight(ctx context.Context, actor User, id int64) error {
	if err := s.repo.DeleteRight(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "delete", "right", id, nil)
	return nil
}

// Grant adds a single assignment. Granting an already-held right is a no-op
// success; the returned flag reports whether state actually changed. The
// caller decides afterwards whether to offer a cascade.
func (s *Service) Grant(ctx context.Context, actor User, roleID, rightID int64) (bool, error) {
	changed, err := s.repo.Grant(ctx, roleID, rightID)
	if err != nil {
		return false, err
	}
	if changed {
		s.invalidate(ctx)
		s.recordAudit(ctx, actor, "grant", "assignment", roleID, map[string]any{"right_id": rightID})
	}
	return changed, nil
}

// Revoke removes a single assignment, idempotently.
func (s *Service) Revoke(ctx context.Context, actor User, roleID, rightID int64) (bool, error) {
	changed, err := s.repo.Revoke(ctx, roleID, rightID)
	if err != nil {
		return false, err
	}
	if changed {
		s.invalidate(ctx)
		s.recordAudit(ctx, actor, "revoke", "assignment", roleID, map[string]any{"right_id": rightID})
	}
	return changed, nil
}

// Cascade propagates an assignment change to the entire descendant set of a
// role as one unit. Cascades on the same (role, right) pair are serialized:
// a second caller blocks until the first batch settles rather than racing it.
// The descendants that must transition are planned against the in-memory
// snapshot and persisted in a single transaction; on failure the store is
// unchanged and the error names every id that did not update.
func (s *Service) Cascade(ctx context.Context, actor User, roleID, rightID int64, action Action) (CascadeResult, error) {
	if !action.Valid() {
		return CascadeResult{}, fmt.Errorf("%w: unknown cascade action %q", ErrInvalidInput, action)
	}

	unlock := s.lockPair(roleID, rightID)
	defer unlock()

	snap, err := s.snapshotView(ctx)
	if err != nil {
		return CascadeResult{}, err
	}

	// Plan against a copy of the assignment view so the shared snapshot is
	// not mutated before the store confirms.
	planSet := NewAssignmentSet(nil)
	for _, id := range append([]int64{roleID}, snap.forest.Descendants(roleID)...) {
		for _, r := range snap.set.RightsOf(id) {
			planSet.Grant(id, r)
		}
	}
	plan, err := NewCascader(snap.forest, SetStore{Set: planSet}).Apply(roleID, rightID, action)
	if err != nil {
		return CascadeResult{}, err
	}
	if len(plan.Updated) == 0 {
		return CascadeResult{}, nil
	}

	updated, err := s.repo.BulkApply(ctx, plan.Updated, rightID, action)
	if err != nil {
		s.metrics.ObserveCascade(string(action), "failed")
		return CascadeResult{}, &CascadeError{RightID: rightID, Action: action, Failed: plan.Updated, Err: err}
	}
	s.metrics.ObserveCascade(string(action), "applied")
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "cascade_"+string(action), "assignment", roleID, map[string]any{
		"right_id": rightID,
		"updated":  updated,
	})
	return CascadeResult{Updated: updated}, nil
}

// EffectiveRights returns the user's effective right ids: the union of the
// direct assignments of every role the user holds. Results are cached in
// Redis and concurrent lookups for the same user are coalesced.
func (s *Service) EffectiveRights(ctx context.Context, userID int64) ([]int64, error) {
	if rights, hit, err := s.cache.Get(ctx, userID); err == nil && hit {
		return rights, nil
	} else if err != nil {
		s.logger.Warn("rights cache read", slog.Any("error", err))
	}

	v, err, _ := s.flight.Do(fmt.Sprintf("rights:%d", userID), func() (any, error) {
		rights, err := s.repo.EffectiveRightIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, userID, rights); err != nil {
			s.logger.Warn("rights cache write", slog.Any("error", err))
		}
		return rights, nil
	})
	if err != nil {
		return nil, err
	}
	rights, _ := v.([]int64)
	return rights, nil
}

// CheckPath is the route-guard decision: resolve the path against the page
// catalog and evaluate the user's effective rights. Unregistered paths are
// allowed for any authenticated user.
func (s *Service) CheckPath(ctx context.Context, user User, path string) (bool, error) {
	snap, err := s.snapshotView(ctx)
	if err != nil {
		return false, err
	}
	allowed := snap.policy.Check(user, path)
	switch {
	case user.IsSystem:
		s.metrics.ObserveAccessCheck("bypassed")
	case allowed:
		s.metrics.ObserveAccessCheck("allowed")
	default:
		s.metrics.ObserveAccessCheck("denied")
	}
	return allowed, nil
}

// CheckRights evaluates a required set of right names against the user. It
// backs permission-aware UI fragments that gate on capability rather than
// path.
func (s *Service) CheckRights(ctx context.Context, user User, names ...string) (bool, error) {
	snap, err := s.snapshotView(ctx)
	if err != nil {
		return false, err
	}
	required := make([]int64, 0, len(names))
	for _, name := range names {
		right, ok := snap.catalog.RightByName(name)
		if !ok {
			// An unknown right can never be held; only the system bypass passes.
			return user.IsSystem, nil
		}
		required = append(required, right.ID)
	}
	return snap.evaluator.Evaluate(user, required), nil
}

// UserByID loads the evaluator-facing identity for a user.
func (s *Service) UserByID(ctx context.Context, id int64) (User, error) {
	return s.repo.UserByID(ctx, id)
}

// CreatePage registers a protected path.
func (s *Service) CreatePage(ctx context.Context, actor User, path, name, description string, rightIDs []int64) (Page, error) {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "/") {
		return Page{}, fmt.Errorf("%w: page path must start with /", ErrInvalidInput)
	}
	page, err := s.repo.CreatePage(ctx, path, strings.TrimSpace(name), strings.TrimSpace(description), rightIDs)
	if err != nil {
		return Page{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "create", "page", page.ID, map[string]any{"path": page.Path})
	return page, nil
}

// UpdatePage replaces a page's metadata and required-rights set.
func (s *Service) UpdatePage(ctx context.Context, actor User, id int64, name, description string, rightIDs []int64) (Page, error) {
	page, err := s.repo.UpdatePage(ctx, id, strings.TrimSpace(name), strings.TrimSpace(description), rightIDs)
	if err != nil {
		return Page{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "update", "page", page.ID, map[string]any{"path": page.Path})
	return page, nil
}

// DeletePage removes a path from the catalog, making it unrestricted again.
func (s *Service) DeletePage(ctx context.Context, actor User, id int64) error {
	if err := s.repo.DeletePage(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, "delete", "page", id, nil)
	return nil
}

func (s *Service) lockPair(roleID, rightID int64) func() {
	key := fmt.Sprintf("%d:%d", roleID, rightID)
	s.pairMu.Lock()
	mu, ok := s.pairLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.pairLocks[key] = mu
	}
	s.pairMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (s *Service) recordAudit(ctx context.Context, actor User, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
