package rbac

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeRepo struct {
	roles       []Role
	rights      []Right
	assignments map[[2]int64]struct{}
	pages       []Page
	users       map[int64]User

	bulkErr        error
	bulkCalls      int
	effectiveCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		assignments: make(map[[2]int64]struct{}),
		users:       make(map[int64]User),
	}
}

func (f *fakeRepo) assign(roleID, rightID int64) {
	f.assignments[[2]int64{roleID, rightID}] = struct{}{}
}

func (f *fakeRepo) ListRoles(ctx context.Context) ([]Role, error)   { return f.roles, nil }
func (f *fakeRepo) ListRights(ctx context.Context) ([]Right, error) { return f.rights, nil }
func (f *fakeRepo) ListPages(ctx context.Context) ([]Page, error)   { return f.pages, nil }

func (f *fakeRepo) ListAssignments(ctx context.Context) ([]Assignment, error) {
	out := make([]Assignment, 0, len(f.assignments))
	for key := range f.assignments {
		out = append(out, Assignment{RoleID: key[0], RightID: key[1]})
	}
	return out, nil
}

func (f *fakeRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	for _, role := range f.roles {
		if role.ID == id {
			return role, nil
		}
	}
	return Role{}, ErrNotFound
}

func (f *fakeRepo) CreateRole(ctx context.Context, name, description string, parentID *int64) (Role, error) {
	role := Role{ID: int64(len(f.roles) + 1), Name: name, Description: description, ParentID: parentID}
	f.roles = append(f.roles, role)
	return role, nil
}

func (f *fakeRepo) UpdateRole(ctx context.Context, id int64, name, description string, parentID *int64) (Role, error) {
	for i, role := range f.roles {
		if role.ID == id {
			f.roles[i].Name = name
			f.roles[i].Description = description
			f.roles[i].ParentID = parentID
			return f.roles[i], nil
		}
	}
	return Role{}, ErrNotFound
}

func (f *fakeRepo) DeleteRole(ctx context.Context, id int64) error { return nil }

func (f *fakeRepo) CreateRight(ctx context.Context, name, description string) (Right, error) {
	right := Right{ID: int64(len(f.rights) + 100), Name: name, Description: description}
	f.rights = append(f.rights, right)
	return right, nil
}

func (f *fakeRepo) UpdateRight(ctx context.Context, id int64, name, description string) (Right, error) {
	return Right{}, errors.New("not implemented")
}

func (f *fakeRepo) DeleteRight(ctx context.Context, id int64) error { return nil }

func (f *fakeRepo) Grant(ctx context.Context, roleID, rightID int64) (bool, error) {
	key := [2]int64{roleID, rightID}
	if _, held := f.assignments[key]; held {
		return false, nil
	}
	f.assignments[key] = struct{}{}
	return true, nil
}

func (f *fakeRepo) Revoke(ctx context.Context, roleID, rightID int64) (bool, error) {
	key := [2]int64{roleID, rightID}
	if _, held := f.assignments[key]; !held {
		return false, nil
	}
	delete(f.assignments, key)
	return true, nil
}

func (f *fakeRepo) BulkApply(ctx context.Context, roleIDs []int64, rightID int64, action Action) ([]int64, error) {
	f.bulkCalls++
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	var updated []int64
	for _, roleID := range roleIDs {
		var changed bool
		var err error
		if action == ActionGrant {
			changed, err = f.Grant(ctx, roleID, rightID)
		} else {
			changed, err = f.Revoke(ctx, roleID, rightID)
		}
		if err != nil {
			return nil, err
		}
		if changed {
			updated = append(updated, roleID)
		}
	}
	return updated, nil
}

func (f *fakeRepo) CreatePage(ctx context.Context, path, name, description string, rightIDs []int64) (Page, error) {
	page := Page{ID: int64(len(f.pages) + 1), Path: path, Name: name, Description: description, RequiredRights: rightIDs}
	f.pages = append(f.pages, page)
	return page, nil
}

func (f *fakeRepo) UpdatePage(ctx context.Context, id int64, name, description string, rightIDs []int64) (Page, error) {
	return Page{}, errors.New("not implemented")
}

func (f *fakeRepo) DeletePage(ctx context.Context, id int64) error { return nil }

func (f *fakeRepo) UserByID(ctx context.Context, id int64) (User, error) {
	user, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (f *fakeRepo) EffectiveRightIDs(ctx context.Context, userID int64) ([]int64, error) {
	f.effectiveCalls++
	user, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	seen := make(map[int64]struct{})
	var out []int64
	for _, roleID := range user.RoleIDs {
		for key := range f.assignments {
			if key[0] != roleID {
				continue
			}
			if _, dup := seen[key[1]]; dup {
				continue
			}
			seen[key[1]] = struct{}{}
			out = append(out, key[1])
		}
	}
	return out, nil
}

func seedHierarchy(repo *fakeRepo) {
	repo.roles = []Role{
		{ID: 1, Name: "Administrator"},
		{ID: 2, Name: "Manager", ParentID: ptr(1)},
		{ID: 3, Name: "Clerk", ParentID: ptr(2)},
	}
	repo.rights = []Right{{ID: 10, Name: "reports.view"}}
}

func newTestService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, NewRightsCache(client, time.Minute), nil, logger, nil)
}

func TestServiceCascadeGrant(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	svc := newTestService(t, repo)

	result, err := svc.Cascade(context.Background(), User{ID: 1}, 1, 10, ActionGrant)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if len(result.Updated) != 2 {
		t.Fatalf("updated = %v", result.Updated)
	}
	for _, id := range []int64{2, 3} {
		if _, held := repo.assignments[[2]int64{id, 10}]; !held {
			t.Fatalf("role %d missing the right after cascade", id)
		}
	}
	if _, held := repo.assignments[[2]int64{1, 10}]; held {
		t.Fatal("cascade must not grant to the role itself")
	}
}

func TestServiceCascadeRevokeSkipsNonHolders(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	repo.assign(2, 10)
	svc := newTestService(t, repo)

	result, err := svc.Cascade(context.Background(), User{ID: 1}, 1, 10, ActionRevoke)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if len(result.Updated) != 1 || result.Updated[0] != 2 {
		t.Fatalf("updated = %v", result.Updated)
	}
}

func TestServiceCascadeLeafSkipsStore(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	svc := newTestService(t, repo)

	result, err := svc.Cascade(context.Background(), User{ID: 1}, 3, 10, ActionGrant)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if len(result.Updated) != 0 {
		t.Fatalf("updated = %v", result.Updated)
	}
	if repo.bulkCalls != 0 {
		t.Fatalf("leaf cascade reached the store %d times", repo.bulkCalls)
	}
}

func TestServiceCascadeFailureNamesPendingIds(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	repo.bulkErr = errors.New("connection reset")
	svc := newTestService(t, repo)

	_, err := svc.Cascade(context.Background(), User{ID: 1}, 1, 10, ActionGrant)
	var cascadeErr *CascadeError
	if !errors.As(err, &cascadeErr) {
		t.Fatalf("error = %v", err)
	}
	if len(cascadeErr.Failed) != 2 {
		t.Fatalf("failed = %v", cascadeErr.Failed)
	}
}

func TestServiceCascadeRejectsUnknownAction(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	svc := newTestService(t, repo)
	if _, err := svc.Cascade(context.Background(), User{ID: 1}, 1, 10, Action("toggle")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestServiceEffectiveRightsCached(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	repo.assign(2, 10)
	repo.users[5] = User{ID: 5, RoleIDs: []int64{2}}
	svc := newTestService(t, repo)

	first, err := svc.EffectiveRights(context.Background(), 5)
	if err != nil {
		t.Fatalf("effective rights: %v", err)
	}
	if len(first) != 1 || first[0] != 10 {
		t.Fatalf("rights = %v", first)
	}
	if _, err := svc.EffectiveRights(context.Background(), 5); err != nil {
		t.Fatalf("effective rights: %v", err)
	}
	if repo.effectiveCalls != 1 {
		t.Fatalf("repo queried %d times, cache miss on second call", repo.effectiveCalls)
	}
}

func TestServiceGrantInvalidatesCache(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	repo.users[5] = User{ID: 5, RoleIDs: []int64{2}}
	svc := newTestService(t, repo)

	if rights, err := svc.EffectiveRights(context.Background(), 5); err != nil || len(rights) != 0 {
		t.Fatalf("rights = %v err = %v", rights, err)
	}
	if changed, err := svc.Grant(context.Background(), User{ID: 1}, 2, 10); err != nil || !changed {
		t.Fatalf("grant changed=%v err=%v", changed, err)
	}
	rights, err := svc.EffectiveRights(context.Background(), 5)
	if err != nil {
		t.Fatalf("effective rights: %v", err)
	}
	if len(rights) != 1 || rights[0] != 10 {
		t.Fatalf("stale rights after grant: %v", rights)
	}
}

func TestServiceCheckPath(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	repo.assign(2, 10)
	repo.pages = []Page{{ID: 1, Path: "/reports", RequiredRights: []int64{10}}}
	svc := newTestService(t, repo)

	holder := User{ID: 5, RoleIDs: []int64{2}}
	outsider := User{ID: 6, RoleIDs: []int64{3}}
	system := User{ID: 1, IsSystem: true}

	if allowed, err := svc.CheckPath(context.Background(), holder, "/reports"); err != nil || !allowed {
		t.Fatalf("holder allowed=%v err=%v", allowed, err)
	}
	if allowed, err := svc.CheckPath(context.Background(), outsider, "/reports"); err != nil || allowed {
		t.Fatalf("outsider allowed=%v err=%v", allowed, err)
	}
	if allowed, err := svc.CheckPath(context.Background(), system, "/reports"); err != nil || !allowed {
		t.Fatalf("system allowed=%v err=%v", allowed, err)
	}
	if allowed, err := svc.CheckPath(context.Background(), outsider, "/unregistered"); err != nil || !allowed {
		t.Fatalf("unregistered allowed=%v err=%v", allowed, err)
	}
}

func TestServiceHierarchyReportsWarnings(t *testing.T) {
	repo := newFakeRepo()
	repo.roles = []Role{
		{ID: 1, Name: "Root"},
		{ID: 5, Name: "Orphan", ParentID: ptr(42)},
	}
	svc := newTestService(t, repo)

	roots, warnings, err := svc.Hierarchy(context.Background())
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("roots = %v", roots)
	}
	if len(warnings) != 1 || warnings[0].Kind != WarnMissingParent {
		t.Fatalf("warnings = %+v", warnings)
	}
}

func TestServiceUpdateRoleRejectsDescendantParent(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	svc := newTestService(t, repo)

	if _, err := svc.UpdateRole(context.Background(), User{ID: 1}, 1, "Administrator", "", ptr(3)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.UpdateRole(context.Background(), User{ID: 1}, 2, "Manager", "", ptr(2)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("self parent err = %v", err)
	}
}

func TestServiceCheckRightsUnknownName(t *testing.T) {
	repo := newFakeRepo()
	seedHierarchy(repo)
	repo.assign(2, 10)
	svc := newTestService(t, repo)

	user := User{ID: 5, RoleIDs: []int64{2}}
	if allowed, err := svc.CheckRights(context.Background(), user, "reports.view"); err != nil || !allowed {
		t.Fatalf("allowed=%v err=%v", allowed, err)
	}
	if allowed, err := svc.CheckRights(context.Background(), user, "nope.unknown"); err != nil || allowed {
		t.Fatalf("unknown right allowed=%v err=%v", allowed, err)
	}
	if allowed, err := svc.CheckRights(context.Background(), User{ID: 1, IsSystem: true}, "nope.unknown"); err != nil || !allowed {
		t.Fatalf("system allowed=%v err=%v", allowed, err)
	}
}
