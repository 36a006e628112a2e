package rbac

import (
	"errors"
	"reflect"
	"testing"
)

func cascadeForest(t *testing.T) *Forest {
	t.Helper()
	forest, warnings := BuildForest([]Role{
		{ID: 1, Name: "Administrator"},
		{ID: 2, Name: "Manager", ParentID: ptr(1)},
		{ID: 3, Name: "Clerk", ParentID: ptr(2)},
	})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	return forest
}

func TestCascadeGrantSkipsHolders(t *testing.T) {
	forest := cascadeForest(t)
	set := NewAssignmentSet([]Assignment{{RoleID: 2, RightID: 10}})
	result, err := NewCascader(forest, SetStore{Set: set}).Apply(1, 10, ActionGrant)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(result.Updated, []int64{3}) {
		t.Fatalf("updated = %v", result.Updated)
	}
	if !set.Has(2, 10) || !set.Has(3, 10) {
		t.Fatal("descendants must hold the right after grant cascade")
	}
	if set.Has(1, 10) {
		t.Fatal("cascade must not touch the role itself")
	}
}

func TestCascadeRevokeSkipsNonHolders(t *testing.T) {
	forest := cascadeForest(t)
	set := NewAssignmentSet([]Assignment{{RoleID: 3, RightID: 10}})
	result, err := NewCascader(forest, SetStore{Set: set}).Apply(1, 10, ActionRevoke)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(result.Updated, []int64{3}) {
		t.Fatalf("updated = %v", result.Updated)
	}
	if set.Has(3, 10) {
		t.Fatal("right still held after revoke cascade")
	}
}

type countingStore struct {
	inner CascadeStore
	calls int
}

func (c *countingStore) Has(roleID, rightID int64) bool {
	c.calls++
	return c.inner.Has(roleID, rightID)
}

func (c *countingStore) Grant(roleID, rightID int64) error {
	c.calls++
	return c.inner.Grant(roleID, rightID)
}

func (c *countingStore) Revoke(roleID, rightID int64) error {
	c.calls++
	return c.inner.Revoke(roleID, rightID)
}

func TestCascadeLeafRoleNoStoreContact(t *testing.T) {
	forest := cascadeForest(t)
	store := &countingStore{inner: SetStore{Set: NewAssignmentSet(nil)}}
	result, err := NewCascader(forest, store).Apply(3, 10, ActionGrant)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Updated) != 0 {
		t.Fatalf("updated = %v", result.Updated)
	}
	if store.calls != 0 {
		t.Fatalf("leaf cascade touched the store %d times", store.calls)
	}
}

type flakyStore struct {
	set    *AssignmentSet
	failOn int64
}

func (f *flakyStore) Has(roleID, rightID int64) bool { return f.set.Has(roleID, rightID) }

func (f *flakyStore) Grant(roleID, rightID int64) error {
	if roleID == f.failOn {
		return errors.New("write refused")
	}
	f.set.Grant(roleID, rightID)
	return nil
}

func (f *flakyStore) Revoke(roleID, rightID int64) error {
	if roleID == f.failOn {
		return errors.New("write refused")
	}
	f.set.Revoke(roleID, rightID)
	return nil
}

func TestCascadePartialFailureReportsIds(t *testing.T) {
	forest := cascadeForest(t)
	store := &flakyStore{set: NewAssignmentSet(nil), failOn: 2}
	result, err := NewCascader(forest, store).Apply(1, 10, ActionGrant)
	if err == nil {
		t.Fatal("expected partial failure")
	}
	var cascadeErr *CascadeError
	if !errors.As(err, &cascadeErr) {
		t.Fatalf("error type = %T", err)
	}
	if !reflect.DeepEqual(cascadeErr.Failed, []int64{2}) {
		t.Fatalf("failed = %v", cascadeErr.Failed)
	}
	if !reflect.DeepEqual(result.Updated, []int64{3}) {
		t.Fatalf("updated = %v", result.Updated)
	}
	if cascadeErr.Action != ActionGrant || cascadeErr.RightID != 10 {
		t.Fatalf("error context = %+v", cascadeErr)
	}
}

func TestCascadeRejectsUnknownAction(t *testing.T) {
	forest := cascadeForest(t)
	if _, err := NewCascader(forest, SetStore{Set: NewAssignmentSet(nil)}).Apply(1, 10, Action("promote")); err == nil {
		t.Fatal("unknown action must be rejected")
	}
}
