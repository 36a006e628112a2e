package rbac

import (
	"reflect"
	"testing"
)

func TestAssignmentSetIdempotentGrant(t *testing.T) {
	set := NewAssignmentSet(nil)
	if changed := set.Grant(1, 10); !changed {
		t.Fatal("first grant must report a change")
	}
	if changed := set.Grant(1, 10); changed {
		t.Fatal("repeated grant must be a no-op")
	}
	if !set.Has(1, 10) {
		t.Fatal("right not held after grant")
	}
	if set.Len() != 1 {
		t.Fatalf("len = %d", set.Len())
	}
}

func TestAssignmentSetIdempotentRevoke(t *testing.T) {
	set := NewAssignmentSet([]Assignment{{RoleID: 1, RightID: 10}})
	if changed := set.Revoke(1, 10); !changed {
		t.Fatal("revoke of a held right must report a change")
	}
	if changed := set.Revoke(1, 10); changed {
		t.Fatal("repeated revoke must be a no-op")
	}
	if changed := set.Revoke(2, 10); changed {
		t.Fatal("revoke on an unknown role must be a no-op")
	}
	if set.Has(1, 10) {
		t.Fatal("right still held after revoke")
	}
}

func TestAssignmentSetRightsOfSorted(t *testing.T) {
	set := NewAssignmentSet([]Assignment{
		{RoleID: 1, RightID: 30},
		{RoleID: 1, RightID: 10},
		{RoleID: 1, RightID: 20},
		{RoleID: 2, RightID: 99},
	})
	if got := set.RightsOf(1); !reflect.DeepEqual(got, []int64{10, 20, 30}) {
		t.Fatalf("RightsOf(1) = %v", got)
	}
	if got := set.RightsOf(3); got != nil {
		t.Fatalf("RightsOf(3) = %v", got)
	}
}
