package rbac

import "testing"

func testPolicy() *PagePolicy {
	evaluator := NewEvaluator(NewAssignmentSet([]Assignment{
		{RoleID: 2, RightID: 10},
		{RoleID: 2, RightID: 11},
	}))
	pages := []Page{
		{ID: 1, Path: "/reports", RequiredRights: []int64{10}},
		{ID: 2, Path: "/admin/users", RequiredRights: []int64{10, 11}},
		{ID: 3, Path: "/dashboard", RequiredRights: nil},
	}
	return NewPagePolicy(pages, evaluator)
}

func TestPolicyUnregisteredPathAllows(t *testing.T) {
	policy := testPolicy()
	if !policy.Check(User{ID: 5}, "/somewhere/new") {
		t.Fatal("unregistered path must allow any authenticated user")
	}
}

func TestPolicyRegisteredPathRequiresRights(t *testing.T) {
	policy := testPolicy()
	holder := User{ID: 5, RoleIDs: []int64{2}}
	outsider := User{ID: 6, RoleIDs: []int64{3}}
	if !policy.Check(holder, "/reports") {
		t.Fatal("holder of required right denied")
	}
	if policy.Check(outsider, "/reports") {
		t.Fatal("user without required right allowed")
	}
	if !policy.Check(holder, "/admin/users") {
		t.Fatal("holder of full required set denied")
	}
}

func TestPolicyEmptyRequirementsAllow(t *testing.T) {
	policy := testPolicy()
	if !policy.Check(User{ID: 6}, "/dashboard") {
		t.Fatal("page with empty required rights must allow")
	}
}

func TestPolicySystemBypass(t *testing.T) {
	policy := testPolicy()
	if !policy.Check(User{ID: 1, IsSystem: true}, "/admin/users") {
		t.Fatal("system user must bypass page restrictions")
	}
}
