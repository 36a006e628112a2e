package rbac

import "sort"

// AssignmentSet is the in-memory membership view over (role, right) pairs.
// It answers the authoritative "does role R directly hold right X" question
// for a loaded snapshot and supports the two idempotent point mutations the
// whole core is built from.
type AssignmentSet struct {
	byRole map[int64]map[int64]struct{}
}

// NewAssignmentSet builds the set from a flat assignment list.
func NewAssignmentSet(assignments []Assignment) *AssignmentSet {
	s := &AssignmentSet{byRole: make(map[int64]map[int64]struct{})}
	for _, a := range assignments {
		s.Grant(a.RoleID, a.RightID)
	}
	return s
}

// Has reports whether the role directly holds the right.
func (s *AssignmentSet) Has(roleID, rightID int64) bool {
	if s == nil {
		return false
	}
	rights, ok := s.byRole[roleID]
	if !ok {
		return false
	}
	_, ok = rights[rightID]
	return ok
}

// Grant adds the assignment and reports whether state changed. Granting an
// already-held right is a no-op success.
func (s *AssignmentSet) Grant(roleID, rightID int64) bool {
	rights, ok := s.byRole[roleID]
	if !ok {
		rights = make(map[int64]struct{})
		s.byRole[roleID] = rights
	}
	if _, held := rights[rightID]; held {
		return false
	}
	rights[rightID] = struct{}{}
	return true
}

// Revoke removes the assignment and reports whether state changed. Revoking
// an unheld right is a no-op success.
func (s *AssignmentSet) Revoke(roleID, rightID int64) bool {
	rights, ok := s.byRole[roleID]
	if !ok {
		return false
	}
	if _, held := rights[rightID]; !held {
		return false
	}
	delete(rights, rightID)
	return true
}

// RightsOf returns the right ids directly held by the role, sorted ascending.
func (s *AssignmentSet) RightsOf(roleID int64) []int64 {
	if s == nil {
		return nil
	}
	rights, ok := s.byRole[roleID]
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(rights))
	for id := range rights {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the total number of assignments held.
func (s *AssignmentSet) Len() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, rights := range s.byRole {
		total += len(rights)
	}
	return total
}
