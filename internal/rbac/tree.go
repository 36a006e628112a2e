package rbac

// Node is a role with its resolved children, in source order.
type Node struct {
	Role
	Children []*Node
}

// WarningKind classifies a data inconsistency found while building the forest.
type WarningKind string

const (
	// WarnMissingParent marks a role whose parent_id does not resolve.
	WarnMissingParent WarningKind = "missing_parent"
	// WarnCycle marks a role whose parent chain loops back onto itself.
	WarnCycle WarningKind = "cycle"
)

// Warning reports a role that was demoted to a root during tree build.
type Warning struct {
	Kind     WarningKind
	RoleID   int64
	ParentID int64
}

// Forest is the materialized role hierarchy. It is a derived view rebuilt
// from the flat role list on every load, never the source of truth.
type Forest struct {
	roots []*Node
	index map[int64]*Node
}

// BuildForest materializes a forest from a flat role list. Roles referencing
// a nonexistent parent and roles whose parent chain loops are demoted to
// roots; each demotion is reported as a Warning so callers can flag stale
// data. The input is never trusted to be acyclic.
func BuildForest(roles []Role) (*Forest, []Warning) {
	index := make(map[int64]*Node, len(roles))
	for _, role := range roles {
		index[role.ID] = &Node{Role: role}
	}

	// resolved records the attachment decision per role id; a nil entry means
	// the role was forced to be a root even though it names a parent.
	resolved := make(map[int64]*int64, len(roles))
	var warnings []Warning

	parentOf := func(id int64) *int64 {
		if p, ok := resolved[id]; ok {
			return p
		}
		node, ok := index[id]
		if !ok {
			return nil
		}
		return node.ParentID
	}

	forest := &Forest{index: index}
	for _, role := range roles {
		node := index[role.ID]
		if role.ParentID == nil {
			resolved[role.ID] = nil
			forest.roots = append(forest.roots, node)
			continue
		}
		parent, ok := index[*role.ParentID]
		if !ok {
			resolved[role.ID] = nil
			forest.roots = append(forest.roots, node)
			warnings = append(warnings, Warning{Kind: WarnMissingParent, RoleID: role.ID, ParentID: *role.ParentID})
			continue
		}
		if chainContains(role.ID, *role.ParentID, parentOf) {
			resolved[role.ID] = nil
			forest.roots = append(forest.roots, node)
			warnings = append(warnings, Warning{Kind: WarnCycle, RoleID: role.ID, ParentID: *role.ParentID})
			continue
		}
		resolved[role.ID] = role.ParentID
		parent.Children = append(parent.Children, node)
	}
	return forest, warnings
}

// chainContains walks the ancestor chain starting at from and reports whether
// target appears in it. The walk is bounded by a visited set so it terminates
// even on corrupt data.
func chainContains(target, from int64, parentOf func(int64) *int64) bool {
	visited := make(map[int64]struct{})
	for cur := from; ; {
		if cur == target {
			return true
		}
		if _, seen := visited[cur]; seen {
			return false
		}
		visited[cur] = struct{}{}
		next := parentOf(cur)
		if next == nil {
			return false
		}
		cur = *next
	}
}

// Roots returns the top-level nodes in source order.
func (f *Forest) Roots() []*Node {
	if f == nil {
		return nil
	}
	return f.roots
}

// Node returns the node for the given role id, or nil when unknown.
func (f *Forest) Node(id int64) *Node {
	if f == nil {
		return nil
	}
	return f.index[id]
}

// Descendants collects every role id below the given role, excluding the role
// itself. Traversal is breadth-first with sibling order preserved so results
// are reproducible. Unknown ids yield an empty set rather than an error.
func (f *Forest) Descendants(id int64) []int64 {
	start := f.Node(id)
	if start == nil {
		return nil
	}
	var out []int64
	seen := map[int64]struct{}{id: {}}
	queue := append([]*Node(nil), start.Children...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if _, ok := seen[node.ID]; ok {
			continue
		}
		seen[node.ID] = struct{}{}
		out = append(out, node.ID)
		queue = append(queue, node.Children...)
	}
	return out
}
