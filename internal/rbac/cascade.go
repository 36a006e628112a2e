package rbac

import "fmt"

// CascadeStore is the mutation surface a cascade applies against. The two
// operations must be idempotent; Grant and Revoke report an error only when
// the backing store could not reach the desired state.
type CascadeStore interface {
	Has(roleID, rightID int64) bool
	Grant(roleID, rightID int64) error
	Revoke(roleID, rightID int64) error
}

// CascadeResult lists the role ids whose assignment actually transitioned.
// Descendants already in the desired state are excluded; they are not errors.
type CascadeResult struct {
	Updated []int64
}

// CascadeError reports a cascade that did not fully apply. Failed holds the
// ids that did NOT reach the desired state; the caller must not assume
// success for them. Ids listed in the accompanying CascadeResult did change.
type CascadeError struct {
	RightID int64
	Action  Action
	Failed  []int64
	Err     error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("rbac: cascade %s right %d incomplete, %d roles unchanged: %v", e.Action, e.RightID, len(e.Failed), e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// SetStore adapts an AssignmentSet to the CascadeStore interface. In-memory
// mutations cannot fail.
type SetStore struct {
	Set *AssignmentSet
}

func (s SetStore) Has(roleID, rightID int64) bool { return s.Set.Has(roleID, rightID) }

func (s SetStore) Grant(roleID, rightID int64) error {
	s.Set.Grant(roleID, rightID)
	return nil
}

func (s SetStore) Revoke(roleID, rightID int64) error {
	s.Set.Revoke(roleID, rightID)
	return nil
}

// Cascader propagates a single assignment change to an entire subtree of
// roles. It is invoked only after the direct role's own assignment has
// already changed; the direct role is never part of the batch.
type Cascader struct {
	forest *Forest
	store  CascadeStore
}

// NewCascader builds a Cascader over the given forest and store.
func NewCascader(forest *Forest, store CascadeStore) *Cascader {
	return &Cascader{forest: forest, store: store}
}

// Apply performs action for rightID on every descendant of roleID. A role
// with no descendants yields an empty result without touching the store.
// On partial failure the returned error is a *CascadeError naming the ids
// that did not update; Updated still lists the ones that did.
func (c *Cascader) Apply(roleID, rightID int64, action Action) (CascadeResult, error) {
	if !action.Valid() {
		return CascadeResult{}, fmt.Errorf("rbac: unknown cascade action %q", action)
	}
	descendants := c.forest.Descendants(roleID)
	if len(descendants) == 0 {
		return CascadeResult{}, nil
	}

	var result CascadeResult
	var failed []int64
	var lastErr error
	for _, id := range descendants {
		held := c.store.Has(id, rightID)
		switch action {
		case ActionGrant:
			if held {
				continue
			}
			if err := c.store.Grant(id, rightID); err != nil {
				failed = append(failed, id)
				lastErr = err
				continue
			}
		case ActionRevoke:
			if !held {
				continue
			}
			if err := c.store.Revoke(id, rightID); err != nil {
				failed = append(failed, id)
				lastErr = err
				continue
			}
		}
		result.Updated = append(result.Updated, id)
	}
	if len(failed) > 0 {
		return result, &CascadeError{RightID: rightID, Action: action, Failed: failed, Err: lastErr}
	}
	return result, nil
}
