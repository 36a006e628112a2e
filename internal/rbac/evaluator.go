package rbac

// RightsSource answers which rights a role directly holds. *AssignmentSet
// satisfies it; the service wires a snapshot loaded from the repository.
type RightsSource interface {
	RightsOf(roleID int64) []int64
}

// Evaluator decides access by rights-set containment. It is pure: the user
// is always an explicit argument, never ambient state, so decisions are
// reproducible and testable.
type Evaluator struct {
	source RightsSource
}

// NewEvaluator builds an Evaluator over the given source.
func NewEvaluator(source RightsSource) *Evaluator {
	return &Evaluator{source: source}
}

// EffectiveRights returns the union of rights directly held by all of the
// user's roles. There is no ancestor or descendant expansion: any broader
// grant must have been materialized earlier via cascade.
func (e *Evaluator) EffectiveRights(user User) map[int64]struct{} {
	effective := make(map[int64]struct{})
	for _, roleID := range user.RoleIDs {
		for _, rightID := range e.source.RightsOf(roleID) {
			effective[rightID] = struct{}{}
		}
	}
	return effective
}

// Evaluate reports whether required is a subset of the user's effective
// rights. The system-user bypass is checked first and is the only exception
// to the containment rule; an empty required set always evaluates true.
func (e *Evaluator) Evaluate(user User, required []int64) bool {
	if user.IsSystem {
		return true
	}
	if len(required) == 0 {
		return true
	}
	effective := e.EffectiveRights(user)
	for _, rightID := range required {
		if _, ok := effective[rightID]; !ok {
			return false
		}
	}
	return true
}
