package rbac

// PagePolicy resolves navigation paths to required-rights sets and applies
// the evaluator. Paths absent from the catalog are unrestricted: this is a
// deliberate default-allow policy inherited from the system being replaced;
// callers needing default-deny must register every path explicitly.
type PagePolicy struct {
	byPath    map[string][]int64
	evaluator *Evaluator
}

// NewPagePolicy builds a policy from the page catalog.
func NewPagePolicy(pages []Page, evaluator *Evaluator) *PagePolicy {
	byPath := make(map[string][]int64, len(pages))
	for _, page := range pages {
		byPath[page.Path] = page.RequiredRights
	}
	return &PagePolicy{byPath: byPath, evaluator: evaluator}
}

// Resolve returns the required rights for an exact path match. A nil result
// means the path is not registered and access is implicitly allowed.
func (p *PagePolicy) Resolve(path string) []int64 {
	if p == nil {
		return nil
	}
	return p.byPath[path]
}

// Check is the single decision consumed by route guards.
func (p *PagePolicy) Check(user User, path string) bool {
	return p.evaluator.Evaluate(user, p.Resolve(path))
}
