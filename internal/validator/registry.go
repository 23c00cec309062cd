package validator

// Registry holds rules by ID and remembers registration order.
type Registry struct {
	rules map[string]Rule
	order []string
}

// NewRegistry creates a Registry with the given rules registered in order.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{rules: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		r.Register(rule)
	}
	return r
}

// Register adds a rule. Registering an existing ID replaces the rule in place.
func (r *Registry) Register(rule Rule) {
	if _, exists := r.rules[rule.ID()]; !exists {
		r.order = append(r.order, rule.ID())
	}
	r.rules[rule.ID()] = rule
}

// Get returns the rule for id, or nil if not found.
func (r *Registry) Get(id string) Rule {
	return r.rules[id]
}

// All returns the rules in registration order.
func (r *Registry) All() []Rule {
	out := make([]Rule, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rules[id])
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.order)
}
