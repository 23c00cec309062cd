package schema

import (
	"fmt"
	"sort"

	"docextract/internal/domain"
	"docextract/internal/validator"
	"docextract/internal/validator/rules"
)

// Options configures how a Registry is built.
type Options struct {
	// File is an optional YAML file overriding built-in field lists.
	File string
	// Tolerances for numeric rules, keyed by rule ID.
	Tolerances rules.Tolerances
	// DisableGeneric leaves the unknown doc type without a fallback schema.
	DisableGeneric bool
}

// Registry maps doc types to their field schema and rule set. It is built once at
// startup and never modified, so concurrent lookups need no locking.
type Registry struct {
	schemas map[domain.DocType]domain.FieldSchema
	rules   map[domain.DocType][]validator.Rule
	generic *domain.FieldSchema
}

// New builds a Registry from the built-in schemas, applying the override file if set.
func New(opts Options) (*Registry, error) {
	schemas := Builtin()
	var generic *domain.FieldSchema
	if !opts.DisableGeneric {
		g := DefaultGeneric()
		generic = &g
	}

	if opts.File != "" {
		overrides, err := LoadFile(opts.File)
		if err != nil {
			return nil, err
		}
		for dt, s := range overrides {
			if dt == domain.DocTypeUnknown {
				if !opts.DisableGeneric {
					g := s
					generic = &g
				}
				continue
			}
			schemas[dt] = s
		}
	}

	return NewFromSchemas(schemas, generic, opts.Tolerances)
}

// NewFromSchemas builds a Registry from explicit schemas. generic may be nil.
func NewFromSchemas(schemas map[domain.DocType]domain.FieldSchema, generic *domain.FieldSchema, tol rules.Tolerances) (*Registry, error) {
	if tol == nil {
		tol = rules.DefaultTolerances()
	}
	r := &Registry{
		schemas: make(map[domain.DocType]domain.FieldSchema, len(schemas)),
		rules:   make(map[domain.DocType][]validator.Rule, len(schemas)+1),
	}
	for dt, s := range schemas {
		if !dt.IsValid() || dt == domain.DocTypeUnknown {
			return nil, fmt.Errorf("%w: schema for doc type %q", domain.ErrInvalidConfiguration, dt)
		}
		s.DocType = dt
		if err := Validate(s); err != nil {
			return nil, err
		}
		r.schemas[dt] = clone(s)
		r.rules[dt] = rules.ForDocType(dt, s, tol).All()
	}
	if generic != nil {
		g := clone(*generic)
		g.DocType = domain.DocTypeUnknown
		if err := Validate(g); err != nil {
			return nil, err
		}
		r.generic = &g
		r.rules[domain.DocTypeUnknown] = rules.ForDocType(domain.DocTypeUnknown, g, tol).All()
	}
	return r, nil
}

// SchemaFor returns a copy of the schema for docType. The unknown type resolves to the
// generic fallback when one is configured.
func (r *Registry) SchemaFor(docType domain.DocType) (domain.FieldSchema, error) {
	if docType == domain.DocTypeUnknown {
		if r.generic == nil {
			return domain.FieldSchema{}, fmt.Errorf("%w: %s (no generic fallback)", domain.ErrUnknownDocType, docType)
		}
		return clone(*r.generic), nil
	}
	s, ok := r.schemas[docType]
	if !ok {
		return domain.FieldSchema{}, fmt.Errorf("%w: %s", domain.ErrUnknownDocType, docType)
	}
	return clone(s), nil
}

// RulesFor returns the rules for docType in registration order.
func (r *Registry) RulesFor(docType domain.DocType) []validator.Rule {
	src := r.rules[docType]
	out := make([]validator.Rule, len(src))
	copy(out, src)
	return out
}

// HasGeneric reports whether a fallback schema for unknown documents is configured.
func (r *Registry) HasGeneric() bool {
	return r.generic != nil
}

// DocTypes lists the doc types with a dedicated schema, sorted.
func (r *Registry) DocTypes() []domain.DocType {
	out := make([]domain.DocType, 0, len(r.schemas))
	for dt := range r.schemas {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks a schema for unique names, known kinds and weights in [0,1].
func Validate(s domain.FieldSchema) error {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s schema has a field with no name", domain.ErrInvalidConfiguration, s.DocType)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %s schema declares %s twice", domain.ErrInvalidConfiguration, s.DocType, f.Name)
		}
		seen[f.Name] = true
		if !f.Kind.IsValid() {
			return fmt.Errorf("%w: %s.%s has unknown kind %q", domain.ErrInvalidConfiguration, s.DocType, f.Name, f.Kind)
		}
		if f.Weight < 0 || f.Weight > 1 {
			return fmt.Errorf("%w: %s.%s weight %v outside [0,1]", domain.ErrInvalidConfiguration, s.DocType, f.Name, f.Weight)
		}
	}
	return nil
}

func clone(s domain.FieldSchema) domain.FieldSchema {
	out := domain.FieldSchema{DocType: s.DocType, Fields: make([]domain.FieldSpec, len(s.Fields))}
	copy(out.Fields, s.Fields)
	return out
}
