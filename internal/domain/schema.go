package domain

import "strings"

// FieldSpec describes one expected field of a doc type.
type FieldSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Kind        ValueKind `json:"kind" yaml:"kind"`
	Weight      float64   `json:"weight" yaml:"weight"`
	Required    bool      `json:"required,omitempty" yaml:"required"`
	Repeated    bool      `json:"repeated,omitempty" yaml:"repeated"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Custom      bool      `json:"custom,omitempty" yaml:"-"`
}

// FieldSchema is the ordered set of expected fields for a doc type.
type FieldSchema struct {
	DocType DocType
	Fields  []FieldSpec
}

// BaseName strips a trailing "[N]" index from a repeated field name.
func BaseName(name string) string {
	if i := strings.IndexByte(name, '['); i > 0 && strings.HasSuffix(name, "]") {
		return name[:i]
	}
	return name
}

// Lookup finds the spec for name. Indexed names resolve through their base name when
// the entry is repeated.
func (s FieldSchema) Lookup(name string) (FieldSpec, bool) {
	base := BaseName(name)
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
		if f.Repeated && f.Name == base {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Position returns the index of the entry name resolves to, or -1.
func (s FieldSchema) Position(name string) int {
	base := BaseName(name)
	for i, f := range s.Fields {
		if f.Name == name || (f.Repeated && f.Name == base) {
			return i
		}
	}
	return -1
}

// Names returns the field names in schema order.
func (s FieldSchema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// RequiredNames returns the names of mandated fields in schema order.
func (s FieldSchema) RequiredNames() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// WithCustomFields returns a copy of s with names appended as free-form text fields of
// relevance weight 0. Names already present are ignored. s is not modified.
func (s FieldSchema) WithCustomFields(names []string) FieldSchema {
	out := FieldSchema{DocType: s.DocType, Fields: make([]FieldSpec, len(s.Fields), len(s.Fields)+len(names))}
	copy(out.Fields, s.Fields)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, exists := out.Lookup(n); exists {
			continue
		}
		out.Fields = append(out.Fields, FieldSpec{Name: n, Kind: KindText, Weight: 0, Custom: true})
	}
	return out
}
