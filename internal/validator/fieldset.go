package validator

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"docextract/internal/domain"
	"docextract/internal/format"
)

// FieldSet is a read-only view of a record's fields for rule evaluation.
type FieldSet struct {
	schema domain.FieldSchema
	fields []domain.Field
	byName map[string]int
}

// NewFieldSet indexes fields by name. The first field wins on duplicate names.
func NewFieldSet(schema domain.FieldSchema, fields []domain.Field) *FieldSet {
	fs := &FieldSet{schema: schema, fields: fields, byName: make(map[string]int, len(fields))}
	for i, f := range fields {
		if _, ok := fs.byName[f.Name]; !ok {
			fs.byName[f.Name] = i
		}
	}
	return fs
}

// Schema returns the schema the fields were validated against.
func (fs *FieldSet) Schema() domain.FieldSchema {
	return fs.schema
}

// Value returns the value of name and whether it is present.
func (fs *FieldSet) Value(name string) (string, bool) {
	i, ok := fs.byName[name]
	if !ok {
		return "", false
	}
	return fs.fields[i].Value, true
}

// Has reports whether name is present with a non-blank value. "base[]" matches any
// non-blank entry of a repeated field.
func (fs *FieldSet) Has(name string) bool {
	if base, ok := strings.CutSuffix(name, "[]"); ok {
		for _, f := range fs.Repeated(base) {
			if strings.TrimSpace(f.Value) != "" {
				return true
			}
		}
		return false
	}
	v, ok := fs.Value(name)
	return ok && strings.TrimSpace(v) != ""
}

// Missing returns the names from required that are not present.
func (fs *FieldSet) Missing(required []string) []string {
	var out []string
	for _, name := range required {
		if !fs.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Amount parses the value of name as a currency amount.
func (fs *FieldSet) Amount(name string) (float64, error) {
	v, _ := fs.Value(name)
	return format.ParseAmount(v)
}

// listSeparator splits a repeated field reported as one value. A comma only separates
// when followed by whitespace so "1,234.00" stays one entry.
var listSeparator = regexp.MustCompile(`[;\n]|,\s+`)

// Repeated returns the indexed entries of base ("base[0]", "base[1]", ...) ordered by index.
// Without indexed entries a plain "base" field is split on list separators instead.
func (fs *FieldSet) Repeated(base string) []domain.Field {
	if items := fs.indexed(base); len(items) > 0 {
		return items
	}
	whole, ok := fs.byName[base]
	if !ok {
		return nil
	}
	var out []domain.Field
	for _, part := range listSeparator.Split(fs.fields[whole].Value, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f := fs.fields[whole]
		f.Name = base + "[" + strconv.Itoa(len(out)) + "]"
		f.Value = part
		out = append(out, f)
	}
	return out
}

func (fs *FieldSet) indexed(base string) []domain.Field {
	type indexed struct {
		idx int
		f   domain.Field
	}
	var items []indexed
	prefix := base + "["
	seen := make(map[string]bool)
	for _, f := range fs.fields {
		if !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, "]") || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		idx, err := strconv.Atoi(f.Name[len(prefix) : len(f.Name)-1])
		if err != nil {
			continue
		}
		items = append(items, indexed{idx: idx, f: f})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].idx < items[j].idx })
	out := make([]domain.Field, len(items))
	for i, it := range items {
		out[i] = it.f
	}
	return out
}

// Names returns the field names in record order.
func (fs *FieldSet) Names() []string {
	out := make([]string, len(fs.fields))
	for i, f := range fs.fields {
		out[i] = f.Name
	}
	return out
}

// Len returns the number of fields.
func (fs *FieldSet) Len() int {
	return len(fs.fields)
}
