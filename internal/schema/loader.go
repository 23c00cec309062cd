package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"docextract/internal/domain"
)

type fileFormat struct {
	Schemas map[string]struct {
		Fields []domain.FieldSpec `yaml:"fields"`
	} `yaml:"schemas"`
}

// LoadFile reads schema overrides from a YAML file of the form
//
//	schemas:
//	  invoice:
//	    fields:
//	      - {name: invoice_number, kind: text, weight: 1.0, required: true}
//
// The "unknown" key replaces the generic fallback schema.
func LoadFile(path string) (map[domain.DocType]domain.FieldSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading schema file: %v", domain.ErrConfigurationMissing, err)
	}
	return Parse(data)
}

// Parse decodes schema overrides from YAML.
func Parse(data []byte) (map[domain.DocType]domain.FieldSchema, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("%w: parsing schema file: %v", domain.ErrInvalidConfiguration, err)
	}
	out := make(map[domain.DocType]domain.FieldSchema, len(ff.Schemas))
	for key, entry := range ff.Schemas {
		dt, ok := domain.ParseDocType(key)
		if !ok {
			return nil, fmt.Errorf("%w: schema file names unknown doc type %q", domain.ErrInvalidConfiguration, key)
		}
		fields := make([]domain.FieldSpec, len(entry.Fields))
		for i, f := range entry.Fields {
			if f.Kind == "" {
				f.Kind = domain.KindText
			}
			fields[i] = f
		}
		s := domain.FieldSchema{DocType: dt, Fields: fields}
		if err := Validate(s); err != nil {
			return nil, err
		}
		out[dt] = s
	}
	return out, nil
}
