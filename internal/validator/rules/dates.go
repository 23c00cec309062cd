package rules

import (
	"fmt"
	"strings"

	"docextract/internal/domain"
	"docextract/internal/validator"
)

// DateFieldsPresent checks that the record carries at least one date. A field counts
// when the schema declares it a date or its name mentions one. A record without dates
// skips the rule with a note rather than failing it.
func DateFieldsPresent() validator.Rule {
	return &rule{
		id:          RuleDateFieldsPresent,
		description: "at least one date field is present",
		evaluate: func(fs *validator.FieldSet) validator.Result {
			var found []string
			for _, name := range fs.Names() {
				if isDateField(fs.Schema(), name) && fs.Has(name) {
					found = append(found, name)
				}
			}
			if len(found) > 0 {
				return validator.Pass(fmt.Sprintf("date fields present: %s", strings.Join(found, ", ")))
			}
			return validator.Skip("no date fields found")
		},
	}
}

func isDateField(schema domain.FieldSchema, name string) bool {
	if spec, ok := schema.Lookup(name); ok && spec.Kind == domain.KindDate {
		return true
	}
	return strings.Contains(strings.ToLower(name), "date")
}
