package rules

import (
	"fmt"
	"strings"

	"docextract/internal/domain"
	"docextract/internal/validator"
)

// RequiredFields checks that every mandated field of schema is present and non-empty.
// Repeated fields need at least one entry. With nothing mandated the rule is skipped.
func RequiredFields(schema domain.FieldSchema) validator.Rule {
	var names []string
	for _, f := range schema.Fields {
		if !f.Required {
			continue
		}
		if f.Repeated {
			names = append(names, f.Name+"[]")
			continue
		}
		names = append(names, f.Name)
	}
	return requiredFieldsRule(RuleRequiredFields, names)
}

func requiredFieldsRule(id string, names []string) validator.Rule {
	return &rule{
		id:          id,
		description: "all mandated fields are present and non-empty",
		evaluate: func(fs *validator.FieldSet) validator.Result {
			if len(names) == 0 {
				return validator.Skip("no mandated fields")
			}
			missing := fs.Missing(names)
			if len(missing) == 0 {
				return validator.Pass(fmt.Sprintf("all %d required fields present", len(names)))
			}
			for i, m := range missing {
				missing[i] = strings.TrimSuffix(m, "[]")
			}
			return validator.Fail(fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
		},
	}
}
