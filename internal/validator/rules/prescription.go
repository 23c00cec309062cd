package rules

import (
	"fmt"
	"regexp"
	"strings"

	"docextract/internal/validator"
)

var refillsPattern = regexp.MustCompile(`^\d+(\s*(refills?|x|times))?$`)

var noRefills = map[string]bool{
	"none":       true,
	"no":         true,
	"no refills": true,
	"nr":         true,
	"zero":       true,
}

// RefillsNumeric checks that the refill count is a non-negative whole number.
func RefillsNumeric() validator.Rule {
	return &rule{
		id:          RuleRefillsNumeric,
		description: "refill count is a non-negative integer",
		required:    []string{"refills"},
		evaluate: func(fs *validator.FieldSet) validator.Result {
			v, _ := fs.Value("refills")
			norm := strings.ToLower(strings.TrimSpace(v))
			if noRefills[norm] || refillsPattern.MatchString(norm) {
				return validator.Pass("refill count is numeric")
			}
			return validator.Fail(fmt.Sprintf("refills value %q is not a non-negative integer", v))
		},
	}
}
