package rules

import (
	"fmt"
	"math"

	"docextract/internal/validator"
)

// Rule identifiers.
const (
	RuleTotalsMatch         = "totals_match"
	RuleRequiredFields      = "required_fields"
	RuleBalanceConsistency  = "balance_consistency"
	RuleSubtotalTaxMatch    = "subtotal_tax_match"
	RuleInsuranceSplitMatch = "insurance_split_match"
	RuleRefillsNumeric      = "refills_numeric"
	RuleDateFieldsPresent   = "date_fields_present"
)

// rule is a cross-field rule driven by a closure.
type rule struct {
	id          string
	description string
	required    []string
	evaluate    func(*validator.FieldSet) validator.Result
}

func (r *rule) ID() string               { return r.id }
func (r *rule) Description() string      { return r.description }
func (r *rule) RequiredFields() []string { return r.required }

func (r *rule) Evaluate(fs *validator.FieldSet) validator.Result {
	return r.evaluate(fs)
}

// floating point slack on top of the configured tolerance
const epsilon = 1e-9

func approxEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance+epsilon
}

func fmtf(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func unparseable(name, value string) validator.Result {
	return validator.Fail(fmt.Sprintf("could not parse %s amount %q", name, value))
}
