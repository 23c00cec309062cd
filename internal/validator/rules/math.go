package rules

import (
	"fmt"
	"math"

	"docextract/internal/format"
	"docextract/internal/validator"
)

// TotalsMatch checks that the line item amounts add up to the stated invoice total.
func TotalsMatch(tolerance float64) validator.Rule {
	return &rule{
		id:          RuleTotalsMatch,
		description: "sum of line item amounts equals stated total",
		required:    []string{"line_items[]", "total"},
		evaluate: func(fs *validator.FieldSet) validator.Result {
			total, err := fs.Amount("total")
			if err != nil {
				v, _ := fs.Value("total")
				return unparseable("total", v)
			}
			var sum float64
			for _, item := range fs.Repeated("line_items") {
				amt, err := format.ParseAmount(item.Value)
				if err != nil {
					return unparseable(item.Name, item.Value)
				}
				sum += amt
			}
			if approxEqual(sum, total, tolerance) {
				return validator.Pass(fmt.Sprintf("line items sum to stated total %s", fmtf(total)))
			}
			diff := math.Abs(total - sum)
			return validator.FailWithDeviation(diff, fmt.Sprintf(
				"line items sum to %s but stated total is %s (discrepancy %s)", fmtf(sum), fmtf(total), fmtf(diff)))
		},
	}
}

// SubtotalTaxMatch checks subtotal + tax = total.
func SubtotalTaxMatch(tolerance float64) validator.Rule {
	return &rule{
		id:          RuleSubtotalTaxMatch,
		description: "subtotal plus tax equals stated total",
		required:    []string{"subtotal", "tax", "total"},
		evaluate: func(fs *validator.FieldSet) validator.Result {
			amounts, res, ok := parseAll(fs, "subtotal", "tax", "total")
			if !ok {
				return res
			}
			expected := amounts[0] + amounts[1]
			if approxEqual(expected, amounts[2], tolerance) {
				return validator.Pass("subtotal plus tax matches total")
			}
			diff := math.Abs(amounts[2] - expected)
			return validator.FailWithDeviation(diff, fmt.Sprintf(
				"subtotal plus tax is %s but stated total is %s (discrepancy %s)", fmtf(expected), fmtf(amounts[2]), fmtf(diff)))
		},
	}
}

// BalanceConsistency checks charges - insurance_adjustments - payments = balance_due.
// Absent adjustments or payments count as zero.
func BalanceConsistency(tolerance float64) validator.Rule {
	return &rule{
		id:          RuleBalanceConsistency,
		description: "charges minus adjustments and payments equals balance",
		required:    []string{"charges", "balance_due"},
		evaluate: func(fs *validator.FieldSet) validator.Result {
			amounts, res, ok := parseAll(fs, "charges", "balance_due")
			if !ok {
				return res
			}
			charges, balance := amounts[0], amounts[1]
			deductions := 0.0
			for _, name := range []string{"insurance_adjustments", "payments"} {
				if !fs.Has(name) {
					continue
				}
				amt, err := fs.Amount(name)
				if err != nil {
					v, _ := fs.Value(name)
					return unparseable(name, v)
				}
				deductions += amt
			}
			expected := charges - deductions
			if approxEqual(expected, balance, tolerance) {
				return validator.Pass("balance is consistent with charges and deductions")
			}
			diff := math.Abs(balance - expected)
			return validator.FailWithDeviation(diff, fmt.Sprintf(
				"expected balance %s but stated balance is %s (discrepancy %s)", fmtf(expected), fmtf(balance), fmtf(diff)))
		},
	}
}

// InsuranceSplitMatch checks charges = insurance_paid + patient_responsibility.
func InsuranceSplitMatch(tolerance float64) validator.Rule {
	return &rule{
		id:          RuleInsuranceSplitMatch,
		description: "insurance paid plus patient responsibility equals charges",
		required:    []string{"charges", "insurance_paid", "patient_responsibility"},
		evaluate: func(fs *validator.FieldSet) validator.Result {
			amounts, res, ok := parseAll(fs, "charges", "insurance_paid", "patient_responsibility")
			if !ok {
				return res
			}
			split := amounts[1] + amounts[2]
			if approxEqual(split, amounts[0], tolerance) {
				return validator.Pass("insurance split matches charges")
			}
			diff := math.Abs(amounts[0] - split)
			return validator.FailWithDeviation(diff, fmt.Sprintf(
				"insurance paid plus patient responsibility is %s but charges are %s (discrepancy %s)", fmtf(split), fmtf(amounts[0]), fmtf(diff)))
		},
	}
}

func parseAll(fs *validator.FieldSet, names ...string) ([]float64, validator.Result, bool) {
	out := make([]float64, len(names))
	for i, name := range names {
		amt, err := fs.Amount(name)
		if err != nil {
			v, _ := fs.Value(name)
			return nil, unparseable(name, v), false
		}
		out[i] = amt
	}
	return out, validator.Result{}, true
}
