package rules

import (
	"docextract/internal/domain"
	"docextract/internal/validator"
)

// DefaultTolerance is the absolute currency tolerance for reconciliation rules.
const DefaultTolerance = 0.01

// Tolerances holds per-rule absolute tolerances. Keys are rule IDs.
type Tolerances map[string]float64

// DefaultTolerances returns the stock tolerances for every numeric rule.
func DefaultTolerances() Tolerances {
	return Tolerances{
		RuleTotalsMatch:         DefaultTolerance,
		RuleBalanceConsistency:  DefaultTolerance,
		RuleSubtotalTaxMatch:    DefaultTolerance,
		RuleInsuranceSplitMatch: DefaultTolerance,
	}
}

// For returns the tolerance for id, falling back to DefaultTolerance.
func (t Tolerances) For(id string) float64 {
	if v, ok := t[id]; ok && v >= 0 {
		return v
	}
	return DefaultTolerance
}

// ForDocType returns the built-in rule registry for a doc type. schema supplies the
// mandated fields for required_fields.
func ForDocType(docType domain.DocType, schema domain.FieldSchema, tol Tolerances) *validator.Registry {
	reg := validator.NewRegistry(RequiredFields(schema), DateFieldsPresent())
	switch docType {
	case domain.DocTypeInvoice:
		reg.Register(TotalsMatch(tol.For(RuleTotalsMatch)))
		reg.Register(SubtotalTaxMatch(tol.For(RuleSubtotalTaxMatch)))
	case domain.DocTypeMedicalBill:
		reg.Register(BalanceConsistency(tol.For(RuleBalanceConsistency)))
		reg.Register(InsuranceSplitMatch(tol.For(RuleInsuranceSplitMatch)))
	case domain.DocTypePrescription:
		reg.Register(RefillsNumeric())
	}
	return reg
}
