package validator

import "fmt"

// Status is the outcome of evaluating a single rule.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result is what a rule returns. Deviation is set by numeric reconciliation rules.
type Result struct {
	Status    Status
	Deviation *float64
	Note      string
}

// Pass returns a passing result.
func Pass(note string) Result {
	return Result{Status: StatusPassed, Note: note}
}

// Fail returns a failing result.
func Fail(note string) Result {
	return Result{Status: StatusFailed, Note: note}
}

// FailWithDeviation returns a failing result carrying the numeric discrepancy.
func FailWithDeviation(deviation float64, note string) Result {
	return Result{Status: StatusFailed, Deviation: &deviation, Note: note}
}

// Skip returns a result meaning the rule does not apply to the fields present.
func Skip(reason string) Result {
	return Result{Status: StatusSkipped, Note: reason}
}

// Rule is a cross-field validation rule for a doc type.
type Rule interface {
	ID() string
	Description() string
	// RequiredFields lists the fields that must be present for the rule to run.
	// A name ending in "[]" means at least one entry of a repeated field.
	RequiredFields() []string
	Evaluate(fs *FieldSet) Result
}
