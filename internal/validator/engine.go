package validator

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"docextract/internal/domain"
	"docextract/internal/format"
)

const noteAllPassed = "All validations passed"

// Engine runs per-field format checks and cross-field rules. It holds no per-document
// state and is safe for concurrent use.
type Engine struct {
	checker *format.Checker
	log     logrus.FieldLogger
}

// NewEngine creates a new validation engine.
func NewEngine(checker *format.Checker, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{checker: checker, log: log}
}

// Checker returns the format checker used by the engine.
func (e *Engine) Checker() *format.Checker {
	return e.checker
}

// Validate checks fields against schema, then runs rules in order. The input slice is
// not modified; validated copies are returned with the QA block.
func (e *Engine) Validate(schema domain.FieldSchema, rules []Rule, fields []domain.Field) ([]domain.Field, domain.QA) {
	out := make([]domain.Field, len(fields))
	var notes []string

	for i, f := range fields {
		out[i] = e.validateField(schema, f)
		if _, ok := schema.Lookup(f.Name); !ok {
			notes = append(notes, fmt.Sprintf("field %s not in %s schema", f.Name, schema.DocType))
		}
	}

	fs := NewFieldSet(schema, out)
	qa := domain.QA{PassedRules: []string{}, FailedRules: []string{}}
	passed := mapset.NewThreadUnsafeSet[string]()
	failed := mapset.NewThreadUnsafeSet[string]()
	seen := mapset.NewThreadUnsafeSet[string]()

	for _, rule := range rules {
		id := rule.ID()
		if !seen.Add(id) {
			e.log.WithField("rule", id).Warn("validator.Engine: duplicate rule id, evaluating once")
			continue
		}

		if missing := fs.Missing(rule.RequiredFields()); len(missing) > 0 {
			skip := domain.SkippedRule{RuleID: id, Missing: missing}
			qa.Skipped = append(qa.Skipped, skip)
			notes = append(notes, skip.Note())
			continue
		}

		res := rule.Evaluate(fs)
		switch res.Status {
		case StatusPassed:
			passed.Add(id)
			qa.PassedRules = append(qa.PassedRules, id)
		case StatusFailed:
			failed.Add(id)
			qa.FailedRules = append(qa.FailedRules, id)
			notes = append(notes, ruleNote(id, res.Note))
		default:
			skip := domain.SkippedRule{RuleID: id, Reason: res.Note}
			qa.Skipped = append(qa.Skipped, skip)
			notes = append(notes, skip.Note())
		}
	}

	qa.CrossValidationScore = CrossValidationScore(passed.Cardinality(), failed.Cardinality())
	if len(notes) == 0 {
		qa.Notes = noteAllPassed
	} else {
		qa.Notes = strings.Join(notes, "; ")
	}

	e.log.WithFields(logrus.Fields{
		"doc_type": schema.DocType,
		"passed":   len(qa.PassedRules),
		"failed":   len(qa.FailedRules),
		"skipped":  len(qa.Skipped),
	}).Debug("validator.Engine: validation complete")

	return out, qa
}

func (e *Engine) validateField(schema domain.FieldSchema, f domain.Field) domain.Field {
	notes := make([]string, 0, 2)
	spec, inSchema := schema.Lookup(f.Name)
	switch {
	case !inSchema:
		f.ValidationPassed = true
		notes = append(notes, format.NoteValid, fmt.Sprintf("not in schema for %s", schema.DocType))
	case e.checker.HasValidator(spec.Kind):
		ok, note := e.checker.Check(spec.Kind, f.Value)
		f.ValidationPassed = ok
		notes = append(notes, note)
	default:
		f.ValidationPassed = true
		notes = append(notes, format.NoteValid)
	}
	if f.ValidationNotes != "" {
		notes = append(notes, f.ValidationNotes)
	}
	f.ValidationNotes = strings.Join(notes, "; ")
	return f
}

// CrossValidationScore is passed/(passed+failed), or 1.0 when no rule ran.
func CrossValidationScore(passed, failed int) float64 {
	total := passed + failed
	if total == 0 {
		return 1.0
	}
	return float64(passed) / float64(total)
}

func ruleNote(id, note string) string {
	if note == "" {
		return id + " failed"
	}
	return id + ": " + note
}
