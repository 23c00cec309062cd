package parser

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"docextract/internal/domain"
	"docextract/internal/format"
	"docextract/internal/port"
)

// MergeExtractor runs two extractors in parallel and merges their candidates. Agreement
// boosts confidence, disagreements prefer the value that matches the expected format.
type MergeExtractor struct {
	primary   port.FieldExtractor
	secondary port.FieldExtractor
	checker   *format.Checker
	log       logrus.FieldLogger
}

// NewMergeExtractor creates a MergeExtractor. checker may be nil to skip format preference.
func NewMergeExtractor(primary, secondary port.FieldExtractor, checker *format.Checker, log logrus.FieldLogger) *MergeExtractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MergeExtractor{primary: primary, secondary: secondary, checker: checker, log: log}
}

func (m *MergeExtractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	type result struct {
		output *port.ExtractOutput
		err    error
	}

	var wg sync.WaitGroup
	var pResult, sResult result

	wg.Add(2)
	go func() {
		defer wg.Done()
		out, err := m.primary.Extract(ctx, input)
		pResult = result{out, err}
	}()
	go func() {
		defer wg.Done()
		out, err := m.secondary.Extract(ctx, input)
		sResult = result{out, err}
	}()
	wg.Wait()

	// A nil output without an error counts as a failed extractor
	if pResult.err == nil && pResult.output == nil {
		pResult.err = Malformed("primary returned no extraction")
	}
	if sResult.err == nil && sResult.output == nil {
		sResult.err = Malformed("secondary returned no extraction")
	}

	// Both failed
	if pResult.err != nil && sResult.err != nil {
		return nil, Wrap("llm", "extract", fmt.Errorf("both extractors failed: primary: %v; secondary: %w", pResult.err, sResult.err))
	}

	// Only secondary succeeded
	if pResult.err != nil {
		m.log.WithError(pResult.err).Warn("parser.MergeExtractor: primary extractor failed, using secondary only")
		return sResult.output, nil
	}

	// Only primary succeeded
	if sResult.err != nil {
		m.log.WithError(sResult.err).Warn("parser.MergeExtractor: secondary extractor failed, using primary only")
		return pResult.output, nil
	}

	return &port.ExtractOutput{
		Candidates: m.mergeCandidates(input.Schema, pResult.output.Candidates, sResult.output.Candidates),
		Model:      pResult.output.Model + "+" + sResult.output.Model,
	}, nil
}

// mergeCandidates keeps the primary order and appends fields only the secondary found.
func (m *MergeExtractor) mergeCandidates(schema domain.FieldSchema, primary, secondary []domain.CandidateField) []domain.CandidateField {
	second := make(map[string]domain.CandidateField, len(secondary))
	for _, c := range secondary {
		if _, dup := second[c.Name]; !dup {
			second[c.Name] = c
		}
	}

	out := make([]domain.CandidateField, 0, len(primary)+len(secondary))
	used := make(map[string]bool, len(primary))
	for _, p := range primary {
		s, ok := second[p.Name]
		if !ok || used[p.Name] {
			out = append(out, p)
			continue
		}
		used[p.Name] = true
		out = append(out, m.mergeOne(schema, p, s))
	}
	for _, s := range secondary {
		if used[s.Name] {
			continue
		}
		if _, inPrimary := find(primary, s.Name); inPrimary {
			continue
		}
		used[s.Name] = true
		out = append(out, s)
	}
	return out
}

func (m *MergeExtractor) mergeOne(schema domain.FieldSchema, p, s domain.CandidateField) domain.CandidateField {
	if p.Value == s.Value {
		// Agreement: boost confidence
		if p.RawConfidence < 1.0 {
			p.RawConfidence += (1.0 - p.RawConfidence) * 0.2
		}
		if len(p.Evidence) == 0 {
			p.Evidence = s.Evidence
		}
		return p
	}

	// Disagreement: prefer value matching expected format
	if spec, ok := schema.Lookup(p.Name); ok && m.checker != nil && m.checker.HasValidator(spec.Kind) {
		pMatch, _ := m.checker.Check(spec.Kind, p.Value)
		sMatch, _ := m.checker.Check(spec.Kind, s.Value)
		if sMatch && !pMatch {
			s.RawConfidence *= 0.8
			return s
		}
		if pMatch && !sMatch {
			p.RawConfidence *= 0.8
			return p
		}
	}

	// Both disagree, keep primary but reduce confidence
	p.RawConfidence *= 0.6
	return p
}

func find(cs []domain.CandidateField, name string) (domain.CandidateField, bool) {
	for _, c := range cs {
		if c.Name == name {
			return c, true
		}
	}
	return domain.CandidateField{}, false
}
