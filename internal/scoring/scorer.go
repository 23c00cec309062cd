package scoring

import (
	"fmt"
	"math"

	"docextract/internal/domain"
	"docextract/internal/format"
)

// Weights of the per-field confidence signals.
const (
	LLMWeight       = 0.40
	OCRWeight       = 0.30
	FormatWeight    = 0.20
	RelevanceWeight = 0.10
)

// Format scores.
const (
	FormatScorePass        = 1.0
	FormatScoreFail        = 0.0
	FormatScoreNoValidator = 0.5
)

// Weights lets a deployment tune the signal mix.
type Weights struct {
	LLM       float64
	OCR       float64
	Format    float64
	Relevance float64
}

// DefaultWeights returns the stock signal weights.
func DefaultWeights() Weights {
	return Weights{LLM: LLMWeight, OCR: OCRWeight, Format: FormatWeight, Relevance: RelevanceWeight}
}

// Validate requires every weight in [0,1] and a sum of 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"llm": w.LLM, "ocr": w.OCR, "format": w.Format, "relevance": w.Relevance} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: scoring weight %s=%v outside [0,1]", domain.ErrInvalidConfiguration, name, v)
		}
	}
	if sum := w.LLM + w.OCR + w.Format + w.Relevance; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: scoring weights sum to %v, want 1", domain.ErrInvalidConfiguration, sum)
	}
	return nil
}

// Scorer combines LLM, OCR, format and relevance signals into field confidences.
// It is stateless and safe for concurrent use.
type Scorer struct {
	weights Weights
	checker *format.Checker
}

// NewScorer validates w and returns a Scorer.
func NewScorer(w Weights, checker *format.Checker) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if checker == nil {
		return nil, fmt.Errorf("%w: format checker", domain.ErrConfigurationMissing)
	}
	return &Scorer{weights: w, checker: checker}, nil
}

// Weights returns the weights in use.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// FormatScore is 1 when value passes the check for spec's kind, 0 when it fails and
// 0.5 when the kind has no validator or the field is not in the schema.
func (s *Scorer) FormatScore(spec *domain.FieldSpec, value string) float64 {
	if spec == nil || !s.checker.HasValidator(spec.Kind) {
		return FormatScoreNoValidator
	}
	if ok, _ := s.checker.Check(spec.Kind, value); ok {
		return FormatScorePass
	}
	return FormatScoreFail
}

// ScoreField computes the confidence of a candidate. spec is nil for fields outside
// the schema.
func (s *Scorer) ScoreField(c domain.CandidateField, ev Evidence, spec *domain.FieldSpec) float64 {
	relevance := 0.0
	if spec != nil {
		relevance = clamp(spec.Weight)
	}
	score := s.weights.LLM*clamp(c.RawConfidence) +
		s.weights.OCR*ev.OCRConfidence() +
		s.weights.Format*s.FormatScore(spec, c.Value) +
		s.weights.Relevance*relevance
	return clamp(score)
}

// Score builds a scored Field from a candidate. Validation results are filled in later.
func (s *Scorer) Score(c domain.CandidateField, ev Evidence, spec *domain.FieldSpec) domain.Field {
	return domain.Field{
		Name:       c.Name,
		Value:      c.Value,
		Confidence: s.ScoreField(c, ev, spec),
		Source:     ev.Source(),
	}
}

// OverallConfidence is the mean field confidence weighted by schema relevance. Fields
// with no schema entry weigh 1.0. If every weight is zero the plain mean is used; a
// record with no fields scores 0.
func (s *Scorer) OverallConfidence(fields []domain.Field, schema domain.FieldSchema) float64 {
	if len(fields) == 0 {
		return 0
	}
	var sumW, sumWC, plain float64
	for _, f := range fields {
		w := 1.0
		if spec, ok := schema.Lookup(f.Name); ok {
			w = clamp(spec.Weight)
		}
		c := clamp(f.Confidence)
		sumW += w
		sumWC += w * c
		plain += c
	}
	if sumW == 0 {
		return clamp(plain / float64(len(fields)))
	}
	return clamp(sumWC / sumW)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
