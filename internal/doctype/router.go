package doctype

import (
	"context"
	"fmt"
	"math"
	"strings"

	"docextract/internal/domain"
	"docextract/internal/port"
)

// DefaultMinConfidence is the classifier confidence below which a document is routed
// to the unknown type.
const DefaultMinConfidence = 0.5

var aliases = map[string]domain.DocType{
	"invoice":            domain.DocTypeInvoice,
	"receipt":            domain.DocTypeInvoice,
	"tax_invoice":        domain.DocTypeInvoice,
	"commercial_invoice": domain.DocTypeInvoice,
	"medical_bill":       domain.DocTypeMedicalBill,
	"bill":               domain.DocTypeMedicalBill,
	"hospital_bill":      domain.DocTypeMedicalBill,
	"medical":            domain.DocTypeMedicalBill,
	"medical_invoice":    domain.DocTypeMedicalBill,
	"prescription":       domain.DocTypePrescription,
	"rx":                 domain.DocTypePrescription,
	"prescription_slip":  domain.DocTypePrescription,
	"unknown":            domain.DocTypeUnknown,
	"other":              domain.DocTypeUnknown,
}

// Routing is the routing decision for a document.
type Routing struct {
	DocType    domain.DocType
	Confidence float64
	// Label is the classifier's original answer.
	Label      string
	Reasoning  string
	Indicators []string
	Model      string
}

// Router classifies documents into the closed DocType set.
type Router struct {
	classifier    port.DocumentClassifier
	minConfidence float64
}

// NewRouter creates a Router. A minConfidence of 0 routes every recognized label; one
// outside [0,1] falls back to DefaultMinConfidence.
func NewRouter(classifier port.DocumentClassifier, minConfidence float64) *Router {
	if math.IsNaN(minConfidence) || minConfidence < 0 || minConfidence > 1 {
		minConfidence = DefaultMinConfidence
	}
	return &Router{classifier: classifier, minConfidence: minConfidence}
}

// MinConfidence returns the configured confidence floor.
func (r *Router) MinConfidence() float64 {
	return r.minConfidence
}

// Route asks the classifier for the document type. Labels that do not map onto a
// known type return an error wrapping domain.ErrUnrecognizedDocType. Answers below the
// confidence floor resolve to unknown, keeping the reported confidence.
func (r *Router) Route(ctx context.Context, doc domain.Document) (Routing, error) {
	if r.classifier == nil {
		return Routing{}, fmt.Errorf("%w: no document classifier", domain.ErrConfigurationMissing)
	}
	out, err := r.classifier.Classify(ctx, port.ClassifyInput{Filename: doc.Filename, Pages: doc.Pages})
	if err != nil {
		return Routing{}, domain.NewCollaboratorError("classifier", "classify", err)
	}
	if out == nil {
		return Routing{}, domain.NewCollaboratorError("classifier", "classify",
			fmt.Errorf("%w: empty classification", domain.ErrMalformedResponse))
	}

	dt, ok := MapLabel(out.Label)
	if !ok {
		return Routing{}, fmt.Errorf("%w: %q", domain.ErrUnrecognizedDocType, out.Label)
	}

	conf := clamp(out.Confidence)
	if conf < r.minConfidence {
		dt = domain.DocTypeUnknown
	}
	return Routing{
		DocType:    dt,
		Confidence: conf,
		Label:      out.Label,
		Reasoning:  out.Reasoning,
		Indicators: out.Indicators,
		Model:      out.Model,
	}, nil
}

// MapLabel normalizes a free-text label and maps it onto a DocType.
func MapLabel(label string) (domain.DocType, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if key == "" {
		return "", false
	}
	dt, ok := aliases[key]
	return dt, ok
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
