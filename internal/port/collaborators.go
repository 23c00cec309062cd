package port

import (
	"context"

	"docextract/internal/domain"
)

// ClassifyInput carries the pages of a document to classify.
type ClassifyInput struct {
	Filename string
	Pages    []domain.Page
}

// Classification is the raw answer of a document classifier. Label is free text and
// is mapped onto a DocType by the router.
type Classification struct {
	Label      string
	Confidence float64
	Reasoning  string
	Indicators []string
	Model      string
}

// DocumentClassifier predicts the type of a document.
type DocumentClassifier interface {
	Classify(ctx context.Context, input ClassifyInput) (*Classification, error)
}

// Recognizer runs OCR on a single page. A blank page yields an empty slice and no error.
type Recognizer interface {
	Recognize(ctx context.Context, page domain.Page) ([]domain.OCRToken, error)
}

// ExtractInput carries everything a field extractor needs for one document.
type ExtractInput struct {
	DocType domain.DocType
	Pages   []domain.Page
	// OCRText is the recognized text with token references, one token per line.
	OCRText string
	Schema  domain.FieldSchema
}

// ExtractOutput holds the candidate fields proposed by an extractor.
type ExtractOutput struct {
	Candidates []domain.CandidateField
	Model      string
}

// FieldExtractor proposes field candidates for a document. Calls are idempotent.
type FieldExtractor interface {
	Extract(ctx context.Context, input ExtractInput) (*ExtractOutput, error)
}
