package domain

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Page is a single page image of a document. Index is 1-based.
type Page struct {
	Index       int
	Image       []byte
	ContentType string
}

// Document is one processing unit. It is immutable once routed; WithRouting returns a
// copy carrying the detected doc type.
type Document struct {
	ID               uuid.UUID
	Filename         string
	Pages            []Page
	DocType          DocType
	RouterConfidence float64
}

// WithRouting returns a copy of d with the routing result applied.
func (d Document) WithRouting(docType DocType, confidence float64) Document {
	d.DocType = docType
	d.RouterConfidence = confidence
	return d
}

// BoundingBox is a rectangle in image coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Valid reports whether the box has positive width and height.
func (b BoundingBox) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Union returns the smallest box covering both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
		X2: math.Max(b.X2, o.X2),
		Y2: math.Max(b.Y2, o.Y2),
	}
}

// OCRToken is a single recognized text span.
type OCRToken struct {
	PageIndex  int         `json:"page"`
	BBox       BoundingBox `json:"bbox"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
}

// PageTokens holds the tokens of one page in recognition order.
type PageTokens struct {
	PageIndex int
	Tokens    []OCRToken
}

// TokenRef points at a token by page and position. Lookup only.
type TokenRef struct {
	PageIndex  int
	TokenIndex int
}

func (r TokenRef) String() string {
	return fmt.Sprintf("p%d:t%d", r.PageIndex, r.TokenIndex)
}

// ParseTokenRef parses the "p<page>:t<index>" form.
func ParseTokenRef(s string) (TokenRef, error) {
	var r TokenRef
	if _, err := fmt.Sscanf(s, "p%d:t%d", &r.PageIndex, &r.TokenIndex); err != nil {
		return TokenRef{}, fmt.Errorf("invalid token ref %q: %w", s, err)
	}
	if r.PageIndex < 1 || r.TokenIndex < 0 {
		return TokenRef{}, fmt.Errorf("invalid token ref %q", s)
	}
	return r, nil
}

// CandidateField is a field proposed by the extraction collaborator, before scoring.
type CandidateField struct {
	Name          string
	Value         string
	RawConfidence float64
	Evidence      []TokenRef
	Reasoning     string
}
