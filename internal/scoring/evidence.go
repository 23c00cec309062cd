package scoring

import (
	"strings"

	"docextract/internal/domain"
)

// Evidence is the set of OCR tokens linked to a field.
type Evidence struct {
	Tokens []domain.OCRToken
}

// Linked reports whether any token backs the field.
func (e Evidence) Linked() bool {
	return len(e.Tokens) > 0
}

// OCRConfidence is the mean confidence of the linked tokens, 0 when none are linked.
func (e Evidence) OCRConfidence() float64 {
	if len(e.Tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range e.Tokens {
		sum += clamp(t.Confidence)
	}
	return clamp(sum / float64(len(e.Tokens)))
}

// Source locates the evidence: the first linked page, the union of the linked boxes
// on that page and the mean confidence of that page's tokens. Nil when nothing is linked.
func (e Evidence) Source() *domain.FieldSource {
	if len(e.Tokens) == 0 {
		return nil
	}
	page := e.Tokens[0].PageIndex
	var box *domain.BoundingBox
	var onPage []domain.OCRToken
	for _, t := range e.Tokens {
		if t.PageIndex != page {
			continue
		}
		onPage = append(onPage, t)
		if !t.BBox.Valid() {
			continue
		}
		if box == nil {
			b := t.BBox
			box = &b
			continue
		}
		u := box.Union(t.BBox)
		box = &u
	}
	conf := Evidence{Tokens: onPage}.OCRConfidence()
	return &domain.FieldSource{Page: page, BBox: box, OCRConfidence: &conf}
}

// minMatchLen keeps short tokens like "of" or "$" from matching everything.
const minMatchLen = 3

// TokenIndex gives lookup access to a document's OCR tokens. Tokens are never
// modified after OCR, so an index can be shared by concurrent readers.
type TokenIndex struct {
	pages map[int][]domain.OCRToken
	order []int
}

// NewTokenIndex indexes tokens by page, keeping page order.
func NewTokenIndex(pages []domain.PageTokens) *TokenIndex {
	ix := &TokenIndex{pages: make(map[int][]domain.OCRToken, len(pages))}
	for _, p := range pages {
		if _, ok := ix.pages[p.PageIndex]; !ok {
			ix.order = append(ix.order, p.PageIndex)
		}
		ix.pages[p.PageIndex] = p.Tokens
	}
	return ix
}

// Resolve returns the tokens refs point at. Refs outside the index are ignored.
func (ix *TokenIndex) Resolve(refs []domain.TokenRef) []domain.OCRToken {
	var out []domain.OCRToken
	seen := make(map[domain.TokenRef]bool, len(refs))
	for _, r := range refs {
		toks, ok := ix.pages[r.PageIndex]
		if !ok || r.TokenIndex < 0 || r.TokenIndex >= len(toks) || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, toks[r.TokenIndex])
	}
	return out
}

// Match finds tokens backing value by text. An exact token wins, then a token that
// contains the value, then every token on one page that is contained in the value.
func (ix *TokenIndex) Match(value string) []domain.OCRToken {
	v := normalize(value)
	if v == "" {
		return nil
	}
	var containing *domain.OCRToken
	for _, page := range ix.order {
		for i, t := range ix.pages[page] {
			tt := normalize(t.Text)
			if tt == "" {
				continue
			}
			if tt == v {
				return []domain.OCRToken{t}
			}
			if containing == nil && len(v) >= minMatchLen && strings.Contains(tt, v) {
				containing = &ix.pages[page][i]
			}
		}
	}
	if containing != nil {
		return []domain.OCRToken{*containing}
	}
	for _, page := range ix.order {
		var parts []domain.OCRToken
		for _, t := range ix.pages[page] {
			tt := normalize(t.Text)
			if len(tt) >= minMatchLen && strings.Contains(v, tt) {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return nil
}

// Link resolves the candidate's evidence refs, falling back to text matching when the
// extractor supplied none that resolve.
func (ix *TokenIndex) Link(c domain.CandidateField) Evidence {
	if toks := ix.Resolve(c.Evidence); len(toks) > 0 {
		return Evidence{Tokens: toks}
	}
	return Evidence{Tokens: ix.Match(c.Value)}
}

// MeanConfidence is the mean confidence over every token in the index.
func (ix *TokenIndex) MeanConfidence() float64 {
	var sum float64
	var n int
	for _, page := range ix.order {
		for _, t := range ix.pages[page] {
			sum += t.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clamp(sum / float64(n))
}

func normalize(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".,:;()[]\"'")
}
