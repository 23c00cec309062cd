package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/domain"
	"docextract/internal/scoring"
)

func sampleIndex() *scoring.TokenIndex {
	return scoring.NewTokenIndex([]domain.PageTokens{
		{PageIndex: 1, Tokens: []domain.OCRToken{
			token(1, "Invoice", 0.95, 0, 0, 50, 10),
			token(1, "INV-1001", 0.9, 60, 0, 120, 10),
			token(1, "Acme", 0.8, 0, 20, 30, 30),
			token(1, "Corp", 0.6, 35, 20, 70, 30),
		}},
		{PageIndex: 2, Tokens: []domain.OCRToken{
			token(2, "Total:", 0.9, 0, 0, 40, 10),
			token(2, "$45.00", 0.7, 50, 0, 90, 10),
		}},
	})
}

func TestTokenIndex_Resolve(t *testing.T) {
	ix := sampleIndex()
	toks := ix.Resolve([]domain.TokenRef{
		{PageIndex: 2, TokenIndex: 1},
		{PageIndex: 2, TokenIndex: 1},
		{PageIndex: 9, TokenIndex: 0},
		{PageIndex: 1, TokenIndex: 99},
	})
	require.Len(t, toks, 1)
	assert.Equal(t, "$45.00", toks[0].Text)
}

func TestTokenIndex_Match(t *testing.T) {
	ix := sampleIndex()

	exact := ix.Match("inv-1001")
	require.Len(t, exact, 1)
	assert.Equal(t, "INV-1001", exact[0].Text)

	containing := ix.Match("45.00")
	require.Len(t, containing, 1)
	assert.Equal(t, 2, containing[0].PageIndex)

	parts := ix.Match("Acme Corp")
	require.Len(t, parts, 2)

	assert.Empty(t, ix.Match("Globex"))
	assert.Empty(t, ix.Match(""))
}

func TestTokenIndex_LinkPrefersRefs(t *testing.T) {
	ix := sampleIndex()
	ev := ix.Link(domain.CandidateField{
		Name: "vendor_name", Value: "INV-1001",
		Evidence: []domain.TokenRef{{PageIndex: 1, TokenIndex: 2}},
	})
	require.Len(t, ev.Tokens, 1)
	assert.Equal(t, "Acme", ev.Tokens[0].Text)

	// unresolvable refs fall back to text matching
	ev = ix.Link(domain.CandidateField{Value: "INV-1001", Evidence: []domain.TokenRef{{PageIndex: 5, TokenIndex: 0}}})
	require.Len(t, ev.Tokens, 1)
	assert.Equal(t, "INV-1001", ev.Tokens[0].Text)
}

func TestTokenIndex_EmptyPage(t *testing.T) {
	ix := scoring.NewTokenIndex([]domain.PageTokens{{PageIndex: 1}})
	ev := ix.Link(domain.CandidateField{Name: "total", Value: "45.00"})
	assert.False(t, ev.Linked())
	assert.Equal(t, 0.0, ev.OCRConfidence())
	assert.Nil(t, ev.Source())
	assert.Equal(t, 0.0, ix.MeanConfidence())
}

func TestTokenIndex_MeanConfidence(t *testing.T) {
	assert.InDelta(t, (0.95+0.9+0.8+0.6+0.9+0.7)/6, sampleIndex().MeanConfidence(), 1e-9)
}

func TestEvidence_SourceUsesFirstPageOnly(t *testing.T) {
	ix := sampleIndex()
	ev := ix.Link(domain.CandidateField{
		Name: "total", Value: "45.00",
		Evidence: []domain.TokenRef{{PageIndex: 1, TokenIndex: 0}, {PageIndex: 2, TokenIndex: 1}, {PageIndex: 1, TokenIndex: 1}},
	})
	require.Len(t, ev.Tokens, 3)

	src := ev.Source()
	require.NotNil(t, src)
	assert.Equal(t, 1, src.Page)
	require.NotNil(t, src.BBox)
	assert.Equal(t, domain.BoundingBox{X1: 0, Y1: 0, X2: 120, Y2: 10}, *src.BBox)
	require.NotNil(t, src.OCRConfidence)
	// page 2's 0.7 token does not count toward page 1's source
	assert.InDelta(t, (0.95+0.9)/2, *src.OCRConfidence, 1e-9)
	assert.InDelta(t, (0.95+0.7+0.9)/3, ev.OCRConfidence(), 1e-9)
}
