package parser_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/domain"
	"docextract/internal/parser"
)

func TestParseClassification(t *testing.T) {
	text := "```json\n" + `{"document_type":"medical_bill","confidence":0.87,"reasoning":"hospital letterhead","key_indicators":["Patient","  ","Balance Due"]}` + "\n```"

	c, err := parser.ParseClassification(text, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "medical_bill", c.Label)
	assert.InDelta(t, 0.87, c.Confidence, 1e-9)
	assert.Equal(t, "hospital letterhead", c.Reasoning)
	assert.Equal(t, []string{"Patient", "Balance Due"}, c.Indicators)
	assert.Equal(t, "gpt-4o", c.Model)
}

func TestParseClassification_DocTypeKey(t *testing.T) {
	c, err := parser.ParseClassification(`Sure: {"doc_type":"invoice"}`, "m")
	require.NoError(t, err)
	assert.Equal(t, "invoice", c.Label)
	assert.Zero(t, c.Confidence)
}

func TestParseClassification_Malformed(t *testing.T) {
	for _, text := range []string{"not json", `{"confidence":0.9}`, `{"document_type":3}`, `{"document_type":"  "}`} {
		_, err := parser.ParseClassification(text, "m")
		assert.ErrorIs(t, err, domain.ErrMalformedResponse, text)
	}
}

func TestParseExtraction(t *testing.T) {
	text := `{"fields":[
		{"name":"invoice_number","value":"INV-1","confidence":0.95,"evidence":["p1:t0","p1:t1","bogus"]},
		{"name":"total","value":45.5,"confidence":0.8},
		{"name":"tax","value":null,"confidence":0.1},
		{"name":"due_date","value":"   "},
		{"name":"  ","value":"orphan"},
		{"name":"paid","value":true,"reasoning":"stamp"}
	]}`

	cands, err := parser.ParseExtraction(text)
	require.NoError(t, err)
	require.Len(t, cands, 3)

	assert.Equal(t, "invoice_number", cands[0].Name)
	assert.Equal(t, "INV-1", cands[0].Value)
	assert.InDelta(t, 0.95, cands[0].RawConfidence, 1e-9)
	assert.Equal(t, []domain.TokenRef{{PageIndex: 1, TokenIndex: 0}, {PageIndex: 1, TokenIndex: 1}}, cands[0].Evidence)

	assert.Equal(t, "45.5", cands[1].Value)
	assert.Empty(t, cands[1].Evidence)

	assert.Equal(t, "true", cands[2].Value)
	assert.Equal(t, "stamp", cands[2].Reasoning)
	assert.Zero(t, cands[2].RawConfidence)
}

func TestParseExtraction_NumberKeepsPrecision(t *testing.T) {
	cands, err := parser.ParseExtraction(`{"fields":[{"name":"total","value":1234567890.10}]}`)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "1234567890.10", cands[0].Value)
}

func TestParseExtraction_EmptyList(t *testing.T) {
	cands, err := parser.ParseExtraction(`{"fields":[]}`)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestParseExtraction_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":        "here are the fields",
		"missing fields":  `{"items":[]}`,
		"fields not list": `{"fields":{"name":"x"}}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parser.ParseExtraction(text)
			assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		})
	}
}

func TestParseExtraction_ListValueBecomesIndexedFields(t *testing.T) {
	text := `{"fields":[{"name":"total","value":"45.00"},{"name":"line_items","value":["10.00","20.00",15,null],"confidence":0.7,"evidence":["p1:t3"]}]}`

	cands, err := parser.ParseExtraction(text)
	require.NoError(t, err)
	require.Len(t, cands, 4)

	assert.Equal(t, "total", cands[0].Name)
	assert.Equal(t, "45.00", cands[0].Value)
	for i, want := range []string{"10.00", "20.00", "15"} {
		c := cands[i+1]
		assert.Equal(t, fmt.Sprintf("line_items[%d]", i), c.Name)
		assert.Equal(t, want, c.Value)
		assert.InDelta(t, 0.7, c.RawConfidence, 1e-9)
		assert.Equal(t, []domain.TokenRef{{PageIndex: 1, TokenIndex: 3}}, c.Evidence)
	}
}

func TestParseExtraction_BadEntriesAreDropped(t *testing.T) {
	text := `{"fields":[
		{"name":"vendor","value":{"name":"Acme","city":"Springfield"}},
		{"value":"no name"},
		"stray",
		{"name":"addresses","value":[{"street":"1 Main"}]},
		{"name":"confidence_text","value":"x","confidence":"high"},
		{"name":"total","value":"45.00"}
	]}`

	cands, err := parser.ParseExtraction(text)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "total", cands[0].Name)
	assert.Equal(t, "45.00", cands[0].Value)
}
