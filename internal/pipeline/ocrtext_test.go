package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/pipeline"
)

func TestFormatOCRText(t *testing.T) {
	pages := []domain.PageTokens{
		{PageIndex: 1, Tokens: []domain.OCRToken{{Text: "Total"}, {Text: "45.00"}}},
		{PageIndex: 2},
		{PageIndex: 3, Tokens: []domain.OCRToken{{Text: "Thanks"}}},
	}

	assert.Equal(t, "p1:t0\tTotal\np1:t1\t45.00\np3:t0\tThanks", pipeline.FormatOCRText(pages, 0))
	// "p1:t0\tTotal\n" is 12 bytes; the next line does not fit
	assert.Equal(t, "p1:t0\tTotal", pipeline.FormatOCRText(pages, 20))
	assert.Equal(t, "", pipeline.FormatOCRText(pages, 5))
	assert.Equal(t, "", pipeline.FormatOCRText(nil, 100))
}

func TestConfigFrom(t *testing.T) {
	c := &config.Config{}
	c.Pipeline.MaxRetries = 5
	c.Pipeline.MaxOCRChars = 100
	c.OCR.Concurrency = 7
	c.OCR.MaxRetries = 3

	pc := pipeline.ConfigFrom(c)
	assert.Equal(t, 5, pc.MaxRetries)
	assert.Equal(t, 100, pc.MaxOCRChars)
	assert.Equal(t, 7, pc.OCRConcurrency)
	assert.Equal(t, 3, pc.OCRRetries)
}
