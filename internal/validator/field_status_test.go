package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/domain"
	"docextract/internal/validator"
)

func TestComputeFieldStatuses(t *testing.T) {
	fields := []domain.Field{
		{Name: "invoice_number", Confidence: 0.9, ValidationPassed: true},
		{Name: "vendor_email", Confidence: 0.9, ValidationPassed: false, ValidationNotes: "not a valid email"},
		{Name: "date", Confidence: 0.5, ValidationPassed: true},
	}

	statuses := validator.ComputeFieldStatuses(fields, 0.5)
	require.Len(t, statuses, 3)

	assert.Equal(t, validator.FieldStatusValid, statuses["invoice_number"].Status)
	assert.Empty(t, statuses["invoice_number"].Messages)

	assert.Equal(t, validator.FieldStatusInvalid, statuses["vendor_email"].Status)
	assert.Equal(t, []string{"not a valid email"}, statuses["vendor_email"].Messages)

	// at the threshold counts as unsure
	assert.Equal(t, validator.FieldStatusUnsure, statuses["date"].Status)
}

func TestComputeFieldStatuses_InvalidBeatsLowConfidence(t *testing.T) {
	statuses := validator.ComputeFieldStatuses([]domain.Field{
		{Name: "total", Confidence: 0.1, ValidationNotes: "not a valid amount"},
	}, 0.5)
	assert.Equal(t, validator.FieldStatusInvalid, statuses["total"].Status)
}

func TestReview(t *testing.T) {
	rec := &domain.Record{
		Fields: []domain.Field{
			{Name: "a", Confidence: 0.9, ValidationPassed: true},
			{Name: "b", Confidence: 0.3, ValidationPassed: true},
		},
		OverallConfidence: 0.8,
		QA:                domain.QA{PassedRules: []string{"required_fields"}},
	}
	before := rec.Clone()

	flags := validator.Review(rec, validator.DefaultThresholds())
	assert.Equal(t, []string{"b"}, flags.LowConfidenceFields)
	assert.False(t, flags.BelowOverall)
	assert.True(t, flags.NeedsReview)
	assert.Equal(t, before, rec)
}

func TestReview_CleanRecord(t *testing.T) {
	rec := &domain.Record{
		Fields:            []domain.Field{{Name: "a", Confidence: 0.9, ValidationPassed: true}},
		OverallConfidence: 0.9,
	}
	flags := validator.Review(rec, validator.DefaultThresholds())
	assert.Empty(t, flags.LowConfidenceFields)
	assert.False(t, flags.NeedsReview)
}

func TestReview_FailedRuleOrLowOverall(t *testing.T) {
	rec := &domain.Record{
		Fields:            []domain.Field{{Name: "a", Confidence: 0.9, ValidationPassed: true}},
		OverallConfidence: 0.9,
		QA:                domain.QA{FailedRules: []string{"totals_match"}},
	}
	assert.True(t, validator.Review(rec, validator.DefaultThresholds()).NeedsReview)

	rec.QA.FailedRules = nil
	rec.OverallConfidence = 0.6
	flags := validator.Review(rec, validator.DefaultThresholds())
	assert.True(t, flags.BelowOverall)
	assert.True(t, flags.NeedsReview)
}
