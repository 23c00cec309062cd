package validator

import (
	"docextract/internal/domain"
)

// FieldValidationStatus is the review state of a single field.
type FieldValidationStatus string

const (
	FieldStatusValid   FieldValidationStatus = "valid"
	FieldStatusInvalid FieldValidationStatus = "invalid"
	FieldStatusUnsure  FieldValidationStatus = "unsure"
)

// FieldStatus represents the computed review state for a single field.
type FieldStatus struct {
	Status   FieldValidationStatus `json:"status"`
	Messages []string              `json:"messages"`
}

// Thresholds drive UI-level flagging only; they never change a Record.
type Thresholds struct {
	MinFieldConfidence   float64
	MinOverallConfidence float64
}

// DefaultThresholds returns the stock review thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{MinFieldConfidence: 0.5, MinOverallConfidence: 0.7}
}

// ReviewFlags tells a caller which parts of a record deserve a human look.
type ReviewFlags struct {
	LowConfidenceFields []string                `json:"low_confidence_fields"`
	BelowOverall        bool                    `json:"below_overall_threshold"`
	NeedsReview         bool                    `json:"needs_review"`
	FieldStatuses       map[string]*FieldStatus `json:"field_statuses"`
}

// ComputeFieldStatuses derives per-field statuses from format results and confidence.
// A failed format check makes a field invalid; a confidence at or below the threshold
// makes a valid field unsure.
func ComputeFieldStatuses(fields []domain.Field, minConfidence float64) map[string]*FieldStatus {
	statuses := make(map[string]*FieldStatus, len(fields))
	for _, f := range fields {
		fs := &FieldStatus{Status: FieldStatusValid, Messages: []string{}}
		switch {
		case !f.ValidationPassed:
			fs.Status = FieldStatusInvalid
			fs.Messages = append(fs.Messages, f.ValidationNotes)
		case f.Confidence <= minConfidence:
			fs.Status = FieldStatusUnsure
		}
		statuses[f.Name] = fs
	}
	return statuses
}

// Review flags a record against th without modifying it.
func Review(rec *domain.Record, th Thresholds) ReviewFlags {
	flags := ReviewFlags{
		LowConfidenceFields: []string{},
		FieldStatuses:       ComputeFieldStatuses(rec.Fields, th.MinFieldConfidence),
	}
	for _, f := range rec.Fields {
		if f.Confidence < th.MinFieldConfidence {
			flags.LowConfidenceFields = append(flags.LowConfidenceFields, f.Name)
		}
	}
	flags.BelowOverall = rec.OverallConfidence < th.MinOverallConfidence
	flags.NeedsReview = flags.BelowOverall || len(flags.LowConfidenceFields) > 0 || len(rec.QA.FailedRules) > 0
	return flags
}
