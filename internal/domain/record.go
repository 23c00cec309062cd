package domain

import "encoding/json"

// FieldSource is the OCR evidence location of a field.
type FieldSource struct {
	Page          int          `json:"page"`
	BBox          *BoundingBox `json:"bbox"`
	OCRConfidence *float64     `json:"ocr_confidence"`
}

// Field is a scored and validated field. Fields are values; stages produce new ones
// instead of modifying their input.
type Field struct {
	Name             string       `json:"name"`
	Value            string       `json:"value"`
	Confidence       float64      `json:"confidence"`
	Source           *FieldSource `json:"source"`
	ValidationPassed bool         `json:"validation_passed"`
	ValidationNotes  string       `json:"validation_notes"`
}

// QA is the quality assurance block of a Record.
type QA struct {
	PassedRules          []string      `json:"passed_rules"`
	FailedRules          []string      `json:"failed_rules"`
	Notes                string        `json:"notes"`
	CrossValidationScore float64       `json:"cross_validation_score"`
	Skipped              []SkippedRule `json:"-"`
}

// MarshalJSON keeps rule lists as arrays even when empty.
func (q QA) MarshalJSON() ([]byte, error) {
	type alias QA
	a := alias(q)
	if a.PassedRules == nil {
		a.PassedRules = []string{}
	}
	if a.FailedRules == nil {
		a.FailedRules = []string{}
	}
	return json.Marshal(a)
}

// StageReport summarizes how a pipeline stage ended.
type StageReport struct {
	State    PipelineState `json:"stage"`
	Outcome  StageOutcome  `json:"outcome"`
	Attempts int           `json:"attempts,omitempty"`
	Note     string        `json:"note,omitempty"`
}

// RecordMetadata carries document-level details that are not fields.
type RecordMetadata struct {
	Filename         string        `json:"filename"`
	NumPages         int           `json:"num_pages"`
	DocumentID       string        `json:"document_id,omitempty"`
	RouterConfidence float64       `json:"router_confidence"`
	TypeReasoning    string        `json:"type_reasoning,omitempty"`
	TypeIndicators   []string      `json:"type_indicators,omitempty"`
	OCRConfidence    float64       `json:"ocr_confidence"`
	CustomFields     []string      `json:"custom_fields,omitempty"`
	Stages           []StageReport `json:"stages,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// Record is the document-level extraction result. It is assembled once per run and
// never modified afterwards.
type Record struct {
	DocType           DocType        `json:"doc_type"`
	Fields            []Field        `json:"fields"`
	OverallConfidence float64        `json:"overall_confidence"`
	QA                QA             `json:"qa"`
	ProcessingTime    float64        `json:"processing_time"`
	Metadata          RecordMetadata `json:"metadata"`
}

// MarshalJSON keeps the field list an array even when empty.
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	a := alias(r)
	if a.Fields == nil {
		a.Fields = []Field{}
	}
	return json.Marshal(a)
}

// Field returns the first field named name.
func (r *Record) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	out := *r
	out.Fields = make([]Field, len(r.Fields))
	for i, f := range r.Fields {
		if f.Source != nil {
			src := *f.Source
			if src.BBox != nil {
				b := *src.BBox
				src.BBox = &b
			}
			if src.OCRConfidence != nil {
				c := *src.OCRConfidence
				src.OCRConfidence = &c
			}
			f.Source = &src
		}
		out.Fields[i] = f
	}
	out.QA.PassedRules = append([]string(nil), r.QA.PassedRules...)
	out.QA.FailedRules = append([]string(nil), r.QA.FailedRules...)
	out.QA.Skipped = append([]SkippedRule(nil), r.QA.Skipped...)
	out.Metadata.TypeIndicators = append([]string(nil), r.Metadata.TypeIndicators...)
	out.Metadata.CustomFields = append([]string(nil), r.Metadata.CustomFields...)
	out.Metadata.Stages = append([]StageReport(nil), r.Metadata.Stages...)
	return &out
}
