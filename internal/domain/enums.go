package domain

import "strings"

// FileType represents the accepted input file types.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeJPG  FileType = "jpg"
	FileTypePNG  FileType = "png"
	FileTypeTIFF FileType = "tiff"
	FileTypeWEBP FileType = "webp"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF:  "application/pdf",
	FileTypeJPG:  "image/jpeg",
	FileTypePNG:  "image/png",
	FileTypeTIFF: "image/tiff",
	FileTypeWEBP: "image/webp",
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
	"tif":  FileTypeTIFF,
	"tiff": FileTypeTIFF,
	"webp": FileTypeWEBP,
}

// DocType is the closed set of document types the pipeline understands.
type DocType string

const (
	DocTypeInvoice      DocType = "invoice"
	DocTypeMedicalBill  DocType = "medical_bill"
	DocTypePrescription DocType = "prescription"
	DocTypeUnknown      DocType = "unknown"
)

// KnownDocTypes lists the doc types that have a dedicated schema.
var KnownDocTypes = []DocType{DocTypeInvoice, DocTypeMedicalBill, DocTypePrescription}

// IsValid reports whether d is one of the enumerated doc types.
func (d DocType) IsValid() bool {
	switch d {
	case DocTypeInvoice, DocTypeMedicalBill, DocTypePrescription, DocTypeUnknown:
		return true
	}
	return false
}

// ParseDocType accepts only canonical doc type values.
func ParseDocType(s string) (DocType, bool) {
	d := DocType(strings.TrimSpace(s))
	return d, d.IsValid()
}

// ValueKind is the expected kind of a field value, used for format validation.
type ValueKind string

const (
	KindText   ValueKind = "text"
	KindEmail  ValueKind = "email"
	KindPhone  ValueKind = "phone"
	KindDate   ValueKind = "date"
	KindAmount ValueKind = "amount"
)

// IsValid reports whether k is a known value kind.
func (k ValueKind) IsValid() bool {
	switch k {
	case KindText, KindEmail, KindPhone, KindDate, KindAmount:
		return true
	}
	return false
}

// PipelineState is a state in the per-document processing state machine.
type PipelineState string

const (
	StateRouting      PipelineState = "routing"
	StateSchemaLoaded PipelineState = "schema_loaded"
	StateOCRComplete  PipelineState = "ocr_complete"
	StateExtracted    PipelineState = "extracted"
	StateScored       PipelineState = "scored"
	StateValidated    PipelineState = "validated"
	StateDone         PipelineState = "done"
	StateFailed       PipelineState = "failed"
)

// StageOutcome tags the result of a single pipeline stage.
type StageOutcome string

const (
	OutcomeSuccess   StageOutcome = "success"
	OutcomeDegraded  StageOutcome = "degraded"
	OutcomeExhausted StageOutcome = "exhausted"
)
