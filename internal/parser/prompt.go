package parser

import (
	"fmt"
	"strings"

	"docextract/internal/domain"
)

// BuildClassificationPrompt returns the document type classification prompt.
func BuildClassificationPrompt() string {
	return `You are a document classification assistant. Look at the provided document and decide which type it is.

Allowed types:
- "invoice": a commercial invoice, tax invoice or sales receipt issued by a vendor
- "medical_bill": a hospital, clinic or physician bill, statement or explanation of charges
- "prescription": a prescription or medication order written by a prescriber
- "unknown": anything else

Return ONLY valid JSON with no markdown formatting and no explanation, using exactly these keys:
{
  "document_type": "invoice" | "medical_bill" | "prescription" | "unknown",
  "confidence": number between 0.0 and 1.0,
  "reasoning": "one or two sentences",
  "key_indicators": ["short phrases from the document that support the decision"]
}`
}

// BuildExtractionPrompt returns the field extraction prompt for schema. ocrText is the
// recognized text, one token per line prefixed with its reference.
func BuildExtractionPrompt(schema domain.FieldSchema, ocrText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a document data extraction assistant. Extract the fields listed below from the provided %s document.\n\n", label(schema.DocType))

	b.WriteString("FIELDS:\n")
	for _, f := range schema.Fields {
		desc := f.Description
		if desc == "" {
			desc = "as named"
		}
		req := ""
		if f.Required {
			req = ", required"
		}
		if f.Repeated {
			fmt.Fprintf(&b, "- %s[N] (%s%s, one entry per item, numbered from 0): %s\n", f.Name, f.Kind, req, desc)
			continue
		}
		fmt.Fprintf(&b, "- %s (%s%s): %s\n", f.Name, f.Kind, req, desc)
	}

	b.WriteString(`
INSTRUCTIONS:
- Copy values exactly as printed. Do not reformat dates or amounts.
- If a field is not present in the document, return it with a null value. Do not guess.
- "confidence" is your confidence in the value, between 0.0 and 1.0.
- "evidence" lists the references of the OCR tokens the value was read from, e.g. ["p1:t12", "p1:t13"].
- Fields that are not in the list above may be returned only if they are clearly labelled on the document.

Return ONLY valid JSON with no markdown formatting and no explanation:
{"fields": [{"name": "...", "value": "..." | null, "confidence": 0.0, "evidence": ["p1:t0"]}]}
`)

	if strings.TrimSpace(ocrText) != "" {
		b.WriteString("\nOCR TOKENS (reference<TAB>text):\n")
		b.WriteString(ocrText)
		b.WriteString("\n")
	}
	return b.String()
}

func label(dt domain.DocType) string {
	switch dt {
	case domain.DocTypeMedicalBill:
		return "medical bill"
	case domain.DocTypeUnknown, "":
		return "business"
	default:
		return string(dt)
	}
}
