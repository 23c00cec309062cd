// Package export writes extraction records as CSV or XLSX.
package export

import (
	"encoding/csv"
	"io"
	"regexp"
	"strconv"
	"strings"

	"docextract/internal/domain"
)

// BOM is the UTF-8 byte order mark. Excel on Windows needs it to detect the encoding.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Columns is the CSV header row. One row is written per field.
var Columns = []string{
	"document",
	"doc_type",
	"field",
	"value",
	"confidence",
	"validation_passed",
	"validation_notes",
	"page",
	"overall_confidence",
	"cross_validation_score",
}

// Entry is one record to export, keyed by the document it came from.
type Entry struct {
	Document string
	Record   domain.Record
}

// Writer wraps csv.Writer for exporting records.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w, prefixed by BOM when withBOM is set.
func NewWriter(w io.Writer, withBOM bool) (*Writer, error) {
	if withBOM {
		if _, err := w.Write(BOM); err != nil {
			return nil, err
		}
	}
	return &Writer{csv: csv.NewWriter(w)}, nil
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(Columns)
}

// WriteEntries writes one row per field. A record without fields still gets one row so
// the document shows up in the export.
func (w *Writer) WriteEntries(entries []Entry) error {
	for i := range entries {
		for _, row := range entryRows(&entries[i]) {
			if err := w.csv.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func entryRows(e *Entry) [][]string {
	rec := &e.Record
	base := func() []string {
		row := make([]string, len(Columns))
		row[0] = e.Document
		row[1] = string(rec.DocType)
		row[8] = formatScore(rec.OverallConfidence)
		row[9] = formatScore(rec.QA.CrossValidationScore)
		return row
	}
	if len(rec.Fields) == 0 {
		return [][]string{base()}
	}

	rows := make([][]string, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		row := base()
		row[2] = f.Name
		row[3] = f.Value
		row[4] = formatScore(f.Confidence)
		row[5] = strconv.FormatBool(f.ValidationPassed)
		row[6] = f.ValidationNotes
		if f.Source != nil {
			row[7] = strconv.Itoa(f.Source.Page)
		}
		rows = append(rows, row)
	}
	return rows
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces characters other than letters, digits, - and _ with _,
// collapses runs of underscores and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
