package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	fieldsSheet = "Fields"
	qaSheet     = "QA"
)

var qaColumns = []string{
	"document",
	"doc_type",
	"overall_confidence",
	"cross_validation_score",
	"passed_rules",
	"failed_rules",
	"notes",
	"processing_time",
}

// WriteXLSX writes a workbook with a Fields sheet (one row per field, same columns as
// the CSV) and a QA sheet (one row per record).
func WriteXLSX(w io.Writer, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes Fields
	if err := f.SetSheetName(f.GetSheetName(0), fieldsSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(qaSheet); err != nil {
		return fmt.Errorf("creating %s sheet: %w", qaSheet, err)
	}

	writeRow(f, fieldsSheet, 1, toAny(Columns))
	row := 2
	for i := range entries {
		for _, r := range entryRows(&entries[i]) {
			writeRow(f, fieldsSheet, row, toAny(r))
			row++
		}
	}

	writeRow(f, qaSheet, 1, toAny(qaColumns))
	for i, e := range entries {
		qa := e.Record.QA
		writeRow(f, qaSheet, i+2, []any{
			e.Document,
			string(e.Record.DocType),
			e.Record.OverallConfidence,
			qa.CrossValidationScore,
			strings.Join(qa.PassedRules, ", "),
			strings.Join(qa.FailedRules, ", "),
			qa.Notes,
			e.Record.ProcessingTime,
		})
	}

	_ = f.SetColWidth(fieldsSheet, "A", "A", 28)
	_ = f.SetColWidth(fieldsSheet, "C", "D", 24)
	_ = f.SetColWidth(fieldsSheet, "G", "G", 40)
	_ = f.SetColWidth(qaSheet, "A", "A", 28)
	_ = f.SetColWidth(qaSheet, "G", "G", 60)

	if idx, err := f.GetSheetIndex(fieldsSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
