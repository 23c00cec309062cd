package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"docextract/internal/domain"
	"docextract/internal/export"
	"docextract/internal/service"
	"docextract/internal/validator"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatCSV  = "csv"
	formatXLSX = "xlsx"
)

func validFormat(f string) bool {
	switch f {
	case formatJSON, formatYAML, formatCSV, formatXLSX:
		return true
	}
	return false
}

type outcome struct {
	Document   string                 `json:"document"`
	DocumentID string                 `json:"document_id,omitempty"`
	Record     *domain.Record         `json:"record,omitempty"`
	Review     *validator.ReviewFlags `json:"review,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func outcomes(results []service.BatchResult) []outcome {
	out := make([]outcome, len(results))
	for i, r := range results {
		out[i].Document = r.Filename
		if r.Err != nil {
			out[i].Error = r.Err.Error()
			continue
		}
		review := r.Result.Review
		out[i].DocumentID = r.Result.DocumentID.String()
		out[i].Record = r.Result.Record
		out[i].Review = &review
	}
	return out
}

// entries keeps successful results only; failures have no record to tabulate.
func entries(results []service.BatchResult) []export.Entry {
	var out []export.Entry
	for _, r := range results {
		if r.Err != nil || r.Result == nil || r.Result.Record == nil {
			continue
		}
		out = append(out, export.Entry{Document: r.Filename, Record: *r.Result.Record})
	}
	return out
}

func writeOutput(w io.Writer, format string, results []service.BatchResult, bom bool) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes(results))

	case formatYAML:
		// round trip through JSON so YAML keys match the JSON field names
		data, err := json.Marshal(outcomes(results))
		if err != nil {
			return err
		}
		var generic []any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()

	case formatCSV:
		cw, err := export.NewWriter(w, bom)
		if err != nil {
			return err
		}
		if err := cw.WriteHeader(); err != nil {
			return err
		}
		if err := cw.WriteEntries(entries(results)); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()

	case formatXLSX:
		return export.WriteXLSX(w, entries(results))
	}
	return fmt.Errorf("unknown format %q", format)
}
