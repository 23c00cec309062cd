package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"docextract/internal/domain"
)

// dedupe keeps one candidate per name: the highest raw confidence, the earliest on
// ties. Names are trimmed, empty names dropped and confidences clamped. The returned
// map counts discarded duplicates per kept name.
func dedupe(cands []domain.CandidateField) ([]domain.CandidateField, map[string]int) {
	out := make([]domain.CandidateField, 0, len(cands))
	at := make(map[string]int, len(cands))
	dropped := make(map[string]int)

	for _, c := range cands {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		c.RawConfidence = clampUnit(c.RawConfidence)
		i, seen := at[c.Name]
		if !seen {
			at[c.Name] = len(out)
			out = append(out, c)
			continue
		}
		dropped[c.Name]++
		if c.RawConfidence > out[i].RawConfidence {
			out[i] = c
		}
	}
	return out, dropped
}

// order sorts candidates into schema order, repeated entries by index, then fields
// outside the schema in extractor order. Custom fields sit at the end of the schema,
// so they follow the built-in ones.
func order(cands []domain.CandidateField, schema domain.FieldSchema) []domain.CandidateField {
	type keyed struct {
		c   domain.CandidateField
		pos int
		idx int
		seq int
	}
	ks := make([]keyed, len(cands))
	for i, c := range cands {
		pos := schema.Position(c.Name)
		if pos < 0 {
			pos = len(schema.Fields)
		}
		ks[i] = keyed{c: c, pos: pos, idx: repeatIndex(c.Name), seq: i}
	}
	sort.SliceStable(ks, func(a, b int) bool {
		if ks[a].pos != ks[b].pos {
			return ks[a].pos < ks[b].pos
		}
		if ks[a].pos < len(schema.Fields) && ks[a].idx != ks[b].idx {
			return ks[a].idx < ks[b].idx
		}
		return ks[a].seq < ks[b].seq
	})
	out := make([]domain.CandidateField, len(ks))
	for i, k := range ks {
		out[i] = k.c
	}
	return out
}

// repeatIndex parses N from "name[N]"; -1 for plain names.
func repeatIndex(name string) int {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return -1
	}
	n, err := strconv.Atoi(name[open+1 : len(name)-1])
	if err != nil {
		return math.MaxInt
	}
	return n
}

func duplicateNote(n int) string {
	return fmt.Sprintf("%d duplicate candidate(s) discarded", n)
}

// sanitizeTokens drops tokens with no text or an invalid box, pins them to page and
// clamps confidences.
func sanitizeTokens(tokens []domain.OCRToken, page int) []domain.OCRToken {
	out := make([]domain.OCRToken, 0, len(tokens))
	for _, t := range tokens {
		t.Text = strings.TrimSpace(t.Text)
		if t.Text == "" || !t.BBox.Valid() {
			continue
		}
		t.PageIndex = page
		t.Confidence = clampUnit(t.Confidence)
		out = append(out, t)
	}
	return out
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
