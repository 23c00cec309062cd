package parser

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"docextract/internal/domain"
	"docextract/internal/port"
)

const extractionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["fields"],
  "properties": {
    "fields": {"type": "array"}
  }
}`

// fieldSchema applies to each entry of "fields" on its own so one bad entry is dropped
// without failing the rest.
const fieldSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string"},
    "value": {
      "anyOf": [
        {"type": ["string", "number", "boolean", "null"]},
        {"type": "array", "items": {"type": ["string", "number", "boolean", "null"]}}
      ]
    },
    "confidence": {"type": ["number", "null"]},
    "evidence": {"type": ["array", "null"], "items": {"type": "string"}},
    "reasoning": {"type": ["string", "null"]}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	compiledField  *jsonschema.Schema
	schemaErr      error
)

func extractionValidators() (*jsonschema.Schema, *jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("extraction.json", strings.NewReader(extractionSchema)); err != nil {
			schemaErr = err
			return
		}
		if err := compiler.AddResource("field.json", strings.NewReader(fieldSchema)); err != nil {
			schemaErr = err
			return
		}
		if compiledSchema, schemaErr = compiler.Compile("extraction.json"); schemaErr != nil {
			return
		}
		compiledField, schemaErr = compiler.Compile("field.json")
	})
	return compiledSchema, compiledField, schemaErr
}

// ParseClassification decodes a classification answer.
func ParseClassification(text, model string) (*port.Classification, error) {
	raw := cleanJSON(text)
	if !gjson.Valid(raw) {
		return nil, Malformed("classification is not valid JSON (raw: %s)", truncate(text, 200))
	}
	doc := gjson.Parse(raw)
	label := doc.Get("document_type")
	if !label.Exists() {
		label = doc.Get("doc_type")
	}
	if label.Type != gjson.String || strings.TrimSpace(label.String()) == "" {
		return nil, Malformed("classification has no document_type")
	}

	out := &port.Classification{
		Label:      label.String(),
		Confidence: doc.Get("confidence").Float(),
		Reasoning:  doc.Get("reasoning").String(),
		Model:      model,
	}
	doc.Get("key_indicators").ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			out.Indicators = append(out.Indicators, s)
		}
		return true
	})
	return out, nil
}

type extractionField struct {
	Name       string   `json:"name"`
	Value      any      `json:"value"`
	Confidence *float64 `json:"confidence"`
	Evidence   []string `json:"evidence"`
	Reasoning  *string  `json:"reasoning"`
}

// ParseExtraction validates and decodes an extraction answer. Fields with a null or
// empty value are dropped as not found, as are entries that do not match the field
// shape. A list value becomes indexed candidates "name[0]", "name[1]", ... in order.
// Unparseable evidence references are ignored.
func ParseExtraction(text string) ([]domain.CandidateField, error) {
	raw := cleanJSON(text)

	generic, err := decodeNumbers([]byte(raw))
	if err != nil {
		return nil, Malformed("extraction is not valid JSON: %v (raw: %s)", err, truncate(text, 200))
	}
	sch, fieldSch, err := extractionValidators()
	if err != nil {
		return nil, Malformed("compiling extraction schema: %v", err)
	}
	if err := sch.Validate(generic); err != nil {
		return nil, Malformed("extraction does not match schema: %v", err)
	}

	var payload struct {
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, Malformed("decoding extraction: %v", err)
	}

	out := make([]domain.CandidateField, 0, len(payload.Fields))
	for _, item := range payload.Fields {
		f, ok := decodeField(item, fieldSch)
		if !ok {
			continue
		}
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		base := domain.CandidateField{Name: name}
		if f.Confidence != nil {
			base.RawConfidence = *f.Confidence
		}
		if f.Reasoning != nil {
			base.Reasoning = *f.Reasoning
		}
		for _, e := range f.Evidence {
			if ref, err := domain.ParseTokenRef(strings.TrimSpace(e)); err == nil {
				base.Evidence = append(base.Evidence, ref)
			}
		}

		list, isList := f.Value.([]any)
		if !isList {
			if base.Value = valueString(f.Value); base.Value != "" {
				out = append(out, base)
			}
			continue
		}
		for i, v := range list {
			value := valueString(v)
			if value == "" {
				continue
			}
			c := base
			c.Name = name + "[" + strconv.Itoa(i) + "]"
			c.Value = value
			c.Evidence = append([]domain.TokenRef(nil), base.Evidence...)
			out = append(out, c)
		}
	}
	return out, nil
}

func decodeField(item json.RawMessage, sch *jsonschema.Schema) (extractionField, bool) {
	var f extractionField
	generic, err := decodeNumbers(item)
	if err != nil || sch.Validate(generic) != nil {
		return f, false
	}
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return f, false
	}
	return f, true
}

func decodeNumbers(data []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// cleanJSON strips markdown code fences and any prose around the outermost object.
func cleanJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
