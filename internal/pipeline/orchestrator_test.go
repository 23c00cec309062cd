package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docextract/internal/doctype"
	"docextract/internal/domain"
	"docextract/internal/metrics"
	"docextract/internal/parser"
	"docextract/internal/pipeline"
	"docextract/internal/port"
	"docextract/internal/schema"
	"docextract/mocks"
)

type fixture struct {
	classifier *mocks.MockDocumentClassifier
	recognizer *mocks.MockRecognizer
	extractor  *mocks.MockFieldExtractor
	registry   *schema.Registry
	metrics    *metrics.Metrics
	cfg        pipeline.Config
}

func newFixture(t *testing.T) *fixture {
	reg, err := schema.New(schema.Options{})
	require.NoError(t, err)
	cfg := pipeline.DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return &fixture{
		classifier: new(mocks.MockDocumentClassifier),
		recognizer: new(mocks.MockRecognizer),
		extractor:  new(mocks.MockFieldExtractor),
		registry:   reg,
		metrics:    metrics.New(prometheus.NewRegistry()),
		cfg:        cfg,
	}
}

func (f *fixture) orchestrator(t *testing.T) *pipeline.Orchestrator {
	logger, _ := test.NewNullLogger()
	o, err := pipeline.New(pipeline.Deps{
		Router:     doctype.NewRouter(f.classifier, 0.5),
		Recognizer: f.recognizer,
		Extractor:  f.extractor,
		Registry:   f.registry,
		Logger:     logger,
		Metrics:    f.metrics,
	}, f.cfg)
	require.NoError(t, err)
	return o
}

func box(x float64) domain.BoundingBox {
	return domain.BoundingBox{X1: x, Y1: 10, X2: x + 40, Y2: 20}
}

func invoiceTokens() []domain.OCRToken {
	return []domain.OCRToken{
		{Text: "INV-1", BBox: box(10), Confidence: 0.9},
		{Text: "Acme", BBox: box(60), Confidence: 0.8},
		{Text: "Corp", BBox: box(110), Confidence: 0.8},
		{Text: "45.00", BBox: box(160), Confidence: 0.95},
		{Text: "  ", BBox: box(210), Confidence: 0.99},
		{Text: "ghost", Confidence: 0.99},
	}
}

func invoiceCandidates() []domain.CandidateField {
	return []domain.CandidateField{
		{Name: "total", Value: "45.00", RawConfidence: 0.7},
		{Name: "line_items[1]", Value: "20.00", RawConfidence: 0.8},
		{Name: "notes_extra", Value: "paid", RawConfidence: 0.6},
		{Name: "line_items[0]", Value: "25.00", RawConfidence: 0.8},
		{Name: "date", Value: "01/15/2024", RawConfidence: 0.9},
		{Name: "po_number", Value: "PO-9", RawConfidence: 0.7},
		{Name: "vendor_name", Value: "Acme Corp", RawConfidence: 0.85},
		{Name: "invoice_number", Value: "INV-1", RawConfidence: 0.95, Evidence: []domain.TokenRef{{PageIndex: 1, TokenIndex: 0}}},
		{Name: "total", Value: "45.00", RawConfidence: 0.9},
		{Name: "  ", Value: "orphan", RawConfidence: 0.9},
	}
}

func document(pages int) domain.Document {
	doc := domain.Document{ID: uuid.MustParse("0b6e7f14-5c1a-5d7e-9a3b-0c8d2e4f6a10"), Filename: "inv.png"}
	for i := 1; i <= pages; i++ {
		doc.Pages = append(doc.Pages, domain.Page{Index: i, Image: []byte{byte(i)}, ContentType: "image/png"})
	}
	return doc
}

func (f *fixture) happyInvoice() {
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&port.Classification{
		Label: "Invoice", Confidence: 0.95, Reasoning: "invoice header", Indicators: []string{"Invoice No"},
	}, nil)
	f.recognizer.On("Recognize", mock.Anything, mock.Anything).Return(invoiceTokens(), nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractOutput{Candidates: invoiceCandidates(), Model: "m"}, nil)
}

func names(rec *domain.Record) []string {
	out := make([]string, len(rec.Fields))
	for i, f := range rec.Fields {
		out[i] = f.Name
	}
	return out
}

func TestProcess_Invoice(t *testing.T) {
	f := newFixture(t)
	f.happyInvoice()

	rec, err := f.orchestrator(t).Process(context.Background(), document(1), []string{"po_number"})
	require.NoError(t, err)

	assert.Equal(t, domain.DocTypeInvoice, rec.DocType)
	assert.Equal(t, []string{
		"invoice_number", "date", "vendor_name", "line_items[0]", "line_items[1]", "total", "po_number", "notes_extra",
	}, names(rec))

	total, ok := rec.Field("total")
	require.True(t, ok)
	assert.Contains(t, total.ValidationNotes, "1 duplicate candidate(s) discarded")
	assert.True(t, total.ValidationPassed)
	// the kept duplicate is the higher-confidence one, linked to the "45.00" token
	require.NotNil(t, total.Source)
	assert.InDelta(t, 0.4*0.9+0.3*0.95+0.2*1+0.1*1, total.Confidence, 1e-9)

	inv, _ := rec.Field("invoice_number")
	require.NotNil(t, inv.Source)
	assert.Equal(t, 1, inv.Source.Page)
	assert.Equal(t, box(10), *inv.Source.BBox)

	extra, _ := rec.Field("notes_extra")
	assert.Contains(t, extra.ValidationNotes, "not in schema")

	assert.Contains(t, rec.QA.PassedRules, "required_fields")
	assert.Contains(t, rec.QA.PassedRules, "totals_match")
	assert.Empty(t, rec.QA.FailedRules)
	assert.InDelta(t, 1.0, rec.QA.CrossValidationScore, 1e-9)
	assert.Contains(t, rec.QA.Notes, "subtotal_tax_match skipped")

	assert.Equal(t, "inv.png", rec.Metadata.Filename)
	assert.Equal(t, 1, rec.Metadata.NumPages)
	assert.Equal(t, "0b6e7f14-5c1a-5d7e-9a3b-0c8d2e4f6a10", rec.Metadata.DocumentID)
	assert.InDelta(t, 0.95, rec.Metadata.RouterConfidence, 1e-9)
	assert.Equal(t, "invoice header", rec.Metadata.TypeReasoning)
	assert.Equal(t, []string{"po_number"}, rec.Metadata.CustomFields)
	assert.InDelta(t, (0.9+0.8+0.8+0.95)/4, rec.Metadata.OCRConfidence, 1e-9)
	require.Len(t, rec.Metadata.Stages, 6)
	for _, s := range rec.Metadata.Stages {
		assert.Equal(t, domain.OutcomeSuccess, s.Outcome, s.State)
	}
	assert.Greater(t, rec.OverallConfidence, 0.0)
	assert.LessOrEqual(t, rec.OverallConfidence, 1.0)

	f.extractor.AssertCalled(t, "Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		_, custom := in.Schema.Lookup("po_number")
		return in.DocType == domain.DocTypeInvoice && custom &&
			in.OCRText == "p1:t0\tINV-1\np1:t1\tAcme\np1:t2\tCorp\np1:t3\t45.00"
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DocumentsProcessed.WithLabelValues("invoice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StageOutcomes.WithLabelValues("extracted", "success")))
}

func TestProcess_RoutingRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()
	f.happyInvoice()

	rec, err := f.orchestrator(t).Process(context.Background(), document(1), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.DocTypeInvoice, rec.DocType)
	assert.Equal(t, 2, rec.Metadata.Stages[0].Attempts)
	f.classifier.AssertNumberOfCalls(t, "Classify", 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CollaboratorRetries.WithLabelValues("classifier")))
}

func TestProcess_RoutingExhaustedUsesGeneric(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	f.recognizer.On("Recognize", mock.Anything, mock.Anything).Return(invoiceTokens(), nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractOutput{
		Candidates: []domain.CandidateField{{Name: "total_amount", Value: "45.00", RawConfidence: 0.8}},
	}, nil)

	rec, err := f.orchestrator(t).Process(context.Background(), document(1), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.DocTypeUnknown, rec.DocType)
	routing := rec.Metadata.Stages[0]
	assert.Equal(t, domain.StateRouting, routing.State)
	assert.Equal(t, domain.OutcomeDegraded, routing.Outcome)
	assert.Equal(t, 3, routing.Attempts)
	assert.Contains(t, routing.Note, "routing failed after 3 attempt(s)")
	f.classifier.AssertNumberOfCalls(t, "Classify", 3)

	f.extractor.AssertCalled(t, "Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return in.Schema.DocType == domain.DocTypeUnknown
	}))
	assert.Equal(t, []string{"total_amount"}, names(rec))
}

func TestProcess_UnrecognizedLabelNotRetried(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&port.Classification{Label: "spaceship manifest", Confidence: 0.99}, nil)
	f.recognizer.On("Recognize", mock.Anything, mock.Anything).Return([]domain.OCRToken{}, nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractOutput{}, nil)

	rec, err := f.orchestrator(t).Process(context.Background(), document(1), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.DocTypeUnknown, rec.DocType)
	assert.Equal(t, domain.OutcomeDegraded, rec.Metadata.Stages[0].Outcome)
	f.classifier.AssertNumberOfCalls(t, "Classify", 1)
}

func TestProcess_BelowFloorRoutesUnknown(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&port.Classification{Label: "invoice", Confidence: 0.2}, nil)
	f.recognizer.On("Recognize", mock.Anything, mock.Anything).Return([]domain.OCRToken{}, nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractOutput{}, nil)

	rec, err := f.orchestrator(t).Process(context.Background(), document(1), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.DocTypeUnknown, rec.DocType)
	assert.InDelta(t, 0.2, rec.Metadata.RouterConfidence, 1e-9)
	assert.Equal(t, domain.OutcomeSuccess, rec.Metadata.Stages[0].Outcome)
}

func TestProcess_ExtractionExhausted(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&port.Classification{Label: "invoice", Confidence: 0.9}, nil)
	f.recognizer.On("Recognize", mock.Anything, mock.Anything).Return(invoiceTokens(), nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("llm down"))

	rec, err := f.orchestrator(t).Process(context.Background(), document(1), nil)
	require.NoError(t, err)

	assert.Empty(t, rec.Fields)
	assert.Contains(t, rec.QA.FailedRules, "required_fields")
	assert.Contains(t, rec.QA.Notes, "extraction failed after 3 attempts")
	assert.Contains(t, rec.QA.Notes, "llm down")
	assert.Contains(t, rec.Metadata.Error, "extraction failed after 3 attempts")
	assert.Zero(t, rec.OverallConfidence)
	f.extractor.AssertNumberOfCalls(t, "Extract", 3)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"fields":[]`)
}

func TestProcess_OCRPageFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&port.Classification{Label: "invoice", Confidence: 0.9}, nil)
	f.recognizer.On("Recognize", mock.Anything, mock.MatchedBy(func(p domain.Page) bool { return p.Index == 1 })).Return(invoiceTokens(), nil)
	f.recognizer.On("Recognize", mock.Anything, mock.MatchedBy(func(p domain.Page) bool { return p.Index == 2 })).Return(nil, errors.New("tesseract crashed"))
	f.recognizer.On("Recognize", mock.Anything, mock.MatchedBy(func(p domain.Page) bool { return p.Index == 3 })).Return([]domain.OCRToken{
		{Text: "Page3", BBox: box(10), Confidence: 0.5, PageIndex: 99},
	}, nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractOutput{}, nil)

	rec, err := f.orchestrator(t).Process(context.Background(), document(3), nil)
	require.NoError(t, err)

	ocr := rec.Metadata.Stages[2]
	assert.Equal(t, domain.StateOCRComplete, ocr.State)
	assert.Equal(t, domain.OutcomeDegraded, ocr.Outcome)
	assert.Contains(t, ocr.Note, "ocr failed on page 2")
	assert.Equal(t, 3, rec.Metadata.NumPages)

	// page 2 retried once, tokens kept in page order and pinned to their page
	f.extractor.AssertCalled(t, "Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return in.OCRText == "p1:t0\tINV-1\np1:t1\tAcme\np1:t2\tCorp\np1:t3\t45.00\np3:t0\tPage3"
	}))
	calls := 0
	for _, c := range f.recognizer.Calls {
		if c.Arguments.Get(1).(domain.Page).Index == 2 {
			calls++
		}
	}
	assert.Equal(t, 2, calls)
}

func TestProcess_MissingKnownSchemaFails(t *testing.T) {
	f := newFixture(t)
	reg, err := schema.NewFromSchemas(map[domain.DocType]domain.FieldSchema{
		domain.DocTypeInvoice: schema.InvoiceSchema(),
	}, nil, nil)
	require.NoError(t, err)
	f.registry = reg
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&port.Classification{Label: "prescription", Confidence: 0.9}, nil)

	rec, err := f.orchestrator(t).Process(context.Background(), document(1), nil)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
	f.recognizer.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything)
}

func TestProcess_UnknownWithoutRegistryGeneric(t *testing.T) {
	f := newFixture(t)
	reg, err := schema.New(schema.Options{DisableGeneric: true})
	require.NoError(t, err)
	f.registry = reg
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&port.Classification{Label: "other", Confidence: 0.9}, nil)
	f.recognizer.On("Recognize", mock.Anything, mock.Anything).Return([]domain.OCRToken{}, nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractOutput{}, nil)

	rec, err := f.orchestrator(t).Process(context.Background(), document(1), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DocTypeUnknown, rec.DocType)
	f.extractor.AssertCalled(t, "Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return assert.ObjectsAreEqual(schema.DefaultGeneric().Names(), in.Schema.Names())
	}))
}

func TestProcess_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.cfg.InitialBackoff = time.Second
	f.cfg.MaxBackoff = time.Second
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(nil, context.Canceled)
	f.recognizer.On("Recognize", mock.Anything, mock.Anything).Return(nil, context.Canceled)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	rec, err := f.orchestrator(t).Process(ctx, document(2), nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Equal(t, domain.DocTypeUnknown, rec.DocType)
	assert.Empty(t, rec.Fields)
	f.classifier.AssertNumberOfCalls(t, "Classify", 1)
	f.extractor.AssertNumberOfCalls(t, "Extract", 1)
}

func TestProcess_RateLimitDelayIsCapped(t *testing.T) {
	f := newFixture(t)
	f.cfg.MaxBackoff = 10 * time.Millisecond
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(&port.Classification{Label: "invoice", Confidence: 0.9}, nil)
	f.recognizer.On("Recognize", mock.Anything, mock.Anything).Return(invoiceTokens(), nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).
		Return(nil, parser.NewRateLimitError("openai", errors.New("429"), 60)).Once()
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractOutput{Candidates: invoiceCandidates()}, nil)

	start := time.Now()
	rec, err := f.orchestrator(t).Process(context.Background(), document(1), nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.NotEmpty(t, rec.Fields)
	assert.Equal(t, 2, rec.Metadata.Stages[3].Attempts)
}

func TestProcess_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.happyInvoice()
	o := f.orchestrator(t)

	a, err := o.Process(context.Background(), document(2), []string{"po_number"})
	require.NoError(t, err)
	b, err := o.Process(context.Background(), document(2), []string{"po_number"})
	require.NoError(t, err)

	a.ProcessingTime, b.ProcessingTime = 0, 0
	assert.Equal(t, a, b)
}

func TestProcess_ConcurrentDocuments(t *testing.T) {
	f := newFixture(t)
	f.happyInvoice()
	o := f.orchestrator(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := o.Process(context.Background(), document(2), nil)
			assert.NoError(t, err)
			assert.Equal(t, domain.DocTypeInvoice, rec.DocType)
			assert.Len(t, rec.Fields, 8)
		}()
	}
	wg.Wait()
}

func TestNew_MissingDeps(t *testing.T) {
	f := newFixture(t)
	router := doctype.NewRouter(f.classifier, 0)

	cases := map[string]pipeline.Deps{
		"router":     {Recognizer: f.recognizer, Extractor: f.extractor, Registry: f.registry},
		"recognizer": {Router: router, Extractor: f.extractor, Registry: f.registry},
		"extractor":  {Router: router, Recognizer: f.recognizer, Registry: f.registry},
		"registry":   {Router: router, Recognizer: f.recognizer, Extractor: f.extractor},
	}
	for name, deps := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := pipeline.New(deps, pipeline.DefaultConfig())
			assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
		})
	}
}
