package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"docextract/internal/doctype"
	"docextract/internal/domain"
	"docextract/internal/format"
	"docextract/internal/metrics"
	"docextract/internal/port"
	"docextract/internal/schema"
	"docextract/internal/scoring"
	"docextract/internal/validator"
	"docextract/internal/validator/rules"
)

// DocumentRouter decides the doc type of a document.
type DocumentRouter interface {
	Route(ctx context.Context, doc domain.Document) (doctype.Routing, error)
}

// SchemaSource resolves schemas and rules per doc type.
type SchemaSource interface {
	SchemaFor(docType domain.DocType) (domain.FieldSchema, error)
	RulesFor(docType domain.DocType) []validator.Rule
}

// Deps are the collaborators of an Orchestrator. Scorer, Engine, Logger and Metrics
// are optional.
type Deps struct {
	Router     DocumentRouter
	Recognizer port.Recognizer
	Extractor  port.FieldExtractor
	Registry   SchemaSource
	Scorer     *scoring.Scorer
	Engine     *validator.Engine
	Logger     logrus.FieldLogger
	Metrics    *metrics.Metrics
}

// Orchestrator drives one document through routing, OCR, extraction, scoring and
// validation. It holds no per-document state and is safe for concurrent use.
type Orchestrator struct {
	router     DocumentRouter
	recognizer port.Recognizer
	extractor  port.FieldExtractor
	registry   SchemaSource
	scorer     *scoring.Scorer
	engine     *validator.Engine
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
	cfg        Config

	generic      domain.FieldSchema
	genericRules []validator.Rule
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Router == nil:
		return nil, fmt.Errorf("%w: document router", domain.ErrConfigurationMissing)
	case deps.Recognizer == nil:
		return nil, fmt.Errorf("%w: ocr recognizer", domain.ErrConfigurationMissing)
	case deps.Extractor == nil:
		return nil, fmt.Errorf("%w: field extractor", domain.ErrConfigurationMissing)
	case deps.Registry == nil:
		return nil, fmt.Errorf("%w: schema registry", domain.ErrConfigurationMissing)
	}

	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	scorer := deps.Scorer
	if scorer == nil {
		s, err := scoring.NewScorer(scoring.DefaultWeights(), format.MustDefault())
		if err != nil {
			return nil, err
		}
		scorer = s
	}
	engine := deps.Engine
	if engine == nil {
		engine = validator.NewEngine(format.MustDefault(), log)
	}

	generic := schema.DefaultGeneric()
	return &Orchestrator{
		router:       deps.Router,
		recognizer:   deps.Recognizer,
		extractor:    deps.Extractor,
		registry:     deps.Registry,
		scorer:       scorer,
		engine:       engine,
		log:          log,
		metrics:      deps.Metrics,
		cfg:          cfg.normalized(),
		generic:      generic,
		genericRules: rules.ForDocType(domain.DocTypeUnknown, generic, rules.DefaultTolerances()).All(),
	}, nil
}

// run carries the per-document state through the stages.
type run struct {
	doc     domain.Document
	log     logrus.FieldLogger
	stages  []domain.StageReport
	routing doctype.Routing
	schema  domain.FieldSchema
	rules   []validator.Rule
	pages   []domain.PageTokens
	cands   []domain.CandidateField
	extErr  string
}

func (r *run) report(o *Orchestrator, state domain.PipelineState, outcome domain.StageOutcome, attempts int, note string) {
	r.stages = append(r.stages, domain.StageReport{State: state, Outcome: outcome, Attempts: attempts, Note: note})
	o.metrics.ObserveStage(string(state), string(outcome))
	entry := r.log.WithFields(logrus.Fields{"stage": state, "outcome": outcome, "attempt": attempts})
	if outcome == domain.OutcomeSuccess {
		entry.Debug("pipeline.Orchestrator: stage complete")
		return
	}
	entry.WithField("note", note).Warn("pipeline.Orchestrator: stage degraded")
}

// Process runs doc through the pipeline. customFields are extracted as additional
// free-form text fields. The only error is a missing schema for a known doc type;
// every other failure degrades into the returned Record.
func (o *Orchestrator) Process(ctx context.Context, doc domain.Document, customFields []string) (*domain.Record, error) {
	start := time.Now()
	r := &run{doc: doc, log: o.log.WithField("document_id", doc.ID.String())}
	r.log.WithField("pages", len(doc.Pages)).Info("pipeline.Orchestrator: processing document")

	o.route(ctx, r)
	if err := o.loadSchema(r, customFields); err != nil {
		o.metrics.ObserveStage(string(domain.StateFailed), string(domain.OutcomeExhausted))
		r.log.WithError(err).Error("pipeline.Orchestrator: failed")
		return nil, err
	}
	o.recognize(ctx, r)
	o.extract(ctx, r)
	fields := o.score(r)
	fields, qa := o.validate(r, fields)

	rec := &domain.Record{
		DocType:           r.doc.DocType,
		Fields:            fields,
		OverallConfidence: o.scorer.OverallConfidence(fields, r.schema),
		QA:                qa,
		Metadata:          o.metadata(r),
	}
	rec.ProcessingTime = time.Since(start).Seconds()

	o.metrics.ObserveDocument(string(rec.DocType), rec.ProcessingTime)
	for _, f := range rec.Fields {
		o.metrics.ObserveFieldConfidence(f.Confidence)
	}
	r.log.WithFields(logrus.Fields{
		"stage":              domain.StateDone,
		"doc_type":           rec.DocType,
		"fields":             len(rec.Fields),
		"overall_confidence": rec.OverallConfidence,
	}).Info("pipeline.Orchestrator: document processed")
	return rec, nil
}

func (o *Orchestrator) route(ctx context.Context, r *run) {
	res := withRetry(ctx, o, retryPolicy{
		collaborator: "classifier",
		retries:      o.cfg.MaxRetries,
		timeout:      o.cfg.RouterTimeout,
		initial:      o.cfg.InitialBackoff,
		max:          o.cfg.MaxBackoff,
	}, r.log.WithField("stage", domain.StateRouting), func(ctx context.Context) (doctype.Routing, error) {
		return o.router.Route(ctx, r.doc)
	})

	if res.Outcome == domain.OutcomeSuccess {
		r.routing = res.Value
		r.doc = r.doc.WithRouting(res.Value.DocType, res.Value.Confidence)
		r.report(o, domain.StateRouting, domain.OutcomeSuccess, res.Attempts, "")
		return
	}

	note := fmt.Sprintf("routing failed after %d attempt(s): %v", res.Attempts, res.Err)
	if errors.Is(res.Err, domain.ErrUnrecognizedDocType) {
		note = fmt.Sprintf("routing: %v", res.Err)
	}
	r.routing = doctype.Routing{DocType: domain.DocTypeUnknown}
	r.doc = r.doc.WithRouting(domain.DocTypeUnknown, 0)
	r.report(o, domain.StateRouting, domain.OutcomeDegraded, res.Attempts, note)
}

func (o *Orchestrator) loadSchema(r *run, customFields []string) error {
	dt := r.doc.DocType
	s, err := o.registry.SchemaFor(dt)
	switch {
	case err == nil:
		r.rules = o.registry.RulesFor(dt)
	case dt == domain.DocTypeUnknown:
		s = o.generic
		r.rules = o.genericRules
	default:
		return fmt.Errorf("%w: no schema for %s: %v", domain.ErrConfigurationMissing, dt, err)
	}
	r.schema = s.WithCustomFields(customFields)
	r.report(o, domain.StateSchemaLoaded, domain.OutcomeSuccess, 0, "")
	return nil
}

func (o *Orchestrator) recognize(ctx context.Context, r *run) {
	pages := make([]domain.PageTokens, len(r.doc.Pages))
	notes := make([]string, len(r.doc.Pages))
	log := r.log.WithField("stage", domain.StateOCRComplete)

	var g errgroup.Group
	g.SetLimit(o.cfg.OCRConcurrency)
	for i, page := range r.doc.Pages {
		g.Go(func() error {
			res := withRetry(ctx, o, retryPolicy{
				collaborator: "ocr",
				retries:      o.cfg.OCRRetries,
				timeout:      o.cfg.OCRTimeout,
				initial:      o.cfg.InitialBackoff,
				max:          o.cfg.MaxBackoff,
			}, log.WithField("page", page.Index), func(ctx context.Context) ([]domain.OCRToken, error) {
				return o.recognizer.Recognize(ctx, page)
			})
			pages[i] = domain.PageTokens{PageIndex: page.Index}
			if res.Outcome != domain.OutcomeSuccess {
				notes[i] = fmt.Sprintf("ocr failed on page %d: %v", page.Index, res.Err)
				return nil
			}
			pages[i].Tokens = sanitizeTokens(res.Value, page.Index)
			return nil
		})
	}
	_ = g.Wait()
	r.pages = pages

	var failed []string
	for _, n := range notes {
		if n != "" {
			failed = append(failed, n)
		}
	}
	if len(failed) > 0 {
		r.report(o, domain.StateOCRComplete, domain.OutcomeDegraded, 0, strings.Join(failed, "; "))
		return
	}
	r.report(o, domain.StateOCRComplete, domain.OutcomeSuccess, 0, "")
}

func (o *Orchestrator) extract(ctx context.Context, r *run) {
	input := port.ExtractInput{
		DocType: r.doc.DocType,
		Pages:   r.doc.Pages,
		OCRText: FormatOCRText(r.pages, o.cfg.MaxOCRChars),
		Schema:  r.schema,
	}
	res := withRetry(ctx, o, retryPolicy{
		collaborator: "extractor",
		retries:      o.cfg.MaxRetries,
		timeout:      o.cfg.ExtractTimeout,
		initial:      o.cfg.InitialBackoff,
		max:          o.cfg.MaxBackoff,
	}, r.log.WithField("stage", domain.StateExtracted), func(ctx context.Context) ([]domain.CandidateField, error) {
		out, err := o.extractor.Extract(ctx, input)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, domain.NewCollaboratorError("extractor", "extract",
				fmt.Errorf("%w: empty extraction", domain.ErrMalformedResponse))
		}
		return out.Candidates, nil
	})

	if res.Outcome != domain.OutcomeSuccess {
		r.extErr = fmt.Sprintf("extraction failed after %d attempts: %v", res.Attempts, res.Err)
		r.report(o, domain.StateExtracted, domain.OutcomeExhausted, res.Attempts, r.extErr)
		return
	}
	r.cands = res.Value
	r.report(o, domain.StateExtracted, domain.OutcomeSuccess, res.Attempts, "")
}

func (o *Orchestrator) score(r *run) []domain.Field {
	cands, dropped := dedupe(r.cands)
	cands = order(cands, r.schema)
	index := scoring.NewTokenIndex(r.pages)

	fields := make([]domain.Field, 0, len(cands))
	for _, c := range cands {
		var spec *domain.FieldSpec
		if s, ok := r.schema.Lookup(c.Name); ok {
			spec = &s
		}
		f := o.scorer.Score(c, index.Link(c), spec)
		if n := dropped[c.Name]; n > 0 {
			f.ValidationNotes = duplicateNote(n)
		}
		fields = append(fields, f)
	}
	r.report(o, domain.StateScored, domain.OutcomeSuccess, 0, "")
	return fields
}

func (o *Orchestrator) validate(r *run, fields []domain.Field) ([]domain.Field, domain.QA) {
	out, qa := o.engine.Validate(r.schema, r.rules, fields)
	if r.extErr != "" {
		if len(qa.FailedRules) == 0 && len(qa.Skipped) == 0 && len(out) == 0 {
			qa.Notes = r.extErr
		} else {
			qa.Notes = r.extErr + "; " + qa.Notes
		}
	}
	r.report(o, domain.StateValidated, domain.OutcomeSuccess, 0, "")
	return out, qa
}

func (o *Orchestrator) metadata(r *run) domain.RecordMetadata {
	var custom []string
	for _, f := range r.schema.Fields {
		if f.Custom {
			custom = append(custom, f.Name)
		}
	}
	return domain.RecordMetadata{
		Filename:         r.doc.Filename,
		NumPages:         len(r.doc.Pages),
		DocumentID:       r.doc.ID.String(),
		RouterConfidence: r.doc.RouterConfidence,
		TypeReasoning:    r.routing.Reasoning,
		TypeIndicators:   r.routing.Indicators,
		OCRConfidence:    scoring.NewTokenIndex(r.pages).MeanConfidence(),
		CustomFields:     custom,
		Stages:           r.stages,
		Error:            r.extErr,
	}
}
