// Package app wires configuration into a ready extraction pipeline.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"docextract/internal/config"
	"docextract/internal/doctype"
	"docextract/internal/format"
	"docextract/internal/ingest"
	"docextract/internal/metrics"
	"docextract/internal/ocr"
	"docextract/internal/parser"
	"docextract/internal/parser/claude"
	"docextract/internal/parser/gemini"
	"docextract/internal/parser/openai"
	"docextract/internal/pipeline"
	"docextract/internal/port"
	"docextract/internal/repository/postgres"
	"docextract/internal/schema"
	"docextract/internal/scoring"
	"docextract/internal/service"
	"docextract/internal/storage"
	"docextract/internal/validator"
	"docextract/internal/validator/rules"
)

var registerOnce sync.Once

// RegisterProviders registers the built-in LLM provider factories.
func RegisterProviders() {
	registerOnce.Do(func() {
		parser.RegisterProvider("openai", openai.Factory)
		parser.RegisterProvider("gemini", gemini.Factory)
		parser.RegisterProvider("claude", claude.Factory)
	})
}

// App holds the wired components.
type App struct {
	Config       *config.Config
	Logger       *logrus.Logger
	Metrics      *metrics.Metrics
	Orchestrator *pipeline.Orchestrator
	Service      service.ExtractionService
	Batch        *service.BatchRunner
	// DB is nil unless db.enabled is set.
	DB *sqlx.DB
}

// Options adjusts what New builds.
type Options struct {
	// Registerer receives the pipeline metrics. Nil uses the default registerer.
	Registerer prometheus.Registerer
	// Recognizer replaces the tesseract recognizer.
	Recognizer port.Recognizer
	// SkipDB leaves persistence off regardless of db.enabled.
	SkipDB bool
}

// New validates cfg and builds every component.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	RegisterProviders()

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := metrics.New(reg)

	checker, err := format.NewChecker(format.Patterns{
		Email:  cfg.Validation.EmailPattern,
		Phone:  cfg.Validation.PhonePattern,
		Date:   cfg.Validation.DatePattern,
		Amount: cfg.Validation.AmountPattern,
	})
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(scoring.Weights{
		LLM:       cfg.Scoring.LLMWeight,
		OCR:       cfg.Scoring.OCRWeight,
		Format:    cfg.Scoring.FormatWeight,
		Relevance: cfg.Scoring.RelevanceWeight,
	}, checker)
	if err != nil {
		return nil, err
	}

	registry, err := schema.New(schema.Options{
		File:           cfg.Schema.File,
		Tolerances:     rules.Tolerances(cfg.Validation.Tolerances),
		DisableGeneric: cfg.Schema.DisableGeneric,
	})
	if err != nil {
		return nil, err
	}

	classifier, extractor, err := BuildCollaborators(&cfg.Parser, checker, log)
	if err != nil {
		return nil, err
	}

	runner := ocr.NewExecRunner(log)
	raster := ocr.NewRasterizer(runner, cfg.OCR.PdftoppmBinary, cfg.OCR.DPI)
	recognizer := opts.Recognizer
	if recognizer == nil {
		recognizer = ocr.NewTesseract(cfg.OCR, runner, log)
	}

	orch, err := pipeline.New(pipeline.Deps{
		Router:     doctype.NewRouter(classifier, cfg.Router.MinConfidence),
		Recognizer: recognizer,
		Extractor:  extractor,
		Registry:   registry,
		Scorer:     scorer,
		Engine:     validator.NewEngine(checker, log),
		Logger:     log,
		Metrics:    m,
	}, pipeline.ConfigFrom(cfg))
	if err != nil {
		return nil, err
	}

	store, bucket, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	a := &App{Config: cfg, Logger: log, Metrics: m, Orchestrator: orch}
	var records port.RecordRepository
	if cfg.DB.Enabled && !opts.SkipDB {
		db, err := postgres.NewDB(ctx, &cfg.DB)
		if err != nil {
			return nil, err
		}
		a.DB = db
		records = postgres.NewRecordRepo(db)
	}

	loader := ingest.NewLoader(ingest.Options{
		MaxPages:   cfg.Pipeline.MaxPages,
		MaxBytes:   cfg.Pipeline.MaxFileSizeMB * 1024 * 1024,
		Rasterizer: raster,
	}, log)
	a.Service = service.NewExtractionService(loader, orch, store, records, m, service.ExtractionConfig{
		Bucket: bucket,
		Thresholds: validator.Thresholds{
			MinFieldConfidence:   cfg.Thresholds.MinFieldConfidence,
			MinOverallConfidence: cfg.Thresholds.MinOverallConfidence,
		},
	}, log)
	a.Batch = service.NewBatchRunner(a.Service, service.BatchConfig{
		Concurrency:     cfg.Pipeline.BatchConcurrency,
		DocumentTimeout: cfg.Pipeline.DocumentTimeout,
	}, log)

	log.WithFields(logrus.Fields{
		"parser_mode": cfg.Parser.Mode,
		"storage":     cfg.Storage.Provider,
		"db":          a.DB != nil,
		"doc_types":   registry.DocTypes(),
	}).Info("app.New: pipeline ready")
	return a, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// BuildCollaborators creates the configured providers. Classification always goes
// through the fallback chain; extraction does too unless parser.mode is merge, in which
// case the first two providers extract in parallel.
func BuildCollaborators(cfg *config.ParserConfig, checker *format.Checker, log logrus.FieldLogger) (port.DocumentClassifier, port.FieldExtractor, error) {
	var providers []parser.Provider
	var names []string
	for _, pc := range cfg.Providers() {
		p, err := parser.NewProvider(pc)
		if err != nil {
			return nil, nil, fmt.Errorf("creating %s provider: %w", pc.Provider, err)
		}
		providers = append(providers, p)
		names = append(names, pc.Provider)
	}

	fallback := parser.NewFallback(providers, names, log)
	if cfg.Mode != "merge" {
		return fallback, fallback, nil
	}
	if len(providers) < 2 {
		return nil, nil, fmt.Errorf("parser.mode=merge needs two providers, have %d", len(providers))
	}
	return fallback, parser.NewMergeExtractor(providers[0], providers[1], checker, log), nil
}
