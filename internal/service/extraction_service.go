package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"docextract/internal/domain"
	"docextract/internal/ingest"
	"docextract/internal/metrics"
	"docextract/internal/port"
	"docextract/internal/validator"
)

// DocumentProcessor runs one ingested document through the extraction pipeline.
type DocumentProcessor interface {
	Process(ctx context.Context, doc domain.Document, customFields []string) (*domain.Record, error)
}

// ProcessInput is the DTO for a single extraction request.
type ProcessInput struct {
	Filename     string
	Data         []byte
	CustomFields []string
}

// ProcessResult is the outcome of a successful extraction.
type ProcessResult struct {
	DocumentID uuid.UUID             `json:"document_id"`
	Record     *domain.Record        `json:"record"`
	Review     validator.ReviewFlags `json:"review"`
}

// ExtractionService defines the document extraction contract.
type ExtractionService interface {
	Process(ctx context.Context, input ProcessInput) (*ProcessResult, error)
	GetRecord(ctx context.Context, documentID uuid.UUID) (*domain.StoredRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.StoredRecord, error)
}

// ExtractionConfig holds service settings.
type ExtractionConfig struct {
	// Bucket receives archived sources and records. Archiving is off without one.
	Bucket     string
	Thresholds validator.Thresholds
}

type extractionService struct {
	loader    *ingest.Loader
	processor DocumentProcessor
	storage   port.ObjectStorage
	records   port.RecordRepository
	metrics   *metrics.Metrics
	cfg       ExtractionConfig
	log       logrus.FieldLogger
}

// NewExtractionService creates a new ExtractionService. storage and records may be nil,
// in which case archiving or persistence is skipped.
func NewExtractionService(
	loader *ingest.Loader,
	processor DocumentProcessor,
	storage port.ObjectStorage,
	records port.RecordRepository,
	m *metrics.Metrics,
	cfg ExtractionConfig,
	log logrus.FieldLogger,
) ExtractionService {
	return &extractionService{
		loader:    loader,
		processor: processor,
		storage:   storage,
		records:   records,
		metrics:   m,
		cfg:       cfg,
		log:       log,
	}
}

func (s *extractionService) Process(ctx context.Context, input ProcessInput) (*ProcessResult, error) {
	doc, err := s.loader.FromBytes(ctx, input.Filename, input.Data)
	if err != nil {
		return nil, err
	}
	log := s.log.WithFields(logrus.Fields{"document_id": doc.ID.String(), "filename": input.Filename})

	rec, err := s.processor.Process(ctx, doc, input.CustomFields)
	if err != nil {
		log.WithError(err).Error("extractionService.Process: pipeline failed")
		return nil, fmt.Errorf("processing %s: %w", input.Filename, err)
	}

	s.archive(ctx, log, doc, input, rec)
	s.persist(ctx, log, doc, rec)

	return &ProcessResult{
		DocumentID: doc.ID,
		Record:     rec,
		Review:     validator.Review(rec, s.cfg.Thresholds),
	}, nil
}

// SourceKey is the archive key of a document's original file.
func SourceKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/source%s", id, strings.ToLower(filepath.Ext(filename)))
}

// RecordKey is the archive key of a document's record JSON.
func RecordKey(id uuid.UUID) string {
	return fmt.Sprintf("documents/%s/record.json", id)
}

func (s *extractionService) archive(ctx context.Context, log logrus.FieldLogger, doc domain.Document, input ProcessInput, rec *domain.Record) {
	if s.storage == nil || s.cfg.Bucket == "" {
		return
	}
	_, contentType, _ := ingest.ContentType(input.Filename)
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         SourceKey(doc.ID, input.Filename),
		Body:        bytes.NewReader(input.Data),
		ContentType: contentType,
		Size:        int64(len(input.Data)),
		Metadata:    archiveMetadata(doc, rec),
	}); err != nil {
		log.WithError(err).Warn("extractionService.archive: source upload failed")
		s.metrics.ObserveArchiveFailure("storage")
		return
	}

	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		log.WithError(err).Warn("extractionService.archive: encoding record failed")
		s.metrics.ObserveArchiveFailure("storage")
		return
	}
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         RecordKey(doc.ID),
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
		Size:        int64(len(body)),
		Metadata:    archiveMetadata(doc, rec),
	}); err != nil {
		log.WithError(err).Warn("extractionService.archive: record upload failed")
		s.metrics.ObserveArchiveFailure("storage")
		return
	}
	log.Debug("extractionService.archive: archived source and record")
}

func archiveMetadata(doc domain.Document, rec *domain.Record) map[string]string {
	return map[string]string{
		"document-id":        doc.ID.String(),
		"doc-type":           string(rec.DocType),
		"source-filename":    doc.Filename,
		"overall-confidence": strconv.FormatFloat(rec.OverallConfidence, 'f', 4, 64),
	}
}

func (s *extractionService) persist(ctx context.Context, log logrus.FieldLogger, doc domain.Document, rec *domain.Record) {
	if s.records == nil {
		return
	}
	now := time.Now().UTC()
	stored := &domain.StoredRecord{
		DocumentID:        doc.ID,
		Filename:          doc.Filename,
		DocType:           rec.DocType,
		OverallConfidence: rec.OverallConfidence,
		Record:            *rec,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.records.Save(ctx, stored); err != nil {
		log.WithError(err).Warn("extractionService.persist: saving record failed")
		s.metrics.ObserveArchiveFailure("repository")
	}
}

func (s *extractionService) GetRecord(ctx context.Context, documentID uuid.UUID) (*domain.StoredRecord, error) {
	if s.records == nil {
		return nil, fmt.Errorf("%w: record repository", domain.ErrConfigurationMissing)
	}
	return s.records.GetByID(ctx, documentID)
}

func (s *extractionService) ListRecent(ctx context.Context, limit int) ([]domain.StoredRecord, error) {
	if s.records == nil {
		return nil, fmt.Errorf("%w: record repository", domain.ErrConfigurationMissing)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.records.ListRecent(ctx, limit)
}
