package service_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docextract/internal/domain"
	"docextract/internal/ingest"
	"docextract/internal/metrics"
	"docextract/internal/port"
	"docextract/internal/service"
	"docextract/internal/validator"
	"docextract/mocks"
)

func pngContent() []byte {
	return []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x01}
}

func sampleRecord() *domain.Record {
	return &domain.Record{
		DocType: domain.DocTypeInvoice,
		Fields: []domain.Field{
			{Name: "invoice_number", Value: "INV-1", Confidence: 0.9, ValidationPassed: true, ValidationNotes: "Valid"},
			{Name: "total", Value: "45.00", Confidence: 0.3, ValidationPassed: true, ValidationNotes: "Valid"},
		},
		OverallConfidence: 0.6,
		QA:                domain.QA{PassedRules: []string{"required_fields"}, FailedRules: []string{}, CrossValidationScore: 1},
	}
}

type serviceFixture struct {
	processor *mocks.MockDocumentProcessor
	storage   *mocks.MockObjectStorage
	records   *mocks.MockRecordRepository
	metrics   *metrics.Metrics
}

func newServiceFixture() *serviceFixture {
	return &serviceFixture{
		processor: new(mocks.MockDocumentProcessor),
		storage:   new(mocks.MockObjectStorage),
		records:   new(mocks.MockRecordRepository),
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
}

func (f *serviceFixture) service(bucket string) service.ExtractionService {
	logger, _ := test.NewNullLogger()
	return service.NewExtractionService(
		ingest.NewLoader(ingest.Options{MaxBytes: 1024}, logger),
		f.processor, f.storage, f.records, f.metrics,
		service.ExtractionConfig{Bucket: bucket, Thresholds: validator.DefaultThresholds()},
		logger,
	)
}

func TestExtractionService_Process_Success(t *testing.T) {
	f := newServiceFixture()
	data := pngContent()
	id := ingest.DocumentID(data)
	rec := sampleRecord()

	f.processor.On("Process", mock.Anything, mock.MatchedBy(func(d domain.Document) bool {
		return d.ID == id && len(d.Pages) == 1 && d.Pages[0].ContentType == "image/png"
	}), []string{"po_number"}).Return(rec, nil)

	var sourceBody, recordBody []byte
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Key == "documents/"+id.String()+"/source.png" &&
			in.Metadata["document-id"] == id.String() && in.Metadata["doc-type"] == "invoice"
	})).Run(func(args mock.Arguments) {
		sourceBody, _ = io.ReadAll(args.Get(1).(port.UploadInput).Body)
	}).Return(&port.UploadOutput{Location: "s3://bucket/source"}, nil)
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Key == "documents/"+id.String()+"/record.json" && in.ContentType == "application/json"
	})).Run(func(args mock.Arguments) {
		recordBody, _ = io.ReadAll(args.Get(1).(port.UploadInput).Body)
	}).Return(&port.UploadOutput{Location: "s3://bucket/record"}, nil)
	f.records.On("Save", mock.Anything, mock.MatchedBy(func(s *domain.StoredRecord) bool {
		return s.DocumentID == id && s.Filename == "Scan.PNG" && s.DocType == domain.DocTypeInvoice
	})).Return(nil)

	res, err := f.service("archive").Process(context.Background(), service.ProcessInput{
		Filename: "Scan.PNG", Data: data, CustomFields: []string{"po_number"},
	})
	require.NoError(t, err)

	assert.Equal(t, id, res.DocumentID)
	assert.Same(t, rec, res.Record)
	assert.Equal(t, []string{"total"}, res.Review.LowConfidenceFields)
	assert.True(t, res.Review.BelowOverall)
	assert.True(t, res.Review.NeedsReview)
	assert.Equal(t, data, sourceBody)
	assert.Contains(t, string(recordBody), `"invoice_number"`)

	f.processor.AssertExpectations(t)
	f.storage.AssertNumberOfCalls(t, "Upload", 2)
	f.records.AssertExpectations(t)
}

func TestExtractionService_Process_ArchiveFailureIsBestEffort(t *testing.T) {
	f := newServiceFixture()
	f.processor.On("Process", mock.Anything, mock.Anything, mock.Anything).Return(sampleRecord(), nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("bucket gone"))
	f.records.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

	res, err := f.service("archive").Process(context.Background(), service.ProcessInput{Filename: "a.png", Data: pngContent()})
	require.NoError(t, err)
	assert.NotNil(t, res.Record)

	// the record upload is not attempted once the source upload fails
	f.storage.AssertNumberOfCalls(t, "Upload", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ArchiveFailures.WithLabelValues("storage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ArchiveFailures.WithLabelValues("repository")))
}

func TestExtractionService_Process_NoBucketSkipsArchive(t *testing.T) {
	f := newServiceFixture()
	f.processor.On("Process", mock.Anything, mock.Anything, mock.Anything).Return(sampleRecord(), nil)
	f.records.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service("").Process(context.Background(), service.ProcessInput{Filename: "a.png", Data: pngContent()})
	require.NoError(t, err)
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestExtractionService_Process_IngestErrors(t *testing.T) {
	tests := []struct {
		name  string
		input service.ProcessInput
		want  error
	}{
		{"unsupported", service.ProcessInput{Filename: "a.docx", Data: []byte("x")}, domain.ErrUnsupportedFileType},
		{"empty", service.ProcessInput{Filename: "a.png"}, domain.ErrEmptyDocument},
		{"too large", service.ProcessInput{Filename: "a.png", Data: make([]byte, 2048)}, domain.ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			_, err := f.service("archive").Process(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)
			f.processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestExtractionService_Process_PipelineFailure(t *testing.T) {
	f := newServiceFixture()
	f.processor.On("Process", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrConfigurationMissing)

	res, err := f.service("archive").Process(context.Background(), service.ProcessInput{Filename: "a.png", Data: pngContent()})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	f.records.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestExtractionService_GetRecord(t *testing.T) {
	f := newServiceFixture()
	id := uuid.New()
	stored := &domain.StoredRecord{DocumentID: id}
	f.records.On("GetByID", mock.Anything, id).Return(stored, nil)
	f.records.On("GetByID", mock.Anything, mock.Anything).Return(nil, domain.ErrRecordNotFound)

	got, err := f.service("").GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, stored, got)

	_, err = f.service("").GetRecord(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestExtractionService_WithoutRepository(t *testing.T) {
	logger, _ := test.NewNullLogger()
	processor := new(mocks.MockDocumentProcessor)
	processor.On("Process", mock.Anything, mock.Anything, mock.Anything).Return(sampleRecord(), nil)
	svc := service.NewExtractionService(ingest.NewLoader(ingest.Options{}, logger), processor, nil, nil, nil,
		service.ExtractionConfig{Thresholds: validator.DefaultThresholds()}, logger)

	_, err := svc.Process(context.Background(), service.ProcessInput{Filename: "a.png", Data: pngContent()})
	require.NoError(t, err)

	_, err = svc.GetRecord(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
	_, err = svc.ListRecent(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
}

func TestExtractionService_ListRecent_ClampsLimit(t *testing.T) {
	f := newServiceFixture()
	f.records.On("ListRecent", mock.Anything, 20).Return([]domain.StoredRecord{}, nil)
	f.records.On("ListRecent", mock.Anything, 5).Return([]domain.StoredRecord{{}}, nil)

	got, err := f.service("").ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = f.service("").ListRecent(context.Background(), 500)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = f.service("").ListRecent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestArchiveKeys(t *testing.T) {
	id := uuid.MustParse("11111111-2222-5333-8444-555555555555")
	assert.Equal(t, "documents/11111111-2222-5333-8444-555555555555/source.pdf", service.SourceKey(id, "Bill.PDF"))
	assert.Equal(t, "documents/11111111-2222-5333-8444-555555555555/record.json", service.RecordKey(id))
}
