package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"

	"docextract/internal/domain"
)

// documentNamespace seeds content-derived document IDs.
var documentNamespace = uuid.MustParse("5b9f4c2e-7d3a-4e61-9a8b-2f0c1d6e8a47")

// Rasterizer renders a single-page PDF to an image.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]byte, error)
}

// Options configures a Loader.
type Options struct {
	// MaxPages caps the pages kept from a PDF. 0 means no cap.
	MaxPages int
	// MaxBytes rejects larger inputs. 0 means no limit.
	MaxBytes int64
	// Rasterizer converts PDF pages to PNG. Nil keeps pages as single-page PDFs.
	Rasterizer Rasterizer
}

// Loader turns uploaded bytes into a Document of page images.
type Loader struct {
	opts Options
	log  logrus.FieldLogger
}

var disableConfigDir sync.Once

// NewLoader creates a Loader.
func NewLoader(opts Options, log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	disableConfigDir.Do(api.DisableConfigDir)
	return &Loader{opts: opts, log: log}
}

// DocumentID returns the stable ID for content.
func DocumentID(data []byte) uuid.UUID {
	return uuid.NewSHA1(documentNamespace, data)
}

// ContentType returns the MIME type for filename's extension.
func ContentType(filename string) (domain.FileType, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	ft, ok := domain.AllowedExtensions[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFileType, filepath.Ext(filename))
	}
	return ft, domain.AllowedFileTypes[ft], nil
}

// FromFile reads path and loads it.
func (l *Loader) FromFile(ctx context.Context, path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return l.FromBytes(ctx, filepath.Base(path), data)
}

// FromBytes builds a Document from the raw bytes of filename.
func (l *Loader) FromBytes(ctx context.Context, filename string, data []byte) (domain.Document, error) {
	ft, contentType, err := ContentType(filename)
	if err != nil {
		return domain.Document{}, err
	}
	if len(data) == 0 {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, filename)
	}
	if l.opts.MaxBytes > 0 && int64(len(data)) > l.opts.MaxBytes {
		return domain.Document{}, fmt.Errorf("%w: %s is %d bytes (max %d)", domain.ErrFileTooLarge, filename, len(data), l.opts.MaxBytes)
	}

	doc := domain.Document{
		ID:       DocumentID(data),
		Filename: filename,
	}

	if ft != domain.FileTypePDF {
		doc.Pages = []domain.Page{{Index: 1, Image: data, ContentType: contentType}}
		return doc, nil
	}

	pages, err := l.splitPDF(data)
	if err != nil {
		l.log.WithError(err).WithField("filename", filename).Warn("ingest.Loader: splitting PDF failed, using the whole file as one page")
		pages = [][]byte{data}
	}

	doc.Pages = make([]domain.Page, len(pages))
	for i, pdf := range pages {
		doc.Pages[i] = l.page(ctx, i+1, pdf)
	}
	return doc, nil
}

func (l *Loader) page(ctx context.Context, index int, pdf []byte) domain.Page {
	if l.opts.Rasterizer != nil {
		png, err := l.opts.Rasterizer.Rasterize(ctx, pdf)
		if err == nil {
			return domain.Page{Index: index, Image: png, ContentType: "image/png"}
		}
		l.log.WithError(err).WithField("page", index).Warn("ingest.Loader: rasterizing page failed, keeping PDF bytes")
	}
	return domain.Page{Index: index, Image: pdf, ContentType: "application/pdf"}
}

// splitPDF returns one single-page PDF per page, capped at MaxPages.
func (l *Loader) splitPDF(data []byte) ([][]byte, error) {
	dir, err := os.MkdirTemp("", "docextract-split-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	src := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing source pdf: %w", err)
	}

	count, err := api.PageCountFile(src)
	if err != nil {
		return nil, fmt.Errorf("counting pages: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	outDir := filepath.Join(dir, "pages")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating pages dir: %w", err)
	}
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.SplitFile(src, outDir, 1, cfg); err != nil {
		return nil, fmt.Errorf("splitting pdf: %w", err)
	}

	if l.opts.MaxPages > 0 && count > l.opts.MaxPages {
		l.log.WithFields(logrus.Fields{"pages": count, "max_pages": l.opts.MaxPages}).Warn("ingest.Loader: truncating PDF")
		count = l.opts.MaxPages
	}

	out := make([][]byte, 0, count)
	for i := 1; i <= count; i++ {
		page, err := os.ReadFile(filepath.Join(outDir, fmt.Sprintf("source_%d.pdf", i)))
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i, err)
		}
		out = append(out, page)
	}
	return out, nil
}
