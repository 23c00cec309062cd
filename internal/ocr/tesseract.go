package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"docextract/internal/config"
	"docextract/internal/domain"
)

// Tesseract implements port.Recognizer with the tesseract CLI in TSV mode.
type Tesseract struct {
	cfg    config.OCRConfig
	runner Runner
	raster *Rasterizer
	log    logrus.FieldLogger
}

// NewTesseract creates a Tesseract recognizer. PDF pages are rasterized first.
func NewTesseract(cfg config.OCRConfig, runner Runner, log logrus.FieldLogger) *Tesseract {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if runner == nil {
		runner = NewExecRunner(log)
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Tesseract{
		cfg:    cfg,
		runner: runner,
		raster: NewRasterizer(runner, cfg.PdftoppmBinary, cfg.DPI),
		log:    log,
	}
}

// Recognize returns the word tokens of page in reading order.
func (t *Tesseract) Recognize(ctx context.Context, page domain.Page) ([]domain.OCRToken, error) {
	if len(page.Image) == 0 {
		return nil, nil
	}
	img := page.Image
	ext := ".png"
	switch page.ContentType {
	case "application/pdf":
		png, err := t.raster.Rasterize(ctx, page.Image)
		if err != nil {
			return nil, domain.NewCollaboratorError("ocr", "rasterize", err)
		}
		img = png
	case "image/jpeg":
		ext = ".jpg"
	case "image/tiff":
		ext = ".tif"
	case "image/webp":
		ext = ".webp"
	}

	dir, err := os.MkdirTemp("", "docextract-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "page"+ext)
	if err := os.WriteFile(path, img, 0o600); err != nil {
		return nil, fmt.Errorf("writing page image: %w", err)
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, t.args(path)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, domain.NewCollaboratorError("ocr", "recognize", fmt.Errorf("tesseract TSV: %w: %s", err, strings.TrimSpace(string(errb))))
	}

	tokens := ParseTSV(out, page.Index, t.cfg.MinTokenConfidence)
	t.log.WithFields(logrus.Fields{"page": page.Index, "tokens": len(tokens)}).Debug("ocr.Tesseract: page recognized")
	return tokens, nil
}

func (t *Tesseract) args(path string) []string {
	// tesseract <file> stdout -l <lang> [--psm N] [--oem N] tsv
	args := []string{path, "stdout", "-l", t.cfg.Language}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	return append(args, "tsv")
}

// TSV column positions.
const (
	colLevel  = 0
	colLeft   = 6
	colTop    = 7
	colWidth  = 8
	colHeight = 9
	colConf   = 10
	colText   = 11
	wordLevel = "5"
)

// ParseTSV converts tesseract TSV output into tokens for pageIndex. Word rows at or
// below minConfidence (0..1) and blank words are dropped.
func ParseTSV(data []byte, pageIndex int, minConfidence float64) []domain.OCRToken {
	var tokens []domain.OCRToken
	for i, ln := range strings.Split(string(data), "\n") {
		if i == 0 || ln == "" {
			continue
		} // header
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[colLevel] != wordLevel {
			continue
		}
		text := strings.TrimSpace(cols[colText])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[colConf], 64)
		if err != nil || conf < 0 || conf/100 <= minConfidence {
			continue
		}
		left, _ := strconv.ParseFloat(cols[colLeft], 64)
		top, _ := strconv.ParseFloat(cols[colTop], 64)
		width, _ := strconv.ParseFloat(cols[colWidth], 64)
		height, _ := strconv.ParseFloat(cols[colHeight], 64)

		tokens = append(tokens, domain.OCRToken{
			PageIndex:  pageIndex,
			BBox:       domain.BoundingBox{X1: left, Y1: top, X2: left + width, Y2: top + height},
			Text:       text,
			Confidence: conf / 100,
		})
	}
	return tokens
}
