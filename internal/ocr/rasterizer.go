package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Rasterizer renders single-page PDFs to PNG with pdftoppm.
type Rasterizer struct {
	runner Runner
	binary string
	dpi    int
}

// NewRasterizer creates a Rasterizer. Empty binary means "pdftoppm", dpi <= 0 means 300.
func NewRasterizer(runner Runner, binary string, dpi int) *Rasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &Rasterizer{runner: runner, binary: binary, dpi: dpi}
}

// Rasterize renders the first page of pdf and returns the PNG bytes.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "docextract-raster-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	in := filepath.Join(dir, "page.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	prefix := filepath.Join(dir, "page")

	// pdftoppm -r 300 -png -singlefile <in.pdf> <dir/page>
	_, errb, err := r.runner.Run(ctx, r.binary, "-r", fmt.Sprintf("%d", r.dpi), "-png", "-singlefile", in, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	png, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no image: %w", err)
	}
	return png, nil
}
