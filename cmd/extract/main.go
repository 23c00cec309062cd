package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"docextract/internal/app"
	"docextract/internal/config"
	"docextract/internal/handler"
	"docextract/internal/ingest"
	"docextract/internal/logging"
	"docextract/internal/service"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "extract",
		Usage:     "extract structured fields from documents",
		ArgsUsage: "FILE|DIR...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "output format: json, yaml, csv or xlsx"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default stdout; required for xlsx)"},
			&cli.StringFlag{Name: "custom-fields", Usage: "comma-separated extra field names"},
			&cli.IntFlag{Name: "concurrency", Usage: "documents processed at once (default pipeline.batch_concurrency)"},
			&cli.BoolFlag{Name: "bom", Usage: "prefix CSV output with a UTF-8 BOM"},
			&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "descend into subdirectories"},
			&cli.StringFlag{Name: "env", Value: ".env", Usage: "environment file to load"},
		},
		Action: extractAction,
	}
}

func extractAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("no input files given", 2)
	}
	format := c.String("format")
	if !validFormat(format) {
		return cli.Exit(fmt.Sprintf("unknown format %q", format), 2)
	}
	if format == formatXLSX && c.String("out") == "" {
		return cli.Exit("xlsx output needs --out", 2)
	}

	_ = godotenv.Load(c.String("env"))
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if n := c.Int("concurrency"); n > 0 {
		cfg.Pipeline.BatchConcurrency = n
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	paths, err := collectPaths(c.Args().Slice(), c.Bool("recursive"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return cli.Exit("no supported documents found", 2)
	}

	a, err := app.New(c.Context, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	customFields := handler.ParseCustomFields([]string{c.String("custom-fields")})
	inputs := make([]service.ProcessInput, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		inputs = append(inputs, service.ProcessInput{Filename: filepath.Base(p), Data: data, CustomFields: customFields})
	}

	results := a.Batch.Run(c.Context, inputs)

	var out io.Writer = os.Stdout
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	if err := writeOutput(out, format, results, c.Bool("bom")); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d documents failed", failed, len(results)), 1)
	}
	return nil
}

// collectPaths expands directories into the supported documents they contain.
func collectPaths(args []string, recursive bool) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if _, _, err := ingest.ContentType(path); err == nil {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
