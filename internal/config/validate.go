package config

import (
	"fmt"
	"math"
	"regexp"

	"docextract/internal/domain"
)

var knownProviders = map[string]bool{"openai": true, "gemini": true, "claude": true}

// Validate checks the loaded configuration. Missing provider credentials return
// domain.ErrConfigurationMissing; out-of-range values return domain.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	providers := c.Parser.Providers()
	if len(providers) == 0 {
		return fmt.Errorf("%w: parser.primary.provider", domain.ErrConfigurationMissing)
	}
	for _, p := range providers {
		if !knownProviders[p.Provider] {
			return fmt.Errorf("%w: unknown parser provider %q", domain.ErrInvalidConfiguration, p.Provider)
		}
		if p.Provider == "gemini" {
			if p.ProjectID == "" {
				return fmt.Errorf("%w: gemini provider needs a project_id", domain.ErrConfigurationMissing)
			}
			continue
		}
		if p.APIKey == "" {
			return fmt.Errorf("%w: %s provider needs an api_key", domain.ErrConfigurationMissing, p.Provider)
		}
	}

	switch c.Parser.Mode {
	case "", "fallback":
	case "merge":
		if len(providers) < 2 {
			return fmt.Errorf("%w: parser.mode=merge needs a secondary provider", domain.ErrConfigurationMissing)
		}
	default:
		return fmt.Errorf("%w: unknown parser.mode %q", domain.ErrInvalidConfiguration, c.Parser.Mode)
	}

	if err := unit("router.min_confidence", c.Router.MinConfidence); err != nil {
		return err
	}
	if err := unit("thresholds.min_field_confidence", c.Thresholds.MinFieldConfidence); err != nil {
		return err
	}
	if err := unit("thresholds.min_overall_confidence", c.Thresholds.MinOverallConfidence); err != nil {
		return err
	}
	if err := unit("ocr.min_token_confidence", c.OCR.MinTokenConfidence); err != nil {
		return err
	}

	s := c.Scoring
	for name, w := range map[string]float64{
		"scoring.llm_weight":       s.LLMWeight,
		"scoring.ocr_weight":       s.OCRWeight,
		"scoring.format_weight":    s.FormatWeight,
		"scoring.relevance_weight": s.RelevanceWeight,
	} {
		if err := unit(name, w); err != nil {
			return err
		}
	}
	if sum := s.LLMWeight + s.OCRWeight + s.FormatWeight + s.RelevanceWeight; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: scoring weights sum to %v, want 1", domain.ErrInvalidConfiguration, sum)
	}

	for name, expr := range map[string]string{
		"validation.email_pattern":  c.Validation.EmailPattern,
		"validation.phone_pattern":  c.Validation.PhonePattern,
		"validation.date_pattern":   c.Validation.DatePattern,
		"validation.amount_pattern": c.Validation.AmountPattern,
	} {
		if expr == "" {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfiguration, name, err)
		}
	}
	for id, tol := range c.Validation.Tolerances {
		if tol < 0 {
			return fmt.Errorf("%w: tolerance for %s is negative", domain.ErrInvalidConfiguration, id)
		}
	}

	if c.OCR.Concurrency < 1 || c.Pipeline.BatchConcurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", domain.ErrInvalidConfiguration)
	}
	if c.Pipeline.MaxRetries < 0 || c.OCR.MaxRetries < 0 {
		return fmt.Errorf("%w: retry counts must not be negative", domain.ErrInvalidConfiguration)
	}

	switch c.Storage.Provider {
	case "", "none":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("%w: storage.s3.bucket", domain.ErrConfigurationMissing)
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("%w: storage.gcs.bucket", domain.ErrConfigurationMissing)
		}
	default:
		return fmt.Errorf("%w: unknown storage provider %q", domain.ErrInvalidConfiguration, c.Storage.Provider)
	}
	return nil
}

func unit(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s=%v outside [0,1]", domain.ErrInvalidConfiguration, name, v)
	}
	return nil
}
