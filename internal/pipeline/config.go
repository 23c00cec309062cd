package pipeline

import (
	"time"

	"docextract/internal/config"
)

// Config holds the orchestration policies.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RouterTimeout  time.Duration
	ExtractTimeout time.Duration
	MaxOCRChars    int

	OCRConcurrency int
	OCRTimeout     time.Duration
	OCRRetries     int
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		RouterTimeout:  60 * time.Second,
		ExtractTimeout: 120 * time.Second,
		MaxOCRChars:    30000,
		OCRConcurrency: 4,
		OCRTimeout:     60 * time.Second,
		OCRRetries:     1,
	}
}

// ConfigFrom extracts the orchestration policies from the application config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		MaxRetries:     c.Pipeline.MaxRetries,
		InitialBackoff: c.Pipeline.InitialBackoff,
		MaxBackoff:     c.Pipeline.MaxBackoff,
		RouterTimeout:  c.Pipeline.RouterTimeout,
		ExtractTimeout: c.Pipeline.ExtractTimeout,
		MaxOCRChars:    c.Pipeline.MaxOCRChars,
		OCRConcurrency: c.OCR.Concurrency,
		OCRTimeout:     c.OCR.Timeout,
		OCRRetries:     c.OCR.MaxRetries,
	}
}

func (c Config) normalized() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.OCRRetries < 0 {
		c.OCRRetries = 0
	}
	if c.OCRConcurrency < 1 {
		c.OCRConcurrency = 1
	}
	if c.InitialBackoff < 0 {
		c.InitialBackoff = 0
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	return c
}
