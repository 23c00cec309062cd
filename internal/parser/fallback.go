package parser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"docextract/internal/domain"
	"docextract/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// Fallback tries providers in order, skipping those with open circuits. It implements
// port.DocumentClassifier and port.FieldExtractor.
type Fallback struct {
	providers []Provider
	circuits  []*circuitState
	names     []string
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewFallback creates a Fallback from an ordered list of providers and their names.
func NewFallback(providers []Provider, names []string, log logrus.FieldLogger) *Fallback {
	circuits := make([]*circuitState, len(providers))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fallback{
		providers: providers,
		circuits:  circuits,
		names:     names,
		log:       log,
		now:       time.Now,
	}
}

func (f *Fallback) Classify(ctx context.Context, input port.ClassifyInput) (*port.Classification, error) {
	return try(ctx, f, "classify", func(p Provider) (*port.Classification, error) {
		return p.Classify(ctx, input)
	})
}

func (f *Fallback) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	return try(ctx, f, "extract", func(p Provider) (*port.ExtractOutput, error) {
		return p.Extract(ctx, input)
	})
}

func try[T any](ctx context.Context, f *Fallback, op string, call func(Provider) (*T, error)) (*T, error) {
	if len(f.providers) == 0 {
		return nil, fmt.Errorf("%w: no parser providers", domain.ErrConfigurationMissing)
	}
	now := f.now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, Wrap("llm", op, err)
		}
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			f.log.WithField("provider", f.names[i]).
				Infof("parser.Fallback: skipping %s (circuit open until %s)", f.names[i], resetAt.Format(time.RFC3339))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := call(p)
		if err == nil {
			return out, nil
		}

		f.log.WithField("provider", f.names[i]).WithError(err).Warnf("parser.Fallback: %s %s failed", f.names[i], op)
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, Wrap("llm", op, NewRateLimitError("all", fmt.Errorf("all providers rate limited"), int(retryAfter.Seconds())))
	}

	return nil, Wrap("llm", op, fmt.Errorf("all providers failed: %w", lastErr))
}
