package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"docextract/internal/domain"
	"docextract/internal/parser"
)

// stageResult is the tagged result of one stage. Value is meaningful only when
// Outcome is success or degraded.
type stageResult[T any] struct {
	Value    T
	Outcome  domain.StageOutcome
	Attempts int
	Err      error
}

// retryPolicy describes how one collaborator call is retried.
type retryPolicy struct {
	collaborator string
	retries      int
	timeout      time.Duration
	initial      time.Duration
	max          time.Duration
}

// permanent reports errors that a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrUnrecognizedDocType) ||
		errors.Is(err, domain.ErrConfigurationMissing) ||
		errors.Is(err, domain.ErrUnknownDocType)
}

// withRetry calls fn until it succeeds, fails permanently, ctx ends or the retries
// run out. Each attempt runs under its own timeout.
func withRetry[T any](ctx context.Context, o *Orchestrator, p retryPolicy, log logrus.FieldLogger, fn func(ctx context.Context) (T, error)) stageResult[T] {
	var res stageResult[T]
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		v, err := fn(callCtx)
		cancel()
		if err == nil {
			res.Value = v
			res.Outcome = domain.OutcomeSuccess
			res.Err = nil
			return res
		}
		res.Err = err

		entry := log.WithFields(logrus.Fields{"collaborator": p.collaborator, "attempt": attempt}).WithError(err)
		if permanent(err) || ctx.Err() != nil || attempt > p.retries {
			entry.Warn("pipeline.Orchestrator: collaborator call failed")
			res.Outcome = domain.OutcomeExhausted
			return res
		}

		delay := backoff(attempt, p.initial, p.max, err)
		entry.WithField("delay", delay.String()).Info("pipeline.Orchestrator: retrying collaborator call")
		o.metrics.ObserveRetry(p.collaborator)

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				res.Err = errors.Join(err, ctx.Err())
				res.Outcome = domain.OutcomeExhausted
				return res
			case <-timer.C:
			}
		}
	}
}

// backoff doubles initial per attempt up to ceiling. A provider-requested delay raises the
// wait, still capped.
func backoff(attempt int, initial, ceiling time.Duration, err error) time.Duration {
	d := initial
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	if after, ok := parser.RetryAfter(err); ok && after > d {
		d = after
	}
	if d > ceiling {
		d = ceiling
	}
	return d
}
