package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BatchConfig holds settings for the batch runner.
type BatchConfig struct {
	Concurrency     int
	DocumentTimeout time.Duration
}

// BatchResult pairs an input with its outcome. Exactly one of Result and Err is set.
type BatchResult struct {
	Filename string
	Result   *ProcessResult
	Err      error
}

// BatchRunner processes many documents with bounded concurrency.
type BatchRunner struct {
	svc ExtractionService
	cfg BatchConfig
	log logrus.FieldLogger
}

// NewBatchRunner creates a new BatchRunner.
func NewBatchRunner(svc ExtractionService, cfg BatchConfig, log logrus.FieldLogger) *BatchRunner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &BatchRunner{svc: svc, cfg: cfg, log: log}
}

// Run processes inputs and returns one result per input, in input order. Inputs not
// yet started when ctx ends report ctx's error.
func (b *BatchRunner) Run(ctx context.Context, inputs []ProcessInput) []BatchResult {
	results := make([]BatchResult, len(inputs))
	sem := make(chan struct{}, b.cfg.Concurrency)
	var wg sync.WaitGroup

	b.log.WithFields(logrus.Fields{"documents": len(inputs), "concurrency": b.cfg.Concurrency}).
		Info("batchRunner: started")

	for i := range inputs {
		input := inputs[i]
		results[i].Filename = input.Filename
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		select {
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		case sem <- struct{}{}: // acquire
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }() // release

			docCtx, cancel := ctx, context.CancelFunc(func() {})
			if b.cfg.DocumentTimeout > 0 {
				docCtx, cancel = context.WithTimeout(ctx, b.cfg.DocumentTimeout)
			}
			defer cancel()

			res, err := b.svc.Process(docCtx, input)
			if err != nil {
				b.log.WithError(err).WithField("filename", input.Filename).Warn("batchRunner: document failed")
				results[i].Err = err
				return
			}
			results[i].Result = res
		}()
	}
	wg.Wait()

	b.log.Info("batchRunner: complete")
	return results
}
