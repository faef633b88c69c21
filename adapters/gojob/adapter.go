// Package gojob wires the token sweeper into a go-job queue so expired
// credentials are collected by the shared background worker pool instead of
// a dedicated goroutine per process.
package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-gateway/core"
)

const JobIDTokenSweep = "gateway.tokens.sweep"

const paramBatchSize = "batch_size"

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
// Retries past the attempt cap become terminal: dead-lettered when the
// policy asks for it, failed otherwise. Explicit terminal dispositions
// pass through untouched.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		} else {
			out.Disposition = queue.NackDispositionFailed
		}
		out.Delay = 0
	}
	return out
}

// NewSweepMessage builds the execution message for one sweep pass. The
// idempotency key collapses duplicate enqueues within the same minute.
func NewSweepMessage(batchSize int, enqueuedAt time.Time) *job.ExecutionMessage {
	if batchSize <= 0 {
		batchSize = core.DefaultConfig().Sweep.BatchSize
	}
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now().UTC()
	}
	return &job.ExecutionMessage{
		JobID: JobIDTokenSweep,
		Parameters: map[string]any{
			paramBatchSize: batchSize,
		},
		IdempotencyKey: fmt.Sprintf("%s::%s", JobIDTokenSweep, enqueuedAt.UTC().Format("200601021504")),
	}
}

// SweepEnqueuer publishes sweep jobs onto a go-job queue.
type SweepEnqueuer struct {
	enqueuer  queue.Enqueuer
	batchSize int
}

func NewSweepEnqueuer(enqueuer queue.Enqueuer, cfg core.Config) *SweepEnqueuer {
	batchSize := cfg.Sweep.BatchSize
	if batchSize <= 0 {
		batchSize = core.DefaultConfig().Sweep.BatchSize
	}
	return &SweepEnqueuer{enqueuer: enqueuer, batchSize: batchSize}
}

func (e *SweepEnqueuer) Enqueue(ctx context.Context) (queue.EnqueueReceipt, error) {
	if e == nil || e.enqueuer == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	return e.enqueuer.Enqueue(ctx, NewSweepMessage(e.batchSize, time.Now().UTC()))
}

// Sweeper is the slice of the token sweeper the runner needs.
type Sweeper interface {
	SweepBatch(ctx context.Context, batchSize int) (core.SweepStats, error)
}

// SweepRunner executes dequeued sweep messages against the token sweeper.
type SweepRunner struct {
	sweeper Sweeper
	logger  core.Logger
}

func NewSweepRunner(sweeper Sweeper, logger core.Logger) (*SweepRunner, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("gojob: token sweeper is required")
	}
	return &SweepRunner{sweeper: sweeper, logger: logger}, nil
}

func (r *SweepRunner) Run(ctx context.Context, msg *job.ExecutionMessage) error {
	if r == nil || r.sweeper == nil {
		return fmt.Errorf("gojob: sweep runner is not configured")
	}
	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDTokenSweep {
		return fmt.Errorf("gojob: unexpected job message")
	}
	stats, err := r.sweeper.SweepBatch(ctx, BatchSizeFromMessage(msg))
	if err != nil {
		return err
	}
	if r.logger != nil && stats.Deleted > 0 {
		r.logger.Info("token sweep job completed",
			"deleted", stats.Deleted,
			"batches", stats.Batches,
		)
	}
	return nil
}

// BatchSizeFromMessage reads the batch size parameter, defaulting when the
// message carries none or a malformed value.
func BatchSizeFromMessage(msg *job.ExecutionMessage) int {
	fallback := core.DefaultConfig().Sweep.BatchSize
	if msg == nil || len(msg.Parameters) == 0 {
		return fallback
	}
	switch typed := msg.Parameters[paramBatchSize].(type) {
	case int:
		if typed > 0 {
			return typed
		}
	case int64:
		if typed > 0 {
			return int(typed)
		}
	case float64:
		if typed > 0 {
			return int(typed)
		}
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
