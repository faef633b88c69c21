package core

import (
	"context"
	"fmt"
	"time"
)

// SweepStats summarizes one garbage-collection pass over the token store.
type SweepStats struct {
	Deleted int
	Batches int
}

// TokenSweeper periodically removes expired tokens. The legacy cleanup cron
// compared the wrong ends of the lifetime window and deleted live sessions;
// this sweeper only ever touches tokens whose expiry is at or before the
// sweep instant.
type TokenSweeper struct {
	tokens    *TokenService
	interval  time.Duration
	batchSize int
	logger    Logger
	now       func() time.Time
}

func NewTokenSweeper(tokens *TokenService, cfg Config, logger Logger) (*TokenSweeper, error) {
	if tokens == nil {
		return nil, fmt.Errorf("core: token service is required")
	}
	interval := cfg.Sweep.Interval
	if interval <= 0 {
		interval = DefaultConfig().Sweep.Interval
	}
	batchSize := cfg.Sweep.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultConfig().Sweep.BatchSize
	}
	return &TokenSweeper{
		tokens:    tokens,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Sweep runs a single pass with the configured batch size, draining expired
// tokens until the store reports a short batch.
func (s *TokenSweeper) Sweep(ctx context.Context) (SweepStats, error) {
	return s.SweepBatch(ctx, 0)
}

// SweepBatch runs a single pass with an explicit batch size; a non-positive
// value falls back to the configured one. Queue-driven sweeps use this to
// honor the batch size carried by the job message.
func (s *TokenSweeper) SweepBatch(ctx context.Context, batchSize int) (SweepStats, error) {
	if s == nil || s.tokens == nil {
		return SweepStats{}, fmt.Errorf("core: token sweeper is not configured")
	}
	if batchSize <= 0 {
		batchSize = s.batchSize
	}
	stats := SweepStats{}
	cutoff := s.now()
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		deleted, err := s.tokens.GarbageCollect(ctx, cutoff, batchSize)
		if err != nil {
			return stats, err
		}
		stats.Deleted += deleted
		stats.Batches++
		if deleted < batchSize {
			return stats, nil
		}
	}
}

// Run sweeps on the configured interval until the context is canceled. A
// failed pass is logged and the loop keeps going; transient store errors
// must not kill the background collector.
func (s *TokenSweeper) Run(ctx context.Context) error {
	if s == nil || s.tokens == nil {
		return fmt.Errorf("core: token sweeper is not configured")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logSweep("token sweep failed", map[string]any{"error": err.Error()})
				continue
			}
			if stats.Deleted > 0 {
				s.logSweep("token sweep completed", map[string]any{
					"deleted": stats.Deleted,
					"batches": stats.Batches,
				})
			}
		}
	}
}

func (s *TokenSweeper) logSweep(message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	if fieldsLogger, ok := s.logger.(FieldsLogger); ok {
		fieldsLogger.WithFields(fields).Info(message)
		return
	}
	s.logger.Info(message, flattenFields(fields)...)
}
