// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PruneFunc deletes artifacts in dir older than age and returns how many were removed
type PruneFunc func(ctx context.Context, dir string, age time.Duration) (int, error)

// RetentionSchedulerConfig holds configuration for the artifact retention scheduler
type RetentionSchedulerConfig struct {
	// Dir is the artifact directory to prune
	Dir string

	// MaxAge is how long an artifact is kept; zero disables the scheduler
	MaxAge time.Duration

	// Interval between runs (default: 1h)
	Interval time.Duration

	// Timeout is the maximum time for one run (default: 5m)
	Timeout time.Duration
}

// RetentionScheduler periodically removes old rendered artifacts
type RetentionScheduler struct {
	prune     PruneFunc
	logger    *zap.Logger
	config    RetentionSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRetentionScheduler creates a new retention scheduler
func NewRetentionScheduler(prune PruneFunc, logger *zap.Logger, config RetentionSchedulerConfig) (*RetentionScheduler, error) {
	if prune == nil {
		return nil, fmt.Errorf("%w: prune function is required", ErrInvalidConfig)
	}
	if config.MaxAge < 0 {
		return nil, fmt.Errorf("%w: negative max age", ErrInvalidConfig)
	}
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionScheduler{
		prune:  prune,
		logger: logger.Named("retention"),
		config: config,
	}, nil
}

// Start runs a first pass immediately, then one every Interval
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.config.MaxAge == 0 {
		s.mu.Unlock()
		s.logger.Info("Artifact retention is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Artifact retention scheduler started",
		zap.String("dir", s.config.Dir),
		zap.Duration("max_age", s.config.MaxAge),
		zap.Duration("interval", s.config.Interval),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *RetentionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Artifact retention scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Artifact retention scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *RetentionScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Retention loop stopping")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce prunes the artifact directory and returns the number of removed files
func (s *RetentionScheduler) RunOnce(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	startTime := time.Now()
	deleted, err := s.prune(runCtx, s.config.Dir, s.config.MaxAge)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Artifact cleanup failed",
			zap.Duration("duration", duration),
			zap.Int("deleted_count", deleted),
			zap.Error(err),
		)
		return deleted
	}

	if deleted > 0 {
		s.logger.Info("Artifact cleanup completed",
			zap.Duration("duration", duration),
			zap.Int("deleted_count", deleted),
		)
	}
	return deleted
}

// IsRunning returns whether the scheduler is running
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
