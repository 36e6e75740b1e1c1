package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/claim-approval/internal/application/port"
	"go.uber.org/zap"
)

// DocumentIndex answers whether a stored blob is still referenced
type DocumentIndex interface {
	DocumentKeyExists(ctx context.Context, storedFileName string) (bool, error)
}

// SweepableStore is a blob store that can enumerate its contents
type SweepableStore interface {
	port.BlobLister
	Delete(ctx context.Context, key string) error
}

// OrphanSweeperConfig holds configuration for the orphan sweeper
type OrphanSweeperConfig struct {
	Interval time.Duration
	// GracePeriod keeps blobs younger than this, so a submission that has
	// written a file but not yet recorded it is never swept.
	GracePeriod time.Duration
}

// DefaultOrphanSweeperConfig returns default configuration
func DefaultOrphanSweeperConfig() OrphanSweeperConfig {
	return OrphanSweeperConfig{
		Interval:    time.Hour,
		GracePeriod: time.Hour,
	}
}

// SweepStats summarises one sweep
type SweepStats struct {
	Scanned int
	Removed int
	Failed  int
}

// OrphanSweeper deletes stored uploads that no document row references,
// e.g. files left behind when a rollback could not finish its cleanup.
type OrphanSweeper struct {
	config OrphanSweeperConfig
	store  SweepableStore
	index  DocumentIndex
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	lastStats SweepStats
}

// NewOrphanSweeper creates a new orphan sweeper
func NewOrphanSweeper(config OrphanSweeperConfig, store SweepableStore, index DocumentIndex, logger *zap.Logger) *OrphanSweeper {
	defaults := DefaultOrphanSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = defaults.GracePeriod
	}
	return &OrphanSweeper{
		config: config,
		store:  store,
		index:  index,
		logger: logger,
		now:    time.Now,
	}
}

// Name returns the worker name for identification
func (s *OrphanSweeper) Name() string {
	return "OrphanSweeper"
}

// Start runs a sweep every Interval until ctx is cancelled or Stop is called
func (s *OrphanSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("orphan sweeper already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("OrphanSweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("grace_period", s.config.GracePeriod))

	go s.loop(runCtx, s.done)
	return nil
}

// Stop cancels the loop and waits for an in-progress sweep to finish
func (s *OrphanSweeper) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// LastStats returns the result of the most recent sweep
func (s *OrphanSweeper) LastStats() SweepStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStats
}

func (s *OrphanSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Orphan sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce removes every unreferenced blob older than the grace period.
// Per-blob failures are counted and logged; only a listing failure aborts.
func (s *OrphanSweeper) SweepOnce(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	blobs, err := s.store.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list blobs: %w", err)
	}

	cutoff := s.now().Add(-s.config.GracePeriod)
	for _, blob := range blobs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++
		if blob.ModTime.After(cutoff) {
			continue
		}

		referenced, err := s.index.DocumentKeyExists(ctx, blob.Key)
		if err != nil {
			stats.Failed++
			s.logger.Warn("Failed to check blob reference", zap.String("key", blob.Key), zap.Error(err))
			continue
		}
		if referenced {
			continue
		}

		if err := s.store.Delete(ctx, blob.Key); err != nil {
			stats.Failed++
			s.logger.Warn("Failed to remove orphaned blob", zap.String("key", blob.Key), zap.Error(err))
			continue
		}
		stats.Removed++
		s.logger.Info("Removed orphaned blob",
			zap.String("key", blob.Key),
			zap.Time("modified", blob.ModTime))
	}

	s.mu.Lock()
	s.lastStats = stats
	s.mu.Unlock()

	if stats.Removed > 0 || stats.Failed > 0 {
		s.logger.Info("Orphan sweep finished",
			zap.Int("scanned", stats.Scanned),
			zap.Int("removed", stats.Removed),
			zap.Int("failed", stats.Failed))
	}
	return stats, nil
}
