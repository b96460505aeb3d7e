package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/blocktease/market-engine/internal/adapter"
	"github.com/blocktease/market-engine/internal/domain"
	"github.com/blocktease/market-engine/internal/logger"
	"github.com/blocktease/market-engine/internal/messaging"
	"github.com/blocktease/market-engine/internal/store/schema"
)

// ListingStore is the slice of the store the sweeper needs
type ListingStore interface {
	// GetExpiredOpenListings returns open listings whose token expired before now
	GetExpiredOpenListings(ctx context.Context, now int64, limit int) ([]*schema.Listing, error)
	// RetireListing delists a listing and journals the delist event
	RetireListing(ctx context.Context, listingID uint64, now int64) (*domain.MarketEvent, error)
}

// ExpiredListingsSweeperConfig holds configuration for the expired listings sweeper
type ExpiredListingsSweeperConfig struct {
	BatchSize      int           // Listings to retire per cycle
	WorkerPoolSize int           // Concurrent workers
	Interval       time.Duration // Time to sleep between sweep cycles
}

// expiredListingsSweeper retires open listings whose subscription token has
// expired, so stale offers never settle
type expiredListingsSweeper struct {
	config    *ExpiredListingsSweeperConfig
	store     ListingStore
	publisher messaging.Publisher
	clock     adapter.Clock
	pool      pond.Pool
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewExpiredListingsSweeper creates a new expired listings sweeper
func NewExpiredListingsSweeper(
	config *ExpiredListingsSweeperConfig,
	st ListingStore,
	publisher messaging.Publisher,
	clock adapter.Clock,
) Sweeper {
	return &expiredListingsSweeper{
		config:    config,
		store:     st,
		publisher: publisher,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *expiredListingsSweeper) Name() string {
	return "expired-listings-sweeper"
}

// Start begins the sweeper's main loop
func (s *expiredListingsSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh) // Signal that we've stopped
	}()

	logger.InfoCtx(ctx, "Starting expired listings sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("interval", s.config.Interval),
	)

	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Expired listings sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Expired listings sweeper stop requested")
			s.cleanup()
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
		}
	}
}

// cleanup stops the worker pool and waits for tasks to complete
func (s *expiredListingsSweeper) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *expiredListingsSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping expired listings sweeper")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Expired listings sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Expired listings sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle retires one batch of expired open listings
func (s *expiredListingsSweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()
	now := startTime.Unix()

	listings, err := s.store.GetExpiredOpenListings(ctx, now, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get expired listings: %w", err)
	}

	if len(listings) == 0 {
		if !s.sleep(ctx, s.config.Interval) {
			return ctx.Err()
		}
		return nil
	}

	logger.InfoCtx(ctx, "Found expired listings to retire", zap.Int("count", len(listings)))

	var retiredCount, failedCount atomic.Int32

	for _, listing := range listings {
		s.pool.Submit(func() {
			if err := s.retireWithRetry(ctx, listing.ListingID, now); err != nil {
				// A listing bought or delisted since the scan is already done
				var notListed *domain.NotListedError
				if errors.As(err, &notListed) {
					return
				}
				failedCount.Add(1)
				logger.ErrorCtx(ctx, err, zap.Uint64("listing_id", listing.ListingID))
				return
			}
			retiredCount.Add(1)
		})
	}

	// Wait for all retirements to complete
	s.pool.StopAndWait()

	// Recreate pool for next cycle
	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	logger.InfoCtx(ctx, "Sweep cycle completed",
		zap.Duration("duration", s.clock.Since(startTime)),
		zap.Int("scanned", len(listings)),
		zap.Int32("retired", retiredCount.Load()),
		zap.Int32("failed", failedCount.Load()),
	)

	if !s.sleep(ctx, s.config.Interval) {
		return ctx.Err()
	}

	return nil
}

// retireWithRetry retires one listing, retrying transient store failures
func (s *expiredListingsSweeper) retireWithRetry(ctx context.Context, listingID uint64, now int64) error {
	operation := func() error {
		event, err := s.store.RetireListing(ctx, listingID, now)
		if err != nil {
			var notListed *domain.NotListedError
			if errors.As(err, &notListed) {
				return backoff.Permanent(err)
			}
			return err
		}

		if s.publisher != nil {
			if err := s.publisher.PublishEvent(ctx, event); err != nil {
				logger.ErrorCtx(ctx, err, zap.Uint64("listing_id", listingID))
			}
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "retrying listing retirement",
			zap.Uint64("listing_id", listingID),
			zap.Duration("backoff", next),
			zap.Error(err))
	})
}

// sleep sleeps for the given duration but can be interrupted by context cancellation
// Returns true if sleep completed normally, false if interrupted
func (s *expiredListingsSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}
