// Package batch executes several marketplace calls inside one ledger
// transaction, so approve-then-buy flows land atomically.
package batch

import (
	"context"

	"go.uber.org/zap"

	"github.com/blocktease/market-engine/internal/domain"
	"github.com/blocktease/market-engine/internal/logger"
	"github.com/blocktease/market-engine/internal/messaging"
	"github.com/blocktease/market-engine/internal/store"
)

// Service executes atomic call batches
type Service struct {
	store     store.Store
	publisher messaging.Publisher
}

// NewService creates a new batch service
func NewService(s store.Store, publisher messaging.Publisher) *Service {
	return &Service{store: s, publisher: publisher}
}

// Execute runs the calls in order inside one transaction. Any failure aborts
// them all; on success the events the calls journaled are published.
func (s *Service) Execute(ctx context.Context, calls []store.BatchCall) ([]*domain.MarketEvent, error) {
	events, err := s.store.ExecuteBatch(ctx, calls)
	if err != nil {
		return nil, err
	}

	for _, event := range events {
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishEvent(ctx, event); err != nil {
			logger.ErrorCtx(ctx, err,
				zap.String("event_type", string(event.EventType)),
				zap.String("token_id", event.TokenID))
		}
	}

	return events, nil
}
