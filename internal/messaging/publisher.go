package messaging

import (
	"context"

	"github.com/blocktease/market-engine/internal/domain"
)

// Publisher publishes committed market events to downstream consumers.
// Publishing happens after the producing transaction commits; the journal in
// market_events remains the source of truth when a publish is lost.
type Publisher interface {
	// PublishEvent publishes a market event
	PublishEvent(ctx context.Context, event *domain.MarketEvent) error

	// Close closes the underlying connection
	Close()
}
