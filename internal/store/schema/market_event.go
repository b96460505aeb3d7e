package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/blocktease/market-engine/internal/domain"
)

// MarketEvent represents the market_events table - the append-only journal of
// mint, list, sale, and delist events, written in the same transaction as the
// state change they describe
type MarketEvent struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// EventType identifies the kind of market event (mint, list, sale, delist)
	EventType domain.EventType `gorm:"column:event_type;not null;type:text;index"`
	// TokenID is the decimal token id the event relates to
	TokenID string `gorm:"column:token_id;not null;type:numeric(78,0);index"`
	// ListingID references the listing involved (nil for mint events)
	ListingID *uint64 `gorm:"column:listing_id;type:bigint"`
	// Seller is the seller's address (nil for mint events)
	Seller *string `gorm:"column:seller;type:text"`
	// Buyer is the buyer's address (nil for list/delist events)
	Buyer *string `gorm:"column:buyer;type:text"`
	// Price is the settled or listed amount (nil for delist events)
	Price *string `gorm:"column:price;type:numeric(78,0)"`
	// Currency identifies the settlement unit ("native" or "usd")
	Currency *string `gorm:"column:currency;type:text"`
	// Raw contains the complete event payload as published to the message broker
	Raw datatypes.JSON `gorm:"column:raw;type:jsonb"`
	// CreatedAt is the ledger commit time of the event
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the MarketEvent model
func (MarketEvent) TableName() string {
	return "market_events"
}
