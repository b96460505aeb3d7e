package domain

import "time"

// EventType represents the type of market event
type EventType string

const (
	EventTypeMint   EventType = "mint"
	EventTypeSale   EventType = "sale"
	EventTypeList   EventType = "list"
	EventTypeDelist EventType = "delist"
)

// MarketEvent represents a normalized market event.
// This is the standard format journaled by the ledger and published to NATS.
type MarketEvent struct {
	EventType      EventType `json:"event_type"`               // mint, sale, list, delist
	TokenID        string    `json:"token_id"`                 // decimal token id
	CreatorID      uint32    `json:"creator_id"`               // creator half of the token id
	SubscriptionID uint32    `json:"subscription_id"`          // subscription half of the token id
	ListingID      *uint64   `json:"listing_id,omitempty"`     // listing id (sale/list/delist)
	Seller         *string   `json:"seller,omitempty"`         // seller address (sale/list/delist)
	Buyer          *string   `json:"buyer,omitempty"`          // buyer address (mint/sale)
	Price          *string   `json:"price,omitempty"`          // settled amount (sale) or listed price (list)
	Currency       *string   `json:"currency,omitempty"`       // "native" or "usd"
	Timestamp      time.Time `json:"timestamp"`                // ledger commit time
}

// Valid reports whether the event carries the fields its type requires.
func (e *MarketEvent) Valid() bool {
	if e.TokenID == "" {
		return false
	}

	switch e.EventType {
	case EventTypeMint:
		return e.Buyer != nil && *e.Buyer != ""
	case EventTypeSale:
		return e.Seller != nil && e.Buyer != nil && e.Price != nil && e.ListingID != nil
	case EventTypeList:
		return e.Seller != nil && e.Price != nil && e.ListingID != nil
	case EventTypeDelist:
		return e.ListingID != nil
	default:
		return false
	}
}
