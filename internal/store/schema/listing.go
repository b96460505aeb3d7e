package schema

import (
	"time"
)

// Listing represents the listings table - an open offer to sell a held token
// at a fixed USD price. Listing ids are assigned strictly increasing from the
// listings counter; a retired id is never reused or reactivated.
type Listing struct {
	// ListingID is the monotonic listing id (0-based, assigned at creation)
	ListingID uint64 `gorm:"column:listing_id;primaryKey;autoIncrement:false"`
	// TokenID is the decimal token id being sold
	TokenID string `gorm:"column:token_id;not null;type:numeric(78,0);index"`
	// Seller is the address that created the listing and held the token at listing time
	Seller string `gorm:"column:seller;not null;type:text;index"`
	// PriceUSD is the asking price in 8-decimal fixed-point USD units; always positive
	PriceUSD string `gorm:"column:price_usd;not null;type:numeric(78,0)"`
	// IsListed is true while the offer is open; flipped to false exactly once by a successful purchase or a delist
	IsListed bool `gorm:"column:is_listed;not null;default:true;index"`
	// CreatedAt is the timestamp when the listing was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// RetiredAt is the timestamp when the listing was retired (nil while open)
	RetiredAt *time.Time `gorm:"column:retired_at;type:timestamptz"`
}

// TableName specifies the table name for the Listing model
func (Listing) TableName() string {
	return "listings"
}
