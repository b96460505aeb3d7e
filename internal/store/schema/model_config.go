package schema

import (
	"time"
)

// ModelConfig represents the model_configs table - per-creator pricing and
// royalty configuration, upserted in bulk by the admin
type ModelConfig struct {
	// CreatorID is the creator (model) identifier
	CreatorID uint32 `gorm:"column:creator_id;primaryKey"`
	// PriceUSD is the subscription price in 8-decimal fixed-point USD units
	PriceUSD string `gorm:"column:price_usd;not null;type:numeric(78,0)"`
	// AssociatedAddress is the creator's payout address
	AssociatedAddress string `gorm:"column:associated_address;not null;type:text"`
	// RoyaltyBp is the creator's resale royalty in basis points
	RoyaltyBp uint32 `gorm:"column:royalty_bp;not null"`
	// UpdatedAt is the timestamp of the last batch update touching this row
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
	// CreatedAt is the timestamp when this config was first created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the ModelConfig model
func (ModelConfig) TableName() string {
	return "model_configs"
}
