package schema

import (
	"time"
)

// Token represents the tokens table - one row per subscription token id, the
// unit of access right sold on the market
type Token struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenID is the 256-bit token id encoding (creatorId << 128 | subscriptionId), stored as a decimal string
	TokenID string `gorm:"column:token_id;not null;uniqueIndex;type:numeric(78,0)"`
	// CreatorID is the creator half of the token id
	CreatorID uint32 `gorm:"column:creator_id;not null;index:idx_tokens_creator_subscription,priority:1"`
	// SubscriptionID is the subscription half of the token id
	SubscriptionID uint32 `gorm:"column:subscription_id;not null;index:idx_tokens_creator_subscription,priority:2"`
	// ExpiresAt is the unix timestamp after which the subscription is expired; assigned at mint and never decreased
	ExpiresAt int64 `gorm:"column:expires_at;not null"`
	// RoyaltyReceiver is the address paid the royalty share on every resale
	RoyaltyReceiver string `gorm:"column:royalty_receiver;not null;type:text"`
	// RoyaltyBp is the royalty fee in basis points (10000 = 100%)
	RoyaltyBp uint32 `gorm:"column:royalty_bp;not null"`
	// CreatedAt is the timestamp when this token was first minted
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this token was last re-minted
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Balances []Balance `gorm:"foreignKey:TokenID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Token model
func (Token) TableName() string {
	return "tokens"
}
