package schema

import (
	"time"
)

// Balance represents the balances table - tracks per-holder quantities of a
// token id (multi-holder ownership, amounts typically 1)
type Balance struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenID references the token being held
	TokenID int64 `gorm:"column:token_id;not null;uniqueIndex:idx_balances_token_holder,priority:1"`
	// HolderAddress is the address of the holder
	HolderAddress string `gorm:"column:holder_address;not null;type:text;uniqueIndex:idx_balances_token_holder,priority:2"`
	// Amount is the quantity held (stored as string to support up to 78 digits); never negative
	Amount string `gorm:"column:amount;not null;type:numeric(78,0)"`
	// CreatedAt is the timestamp when this balance was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this balance was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Token Token `gorm:"foreignKey:TokenID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Balance model
func (Balance) TableName() string {
	return "balances"
}
