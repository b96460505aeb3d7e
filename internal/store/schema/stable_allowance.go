package schema

import (
	"time"
)

// StableAllowance represents the stable_allowances table - approve/transferFrom
// style spending allowances over stable-unit balances
type StableAllowance struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// OwnerAddress is the account whose funds may be pulled
	OwnerAddress string `gorm:"column:owner_address;not null;type:text;uniqueIndex:idx_stable_allowances_owner_spender,priority:1"`
	// SpenderAddress is the account allowed to pull the funds
	SpenderAddress string `gorm:"column:spender_address;not null;type:text;uniqueIndex:idx_stable_allowances_owner_spender,priority:2"`
	// Amount is the remaining allowance in 8-decimal stable units
	Amount string `gorm:"column:amount;not null;default:0;type:numeric(78,0)"`
	// UpdatedAt is the timestamp of the last approval or spend
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the StableAllowance model
func (StableAllowance) TableName() string {
	return "stable_allowances"
}
