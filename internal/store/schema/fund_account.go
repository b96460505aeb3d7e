package schema

import (
	"time"
)

// FundAccount represents the fund_accounts table - per-address balances in
// the native coin (18 decimals) and the stable unit (8 decimals)
type FundAccount struct {
	// Address is the account address
	Address string `gorm:"column:address;primaryKey;type:text"`
	// NativeBalance is the native-coin balance in wei-style units (stored as string to support up to 78 digits)
	NativeBalance string `gorm:"column:native_balance;not null;default:0;type:numeric(78,0)"`
	// StableBalance is the stable-unit balance in 8-decimal fixed-point units
	StableBalance string `gorm:"column:stable_balance;not null;default:0;type:numeric(78,0)"`
	// UpdatedAt is the timestamp of the last balance change
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
	// CreatedAt is the timestamp when the account row was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the FundAccount model
func (FundAccount) TableName() string {
	return "fund_accounts"
}
