package schema

import (
	"time"
)

// OperatorApproval represents the operator_approvals table - an explicit
// capability delegation letting an operator move a holder's token balances
type OperatorApproval struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// OwnerAddress is the holder delegating control of its balances
	OwnerAddress string `gorm:"column:owner_address;not null;type:text;uniqueIndex:idx_operator_approvals_owner_operator,priority:1"`
	// OperatorAddress is the account allowed to transfer on the owner's behalf
	OperatorAddress string `gorm:"column:operator_address;not null;type:text;uniqueIndex:idx_operator_approvals_owner_operator,priority:2"`
	// Approved reports whether the delegation is currently active
	Approved bool `gorm:"column:approved;not null;default:false"`
	// UpdatedAt is the timestamp of the last approval change
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the OperatorApproval model
func (OperatorApproval) TableName() string {
	return "operator_approvals"
}
