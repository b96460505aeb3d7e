package schema

import (
	"time"
)

// RoleAssignment represents the role_assignments table - the (address, role)
// capability table checked at the start of every mutating operation
type RoleAssignment struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Address is the account the role is assigned to
	Address string `gorm:"column:address;not null;type:text;uniqueIndex:idx_role_assignments_address_role,priority:1"`
	// Role is the hex role id (keccak256 of the role name; zero hash for admin)
	Role string `gorm:"column:role;not null;type:text;uniqueIndex:idx_role_assignments_address_role,priority:2"`
	// Granted reports whether the role is currently held
	Granted bool `gorm:"column:granted;not null;default:false"`
	// UpdatedAt is the timestamp of the last grant or revoke
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the RoleAssignment model
func (RoleAssignment) TableName() string {
	return "role_assignments"
}
