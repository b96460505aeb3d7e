// Package access wraps the store's role table with the grant/revoke surface.
// Role checks that guard mutations run inside the store transaction of the
// mutation itself; this service only carries the administrative operations
// and read paths.
package access

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blocktease/market-engine/internal/domain"
	"github.com/blocktease/market-engine/internal/store"
)

// Service manages role assignments
type Service struct {
	store store.Store
}

// NewService creates a new access service
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// GrantRole grants a role to an address; the caller must hold the admin role
func (s *Service) GrantRole(ctx context.Context, caller, address string, role domain.Role) error {
	return s.store.SetRole(ctx, store.SetRoleInput{
		Caller:  caller,
		Address: address,
		Role:    role,
		Granted: true,
	})
}

// RevokeRole revokes a role from an address; the caller must hold the admin role
func (s *Service) RevokeRole(ctx context.Context, caller, address string, role domain.Role) error {
	return s.store.SetRole(ctx, store.SetRoleInput{
		Caller:  caller,
		Address: address,
		Role:    role,
		Granted: false,
	})
}

// HasRole reports whether the address currently holds the role
func (s *Service) HasRole(ctx context.Context, address string, role domain.Role) (bool, error) {
	return s.store.HasRole(ctx, address, role)
}

// RequireRole fails with AuthorizationError when the address lacks the role
func (s *Service) RequireRole(ctx context.Context, address string, role domain.Role) error {
	ok, err := s.store.HasRole(ctx, address, role)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.AuthorizationError{Address: common.HexToAddress(address), Role: role}
	}
	return nil
}
