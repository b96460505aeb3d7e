// Package funds manages native-coin and stable-unit account balances: the
// payment rails the marketplace settles over. Stable-unit issuance follows
// mint/approve semantics; native deposits are admin-gated credits.
package funds

import (
	"context"

	"github.com/blocktease/market-engine/internal/store"
	"github.com/blocktease/market-engine/internal/store/schema"
)

// Service manages fund accounts and stable allowances
type Service struct {
	store store.Store
}

// NewService creates a new funds service
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// DepositNative credits an address's native-coin balance; admin only
func (s *Service) DepositNative(ctx context.Context, caller, to, amount string) error {
	return s.store.DepositNative(ctx, store.FundInput{Caller: caller, To: to, Amount: amount})
}

// MintStable credits an address's stable-unit balance; admin only
func (s *Service) MintStable(ctx context.Context, caller, to, amount string) error {
	return s.store.MintStable(ctx, store.FundInput{Caller: caller, To: to, Amount: amount})
}

// ApproveStable sets the spender's allowance over the owner's stable balance
func (s *Service) ApproveStable(ctx context.Context, owner, spender, amount string) error {
	return s.store.ApproveStable(ctx, owner, spender, amount)
}

// GetAccount retrieves an address's fund account; zero balances when unknown
func (s *Service) GetAccount(ctx context.Context, address string) (*schema.FundAccount, error) {
	return s.store.GetFundAccount(ctx, address)
}

// GetStableAllowance returns the remaining allowance as a decimal string
func (s *Service) GetStableAllowance(ctx context.Context, owner, spender string) (string, error) {
	return s.store.GetStableAllowance(ctx, owner, spender)
}
