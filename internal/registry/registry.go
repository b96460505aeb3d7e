// Package registry implements the token registry: minting, transfers,
// balances, royalty info, and operator approvals.
package registry

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"github.com/blocktease/market-engine/internal/adapter"
	"github.com/blocktease/market-engine/internal/domain"
	"github.com/blocktease/market-engine/internal/logger"
	"github.com/blocktease/market-engine/internal/messaging"
	"github.com/blocktease/market-engine/internal/settlement"
	"github.com/blocktease/market-engine/internal/store"
	"github.com/blocktease/market-engine/internal/store/schema"
)

// MintParams carries the parameters of a mint request
type MintParams struct {
	Caller          string
	To              string
	CreatorID       uint32
	SubscriptionID  uint32
	Amount          string
	DurationSeconds int64
	RoyaltyBp       uint32
	RoyaltyReceiver string
	Data            []byte
}

// Service implements token registry operations over the store
type Service struct {
	store     store.Store
	publisher messaging.Publisher
	clock     adapter.Clock
}

// NewService creates a new registry service
func NewService(s store.Store, publisher messaging.Publisher, clock adapter.Clock) *Service {
	return &Service{
		store:     s,
		publisher: publisher,
		clock:     clock,
	}
}

// Mint mints amount editions of the (creator, subscription) token to the
// recipient. Re-minting an existing token extends its expiration and
// refreshes the royalty terms. The mint event is journaled with the mint and
// published after commit.
func (s *Service) Mint(ctx context.Context, params MintParams) (*schema.Token, error) {
	result, err := s.store.MintToken(ctx, store.MintTokenInput{
		Caller:          params.Caller,
		To:              params.To,
		CreatorID:       params.CreatorID,
		SubscriptionID:  params.SubscriptionID,
		Amount:          params.Amount,
		DurationSeconds: params.DurationSeconds,
		RoyaltyBp:       params.RoyaltyBp,
		RoyaltyReceiver: params.RoyaltyReceiver,
		Data:            params.Data,
		Now:             s.clock.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result.Event)
	return result.Token, nil
}

// Transfer moves token balance between holders. The caller must be the
// sender or an operator the sender approved.
func (s *Service) Transfer(ctx context.Context, caller, from, to, tokenID, amount string) error {
	return s.store.TransferToken(ctx, store.TransferTokenInput{
		Caller:  caller,
		From:    from,
		To:      to,
		TokenID: tokenID,
		Amount:  amount,
	})
}

// BalanceOf returns the holder's balance of a token as a decimal string
func (s *Service) BalanceOf(ctx context.Context, tokenID, holder string) (string, error) {
	return s.store.GetBalance(ctx, tokenID, holder)
}

// GetToken retrieves a token by decimal token id; nil when unknown
func (s *Service) GetToken(ctx context.Context, tokenID string) (*schema.Token, error) {
	return s.store.GetToken(ctx, tokenID)
}

// RoyaltyInfo returns the royalty receiver and amount owed for a sale at the
// given price, per the token's recorded royalty terms
func (s *Service) RoyaltyInfo(ctx context.Context, tokenID string, salePrice *big.Int) (string, *big.Int, error) {
	token, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return "", nil, err
	}
	if token == nil {
		id, err := domain.ParseTokenID(tokenID)
		if err != nil {
			return "", nil, err
		}
		return "", nil, &domain.NotOwnedError{TokenID: id}
	}

	royalty, err := settlement.RoyaltyFor(salePrice, token.RoyaltyBp)
	if err != nil {
		return "", nil, err
	}
	return token.RoyaltyReceiver, royalty, nil
}

// SetApprovalForAll grants or revokes an operator over the owner's balances
func (s *Service) SetApprovalForAll(ctx context.Context, owner, operator string, approved bool) error {
	return s.store.SetOperatorApproval(ctx, owner, operator, approved)
}

// IsApprovedForAll reports whether the operator may move the owner's balances
func (s *Service) IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error) {
	return s.store.IsApprovedForAll(ctx, owner, operator)
}

// GetTokenEvents returns journaled market events for a token, newest first
func (s *Service) GetTokenEvents(ctx context.Context, tokenID string, limit, offset int) ([]*schema.MarketEvent, error) {
	return s.store.GetMarketEvents(ctx, tokenID, limit, offset)
}

// publish sends a committed event to the broker. The journal row is the
// source of truth; a failed publish is logged, not surfaced.
func (s *Service) publish(ctx context.Context, event *domain.MarketEvent) {
	if s.publisher == nil || event == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("event_type", string(event.EventType)),
			zap.String("token_id", event.TokenID))
	}
}
