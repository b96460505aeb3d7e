package dto

import (
	"time"

	"github.com/blocktease/market-engine/internal/store"
	"github.com/blocktease/market-engine/internal/store/schema"
)

// TokenResponse is the external representation of a subscription token
type TokenResponse struct {
	TokenID         string    `json:"token_id"`
	CreatorID       uint32    `json:"creator_id"`
	SubscriptionID  uint32    `json:"subscription_id"`
	ExpiresAt       int64     `json:"expires_at"`
	RoyaltyReceiver string    `json:"royalty_receiver"`
	RoyaltyBp       uint32    `json:"royalty_bp"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewTokenResponse converts a token row
func NewTokenResponse(token *schema.Token) *TokenResponse {
	return &TokenResponse{
		TokenID:         token.TokenID,
		CreatorID:       token.CreatorID,
		SubscriptionID:  token.SubscriptionID,
		ExpiresAt:       token.ExpiresAt,
		RoyaltyReceiver: token.RoyaltyReceiver,
		RoyaltyBp:       token.RoyaltyBp,
		CreatedAt:       token.CreatedAt,
		UpdatedAt:       token.UpdatedAt,
	}
}

// ModelConfigResponse is the external representation of a creator's config
type ModelConfigResponse struct {
	CreatorID         uint32    `json:"creator_id"`
	PriceUSD          string    `json:"price_usd"`
	AssociatedAddress string    `json:"associated_address"`
	RoyaltyBp         uint32    `json:"royalty_bp"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewModelConfigResponse converts a model config row
func NewModelConfigResponse(config *schema.ModelConfig) *ModelConfigResponse {
	return &ModelConfigResponse{
		CreatorID:         config.CreatorID,
		PriceUSD:          config.PriceUSD,
		AssociatedAddress: config.AssociatedAddress,
		RoyaltyBp:         config.RoyaltyBp,
		UpdatedAt:         config.UpdatedAt,
	}
}

// ListingResponse is the external representation of a listing
type ListingResponse struct {
	ListingID uint64     `json:"listing_id"`
	TokenID   string     `json:"token_id"`
	Seller    string     `json:"seller"`
	PriceUSD  string     `json:"price_usd"`
	IsListed  bool       `json:"is_listed"`
	CreatedAt time.Time  `json:"created_at"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
}

// NewListingResponse converts a listing row
func NewListingResponse(listing *schema.Listing) *ListingResponse {
	return &ListingResponse{
		ListingID: listing.ListingID,
		TokenID:   listing.TokenID,
		Seller:    listing.Seller,
		PriceUSD:  listing.PriceUSD,
		IsListed:  listing.IsListed,
		CreatedAt: listing.CreatedAt,
		RetiredAt: listing.RetiredAt,
	}
}

// PurchaseResponse reports the outcome of a settled purchase
type PurchaseResponse struct {
	Listing         *ListingResponse `json:"listing"`
	Token           *TokenResponse   `json:"token"`
	RoyaltyReceiver string           `json:"royalty_receiver"`
	RoyaltyAmount   string           `json:"royalty_amount"`
	NetAmount       string           `json:"net_amount"`
}

// NewPurchaseResponse converts a settlement result
func NewPurchaseResponse(result *store.SettlementResult) *PurchaseResponse {
	return &PurchaseResponse{
		Listing:         NewListingResponse(result.Listing),
		Token:           NewTokenResponse(result.Token),
		RoyaltyReceiver: result.RoyaltyReceiver,
		RoyaltyAmount:   result.RoyaltyAmount,
		NetAmount:       result.NetAmount,
	}
}

// BalanceResponse reports a holder's balance of a token
type BalanceResponse struct {
	TokenID string `json:"token_id"`
	Holder  string `json:"holder"`
	Amount  string `json:"amount"`
}

// RoyaltyResponse reports the royalty owed for a sale price
type RoyaltyResponse struct {
	TokenID   string `json:"token_id"`
	SalePrice string `json:"sale_price"`
	Receiver  string `json:"receiver"`
	Amount    string `json:"amount"`
}

// CountResponse reports the number of listing ids ever assigned
type CountResponse struct {
	Count uint64 `json:"count"`
}

// FundAccountResponse is the external representation of a fund account
type FundAccountResponse struct {
	Address       string `json:"address"`
	NativeBalance string `json:"native_balance"`
	StableBalance string `json:"stable_balance"`
}

// NewFundAccountResponse converts a fund account row
func NewFundAccountResponse(account *schema.FundAccount) *FundAccountResponse {
	return &FundAccountResponse{
		Address:       account.Address,
		NativeBalance: account.NativeBalance,
		StableBalance: account.StableBalance,
	}
}

// HasRoleResponse reports whether an address holds a role
type HasRoleResponse struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	HasRole bool   `json:"has_role"`
}

// EventResponse is the external representation of a journaled market event
type EventResponse struct {
	EventType string    `json:"event_type"`
	TokenID   string    `json:"token_id"`
	ListingID *uint64   `json:"listing_id,omitempty"`
	Seller    *string   `json:"seller,omitempty"`
	Buyer     *string   `json:"buyer,omitempty"`
	Price     *string   `json:"price,omitempty"`
	Currency  *string   `json:"currency,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEventResponses converts journaled event rows
func NewEventResponses(events []*schema.MarketEvent) []*EventResponse {
	out := make([]*EventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, &EventResponse{
			EventType: string(event.EventType),
			TokenID:   event.TokenID,
			ListingID: event.ListingID,
			Seller:    event.Seller,
			Buyer:     event.Buyer,
			Price:     event.Price,
			Currency:  event.Currency,
			CreatedAt: event.CreatedAt,
		})
	}
	return out
}

// BatchResponse reports the events journaled by an executed batch
type BatchResponse struct {
	Executed int              `json:"executed"`
	Events   []*EventResponse `json:"events"`
}
