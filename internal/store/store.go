package store

import (
	"context"

	"github.com/blocktease/market-engine/internal/domain"
	"github.com/blocktease/market-engine/internal/store/schema"
)

// Store defines the interface for ledger operations. Every mutating method
// runs as a single database transaction: it either fully commits, including
// its journaled events, or fully aborts with no observable change.
type Store interface {
	// EnsureGenesis grants the admin and minter roles to the given addresses
	// and initializes the listings counter. Idempotent.
	EnsureGenesis(ctx context.Context, admin, minter string) error

	// HasRole reports whether the address currently holds the role
	HasRole(ctx context.Context, address string, role domain.Role) (bool, error)
	// SetRole grants or revokes a role; the caller must hold the admin role
	SetRole(ctx context.Context, input SetRoleInput) error

	// UpsertModelConfigs overwrites the model configs for the given creators
	// in one transaction; the caller must hold the admin role
	UpsertModelConfigs(ctx context.Context, caller string, configs []ModelConfigInput) error
	// GetModelConfig retrieves a single creator's config
	GetModelConfig(ctx context.Context, creatorID uint32) (*schema.ModelConfig, error)
	// ListModelConfigs retrieves all creator configs ordered by creator id
	ListModelConfigs(ctx context.Context) ([]*schema.ModelConfig, error)

	// MintToken mints a subscription token: upserts the token row (extending
	// the expiration, never shrinking it), stores royalty info, credits the
	// recipient's balance, and journals a mint event. The caller must hold
	// the minter role.
	MintToken(ctx context.Context, input MintTokenInput) (*MintResult, error)
	// TransferToken moves token balance between holders; the caller must be
	// the sender or an approved operator
	TransferToken(ctx context.Context, input TransferTokenInput) error
	// GetToken retrieves a token row by decimal token id
	GetToken(ctx context.Context, tokenID string) (*schema.Token, error)
	// GetBalance returns the holder's balance of a token as a decimal string
	// ("0" when no row exists)
	GetBalance(ctx context.Context, tokenID, holder string) (string, error)
	// SetOperatorApproval grants or revokes an operator over the owner's balances
	SetOperatorApproval(ctx context.Context, owner, operator string, approved bool) error
	// IsApprovedForAll reports whether the operator may move the owner's balances
	IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error)

	// CreateListing creates a listing with the next monotonic id
	CreateListing(ctx context.Context, input CreateListingInput) (*schema.Listing, *domain.MarketEvent, error)
	// GetListing retrieves a listing by id
	GetListing(ctx context.Context, listingID uint64) (*schema.Listing, error)
	// CountListings returns the total number of listing ids ever assigned
	CountListings(ctx context.Context) (uint64, error)
	// GetExpiredOpenListings returns open listings whose token expired before now
	GetExpiredOpenListings(ctx context.Context, now int64, limit int) ([]*schema.Listing, error)
	// RetireListing flips an open listing to retired and journals a delist
	// event; fails with NotListedError when already retired
	RetireListing(ctx context.Context, listingID uint64, now int64) (*domain.MarketEvent, error)

	// SettleNativePurchase settles a purchase paid in the native coin: debits
	// the buyer's native balance by the attached value, pays royalty and net
	// shares, moves one token edition, retires the listing, and journals a
	// sale event
	SettleNativePurchase(ctx context.Context, input NativeSettlementInput) (*SettlementResult, error)
	// SettleStablePurchase settles a purchase paid in the stable unit at the
	// listed face value, pulled via the buyer's allowance to the marketplace
	SettleStablePurchase(ctx context.Context, input StableSettlementInput) (*SettlementResult, error)

	// DepositNative credits an address's native-coin balance; admin only
	DepositNative(ctx context.Context, input FundInput) error
	// MintStable credits an address's stable-unit balance; admin only
	MintStable(ctx context.Context, input FundInput) error
	// ApproveStable sets the spender's allowance over the owner's stable balance
	ApproveStable(ctx context.Context, owner, spender, amount string) error
	// GetFundAccount retrieves an address's fund account (zero balances when absent)
	GetFundAccount(ctx context.Context, address string) (*schema.FundAccount, error)
	// GetStableAllowance returns the remaining allowance as a decimal string
	GetStableAllowance(ctx context.Context, owner, spender string) (string, error)

	// ExecuteBatch runs the calls in order inside one transaction; any
	// failure aborts them all. Returns the events journaled by the calls.
	ExecuteBatch(ctx context.Context, calls []BatchCall) ([]*domain.MarketEvent, error)

	// GetMarketEvents returns journaled events for a token, newest first
	GetMarketEvents(ctx context.Context, tokenID string, limit, offset int) ([]*schema.MarketEvent, error)
}

// SetRoleInput carries a role grant or revoke
type SetRoleInput struct {
	Caller  string
	Address string
	Role    domain.Role
	Granted bool
}

// ModelConfigInput is one entry of an admin batch model update
type ModelConfigInput struct {
	CreatorID         uint32
	PriceUSD          string
	AssociatedAddress string
	RoyaltyBp         uint32
}

// MintTokenInput carries the parameters of a mint
type MintTokenInput struct {
	Caller          string
	To              string
	CreatorID       uint32
	SubscriptionID  uint32
	Amount          string
	DurationSeconds int64
	RoyaltyBp       uint32
	RoyaltyReceiver string
	Data            []byte
	Now             int64
}

// MintResult reports the outcome of a mint
type MintResult struct {
	Token *schema.Token
	Event *domain.MarketEvent
}

// TransferTokenInput carries an operator-gated balance transfer
type TransferTokenInput struct {
	Caller  string
	From    string
	To      string
	TokenID string
	Amount  string
}

// CreateListingInput carries the parameters of listNFT
type CreateListingInput struct {
	Seller string
	// Marketplace is the operator identity the seller must have approved
	Marketplace string
	TokenID     string
	PriceUSD    string
	Now         int64
}

// NativeSettlementInput carries a native-coin purchase
type NativeSettlementInput struct {
	Buyer     string
	ListingID uint64
	// Value is the attached native payment in wei units; the whole value is
	// settled (split between royalty receiver and seller)
	Value string
	// Required is the minimum acceptable payment in wei units, converted from
	// the listed USD price by the caller; a Value below it aborts the purchase
	Required string
	Now      int64
}

// StableSettlementInput carries a stable-unit purchase
type StableSettlementInput struct {
	Buyer     string
	ListingID uint64
	// Marketplace is the spender of the buyer's stable allowance
	Marketplace string
	Now         int64
}

// SettlementResult reports the outcome of a purchase
type SettlementResult struct {
	Listing         *schema.Listing
	Token           *schema.Token
	RoyaltyReceiver string
	RoyaltyAmount   string
	NetAmount       string
	Event           *domain.MarketEvent
}

// FundInput carries an admin-gated fund credit
type FundInput struct {
	Caller string
	To     string
	Amount string
}

// BatchCall is one call of an atomic batch; exactly one field must be set
type BatchCall struct {
	ApproveStable *ApproveStableCall
	SetApproval   *SetApprovalCall
	CreateListing *CreateListingInput
	SettleStable  *StableSettlementInput
	TransferToken *TransferTokenInput
}

// ApproveStableCall sets a stable-unit allowance inside a batch
type ApproveStableCall struct {
	Owner   string
	Spender string
	Amount  string
}

// SetApprovalCall sets an operator approval inside a batch
type SetApprovalCall struct {
	Owner    string
	Operator string
	Approved bool
}
