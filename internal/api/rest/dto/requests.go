package dto

import (
	"fmt"

	"github.com/blocktease/market-engine/internal/domain"
)

// MAX_BATCH_ENTRIES caps the entries of batch endpoints
const MAX_BATCH_ENTRIES = 100

// UpdateBatchModelsRequest carries an admin batch update of creator model
// configs. The four arrays are parallel.
type UpdateBatchModelsRequest struct {
	Caller     string   `json:"caller"`
	CreatorIDs []uint32 `json:"creator_ids"`
	PricesUSD  []string `json:"prices_usd"`
	Addresses  []string `json:"addresses"`
	RoyaltyBps []uint32 `json:"royalty_bps"`
}

// Validate validates the request body
func (r *UpdateBatchModelsRequest) Validate() error {
	if !domain.ValidAddress(r.Caller) {
		return fmt.Errorf("invalid caller address: %s", r.Caller)
	}
	if len(r.CreatorIDs) == 0 {
		return fmt.Errorf("creator_ids is required")
	}
	if len(r.CreatorIDs) > MAX_BATCH_ENTRIES {
		return fmt.Errorf("maximum %d creators allowed", MAX_BATCH_ENTRIES)
	}
	// Array alignment is the service's call to judge; only validate the
	// entries that are present
	for _, price := range r.PricesUSD {
		if _, err := domain.ParseAmount(price); err != nil {
			return err
		}
	}
	for _, address := range r.Addresses {
		if !domain.ValidAddress(address) {
			return fmt.Errorf("invalid address: %s", address)
		}
	}
	return nil
}

// MintTokenRequest carries a mint of subscription token editions
type MintTokenRequest struct {
	Caller          string `json:"caller"`
	To              string `json:"to"`
	CreatorID       uint32 `json:"creator_id"`
	SubscriptionID  uint32 `json:"subscription_id"`
	Amount          string `json:"amount"`
	DurationSeconds int64  `json:"duration_seconds"`
	RoyaltyBp       uint32 `json:"royalty_bp"`
	RoyaltyReceiver string `json:"royalty_receiver"`
	Data            []byte `json:"data,omitempty"`
}

// Validate validates the request body
func (r *MintTokenRequest) Validate() error {
	if !domain.ValidAddress(r.Caller) {
		return fmt.Errorf("invalid caller address: %s", r.Caller)
	}
	if !domain.ValidAddress(r.To) {
		return fmt.Errorf("invalid recipient address: %s", r.To)
	}
	if !domain.ValidAddress(r.RoyaltyReceiver) {
		return fmt.Errorf("invalid royalty receiver address: %s", r.RoyaltyReceiver)
	}
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return fmt.Errorf("amount must be positive")
	}
	if r.DurationSeconds <= 0 {
		return fmt.Errorf("duration_seconds must be positive")
	}
	return nil
}

// SetApprovalRequest grants or revokes an operator over the owner's balances
type SetApprovalRequest struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

// Validate validates the request body
func (r *SetApprovalRequest) Validate() error {
	if !domain.ValidAddress(r.Owner) {
		return fmt.Errorf("invalid owner address: %s", r.Owner)
	}
	if !domain.ValidAddress(r.Operator) {
		return fmt.Errorf("invalid operator address: %s", r.Operator)
	}
	return nil
}

// CreateListingRequest lists a held token at a fixed USD price
type CreateListingRequest struct {
	Seller   string `json:"seller"`
	TokenID  string `json:"token_id"`
	PriceUSD string `json:"price_usd"`
}

// Validate validates the request body
func (r *CreateListingRequest) Validate() error {
	if !domain.ValidAddress(r.Seller) {
		return fmt.Errorf("invalid seller address: %s", r.Seller)
	}
	if _, err := domain.ParseTokenID(r.TokenID); err != nil {
		return err
	}
	price, err := domain.ParseAmount(r.PriceUSD)
	if err != nil {
		return err
	}
	if price.Sign() == 0 {
		return fmt.Errorf("price_usd must be positive")
	}
	return nil
}

// BuyRequest purchases a listing with the native coin; value is the attached
// payment in wei units
type BuyRequest struct {
	Buyer string `json:"buyer"`
	Value string `json:"value"`
}

// Validate validates the request body
func (r *BuyRequest) Validate() error {
	if !domain.ValidAddress(r.Buyer) {
		return fmt.Errorf("invalid buyer address: %s", r.Buyer)
	}
	if _, err := domain.ParseAmount(r.Value); err != nil {
		return err
	}
	return nil
}

// BuyUSDCRequest purchases a listing in the stable unit at the listed price
type BuyUSDCRequest struct {
	Buyer string `json:"buyer"`
}

// Validate validates the request body
func (r *BuyUSDCRequest) Validate() error {
	if !domain.ValidAddress(r.Buyer) {
		return fmt.Errorf("invalid buyer address: %s", r.Buyer)
	}
	return nil
}

// FundCreditRequest credits an account's native or stable balance; admin only
type FundCreditRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Validate validates the request body
func (r *FundCreditRequest) Validate() error {
	if !domain.ValidAddress(r.Caller) {
		return fmt.Errorf("invalid caller address: %s", r.Caller)
	}
	if !domain.ValidAddress(r.To) {
		return fmt.Errorf("invalid recipient address: %s", r.To)
	}
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// StableApproveRequest sets the spender's allowance over the owner's stable
// balance
type StableApproveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// Validate validates the request body
func (r *StableApproveRequest) Validate() error {
	if !domain.ValidAddress(r.Owner) {
		return fmt.Errorf("invalid owner address: %s", r.Owner)
	}
	if !domain.ValidAddress(r.Spender) {
		return fmt.Errorf("invalid spender address: %s", r.Spender)
	}
	if _, err := domain.ParseAmount(r.Amount); err != nil {
		return err
	}
	return nil
}

// RoleRequest grants or revokes a role; the caller must hold the admin role
type RoleRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	Role    string `json:"role"`
}

// Validate validates the request body
func (r *RoleRequest) Validate() error {
	if !domain.ValidAddress(r.Caller) {
		return fmt.Errorf("invalid caller address: %s", r.Caller)
	}
	if !domain.ValidAddress(r.Address) {
		return fmt.Errorf("invalid address: %s", r.Address)
	}
	if _, err := domain.ParseRole(r.Role); err != nil {
		return err
	}
	return nil
}

// BatchCallRequest is one call of an atomic batch; exactly one field must be
// set
type BatchCallRequest struct {
	ApproveStable *StableApproveRequest `json:"approve_stable,omitempty"`
	SetApproval   *SetApprovalRequest   `json:"set_approval,omitempty"`
	CreateListing *CreateListingRequest `json:"create_listing,omitempty"`
	BuyUSDC       *BatchBuyUSDCRequest  `json:"buy_usdc,omitempty"`
	Transfer      *TransferRequest      `json:"transfer,omitempty"`
}

// BatchBuyUSDCRequest purchases a listing in the stable unit inside a batch
type BatchBuyUSDCRequest struct {
	Buyer     string `json:"buyer"`
	ListingID uint64 `json:"listing_id"`
}

// Validate validates the request body
func (r *BatchBuyUSDCRequest) Validate() error {
	if !domain.ValidAddress(r.Buyer) {
		return fmt.Errorf("invalid buyer address: %s", r.Buyer)
	}
	return nil
}

// TransferRequest moves token balance between holders
type TransferRequest struct {
	Caller  string `json:"caller"`
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"token_id"`
	Amount  string `json:"amount"`
}

// Validate validates the request body
func (r *TransferRequest) Validate() error {
	if !domain.ValidAddress(r.Caller) {
		return fmt.Errorf("invalid caller address: %s", r.Caller)
	}
	if !domain.ValidAddress(r.From) {
		return fmt.Errorf("invalid sender address: %s", r.From)
	}
	if !domain.ValidAddress(r.To) {
		return fmt.Errorf("invalid recipient address: %s", r.To)
	}
	if _, err := domain.ParseTokenID(r.TokenID); err != nil {
		return err
	}
	amount, err := domain.ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// BatchRequest carries the calls of an atomic batch, executed in order
type BatchRequest struct {
	Calls []BatchCallRequest `json:"calls"`
}

// Validate validates the request body
func (r *BatchRequest) Validate() error {
	if len(r.Calls) == 0 {
		return fmt.Errorf("calls is required")
	}
	if len(r.Calls) > MAX_BATCH_ENTRIES {
		return fmt.Errorf("maximum %d calls allowed", MAX_BATCH_ENTRIES)
	}
	for i, call := range r.Calls {
		set := 0
		var err error
		if call.ApproveStable != nil {
			set++
			err = call.ApproveStable.Validate()
		}
		if call.SetApproval != nil {
			set++
			err = call.SetApproval.Validate()
		}
		if call.CreateListing != nil {
			set++
			err = call.CreateListing.Validate()
		}
		if call.BuyUSDC != nil {
			set++
			err = call.BuyUSDC.Validate()
		}
		if call.Transfer != nil {
			set++
			err = call.Transfer.Validate()
		}
		if set != 1 {
			return fmt.Errorf("call %d must set exactly one operation", i)
		}
		if err != nil {
			return fmt.Errorf("call %d: %w", i, err)
		}
	}
	return nil
}
