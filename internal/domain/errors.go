package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Every mutating operation either fully commits or fully aborts; these typed
// errors identify why an operation aborted. No component catches and
// continues — recovery is the caller's responsibility.

// AuthorizationError is returned when the caller lacks the required role or
// operator approval.
type AuthorizationError struct {
	Address common.Address
	Role    Role
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("account %s is missing role %s", e.Address.Hex(), e.Role.Name())
}

// NotOwnedError is returned when an account holds no balance of a token it
// tries to list or transfer.
type NotOwnedError struct {
	Address common.Address
	TokenID *big.Int
}

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("account %s does not own token %s", e.Address.Hex(), e.TokenID)
}

// NotListedError is returned for an unknown or already-retired listing id.
// A retired listing id is never reactivated, so the second of two competing
// purchases always observes this error.
type NotListedError struct {
	ListingID uint64
}

func (e *NotListedError) Error() string {
	return fmt.Sprintf("listing %d is not listed", e.ListingID)
}

// NotApprovedError is returned when the marketplace was never approved as an
// operator over the seller's balances.
type NotApprovedError struct {
	Owner    common.Address
	Operator common.Address
}

func (e *NotApprovedError) Error() string {
	return fmt.Sprintf("operator %s is not approved by %s", e.Operator.Hex(), e.Owner.Hex())
}

// InsufficientFundsError is returned when a payment is below the requirement
// or an account balance or allowance cannot cover a settlement.
type InsufficientFundsError struct {
	Need *big.Int
	Have *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %s, have %s", e.Need, e.Have)
}

// LengthMismatchError is returned when the parallel arrays of a batch
// operation are misaligned. Nothing is mutated.
type LengthMismatchError struct {
	CreatorIDs int
	Prices     int
	Addresses  int
	Royalties  int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("batch array length mismatch: creator_ids=%d prices=%d addresses=%d royalties=%d",
		e.CreatorIDs, e.Prices, e.Addresses, e.Royalties)
}

// InvalidRoyaltyError is returned when a royalty fee exceeds 100%.
type InvalidRoyaltyError struct {
	BasisPoints uint32
}

func (e *InvalidRoyaltyError) Error() string {
	return fmt.Sprintf("royalty fee %d exceeds %d basis points", e.BasisPoints, MaxRoyaltyBasisPoints)
}

// ExpiredSubscriptionError is returned when a token whose expiration has
// passed is listed or purchased.
type ExpiredSubscriptionError struct {
	TokenID   *big.Int
	ExpiredAt int64
}

func (e *ExpiredSubscriptionError) Error() string {
	return fmt.Sprintf("subscription token %s expired at %d", e.TokenID, e.ExpiredAt)
}
