package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// USDDecimals is the number of decimals of the fixed-point USD unit used for
// model prices, listing prices, and stable-unit balances (100000000 == $1).
const USDDecimals = 8

// NativeDecimals is the number of decimals of the native coin unit.
const NativeDecimals = 18

// MaxRoyaltyBasisPoints is the denominator of royalty fees (10000 == 100%).
const MaxRoyaltyBasisPoints = 10000

// Role identifies an access-control role. Role ids are keccak256 hashes of
// the role name; the admin role is the zero hash.
type Role common.Hash

var (
	// RoleAdmin can grant and revoke any role, including itself, and manages
	// model configurations and fund issuance.
	RoleAdmin = Role{}

	// RoleMinter can mint subscription tokens.
	RoleMinter = Role(crypto.Keccak256Hash([]byte("MINTER_ROLE")))
)

// String returns the hex representation of the role id.
func (r Role) String() string {
	return common.Hash(r).Hex()
}

// Name returns a human-readable role name for known roles.
func (r Role) Name() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleMinter:
		return "minter"
	default:
		return r.String()
	}
}

// ParseRole resolves a role by name or hex id.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "admin":
		return RoleAdmin, nil
	case "minter":
		return RoleMinter, nil
	}
	if !strings.HasPrefix(s, "0x") || len(s) != 2+common.HashLength*2 {
		return Role{}, fmt.Errorf("unknown role %q", s)
	}
	return Role(common.HexToHash(s)), nil
}

// subscriptionIDBits is the shift applied to the creator id when packing a
// token id: tokenId = creatorId << 128 | subscriptionId.
const subscriptionIDBits = 128

// EncodeTokenID derives the token id for a (creatorId, subscriptionId) pair.
// The id occupies 256 bits: the creator id in the high half, the subscription
// id in the low half.
func EncodeTokenID(creatorID, subscriptionID uint32) *big.Int {
	id := new(big.Int).SetUint64(uint64(creatorID))
	id.Lsh(id, subscriptionIDBits)
	return id.Or(id, new(big.Int).SetUint64(uint64(subscriptionID)))
}

// DecodeTokenID recovers the (creatorId, subscriptionId) pair from a token
// id. It fails when either half exceeds 32 bits, which means the id was not
// produced by EncodeTokenID.
func DecodeTokenID(tokenID *big.Int) (creatorID, subscriptionID uint32, err error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return 0, 0, fmt.Errorf("invalid token id")
	}

	low := new(big.Int).And(tokenID, maxUint128)
	high := new(big.Int).Rsh(tokenID, subscriptionIDBits)

	if !low.IsUint64() || low.Uint64() > maxUint32 {
		return 0, 0, fmt.Errorf("token id %s: subscription id overflows 32 bits", tokenID)
	}
	if !high.IsUint64() || high.Uint64() > maxUint32 {
		return 0, 0, fmt.Errorf("token id %s: creator id overflows 32 bits", tokenID)
	}

	return uint32(high.Uint64()), uint32(low.Uint64()), nil
}

// ParseTokenID parses a decimal token id string as stored in the ledger.
func ParseTokenID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid token id %q", s)
	}
	return id, nil
}

const maxUint32 = 1<<32 - 1

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// ParseAmount parses a non-negative decimal amount string as stored in
// numeric(78,0) columns.
func ParseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

// NormalizeAddress normalizes a hex address to its checksummed form.
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// ValidAddress reports whether the string is a well-formed hex address.
func ValidAddress(address string) bool {
	return common.IsHexAddress(address)
}
