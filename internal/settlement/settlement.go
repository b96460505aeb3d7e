// Package settlement splits a gross sale price into the royalty owed to the
// creator and the net amount owed to the seller.
package settlement

import (
	"fmt"
	"math/big"

	"github.com/blocktease/market-engine/internal/domain"
)

var basisPointDenominator = big.NewInt(domain.MaxRoyaltyBasisPoints)

// Split divides a gross price into a royalty amount and a net-to-seller
// amount. royalty = floor(gross * royaltyBp / 10000) and net = gross -
// royalty, so royalty + net always equals gross.
func Split(gross *big.Int, royaltyBp uint32) (royalty, net *big.Int, err error) {
	if gross == nil || gross.Sign() < 0 {
		return nil, nil, fmt.Errorf("invalid gross price %s", gross)
	}
	if royaltyBp > domain.MaxRoyaltyBasisPoints {
		return nil, nil, &domain.InvalidRoyaltyError{BasisPoints: royaltyBp}
	}

	royalty = new(big.Int).Mul(gross, big.NewInt(int64(royaltyBp)))
	royalty.Quo(royalty, basisPointDenominator)
	net = new(big.Int).Sub(gross, royalty)

	return royalty, net, nil
}

// RoyaltyFor computes only the royalty part of a sale, matching the
// ERC2981-style royaltyInfo read.
func RoyaltyFor(salePrice *big.Int, royaltyBp uint32) (*big.Int, error) {
	royalty, _, err := Split(salePrice, royaltyBp)
	return royalty, err
}
