package settlement

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocktease/market-engine/internal/domain"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name            string
		gross           int64
		royaltyBp       uint32
		expectedRoyalty int64
		expectedNet     int64
	}{
		{name: "5% of one dollar", gross: 100000000, royaltyBp: 500, expectedRoyalty: 5000000, expectedNet: 95000000},
		{name: "zero fee", gross: 100000000, royaltyBp: 0, expectedRoyalty: 0, expectedNet: 100000000},
		{name: "full fee", gross: 100000000, royaltyBp: 10000, expectedRoyalty: 100000000, expectedNet: 0},
		{name: "floor on odd amounts", gross: 3, royaltyBp: 5000, expectedRoyalty: 1, expectedNet: 2},
		{name: "tiny price rounds royalty to zero", gross: 1, royaltyBp: 500, expectedRoyalty: 0, expectedNet: 1},
		{name: "zero gross", gross: 0, royaltyBp: 500, expectedRoyalty: 0, expectedNet: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			royalty, net, err := Split(big.NewInt(tt.gross), tt.royaltyBp)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedRoyalty, royalty.Int64())
			assert.Equal(t, tt.expectedNet, net.Int64())
		})
	}
}

func TestSplitConserves(t *testing.T) {
	// royalty + net == gross for a spread of prices and fees
	prices := []int64{1, 2, 99, 100000000, 123456789, 1e18}
	fees := []uint32{0, 1, 250, 500, 3333, 9999, 10000}

	for _, price := range prices {
		for _, fee := range fees {
			gross := big.NewInt(price)
			royalty, net, err := Split(gross, fee)
			require.NoError(t, err)

			sum := new(big.Int).Add(royalty, net)
			assert.Zero(t, sum.Cmp(gross), "price=%d fee=%d", price, fee)
			assert.True(t, royalty.Sign() >= 0)
			assert.True(t, net.Sign() >= 0)
		}
	}
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	_, _, err := Split(big.NewInt(100), 10001)
	var royaltyErr *domain.InvalidRoyaltyError
	require.ErrorAs(t, err, &royaltyErr)
	assert.Equal(t, uint32(10001), royaltyErr.BasisPoints)

	_, _, err = Split(nil, 500)
	assert.Error(t, err)

	_, _, err = Split(big.NewInt(-1), 500)
	assert.Error(t, err)
}

func TestRoyaltyFor(t *testing.T) {
	royalty, err := RoyaltyFor(big.NewInt(10000), 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), royalty.Int64())
}
