// Package pricefeed quotes the native coin in USD for converting listed USD
// prices into required native payments. The quote is fetched outside the
// settlement transaction; the settlement itself only sees the converted
// requirement.
package pricefeed

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blocktease/market-engine/internal/adapter"
	"github.com/blocktease/market-engine/internal/domain"
)

// Quote is a native-coin price observation in USD fixed point
type Quote struct {
	// Price is the USD price of one native coin, scaled by 10^Decimals
	Price *big.Int
	// Decimals is the fixed-point scale of Price
	Decimals uint8
}

// Feed defines the interface for price feed operations to enable mocking
type Feed interface {
	// LatestQuote returns the most recent native/USD quote
	LatestQuote(ctx context.Context) (*Quote, error)
}

// quoteResponse is the wire format of the feed endpoint
type quoteResponse struct {
	Price    string `json:"price"`
	Decimals uint8  `json:"decimals"`
}

// HTTPFeed fetches quotes from an HTTP oracle endpoint
type HTTPFeed struct {
	httpClient adapter.HTTPClient
	url        string
}

// NewHTTPFeed creates a new HTTP price feed client
func NewHTTPFeed(httpClient adapter.HTTPClient, url string) Feed {
	return &HTTPFeed{
		httpClient: httpClient,
		url:        url,
	}
}

// LatestQuote returns the most recent native/USD quote
func (f *HTTPFeed) LatestQuote(ctx context.Context) (*Quote, error) {
	var resp quoteResponse
	if err := f.httpClient.Get(ctx, f.url, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}

	price, ok := new(big.Int).SetString(resp.Price, 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("invalid quote price %q", resp.Price)
	}

	return &Quote{Price: price, Decimals: resp.Decimals}, nil
}

// StaticFeed returns a fixed quote; used in tests and local development
type StaticFeed struct {
	Quote Quote
}

// NewStaticFeed creates a feed that always returns the given quote
func NewStaticFeed(price *big.Int, decimals uint8) Feed {
	return &StaticFeed{Quote: Quote{Price: price, Decimals: decimals}}
}

// LatestQuote returns the configured quote
func (f *StaticFeed) LatestQuote(_ context.Context) (*Quote, error) {
	if f.Quote.Price == nil || f.Quote.Price.Sign() <= 0 {
		return nil, fmt.Errorf("static feed has no price")
	}
	return &f.Quote, nil
}

// ConvertUSDToNative converts a USD amount in 8-decimal fixed point into the
// native-coin amount (18 decimals) required at the quoted price, rounding up
// so the requirement never undershoots:
//
//	wei = ceil(priceUSD * 10^18 * 10^quoteDecimals / (quotePrice * 10^8))
func ConvertUSDToNative(priceUSD *big.Int, quote *Quote) (*big.Int, error) {
	if priceUSD == nil || priceUSD.Sign() < 0 {
		return nil, fmt.Errorf("invalid usd amount")
	}
	if quote == nil || quote.Price == nil || quote.Price.Sign() <= 0 {
		return nil, fmt.Errorf("invalid quote")
	}

	// numerator = priceUSD * 10^18 * 10^quoteDecimals
	numerator := new(big.Int).Mul(priceUSD, pow10(domain.NativeDecimals))
	numerator.Mul(numerator, pow10(int(quote.Decimals)))

	// denominator = quotePrice * 10^8
	denominator := new(big.Int).Mul(quote.Price, pow10(domain.USDDecimals))

	wei, rem := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if rem.Sign() > 0 {
		wei.Add(wei, big.NewInt(1))
	}
	return wei, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
