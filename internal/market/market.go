// Package market implements the marketplace: per-creator model configs,
// listings, and dual-currency purchases with royalty settlement.
package market

import (
	"context"

	"go.uber.org/zap"

	"github.com/blocktease/market-engine/internal/adapter"
	"github.com/blocktease/market-engine/internal/domain"
	"github.com/blocktease/market-engine/internal/logger"
	"github.com/blocktease/market-engine/internal/messaging"
	"github.com/blocktease/market-engine/internal/pricefeed"
	"github.com/blocktease/market-engine/internal/store"
	"github.com/blocktease/market-engine/internal/store/schema"
)

// Service implements marketplace operations over the store and price feed
type Service struct {
	store     store.Store
	feed      pricefeed.Feed
	publisher messaging.Publisher
	clock     adapter.Clock

	// marketplace is the operator identity sellers approve and the spender
	// of stable allowances
	marketplace string
}

// NewService creates a new market service
func NewService(s store.Store, feed pricefeed.Feed, publisher messaging.Publisher, clock adapter.Clock, marketplace string) *Service {
	return &Service{
		store:       s,
		feed:        feed,
		publisher:   publisher,
		clock:       clock,
		marketplace: domain.NormalizeAddress(marketplace),
	}
}

// MarketplaceAddress returns the operator identity of this marketplace
func (s *Service) MarketplaceAddress() string {
	return s.marketplace
}

// UpdateBatchModels overwrites the configs of all given creators at once.
// The four slices are parallel arrays; any length mismatch aborts before
// anything is written.
func (s *Service) UpdateBatchModels(ctx context.Context, caller string, creatorIDs []uint32, pricesUSD []string, addresses []string, royaltyBps []uint32) error {
	if len(creatorIDs) != len(pricesUSD) || len(creatorIDs) != len(addresses) || len(creatorIDs) != len(royaltyBps) {
		return &domain.LengthMismatchError{
			CreatorIDs: len(creatorIDs),
			Prices:     len(pricesUSD),
			Addresses:  len(addresses),
			Royalties:  len(royaltyBps),
		}
	}

	configs := make([]store.ModelConfigInput, 0, len(creatorIDs))
	for i := range creatorIDs {
		configs = append(configs, store.ModelConfigInput{
			CreatorID:         creatorIDs[i],
			PriceUSD:          pricesUSD[i],
			AssociatedAddress: addresses[i],
			RoyaltyBp:         royaltyBps[i],
		})
	}

	return s.store.UpsertModelConfigs(ctx, caller, configs)
}

// GetModel retrieves a single creator's config; nil when unknown
func (s *Service) GetModel(ctx context.Context, creatorID uint32) (*schema.ModelConfig, error) {
	return s.store.GetModelConfig(ctx, creatorID)
}

// ListModels retrieves all creator configs
func (s *Service) ListModels(ctx context.Context) ([]*schema.ModelConfig, error) {
	return s.store.ListModelConfigs(ctx)
}

// ListNFT creates a listing for a held, unexpired token at a fixed USD
// price. The seller must have approved this marketplace as an operator.
func (s *Service) ListNFT(ctx context.Context, seller, tokenID, priceUSD string) (*schema.Listing, error) {
	listing, event, err := s.store.CreateListing(ctx, store.CreateListingInput{
		Seller:      seller,
		Marketplace: s.marketplace,
		TokenID:     tokenID,
		PriceUSD:    priceUSD,
		Now:         s.clock.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event)
	return listing, nil
}

// BuyNFT purchases a listing with the native coin. The listed USD price is
// converted through the price feed into the required native amount; the
// attached value must cover it and is settled in full, split between the
// token's royalty receiver and the seller.
func (s *Service) BuyNFT(ctx context.Context, buyer string, listingID uint64, value string) (*store.SettlementResult, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil || !listing.IsListed {
		return nil, &domain.NotListedError{ListingID: listingID}
	}

	priceUSD, err := domain.ParseAmount(listing.PriceUSD)
	if err != nil {
		return nil, err
	}

	// Quote outside the settlement transaction; the settlement re-checks the
	// listing state under lock
	quote, err := s.feed.LatestQuote(ctx)
	if err != nil {
		return nil, err
	}
	required, err := pricefeed.ConvertUSDToNative(priceUSD, quote)
	if err != nil {
		return nil, err
	}

	result, err := s.store.SettleNativePurchase(ctx, store.NativeSettlementInput{
		Buyer:     buyer,
		ListingID: listingID,
		Value:     value,
		Required:  required.String(),
		Now:       s.clock.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result.Event)
	return result, nil
}

// BuyNFTWithUSDC purchases a listing in the stable unit at the listed face
// value, pulled through the buyer's allowance to this marketplace.
func (s *Service) BuyNFTWithUSDC(ctx context.Context, buyer string, listingID uint64) (*store.SettlementResult, error) {
	result, err := s.store.SettleStablePurchase(ctx, store.StableSettlementInput{
		Buyer:       buyer,
		ListingID:   listingID,
		Marketplace: s.marketplace,
		Now:         s.clock.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result.Event)
	return result, nil
}

// GetTotalListingIds returns the number of listing ids ever assigned, which
// is also the id the next listing will receive
func (s *Service) GetTotalListingIds(ctx context.Context) (uint64, error) {
	return s.store.CountListings(ctx)
}

// GetListing retrieves a listing by id; nil when unknown
func (s *Service) GetListing(ctx context.Context, listingID uint64) (*schema.Listing, error) {
	return s.store.GetListing(ctx, listingID)
}

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
