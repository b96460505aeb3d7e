package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blocktease/market-engine/internal/domain"
	"github.com/blocktease/market-engine/internal/settlement"
	"github.com/blocktease/market-engine/internal/store/schema"
)

// listingsCounterKey is the key_value_store key holding the next listing id.
// Its value equals the total number of listing ids ever assigned, so reading
// it before listing yields the id the next listing will get.
const listingsCounterKey = "listings:next_id"

const (
	currencyNative = "native"
	currencyUSD    = "usd"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// EnsureGenesis grants the bootstrap admin and minter roles and initializes
// the listings counter. Safe to run on every startup.
func (s *pgStore) EnsureGenesis(ctx context.Context, admin, minter string) error {
	admin = domain.NormalizeAddress(admin)
	minter = domain.NormalizeAddress(minter)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignments := []schema.RoleAssignment{
			{Address: admin, Role: domain.RoleAdmin.String(), Granted: true},
			{Address: minter, Role: domain.RoleMinter.String(), Granted: true},
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}, {Name: "role"}},
			DoUpdates: clause.AssignmentColumns([]string{"granted"}),
		}).Create(&assignments).Error; err != nil {
			return fmt.Errorf("failed to grant genesis roles: %w", err)
		}

		counter := schema.KeyValueStore{Key: listingsCounterKey, Value: "0"}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&counter).Error; err != nil {
			return fmt.Errorf("failed to initialize listings counter: %w", err)
		}

		return nil
	})
}

// HasRole reports whether the address currently holds the role
func (s *pgStore) HasRole(ctx context.Context, address string, role domain.Role) (bool, error) {
	var assignment schema.RoleAssignment
	err := s.db.WithContext(ctx).
		Where("address = ? AND role = ?", domain.NormalizeAddress(address), role.String()).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get role assignment: %w", err)
	}
	return assignment.Granted, nil
}

// SetRole grants or revokes a role inside one transaction with the admin check
func (s *pgStore) SetRole(ctx context.Context, input SetRoleInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRole(tx, input.Caller, domain.RoleAdmin); err != nil {
			return err
		}

		assignment := schema.RoleAssignment{
			Address: domain.NormalizeAddress(input.Address),
			Role:    input.Role.String(),
			Granted: input.Granted,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}, {Name: "role"}},
			DoUpdates: clause.AssignmentColumns([]string{"granted", "updated_at"}),
		}).Create(&assignment).Error; err != nil {
			return fmt.Errorf("failed to set role assignment: %w", err)
		}

		return nil
	})
}

// UpsertModelConfigs overwrites the configs of all given creators in one
// transaction. A failure on any row leaves every config untouched.
func (s *pgStore) UpsertModelConfigs(ctx context.Context, caller string, configs []ModelConfigInput) error {
	if len(configs) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRole(tx, caller, domain.RoleAdmin); err != nil {
			return err
		}

		rows := make([]schema.ModelConfig, 0, len(configs))
		for _, c := range configs {
			if c.RoyaltyBp > domain.MaxRoyaltyBasisPoints {
				return &domain.InvalidRoyaltyError{BasisPoints: c.RoyaltyBp}
			}
			if _, err := domain.ParseAmount(c.PriceUSD); err != nil {
				return fmt.Errorf("creator %d: %w", c.CreatorID, err)
			}
			rows = append(rows, schema.ModelConfig{
				CreatorID:         c.CreatorID,
				PriceUSD:          c.PriceUSD,
				AssociatedAddress: domain.NormalizeAddress(c.AssociatedAddress),
				RoyaltyBp:         c.RoyaltyBp,
			})
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "creator_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"price_usd", "associated_address", "royalty_bp", "updated_at"}),
		}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to upsert model configs: %w", err)
		}

		return nil
	})
}

// GetModelConfig retrieves a single creator's config
func (s *pgStore) GetModelConfig(ctx context.Context, creatorID uint32) (*schema.ModelConfig, error) {
	var config schema.ModelConfig
	err := s.db.WithContext(ctx).Where("creator_id = ?", creatorID).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get model config: %w", err)
	}
	return &config, nil
}

// ListModelConfigs retrieves all creator configs ordered by creator id
func (s *pgStore) ListModelConfigs(ctx context.Context) ([]*schema.ModelConfig, error) {
	var configs []*schema.ModelConfig
	err := s.db.WithContext(ctx).Order("creator_id ASC").Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list model configs: %w", err)
	}
	return configs, nil
}

// MintToken mints a subscription token inside a single transaction: the token
// row, its expiration extension, the recipient's balance credit, and the mint
// event journal entry commit or abort together.
func (s *pgStore) MintToken(ctx context.Context, input MintTokenInput) (*MintResult, error) {
	amount, err := domain.ParseAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("mint amount must be positive")
	}
	if input.RoyaltyBp > domain.MaxRoyaltyBasisPoints {
		return nil, &domain.InvalidRoyaltyError{BasisPoints: input.RoyaltyBp}
	}

	tokenID := domain.EncodeTokenID(input.CreatorID, input.SubscriptionID)
	to := domain.NormalizeAddress(input.To)
	receiver := domain.NormalizeAddress(input.RoyaltyReceiver)
	expiresAt := input.Now + input.DurationSeconds

	var result MintResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRole(tx, input.Caller, domain.RoleMinter); err != nil {
			return err
		}

		var token schema.Token
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_id = ?", tokenID.String()).
			First(&token).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			token = schema.Token{
				TokenID:         tokenID.String(),
				CreatorID:       input.CreatorID,
				SubscriptionID:  input.SubscriptionID,
				ExpiresAt:       expiresAt,
				RoyaltyReceiver: receiver,
				RoyaltyBp:       input.RoyaltyBp,
			}
			if err := tx.Create(&token).Error; err != nil {
				return fmt.Errorf("failed to create token: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to get token: %w", err)
		default:
			// Re-mint: the expiration only ever extends, and the royalty
			// terms follow the latest mint
			if expiresAt > token.ExpiresAt {
				token.ExpiresAt = expiresAt
			}
			token.RoyaltyReceiver = receiver
			token.RoyaltyBp = input.RoyaltyBp
			if err := tx.Model(&schema.Token{}).
				Where("id = ?", token.ID).
				Updates(map[string]interface{}{
					"expires_at":       token.ExpiresAt,
					"royalty_receiver": token.RoyaltyReceiver,
					"royalty_bp":       token.RoyaltyBp,
					"updated_at":       time.Now(),
				}).Error; err != nil {
				return fmt.Errorf("failed to update token: %w", err)
			}
		}

		if err := adjustBalance(tx, token.ID, tokenID, to, amount); err != nil {
			return err
		}

		event := &domain.MarketEvent{
			EventType:      domain.EventTypeMint,
			TokenID:        tokenID.String(),
			CreatorID:      input.CreatorID,
			SubscriptionID: input.SubscriptionID,
			Buyer:          &to,
			Timestamp:      time.Unix(input.Now, 0).UTC(),
		}
		if err := journalEvent(tx, event); err != nil {
			return err
		}

		result = MintResult{Token: &token, Event: event}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// TransferToken moves token balance between holders
func (s *pgStore) TransferToken(ctx context.Context, input TransferTokenInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transferToken(tx, input)
	})
}

func (s *pgStore) transferToken(tx *gorm.DB, input TransferTokenInput) error {
	tokenID, err := domain.ParseTokenID(input.TokenID)
	if err != nil {
		return err
	}
	amount, err := domain.ParseAmount(input.Amount)
	if err != nil {
		return err
	}

	caller := domain.NormalizeAddress(input.Caller)
	from := domain.NormalizeAddress(input.From)
	to := domain.NormalizeAddress(input.To)

	if caller != from {
		approved, err := isApprovedForAll(tx, from, caller)
		if err != nil {
			return err
		}
		if !approved {
			return &domain.NotApprovedError{
				Owner:    common.HexToAddress(from),
				Operator: common.HexToAddress(caller),
			}
		}
	}

	var token schema.Token
	if err := tx.Where("token_id = ?", tokenID.String()).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.NotOwnedError{Address: common.HexToAddress(from), TokenID: tokenID}
		}
		return fmt.Errorf("failed to get token: %w", err)
	}

	if err := adjustBalance(tx, token.ID, tokenID, from, new(big.Int).Neg(amount)); err != nil {
		return err
	}
	return adjustBalance(tx, token.ID, tokenID, to, amount)
}

// GetToken retrieves a token row by decimal token id
func (s *pgStore) GetToken(ctx context.Context, tokenID string) (*schema.Token, error) {
	id, err := domain.ParseTokenID(tokenID)
	if err != nil {
		return nil, err
	}

	var token schema.Token
	err = s.db.WithContext(ctx).Where("token_id = ?", id.String()).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

// GetBalance returns the holder's balance of a token as a decimal string
func (s *pgStore) GetBalance(ctx context.Context, tokenID, holder string) (string, error) {
	id, err := domain.ParseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	var balance schema.Balance
	err = s.db.WithContext(ctx).
		Joins("JOIN tokens ON tokens.id = balances.token_id").
		Where("tokens.token_id = ? AND balances.holder_address = ?", id.String(), domain.NormalizeAddress(holder)).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "0", nil
		}
		return "", fmt.Errorf("failed to get balance: %w", err)
	}
	return balance.Amount, nil
}

// SetOperatorApproval grants or revokes an operator over the owner's balances
func (s *pgStore) SetOperatorApproval(ctx context.Context, owner, operator string, approved bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setOperatorApproval(tx, owner, operator, approved)
	})
}

func setOperatorApproval(tx *gorm.DB, owner, operator string, approved bool) error {
	approval := schema.OperatorApproval{
		OwnerAddress:    domain.NormalizeAddress(owner),
		OperatorAddress: domain.NormalizeAddress(operator),
		Approved:        approved,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_address"}, {Name: "operator_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"approved", "updated_at"}),
	}).Create(&approval).Error; err != nil {
		return fmt.Errorf("failed to set operator approval: %w", err)
	}
	return nil
}

// IsApprovedForAll reports whether the operator may move the owner's balances
func (s *pgStore) IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error) {
	return isApprovedForAll(s.db.WithContext(ctx), owner, operator)
}

func isApprovedForAll(tx *gorm.DB, owner, operator string) (bool, error) {
	var approval schema.OperatorApproval
	err := tx.
		Where("owner_address = ? AND operator_address = ?",
			domain.NormalizeAddress(owner), domain.NormalizeAddress(operator)).
		First(&approval).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get operator approval: %w", err)
	}
	return approval.Approved, nil
}

// CreateListing creates a listing with the next monotonic id. The counter
// read, the ownership and approval checks, the listing row, and the list
// event commit together.
func (s *pgStore) CreateListing(ctx context.Context, input CreateListingInput) (*schema.Listing, *domain.MarketEvent, error) {
	var (
		listing *schema.Listing
		event   *domain.MarketEvent
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		listing, event, err = s.createListing(tx, input)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return listing, event, nil
}

func (s *pgStore) createListing(tx *gorm.DB, input CreateListingInput) (*schema.Listing, *domain.MarketEvent, error) {
	tokenID, err := domain.ParseTokenID(input.TokenID)
	if err != nil {
		return nil, nil, err
	}
	price, err := domain.ParseAmount(input.PriceUSD)
	if err != nil {
		return nil, nil, err
	}
	if price.Sign() == 0 {
		return nil, nil, fmt.Errorf("listing price must be positive")
	}

	seller := domain.NormalizeAddress(input.Seller)
	marketplace := domain.NormalizeAddress(input.Marketplace)

	var token schema.Token
	if err := tx.Where("token_id = ?", tokenID.String()).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &domain.NotOwnedError{Address: common.HexToAddress(seller), TokenID: tokenID}
		}
		return nil, nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token.ExpiresAt <= input.Now {
		return nil, nil, &domain.ExpiredSubscriptionError{TokenID: tokenID, ExpiredAt: token.ExpiresAt}
	}

	held, err := holderBalance(tx, token.ID, seller)
	if err != nil {
		return nil, nil, err
	}
	if held.Sign() == 0 {
		return nil, nil, &domain.NotOwnedError{Address: common.HexToAddress(seller), TokenID: tokenID}
	}

	approved, err := isApprovedForAll(tx, seller, marketplace)
	if err != nil {
		return nil, nil, err
	}
	if !approved {
		return nil, nil, &domain.NotApprovedError{
			Owner:    common.HexToAddress(seller),
			Operator: common.HexToAddress(marketplace),
		}
	}

	listingID, err := nextListingID(tx)
	if err != nil {
		return nil, nil, err
	}

	listing := schema.Listing{
		ListingID: listingID,
		TokenID:   tokenID.String(),
		Seller:    seller,
		PriceUSD:  price.String(),
		IsListed:  true,
	}
	if err := tx.Create(&listing).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create listing: %w", err)
	}

	currency := currencyUSD
	priceStr := price.String()
	event := &domain.MarketEvent{
		EventType:      domain.EventTypeList,
		TokenID:        tokenID.String(),
		CreatorID:      token.CreatorID,
		SubscriptionID: token.SubscriptionID,
		ListingID:      &listing.ListingID,
		Seller:         &seller,
		Price:          &priceStr,
		Currency:       &currency,
		Timestamp:      time.Unix(input.Now, 0).UTC(),
	}
	if err := journalEvent(tx, event); err != nil {
		return nil, nil, err
	}

	return &listing, event, nil
}

// GetListing retrieves a listing by id
func (s *pgStore) GetListing(ctx context.Context, listingID uint64) (*schema.Listing, error) {
	var listing schema.Listing
	err := s.db.WithContext(ctx).Where("listing_id = ?", listingID).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// CountListings returns the total number of listing ids ever assigned
func (s *pgStore) CountListings(ctx context.Context) (uint64, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", listingsCounterKey).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get listings counter: %w", err)
	}

	total, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse listings counter: %w", err)
	}
	return total, nil
}

// GetExpiredOpenListings returns open listings whose token expired before now
func (s *pgStore) GetExpiredOpenListings(ctx context.Context, now int64, limit int) ([]*schema.Listing, error) {
	var listings []*schema.Listing
	err := s.db.WithContext(ctx).
		Joins("JOIN tokens ON tokens.token_id = listings.token_id").
		Where("listings.is_listed = ? AND tokens.expires_at <= ?", true, now).
		Order("listings.listing_id ASC").
		Limit(limit).
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get expired listings: %w", err)
	}
	return listings, nil
}

// RetireListing flips an open listing to retired and journals a delist event
func (s *pgStore) RetireListing(ctx context.Context, listingID uint64, now int64) (*domain.MarketEvent, error) {
	var event *domain.MarketEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listing, err := lockOpenListing(tx, listingID)
		if err != nil {
			return err
		}
		if err := retireListing(tx, listing, now); err != nil {
			return err
		}

		var token schema.Token
		if err := tx.Where("token_id = ?", listing.TokenID).First(&token).Error; err != nil {
			return fmt.Errorf("failed to get token: %w", err)
		}

		event = &domain.MarketEvent{
			EventType:      domain.EventTypeDelist,
			TokenID:        listing.TokenID,
			CreatorID:      token.CreatorID,
			SubscriptionID: token.SubscriptionID,
			ListingID:      &listing.ListingID,
			Seller:         &listing.Seller,
			Timestamp:      time.Unix(now, 0).UTC(),
		}
		return journalEvent(tx, event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// SettleNativePurchase settles a native-coin purchase. The attached value is
// checked against the required payment, debited from the buyer, and split in
// full between the royalty receiver and the seller; one edition moves to the
// buyer and the listing retires, all in one transaction.
func (s *pgStore) SettleNativePurchase(ctx context.Context, input NativeSettlementInput) (*SettlementResult, error) {
	value, err := domain.ParseAmount(input.Value)
	if err != nil {
		return nil, err
	}
	required, err := domain.ParseAmount(input.Required)
	if err != nil {
		return nil, err
	}
	if value.Cmp(required) < 0 {
		return nil, &domain.InsufficientFundsError{Need: required, Have: value}
	}

	buyer := domain.NormalizeAddress(input.Buyer)

	var result *SettlementResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err = s.settle(tx, input.ListingID, buyer, value, currencyNative, input.Now,
			func(tx *gorm.DB) error {
				return adjustNativeFunds(tx, buyer, new(big.Int).Neg(value))
			},
			func(tx *gorm.DB, receiver string, amount *big.Int) error {
				return adjustNativeFunds(tx, receiver, amount)
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SettleStablePurchase settles a stable-unit purchase at the listed face
// value, pulled from the buyer through the marketplace's allowance.
func (s *pgStore) SettleStablePurchase(ctx context.Context, input StableSettlementInput) (*SettlementResult, error) {
	var result *SettlementResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.settleStable(tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *pgStore) settleStable(tx *gorm.DB, input StableSettlementInput) (*SettlementResult, error) {
	buyer := domain.NormalizeAddress(input.Buyer)
	marketplace := domain.NormalizeAddress(input.Marketplace)

	listing, err := lockOpenListing(tx, input.ListingID)
	if err != nil {
		return nil, err
	}
	price, err := domain.ParseAmount(listing.PriceUSD)
	if err != nil {
		return nil, err
	}

	return s.settle(tx, input.ListingID, buyer, price, currencyUSD, input.Now,
		func(tx *gorm.DB) error {
			if err := spendStableAllowance(tx, buyer, marketplace, price); err != nil {
				return err
			}
			return adjustStableFunds(tx, buyer, new(big.Int).Neg(price))
		},
		func(tx *gorm.DB, receiver string, amount *big.Int) error {
			return adjustStableFunds(tx, receiver, amount)
		})
}

// settle is the shared settlement core: it retires the listing, verifies the
// token has not expired, debits the buyer, splits the gross between royalty
// receiver and seller via credit, moves one edition, and journals the sale.
func (s *pgStore) settle(
	tx *gorm.DB,
	listingID uint64,
	buyer string,
	gross *big.Int,
	currency string,
	now int64,
	debitBuyer func(tx *gorm.DB) error,
	credit func(tx *gorm.DB, receiver string, amount *big.Int) error,
) (*SettlementResult, error) {
	listing, err := lockOpenListing(tx, listingID)
	if err != nil {
		return nil, err
	}

	tokenID, err := domain.ParseTokenID(listing.TokenID)
	if err != nil {
		return nil, err
	}

	var token schema.Token
	if err := tx.Where("token_id = ?", listing.TokenID).First(&token).Error; err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token.ExpiresAt <= now {
		return nil, &domain.ExpiredSubscriptionError{TokenID: tokenID, ExpiredAt: token.ExpiresAt}
	}

	if err := debitBuyer(tx); err != nil {
		return nil, err
	}

	royalty, net, err := settlement.Split(gross, token.RoyaltyBp)
	if err != nil {
		return nil, err
	}
	if royalty.Sign() > 0 {
		if err := credit(tx, token.RoyaltyReceiver, royalty); err != nil {
			return nil, err
		}
	}
	if err := credit(tx, listing.Seller, net); err != nil {
		return nil, err
	}

	one := big.NewInt(1)
	if err := adjustBalance(tx, token.ID, tokenID, listing.Seller, new(big.Int).Neg(one)); err != nil {
		return nil, err
	}
	if err := adjustBalance(tx, token.ID, tokenID, buyer, one); err != nil {
		return nil, err
	}

	if err := retireListing(tx, listing, now); err != nil {
		return nil, err
	}

	priceStr := gross.String()
	event := &domain.MarketEvent{
		EventType:      domain.EventTypeSale,
		TokenID:        listing.TokenID,
		CreatorID:      token.CreatorID,
		SubscriptionID: token.SubscriptionID,
		ListingID:      &listing.ListingID,
		Seller:         &listing.Seller,
		Buyer:          &buyer,
		Price:          &priceStr,
		Currency:       &currency,
		Timestamp:      time.Unix(now, 0).UTC(),
	}
	if err := journalEvent(tx, event); err != nil {
		return nil, err
	}

	return &SettlementResult{
		Listing:         listing,
		Token:           &token,
		RoyaltyReceiver: token.RoyaltyReceiver,
		RoyaltyAmount:   royalty.String(),
		NetAmount:       net.String(),
		Event:           event,
	}, nil
}

// DepositNative credits an address's native-coin balance; admin only
func (s *pgStore) DepositNative(ctx context.Context, input FundInput) error {
	return s.creditFunds(ctx, input, adjustNativeFunds)
}

// MintStable credits an address's stable-unit balance; admin only
func (s *pgStore) MintStable(ctx context.Context, input FundInput) error {
	return s.creditFunds(ctx, input, adjustStableFunds)
}

func (s *pgStore) creditFunds(ctx context.Context, input FundInput, adjust func(tx *gorm.DB, address string, delta *big.Int) error) error {
	amount, err := domain.ParseAmount(input.Amount)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRole(tx, input.Caller, domain.RoleAdmin); err != nil {
			return err
		}
		return adjust(tx, domain.NormalizeAddress(input.To), amount)
	})
}

// ApproveStable sets the spender's allowance over the owner's stable balance
func (s *pgStore) ApproveStable(ctx context.Context, owner, spender, amount string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return approveStable(tx, owner, spender, amount)
	})
}

func approveStable(tx *gorm.DB, owner, spender, amount string) error {
	parsed, err := domain.ParseAmount(amount)
	if err != nil {
		return err
	}

	allowance := schema.StableAllowance{
		OwnerAddress:   domain.NormalizeAddress(owner),
		SpenderAddress: domain.NormalizeAddress(spender),
		Amount:         parsed.String(),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_address"}, {Name: "spender_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&allowance).Error; err != nil {
		return fmt.Errorf("failed to set stable allowance: %w", err)
	}
	return nil
}

// GetFundAccount retrieves an address's fund account (zero balances when absent)
func (s *pgStore) GetFundAccount(ctx context.Context, address string) (*schema.FundAccount, error) {
	address = domain.NormalizeAddress(address)

	var account schema.FundAccount
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &schema.FundAccount{Address: address, NativeBalance: "0", StableBalance: "0"}, nil
		}
		return nil, fmt.Errorf("failed to get fund account: %w", err)
	}
	return &account, nil
}

// GetStableAllowance returns the remaining allowance as a decimal string
func (s *pgStore) GetStableAllowance(ctx context.Context, owner, spender string) (string, error) {
	var allowance schema.StableAllowance
	err := s.db.WithContext(ctx).
		Where("owner_address = ? AND spender_address = ?",
			domain.NormalizeAddress(owner), domain.NormalizeAddress(spender)).
		First(&allowance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "0", nil
		}
		return "", fmt.Errorf("failed to get stable allowance: %w", err)
	}
	return allowance.Amount, nil
}

// ExecuteBatch runs the calls in order inside one transaction; a failure in
// any call aborts them all with no observable change
func (s *pgStore) ExecuteBatch(ctx context.Context, calls []BatchCall) ([]*domain.MarketEvent, error) {
	var events []*domain.MarketEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, call := range calls {
			switch {
			case call.ApproveStable != nil:
				if err := approveStable(tx, call.ApproveStable.Owner, call.ApproveStable.Spender, call.ApproveStable.Amount); err != nil {
					return fmt.Errorf("batch call %d: %w", i, err)
				}
			case call.SetApproval != nil:
				if err := setOperatorApproval(tx, call.SetApproval.Owner, call.SetApproval.Operator, call.SetApproval.Approved); err != nil {
					return fmt.Errorf("batch call %d: %w", i, err)
				}
			case call.CreateListing != nil:
				_, event, err := s.createListing(tx, *call.CreateListing)
				if err != nil {
					return fmt.Errorf("batch call %d: %w", i, err)
				}
				events = append(events, event)
			case call.SettleStable != nil:
				result, err := s.settleStable(tx, *call.SettleStable)
				if err != nil {
					return fmt.Errorf("batch call %d: %w", i, err)
				}
				events = append(events, result.Event)
			case call.TransferToken != nil:
				if err := s.transferToken(tx, *call.TransferToken); err != nil {
					return fmt.Errorf("batch call %d: %w", i, err)
				}
			default:
				return fmt.Errorf("batch call %d: no call set", i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// GetMarketEvents returns journaled events for a token, newest first
func (s *pgStore) GetMarketEvents(ctx context.Context, tokenID string, limit, offset int) ([]*schema.MarketEvent, error) {
	id, err := domain.ParseTokenID(tokenID)
	if err != nil {
		return nil, err
	}

	var events []*schema.MarketEvent
	err = s.db.WithContext(ctx).
		Where("token_id = ?", id.String()).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get market events: %w", err)
	}
	return events, nil
}

// requireRole verifies the caller holds the role inside the transaction, so a
// concurrent revoke serializes before or after the whole operation
func requireRole(tx *gorm.DB, address string, role domain.Role) error {
	address = domain.NormalizeAddress(address)

	var assignment schema.RoleAssignment
	err := tx.
		Where("address = ? AND role = ?", address, role.String()).
		First(&assignment).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to get role assignment: %w", err)
	}
	if err != nil || !assignment.Granted {
		return &domain.AuthorizationError{Address: common.HexToAddress(address), Role: role}
	}
	return nil
}

// adjustBalance applies a signed delta to a holder's balance of a token,
// locking the row. A delta that would take the balance negative fails with
// NotOwnedError.
func adjustBalance(tx *gorm.DB, tokenRowID int64, tokenID *big.Int, holder string, delta *big.Int) error {
	holder = domain.NormalizeAddress(holder)

	var balance schema.Balance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_id = ? AND holder_address = ?", tokenRowID, holder).
		First(&balance).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	current := big.NewInt(0)
	if err == nil {
		current, err = domain.ParseAmount(balance.Amount)
		if err != nil {
			return err
		}
	}

	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return &domain.NotOwnedError{Address: common.HexToAddress(holder), TokenID: tokenID}
	}

	row := schema.Balance{
		TokenID:       tokenRowID,
		HolderAddress: holder,
		Amount:        next.String(),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_id"}, {Name: "holder_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

// holderBalance returns a holder's current balance of a token row
func holderBalance(tx *gorm.DB, tokenRowID int64, holder string) (*big.Int, error) {
	var balance schema.Balance
	err := tx.
		Where("token_id = ? AND holder_address = ?", tokenRowID, domain.NormalizeAddress(holder)).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return domain.ParseAmount(balance.Amount)
}

func adjustNativeFunds(tx *gorm.DB, address string, delta *big.Int) error {
	return adjustFunds(tx, address, delta, "native_balance", func(a *schema.FundAccount) string { return a.NativeBalance }, func(a *schema.FundAccount, v string) { a.NativeBalance = v })
}

func adjustStableFunds(tx *gorm.DB, address string, delta *big.Int) error {
	return adjustFunds(tx, address, delta, "stable_balance", func(a *schema.FundAccount) string { return a.StableBalance }, func(a *schema.FundAccount, v string) { a.StableBalance = v })
}

// adjustFunds applies a signed delta to one column of a fund account, locking
// the row. A delta that would take the balance negative fails with
// InsufficientFundsError.
func adjustFunds(tx *gorm.DB, address string, delta *big.Int, column string, get func(*schema.FundAccount) string, set func(*schema.FundAccount, string)) error {
	address = domain.NormalizeAddress(address)

	var account schema.FundAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&account).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to get fund account: %w", err)
	}
	if err != nil {
		account = schema.FundAccount{Address: address, NativeBalance: "0", StableBalance: "0"}
	}

	current, err := domain.ParseAmount(get(&account))
	if err != nil {
		return err
	}

	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return &domain.InsufficientFundsError{Need: new(big.Int).Neg(delta), Have: current}
	}
	set(&account, next.String())

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{column, "updated_at"}),
	}).Create(&account).Error; err != nil {
		return fmt.Errorf("failed to upsert fund account: %w", err)
	}
	return nil
}

// spendStableAllowance decrements the spender's allowance over the owner's
// stable balance, locking the row
func spendStableAllowance(tx *gorm.DB, owner, spender string, amount *big.Int) error {
	var allowance schema.StableAllowance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_address = ? AND spender_address = ?",
			domain.NormalizeAddress(owner), domain.NormalizeAddress(spender)).
		First(&allowance).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to get stable allowance: %w", err)
	}

	current := big.NewInt(0)
	if err == nil {
		current, err = domain.ParseAmount(allowance.Amount)
		if err != nil {
			return err
		}
	}

	if current.Cmp(amount) < 0 {
		return &domain.InsufficientFundsError{Need: amount, Have: current}
	}

	remaining := new(big.Int).Sub(current, amount)
	if err := tx.Model(&schema.StableAllowance{}).
		Where("id = ?", allowance.ID).
		Updates(map[string]interface{}{"amount": remaining.String(), "updated_at": time.Now()}).Error; err != nil {
		return fmt.Errorf("failed to update stable allowance: %w", err)
	}
	return nil
}

// lockOpenListing locks a listing row and verifies it is still open. Because
// a retired listing id is never reactivated, the second of two competing
// purchases observes IsListed=false here and aborts with NotListedError.
func lockOpenListing(tx *gorm.DB, listingID uint64) (*schema.Listing, error) {
	var listing schema.Listing
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("listing_id = ?", listingID).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotListedError{ListingID: listingID}
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	if !listing.IsListed {
		return nil, &domain.NotListedError{ListingID: listingID}
	}
	return &listing, nil
}

// retireListing flips the locked listing to retired with a conditional update
// as a second guard against double retirement
func retireListing(tx *gorm.DB, listing *schema.Listing, now int64) error {
	retiredAt := time.Unix(now, 0).UTC()
	res := tx.Model(&schema.Listing{}).
		Where("listing_id = ? AND is_listed = ?", listing.ListingID, true).
		Updates(map[string]interface{}{"is_listed": false, "retired_at": retiredAt})
	if res.Error != nil {
		return fmt.Errorf("failed to retire listing: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.NotListedError{ListingID: listing.ListingID}
	}
	listing.IsListed = false
	listing.RetiredAt = &retiredAt
	return nil
}

// nextListingID increments the listings counter and returns the assigned id.
// The counter row is locked, so concurrent listings serialize and ids come
// out strictly increasing with no reuse.
func nextListingID(tx *gorm.DB) (uint64, error) {
	var kv schema.KeyValueStore
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("key = ?", listingsCounterKey).
		First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			kv = schema.KeyValueStore{Key: listingsCounterKey, Value: "1"}
			if err := tx.Create(&kv).Error; err != nil {
				return 0, fmt.Errorf("failed to initialize listings counter: %w", err)
			}
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get listings counter: %w", err)
	}

	next, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse listings counter: %w", err)
	}

	if err := tx.Model(&schema.KeyValueStore{}).
		Where("key = ?", listingsCounterKey).
		Update("value", strconv.FormatUint(next+1, 10)).Error; err != nil {
		return 0, fmt.Errorf("failed to advance listings counter: %w", err)
	}
	return next, nil
}

// journalEvent appends the event to the market_events journal inside the
// transaction that produced it
func journalEvent(tx *gorm.DB, event *domain.MarketEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal market event: %w", err)
	}

	row := schema.MarketEvent{
		EventType: event.EventType,
		TokenID:   event.TokenID,
		ListingID: event.ListingID,
		Seller:    event.Seller,
		Buyer:     event.Buyer,
		Price:     event.Price,
		Currency:  event.Currency,
		Raw:       raw,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to journal market event: %w", err)
	}
	return nil
}
