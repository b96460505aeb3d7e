package store

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocktease/market-engine/internal/domain"
)

// StoreTestSuite provides the interface for running store tests against different implementations
type StoreTestSuite struct {
	Store Store
	// InitDB should be called before each test to initialize the database
	InitDB func(t *testing.T) Store
	// CleanupDB should be called after each test to clean up the database
	CleanupDB func(t *testing.T)
}

// =============================================================================
// Test Fixtures
// =============================================================================

// Digit-only addresses keep the checksummed form identical to the input
const (
	testAdmin       = "0x1000000000000000000000000000000000000001"
	testMinter      = "0x2000000000000000000000000000000000000002"
	testSeller      = "0x3000000000000000000000000000000000000003"
	testBuyer       = "0x4000000000000000000000000000000000000004"
	testOperator    = "0x5000000000000000000000000000000000000005"
	testReceiver    = "0x6000000000000000000000000000000000000006"
	testMarketplace = "0x7000000000000000000000000000000000000007"
	testStranger    = "0x8000000000000000000000000000000000000008"
)

const (
	testNow     = int64(1700000000)
	testDay     = int64(86400)
	testDollar  = "100000000" // $1 in 8-decimal fixed point
	testRoyalty = uint32(500) // 5%
)

func seedGenesis(t *testing.T, store Store) {
	t.Helper()
	require.NoError(t, store.EnsureGenesis(context.Background(), testAdmin, testMinter))
}

func buildMintInput(creatorID, subscriptionID uint32, to string) MintTokenInput {
	return MintTokenInput{
		Caller:          testMinter,
		To:              to,
		CreatorID:       creatorID,
		SubscriptionID:  subscriptionID,
		Amount:          "1",
		DurationSeconds: testDay,
		RoyaltyBp:       testRoyalty,
		RoyaltyReceiver: testReceiver,
		Now:             testNow,
	}
}

func mintTestToken(t *testing.T, store Store, creatorID, subscriptionID uint32, to string) *MintResult {
	t.Helper()
	result, err := store.MintToken(context.Background(), buildMintInput(creatorID, subscriptionID, to))
	require.NoError(t, err)
	return result
}

// listTestToken approves the marketplace for the seller and creates a listing
func listTestToken(t *testing.T, store Store, seller, tokenID, priceUSD string) uint64 {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SetOperatorApproval(ctx, seller, testMarketplace, true))
	listing, event, err := store.CreateListing(ctx, CreateListingInput{
		Seller:      seller,
		Marketplace: testMarketplace,
		TokenID:     tokenID,
		PriceUSD:    priceUSD,
		Now:         testNow,
	})
	require.NoError(t, err)
	require.NotNil(t, event)
	return listing.ListingID
}

func fundNative(t *testing.T, store Store, to, amount string) {
	t.Helper()
	require.NoError(t, store.DepositNative(context.Background(), FundInput{Caller: testAdmin, To: to, Amount: amount}))
}

func fundStable(t *testing.T, store Store, to, amount string) {
	t.Helper()
	require.NoError(t, store.MintStable(context.Background(), FundInput{Caller: testAdmin, To: to, Amount: amount}))
}

// =============================================================================
// Test: Genesis and Roles
// =============================================================================

func testGenesisAndRoles(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("genesis grants admin and minter and is idempotent", func(t *testing.T) {
		seedGenesis(t, store)
		seedGenesis(t, store)

		isAdmin, err := store.HasRole(ctx, testAdmin, domain.RoleAdmin)
		require.NoError(t, err)
		assert.True(t, isAdmin)

		isMinter, err := store.HasRole(ctx, testMinter, domain.RoleMinter)
		require.NoError(t, err)
		assert.True(t, isMinter)

		isAdminMinter, err := store.HasRole(ctx, testAdmin, domain.RoleMinter)
		require.NoError(t, err)
		assert.False(t, isAdminMinter)
	})

	t.Run("admin grants and revokes roles", func(t *testing.T) {
		err := store.SetRole(ctx, SetRoleInput{Caller: testAdmin, Address: testOperator, Role: domain.RoleMinter, Granted: true})
		require.NoError(t, err)

		granted, err := store.HasRole(ctx, testOperator, domain.RoleMinter)
		require.NoError(t, err)
		assert.True(t, granted)

		err = store.SetRole(ctx, SetRoleInput{Caller: testAdmin, Address: testOperator, Role: domain.RoleMinter, Granted: false})
		require.NoError(t, err)

		granted, err = store.HasRole(ctx, testOperator, domain.RoleMinter)
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("non-admin cannot grant roles", func(t *testing.T) {
		err := store.SetRole(ctx, SetRoleInput{Caller: testStranger, Address: testStranger, Role: domain.RoleAdmin, Granted: true})

		var authErr *domain.AuthorizationError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, domain.RoleAdmin, authErr.Role)

		granted, err := store.HasRole(ctx, testStranger, domain.RoleAdmin)
		require.NoError(t, err)
		assert.False(t, granted)
	})
}

// =============================================================================
// Test: Model Configs
// =============================================================================

func testUpsertModelConfigs(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	t.Run("admin upserts a batch of configs", func(t *testing.T) {
		err := store.UpsertModelConfigs(ctx, testAdmin, []ModelConfigInput{
			{CreatorID: 1, PriceUSD: testDollar, AssociatedAddress: testReceiver, RoyaltyBp: 500},
			{CreatorID: 2, PriceUSD: "250000000", AssociatedAddress: testOperator, RoyaltyBp: 1000},
		})
		require.NoError(t, err)

		config, err := store.GetModelConfig(ctx, 2)
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, "250000000", config.PriceUSD)
		assert.Equal(t, uint32(1000), config.RoyaltyBp)

		configs, err := store.ListModelConfigs(ctx)
		require.NoError(t, err)
		require.Len(t, configs, 2)
		assert.Equal(t, uint32(1), configs[0].CreatorID)
	})

	t.Run("second batch overwrites existing configs", func(t *testing.T) {
		err := store.UpsertModelConfigs(ctx, testAdmin, []ModelConfigInput{
			{CreatorID: 1, PriceUSD: "300000000", AssociatedAddress: testReceiver, RoyaltyBp: 250},
		})
		require.NoError(t, err)

		config, err := store.GetModelConfig(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, "300000000", config.PriceUSD)
		assert.Equal(t, uint32(250), config.RoyaltyBp)
	})

	t.Run("invalid royalty aborts the whole batch", func(t *testing.T) {
		err := store.UpsertModelConfigs(ctx, testAdmin, []ModelConfigInput{
			{CreatorID: 7, PriceUSD: testDollar, AssociatedAddress: testReceiver, RoyaltyBp: 100},
			{CreatorID: 8, PriceUSD: testDollar, AssociatedAddress: testReceiver, RoyaltyBp: 10001},
		})

		var royaltyErr *domain.InvalidRoyaltyError
		require.ErrorAs(t, err, &royaltyErr)

		config, err := store.GetModelConfig(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, config)
	})

	t.Run("non-admin cannot upsert configs", func(t *testing.T) {
		err := store.UpsertModelConfigs(ctx, testStranger, []ModelConfigInput{
			{CreatorID: 9, PriceUSD: testDollar, AssociatedAddress: testReceiver, RoyaltyBp: 100},
		})

		var authErr *domain.AuthorizationError
		require.ErrorAs(t, err, &authErr)
	})
}

// =============================================================================
// Test: MintToken
// =============================================================================

func testMintToken(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	t.Run("mint creates token, balance, and journal entry", func(t *testing.T) {
		result := mintTestToken(t, store, 1, 1, testSeller)

		expectedID := domain.EncodeTokenID(1, 1).String()
		assert.Equal(t, expectedID, result.Token.TokenID)
		assert.Equal(t, testNow+testDay, result.Token.ExpiresAt)
		assert.Equal(t, testReceiver, result.Token.RoyaltyReceiver)
		assert.Equal(t, testRoyalty, result.Token.RoyaltyBp)

		balance, err := store.GetBalance(ctx, expectedID, testSeller)
		require.NoError(t, err)
		assert.Equal(t, "1", balance)

		events, err := store.GetMarketEvents(ctx, expectedID, 10, 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventTypeMint, events[0].EventType)
	})

	t.Run("re-mint extends expiration and credits the new holder", func(t *testing.T) {
		input := buildMintInput(1, 1, testBuyer)
		input.DurationSeconds = 3 * testDay
		input.RoyaltyBp = 1000

		result, err := store.MintToken(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, testNow+3*testDay, result.Token.ExpiresAt)
		assert.Equal(t, uint32(1000), result.Token.RoyaltyBp)

		balance, err := store.GetBalance(ctx, result.Token.TokenID, testBuyer)
		require.NoError(t, err)
		assert.Equal(t, "1", balance)

		// The earlier holder's balance is untouched
		balance, err = store.GetBalance(ctx, result.Token.TokenID, testSeller)
		require.NoError(t, err)
		assert.Equal(t, "1", balance)
	})

	t.Run("re-mint with a shorter duration never shrinks the expiration", func(t *testing.T) {
		input := buildMintInput(1, 1, testOperator)
		input.DurationSeconds = 3600

		result, err := store.MintToken(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, testNow+3*testDay, result.Token.ExpiresAt)
	})

	t.Run("unauthorized mint leaves no trace", func(t *testing.T) {
		input := buildMintInput(5, 5, testSeller)
		input.Caller = testStranger

		_, err := store.MintToken(ctx, input)
		var authErr *domain.AuthorizationError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, domain.RoleMinter, authErr.Role)

		token, err := store.GetToken(ctx, domain.EncodeTokenID(5, 5).String())
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("royalty above 100 percent is rejected", func(t *testing.T) {
		input := buildMintInput(6, 6, testSeller)
		input.RoyaltyBp = 10001

		_, err := store.MintToken(ctx, input)
		var royaltyErr *domain.InvalidRoyaltyError
		require.ErrorAs(t, err, &royaltyErr)
	})
}

// =============================================================================
// Test: TransferToken
// =============================================================================

func testTransferToken(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	result := mintTestToken(t, store, 2, 1, testSeller)
	tokenID := result.Token.TokenID

	t.Run("holder transfers its own balance", func(t *testing.T) {
		err := store.TransferToken(ctx, TransferTokenInput{
			Caller: testSeller, From: testSeller, To: testBuyer, TokenID: tokenID, Amount: "1",
		})
		require.NoError(t, err)

		balance, err := store.GetBalance(ctx, tokenID, testBuyer)
		require.NoError(t, err)
		assert.Equal(t, "1", balance)

		balance, err = store.GetBalance(ctx, tokenID, testSeller)
		require.NoError(t, err)
		assert.Equal(t, "0", balance)
	})

	t.Run("approved operator transfers on the holder's behalf", func(t *testing.T) {
		require.NoError(t, store.SetOperatorApproval(ctx, testBuyer, testOperator, true))

		err := store.TransferToken(ctx, TransferTokenInput{
			Caller: testOperator, From: testBuyer, To: testSeller, TokenID: tokenID, Amount: "1",
		})
		require.NoError(t, err)

		balance, err := store.GetBalance(ctx, tokenID, testSeller)
		require.NoError(t, err)
		assert.Equal(t, "1", balance)
	})

	t.Run("stranger cannot move another holder's balance", func(t *testing.T) {
		err := store.TransferToken(ctx, TransferTokenInput{
			Caller: testStranger, From: testSeller, To: testStranger, TokenID: tokenID, Amount: "1",
		})

		var approvalErr *domain.NotApprovedError
		require.ErrorAs(t, err, &approvalErr)
	})

	t.Run("transfer beyond the held amount fails", func(t *testing.T) {
		err := store.TransferToken(ctx, TransferTokenInput{
			Caller: testSeller, From: testSeller, To: testBuyer, TokenID: tokenID, Amount: "2",
		})

		var ownedErr *domain.NotOwnedError
		require.ErrorAs(t, err, &ownedErr)
	})
}

// =============================================================================
// Test: CreateListing
// =============================================================================

func testCreateListing(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	result := mintTestToken(t, store, 3, 1, testSeller)
	tokenID := result.Token.TokenID

	t.Run("listing ids are assigned from zero and strictly increase", func(t *testing.T) {
		total, err := store.CountListings(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), total)

		first := listTestToken(t, store, testSeller, tokenID, testDollar)
		assert.Equal(t, uint64(0), first)

		second := listTestToken(t, store, testSeller, tokenID, "200000000")
		assert.Equal(t, uint64(1), second)

		total, err = store.CountListings(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), total)
	})

	t.Run("listing requires holding the token", func(t *testing.T) {
		require.NoError(t, store.SetOperatorApproval(ctx, testStranger, testMarketplace, true))

		_, _, err := store.CreateListing(ctx, CreateListingInput{
			Seller: testStranger, Marketplace: testMarketplace, TokenID: tokenID, PriceUSD: testDollar, Now: testNow,
		})

		var ownedErr *domain.NotOwnedError
		require.ErrorAs(t, err, &ownedErr)
	})

	t.Run("listing requires marketplace approval", func(t *testing.T) {
		buyerToken := mintTestToken(t, store, 3, 2, testBuyer)

		_, _, err := store.CreateListing(ctx, CreateListingInput{
			Seller: testBuyer, Marketplace: testMarketplace, TokenID: buyerToken.Token.TokenID, PriceUSD: testDollar, Now: testNow,
		})

		var approvalErr *domain.NotApprovedError
		require.ErrorAs(t, err, &approvalErr)
	})

	t.Run("expired token cannot be listed", func(t *testing.T) {
		_, _, err := store.CreateListing(ctx, CreateListingInput{
			Seller: testSeller, Marketplace: testMarketplace, TokenID: tokenID, PriceUSD: testDollar,
			Now: testNow + 2*testDay,
		})

		var expiredErr *domain.ExpiredSubscriptionError
		require.ErrorAs(t, err, &expiredErr)
	})
}

// =============================================================================
// Test: SettleNativePurchase
// =============================================================================

func testSettleNativePurchase(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	result := mintTestToken(t, store, 4, 1, testSeller)
	tokenID := result.Token.TokenID
	listingID := listTestToken(t, store, testSeller, tokenID, testDollar)

	required := "500000000000000000" // 0.5 native
	attached := "600000000000000000" // overpayment; the full value settles
	fundNative(t, store, testBuyer, attached)

	t.Run("underpayment aborts and leaves the listing open", func(t *testing.T) {
		_, err := store.SettleNativePurchase(ctx, NativeSettlementInput{
			Buyer: testBuyer, ListingID: listingID, Value: "400000000000000000", Required: required, Now: testNow,
		})

		var fundsErr *domain.InsufficientFundsError
		require.ErrorAs(t, err, &fundsErr)

		listing, err := store.GetListing(ctx, listingID)
		require.NoError(t, err)
		assert.True(t, listing.IsListed)
	})

	t.Run("successful purchase settles the full attached value", func(t *testing.T) {
		settled, err := store.SettleNativePurchase(ctx, NativeSettlementInput{
			Buyer: testBuyer, ListingID: listingID, Value: attached, Required: required, Now: testNow,
		})
		require.NoError(t, err)

		// 5% royalty on the attached value, remainder to the seller
		assert.Equal(t, "30000000000000000", settled.RoyaltyAmount)
		assert.Equal(t, "570000000000000000", settled.NetAmount)
		assert.Equal(t, testReceiver, settled.RoyaltyReceiver)

		buyerAccount, err := store.GetFundAccount(ctx, testBuyer)
		require.NoError(t, err)
		assert.Equal(t, "0", buyerAccount.NativeBalance)

		receiverAccount, err := store.GetFundAccount(ctx, testReceiver)
		require.NoError(t, err)
		assert.Equal(t, "30000000000000000", receiverAccount.NativeBalance)

		sellerAccount, err := store.GetFundAccount(ctx, testSeller)
		require.NoError(t, err)
		assert.Equal(t, "570000000000000000", sellerAccount.NativeBalance)

		balance, err := store.GetBalance(ctx, tokenID, testBuyer)
		require.NoError(t, err)
		assert.Equal(t, "1", balance)

		listing, err := store.GetListing(ctx, listingID)
		require.NoError(t, err)
		assert.False(t, listing.IsListed)
		assert.NotNil(t, listing.RetiredAt)
	})

	t.Run("second purchase of the same listing fails", func(t *testing.T) {
		fundNative(t, store, testStranger, attached)

		_, err := store.SettleNativePurchase(ctx, NativeSettlementInput{
			Buyer: testStranger, ListingID: listingID, Value: attached, Required: required, Now: testNow,
		})

		var listedErr *domain.NotListedError
		require.ErrorAs(t, err, &listedErr)
		assert.Equal(t, listingID, listedErr.ListingID)

		// The losing buyer keeps its funds
		account, err := store.GetFundAccount(ctx, testStranger)
		require.NoError(t, err)
		assert.Equal(t, attached, account.NativeBalance)
	})

	t.Run("insufficient buyer funds abort the settlement", func(t *testing.T) {
		second := mintTestToken(t, store, 4, 2, testSeller)
		id := listTestToken(t, store, testSeller, second.Token.TokenID, testDollar)

		_, err := store.SettleNativePurchase(ctx, NativeSettlementInput{
			Buyer: testOperator, ListingID: id, Value: required, Required: required, Now: testNow,
		})

		var fundsErr *domain.InsufficientFundsError
		require.ErrorAs(t, err, &fundsErr)

		listing, err := store.GetListing(ctx, id)
		require.NoError(t, err)
		assert.True(t, listing.IsListed)
	})
}

// =============================================================================
// Test: SettleStablePurchase
// =============================================================================

func testSettleStablePurchase(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	result := mintTestToken(t, store, 5, 1, testSeller)
	tokenID := result.Token.TokenID
	listingID := listTestToken(t, store, testSeller, tokenID, testDollar)

	fundStable(t, store, testBuyer, "500000000") // $5

	t.Run("purchase without allowance fails", func(t *testing.T) {
		_, err := store.SettleStablePurchase(ctx, StableSettlementInput{
			Buyer: testBuyer, ListingID: listingID, Marketplace: testMarketplace, Now: testNow,
		})

		var fundsErr *domain.InsufficientFundsError
		require.ErrorAs(t, err, &fundsErr)
	})

	t.Run("purchase pulls exactly the listed price", func(t *testing.T) {
		require.NoError(t, store.ApproveStable(ctx, testBuyer, testMarketplace, "300000000"))

		settled, err := store.SettleStablePurchase(ctx, StableSettlementInput{
			Buyer: testBuyer, ListingID: listingID, Marketplace: testMarketplace, Now: testNow,
		})
		require.NoError(t, err)

		// 5% of $1
		assert.Equal(t, "5000000", settled.RoyaltyAmount)
		assert.Equal(t, "95000000", settled.NetAmount)

		buyerAccount, err := store.GetFundAccount(ctx, testBuyer)
		require.NoError(t, err)
		assert.Equal(t, "400000000", buyerAccount.StableBalance)

		receiverAccount, err := store.GetFundAccount(ctx, testReceiver)
		require.NoError(t, err)
		assert.Equal(t, "5000000", receiverAccount.StableBalance)

		sellerAccount, err := store.GetFundAccount(ctx, testSeller)
		require.NoError(t, err)
		assert.Equal(t, "95000000", sellerAccount.StableBalance)

		// The allowance shrinks by the pulled amount
		allowance, err := store.GetStableAllowance(ctx, testBuyer, testMarketplace)
		require.NoError(t, err)
		assert.Equal(t, "200000000", allowance)

		balance, err := store.GetBalance(ctx, tokenID, testBuyer)
		require.NoError(t, err)
		assert.Equal(t, "1", balance)

		listing, err := store.GetListing(ctx, listingID)
		require.NoError(t, err)
		assert.False(t, listing.IsListed)
	})

	t.Run("sale event is journaled with the usd currency", func(t *testing.T) {
		events, err := store.GetMarketEvents(ctx, tokenID, 10, 0)
		require.NoError(t, err)
		require.NotEmpty(t, events)

		sale := events[0]
		assert.Equal(t, domain.EventTypeSale, sale.EventType)
		require.NotNil(t, sale.Currency)
		assert.Equal(t, "usd", *sale.Currency)
		require.NotNil(t, sale.Price)
		assert.Equal(t, testDollar, *sale.Price)
	})
}

// =============================================================================
// Test: ExecuteBatch
// =============================================================================

func testExecuteBatch(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	result := mintTestToken(t, store, 6, 1, testSeller)
	tokenID := result.Token.TokenID
	listingID := listTestToken(t, store, testSeller, tokenID, testDollar)

	fundStable(t, store, testBuyer, testDollar)

	t.Run("approve and purchase settle in one transaction", func(t *testing.T) {
		events, err := store.ExecuteBatch(ctx, []BatchCall{
			{ApproveStable: &ApproveStableCall{Owner: testBuyer, Spender: testMarketplace, Amount: testDollar}},
			{SettleStable: &StableSettlementInput{Buyer: testBuyer, ListingID: listingID, Marketplace: testMarketplace, Now: testNow}},
		})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventTypeSale, events[0].EventType)

		balance, err := store.GetBalance(ctx, tokenID, testBuyer)
		require.NoError(t, err)
		assert.Equal(t, "1", balance)
	})

	t.Run("a failing call aborts every call in the batch", func(t *testing.T) {
		_, err := store.ExecuteBatch(ctx, []BatchCall{
			{ApproveStable: &ApproveStableCall{Owner: testStranger, Spender: testMarketplace, Amount: testDollar}},
			{SettleStable: &StableSettlementInput{Buyer: testStranger, ListingID: listingID, Marketplace: testMarketplace, Now: testNow}},
		})
		require.Error(t, err)

		var listedErr *domain.NotListedError
		assert.True(t, errors.As(err, &listedErr))

		// The approval from the first call was rolled back
		allowance, err := store.GetStableAllowance(ctx, testStranger, testMarketplace)
		require.NoError(t, err)
		assert.Equal(t, "0", allowance)
	})

	t.Run("an empty call is rejected", func(t *testing.T) {
		_, err := store.ExecuteBatch(ctx, []BatchCall{{}})
		require.Error(t, err)
	})
}

// =============================================================================
// Test: Sweeping expired listings
// =============================================================================

func testExpiredListings(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	result := mintTestToken(t, store, 7, 1, testSeller)
	tokenID := result.Token.TokenID
	listingID := listTestToken(t, store, testSeller, tokenID, testDollar)

	t.Run("open listing of an expired token is reported", func(t *testing.T) {
		listings, err := store.GetExpiredOpenListings(ctx, testNow, 100)
		require.NoError(t, err)
		assert.Empty(t, listings)

		listings, err = store.GetExpiredOpenListings(ctx, testNow+2*testDay, 100)
		require.NoError(t, err)
		require.Len(t, listings, 1)
		assert.Equal(t, listingID, listings[0].ListingID)
	})

	t.Run("retire delists and journals the event", func(t *testing.T) {
		event, err := store.RetireListing(ctx, listingID, testNow+2*testDay)
		require.NoError(t, err)
		assert.Equal(t, domain.EventTypeDelist, event.EventType)

		listing, err := store.GetListing(ctx, listingID)
		require.NoError(t, err)
		assert.False(t, listing.IsListed)

		listings, err := store.GetExpiredOpenListings(ctx, testNow+2*testDay, 100)
		require.NoError(t, err)
		assert.Empty(t, listings)
	})

	t.Run("retiring twice fails", func(t *testing.T) {
		_, err := store.RetireListing(ctx, listingID, testNow+2*testDay)

		var listedErr *domain.NotListedError
		require.ErrorAs(t, err, &listedErr)
	})

	t.Run("expired token cannot be purchased", func(t *testing.T) {
		fundStable(t, store, testBuyer, testDollar)
		require.NoError(t, store.ApproveStable(ctx, testBuyer, testMarketplace, testDollar))

		second := mintTestToken(t, store, 7, 2, testSeller)
		id := listTestToken(t, store, testSeller, second.Token.TokenID, testDollar)

		_, err := store.SettleStablePurchase(ctx, StableSettlementInput{
			Buyer: testBuyer, ListingID: id, Marketplace: testMarketplace, Now: testNow + 2*testDay,
		})

		var expiredErr *domain.ExpiredSubscriptionError
		require.ErrorAs(t, err, &expiredErr)
	})
}

// =============================================================================
// Test: Funds
// =============================================================================

func testFunds(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	t.Run("unknown accounts read as zero", func(t *testing.T) {
		account, err := store.GetFundAccount(ctx, testStranger)
		require.NoError(t, err)
		assert.Equal(t, "0", account.NativeBalance)
		assert.Equal(t, "0", account.StableBalance)
	})

	t.Run("admin credits native and stable balances", func(t *testing.T) {
		fundNative(t, store, testBuyer, "1000")
		fundNative(t, store, testBuyer, "500")
		fundStable(t, store, testBuyer, testDollar)

		account, err := store.GetFundAccount(ctx, testBuyer)
		require.NoError(t, err)
		assert.Equal(t, "1500", account.NativeBalance)
		assert.Equal(t, testDollar, account.StableBalance)
	})

	t.Run("non-admin cannot issue funds", func(t *testing.T) {
		err := store.DepositNative(ctx, FundInput{Caller: testStranger, To: testStranger, Amount: "1000"})
		var authErr *domain.AuthorizationError
		require.ErrorAs(t, err, &authErr)

		err = store.MintStable(ctx, FundInput{Caller: testStranger, To: testStranger, Amount: "1000"})
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("approve overwrites the previous allowance", func(t *testing.T) {
		require.NoError(t, store.ApproveStable(ctx, testBuyer, testMarketplace, "100"))
		require.NoError(t, store.ApproveStable(ctx, testBuyer, testMarketplace, "70"))

		allowance, err := store.GetStableAllowance(ctx, testBuyer, testMarketplace)
		require.NoError(t, err)
		assert.Equal(t, "70", allowance)
	})
}

// =============================================================================
// Test: Balances survive large amounts
// =============================================================================

func testLargeAmounts(t *testing.T, store Store) {
	ctx := context.Background()
	seedGenesis(t, store)

	// Amounts near the top of the numeric(78,0) range round-trip intact
	big1 := new(big.Int).Lsh(big.NewInt(1), 200)

	fundNative(t, store, testBuyer, big1.String())

	account, err := store.GetFundAccount(ctx, testBuyer)
	require.NoError(t, err)
	assert.Equal(t, big1.String(), account.NativeBalance)
}

// RunStoreTests runs the full suite against a store implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"GenesisAndRoles", testGenesisAndRoles},
		{"UpsertModelConfigs", testUpsertModelConfigs},
		{"MintToken", testMintToken},
		{"TransferToken", testTransferToken},
		{"CreateListing", testCreateListing},
		{"SettleNativePurchase", testSettleNativePurchase},
		{"SettleStablePurchase", testSettleStablePurchase},
		{"ExecuteBatch", testExecuteBatch},
		{"ExpiredListings", testExpiredListings},
		{"Funds", testFunds},
		{"LargeAmounts", testLargeAmounts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
