package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blocktease/market-engine/internal/access"
	"github.com/blocktease/market-engine/internal/adapter"
	"github.com/blocktease/market-engine/internal/api/rest/dto"
	"github.com/blocktease/market-engine/internal/batch"
	"github.com/blocktease/market-engine/internal/domain"
	"github.com/blocktease/market-engine/internal/funds"
	"github.com/blocktease/market-engine/internal/market"
	"github.com/blocktease/market-engine/internal/registry"
	"github.com/blocktease/market-engine/internal/store"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
type Handler interface {
	// GrantRole grants a role to an address (requires authentication)
	// POST /api/v1/roles/grant
	GrantRole(c *gin.Context)

	// RevokeRole revokes a role from an address (requires authentication)
	// POST /api/v1/roles/revoke
	RevokeRole(c *gin.Context)

	// HasRole reports whether an address holds a role
	// GET /api/v1/roles/:address/:role
	HasRole(c *gin.Context)

	// UpdateBatchModels overwrites creator model configs (requires authentication)
	// POST /api/v1/models/batch
	UpdateBatchModels(c *gin.Context)

	// GetModel retrieves a single creator's config
	// GET /api/v1/models/:creator_id
	GetModel(c *gin.Context)

	// ListModels retrieves all creator configs
	// GET /api/v1/models
	ListModels(c *gin.Context)

	// MintToken mints subscription token editions (requires authentication)
	// POST /api/v1/tokens/mint
	MintToken(c *gin.Context)

	// GetToken retrieves a token by its decimal token id
	// GET /api/v1/tokens/:token_id
	GetToken(c *gin.Context)

	// GetBalance returns a holder's balance of a token
	// GET /api/v1/tokens/:token_id/balances/:address
	GetBalance(c *gin.Context)

	// GetRoyaltyInfo returns the royalty owed for a sale at the given price
	// GET /api/v1/tokens/:token_id/royalty?sale_price=<price>
	GetRoyaltyInfo(c *gin.Context)

	// GetTokenEvents returns journaled market events for a token, newest first
	// GET /api/v1/tokens/:token_id/events?limit=<limit>&offset=<offset>
	GetTokenEvents(c *gin.Context)

	// SetApproval grants or revokes an operator over the owner's balances
	// POST /api/v1/tokens/approvals
	SetApproval(c *gin.Context)

	// CreateListing lists a held token at a fixed USD price
	// POST /api/v1/listings
	CreateListing(c *gin.Context)

	// GetListing retrieves a listing by id
	// GET /api/v1/listings/:id
	GetListing(c *gin.Context)

	// CountListings returns the number of listing ids ever assigned
	// GET /api/v1/listings/count
	CountListings(c *gin.Context)

	// BuyListing purchases a listing with the native coin
	// POST /api/v1/listings/:id/buy
	BuyListing(c *gin.Context)

	// BuyListingUSDC purchases a listing in the stable unit
	// POST /api/v1/listings/:id/buy-usdc
	BuyListingUSDC(c *gin.Context)

	// MintStable credits a stable-unit balance (requires authentication)
	// POST /api/v1/funds/stable/mint
	MintStable(c *gin.Context)

	// ApproveStable sets a stable-unit spending allowance
	// POST /api/v1/funds/stable/approve
	ApproveStable(c *gin.Context)

	// DepositNative credits a native-coin balance (requires authentication)
	// POST /api/v1/funds/native/deposit
	DepositNative(c *gin.Context)

	// GetFundAccount retrieves an address's fund account
	// GET /api/v1/funds/:address
	GetFundAccount(c *gin.Context)

	// ExecuteBatch runs several marketplace calls in one transaction
	// POST /api/v1/batch
	ExecuteBatch(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	access   *access.Service
	registry *registry.Service
	market   *market.Service
	funds    *funds.Service
	batch    *batch.Service
	clock    adapter.Clock
}

// NewHandler creates a new REST API handler over the domain services
func NewHandler(
	accessSvc *access.Service,
	registrySvc *registry.Service,
	marketSvc *market.Service,
	fundsSvc *funds.Service,
	batchSvc *batch.Service,
	clock adapter.Clock,
) Handler {
	return &handler{
		access:   accessSvc,
		registry: registrySvc,
		market:   marketSvc,
		funds:    fundsSvc,
		batch:    batchSvc,
		clock:    clock,
	}
}

// GrantRole grants a role to an address
func (h *handler) GrantRole(c *gin.Context) {
	var req dto.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	role, _ := domain.ParseRole(req.Role)
	if err := h.access.GrantRole(c.Request.Context(), req.Caller, req.Address, role); err != nil {
		respondDomainError(c, err, "Failed to grant role")
		return
	}

	c.Status(http.StatusNoContent)
}

// RevokeRole revokes a role from an address
func (h *handler) RevokeRole(c *gin.Context) {
	var req dto.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	role, _ := domain.ParseRole(req.Role)
	if err := h.access.RevokeRole(c.Request.Context(), req.Caller, req.Address, role); err != nil {
		respondDomainError(c, err, "Failed to revoke role")
		return
	}

	c.Status(http.StatusNoContent)
}

// HasRole reports whether an address holds a role
func (h *handler) HasRole(c *gin.Context) {
	address := c.Param("address")
	if !domain.ValidAddress(address) {
		respondBadRequest(c, "Invalid address")
		return
	}
	role, err := domain.ParseRole(c.Param("role"))
	if err != nil {
		respondBadRequest(c, "Invalid role", err.Error())
		return
	}

	held, err := h.access.HasRole(c.Request.Context(), address, role)
	if err != nil {
		respondInternalError(c, err, "Failed to check role")
		return
	}

	c.JSON(http.StatusOK, dto.HasRoleResponse{
		Address: domain.NormalizeAddress(address),
		Role:    role.Name(),
		HasRole: held,
	})
}

// UpdateBatchModels overwrites creator model configs
func (h *handler) UpdateBatchModels(c *gin.Context) {
	var req dto.UpdateBatchModelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	err := h.market.UpdateBatchModels(c.Request.Context(), req.Caller, req.CreatorIDs, req.PricesUSD, req.Addresses, req.RoyaltyBps)
	if err != nil {
		respondDomainError(c, err, "Failed to update model configs")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetModel retrieves a single creator's config
func (h *handler) GetModel(c *gin.Context) {
	creatorID, err := strconv.ParseUint(c.Param("creator_id"), 10, 32)
	if err != nil {
		respondBadRequest(c, "Invalid creator id", err.Error())
		return
	}

	config, err := h.market.GetModel(c.Request.Context(), uint32(creatorID))
	if err != nil {
		respondInternalError(c, err, "Failed to get model config")
		return
	}
	if config == nil {
		respondNotFound(c, "Model config not found")
		return
	}

	c.JSON(http.StatusOK, dto.NewModelConfigResponse(config))
}

// ListModels retrieves all creator configs
func (h *handler) ListModels(c *gin.Context) {
	configs, err := h.market.ListModels(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Failed to list model configs")
		return
	}

	out := make([]*dto.ModelConfigResponse, 0, len(configs))
	for _, config := range configs {
		out = append(out, dto.NewModelConfigResponse(config))
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}

// MintToken mints subscription token editions
func (h *handler) MintToken(c *gin.Context) {
	var req dto.MintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	token, err := h.registry.Mint(c.Request.Context(), registry.MintParams{
		Caller:          req.Caller,
		To:              req.To,
		CreatorID:       req.CreatorID,
		SubscriptionID:  req.SubscriptionID,
		Amount:          req.Amount,
		DurationSeconds: req.DurationSeconds,
		RoyaltyBp:       req.RoyaltyBp,
		RoyaltyReceiver: req.RoyaltyReceiver,
		Data:            req.Data,
	})
	if err != nil {
		respondDomainError(c, err, "Failed to mint token")
		return
	}

	c.JSON(http.StatusCreated, dto.NewTokenResponse(token))
}

// GetToken retrieves a token by its decimal token id
func (h *handler) GetToken(c *gin.Context) {
	tokenID := c.Param("token_id")
	if _, err := domain.ParseTokenID(tokenID); err != nil {
		respondBadRequest(c, "Invalid token id", err.Error())
		return
	}

	token, err := h.registry.GetToken(c.Request.Context(), tokenID)
	if err != nil {
		respondInternalError(c, err, "Failed to get token")
		return
	}
	if token == nil {
		respondNotFound(c, "Token not found")
		return
	}

	c.JSON(http.StatusOK, dto.NewTokenResponse(token))
}

// GetBalance returns a holder's balance of a token
func (h *handler) GetBalance(c *gin.Context) {
	tokenID := c.Param("token_id")
	if _, err := domain.ParseTokenID(tokenID); err != nil {
		respondBadRequest(c, "Invalid token id", err.Error())
		return
	}
	address := c.Param("address")
	if !domain.ValidAddress(address) {
		respondBadRequest(c, "Invalid address")
		return
	}

	amount, err := h.registry.BalanceOf(c.Request.Context(), tokenID, address)
	if err != nil {
		respondInternalError(c, err, "Failed to get balance")
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		TokenID: tokenID,
		Holder:  domain.NormalizeAddress(address),
		Amount:  amount,
	})
}

// GetRoyaltyInfo returns the royalty owed for a sale at the given price
func (h *handler) GetRoyaltyInfo(c *gin.Context) {
	tokenID := c.Param("token_id")
	if _, err := domain.ParseTokenID(tokenID); err != nil {
		respondBadRequest(c, "Invalid token id", err.Error())
		return
	}
	salePrice, err := domain.ParseAmount(c.Query("sale_price"))
	if err != nil {
		respondBadRequest(c, "Invalid sale_price", err.Error())
		return
	}

	receiver, amount, err := h.registry.RoyaltyInfo(c.Request.Context(), tokenID, salePrice)
	if err != nil {
		var notOwned *domain.NotOwnedError
		if errors.As(err, &notOwned) {
			respondNotFound(c, "Token not found")
			return
		}
		respondDomainError(c, err, "Failed to get royalty info")
		return
	}

	c.JSON(http.StatusOK, dto.RoyaltyResponse{
		TokenID:   tokenID,
		SalePrice: salePrice.String(),
		Receiver:  receiver,
		Amount:    amount.String(),
	})
}

// GetTokenEvents returns journaled market events for a token
func (h *handler) GetTokenEvents(c *gin.Context) {
	tokenID := c.Param("token_id")
	if _, err := domain.ParseTokenID(tokenID); err != nil {
		respondBadRequest(c, "Invalid token id", err.Error())
		return
	}
	limit, offset, err := parsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	events, err := h.registry.GetTokenEvents(c.Request.Context(), tokenID, limit, offset)
	if err != nil {
		respondInternalError(c, err, "Failed to get token events")
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": dto.NewEventResponses(events)})
}

// SetApproval grants or revokes an operator over the owner's balances
func (h *handler) SetApproval(c *gin.Context) {
	var req dto.SetApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	if err := h.registry.SetApprovalForAll(c.Request.Context(), req.Owner, req.Operator, req.Approved); err != nil {
		respondDomainError(c, err, "Failed to set approval")
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateListing lists a held token at a fixed USD price
func (h *handler) CreateListing(c *gin.Context) {
	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	listing, err := h.market.ListNFT(c.Request.Context(), req.Seller, req.TokenID, req.PriceUSD)
	if err != nil {
		respondDomainError(c, err, "Failed to create listing")
		return
	}

	c.JSON(http.StatusCreated, dto.NewListingResponse(listing))
}

// GetListing retrieves a listing by id
func (h *handler) GetListing(c *gin.Context) {
	listingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid listing id", err.Error())
		return
	}

	listing, err := h.market.GetListing(c.Request.Context(), listingID)
	if err != nil {
		respondInternalError(c, err, "Failed to get listing")
		return
	}
	if listing == nil {
		respondNotFound(c, "Listing not found")
		return
	}

	c.JSON(http.StatusOK, dto.NewListingResponse(listing))
}

// CountListings returns the number of listing ids ever assigned
func (h *handler) CountListings(c *gin.Context) {
	count, err := h.market.GetTotalListingIds(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Failed to count listings")
		return
	}

	c.JSON(http.StatusOK, dto.CountResponse{Count: count})
}

// BuyListing purchases a listing with the native coin
func (h *handler) BuyListing(c *gin.Context) {
	listingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid listing id", err.Error())
		return
	}

	var req dto.BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.market.BuyNFT(c.Request.Context(), req.Buyer, listingID, req.Value)
	if err != nil {
		respondDomainError(c, err, "Failed to buy listing")
		return
	}

	c.JSON(http.StatusOK, dto.NewPurchaseResponse(result))
}

// BuyListingUSDC purchases a listing in the stable unit
func (h *handler) BuyListingUSDC(c *gin.Context) {
	listingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid listing id", err.Error())
		return
	}

	var req dto.BuyUSDCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.market.BuyNFTWithUSDC(c.Request.Context(), req.Buyer, listingID)
	if err != nil {
		respondDomainError(c, err, "Failed to buy listing")
		return
	}

	c.JSON(http.StatusOK, dto.NewPurchaseResponse(result))
}

// MintStable credits a stable-unit balance
func (h *handler) MintStable(c *gin.Context) {
	var req dto.FundCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	if err := h.funds.MintStable(c.Request.Context(), req.Caller, req.To, req.Amount); err != nil {
		respondDomainError(c, err, "Failed to mint stable funds")
		return
	}

	c.Status(http.StatusNoContent)
}

// ApproveStable sets a stable-unit spending allowance
func (h *handler) ApproveStable(c *gin.Context) {
	var req dto.StableApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	if err := h.funds.ApproveStable(c.Request.Context(), req.Owner, req.Spender, req.Amount); err != nil {
		respondDomainError(c, err, "Failed to approve stable funds")
		return
	}

	c.Status(http.StatusNoContent)
}

// DepositNative credits a native-coin balance
func (h *handler) DepositNative(c *gin.Context) {
	var req dto.FundCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	if err := h.funds.DepositNative(c.Request.Context(), req.Caller, req.To, req.Amount); err != nil {
		respondDomainError(c, err, "Failed to deposit native funds")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetFundAccount retrieves an address's fund account
func (h *handler) GetFundAccount(c *gin.Context) {
	address := c.Param("address")
	if !domain.ValidAddress(address) {
		respondBadRequest(c, "Invalid address")
		return
	}

	account, err := h.funds.GetAccount(c.Request.Context(), address)
	if err != nil {
		respondInternalError(c, err, "Failed to get fund account")
		return
	}

	c.JSON(http.StatusOK, dto.NewFundAccountResponse(account))
}

// ExecuteBatch runs several marketplace calls in one transaction
func (h *handler) ExecuteBatch(c *gin.Context) {
	var req dto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	now := h.clock.Now().Unix()
	marketplace := h.market.MarketplaceAddress()

	calls := make([]store.BatchCall, 0, len(req.Calls))
	for _, call := range req.Calls {
		switch {
		case call.ApproveStable != nil:
			calls = append(calls, store.BatchCall{ApproveStable: &store.ApproveStableCall{
				Owner:   call.ApproveStable.Owner,
				Spender: call.ApproveStable.Spender,
				Amount:  call.ApproveStable.Amount,
			}})
		case call.SetApproval != nil:
			calls = append(calls, store.BatchCall{SetApproval: &store.SetApprovalCall{
				Owner:    call.SetApproval.Owner,
				Operator: call.SetApproval.Operator,
				Approved: call.SetApproval.Approved,
			}})
		case call.CreateListing != nil:
			calls = append(calls, store.BatchCall{CreateListing: &store.CreateListingInput{
				Seller:      call.CreateListing.Seller,
				Marketplace: marketplace,
				TokenID:     call.CreateListing.TokenID,
				PriceUSD:    call.CreateListing.PriceUSD,
				Now:         now,
			}})
		case call.BuyUSDC != nil:
			calls = append(calls, store.BatchCall{SettleStable: &store.StableSettlementInput{
				Buyer:       call.BuyUSDC.Buyer,
				ListingID:   call.BuyUSDC.ListingID,
				Marketplace: marketplace,
				Now:         now,
			}})
		case call.Transfer != nil:
			calls = append(calls, store.BatchCall{TransferToken: &store.TransferTokenInput{
				Caller:  call.Transfer.Caller,
				From:    call.Transfer.From,
				To:      call.Transfer.To,
				TokenID: call.Transfer.TokenID,
				Amount:  call.Transfer.Amount,
			}})
		}
	}

	events, err := h.batch.Execute(c.Request.Context(), calls)
	if err != nil {
		respondDomainError(c, err, "Failed to execute batch")
		return
	}

	out := make([]*dto.EventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, &dto.EventResponse{
			EventType: string(event.EventType),
			TokenID:   event.TokenID,
			ListingID: event.ListingID,
			Seller:    event.Seller,
			Buyer:     event.Buyer,
			Price:     event.Price,
			Currency:  event.Currency,
			CreatedAt: event.Timestamp,
		})
	}
	c.JSON(http.StatusOK, dto.BatchResponse{Executed: len(calls), Events: out})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parsePagination reads limit/offset query parameters with defaults
func parsePagination(c *gin.Context) (int, int, error) {
	limit := 50
	offset := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			return 0, 0, fmt.Errorf("limit must be between 1 and 200")
		}
		limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("offset must not be negative")
		}
		offset = n
	}
	return limit, offset, nil
}
