package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/blocktease/market-engine/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Role endpoints (grant/revoke require authentication; the admin role
		// check itself happens in the store)
		v1.POST("/roles/grant", middleware.Auth(authCfg), handler.GrantRole)
		v1.POST("/roles/revoke", middleware.Auth(authCfg), handler.RevokeRole)
		v1.GET("/roles/:address/:role", handler.HasRole)

		// Creator model configs
		v1.POST("/models/batch", middleware.Auth(authCfg), handler.UpdateBatchModels)
		v1.GET("/models/:creator_id", handler.GetModel)
		v1.GET("/models", handler.ListModels)

		// Token registry
		v1.POST("/tokens/mint", middleware.Auth(authCfg), handler.MintToken)
		v1.GET("/tokens/:token_id", handler.GetToken)
		v1.GET("/tokens/:token_id/balances/:address", handler.GetBalance)
		v1.GET("/tokens/:token_id/royalty", handler.GetRoyaltyInfo)
		v1.GET("/tokens/:token_id/events", handler.GetTokenEvents)
		v1.POST("/tokens/approvals", handler.SetApproval)

		// Marketplace listings (static route before the :id wildcard)
		v1.GET("/listings/count", handler.CountListings)
		v1.POST("/listings", handler.CreateListing)
		v1.GET("/listings/:id", handler.GetListing)
		v1.POST("/listings/:id/buy", handler.BuyListing)
		v1.POST("/listings/:id/buy-usdc", handler.BuyListingUSDC)

		// Payment rails
		v1.POST("/funds/stable/mint", middleware.Auth(authCfg), handler.MintStable)
		v1.POST("/funds/stable/approve", handler.ApproveStable)
		v1.POST("/funds/native/deposit", middleware.Auth(authCfg), handler.DepositNative)
		v1.GET("/funds/:address", handler.GetFundAccount)

		// Atomic call batches
		v1.POST("/batch", handler.ExecuteBatch)
	}
}
