package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/blocktease/market-engine/internal/access"
	"github.com/blocktease/market-engine/internal/adapter"
	"github.com/blocktease/market-engine/internal/api/middleware"
	"github.com/blocktease/market-engine/internal/api/server"
	"github.com/blocktease/market-engine/internal/batch"
	"github.com/blocktease/market-engine/internal/config"
	"github.com/blocktease/market-engine/internal/funds"
	"github.com/blocktease/market-engine/internal/logger"
	"github.com/blocktease/market-engine/internal/market"
	"github.com/blocktease/market-engine/internal/pricefeed"
	"github.com/blocktease/market-engine/internal/providers/jetstream"
	"github.com/blocktease/market-engine/internal/registry"
	"github.com/blocktease/market-engine/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create shutdown context with timeout
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Market Engine API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Grant the bootstrap roles and initialize the listings counter
	if err := dataStore.EnsureGenesis(ctx, cfg.Genesis.AdminAddress, cfg.Genesis.MinterAddress); err != nil {
		logger.FatalCtx(ctx, "Failed to ensure genesis state", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Genesis roles ensured",
		zap.String("admin", cfg.Genesis.AdminAddress),
		zap.String("minter", cfg.Genesis.MinterAddress),
	)

	// Initialize adapters
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()

	// Connect to NATS JetStream
	publisher, err := jetstream.NewPublisher(jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
	}, adapter.NewNatsJetStream(), jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer publisher.Close()
	logger.InfoCtx(ctx, "Connected to NATS", zap.String("stream", cfg.NATS.StreamName))

	// Initialize price feed
	var feed pricefeed.Feed
	if cfg.Market.StaticQuotePrice != "" {
		price, ok := new(big.Int).SetString(cfg.Market.StaticQuotePrice, 10)
		if !ok {
			logger.FatalCtx(ctx, "Invalid static quote price", zap.String("price", cfg.Market.StaticQuotePrice))
		}
		feed = pricefeed.NewStaticFeed(price, cfg.Market.StaticQuoteDecimals)
		logger.WarnCtx(ctx, "Using static price feed", zap.String("price", cfg.Market.StaticQuotePrice))
	} else {
		httpClient := adapter.NewHTTPClient(cfg.Market.PricefeedTimeout)
		feed = pricefeed.NewHTTPFeed(httpClient, cfg.Market.PricefeedURL)
	}

	// Initialize domain services
	services := server.Services{
		Access:   access.NewService(dataStore),
		Registry: registry.NewService(dataStore, publisher, clock),
		Market:   market.NewService(dataStore, feed, publisher, clock, cfg.Market.MarketplaceAddress),
		Funds:    funds.NewService(dataStore),
		Batch:    batch.NewService(dataStore, publisher),
	}

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, services, clock)

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}
