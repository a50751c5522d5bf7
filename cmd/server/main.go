package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/tradeshield-api/internal/auth"
	"github.com/ksred/tradeshield-api/internal/config"
	"github.com/ksred/tradeshield-api/internal/database"
	"github.com/ksred/tradeshield-api/internal/market"
	"github.com/ksred/tradeshield-api/internal/orders"
	"github.com/ksred/tradeshield-api/internal/settlement"
	"github.com/ksred/tradeshield-api/internal/store"
	"github.com/ksred/tradeshield-api/internal/trigger"
	"github.com/ksred/tradeshield-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the order engine with graceful shutdown
// support: the order ledger and trigger index, the simulated market
// collaborators, the per-block trigger processor, and the API routes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	orderStore, err := store.New(db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to restore order book store")
	}

	// Simulated market collaborators; in production these sit behind the
	// chain's query/message boundary
	oracle := market.NewSimulatedOracle(map[string]decimal.Decimal{
		"BTC/USDC":  decimal.NewFromInt(62000),
		"ETH/USDC":  decimal.NewFromInt(2400),
		"ATOM/USDC": decimal.NewFromInt(9),
	})
	amm := market.NewSimulatedAMM(oracle)
	perpetualEngine := market.NewSimulatedPerpetualEngine()
	bank := market.NewSimulatedBank()
	tiers := market.NewStaticTierService(nil)

	correlator := settlement.NewCorrelator(orderStore, bank)
	dispatcher := settlement.NewDispatcher(orderStore, correlator, amm, perpetualEngine, oracle, tiers)

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	middleware.SetJWTSecret(cfg.JWTSecret)
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	ordersService := orders.NewService(orderStore, dispatcher, bank)
	ordersHandlers := orders.NewGinHandlers(ordersService)

	settlementHandlers := settlement.NewGinHandlers(correlator)

	// Create and start the per-block trigger processor
	processor := trigger.NewProcessor(orderStore, dispatcher, oracle, perpetualEngine, bank, cfg.BlockInterval, cfg.EvaluationCap)
	triggerHandlers := trigger.NewGinHandlers(processor)

	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()
	go processor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, ordersHandlers, triggerHandlers, settlementHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Order routes: Protected by JWT authentication
// - Internal routes: Host-invoked entry points (block tick, replies)
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	ordersHandlers *orders.GinHandlers,
	triggerHandlers *trigger.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		ordersGroup := v1.Group("/orders")
		ordersGroup.Use(middleware.JWTAuth())
		{
			ordersGroup.POST("/spot", ordersHandlers.CreateSpotOrderHandler())
			ordersGroup.POST("/spot/cancel", ordersHandlers.CancelSpotOrdersHandler())
			ordersGroup.GET("/spot", ordersHandlers.ListSpotOrdersHandler())
			ordersGroup.GET("/spot/:order_id", ordersHandlers.GetSpotOrderHandler())

			ordersGroup.POST("/perpetual", ordersHandlers.CreatePerpetualOrderHandler())
			ordersGroup.POST("/perpetual/cancel", ordersHandlers.CancelPerpetualOrdersHandler())
			ordersGroup.GET("/perpetual", ordersHandlers.ListPerpetualOrdersHandler())
			ordersGroup.GET("/perpetual/:order_id", ordersHandlers.GetPerpetualOrderHandler())
		}

		// Internal routes (host scheduler and runtime callbacks)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/tick", triggerHandlers.TickHandler())
			internal.POST("/reply/:reply_id", settlementHandlers.ReplyHandler())
		}
	}
}
