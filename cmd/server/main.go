package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leenamkee/quant-portfolio/internal/clients/yahoo"
	"github.com/leenamkee/quant-portfolio/internal/config"
	"github.com/leenamkee/quant-portfolio/internal/database"
	"github.com/leenamkee/quant-portfolio/internal/modules/allocation"
	"github.com/leenamkee/quant-portfolio/internal/modules/backtest"
	"github.com/leenamkee/quant-portfolio/internal/modules/marketdata"
	"github.com/leenamkee/quant-portfolio/internal/modules/marketdata/jobs"
	"github.com/leenamkee/quant-portfolio/internal/modules/optimization"
	"github.com/leenamkee/quant-portfolio/internal/modules/rebalancing"
	"github.com/leenamkee/quant-portfolio/internal/scheduler"
	"github.com/leenamkee/quant-portfolio/internal/server"
	"github.com/leenamkee/quant-portfolio/pkg/logger"
)

func main() {
	// Load configuration first to get the log level
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting quant-portfolio server")

	// Application database holds persisted backtest runs; the price
	// cache lives in its own file so it can be wiped independently
	appDB, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open application database")
	}
	defer appDB.Close()

	priceConn, err := marketdata.Open(cfg.PriceCachePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open price cache database")
	}
	defer priceConn.Close()

	if err := backtest.InitSchema(appDB.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize backtest schema")
	}
	if err := marketdata.InitSchema(priceConn); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price cache schema")
	}

	// Market data pipeline: Yahoo client behind the sqlite price cache
	yahooClient := yahoo.NewClient(cfg.YahooBaseURL, cfg.YahooRatePerSecond, log)
	priceCache := marketdata.NewCache(priceConn, log)
	marketData := marketdata.NewService(priceCache, yahooClient, log)

	// Scheduler with the nightly cache refresh
	sched := scheduler.New(log)
	refreshJob := jobs.NewRefreshJob(marketData, log)
	if err := sched.AddJob(cfg.CacheRefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	sched.Start()
	defer sched.Stop()

	// Module handlers
	optimizationHandler := optimization.NewHandler(marketData, cfg.RiskFreeRate, log)
	backtestRepo := backtest.NewRepository(appDB.Conn(), log)
	backtestHandler := backtest.NewHandler(marketData, backtestRepo, cfg.RiskFreeRate, log)
	rebalancingHandler := rebalancing.NewHandler(marketData, log)
	allocationHandler := allocation.NewHandler(marketData, log)
	marketDataHandler := marketdata.NewHandler(marketData, log)

	systemHandlers := server.NewSystemHandlers(log, cfg.DatabasePath, cfg.PriceCachePath, sched)
	systemHandlers.SetRefreshJob(refreshJob)

	srv := server.New(server.Config{
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		Log:     log,
		Deps: server.Deps{
			Optimization: optimizationHandler,
			Backtest:     backtestHandler,
			Rebalancing:  rebalancingHandler,
			Allocation:   allocationHandler,
			MarketData:   marketDataHandler,
			System:       systemHandlers,
		},
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
