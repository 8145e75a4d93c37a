package commands

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/leenamkee/quant-portfolio/internal/clients/yahoo"
	"github.com/leenamkee/quant-portfolio/internal/config"
	"github.com/leenamkee/quant-portfolio/internal/database"
	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/internal/modules/backtest"
	"github.com/leenamkee/quant-portfolio/internal/modules/marketdata"
	"github.com/leenamkee/quant-portfolio/pkg/logger"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qp",
	Short: "Portfolio optimization and backtesting toolkit",
	Long: `qp solves optimal portfolio weights and replays rebalancing
strategies over historical prices.

Prices come from Yahoo Finance through a local sqlite cache, so
repeated runs over the same window stay fast and offline-friendly.

Examples:
  qp optimize AAPL MSFT GOOG --objective max_sharpe
  qp backtest AAPL MSFT --objective min_volatility --frequency monthly
  qp compare AAPL MSFT GOOG --objectives max_sharpe,equal_weight
  qp runs list`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// stack bundles the services commands operate on. Commands that only
// read prices leave the application database closed.
type stack struct {
	cfg        *config.Config
	log        zerolog.Logger
	marketData *marketdata.Service
	appDB      *database.DB
	priceConn  *sql.DB
}

func (s *stack) Close() {
	if s.priceConn != nil {
		s.priceConn.Close()
	}
	if s.appDB != nil {
		s.appDB.Close()
	}
}

func (s *stack) runs() *backtest.Repository {
	return backtest.NewRepository(s.appDB.Conn(), s.log)
}

// openStack loads configuration and builds the market-data pipeline.
// withAppDB also opens the application database for run persistence.
func openStack(withAppDB bool) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true})

	priceConn, err := marketdata.Open(cfg.PriceCachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open price cache: %w", err)
	}
	if err := marketdata.InitSchema(priceConn); err != nil {
		priceConn.Close()
		return nil, fmt.Errorf("failed to initialize price cache schema: %w", err)
	}

	client := yahoo.NewClient(cfg.YahooBaseURL, cfg.YahooRatePerSecond, log)
	cache := marketdata.NewCache(priceConn, log)

	st := &stack{
		cfg:        cfg,
		log:        log,
		marketData: marketdata.NewService(cache, client, log),
		priceConn:  priceConn,
	}

	if withAppDB {
		appDB, err := database.New(cfg.DatabasePath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to open application database: %w", err)
		}
		if err := backtest.InitSchema(appDB.Conn()); err != nil {
			appDB.Close()
			st.Close()
			return nil, fmt.Errorf("failed to initialize backtest schema: %w", err)
		}
		st.appDB = appDB
	}

	return st, nil
}

// parseWindow resolves the analysis window; an empty end means today
// and an empty start means one year before the end.
func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if endStr != "" {
		parsed, err := time.Parse(domain.DateFormat, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endStr, err)
		}
		end = parsed
	}

	start := end.AddDate(-1, 0, 0)
	if startStr != "" {
		parsed, err := time.Parse(domain.DateFormat, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startStr, err)
		}
		start = parsed
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s must be before end %s",
			start.Format(domain.DateFormat), end.Format(domain.DateFormat))
	}

	return start, end, nil
}
