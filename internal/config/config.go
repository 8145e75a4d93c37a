package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           int
	DevMode        bool
	LogLevel       string
	DatabasePath   string
	PriceCachePath string

	// Optimization and backtest defaults
	RiskFreeRate float64
	MinLookback  int

	// Market data client
	YahooBaseURL         string
	YahooRatePerSecond   float64
	CacheRefreshSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnvAsInt("GO_PORT", 8080),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabasePath:   getEnv("DATABASE_PATH", "./data/quant.db"),
		PriceCachePath: getEnv("PRICE_CACHE_PATH", "./data/prices.db"),

		RiskFreeRate: getEnvAsFloat("RISK_FREE_RATE", 0.0),
		MinLookback:  getEnvAsInt("MIN_LOOKBACK", 2),

		YahooBaseURL:         getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		YahooRatePerSecond:   getEnvAsFloat("YAHOO_RATE_LIMIT", 2.0),
		CacheRefreshSchedule: getEnv("CACHE_REFRESH_SCHEDULE", "0 0 23 * * MON-FRI"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.PriceCachePath == "" {
		return fmt.Errorf("PRICE_CACHE_PATH is required")
	}
	if c.MinLookback < 2 {
		return fmt.Errorf("MIN_LOOKBACK must be at least 2, got %d", c.MinLookback)
	}
	if c.YahooRatePerSecond <= 0 {
		return fmt.Errorf("YAHOO_RATE_LIMIT must be positive, got %v", c.YahooRatePerSecond)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
