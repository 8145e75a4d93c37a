package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/domain"
)

// Cache provides access to the local daily price store. All methods
// are safe for concurrent use through the underlying *sql.DB.
type Cache struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCache creates a new price cache accessor
func NewCache(db *sql.DB, log zerolog.Logger) *Cache {
	return &Cache{
		db:  db,
		log: log.With().Str("component", "price_cache").Logger(),
	}
}

// Open opens the price cache database file. The cache keeps its own
// connection separate from the application database so it can be wiped
// or rebuilt without touching persisted runs.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open price cache: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping price cache: %w", err)
	}

	return db, nil
}

// GetBars fetches cached bars for a symbol within [start, end],
// ordered by date ascending
func (c *Cache) GetBars(symbol string, start, end time.Time) ([]PriceBar, error) {
	query := `
		SELECT date, open, high, low, close, adj_close, volume
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := c.db.Query(query,
		symbol,
		start.Format(domain.DateFormat),
		end.Format(domain.DateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var bars []PriceBar
	for rows.Next() {
		var b PriceBar
		var volume sql.NullInt64

		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		if volume.Valid {
			b.Volume = &volume.Int64
		}

		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return bars, nil
}

// UpsertBars writes bars for a symbol in a single transaction,
// replacing rows that already exist for the same date
func (c *Cache) UpsertBars(symbol string, bars []PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_prices
		(symbol, date, open, high, low, close, adj_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		volume := sql.NullInt64{}
		if b.Volume != nil {
			volume.Int64 = *b.Volume
			volume.Valid = true
		}

		if _, err := stmt.Exec(symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.AdjClose, volume); err != nil {
			return fmt.Errorf("failed to insert daily price for %s: %w", b.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.log.Debug().
		Str("symbol", symbol).
		Int("count", len(bars)).
		Msg("Upserted daily prices")

	return nil
}

// GetCoverage reports the cached date range for a symbol. A symbol
// with no cached rows returns nil without error.
func (c *Cache) GetCoverage(symbol string) (*Coverage, error) {
	query := `
		SELECT COALESCE(MIN(date), ''), COALESCE(MAX(date), ''), COUNT(*)
		FROM daily_prices
		WHERE symbol = ?
	`

	var cov Coverage
	cov.Symbol = symbol
	err := c.db.QueryRow(query, symbol).Scan(&cov.FirstDate, &cov.LastDate, &cov.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}

	if cov.Count == 0 {
		return nil, nil
	}

	return &cov, nil
}

// Symbols lists every symbol with at least one cached bar
func (c *Cache) Symbols() ([]string, error) {
	rows, err := c.db.Query(`SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

// LatestBar returns the most recent cached bar for a symbol, or nil
// when the symbol has no cached data
func (c *Cache) LatestBar(symbol string) (*PriceBar, error) {
	query := `
		SELECT date, open, high, low, close, adj_close, volume
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT 1
	`

	var b PriceBar
	var volume sql.NullInt64
	err := c.db.QueryRow(query, symbol).Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &volume)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest bar: %w", err)
	}

	if volume.Valid {
		b.Volume = &volume.Int64
	}

	return &b, nil
}
