package marketdata

import "database/sql"

// PricesSchema holds cached daily bars keyed by symbol and date.
// Dates are stored as ISO strings so range queries sort correctly.
const PricesSchema = `
CREATE TABLE IF NOT EXISTS daily_prices (
    symbol TEXT NOT NULL,
    date TEXT NOT NULL,
    open REAL NOT NULL,
    high REAL NOT NULL,
    low REAL NOT NULL,
    close REAL NOT NULL,
    adj_close REAL NOT NULL,
    volume INTEGER,
    PRIMARY KEY (symbol, date)
);

CREATE INDEX IF NOT EXISTS idx_daily_prices_symbol ON daily_prices(symbol);
CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date DESC);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(PricesSchema)
	return err
}
