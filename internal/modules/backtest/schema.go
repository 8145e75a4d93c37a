package backtest

import "database/sql"

// RunsSchema is the backtest run store: parameters and report stored as
// JSON, the full holding/trajectory sequences as msgpack blobs.
const RunsSchema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    kind TEXT NOT NULL,
    params TEXT NOT NULL,
    report TEXT NOT NULL,
    holdings BLOB,
    trajectory BLOB
);

CREATE INDEX IF NOT EXISTS idx_backtest_runs_created_at ON backtest_runs(created_at DESC);
`

// InitSchema creates the backtest tables if they do not exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(RunsSchema)
	return err
}
