package backtest

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/leenamkee/quant-portfolio/internal/modules/analytics"
)

// Repository persists completed runs in the application database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "backtest_runs").Logger(),
	}
}

// SaveRun stores a completed run with its full sequences.
func (r *Repository) SaveRun(run *Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	holdings, err := msgpack.Marshal(run.Holdings)
	if err != nil {
		return fmt.Errorf("failed to marshal holdings: %w", err)
	}
	trajectory, err := msgpack.Marshal(run.Trajectory)
	if err != nil {
		return fmt.Errorf("failed to marshal trajectory: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO backtest_runs (id, created_at, kind, params, report, holdings, trajectory)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339),
		run.Kind,
		string(params),
		string(report),
		holdings,
		trajectory,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Debug().Str("id", run.ID).Str("kind", run.Kind).Msg("Saved backtest run")
	return nil
}

// GetRun loads a run with its full sequences. Returns nil for an
// unknown id.
func (r *Repository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, created_at, kind, params, report, holdings, trajectory
		FROM backtest_runs
		WHERE id = ?`, id)

	var run Run
	var createdAt, params, report string
	var holdings, trajectory []byte

	err := row.Scan(&run.ID, &createdAt, &run.Kind, &params, &report, &holdings, &trajectory)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("failed to decode params: %w", err)
	}
	if err := json.Unmarshal([]byte(report), &run.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if len(holdings) > 0 {
		if err := msgpack.Unmarshal(holdings, &run.Holdings); err != nil {
			return nil, fmt.Errorf("failed to decode holdings: %w", err)
		}
	}
	if len(trajectory) > 0 {
		if err := msgpack.Unmarshal(trajectory, &run.Trajectory); err != nil {
			return nil, fmt.Errorf("failed to decode trajectory: %w", err)
		}
	}

	return &run, nil
}

// ListRuns returns newest-first run summaries without the heavy
// sequences.
func (r *Repository) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, created_at, kind, params, report
		FROM backtest_runs
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		var createdAt, params, report string

		if err := rows.Scan(&s.ID, &createdAt, &s.Kind, &params, &report); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if err := json.Unmarshal([]byte(params), &s.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params: %w", err)
		}

		var rep analytics.PerformanceReport
		if err := json.Unmarshal([]byte(report), &rep); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		s.TotalReturn = rep.TotalReturn
		s.SharpeRatio = rep.SharpeRatio
		s.MaxDrawdown = rep.MaxDrawdown
		s.FinalValue = rep.FinalValue

		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// DeleteRun removes a run. Unknown ids are not an error.
func (r *Repository) DeleteRun(id string) error {
	if _, err := r.db.Exec(`DELETE FROM backtest_runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
