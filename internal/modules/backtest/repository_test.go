package backtest

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/leenamkee/quant-portfolio/internal/domain"
	"github.com/leenamkee/quant-portfolio/internal/modules/analytics"
)

func setupRunTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSchema(db))
	return db
}

func testRepository(t *testing.T) *Repository {
	return NewRepository(setupRunTestDB(t), quietLog())
}

func runFixture(id string, createdAt time.Time) *Run {
	sharpe := 1.5
	return &Run{
		ID:        id,
		CreatedAt: createdAt,
		Kind:      RunKindOptimized,
		Params: RunParams{
			Symbols:      []string{"AAA", "BBB"},
			Start:        "2024-01-02",
			End:          "2024-01-04",
			Objective:    "min_volatility",
			Frequency:    "monthly",
			StartCapital: 10000,
			RiskFreeRate: 0.02,
		},
		Report: &analytics.PerformanceReport{
			StartDate:    "2024-01-02",
			EndDate:      "2024-01-04",
			Periods:      3,
			InitialValue: 10000,
			FinalValue:   10450,
			TotalReturn:  0.045,
			SharpeRatio:  &sharpe,
			MaxDrawdown:  -0.05,
		},
		Holdings: []domain.Holding{
			{Date: mdate(2024, time.January, 2), Weights: domain.WeightVector{"AAA": 0.6, "BBB": 0.4}, Value: 10000},
		},
		Trajectory: []domain.ValuePoint{
			{Date: mdate(2024, time.January, 2), Value: 10000},
			{Date: mdate(2024, time.January, 3), Value: 10200},
			{Date: mdate(2024, time.January, 4), Value: 10450},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	repo := testRepository(t)
	createdAt := time.Date(2024, time.January, 5, 10, 30, 0, 0, time.UTC)
	run := runFixture("run-1", createdAt)

	require.NoError(t, repo.SaveRun(run))

	got, err := repo.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "run-1", got.ID)
	assert.True(t, got.CreatedAt.Equal(createdAt))
	assert.Equal(t, RunKindOptimized, got.Kind)
	assert.Equal(t, run.Params, got.Params)

	require.NotNil(t, got.Report)
	assert.Equal(t, 0.045, got.Report.TotalReturn)
	require.NotNil(t, got.Report.SharpeRatio)
	assert.Equal(t, 1.5, *got.Report.SharpeRatio)

	require.Len(t, got.Holdings, 1)
	assert.Equal(t, run.Holdings[0].Weights, got.Holdings[0].Weights)
	assert.Equal(t, run.Holdings[0].Value, got.Holdings[0].Value)
	assert.True(t, got.Holdings[0].Date.Equal(run.Holdings[0].Date))

	require.Len(t, got.Trajectory, 3)
	for i := range got.Trajectory {
		assert.Equal(t, run.Trajectory[i].Value, got.Trajectory[i].Value)
		assert.True(t, got.Trajectory[i].Date.Equal(run.Trajectory[i].Date))
	}
}

func TestGetRunUnknownID(t *testing.T) {
	repo := testRepository(t)

	got, err := repo.GetRun("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRunsNewestFirst(t *testing.T) {
	repo := testRepository(t)
	base := time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveRun(runFixture("run-a", base)))
	require.NoError(t, repo.SaveRun(runFixture("run-b", base.Add(time.Hour))))
	require.NoError(t, repo.SaveRun(runFixture("run-c", base.Add(2*time.Hour))))

	summaries, err := repo.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, "run-c", summaries[0].ID)
	assert.Equal(t, "run-b", summaries[1].ID)
	assert.Equal(t, "run-a", summaries[2].ID)

	assert.Equal(t, 0.045, summaries[0].TotalReturn)
	assert.Equal(t, 10450.0, summaries[0].FinalValue)
	assert.Equal(t, -0.05, summaries[0].MaxDrawdown)
	require.NotNil(t, summaries[0].SharpeRatio)
	assert.Equal(t, 1.5, *summaries[0].SharpeRatio)

	limited, err := repo.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-c", limited[0].ID)
}

func TestListRunsEmpty(t *testing.T) {
	repo := testRepository(t)

	summaries, err := repo.ListRuns(10)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestDeleteRun(t *testing.T) {
	repo := testRepository(t)
	createdAt := time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveRun(runFixture("run-1", createdAt)))
	require.NoError(t, repo.DeleteRun("run-1"))

	got, err := repo.GetRun("run-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an unknown id is a no-op
	require.NoError(t, repo.DeleteRun("never-existed"))
}

func TestSaveRunWithoutSequences(t *testing.T) {
	repo := testRepository(t)
	run := runFixture("run-thin", time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC))
	run.Holdings = nil
	run.Trajectory = nil

	require.NoError(t, repo.SaveRun(run))

	got, err := repo.GetRun("run-thin")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Holdings)
	assert.Empty(t, got.Trajectory)
}
