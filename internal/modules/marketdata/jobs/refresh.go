package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/leenamkee/quant-portfolio/internal/modules/marketdata"
)

// refreshTimeout bounds a single refresh pass across all cached symbols
const refreshTimeout = 15 * time.Minute

// RefreshJob keeps cached price histories current. Scheduled after
// market close on weekdays.
type RefreshJob struct {
	service *marketdata.Service
	log     zerolog.Logger
}

// NewRefreshJob creates a new price cache refresh job
func NewRefreshJob(service *marketdata.Service, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		service: service,
		log:     log.With().Str("job", "price_cache_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "price_cache_refresh"
}

// Run refreshes every cached symbol through today
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	refreshed, err := j.service.RefreshCached(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Price cache refresh failed")
		return err
	}

	j.log.Info().Int("refreshed", refreshed).Msg("Price cache refresh finished")
	return nil
}
