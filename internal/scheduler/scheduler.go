package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of scheduled background work
type Job interface {
	Run() error
	Name() string
}

// JobStatus is a point-in-time view of one registered job, exposed on
// the system stats endpoint
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type jobEntry struct {
	job      Job
	schedule string
	lastRun  time.Time
	lastErr  error
}

// Scheduler runs registered jobs on cron schedules and remembers each
// job's last outcome
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu    sync.Mutex
	jobs  map[string]*jobEntry
	order []string
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]*jobEntry),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job under a cron schedule. Job names must be
// unique; they key manual triggering and status listings.
// Schedule examples:
//   - "0 */5 * * * *"       - Every 5 minutes
//   - "@hourly"             - Every hour
//   - "0 30 18 * * MON-FRI" - 18:30 on weekdays
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %q already registered", job.Name())
	}

	entry := &jobEntry{job: job, schedule: schedule}
	if _, err := s.cron.AddFunc(schedule, func() { s.execute(entry) }); err != nil {
		return err
	}

	s.jobs[job.Name()] = entry
	s.order = append(s.order, job.Name())

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a registered job immediately (outside schedule)
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no job named %q", name)
	}

	s.log.Info().Str("job", name).Msg("Running job immediately")
	return s.execute(entry)
}

// Jobs lists registered jobs in registration order
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		entry := s.jobs[name]
		status := JobStatus{Name: name, Schedule: entry.schedule}
		if !entry.lastRun.IsZero() {
			t := entry.lastRun
			status.LastRun = &t
		}
		if entry.lastErr != nil {
			status.LastError = entry.lastErr.Error()
		}
		out = append(out, status)
	}
	return out
}

func (s *Scheduler) execute(entry *jobEntry) error {
	name := entry.job.Name()
	s.log.Debug().Str("job", name).Msg("Running job")

	err := entry.job.Run()

	s.mu.Lock()
	entry.lastRun = time.Now()
	entry.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", name).
			Msg("Job failed")
	} else {
		s.log.Debug().Str("job", name).Msg("Job completed")
	}

	return err
}
