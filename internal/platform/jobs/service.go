package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	JobPayrollRun = "payroll_run"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrQueueFull = errors.New("job queue full")
	ErrStopped   = errors.New("job worker stopped")
)

// RunStore records job lifecycles. PGRunStore writes them to job_runs.
type RunStore interface {
	Start(ctx context.Context, jobType string) (string, error)
	Finish(ctx context.Context, runID, status string, detailsJSON []byte) error
}

type Service struct {
	runs  RunStore
	log   zerolog.Logger
	queue chan job

	mu      sync.Mutex
	stopped bool
}

type job struct {
	Type  string
	RunID string
	Run   func(context.Context) (any, error)
}

func New(runs RunStore, log zerolog.Logger, capacity int) *Service {
	if capacity <= 0 {
		capacity = 32
	}
	return &Service{
		runs:  runs,
		log:   log.With().Str("component", "jobs").Logger(),
		queue: make(chan job, capacity),
	}
}

// Start runs the worker until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Enqueue records a pending run and hands it to the worker. The returned id
// identifies the job_runs row.
func (s *Service) Enqueue(ctx context.Context, jobType string, run func(context.Context) (any, error)) (string, error) {
	runID, err := s.runs.Start(ctx, jobType)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.finish(ctx, runID, StatusFailed, map[string]string{"error": ErrStopped.Error()})
		return "", ErrStopped
	}
	select {
	case s.queue <- job{Type: jobType, RunID: runID, Run: run}:
		s.mu.Unlock()
		return runID, nil
	default:
		s.mu.Unlock()
		s.finish(ctx, runID, StatusFailed, map[string]string{"error": ErrQueueFull.Error()})
		s.log.Warn().Str("job_type", jobType).Msg("job queue full")
		return "", ErrQueueFull
	}
}

// RunNow executes run inline and records it like a queued job.
func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	runID, err := s.runs.Start(ctx, jobType)
	if err != nil {
		s.log.Warn().Err(err).Str("job_type", jobType).Msg("job run insert failed")
	}
	return s.execute(ctx, job{Type: jobType, RunID: runID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			s.drain(ctx)
			return
		}
		select {
		case <-ctx.Done():
			s.drain(ctx)
			return
		case j := <-s.queue:
			if _, err := s.execute(ctx, j); err != nil {
				s.log.Warn().Err(err).Str("job_type", j.Type).Str("run_id", j.RunID).Msg("job run failed")
			}
		}
	}
}

// drain stops accepting work and fails every run still queued, so no
// job_runs row is left running after shutdown.
func (s *Service) drain(ctx context.Context) {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	for {
		select {
		case j := <-s.queue:
			s.finish(ctx, j.RunID, StatusFailed, map[string]string{"error": ErrStopped.Error()})
			s.log.Warn().Str("job_type", j.Type).Str("run_id", j.RunID).Msg("queued job dropped at shutdown")
		default:
			return
		}
	}
}

func (s *Service) execute(ctx context.Context, j job) (any, error) {
	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]string{"error": err.Error()}
	}
	s.finish(ctx, j.RunID, status, details)
	return details, err
}

func (s *Service) finish(ctx context.Context, runID, status string, details any) {
	if runID == "" {
		return
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		s.log.Warn().Err(err).Msg("job details marshal failed")
		detailsJSON = []byte("{}")
	}
	if err := s.runs.Finish(context.WithoutCancel(ctx), runID, status, detailsJSON); err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("job run update failed")
	}
}

type PGRunStore struct {
	DB *pgxpool.Pool
}

func (p PGRunStore) Start(ctx context.Context, jobType string) (string, error) {
	var id string
	err := p.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, jobType, StatusRunning).Scan(&id)
	return id, err
}

func (p PGRunStore) Finish(ctx context.Context, runID, status string, detailsJSON []byte) error {
	_, err := p.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID)
	return err
}
