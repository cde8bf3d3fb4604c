package sampler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MycelicMemory/irm"
	"github.com/MycelicMemory/irm/internal/logging"
	"github.com/MycelicMemory/irm/internal/snapshot"
)

var log = logging.GetLogger("sampler")

// Service runs sampler sweeps one at a time, each against the model its
// RunConfig names, persisting run history and the resulting state to a
// snapshot.Store.
type Service struct {
	store *snapshot.Store
	mu    sync.RWMutex

	activeRunID string
}

// NewService creates a sampler service backed by store.
func NewService(store *snapshot.Store) *Service {
	return &Service{store: store}
}

// Run resamples the given bound domains (one per config.Domains entry, in
// the same order) for config.Iterations sweeps, persisting state's snapshot
// after every sweep and a full run record once the sweep completes (or
// fails). Callers construct each irm.BoundState themselves via
// irm.NewBoundState, since only they know which dataview slice backs which
// domain.
func (s *Service) Run(ctx context.Context, state *irm.State, defn snapshot.DefinitionSummary, bound []*irm.BoundState, config *RunConfig) (*RunResults, error) {
	s.mu.Lock()
	if s.activeRunID != "" {
		s.mu.Unlock()
		return nil, ErrSweepAlreadyRunning
	}
	if len(config.Domains) == 0 {
		s.mu.Unlock()
		return nil, ErrNoDomainsConfigured
	}

	runID := uuid.New().String()
	s.activeRunID = runID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.activeRunID = ""
		s.mu.Unlock()
	}()

	log.LogSweepStart(runID, config.ModelID, config.Iterations)

	// sampler_runs.model_id references model_snapshots, so the model's row
	// has to exist before the run is recorded.
	if err := s.store.Save(config.ModelID, defn, state.Serialize()); err != nil {
		return nil, fmt.Errorf("failed to save initial snapshot: %w", err)
	}

	startedAt := time.Now()
	if err := s.recordStart(runID, config, startedAt); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	results := &RunResults{
		RunID:     runID,
		ModelID:   config.ModelID,
		Status:    StatusRunning,
		StartedAt: startedAt,
		Config:    *config,
	}

	if len(bound) != len(config.Domains) {
		err := fmt.Errorf("sampler: %d bound domains for %d configured domains", len(bound), len(config.Domains))
		s.recordFailure(runID, config.ModelID, startedAt, err)
		results.Status = StatusFailed
		results.ErrorMessage = err.Error()
		return results, err
	}
	runner := NewRunner(bound, config.Seed)

	for i := 0; i < config.Iterations; i++ {
		select {
		case <-ctx.Done():
			s.recordFailure(runID, config.ModelID, startedAt, ctx.Err())
			results.Status = StatusCancelled
			results.ErrorMessage = ctx.Err().Error()
			return results, ctx.Err()
		default:
		}

		iterStart := time.Now()
		if err := runner.Sweep(); err != nil {
			s.recordFailure(runID, config.ModelID, startedAt, err)
			results.Status = StatusFailed
			results.ErrorMessage = err.Error()
			return results, err
		}

		logJoint, err := runner.LogJoint()
		if err != nil {
			s.recordFailure(runID, config.ModelID, startedAt, err)
			results.Status = StatusFailed
			results.ErrorMessage = err.Error()
			return results, err
		}

		results.Iterations = append(results.Iterations, IterationResult{
			Iteration:   i,
			LogJoint:    logJoint,
			GroupCounts: runner.GroupCounts(),
			DurationMs:  time.Since(iterStart).Milliseconds(),
		})
		results.FinalLogJoint = logJoint

		if err := s.store.Save(config.ModelID, defn, state.Serialize()); err != nil {
			s.recordFailure(runID, config.ModelID, startedAt, err)
			results.Status = StatusFailed
			results.ErrorMessage = err.Error()
			return results, err
		}

		if config.Verbose {
			log.Info("sweep complete", "run_id", runID, "iteration", i, "log_joint", logJoint)
		}
	}

	completedAt := time.Now()
	results.CompletedAt = &completedAt
	results.DurationSecs = completedAt.Sub(startedAt).Seconds()
	results.Status = StatusCompleted

	if err := s.recordCompletion(runID, completedAt, results.FinalLogJoint); err != nil {
		return results, fmt.Errorf("failed to record run completion: %w", err)
	}

	log.LogSweepComplete(runID, config.ModelID, completedAt.Sub(startedAt), results.FinalLogJoint)
	return results, nil
}

func (s *Service) recordStart(runID string, config *RunConfig, startedAt time.Time) error {
	_, err := s.store.DB().Exec(`
		INSERT INTO sampler_runs (id, model_id, started_at, status, iterations, seed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, config.ModelID, startedAt, string(StatusRunning), config.Iterations, config.Seed)
	return err
}

func (s *Service) recordCompletion(runID string, completedAt time.Time, finalLogJoint float64) error {
	_, err := s.store.DB().Exec(`
		UPDATE sampler_runs SET completed_at = ?, status = ?, final_log_joint = ?
		WHERE id = ?
	`, completedAt, string(StatusCompleted), finalLogJoint, runID)
	return err
}

func (s *Service) recordFailure(runID, modelID string, startedAt time.Time, cause error) {
	log.LogSweepFailure(runID, modelID, cause)
	now := time.Now()
	if _, err := s.store.DB().Exec(`
		UPDATE sampler_runs SET completed_at = ?, status = ?, error_message = ?
		WHERE id = ?
	`, now, string(StatusFailed), cause.Error(), runID); err != nil {
		log.Error("failed to record database update for a run failure", "error", err, "run_id", runID)
	}
}
