// Package sampler drives Gibbs sweeps over an irm.State and records their
// history. It never owns the model's storage -- callers hand it a bound
// state to mutate in place and a snapshot.Store to persist run metadata and
// the result.
package sampler

import (
	"encoding/json"
	"time"
)

// RunConfig holds configuration for one sampler sweep.
type RunConfig struct {
	ModelID    string `json:"model_id"`
	Domains    []int  `json:"domains"`     // domain indices to resample, in order, per sweep
	Iterations int    `json:"iterations"`  // number of full sweeps
	Seed       int64  `json:"seed"`
	Verbose    bool   `json:"verbose"`
}

// ToJSON serializes config to JSON, mirroring the config-snapshot idiom used
// by run-history records elsewhere in this tree.
func (c *RunConfig) ToJSON() string {
	data, _ := json.Marshal(c)
	return string(data)
}

// RunStatus represents the status of a sampler run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// IterationResult records one sweep's summary statistics.
type IterationResult struct {
	Iteration    int     `json:"iteration"`
	LogJoint     float64 `json:"log_joint"`
	GroupCounts  []int   `json:"group_counts"` // NGroups() per domain, after the sweep
	DurationMs   int64   `json:"duration_ms"`
}

// RunResults holds the complete outcome of a sampler run.
type RunResults struct {
	RunID        string            `json:"run_id"`
	ModelID      string            `json:"model_id"`
	Status       RunStatus         `json:"status"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	DurationSecs float64           `json:"duration_seconds"`
	Config       RunConfig         `json:"config"`
	Iterations   []IterationResult `json:"iterations"`
	FinalLogJoint float64          `json:"final_log_joint"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

// Progress reports the in-flight state of a running sweep.
type Progress struct {
	RunID           string    `json:"run_id"`
	Status          RunStatus `json:"status"`
	TotalIterations int       `json:"total_iterations"`
	CompletedCount  int       `json:"completed_count"`
	PercentComplete float64   `json:"percent_complete"`
	ElapsedSecs     float64   `json:"elapsed_seconds"`
}
