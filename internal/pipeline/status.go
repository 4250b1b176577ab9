package pipeline

import (
	"time"

	"codescope/internal/analysis"
	scopeerrors "codescope/internal/errors"
)

// Status represents the state of a stage within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusDegraded  Status = "degraded"
	StatusTimedOut  Status = "timed_out"
)

// StageReport is the run metadata of one stage.
type StageReport struct {
	ID         analysis.StageID      `json:"id"`
	Status     Status                `json:"status"`
	Required   bool                  `json:"required"`
	Code       scopeerrors.ErrorCode `json:"code,omitempty"`
	Cause      string                `json:"cause,omitempty"`
	Partitions int                   `json:"partitions"`
	Files      int                   `json:"files"`
	Reused     bool                  `json:"reused,omitempty"`
	DurationMs int64                 `json:"durationMs"`
	startedAt  time.Time
}

// HasOutput reports whether the stage contributed results to the run.
func (r *StageReport) HasOutput() bool {
	return r.Status == StatusSucceeded || r.Status == StatusDegraded
}

// Partial reports whether the stage's section is missing or best-effort.
func (r *StageReport) Partial() bool {
	return r.Status != StatusSucceeded
}

// MarkStarted moves the stage to running.
func (r *StageReport) MarkStarted(now time.Time) {
	r.Status = StatusRunning
	r.startedAt = now
}

// MarkSucceeded records a clean finish.
func (r *StageReport) MarkSucceeded(now time.Time) {
	r.Status = StatusSucceeded
	r.finish(now)
}

// MarkReused records that a memoized output was carried over.
func (r *StageReport) MarkReused() {
	r.Status = StatusSucceeded
	r.Reused = true
}

// MarkFailed records a failure. A timeout gets its own state.
func (r *StageReport) MarkFailed(now time.Time, timedOut bool, cause error) {
	if timedOut {
		r.Status = StatusTimedOut
		r.Code = scopeerrors.StageTimeout
	} else {
		r.Status = StatusFailed
		r.Code = scopeerrors.StageFailure
	}
	if cause != nil {
		r.Cause = cause.Error()
	}
	r.finish(now)
}

// MarkDegraded records that the fallback replaced a failed run. Code and
// Cause keep describing the original failure.
func (r *StageReport) MarkDegraded(now time.Time) {
	r.Status = StatusDegraded
	r.finish(now)
}

func (r *StageReport) finish(now time.Time) {
	if !r.startedAt.IsZero() {
		r.DurationMs = now.Sub(r.startedAt).Milliseconds()
	}
}
