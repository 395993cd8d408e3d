package cron

import (
	"context"
	"log/slog"

	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/storage"
)

// StateSource produces the snapshot the snapshot job flushes. Defined
// here to avoid importing the full store.
type StateSource interface {
	State() session.State
}

// SnapshotJob periodically flushes the full session state to storage.
// The store also persists after every mutation; this job is the backstop
// that bounds data loss if a synchronous persist was ever skipped.
type SnapshotJob struct {
	Source       StateSource
	Store        storage.Store
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*SnapshotJob)(nil)

// Name implements Job.
func (j *SnapshotJob) Name() string { return "state_snapshot" }

// Schedule implements Job.
func (j *SnapshotJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run implements Job.
func (j *SnapshotJob) Run(ctx context.Context) error {
	if err := j.Store.Save(ctx, j.Source.State()); err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Debug("state snapshot saved")
	}
	return nil
}
