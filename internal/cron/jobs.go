package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/chatmem/internal/memory"
)

// Sweeper is the subset of memory.Manager used by RetentionJob.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (memory.SweepResult, error)
}

// Compressor is the subset of memory.Manager used by CompactionJob.
type Compressor interface {
	Resident() []string
	MemoryUsage(ctx context.Context, id string) (memory.Usage, error)
	CompressConversation(ctx context.Context, id string) (bool, error)
}

// RetentionJob archives idle conversations and deletes expired ones.
type RetentionJob struct {
	Manager      Sweeper
	Logger       *slog.Logger
	Now          func() time.Time
	ScheduleExpr string // empty = default "0 3 * * *"
}

// Compile-time interface check.
var _ Job = (*RetentionJob)(nil)

// Name implements Job.
func (j *RetentionJob) Name() string { return "memory_retention" }

// Schedule implements Job.
func (j *RetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run sweeps the store once.
func (j *RetentionJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: retention cancelled: %w", ctx.Err())
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	res, err := j.Manager.Sweep(ctx, now())
	if err != nil {
		return fmt.Errorf("cron: retention: %w", err)
	}
	if res.Archived > 0 || res.Deleted > 0 {
		j.Logger.Info("cron: retention sweep", "archived", res.Archived, "deleted", res.Deleted)
	}
	return nil
}

// CompactionJob compresses resident conversations whose usage reports
// CompressionNeeded. It covers deployments running with auto_compress off.
type CompactionJob struct {
	Manager      Compressor
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/15 * * * *"
}

// Compile-time interface check.
var _ Job = (*CompactionJob)(nil)

// Name implements Job.
func (j *CompactionJob) Name() string { return "memory_compaction" }

// Schedule implements Job.
func (j *CompactionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/15 * * * *"
}

// Run checks every resident conversation once.
func (j *CompactionJob) Run(ctx context.Context) error {
	compressed := 0
	for _, id := range j.Manager.Resident() {
		if ctx.Err() != nil {
			return fmt.Errorf("cron: compaction cancelled: %w", ctx.Err())
		}
		usage, err := j.Manager.MemoryUsage(ctx, id)
		if err != nil || !usage.CompressionNeeded {
			continue
		}
		ok, err := j.Manager.CompressConversation(ctx, id)
		if err != nil {
			j.Logger.Warn("cron: compaction failed", "conversation", id, "error", err)
			continue
		}
		if ok {
			compressed++
		}
	}
	if compressed > 0 {
		j.Logger.Info("cron: compacted conversations", "count", compressed)
	}
	return nil
}

// Register adds the maintenance jobs selected by cfg to s.
func Register(s *Scheduler, m interface {
	Sweeper
	Compressor
}, cfg Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	jobs := []Job{
		&RetentionJob{Manager: m, Logger: logger, ScheduleExpr: cfg.Retention},
		&CompactionJob{Manager: m, Logger: logger, ScheduleExpr: cfg.Compaction},
	}
	for _, j := range jobs {
		if err := s.RegisterJob(j); err != nil {
			return err
		}
	}
	return nil
}
