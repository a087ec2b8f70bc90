package cron_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/flemzord/chatmem/internal/cron"
	"github.com/flemzord/chatmem/internal/cron/crontest"
	"github.com/flemzord/chatmem/internal/memory"
)

func TestJobs_DefaultSchedules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		job      cron.Job
		name     string
		schedule string
	}{
		{&cron.RetentionJob{}, "memory_retention", "0 3 * * *"},
		{&cron.RetentionJob{ScheduleExpr: "@hourly"}, "memory_retention", "@hourly"},
		{&cron.CompactionJob{}, "memory_compaction", "*/15 * * * *"},
		{&cron.CompactionJob{ScheduleExpr: "0 * * * *"}, "memory_compaction", "0 * * * *"},
	}
	for _, tt := range tests {
		if got := tt.job.Name(); got != tt.name {
			t.Errorf("Name() = %q, want %q", got, tt.name)
		}
		if got := tt.job.Schedule(); got != tt.schedule {
			t.Errorf("%s Schedule() = %q, want %q", tt.name, got, tt.schedule)
		}
	}
}

func TestRetentionJob_Run(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	var got time.Time
	mgr := &crontest.MockManager{
		SweepFunc: func(at time.Time) (memory.SweepResult, error) {
			got = at
			return memory.SweepResult{Archived: 2, Deleted: 1}, nil
		},
	}
	j := &cron.RetentionJob{Manager: mgr, Logger: slog.Default(), Now: func() time.Time { return now }}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("sweep time = %v, want %v", got, now)
	}
}

func TestRetentionJob_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	j := &cron.RetentionJob{
		Manager: &crontest.MockManager{SweepFunc: func(time.Time) (memory.SweepResult, error) {
			return memory.SweepResult{}, boom
		}},
		Logger: slog.Default(),
	}
	if err := j.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run error = %v, want %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Run error = %v", err)
	}
}

func TestCompactionJob_CompressesOnlyWhenNeeded(t *testing.T) {
	t.Parallel()

	mgr := &crontest.MockManager{
		ResidentIDs: []string{"a", "b", "c", "d"},
		UsageFunc: func(id string) (memory.Usage, error) {
			switch id {
			case "a", "c":
				return memory.Usage{CompressionNeeded: true}, nil
			case "d":
				return memory.Usage{}, memory.ErrConversationNotFound
			}
			return memory.Usage{}, nil
		},
		CompressFunc: func(id string) (bool, error) {
			if id == "c" {
				return false, errors.New("summarizer down")
			}
			return true, nil
		},
	}
	j := &cron.CompactionJob{Manager: mgr, Logger: slog.Default()}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := mgr.Compressed(); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("compressed = %v, want [a c]", got)
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(nil)
	if err := cron.Register(s, &crontest.MockManager{}, cron.Config{}, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := s.Jobs(); !slices.Equal(got, []string{"memory_retention", "memory_compaction"}) {
		t.Errorf("jobs = %v", got)
	}
	if err := cron.Register(s, &crontest.MockManager{}, cron.Config{}, nil); err == nil {
		t.Error("second Register should fail on duplicate names")
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := (cron.Config{Retention: "0 3 * * *", Compaction: "*/5 * * * *"}).Validate(); err != nil {
		t.Errorf("valid config: %v", err)
	}
	if err := (cron.Config{Compaction: "every minute"}).Validate(); err == nil {
		t.Error("expected error for invalid compaction schedule")
	}
}
