// Package cron schedules the periodic memory maintenance jobs: retention
// sweeps and background compaction.
package cron

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "*/5 * * * *").
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}

// Config selects which maintenance jobs run and when. An empty schedule
// keeps the job's default.
type Config struct {
	// Disabled turns the scheduler off entirely.
	Disabled bool `yaml:"disabled"`

	Retention  string `yaml:"retention"`
	Compaction string `yaml:"compaction"`
}

// Validate checks that every configured schedule parses.
func (c Config) Validate() error {
	for name, expr := range map[string]string{"retention": c.Retention, "compaction": c.Compaction} {
		if expr == "" {
			continue
		}
		if _, err := parser().Parse(expr); err != nil {
			return fmt.Errorf("cron: invalid %s schedule %q: %w", name, expr, err)
		}
	}
	return nil
}

func parser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}
