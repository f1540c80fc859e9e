package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
)

// Janitor removes conversations left with fewer than two participants, once
// they are older than Grace.
type Janitor struct {
	UoWFactory uow.UoWFactory
	Grace      time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

func (j *Janitor) SweepOrphans(ctx context.Context) (int, error) {
	if j.UoWFactory == nil {
		return 0, errors.New("jobs: janitor missing unit of work factory")
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	cutoff := now().UTC().Add(-j.Grace)

	scope, err := uow.Enter(ctx, j.UoWFactory, uow.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer scope.Done()

	removed, err := scope.Unit.Conversations().DeleteOrphans(scope.Ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan conversations: %w", err)
	}
	if err := scope.Commit(); err != nil {
		return 0, err
	}
	if removed > 0 && j.Logger != nil {
		j.Logger.InfoContext(ctx, "orphan conversations removed", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// Scheduler runs the janitor on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(schedule string, janitor *Janitor, logger *slog.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := janitor.SweepOrphans(ctx); err != nil && logger != nil {
			logger.Error("orphan sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
