// Package sweeper keeps the isOverdue flag of tasks current on a cron
// schedule.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"catering/internal/storage/sqlite"
)

// DefaultSpec runs the sweep every quarter hour.
const DefaultSpec = "@every 15m"

// Sweeper flags incomplete tasks of live events whose due date has passed
// and clears the flag on everything else.
type Sweeper struct {
	store  *sqlite.Store
	logger *slog.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// New schedules the sweep on spec, a standard cron expression or a
// descriptor such as "@hourly" or "@every 10m". The schedule does not run
// until Start.
func New(store *sqlite.Store, spec string, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if spec == "" {
		spec = DefaultSpec
	}
	cl := cronLogger{logger: logger}
	s := &Sweeper{
		store:  store,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		now: time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("sweeper schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("overdue sweeper started")
}

// Stop halts the schedule and waits for a running sweep or ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce sweeps immediately and returns how many tasks were flagged and
// cleared.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, int64, error) {
	flagged, cleared, err := s.store.MarkOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, 0, err
	}
	if flagged > 0 || cleared > 0 {
		s.logger.Info("overdue flags updated", slog.Int64("flagged", flagged), slog.Int64("cleared", cleared))
	}
	return flagged, cleared, nil
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("overdue sweep failed", slog.String("error", err.Error()))
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
