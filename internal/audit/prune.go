package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes SQLite audit records older than the retention window on
// a cron schedule. The JSONL file backend is not pruned; rotating a
// shared append-only file from inside the process would race external
// log shippers; operators rotate it with their own tooling.
type Pruner struct {
	store     *SQLiteRecorder
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewPruner creates a pruner for the given store. retention must be
// positive; schedule is a standard 5-field cron spec (e.g. "0 3 * * *").
func NewPruner(store *SQLiteRecorder, retention time.Duration, logger *slog.Logger) *Pruner {
	return &Pruner{
		store:     store,
		retention: retention,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start registers the schedule and begins running sweeps in the
// background. Returns a stop function that blocks until a running sweep
// finishes.
func (p *Pruner) Start(schedule string) (stop func(), err error) {
	_, err = p.cron.AddFunc(schedule, p.sweep)
	if err != nil {
		return nil, err
	}
	p.cron.Start()
	p.logger.Info("audit retention pruner started",
		slog.String("schedule", schedule),
		slog.Duration("retention", p.retention),
	)
	return func() {
		ctx := p.cron.Stop()
		<-ctx.Done()
	}, nil
}

func (p *Pruner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-p.retention)
	removed, err := p.store.PruneBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("audit prune sweep failed", slog.String("error", err.Error()))
		return
	}
	p.logger.Info("audit prune sweep completed",
		slog.Int64("removed", removed),
		slog.Time("cutoff", cutoff),
	)
}
