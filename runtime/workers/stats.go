package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-core/observability"
)

// StatsWorker periodically recomputes the monitoring snapshot.
type StatsWorker struct {
	monitor  *observability.Monitor
	interval time.Duration
	log      *slog.Logger
}

func NewStatsWorker(monitor *observability.Monitor, interval time.Duration, log *slog.Logger) *StatsWorker {
	return &StatsWorker{monitor: monitor, interval: interval, log: log}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping stats refresh")
			return nil
		case <-ticker.C:
			w.monitor.Refresh()
		}
	}
}
