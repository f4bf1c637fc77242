package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerGCWorker reclaims space in the value log on a fixed interval.
// Badger never runs this by itself.
type BadgerGCWorker struct {
	db       *badger.DB
	interval time.Duration
	log      *slog.Logger
}

func NewBadgerGCWorker(db *badger.DB, interval time.Duration, log *slog.Logger) *BadgerGCWorker {
	return &BadgerGCWorker{db: db, interval: interval, log: log}
}

func (w *BadgerGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping value log GC")
			return nil
		case <-ticker.C:
			// Rewrite one file per tick at most; ErrNoRewrite just means
			// there was nothing worth collecting.
			if err := w.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				w.log.Warn("Value log GC failed", "err", err)
			}
		}
	}
}
