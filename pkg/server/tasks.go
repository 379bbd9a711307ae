package server

import (
	"context"
	"errors"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/nicktill/ipedscomps/pkg/metrics"
	"github.com/nicktill/ipedscomps/pkg/server/monitor"
	"github.com/nicktill/ipedscomps/pkg/storage"
	"github.com/nicktill/ipedscomps/pkg/storage/badger"
)

// RunDatasetWatch periodically measures the dataset files and exports their
// size. A file that disappears is logged with exponential backoff so a
// persistent problem does not flood the log.
func RunDatasetWatch(ctx context.Context, dm *monitor.DatasetMonitor, interval time.Duration, logger *zap.SugaredLogger, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var consecutiveErrors int
	var lastErrorTime time.Time
	const maxBackoff = 30 * time.Minute

	check := func() {
		used, err := dm.GetUsage()
		if err != nil {
			consecutiveErrors++
			now := time.Now()

			// 1m, 2m, 4m, ... capped at maxBackoff
			backoff := time.Duration(1<<uint(min(consecutiveErrors-1, 5))) * time.Minute
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			if lastErrorTime.IsZero() || now.Sub(lastErrorTime) >= backoff {
				logger.Warnw("Dataset files unavailable", "errors", consecutiveErrors, "error", err)
				lastErrorTime = now
			}
			return
		}

		if consecutiveErrors > 0 {
			logger.Infow("Dataset files available again", "after_errors", consecutiveErrors)
			consecutiveErrors = 0
			lastErrorTime = time.Time{}
		}
		metrics.DatasetBytes.Set(float64(used))
	}

	check()
	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			logger.Debugw("Stopping dataset watch")
			return
		}
	}
}

// RunBadgerGC runs BadgerDB value log garbage collection periodically. The
// result cache deletes on every eviction, so an on-disk backend accumulates
// garbage. In-memory and non-badger backends return immediately.
func RunBadgerGC(ctx context.Context, store storage.Storage, interval time.Duration, logger *zap.SugaredLogger, wg *sync.WaitGroup) {
	defer wg.Done()

	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		logger.Debugw("Cache storage is not BadgerDB, skipping GC")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infow("BadgerDB GC scheduler started", "interval", interval)
	for {
		select {
		case <-ticker.C:
			start := time.Now()
			// Reclaim a value log file once half of it is garbage
			err := badgerStore.RunGC(0.5)
			switch {
			case errors.Is(err, badgerdb.ErrGCInMemoryMode):
				logger.Debugw("Cache storage is in memory, stopping GC scheduler")
				return
			case errors.Is(err, badgerdb.ErrNoRewrite):
				logger.Debugw("BadgerDB GC completed (no rewrite needed)", "elapsed", time.Since(start).Round(time.Millisecond))
			case err != nil:
				logger.Warnw("BadgerDB GC failed", "error", err)
			default:
				logger.Infow("BadgerDB GC reclaimed space", "elapsed", time.Since(start).Round(time.Millisecond))
			}
		case <-ctx.Done():
			logger.Debugw("Stopping BadgerDB GC scheduler")
			return
		}
	}
}
