// internal/app/system/refresh/refresh.go
package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/app/system/strategy"
)

// passTimeout bounds one refresh sweep across all critical endpoints.
const passTimeout = 1 * time.Minute

// Outcome summarizes the most recent refresh pass for the status endpoint.
type Outcome struct {
	At        time.Time `json:"at"`
	Refreshed int       `json:"refreshed"`
	Failed    int       `json:"failed"`
}

// Worker periodically re-fetches every critical endpoint through the
// network-first strategy, overwriting the corresponding api-responses cache
// entries. This bounds how stale the offline-served copies of critical data
// can get, independent of whether any client is currently active.
type Worker struct {
	api      *strategy.NetworkFirst
	critical *strategy.CriticalSet
	log      *zap.Logger
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu   sync.Mutex
	last Outcome
}

// NewWorker creates the refresh worker.
func NewWorker(api *strategy.NetworkFirst, critical *strategy.CriticalSet, logger *zap.Logger, interval time.Duration) *Worker {
	return &Worker{
		api:      api,
		critical: critical,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background refresh loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("refresh worker started",
		zap.Duration("interval", w.interval),
		zap.Int("endpoints", len(w.critical.Paths())))
}

// Stop signals the worker to stop and waits for the current pass to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("refresh worker stopped")
}

// LastOutcome returns the summary of the most recent pass.
func (w *Worker) LastOutcome() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Pass()
		}
	}
}

// Pass refreshes every critical endpoint once. Per-endpoint failures are
// logged and do not abort the sweep; endpoints have no ordering dependency
// on one another.
func (w *Worker) Pass() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	out := Outcome{At: time.Now().UTC()}
	for _, path := range w.critical.Paths() {
		if err := w.api.Refresh(ctx, path); err != nil {
			w.log.Warn("critical endpoint refresh failed",
				zap.String("path", path), zap.Error(err))
			out.Failed++
			continue
		}
		out.Refreshed++
	}

	w.mu.Lock()
	w.last = out
	w.mu.Unlock()

	if out.Refreshed > 0 || out.Failed > 0 {
		w.log.Debug("refresh pass completed",
			zap.Int("refreshed", out.Refreshed),
			zap.Int("failed", out.Failed))
	}
}
