// internal/app/system/replay/replay.go
//
// Package replay drains the pending-action queue: every queued mutation is
// re-issued against the upstream with its original method, headers, and
// body. The queue is processed strictly in enqueue order, but a failed
// record never blocks the ones behind it — it stays put, backs off, and is
// retried on a later pass.
package replay

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// passTimeout bounds one full drain of the queue.
const passTimeout = 2 * time.Minute

// Queue is the slice of the pending-action store the worker needs.
type Queue interface {
	Due(ctx context.Context, now time.Time) ([]models.PendingAction, error)
	Remove(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error
	MarkDead(ctx context.Context, id, reason string) error
}

// Outcome summarizes the most recent replay pass for the status endpoint.
type Outcome struct {
	At       time.Time `json:"at"`
	Replayed int       `json:"replayed"`
	Failed   int       `json:"failed"`
	Dead     int       `json:"dead"`
}

// Worker replays pending actions on a slow tick and immediately when the
// connectivity prober signals that the upstream is reachable again.
type Worker struct {
	queue       Queue
	upstream    *url.URL
	client      *http.Client
	log         *zap.Logger
	interval    time.Duration
	maxAttempts int

	triggerCh chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup

	mu   sync.Mutex
	last Outcome
}

// NewWorker creates the replay worker. maxAttempts is the per-record budget
// before a record is marked dead.
func NewWorker(queue Queue, upstream *url.URL, client *http.Client, logger *zap.Logger, interval time.Duration, maxAttempts int) *Worker {
	return &Worker{
		queue:       queue,
		upstream:    upstream,
		client:      client,
		log:         logger,
		interval:    interval,
		maxAttempts: maxAttempts,
		triggerCh:   make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background replay loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("replay worker started",
		zap.Duration("interval", w.interval),
		zap.Int("max_attempts", w.maxAttempts))
}

// Stop signals the worker to stop and waits for the current pass to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("replay worker stopped")
}

// Trigger requests an immediate pass. Coalesces when one is already queued.
func (w *Worker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
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
			w.pass()
		case <-w.triggerCh:
			w.pass()
		}
	}
}

// pass drains everything currently due. Individual failures are recorded and
// skipped; the batch itself never aborts.
func (w *Worker) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	now := time.Now().UTC()
	due, err := w.queue.Due(ctx, now)
	if err != nil {
		w.log.Error("replay: queue read failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	out := Outcome{At: now}
	for i := range due {
		record := &due[i]
		switch w.replay(ctx, record) {
		case replayOK:
			if err := w.queue.Remove(ctx, record.ID); err != nil {
				w.log.Error("replay: remove failed", zap.String("id", record.ID), zap.Error(err))
			}
			out.Replayed++
		case replayDead:
			out.Dead++
		default:
			out.Failed++
		}
	}

	w.mu.Lock()
	w.last = out
	w.mu.Unlock()

	w.log.Info("replay pass completed",
		zap.Int("replayed", out.Replayed),
		zap.Int("failed", out.Failed),
		zap.Int("dead", out.Dead))
}

type replayResult int

const (
	replayOK replayResult = iota
	replayFailed
	replayDead
)

func (w *Worker) replay(ctx context.Context, record *models.PendingAction) replayResult {
	resp, err := w.send(ctx, record)
	if err != nil {
		return w.recordFailure(ctx, record, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 400:
		return replayOK
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return w.recordFailure(ctx, record, fmt.Sprintf("upstream status %d", resp.StatusCode))
	case resp.StatusCode < 500:
		// The upstream understood the action and rejected it; retrying an
		// identical request cannot change the answer.
		reason := fmt.Sprintf("rejected by upstream: status %d", resp.StatusCode)
		w.log.Warn("replay: action rejected",
			zap.String("id", record.ID),
			zap.String("url", record.URL),
			zap.Int("status", resp.StatusCode))
		if err := w.queue.MarkDead(ctx, record.ID, reason); err != nil {
			w.log.Error("replay: mark dead failed", zap.String("id", record.ID), zap.Error(err))
		}
		return replayDead
	default:
		return w.recordFailure(ctx, record, fmt.Sprintf("upstream status %d", resp.StatusCode))
	}
}

func (w *Worker) recordFailure(ctx context.Context, record *models.PendingAction, reason string) replayResult {
	attempts := record.Attempts + 1
	if attempts >= w.maxAttempts {
		w.log.Warn("replay: attempt budget exhausted",
			zap.String("id", record.ID),
			zap.String("url", record.URL),
			zap.Int("attempts", attempts))
		if err := w.queue.MarkDead(ctx, record.ID, "attempt budget exhausted: "+reason); err != nil {
			w.log.Error("replay: mark dead failed", zap.String("id", record.ID), zap.Error(err))
		}
		return replayDead
	}
	if err := w.queue.RecordFailure(ctx, record.ID, attempts, reason, time.Now().UTC()); err != nil {
		w.log.Error("replay: record failure failed", zap.String("id", record.ID), zap.Error(err))
	}
	return replayFailed
}

func (w *Worker) send(ctx context.Context, record *models.PendingAction) (*http.Response, error) {
	ref, err := url.Parse(record.URL)
	if err != nil {
		return nil, err
	}
	target := *w.upstream
	target.Path = ref.Path
	target.RawPath = ref.RawPath
	target.RawQuery = ref.RawQuery

	req, err := http.NewRequestWithContext(ctx, record.Method, target.String(), bytes.NewReader(record.Body))
	if err != nil {
		return nil, err
	}
	for k, vs := range record.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return w.client.Do(req)
}
