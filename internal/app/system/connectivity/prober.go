// internal/app/system/connectivity/prober.go
package connectivity

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// probeTimeout bounds a single reachability check.
const probeTimeout = 10 * time.Second

// Prober is a background worker that polls the upstream health URL and
// tracks whether the backend is reachable. An offline→online transition is
// the "connectivity likely restored" signal: every registered trigger fires
// so deferred work (replay, refresh) can run immediately instead of waiting
// for its next tick.
type Prober struct {
	target   string
	client   *http.Client
	log      *zap.Logger
	interval time.Duration

	online   atomic.Bool
	triggers []func()

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewProber creates a connectivity prober for the upstream's health path.
func NewProber(upstream *url.URL, healthPath string, client *http.Client, logger *zap.Logger, interval time.Duration) *Prober {
	target := *upstream
	target.Path = healthPath
	return &Prober{
		target:   target.String(),
		client:   client,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// OnOnline registers a callback invoked on every offline→online transition.
// Register before Start; registration is not synchronized with the loop.
func (p *Prober) OnOnline(fn func()) {
	p.triggers = append(p.triggers, fn)
}

// Online reports the last observed connectivity state.
func (p *Prober) Online() bool {
	return p.online.Load()
}

// Start probes once immediately (so the first status report is accurate)
// and then begins the background loop.
func (p *Prober) Start() {
	p.probe(false)
	p.wg.Add(1)
	go p.run()
	p.log.Info("connectivity prober started",
		zap.String("target", p.target),
		zap.Duration("interval", p.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (p *Prober) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.log.Info("connectivity prober stopped")
}

func (p *Prober) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.probe(true)
		}
	}
}

func (p *Prober) probe(fireTriggers bool) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	reachable := p.check(ctx)
	wasOnline := p.online.Swap(reachable)

	switch {
	case reachable && !wasOnline:
		p.log.Info("upstream connectivity restored")
		if fireTriggers {
			for _, fn := range p.triggers {
				fn()
			}
		}
	case !reachable && wasOnline:
		p.log.Warn("upstream connectivity lost")
	}
}

func (p *Prober) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	// Any answer at all means the network path is up; a 500 from the
	// backend is still "online" for replay purposes.
	return true
}
