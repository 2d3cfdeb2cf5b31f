// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/app/store/actions"
	"github.com/dalemusser/hearthgate/internal/app/store/notifications"
	"github.com/dalemusser/hearthgate/internal/app/store/respcache"
	"github.com/dalemusser/hearthgate/internal/app/system/connectivity"
	"github.com/dalemusser/hearthgate/internal/app/system/lifecycle"
	"github.com/dalemusser/hearthgate/internal/app/system/refresh"
	"github.com/dalemusser/hearthgate/internal/app/system/replay"
	"github.com/dalemusser/hearthgate/internal/app/system/strategy"
)

// gatewayRuntime bundles the long-lived pieces assembled during Startup:
// stores, strategies, the lifecycle manager, and the background workers.
// BuildHandler wires handlers to it and Shutdown tears it down.
type gatewayRuntime struct {
	upstream   *url.URL
	cacheStore *respcache.Store
	queueStore *actions.Store
	notifStore *notifications.Store
	critical   *strategy.CriticalSet
	api        *strategy.NetworkFirst
	static     *strategy.CacheFirst
	lifecycle  *lifecycle.Manager
	prober     *connectivity.Prober
	replay     *replay.Worker
	refresh    *refresh.Worker
}

// runtime is process-wide state with explicit init (Startup) and teardown
// (Shutdown); the durable stores it holds are the only persistence boundary.
var runtime *gatewayRuntime

// Startup assembles the gateway runtime, runs the install/activate cycle for
// the current cache generation, and starts the background workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	upstream, err := url.Parse(appCfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("parse upstream_url: %w", err)
	}

	db := deps.HearthGateMongoDatabase
	client := &http.Client{Timeout: appCfg.UpstreamTimeout}

	rt := &gatewayRuntime{
		upstream:   upstream,
		cacheStore: respcache.New(db),
		queueStore: actions.New(db, appCfg.QueueRetention),
		notifStore: notifications.New(db),
		critical:   strategy.NewCriticalSet(appCfg.CriticalEndpoints),
	}

	rt.api = &strategy.NetworkFirst{
		Upstream: upstream,
		Client:   client,
		Cache:    rt.cacheStore,
		Instance: respcache.APIInstance(appCfg.CacheVersion),
		Critical: rt.critical,
		Log:      logger,
	}
	rt.static = &strategy.CacheFirst{
		Upstream: upstream,
		Client:   client,
		Cache:    rt.cacheStore,
		Instance: respcache.StaticInstance(appCfg.CacheVersion),
		Memory:   strategy.NewMemoryLayer(appCfg.MemoryCacheTTL),
		Log:      logger,
	}

	rt.lifecycle = lifecycle.NewManager(appCfg.CacheVersion, appCfg.ShellManifest,
		upstream, client, rt.cacheStore, rt.cacheStore, logger)
	if err := rt.lifecycle.Install(ctx); err != nil {
		// The upstream may simply be down; the gateway still has to come
		// up and serve whatever earlier generations cached. Install is
		// retried on the next deploy/restart.
		logger.Warn("cache generation install failed", zap.Error(err))
	}
	if err := rt.lifecycle.Activate(ctx, appCfg.ForceActivate); err != nil {
		if errors.Is(err, lifecycle.ErrWaiting) {
			logger.Info("cache generation waiting for previous generation to release control")
		} else {
			logger.Warn("cache generation activation failed", zap.Error(err))
		}
	}

	rt.prober = connectivity.NewProber(upstream, appCfg.ProbePath, client, logger, appCfg.ProbeInterval)
	rt.replay = replay.NewWorker(rt.queueStore, upstream, client, logger,
		appCfg.ReplayInterval, appCfg.ReplayMaxAttempts)
	rt.refresh = refresh.NewWorker(rt.api, rt.critical, logger, appCfg.RefreshInterval)

	// Connectivity restored is the replay trigger; periodic refresh rides
	// its own ticker.
	rt.prober.OnOnline(rt.replay.Trigger)

	rt.prober.Start()
	rt.replay.Start()
	rt.refresh.Start()

	runtime = rt
	return nil
}
