// internal/app/system/lifecycle/lifecycle.go
//
// Package lifecycle establishes and retires cache generations. Install
// pre-populates the current version's static cache with the application
// shell; activation drops every cache instance belonging to another version.
// Activation is the sole garbage-collection mechanism for caches, which
// bounds storage to one live generation across deployments.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/app/store/respcache"
	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// State is the install/activate progression of a cache generation.
type State string

const (
	StateUninstalled State = "uninstalled"
	StateInstalling  State = "installing"
	StateInstalled   State = "installed" // waiting to take control
	StateActivating  State = "activating"
	StateActivated   State = "activated"
)

// ErrWaiting is returned by Activate when a previous generation still
// controls the caches and activation was not forced.
var ErrWaiting = errors.New("previous generation still controlling")

// CacheAdmin is the administrative slice of the response-cache store.
type CacheAdmin interface {
	EnsureInstance(ctx context.Context, instance string) error
	Put(ctx context.Context, instance string, entry *models.CachedResponse) error
	ListInstances(ctx context.Context) ([]string, error)
	DropInstance(ctx context.Context, instance string) error
}

// ControlMarker tracks which version currently controls the caches.
type ControlMarker interface {
	Controlling(ctx context.Context) (string, error)
	SetControlling(ctx context.Context, version string) error
}

// Manager installs the current generation and evicts prior ones.
type Manager struct {
	Version  string
	Manifest []string // shell asset paths to pre-cache on install
	Upstream *url.URL
	Client   *http.Client
	Cache    CacheAdmin
	Marker   ControlMarker
	Log      *zap.Logger

	mu    sync.Mutex
	state State
}

// NewManager creates a Manager in the uninstalled state.
func NewManager(version string, manifest []string, upstream *url.URL, client *http.Client, cache CacheAdmin, marker ControlMarker, log *zap.Logger) *Manager {
	return &Manager{
		Version:  version,
		Manifest: manifest,
		Upstream: upstream,
		Client:   client,
		Cache:    cache,
		Marker:   marker,
		Log:      log,
		state:    StateUninstalled,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Install creates the current-version static instance and pre-populates it
// with the shell manifest. A single asset that cannot be fetched is logged
// and skipped; a store failure aborts the install and leaves the manager
// uninstalled so the next startup retries.
func (m *Manager) Install(ctx context.Context) error {
	m.setState(StateInstalling)

	static := respcache.StaticInstance(m.Version)
	if err := m.Cache.EnsureInstance(ctx, static); err != nil {
		m.setState(StateUninstalled)
		return fmt.Errorf("install: %w", err)
	}

	cached := 0
	for _, path := range m.Manifest {
		entry, err := m.fetchAsset(ctx, path)
		if err != nil {
			m.Log.Warn("shell asset fetch failed during install",
				zap.String("path", path), zap.Error(err))
			continue
		}
		if err := m.Cache.Put(ctx, static, entry); err != nil {
			m.setState(StateUninstalled)
			return fmt.Errorf("install: cache %q: %w", path, err)
		}
		cached++
	}

	m.setState(StateInstalled)
	m.Log.Info("cache generation installed",
		zap.String("version", m.Version),
		zap.Int("assets_cached", cached),
		zap.Int("assets_total", len(m.Manifest)))
	return nil
}

// Activate takes control of the caches and drops every instance that does
// not belong to the current version. Without force, activation defers while
// a different generation is still marked controlling; with force (skip-wait
// semantics) the new generation takes over immediately so stale clients
// never hit evicted caches.
func (m *Manager) Activate(ctx context.Context, force bool) error {
	if !force {
		current, err := m.Marker.Controlling(ctx)
		if err != nil {
			return fmt.Errorf("activate: %w", err)
		}
		if current != "" && current != m.Version {
			m.Log.Info("activation deferred",
				zap.String("controlling", current),
				zap.String("version", m.Version))
			return ErrWaiting
		}
	}

	m.setState(StateActivating)
	if err := m.Marker.SetControlling(ctx, m.Version); err != nil {
		m.setState(StateInstalled)
		return fmt.Errorf("activate: %w", err)
	}

	keep := map[string]bool{
		respcache.StaticInstance(m.Version): true,
		respcache.APIInstance(m.Version):    true,
	}
	instances, err := m.Cache.ListInstances(ctx)
	if err != nil {
		m.setState(StateInstalled)
		return fmt.Errorf("activate: %w", err)
	}
	for _, instance := range instances {
		if keep[instance] {
			continue
		}
		if err := m.Cache.DropInstance(ctx, instance); err != nil {
			// Eviction failures are retried on the next activation; a
			// leftover stale instance is storage waste, not a correctness
			// problem.
			m.Log.Error("failed to drop stale cache instance",
				zap.String("instance", instance), zap.Error(err))
			continue
		}
		m.Log.Info("dropped stale cache instance", zap.String("instance", instance))
	}

	m.setState(StateActivated)
	m.Log.Info("cache generation activated", zap.String("version", m.Version))
	return nil
}

func (m *Manager) fetchAsset(ctx context.Context, path string) (*models.CachedResponse, error) {
	target := *m.Upstream
	target.Path = path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &models.CachedResponse{
		Key:       models.CacheKey(http.MethodGet, path),
		URL:       path,
		Status:    resp.StatusCode,
		Header:    models.CopyHeader(resp.Header),
		Body:      body,
		FetchedAt: time.Now().UTC(),
	}, nil
}
