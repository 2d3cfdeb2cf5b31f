// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for HearthGate.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, upstream_url, etc.
//   - Environment variables: HEARTHGATE_MONGO_URI, HEARTHGATE_UPSTREAM_URL, etc.
//   - Command-line flags: --mongo_uri, --upstream_url, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "hearthgate", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	// Upstream backend
	{Name: "upstream_url", Default: "http://localhost:8000", Desc: "Base URL of the family-assistant backend"},
	{Name: "upstream_timeout", Default: "30s", Desc: "Per-request timeout against the upstream"},
	{Name: "api_prefix", Default: "/api/", Desc: "Path prefix routed to the network-first API strategy"},

	// Cache generation
	{Name: "cache_version", Default: "dev", Desc: "Version token namespacing the cache instances (set per deploy)"},
	{Name: "shell_manifest", Default: "/,/manifest.json,/icons/icon-192.png,/icons/icon-512.png", Desc: "Comma-separated shell asset paths pre-cached on install"},
	{Name: "force_activate", Default: true, Desc: "Take control of the caches immediately on activation (skip-wait)"},

	// Critical endpoints
	{Name: "critical_endpoints", Default: "/api/dashboard/health,/api/dashboard/status,/api/users/profile,/api/family/members,/api/dashboard/activity", Desc: "Comma-separated read paths that degrade to the structured offline payload"},

	// Workers
	{Name: "probe_path", Default: "/api/dashboard/health", Desc: "Upstream path polled by the connectivity prober"},
	{Name: "probe_interval", Default: "30s", Desc: "Connectivity probe cadence"},
	{Name: "refresh_interval", Default: "5m", Desc: "Critical-endpoint refresh cadence"},
	{Name: "replay_interval", Default: "1m", Desc: "Baseline cadence for pending-action drain passes"},
	{Name: "replay_max_attempts", Default: 25, Desc: "Per-record replay attempt budget before marking dead"},
	{Name: "queue_retention", Default: "168h", Desc: "How long pending-action records are retained"},

	// Hot layer
	{Name: "memory_cache_ttl", Default: "5m", Desc: "TTL for the in-memory static cache layer"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// HEARTHGATE_* environment variables, and command-line flags, merging with
// precedence: flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "HEARTHGATE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		UpstreamURL:     appValues.String("upstream_url"),
		UpstreamTimeout: appValues.Duration("upstream_timeout", 30*time.Second),
		APIPrefix:       appValues.String("api_prefix"),

		CacheVersion:  appValues.String("cache_version"),
		ShellManifest: splitPaths(appValues.String("shell_manifest")),
		ForceActivate: appValues.Bool("force_activate"),

		CriticalEndpoints: splitPaths(appValues.String("critical_endpoints")),

		ProbePath:         appValues.String("probe_path"),
		ProbeInterval:     appValues.Duration("probe_interval", 30*time.Second),
		RefreshInterval:   appValues.Duration("refresh_interval", 5*time.Minute),
		ReplayInterval:    appValues.Duration("replay_interval", 1*time.Minute),
		ReplayMaxAttempts: appValues.Int("replay_max_attempts"),
		QueueRetention:    appValues.Duration("queue_retention", 168*time.Hour),

		MemoryCacheTTL: appValues.Duration("memory_cache_ttl", 5*time.Minute),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation, catching
// misconfiguration before any connection is attempted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	u, err := url.Parse(appCfg.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream_url must be an absolute URL, got %q", appCfg.UpstreamURL)
	}

	if !strings.HasPrefix(appCfg.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with '/', got %q", appCfg.APIPrefix)
	}

	if appCfg.CacheVersion == "" {
		return fmt.Errorf("cache_version must not be empty")
	}

	if appCfg.ReplayMaxAttempts < 1 {
		return fmt.Errorf("replay_max_attempts must be at least 1, got %d", appCfg.ReplayMaxAttempts)
	}

	return nil
}

// splitPaths parses a comma-separated path list, dropping blanks.
func splitPaths(raw string) []string {
	var paths []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}
