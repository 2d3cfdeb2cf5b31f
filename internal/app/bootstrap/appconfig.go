// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports, TLS,
// logging level, CORS, body limits); AppConfig is everything specific to
// the gateway: where the durable stores live, which backend it fronts, and
// how the caching, replay, and refresh machinery behaves.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Upstream backend the gateway fronts
	UpstreamURL     string        // Base URL of the family-assistant backend
	UpstreamTimeout time.Duration // Per-request timeout against the upstream
	APIPrefix       string        // Path prefix that routes to the network-first strategy

	// Cache generation
	CacheVersion  string   // Version token namespacing the cache instances
	ShellManifest []string // Application-shell paths pre-cached on install
	ForceActivate bool     // Skip-wait semantics: take control immediately on activation

	// Critical endpoints: read paths that must degrade to the structured
	// offline payload instead of failing outright
	CriticalEndpoints []string

	// Worker cadence and budgets
	ProbePath         string        // Upstream path polled by the connectivity prober
	ProbeInterval     time.Duration // How often to probe upstream reachability
	RefreshInterval   time.Duration // How often to re-fetch critical endpoints
	ReplayInterval    time.Duration // Baseline cadence for queue drain passes
	ReplayMaxAttempts int           // Per-record attempt budget before marking dead
	QueueRetention    time.Duration // TTL for pending-action records

	// In-memory hot layer in front of the static cache
	MemoryCacheTTL time.Duration
}
