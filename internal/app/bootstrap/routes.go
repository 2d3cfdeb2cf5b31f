// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	gatewayfeature "github.com/dalemusser/hearthgate/internal/app/features/gateway"
	healthfeature "github.com/dalemusser/hearthgate/internal/app/features/health"
	notifyfeature "github.com/dalemusser/hearthgate/internal/app/features/notify"
	statusfeature "github.com/dalemusser/hearthgate/internal/app/features/status"
)

// BuildHandler constructs the root HTTP handler for the gateway.
//
// Operational endpoints (health, status, the notification contract) claim
// their paths first; the gateway's catch-all goes last so everything else —
// API calls and static assets alike — is intercepted and dispatched to the
// strategies.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := runtime
	if rt == nil {
		return nil, fmt.Errorf("bootstrap: Startup must run before BuildHandler")
	}

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.HearthGateMongoClient, rt.prober, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Operational status: lifecycle state, cache counts, queue depth
	statusHandler := statusfeature.NewHandler(appCfg.CacheVersion, rt.lifecycle,
		rt.cacheStore, rt.queueStore, rt.prober, rt.replay, rt.refresh, logger)
	r.Mount("/hearthgate/status", statusfeature.Routes(statusHandler))

	// Notification-display contract
	notifyHandler := notifyfeature.NewHandler(rt.notifStore, logger)
	r.Mount("/notify", notifyfeature.Routes(notifyHandler))

	// Everything else flows through the request router
	gatewayHandler := gatewayfeature.NewHandler(rt.api, rt.static, rt.queueStore,
		appCfg.APIPrefix, logger)
	r.Mount("/", gatewayfeature.Routes(gatewayHandler))

	return r, nil
}
