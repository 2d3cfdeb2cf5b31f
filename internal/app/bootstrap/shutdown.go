// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the background workers and cleanly tears down the MongoDB
// connection. Worker Stop waits for in-flight passes, so no replay or cache
// write is cut off mid-operation.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if runtime != nil {
		runtime.refresh.Stop()
		runtime.replay.Stop()
		runtime.prober.Stop()
	}

	if deps.HearthGateMongoClient != nil {
		logger.Info("disconnecting HearthGate MongoDB client")
		if err := deps.HearthGateMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
