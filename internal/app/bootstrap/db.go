// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/app/store/actions"
	"github.com/dalemusser/hearthgate/internal/app/store/notifications"
)

// EnsureSchema creates the indexes the durable stores rely on. The cache
// instances get their indexes at install time, because they come and go
// with generations rather than living for the life of the deployment.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.HearthGateMongoDatabase

	if err := actions.New(db, appCfg.QueueRetention).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("pending-action indexes: %w", err)
	}
	if err := notifications.New(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("notification indexes: %w", err)
	}
	return nil
}
