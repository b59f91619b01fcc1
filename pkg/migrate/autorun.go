package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// Apply brings the schema up to date. The goose files are postgres DDL, so a
// sqlite database is built from the models instead.
func Apply(ctx context.Context, client *db.Client, sqlite bool, dir string) error {
	if sqlite {
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	return Run(ctx, sqlDB, dir, "up")
}

// MaybeRunDev applies the embedded migrations when running in dev with the
// auto-migrate flag on.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"dir":    EmbeddedDir,
		"sqlite": cfg.DB.UseSQLite,
	})
	logg.Info(ctx, "migrate.dev_autorun")
	if err := Apply(ctx, client, cfg.DB.UseSQLite, EmbeddedDir); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.dev_autorun_done")
	return nil
}
