package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cartline-backend/pkg/config"
	"github.com/angelmondragon/cartline-backend/pkg/db"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
)

// MaybeRunDev migrates the database on boot when running in dev with
// CARTLINE_AUTO_MIGRATE set. SQLite gets the mirrored SQLite schema; Postgres
// gets the embedded goose migrations.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.FeatureFlags.UseSQLite {
		logg.Info(ctx, "migrate.sqlite_schema")
		if err := ApplySQLiteSchema(client.DB().WithContext(ctx)); err != nil {
			return fmt.Errorf("applying sqlite schema: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	source, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, source)
	if err != nil {
		return err
	}

	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "migrate.up_complete")
	return nil
}
