package migrate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/routebill/routebill-backend/pkg/config"
	"github.com/routebill/routebill-backend/pkg/db"
	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	"github.com/routebill/routebill-backend/pkg/logger"
	"github.com/routebill/routebill-backend/pkg/security"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")

	if cfg.FeatureFlags.SeedDemo {
		if err := seedDemoUsers(ctx, cfg, logg, client); err != nil {
			return fmt.Errorf("seeding demo users: %w", err)
		}
	}
	return nil
}

// seedDemoUsers inserts the demo admin and agent identities once. Passwords
// come from ROUTEBILL_DEMO_PASSWORD via config; existing rows are left alone.
func seedDemoUsers(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	var count int64
	if err := client.DB().WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := security.HashPassword(cfg.FeatureFlags.DemoPassword, cfg.Password)
	if err != nil {
		return err
	}

	seeds := []models.User{
		{ID: uuid.New(), Email: "admin@routebill.local", PasswordHash: hash, Name: "Demo Admin", Role: enums.UserRoleAdmin, IsActive: true},
		{ID: uuid.New(), Email: "agent@routebill.local", PasswordHash: hash, Name: "Demo Agent", Role: enums.UserRoleAgent, IsActive: true},
	}
	if err := client.DB().WithContext(ctx).Create(&seeds).Error; err != nil {
		return err
	}

	logg.Info(ctx, "seeded demo users")
	return nil
}
