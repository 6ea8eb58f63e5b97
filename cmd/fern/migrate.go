package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply Postgres migrations and exit",
	Long: `Apply the record store migrations from DB_MIGRATION_FOLDER_PATH.

DB_MIGRATION_VERSION pins a target version, DB_MIGRATION_FORCE clears a dirty
version before migrating.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, sync, err := loadConfig()
	if err != nil {
		return err
	}
	defer sync()

	if cfg.StoreBackend != config.StoreBackendPostgres {
		logger.Warnf("STORE_BACKEND is %q, nothing to migrate", cfg.StoreBackend)
		return nil
	}

	db, err := database.Connect(cmd.Context(), cfg.DatabaseDriver, cfg.DatabaseDSN(), database.PoolConfig{}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if latest, err := database.LatestVersion(cfg.DatabaseMigrationFolderPath); err == nil {
		logger.WithField("latest", latest).Info("Applying migrations")
	}
	return migrationService(cfg, logger).MigratePostgres(db.Raw().DB, cfg.DatabaseName)
}
