package main

import (
	"context"
	"log/slog"

	config "github.com/Mustafaygtbs/CertificateManagement/configs"
	"github.com/Mustafaygtbs/CertificateManagement/database"
	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate, seed the admin user and start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, db, err := bootstrap()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info("database_migrated")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the bootstrap admin user from ADMIN_* settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, db, err := bootstrap()
		if err != nil {
			return err
		}
		store := repositories.NewGormStore(db)
		return database.SeedAdmin(contextOf(cmd), store.Users(), services.NewPasswordHasher(0), cfg.Admin, log)
	},
}

// bootstrap loads configuration, builds the logger and opens the database.
func bootstrap() (*config.Config, *slog.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logging.New(cfg.Env, cfg.Log.SlogLevel())
	slog.SetDefault(log)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
