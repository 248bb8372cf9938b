package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	config "github.com/Mustafaygtbs/CertificateManagement/configs"
	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Student{},
	); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

type Hasher interface {
	Hash(password string) (string, error)
}

// SeedAdmin creates the bootstrap administrator unless a user with that email
// already exists. It does nothing when no admin email or password is set.
func SeedAdmin(ctx context.Context, users repositories.UserRepository, hasher Hasher, cfg config.AdminConfig, log *slog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" || cfg.Password == "" {
		log.Info("admin_seed_skipped", slog.String("reason", "ADMIN_EMAIL or ADMIN_PASSWORD not set"))
		return nil
	}

	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		log.Info("admin_seed_skipped", slog.String("reason", "admin already exists"))
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("database: check admin: %w", err)
	}

	hash, err := hasher.Hash(cfg.Password)
	if err != nil {
		return fmt.Errorf("database: hash admin password: %w", err)
	}
	admin := &models.User{
		Username:     cfg.Username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := users.Add(ctx, admin); err != nil {
		return fmt.Errorf("database: seed admin: %w", err)
	}
	log.Info("admin_seeded", slog.String("email", email))
	return nil
}
