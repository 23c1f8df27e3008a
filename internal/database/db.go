package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/JustJay7/ojv-scraper/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize connects to postgres when DATABASE_URL names one and to the
// sqlite file at DATABASE_PATH otherwise, then migrates.
func Initialize(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	if cfg.UsesPostgres() {
		return postgres.Open(cfg.DatabaseURL), nil
	}

	dir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return sqlite.Open(cfg.DatabasePath), nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&CaseRecord{},
		&ScrapeLog{},
	); err != nil {
		return err
	}
	return RunMigrations(db)
}
