package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations creates the indexes AutoMigrate does not know about
func RunMigrations(db *gorm.DB) error {
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	// Status page groups by competency and orders by last update
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_causas_competencia_actualizacion
		ON causas(competencia, fecha_actualizacion)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_scrape_logs_time
		ON scrape_logs(query_time)
	`).Error; err != nil {
		return err
	}

	return nil
}
