package database

import (
	"fmt"

	"catalog-sync-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the Postgres connection. The handle is constructed once at
// startup and injected into the repositories; nothing creates it lazily.
func Connect(databaseURL, environment string) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate runs GORM auto-migration for all models
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ImportBatch{},
		&models.StagedProduct{},
		&models.ReconcileLog{},
	)
}
