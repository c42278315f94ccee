package pkg

import (
	"fmt"

	"github.com/SAP-F-2025/exam-session/internal/config"
	"github.com/SAP-F-2025/exam-session/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.AttemptRecord{},
		&models.AttemptQuestion{},
		&models.AttemptAnswer{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate attempt tables: %w", err)
	}

	return db, nil
}
