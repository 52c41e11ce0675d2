package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/djorigin/rpasops/internal/models"
)

// Migrate creates or updates the schema for every persisted model.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	err := conn.AutoMigrate(
		&models.Setting{},
		&models.Operator{},
		&models.Aircraft{},
		&models.Defect{},
		&models.ComplianceRule{},
		&models.ComplianceCheck{},
		&models.RiskCategory{},
		&models.RiskEntry{},
		&models.MaintenanceSchedule{},
		&models.MaintenanceWorkItem{},
	)
	if err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
