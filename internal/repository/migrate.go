package repository

import (
	"fmt"

	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/models"
)

// Migrate creates or updates every table the service reads or writes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ReconciliationFile{},
		&models.BankMatch{},
		&models.Invoice{},
		&models.Payment{},
		&models.Entity{},
		&models.MatchAuditLog{},
	); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}
