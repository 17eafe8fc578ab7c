package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/green-campus-api/internal/models"
)

// Migrate creates or updates every table the API owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Student{},
		&models.Activity{},
		&models.GPSTrackingData{},
		&models.VerificationLog{},
		&models.CreditWallet{},
		&models.CreditTransaction{},
		&models.Reward{},
		&models.RewardRedemption{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}
