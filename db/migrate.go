package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/psicanalise-online/platform/models"
)

// Models lists every persisted model in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.EmailVerification{},
		&models.Product{},
		&models.Order{},
		&models.SessionCredit{},
		&models.Appointment{},
		&models.WorkingHours{},
		&models.ChatMessage{},
		&models.SessionNotes{},
		&models.Notification{},
		&models.BlogPost{},
		&models.OutboxMessage{},
	}
}

// Migrate runs AutoMigrate for every model. Only called when the binary is
// started with -migrate.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
