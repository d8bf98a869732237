// Package migrations owns the schema of every table the portal writes.
package migrations

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"jdcportal/internal/domain/installation"
	"jdcportal/internal/domain/notification"
	"jdcportal/internal/domain/shipment"
	"jdcportal/internal/domain/ticket"
	"jdcportal/internal/domain/user"
	"jdcportal/internal/scheduler"
)

func models() []any {
	return []any{
		&user.Profile{},
		&installation.Installation{},
		&shipment.Shipment{},
		&ticket.Ticket{},
		&notification.Notification{},
		&scheduler.TaskState{},
	}
}

// Run brings the schema up to date. It is safe to call on every boot.
func Run(db *gorm.DB) error {
	for _, m := range models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	log.Printf("migrations applied: tables=%d", len(models()))
	return nil
}
