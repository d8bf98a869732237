package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"jdcportal/internal/config"
	"jdcportal/internal/database"
	"jdcportal/internal/domain/notification"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	cleanup := notification.NewCleanupService(notification.NewRepository(db), cfg.NotificationRetention)
	n, err := cleanup.CleanupOldNotifications(context.Background())
	if err != nil {
		log.Fatalf("cleanup notifications failed: %v", err)
	}
	log.Printf("notification cleanup completed: retention=%s deleted=%d", cfg.NotificationRetention, n)
}
