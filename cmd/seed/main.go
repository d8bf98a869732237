package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/clause"

	"jdcportal/internal/config"
	"jdcportal/internal/database"
	"jdcportal/internal/database/migrations"
	"jdcportal/internal/domain/installation"
	"jdcportal/internal/domain/notification"
	"jdcportal/internal/domain/shipment"
	"jdcportal/internal/domain/user"
)

// Seeds a development database: one admin profile, demo installations and
// shipments per sector, and a welcome notification.
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProdLike() {
		log.Fatal("refusing to seed a prod database")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}
	if err := migrations.Run(db); err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	sectors := cfg.Sectors()
	if len(sectors) == 0 {
		sectors = []string{"CHR", "HACCP", "Kezia"}
	}

	// ================== PROFILES ==================
	users := user.NewRepository(db)
	admins, err := users.ListAdmins(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if len(admins) == 0 {
		email := strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL"))
		if email == "" {
			email = "admin@jdc.local"
		}
		admin := &user.Profile{UID: "seed-admin", Email: email, DisplayName: "Administrateur", Role: user.RoleAdmin, Sectors: sectors}
		if err := users.Upsert(ctx, admin); err != nil {
			log.Fatal(err)
		}
		log.Printf("admin profile created: %s", email)
	} else {
		log.Printf("admin profile exists: %s", admins[0].Email)
	}

	tech := &user.Profile{UID: "seed-tech", Email: "tech@jdc.local", DisplayName: "Technicien", Role: user.RoleTechnician, Sectors: sectors[:1]}
	if err := users.Upsert(ctx, tech); err != nil {
		log.Fatal(err)
	}

	// ================== INSTALLATIONS ==================
	statuses := []installation.Status{installation.StatusToSchedule, installation.StatusScheduled, installation.StatusCompleted}
	cities := []string{"Paris", "Lyon", "Marseille", "Lille", "Nantes"}

	var (
		installs  []installation.Installation
		shipments []shipment.Shipment
	)
	for _, sector := range sectors {
		for i := 1; i <= 5; i++ {
			code := fmt.Sprintf("%s-%03d", strings.ToUpper(sector), i)
			installs = append(installs, installation.Installation{
				Sector:      sector,
				CodeClient:  code,
				Name:        fmt.Sprintf("Client %s %d", sector, i),
				Address:     fmt.Sprintf("%d rue de la Paix", 10+i),
				City:        cities[rand.Intn(len(cities))],
				Commercial:  "Équipe " + sector,
				InstallDate: time.Now().AddDate(0, 0, i*3).Format("02/01/2006"),
				Status:      statuses[i%len(statuses)],
			})
			// every other client already has a carton shipped
			if i%2 == 1 {
				delivered := time.Now().AddDate(0, 0, -i)
				shipments = append(shipments, shipment.Shipment{
					ClientCode:   code,
					ClientName:   fmt.Sprintf("Client %s %d", sector, i),
					Sector:       sector,
					DeliveryDate: &delivered,
					Status:       "livré",
					Products:     []string{"Caisse enregistreuse", "Imprimante tickets"},
				})
			}
		}
	}

	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&installs)
	if res.Error != nil {
		log.Fatal("seed installations:", res.Error)
	}
	log.Printf("installations seeded: %d new", res.RowsAffected)

	var existing int64
	db.WithContext(ctx).Model(&shipment.Shipment{}).Count(&existing)
	if existing == 0 {
		if err := db.WithContext(ctx).Create(&shipments).Error; err != nil {
			log.Fatal("seed shipments:", err)
		}
		log.Printf("shipments seeded: %d", len(shipments))
	}

	// ================== NOTIFICATIONS ==================
	notifications := notification.NewService(notification.NewRepository(db), users, cfg.NotificationWindow)
	if _, err := notifications.NotifyAdmins(ctx, notification.TypeInfo, "Bienvenue", "Base de démonstration initialisée", "/"); err != nil {
		log.Fatal(err)
	}

	log.Println("seed completed")
}
