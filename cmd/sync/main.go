// Command sync mirrors the installation sheets into the database once and
// exits non-zero if any sector failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	gsheets "google.golang.org/api/sheets/v4"

	"jdcportal/internal/config"
	"jdcportal/internal/database"
	"jdcportal/internal/database/migrations"
	"jdcportal/internal/domain/installation"
	"jdcportal/internal/domain/notification"
	"jdcportal/internal/domain/sheetsync"
	"jdcportal/internal/domain/user"
	"jdcportal/internal/pkg/googlecred"
	"jdcportal/internal/pkg/tokenbox"
	"jdcportal/internal/sheets"
)

func main() {
	sector := flag.String("sector", "", "sync only this sector")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := migrations.Run(db); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo := user.NewRepository(db)
	box := tokenbox.New(cfg.TokenEncryptionKey)
	oauthCfg := googlecred.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, gsheets.SpreadsheetsReadonlyScope)
	creds := googlecred.NewProvider(oauthCfg, cfg.GoogleServiceAccountFile, userRepo, box)
	notifier := notification.NewService(notification.NewRepository(db), userRepo, cfg.NotificationWindow)

	engine := sheetsync.NewEngine(sheets.NewGoogleFetcher(creds), installation.NewRepository(db), cfg.InstallationSheets, notifier)

	if *sector != "" {
		res, err := engine.SyncSector(ctx, *sector)
		if err != nil {
			log.Fatalf("sync %s: %v", *sector, err)
		}
		fmt.Printf("%s: added=%d updated=%d deleted=%d\n", *sector, res.Added, res.Updated, res.Deleted)
		return
	}

	sectors := engine.Sectors()
	if len(sectors) == 0 {
		log.Fatal("INSTALLATION_SHEETS is empty")
	}

	bar := progressbar.Default(int64(len(sectors)), "syncing sectors")
	outcomes := engine.SyncAllWithProgress(ctx, func(string, sheetsync.SectorOutcome) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	for _, s := range sectors {
		o := outcomes[s]
		if o.Err != nil {
			fmt.Printf("%s: error: %v\n", s, o.Err)
			continue
		}
		fmt.Printf("%s: added=%d updated=%d deleted=%d\n", s, o.Added, o.Updated, o.Deleted)
	}

	if failed := sheetsync.FailedSectors(outcomes); len(failed) > 0 {
		log.Printf("sync failed for %v", failed)
		os.Exit(1)
	}
}
