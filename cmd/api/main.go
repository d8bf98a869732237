package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/api/gmail/v1"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	gsheets "google.golang.org/api/sheets/v4"

	"jdcportal/internal/config"
	"jdcportal/internal/database"
	"jdcportal/internal/database/migrations"
	"jdcportal/internal/domain/auth"
	"jdcportal/internal/domain/installation"
	"jdcportal/internal/domain/notification"
	"jdcportal/internal/domain/sheetsync"
	"jdcportal/internal/domain/shipment"
	"jdcportal/internal/domain/ticket"
	"jdcportal/internal/domain/user"
	"jdcportal/internal/events"
	"jdcportal/internal/mail"
	"jdcportal/internal/middleware"
	"jdcportal/internal/pkg/googlecred"
	jwtsvc "jdcportal/internal/pkg/jwt"
	"jdcportal/internal/pkg/tokenbox"
	"jdcportal/internal/scheduler"
	"jdcportal/internal/server"
	"jdcportal/internal/sheets"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
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

	box := tokenbox.New(cfg.TokenEncryptionKey)
	j := jwtsvc.New(cfg.SessionSecret, cfg.SessionTTL)
	oauthCfg := googlecred.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL,
		"openid",
		googleoauth2.UserinfoEmailScope,
		googleoauth2.UserinfoProfileScope,
		gsheets.SpreadsheetsReadonlyScope,
		gmail.GmailModifyScope,
	)

	userRepo := user.NewRepository(db)
	installationRepo := installation.NewRepository(db)
	shipmentRepo := shipment.NewRepository(db)
	ticketRepo := ticket.NewRepository(db)
	notificationRepo := notification.NewRepository(db)

	creds := googlecred.NewProvider(oauthCfg, cfg.GoogleServiceAccountFile, userRepo, box).WithGmailSubject(cfg.GmailImpersonate)
	publisher := events.New(cfg.RabbitMQURL)
	defer publisher.Close()

	notificationService := notification.NewService(notificationRepo, userRepo, cfg.NotificationWindow)
	syncEngine := sheetsync.NewEngine(sheets.NewGoogleFetcher(creds), installationRepo, cfg.InstallationSheets, notificationService)
	ingestor := ticket.NewIngestor(ticketRepo, mail.NewGmailMailbox(creds), notificationService, cfg.Sectors(), cfg.GmailQuery, cfg.GmailMaxMessages)
	dispatcher := notification.NewDispatcher(notificationRepo, publisher)
	cleanup := notification.NewCleanupService(notificationRepo, cfg.NotificationRetention)

	var locker scheduler.Locker = scheduler.NewLocalLocker()
	if rdb := scheduler.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); rdb != nil {
		defer rdb.Close()
		locker = scheduler.NewRedisLocker(rdb)
	}

	sched := scheduler.New(scheduler.NewStateStore(db), locker,
		scheduler.Task{
			Name:     scheduler.TaskSyncInstallations,
			Interval: cfg.SyncTaskInterval,
			Timeout:  10 * time.Minute,
			Run:      syncEngine.Task,
		},
		scheduler.Task{
			Name:     scheduler.TaskMailIngestion,
			Interval: cfg.SchedulerTaskInterval,
			Timeout:  5 * time.Minute,
			Run: func(ctx context.Context) error {
				res, err := ingestor.Ingest(ctx)
				log.Printf("mail-ingestion fetched=%d created=%d skipped=%d failed=%d", res.Fetched, res.Created, res.Skipped, res.Failed)
				return err
			},
		},
		scheduler.Task{
			// due on every tick
			Name: scheduler.TaskNotificationDispatch,
			Run: func(ctx context.Context) error {
				_, err := dispatcher.Dispatch(ctx)
				return err
			},
		},
		scheduler.Task{
			Name:     scheduler.TaskNotificationRetention,
			Interval: cfg.CleanupTaskInterval,
			Run: func(ctx context.Context) error {
				_, err := cleanup.CleanupOldNotifications(ctx)
				return err
			},
		},
	)

	authService := auth.NewService(oauthCfg, userRepo, box, j, cfg.AdminEmails)
	r := server.NewRouter(
		server.Options{JWT: j, Access: userRepo, CronSecret: cfg.CronSecret, CORSOrigins: cfg.CORSAllowedOrigins, AccessLog: true},
		server.Handlers{
			Auth:          auth.NewHandler(authService, cfg.CookieSecure, cfg.CookieSameSite, int(j.TTL().Seconds()), cfg.FrontendURL),
			Users:         user.NewHandler(userRepo),
			Installations: installation.NewHandler(installation.NewService(installationRepo, shipmentRepo), middleware.CanReadSector),
			Shipments:     shipment.NewHandler(shipmentRepo),
			Tickets:       ticket.NewHandler(ticketRepo),
			Notifications: notification.NewHandler(notificationService),
			Sync:          sheetsync.NewHandler(syncEngine),
			Scheduler:     scheduler.NewHandler(sched),
		},
	)

	var loop *scheduler.Handle
	if cfg.SchedulerEnabled {
		loop = sched.Start(ctx, cfg.SchedulerTick, 0.1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("api listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	if loop != nil {
		loop.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
