package config

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort               = "8080"
	defaultDatabaseURL        = "portal.db"
	defaultSessionTTL         = "168h"
	defaultCookieSecure       = "false"
	defaultSessionSecret      = "change-me-session-secret"
	defaultCronSecret         = "change-me-cron-secret"
	defaultGmailQuery         = "is:unread"
	defaultGmailMaxMessages   = "25"
	defaultSchedulerEnabled   = "true"
	defaultSchedulerTick      = "1m"
	defaultTaskInterval       = "1h"
	defaultSyncInterval       = "30m"
	defaultNotificationWindow = "100"
	defaultRetention          = "720h"
	defaultCleanupInterval    = "24h"
	defaultCookieSameSite     = "lax"
)

// SectorSheet points a sector at the spreadsheet tab holding its installations.
type SectorSheet struct {
	Sector        string
	SpreadsheetID string
	Tab           string
}

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool
	// lax, strict or none
	CookieSameSite string

	// FrontendURL is where the browser lands after a successful Google login.
	FrontendURL        string
	CORSAllowedOrigins string
	// AdminEmails are promoted to Admin the first time they sign in.
	AdminEmails []string

	// CronSecret guards the externally triggered scheduler endpoint.
	CronSecret string
	// TokenEncryptionKey is the 32-byte key sealing stored Google refresh tokens.
	TokenEncryptionKey [32]byte

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	// GoogleServiceAccountFile, when set, is used instead of a processor user's refresh token.
	GoogleServiceAccountFile string
	// GmailImpersonate is the mailbox the service account reads through domain-wide
	// delegation. Empty keeps Gmail on the processor user's refresh token.
	GmailImpersonate string

	InstallationSheets []SectorSheet
	GmailQuery         string
	GmailMaxMessages   int64

	SchedulerEnabled      bool
	SchedulerTick         time.Duration
	SchedulerTaskInterval time.Duration
	SyncTaskInterval      time.Duration
	NotificationWindow    int
	NotificationRetention time.Duration
	CleanupTaskInterval   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RabbitMQURL   string
}

func Load() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.SessionSecret = strings.TrimSpace(getEnv("SESSION_SECRET", defaultSessionSecret))
	cfg.CronSecret = strings.TrimSpace(getEnv("CRON_SECRET", defaultCronSecret))
	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.ToLower(strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite)))
	cfg.FrontendURL = strings.TrimSpace(getEnv("FRONTEND_URL", "/"))
	cfg.CORSAllowedOrigins = strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.AdminEmails = splitList(os.Getenv("ADMIN_EMAILS"))

	cfg.GoogleClientID = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID"))
	cfg.GoogleClientSecret = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET"))
	cfg.GoogleRedirectURL = strings.TrimSpace(os.Getenv("GOOGLE_REDIRECT_URL"))
	cfg.GoogleServiceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	cfg.GmailImpersonate = strings.TrimSpace(os.Getenv("GMAIL_IMPERSONATE"))
	cfg.GmailQuery = strings.TrimSpace(getEnv("GMAIL_QUERY", defaultGmailQuery))

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RabbitMQURL = strings.TrimSpace(os.Getenv("RABBITMQ_URL"))
	cfg.SchedulerEnabled = parseBoolEnv("SCHEDULER_ENABLED", defaultSchedulerEnabled)

	var err error
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", defaultSessionTTL); err != nil {
		return nil, err
	}
	if cfg.SchedulerTick, err = parseDurationEnv("SCHEDULER_TICK", defaultSchedulerTick); err != nil {
		return nil, err
	}
	if cfg.SchedulerTaskInterval, err = parseDurationEnv("SCHEDULER_TASK_INTERVAL", defaultTaskInterval); err != nil {
		return nil, err
	}
	if cfg.SyncTaskInterval, err = parseDurationEnv("SYNC_TASK_INTERVAL", defaultSyncInterval); err != nil {
		return nil, err
	}
	if cfg.NotificationRetention, err = parseDurationEnv("NOTIFICATION_RETENTION", defaultRetention); err != nil {
		return nil, err
	}
	if cfg.CleanupTaskInterval, err = parseDurationEnv("CLEANUP_TASK_INTERVAL", defaultCleanupInterval); err != nil {
		return nil, err
	}
	if cfg.GmailMaxMessages, err = parseInt64Env("GMAIL_MAX_MESSAGES", defaultGmailMaxMessages); err != nil {
		return nil, err
	}
	window, err := parseInt64Env("NOTIFICATION_WINDOW", defaultNotificationWindow)
	if err != nil {
		return nil, err
	}
	cfg.NotificationWindow = int(window)
	redisDB, err := parseInt64Env("REDIS_DB", "0")
	if err != nil {
		return nil, err
	}
	cfg.RedisDB = int(redisDB)

	if cfg.InstallationSheets, err = ParseSectorSheets(os.Getenv("INSTALLATION_SHEETS")); err != nil {
		return nil, err
	}
	if cfg.TokenEncryptionKey, err = parseKey(os.Getenv("TOKEN_ENCRYPTION_KEY"), cfg.SessionSecret); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("config loaded: env=%s port=%s sectors=%d scheduler=%t redis=%t rabbitmq=%t",
		cfg.AppEnv, cfg.Port, len(cfg.InstallationSheets), cfg.SchedulerEnabled, cfg.RedisAddr != "", cfg.RabbitMQURL != "")

	return cfg, nil
}

// Sectors returns the configured sector names in declaration order.
func (c *Config) Sectors() []string {
	out := make([]string, 0, len(c.InstallationSheets))
	for _, s := range c.InstallationSheets {
		out = append(out, s.Sector)
	}
	return out
}

func (c *Config) IsProdLike() bool {
	return isProdLike(c.AppEnv)
}

// ParseSectorSheets reads "CHR:spreadsheetId:Tab;HACCP:otherId:Feuille 1".
func ParseSectorSheets(raw string) ([]SectorSheet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	seen := map[string]bool{}
	var out []SectorSheet
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid INSTALLATION_SHEETS entry %q: want SECTOR:spreadsheetId:tab", entry)
		}
		sheet := SectorSheet{
			Sector:        strings.TrimSpace(parts[0]),
			SpreadsheetID: strings.TrimSpace(parts[1]),
			Tab:           strings.TrimSpace(parts[2]),
		}
		if sheet.Sector == "" || sheet.SpreadsheetID == "" || sheet.Tab == "" {
			return nil, fmt.Errorf("invalid INSTALLATION_SHEETS entry %q: empty field", entry)
		}
		key := strings.ToLower(sheet.Sector)
		if seen[key] {
			return nil, fmt.Errorf("duplicate sector %q in INSTALLATION_SHEETS", sheet.Sector)
		}
		seen[key] = true
		out = append(out, sheet)
	}
	return out, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if cfg.SchedulerTick <= 0 {
		return fmt.Errorf("SCHEDULER_TICK must be > 0")
	}
	if cfg.SchedulerTaskInterval <= 0 {
		return fmt.Errorf("SCHEDULER_TASK_INTERVAL must be > 0")
	}
	if cfg.SyncTaskInterval <= 0 {
		return fmt.Errorf("SYNC_TASK_INTERVAL must be > 0")
	}
	if cfg.NotificationWindow <= 0 {
		return fmt.Errorf("NOTIFICATION_WINDOW must be > 0")
	}
	if cfg.GmailMaxMessages <= 0 {
		return fmt.Errorf("GMAIL_MAX_MESSAGES must be > 0")
	}
	if cfg.NotificationRetention <= 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION must be > 0")
	}
	if cfg.CleanupTaskInterval <= 0 {
		return fmt.Errorf("CLEANUP_TASK_INTERVAL must be > 0")
	}
	switch cfg.CookieSameSite {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("COOKIE_SAMESITE must be lax, strict or none")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.SessionSecret, defaultSessionSecret) {
			return fmt.Errorf("in prod/release SESSION_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.CronSecret, defaultCronSecret) {
			return fmt.Errorf("in prod/release CRON_SECRET must be set and not default")
		}
		if strings.TrimSpace(os.Getenv("TOKEN_ENCRYPTION_KEY")) == "" {
			return fmt.Errorf("in prod/release TOKEN_ENCRYPTION_KEY must be set")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}

	return nil
}

// parseKey decodes a base64 32-byte key. In dev an empty value derives a
// key from the session secret so the server still boots.
func parseKey(raw, fallbackSeed string) ([32]byte, error) {
	var key [32]byte
	raw = strings.TrimSpace(raw)
	if raw == "" {
		copy(key[:], []byte(fallbackSeed+strings.Repeat("0", 32)))
		return key, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return key, fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: %w", err)
	}
	if len(decoded) != 32 {
		return key, fmt.Errorf("TOKEN_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseInt64Env(name, fallback string) (int64, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

// splitList reads a comma separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
