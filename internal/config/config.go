package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	LogLevel string
	Env      string

	// Storage
	DBPath        string // sqlite database (templates, settings, send log)
	ProcessedPath string // order progress file

	// Apilo order API
	ApiloBaseURL        string
	ApiloAccessToken    string
	ApiloRefreshToken   string
	ApiloClientID       string
	ApiloClientSecret   string
	ApiloPageLimit      int
	ApiloTimeout        time.Duration
	ApiloConnectTimeout time.Duration

	// Poller
	PollInterval time.Duration
	DryRun       bool
	StatusFromID int // default source status when settings are empty
	StatusToID   int // default target status (0 = do not advance)

	// SMTP for email sending
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	// SMS gateway
	SMSToken          string
	SMSFrom           string
	SMSBaseURL        string
	SMSTestMode       bool
	SMSConnectTimeout time.Duration

	// Admin HTTP server
	AdminAddr     string
	AdminUser     string
	AdminPassword string
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Env:      "development",

		DBPath:        "data/app.db",
		ProcessedPath: "data/processed.json",

		ApiloPageLimit:      200,
		ApiloTimeout:        120 * time.Second,
		ApiloConnectTimeout: 15 * time.Second,

		PollInterval: 60 * time.Second,
		StatusToID:   0,

		SMTPPort: 587,

		SMSBaseURL:        "https://api2.smsplanet.pl",
		SMSConnectTimeout: 10 * time.Second,

		AdminAddr: ":8080",
		AdminUser: "admin",
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.DBPath = path
	}
	if path := os.Getenv("PROCESSED_PATH"); path != "" {
		cfg.ProcessedPath = path
	}

	cfg.ApiloBaseURL = os.Getenv("APILO_BASE_URL")
	cfg.ApiloAccessToken = os.Getenv("APILO_ACCESS_TOKEN")
	cfg.ApiloRefreshToken = os.Getenv("APILO_REFRESH_TOKEN")
	cfg.ApiloClientID = os.Getenv("APILO_CLIENT_ID")
	cfg.ApiloClientSecret = os.Getenv("APILO_CLIENT_SECRET")

	if limit := os.Getenv("APILO_PAGE_LIMIT"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid APILO_PAGE_LIMIT: %w", err)
		}
		cfg.ApiloPageLimit = n
	}

	if timeout := os.Getenv("APILO_TIMEOUT_SECONDS"); timeout != "" {
		n, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid APILO_TIMEOUT_SECONDS: %w", err)
		}
		cfg.ApiloTimeout = time.Duration(n) * time.Second
	}

	if timeout := os.Getenv("APILO_CONNECT_TIMEOUT_SECONDS"); timeout != "" {
		n, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid APILO_CONNECT_TIMEOUT_SECONDS: %w", err)
		}
		cfg.ApiloConnectTimeout = time.Duration(n) * time.Second
	}

	if interval := os.Getenv("POLL_SECONDS"); interval != "" {
		n, err := strconv.Atoi(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_SECONDS: %w", err)
		}
		cfg.PollInterval = time.Duration(n) * time.Second
	}

	if dry := os.Getenv("DRY_RUN"); dry != "" {
		v, err := strconv.ParseBool(dry)
		if err != nil {
			return nil, fmt.Errorf("invalid DRY_RUN: %w", err)
		}
		cfg.DryRun = v
	}

	if status := os.Getenv("STATUS_FROM"); status != "" {
		n, err := strconv.Atoi(status)
		if err != nil {
			return nil, fmt.Errorf("invalid STATUS_FROM: %w", err)
		}
		cfg.StatusFromID = n
	}

	if status := os.Getenv("STATUS_TO"); status != "" {
		n, err := strconv.Atoi(status)
		if err != nil {
			return nil, fmt.Errorf("invalid STATUS_TO: %w", err)
		}
		cfg.StatusToID = n
	}

	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.SMTPHost = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		cfg.SMTPPort = p
	}
	if user := os.Getenv("SMTP_USER"); user != "" {
		cfg.SMTPUsername = user
	}
	if pass := os.Getenv("SMTP_PASS"); pass != "" {
		cfg.SMTPPassword = pass
	}
	if from := os.Getenv("MAIL_FROM"); from != "" {
		cfg.MailFrom = from
	}

	cfg.SMSToken = os.Getenv("SMSPLANET_TOKEN")
	cfg.SMSFrom = os.Getenv("SMS_FROM")
	if base := os.Getenv("SMS_BASE_URL"); base != "" {
		cfg.SMSBaseURL = base
	}
	if test := os.Getenv("SMS_TEST_MODE"); test != "" {
		v, err := strconv.ParseBool(test)
		if err != nil {
			return nil, fmt.Errorf("invalid SMS_TEST_MODE: %w", err)
		}
		cfg.SMSTestMode = v
	}
	if timeout := os.Getenv("SMS_CONNECT_TIMEOUT_SECONDS"); timeout != "" {
		n, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SMS_CONNECT_TIMEOUT_SECONDS: %w", err)
		}
		cfg.SMSConnectTimeout = time.Duration(n) * time.Second
	}

	if addr := os.Getenv("ADMIN_ADDR"); addr != "" {
		cfg.AdminAddr = addr
	}
	if user := os.Getenv("ADMIN_USER"); user != "" {
		cfg.AdminUser = user
	}
	if pass := os.Getenv("ADMIN_PASS"); pass != "" {
		cfg.AdminPassword = pass
	}

	return cfg, nil
}
