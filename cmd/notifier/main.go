package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MarcineQ18/apilo-notifier1/internal/api"
	"github.com/MarcineQ18/apilo-notifier1/internal/apilo"
	"github.com/MarcineQ18/apilo-notifier1/internal/circuitbreaker"
	"github.com/MarcineQ18/apilo-notifier1/internal/config"
	"github.com/MarcineQ18/apilo-notifier1/internal/db"
	"github.com/MarcineQ18/apilo-notifier1/internal/mailer"
	"github.com/MarcineQ18/apilo-notifier1/internal/observ"
	"github.com/MarcineQ18/apilo-notifier1/internal/poller"
	"github.com/MarcineQ18/apilo-notifier1/internal/sms"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting apilo notifier",
		zap.String("env", cfg.Env),
		zap.String("admin_addr", cfg.AdminAddr),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Bool("dry_run", cfg.DryRun),
	)

	// Open the local store
	ctx := context.Background()
	store, err := db.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	logger.Info("database opened", zap.String("path", cfg.DBPath))

	// Tokens persisted from an earlier refresh take precedence over the
	// ones in the environment.
	accessToken := cfg.ApiloAccessToken
	refreshToken := cfg.ApiloRefreshToken
	if stored, err := store.ApiloAccessToken(ctx); err == nil && stored != "" {
		accessToken = stored
	}
	if stored, err := store.ApiloRefreshToken(ctx); err == nil && stored != "" {
		refreshToken = stored
	}

	client := apilo.New(apilo.Config{
		BaseURL:        cfg.ApiloBaseURL,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		ClientID:       cfg.ApiloClientID,
		ClientSecret:   cfg.ApiloClientSecret,
		PageLimit:      cfg.ApiloPageLimit,
		Timeout:        cfg.ApiloTimeout,
		ConnectTimeout: cfg.ApiloConnectTimeout,
	}, func(access, refresh, accessExp, refreshExp string) {
		if err := store.SetApiloTokens(context.Background(), access, refresh, accessExp, refreshExp); err != nil {
			logger.Error("failed to persist refreshed tokens", zap.Error(err))
		}
	}, logger)

	m := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, logger)

	emailBreaker := circuitbreaker.New(circuitbreaker.DefaultConfig("smtp"), logger)
	emailSender := circuitbreaker.NewProtectedEmailSender(m, emailBreaker, logger)
	breakers := []*circuitbreaker.CircuitBreaker{emailBreaker}

	var smsSender poller.SMSSender
	if cfg.SMSToken != "" {
		s, err := sms.New(sms.Config{
			Token:          cfg.SMSToken,
			SenderName:     cfg.SMSFrom,
			BaseURL:        cfg.SMSBaseURL,
			TestMode:       cfg.SMSTestMode,
			ConnectTimeout: cfg.SMSConnectTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create sms sender: %w", err)
		}
		smsBreaker := circuitbreaker.New(circuitbreaker.DefaultConfig("sms"), logger)
		smsSender = circuitbreaker.NewProtectedSMSSender(s, smsBreaker, logger)
		breakers = append(breakers, smsBreaker)
	} else {
		logger.Warn("sms gateway not configured, text notifications disabled")
	}

	progress, err := poller.LoadProgress(cfg.ProcessedPath)
	if err != nil {
		return fmt.Errorf("failed to load progress file: %w", err)
	}

	var defaultFrom []int
	if cfg.StatusFromID > 0 {
		defaultFrom = []int{cfg.StatusFromID}
	}

	p := poller.New(client, store, progress, emailSender, smsSender, poller.Config{
		PollInterval:      cfg.PollInterval,
		DryRun:            cfg.DryRun,
		DefaultStatusFrom: defaultFrom,
		DefaultStatusTo:   cfg.StatusToID,
	}, logger)

	pollCtx, pollCancel := context.WithCancel(context.Background())
	defer pollCancel()

	go p.Run(pollCtx)

	logger.Info("dispatch loop started")

	// Admin HTTP surface
	handler := api.NewHandler(logger, store, client, breakers...)
	router := api.NewRouter(handler, api.AuthConfig{
		User: cfg.AdminUser,
		Pass: cfg.AdminPassword,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		pollCancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
