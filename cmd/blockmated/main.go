// Blockmated is the BlockMate validation daemon.
//
// It exposes the HTTP API used by the chat front-end: user registration,
// goal configuration, request validation through the judge oracle, and
// time-boxed usage reminders delivered over Telegram.
//
// Configuration is loaded from an optional YAML file plus BLOCKMATE_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	blockmated
//
//	# Configure via environment
//	BLOCKMATE_SERVER_PORT=8000 BLOCKMATE_JUDGE_API_KEY=sk-... blockmated
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/blockmatelabs/blockmated/internal/config"
	httpapi "github.com/blockmatelabs/blockmated/internal/http"
	"github.com/blockmatelabs/blockmated/internal/judge"
	"github.com/blockmatelabs/blockmated/internal/logging"
	"github.com/blockmatelabs/blockmated/internal/notify"
	"github.com/blockmatelabs/blockmated/internal/scheduler"
	"github.com/blockmatelabs/blockmated/internal/user"
	"github.com/blockmatelabs/blockmated/internal/validation"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("blockmated\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the blockmated server and blocks until context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting blockmated",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	// Storage
	db, err := user.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	store, err := user.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	// Judge oracle and decision pipeline
	if !cfg.Judge.APIKey.IsSet() {
		return fmt.Errorf("judge api key not configured (BLOCKMATE_JUDGE_API_KEY)")
	}
	oracle, err := judge.NewOpenAIOracle(judge.OracleConfig{
		BaseURL:    cfg.Judge.BaseURL,
		Model:      cfg.Judge.Model,
		APIKey:     cfg.Judge.APIKey.Value(),
		Timeout:    cfg.Judge.Timeout.Duration(),
		MaxRetries: cfg.Judge.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to create judge oracle: %w", err)
	}
	pipeline, err := judge.NewPipeline(oracle, cfg.Judge.Timeout.Duration(), logger)
	if err != nil {
		return fmt.Errorf("failed to create decision pipeline: %w", err)
	}

	// Notification channel: Telegram when a token is configured, log-only
	// otherwise so local runs still work end to end.
	var notifier scheduler.Notifier
	if cfg.Telegram.Token.IsSet() {
		notifier, err = notify.NewTelegram(notify.TelegramConfig{
			Token:   cfg.Telegram.Token.Value(),
			BaseURL: cfg.Telegram.BaseURL,
			Timeout: cfg.Telegram.Timeout.Duration(),
		})
		if err != nil {
			return fmt.Errorf("failed to create telegram notifier: %w", err)
		}
		logger.Info("Telegram notifier configured")
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Warn("No telegram token configured, reminders will only be logged")
	}

	// Reminder scheduler
	schedOpts := []scheduler.Option{
		scheduler.WithNotifyTimeout(cfg.Telegram.Timeout.Duration()),
	}
	if cfg.Scheduler.ReminderText != "" {
		schedOpts = append(schedOpts, scheduler.WithReminderText(cfg.Scheduler.ReminderText))
	}
	sched, err := scheduler.New(notifier, logger, schedOpts...)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	defer sched.Close()

	// Orchestrator
	service, err := validation.New(store, pipeline, sched, logger,
		validation.WithMaxDurationMinutes(cfg.Scheduler.MaxDurationMinutes))
	if err != nil {
		return fmt.Errorf("failed to create validation service: %w", err)
	}

	// HTTP server
	srv, err := httpapi.NewServer(service, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
