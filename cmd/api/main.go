package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesweep/internal/auth"
	"github.com/hamed0406/uptimesweep/internal/config"
	"github.com/hamed0406/uptimesweep/internal/httpapi"
	apimw "github.com/hamed0406/uptimesweep/internal/httpapi/middleware"
	"github.com/hamed0406/uptimesweep/internal/logging"
	"github.com/hamed0406/uptimesweep/internal/notify"
	"github.com/hamed0406/uptimesweep/internal/probe"
	"github.com/hamed0406/uptimesweep/internal/registry"
	"github.com/hamed0406/uptimesweep/internal/repo"
	"github.com/hamed0406/uptimesweep/internal/repo/memory"
	"github.com/hamed0406/uptimesweep/internal/repo/postgres"
	"github.com/hamed0406/uptimesweep/internal/repo/sqlite"
	"github.com/hamed0406/uptimesweep/internal/scheduler"
	"github.com/hamed0406/uptimesweep/internal/sweep"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel, cfg.LogStdout)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.Error(err))
	}
	defer store.Close()

	dispatcher := notify.NewDispatcher(logger, store, transport(cfg, logger), notify.Options{
		From:         cfg.MailFrom,
		Workers:      cfg.NotifyWorkers,
		QueueSize:    cfg.NotifyQueueSize,
		MaxRetries:   cfg.NotifyMaxRetries,
		RetryBackoff: cfg.NotifyRetryBackoff,
		Timeout:      cfg.NotifyTimeout,
	})
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	coord := sweep.NewCoordinator(logger, store, probe.NewHTTPProber(cfg.HTTPTimeout), dispatcher, cfg.HTTPTimeout, cfg.MaxConcurrentChecks)
	reg := registry.NewService(logger, auth.NewAuthenticator(cfg.HTTPTimeout), store)

	sched := scheduler.New(logger, coord, cfg.CheckInterval)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	api := httpapi.NewServer(logger, store, reg, coord)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	if len(keys.Public) == 0 && len(keys.Admin) == 0 {
		logger.Warn("api_keys_missing", zap.String("hint", "all routes are open; set PUBLIC_API_KEYS and ADMIN_API_KEYS"))
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_listen_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown_started")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	<-schedDone
}

// openStore prefers Postgres, then SQLite, then memory.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		logger.Info("store_selected", zap.String("kind", "postgres"))
		return postgres.New(ctx, cfg.DatabaseURL, logger)
	case cfg.SQLitePath != "":
		logger.Info("store_selected", zap.String("kind", "sqlite"), zap.String("path", cfg.SQLitePath))
		return sqlite.New(ctx, cfg.SQLitePath, logger)
	default:
		logger.Warn("store_selected", zap.String("kind", "memory"), zap.String("hint", "data is lost on restart"))
		return memory.New(), nil
	}
}

// transport fans out to every configured channel and falls back to the log.
func transport(cfg config.Config, logger *zap.Logger) notify.Transport {
	var m notify.Multi
	if s := notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword); s != nil {
		m = append(m, s)
	}
	if s := notify.NewSMTP2GO(cfg.SMTP2GOAPIKey); s != nil {
		m = append(m, s)
	}
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		m = append(m, s)
	}
	if len(m) == 0 {
		logger.Warn("notify_no_transport", zap.String("hint", "alerts are only logged"))
		return notify.Log{Logger: logger}
	}
	return m
}
