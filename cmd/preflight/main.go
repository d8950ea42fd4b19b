// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesweep/internal/config"
	"github.com/hamed0406/uptimesweep/internal/repo/postgres"
	"github.com/hamed0406/uptimesweep/internal/repo/sqlite"
)

func main() {
	_ = godotenv.Load()

	red := color.New(color.FgRed, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, red("✖"), msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, yellow("⚠"), msg) }
	ok := func(msg string) { fmt.Println(green("✔"), msg) }

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fail("configuration invalid: " + err.Error())
	} else {
		ok("configuration valid")
	}

	if len(cfg.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (admin routes are open to anyone).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty (read routes only accept admin keys).")
	}
	for name, v := range map[string]string{"ADMIN_API_KEYS": os.Getenv("ADMIN_API_KEYS"), "PUBLIC_API_KEYS": os.Getenv("PUBLIC_API_KEYS")} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; they are trimmed, but key1,key2 is the expected form")
		}
	}
	ok("API_ADDR=" + cfg.Addr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	switch {
	case cfg.DatabaseURL != "":
		if store, err := postgres.New(ctx, cfg.DatabaseURL, zap.NewNop()); err != nil {
			fail("DATABASE_URL unreachable: " + err.Error())
		} else {
			_ = store.Close()
			ok("postgres reachable, schema applied")
		}
	case cfg.SQLitePath != "":
		if store, err := sqlite.New(ctx, cfg.SQLitePath, zap.NewNop()); err != nil {
			fail("SQLITE_PATH unusable: " + err.Error())
		} else {
			_ = store.Close()
			ok("sqlite ready at " + cfg.SQLitePath)
		}
	default:
		warn("DATABASE_URL and SQLITE_PATH empty: API will use the in-memory store.")
	}

	if cfg.SMTPHost == "" && cfg.SMTP2GOAPIKey == "" && cfg.SlackWebhook == "" {
		warn("no SMTP_HOST, SMTP2GO_API_KEY or SLACK_WEBHOOK: downtime alerts are only logged.")
	} else {
		ok("notification transport configured")
	}
	if cfg.CheckInterval == 0 {
		warn("CHECK_INTERVAL_MS=0: scheduled sweeps disabled, only POST /api/sweeps runs them.")
	} else {
		ok("sweep every " + cfg.CheckInterval.String())
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty: CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
