// Command send-digest runs one digest pass outside the server's schedule.
// With -dry-run it prints each digest instead of sending it to Telegram.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/stockpulse/internal/adapter/postgres"
	"github.com/pscheid92/stockpulse/internal/adapter/telegram"
	"github.com/pscheid92/stockpulse/internal/app"
	"github.com/pscheid92/stockpulse/internal/domain"
)

const runTimeout = 5 * time.Minute

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		botToken    = flag.String("token", os.Getenv("TELEGRAM_BOT_TOKEN"), "Telegram bot token (or set TELEGRAM_BOT_TOKEN env)")
		dryRun      = flag.Bool("dry-run", false, "Dry run mode (print digests instead of sending them)")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}
	if !*dryRun && *botToken == "" {
		log.Fatal("Bot token required unless --dry-run (--token or TELEGRAM_BOT_TOKEN env)")
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	slog.Info("Connected to database", "url", sanitizeURL(*databaseURL))

	var notifier domain.Notifier
	if *dryRun {
		notifier = &printNotifier{w: os.Stdout}
	} else {
		tg, err := telegram.NewNotifier(*botToken)
		if err != nil {
			log.Fatalf("Failed to create Telegram notifier: %v", err)
		}
		slog.Info("Sending as Telegram bot", "bot", tg.Username())
		notifier = tg
	}

	svc := app.NewService(app.Repositories{
		Users:      postgres.NewUserRepo(pool),
		Categories: postgres.NewCategoryRepo(pool),
		Materials:  postgres.NewMaterialRepo(pool),
		Usage:      postgres.NewUsageRepo(pool),
	}, app.Options{Notifier: notifier}, clockwork.NewRealClock())

	start := time.Now()
	slog.Info("Starting digest run", "dry_run", *dryRun)

	result, err := svc.SendDigests(ctx)
	if err != nil {
		log.Fatalf("Digest run failed: %v", err)
	}

	slog.Info("Digest summary",
		"sent", result.Sent,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration_ms", time.Since(start).Milliseconds())

	if result.Failed > 0 {
		os.Exit(1)
	}
}

// printNotifier writes each digest to w, headed by its chat ID.
type printNotifier struct {
	w io.Writer
}

func (p *printNotifier) Send(_ context.Context, chatID int64, text string) error {
	_, err := fmt.Fprintf(p.w, "=== chat %d ===\n%s\n\n", chatID, text)
	return err
}

func sanitizeURL(raw string) string {
	// Hide password in database URL for logging
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
