package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/bhamnews/briefing-engine/internal/articles"
	"github.com/bhamnews/briefing-engine/internal/config"
	"github.com/bhamnews/briefing-engine/internal/mailer"
	"github.com/bhamnews/briefing-engine/internal/repository/postgres"
	"github.com/bhamnews/briefing-engine/internal/service/briefing"
	"github.com/bhamnews/briefing-engine/internal/worker"
)

// One-shot dispatch runner for cron. Builds the digest, selects recipients,
// runs the send, prints the accounting, and exits non-zero if nothing could
// be delivered while recipients existed.
func main() {
	windowHours := flag.Int("window", 0, "article window in hours (0 = configured default)")
	maxItems := flag.Int("max", 0, "max articles in the digest (0 = configured default)")
	flag.Parse()

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}

	limiter, err := worker.NewRateLimiterFromURL(cfg.Redis.URL, "ratelimit:dispatch",
		float64(cfg.Dispatch.RatePerSecond), cfg.Dispatch.Burst)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer limiter.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sender, err := mailer.NewSESSender(ctx, cfg.SES)
	if err != nil {
		log.Fatalf("Failed to init SES sender: %v", err)
	}
	templates, err := mailer.NewTemplates(cfg.Newsletter.SiteURL)
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	subscriberRepo := postgres.NewSubscriberRepo(db)
	logRepo := postgres.NewEmailLogRepo(db)

	var source articles.Source
	if cfg.Articles.Source == "feed" {
		source = articles.NewFeedSource(cfg.Articles.FeedURL)
	} else {
		source = postgres.NewArticleRepo(db, cfg.Newsletter.SiteURL)
	}

	builder := briefing.NewBuilder(source, subscriberRepo, cfg.Newsletter.Channel,
		cfg.Newsletter.Window(), cfg.Newsletter.MaxItems)
	dispatcher := worker.NewDispatcher(sender, templates, subscriberRepo, logRepo,
		limiter, cfg.Newsletter.SiteURL, cfg.Dispatch.Workers)

	digest, err := builder.BuildDigest(ctx, time.Duration(*windowHours)*time.Hour, *maxItems)
	if err != nil {
		log.Fatalf("Digest build failed: %v", err)
	}
	recipients, err := builder.SelectRecipients(ctx)
	if err != nil {
		log.Fatalf("Recipient selection failed: %v", err)
	}

	stats := dispatcher.Run(ctx, digest, recipients)
	if !stats.RanSends {
		log.Println("[Dispatch] Nothing to send")
		return
	}

	log.Printf("[Dispatch] sent=%d failed=%d total=%d", stats.Sent, stats.Failed, stats.Total)
	if stats.Sent == 0 && stats.Failed > 0 {
		os.Exit(1)
	}
}
