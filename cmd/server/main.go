package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/bhamnews/briefing-engine/internal/api"
	"github.com/bhamnews/briefing-engine/internal/articles"
	"github.com/bhamnews/briefing-engine/internal/auth"
	"github.com/bhamnews/briefing-engine/internal/config"
	"github.com/bhamnews/briefing-engine/internal/mailer"
	"github.com/bhamnews/briefing-engine/internal/repository/postgres"
	"github.com/bhamnews/briefing-engine/internal/service/briefing"
	"github.com/bhamnews/briefing-engine/internal/service/subscription"
	"github.com/bhamnews/briefing-engine/internal/worker"
)

func main() {
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
	log.Println("[Server] Connected to database")

	limiter, err := worker.NewRateLimiterFromURL(cfg.Redis.URL, "ratelimit:dispatch",
		float64(cfg.Dispatch.RatePerSecond), cfg.Dispatch.Burst)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer limiter.Close()

	ctx := context.Background()
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
	keyRepo := postgres.NewAPIKeyRepo(db)

	var source articles.Source
	if cfg.Articles.Source == "feed" {
		source = articles.NewFeedSource(cfg.Articles.FeedURL)
		log.Printf("[Server] Article source: feed (%s)", cfg.Articles.FeedURL)
	} else {
		source = postgres.NewArticleRepo(db, cfg.Newsletter.SiteURL)
		log.Println("[Server] Article source: postgres")
	}

	subs := subscription.NewService(subscriberRepo, logRepo, sender, templates,
		cfg.Newsletter.SiteURL, cfg.Newsletter.Channel)
	builder := briefing.NewBuilder(source, subscriberRepo, cfg.Newsletter.Channel,
		cfg.Newsletter.Window(), cfg.Newsletter.MaxItems)
	dispatcher := worker.NewDispatcher(sender, templates, subscriberRepo, logRepo,
		limiter, cfg.Newsletter.SiteURL, cfg.Dispatch.Workers)
	gate := auth.NewGate(keyRepo)

	handlers := api.NewHandlers(subs, builder, dispatcher, cfg.Newsletter.SiteURL)
	server := api.NewServer(cfg.Server, handlers, gate)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-done
	log.Println("[Server] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}
	log.Println("[Server] Stopped")
}
