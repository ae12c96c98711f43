package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"docuforge/internal/config"
	"docuforge/internal/dedup"
	"docuforge/internal/events"
	server "docuforge/internal/http"
	"docuforge/internal/jobs"
	"docuforge/internal/migrate"
	"docuforge/internal/orchestrator"
	"docuforge/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	sqlDB, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(sqlDB)

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb = redis.NewClient(opt)
		} else {
			log.Fatalf("invalid redis url: %v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	bus := events.New(st, rdb, logger)
	dc := dedup.New(rdb, cfg.DedupGracePeriod())
	mgr := orchestrator.NewManager(st, bus, dc, cfg, logger)

	rootCtx := context.Background()
	mgr.Resume(rootCtx, logger)

	sched := jobs.NewScheduler(cfg, st, logger)
	go sched.Start(rootCtx)

	s := server.NewServer(cfg, st, bus, mgr, logger)
	if err := s.Listen(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
