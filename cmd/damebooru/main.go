package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/api"
	"github.com/YelovSK/Damebooru-sub002/internal/auth"
	"github.com/YelovSK/Damebooru-sub002/internal/config"
	"github.com/YelovSK/Damebooru-sub002/internal/db"
	"github.com/YelovSK/Damebooru-sub002/internal/dblog"
	"github.com/YelovSK/Damebooru-sub002/internal/duplicates"
	"github.com/YelovSK/Damebooru-sub002/internal/jobs"
	"github.com/YelovSK/Damebooru-sub002/internal/media"
	"github.com/YelovSK/Damebooru-sub002/internal/mediasource"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
	"github.com/YelovSK/Damebooru-sub002/internal/scanner"
	"github.com/YelovSK/Damebooru-sub002/internal/scheduler"
	"github.com/YelovSK/Damebooru-sub002/internal/thumbs"
	"github.com/YelovSK/Damebooru-sub002/internal/version"
)

func main() {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	boot := slog.New(console)

	cfg, err := config.Load()
	if err != nil {
		fatal(boot, "configuration failed to load", err)
	}

	database, err := db.Connect(cfg.Storage.DatabasePath)
	if err != nil {
		fatal(boot, "database connection failed", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		fatal(boot, "migration failed", err)
	}

	// The capture pipeline needs the schema in place, so the full logger
	// comes up only after migrations.
	logRepo := repository.NewLogRepository(database.DB)
	capture := dblog.NewCapture(logRepo, dblog.Config{
		MinimumLevel:    cfg.DBLog.MinimumLevel,
		BatchSize:       cfg.DBLog.BatchSize,
		FlushInterval:   cfg.DBLog.FlushInterval,
		ChannelCapacity: cfg.DBLog.ChannelCapacity,
		RetentionDays:   cfg.DBLog.RetentionDays,
		MaxRows:         cfg.DBLog.MaxRows,
	})
	log := slog.New(dblog.NewTee(console, capture.Handler(cfg.DBLog.MinimumLevel)))
	slog.SetDefault(log)
	capture.Start(log)
	defer capture.Close()

	log.Info("damebooru starting", "version", version.String(), "database", cfg.Storage.DatabasePath)

	libraries := repository.NewLibraryRepository(database.DB)
	posts := repository.NewPostRepository(database.DB)
	tags := repository.NewTagRepository(database.DB)
	exclusions := repository.NewExclusionRepository(database.DB)
	dupeGroups := repository.NewDuplicateRepository(database.DB)
	jobRuns := repository.NewJobRepository(database.DB)
	schedules := repository.NewScheduleRepository(database.DB)

	processor, err := media.NewProcessor(cfg.Storage.TempPath, log)
	if err != nil {
		fatal(log, "media processor unavailable", err)
	}
	store := thumbs.NewStore(cfg.Storage.ThumbnailPath)
	sync := scanner.NewSyncProcessor(libraries, posts, exclusions, mediasource.New(log), store, scanner.Config{
		SnapshotPageSize: cfg.Scanner.BatchSize,
		IngestBatchSize:  cfg.Ingestion.BatchSize,
		IngestCapacity:   cfg.Ingestion.ChannelCapacity,
	}, log)
	engine := duplicates.NewEngine(posts, dupeGroups, log)

	hub := api.NewHub()
	registry := jobs.NewRegistry(jobRuns, hub, cfg.Processing.JobProgressReportInterval, log)
	if err := jobs.RegisterAll(registry, jobs.Deps{
		Libraries: libraries,
		Posts:     posts,
		Tags:      tags,
		Sync:      sync,
		Engine:    engine,
		Processor: processor,
		Thumbs:    store,
		Config: jobs.Config{
			ScanParallelism:       cfg.Scanner.Parallelism,
			MetadataParallelism:   cfg.Processing.MetadataParallelism,
			SimilarityParallelism: cfg.Processing.SimilarityParallelism,
			ThumbnailParallelism:  cfg.Processing.ThumbnailParallelism,
		},
		Log: log,
	}); err != nil {
		fatal(log, "job registration failed", err)
	}
	if err := registry.ReconcileStartup(); err != nil {
		fatal(log, "job reconciliation failed", err)
	}

	sched := scheduler.New(schedules, registry, log)
	if err := sched.Seed(); err != nil {
		fatal(log, "schedule seeding failed", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Processing.RunScheduler {
		go sched.Run(ctx)
	}

	sessions, err := auth.NewService(cfg.Auth)
	if err != nil {
		fatal(log, "auth setup failed", err)
	}

	srv := api.NewServer(cfg, database.DB, api.Deps{
		Auth:      sessions,
		Registry:  registry,
		Scheduler: sched,
		Engine:    engine,
		Sync:      sync,
		Thumbs:    store,
		Hub:       hub,
		Log:       log,
	})

	go func() {
		log.Info("listening", "addr", cfg.HTTP.Addr)
		if err := srv.Start(); err != nil {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", "error", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
