package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lostradar/lostradar-backend/internal/clients/openai"
	redisclient "github.com/lostradar/lostradar-backend/internal/clients/redis"
	"github.com/lostradar/lostradar-backend/internal/db"
	"github.com/lostradar/lostradar-backend/internal/jobs"
	"github.com/lostradar/lostradar-backend/internal/modules/matching"
	"github.com/lostradar/lostradar-backend/internal/platform/logger"
	"github.com/lostradar/lostradar-backend/internal/platform/qdrant"
	"github.com/lostradar/lostradar-backend/internal/repos"
	"github.com/lostradar/lostradar-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Matching config
	cfg, err := matching.LoadConfig()
	if err != nil {
		log.Error("Matching config invalid", "error", err)
		os.Exit(1)
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Vector store
	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		log.Error("Qdrant config invalid", "error", err)
		os.Exit(1)
	}
	vectorStore, err := qdrant.NewVectorStore(log, qdrantCfg)
	if err != nil {
		log.Error("Qdrant init failed", "error", err)
		os.Exit(1)
	}

	// Repos
	reportRepo := repos.NewReportRepo(thePG, log)
	matchRepo := repos.NewMatchRepo(thePG, log)

	// Matching engine
	retriever := matching.NewRetriever(log, cfg, vectorStore, reportRepo)
	pipeline := matching.NewPipeline(log, cfg, retriever)
	matchService := services.NewMatchService(thePG, log, matchRepo)

	// Optional clients. The worker degrades gracefully without either: no
	// embedder means reports without embeddings are stamped and permanently
	// excluded from matching, no bus means created matches stay unnotified.
	var embedder openai.Client
	if c, err := openai.NewClient(log); err != nil {
		log.Warn("OpenAI client unavailable, embedding backfill disabled", "error", err)
	} else {
		embedder = c
	}
	var bus redisclient.MatchBus
	if b, err := redisclient.NewMatchBus(log); err != nil {
		log.Warn("Redis bus unavailable, match events disabled", "error", err)
	} else {
		bus = b
		defer bus.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := jobs.NewWorker(thePG, log, reportRepo, pipeline, matchService, embedder, vectorStore, bus)
	worker.Start(ctx)
	log.Info("Match worker started")

	<-ctx.Done()
	log.Info("Shutting down")
}
