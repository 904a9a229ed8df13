package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vouchwatch/backend/internal/config"
	"github.com/vouchwatch/backend/internal/loader"
	"github.com/vouchwatch/backend/internal/logging"
	"github.com/vouchwatch/backend/internal/store"
)

func main() {
	var (
		recordsPath = flag.String("records", "./data/endorsements.json", "path to the endorsements JSON file")
		workers     = flag.Int("workers", 4, "number of concurrent workers for ingestion")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "ingest")

	records, err := loader.LoadFile(*recordsPath)
	if err != nil {
		logger.Error("failed to load endorsements", "error", err, "path", *recordsPath)
		os.Exit(1)
	}
	if len(records) == 0 {
		logger.Error("endorsement dataset empty", "path", *recordsPath)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Graph.URI == "" {
		logger.Error("GRAPH_URI is required for ingestion")
		os.Exit(1)
	}
	client, err := store.NewNeo4jClient(ctx, store.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
	if err != nil {
		logger.Error("failed to create graph store client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("closing graph store client failed", "error", err)
		}
	}()

	if err := client.VerifyConnectivity(ctx); err != nil {
		logger.Error("graph store unreachable", "error", err, "uri", cfg.Graph.URI)
		os.Exit(1)
	}
	logger.Info("connected to graph store", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)

	repo := store.NewRepository(client)

	start := time.Now()
	logger.Info("ingesting endorsements", "count", len(records), "workers", *workers)
	if err := repo.BulkUpsert(ctx, records, *workers); err != nil {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	total, err := repo.CountEndorsements(ctx)
	if err != nil {
		logger.Warn("failed to count stored endorsements", "error", err)
	}

	logger.Info("ingestion complete",
		"duration", time.Since(start).String(),
		"ingested", len(records),
		"stored", total,
	)
}
