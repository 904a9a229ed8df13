package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vouchwatch/backend/internal/config"
	"github.com/vouchwatch/backend/internal/logging"
	"github.com/vouchwatch/backend/internal/registry"
	"github.com/vouchwatch/backend/internal/server"
	"github.com/vouchwatch/backend/internal/service"
	"github.com/vouchwatch/backend/internal/store"
)

func main() {
	var (
		recordsPath = flag.String("records", "", "path to an endorsements JSON file; when set the server analyzes the file instead of the graph store")
	)
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	reg, err := registry.Open(cfg.Registry.Path, cfg.Registry.OwnerToken)
	if err != nil {
		logger.Error("failed to open score registry", "error", err, "path", cfg.Registry.Path)
		os.Exit(1)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("closing registry failed", "error", err)
		}
	}()

	var (
		source      service.RecordSource
		storeClient store.Client
		health      server.HealthService
	)
	if *recordsPath != "" {
		source = service.FileSource{Path: *recordsPath}
		logger.Info("using file record source", "path", *recordsPath)
	} else {
		storeClient, err = buildStoreClient(ctx, cfg)
		if err != nil {
			logger.Error("failed to create graph store client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := storeClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph store client failed", "error", err)
			}
		}()
		source = service.StoreSource{Repo: store.NewRepository(storeClient)}
		health = server.StoreHealthService{Client: storeClient}
	}

	analysis := service.NewAnalysisService(logger, cfg.Analysis, source).
		WithRegistry(reg, cfg.Registry.OwnerToken)

	apiHandlers := server.NewAPIHandlers(logger, reg, analysis)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           health,
		API:              apiHandlers,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	var scheduler *service.Scheduler
	if cfg.Analysis.Schedule != "" {
		scheduler = service.NewScheduler(logger, analysis, 30*time.Minute)
		if err := scheduler.Schedule(cfg.Analysis.Schedule); err != nil {
			logger.Error("invalid analysis schedule", "error", err, "schedule", cfg.Analysis.Schedule)
			os.Exit(1)
		}
		logger.Info("scheduled periodic analysis", "schedule", cfg.Analysis.Schedule)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildStoreClient(ctx context.Context, cfg config.Config) (store.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, store.ErrMissingURI
	}

	opts := store.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	return store.NewNeo4jClient(ctx, opts)
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
