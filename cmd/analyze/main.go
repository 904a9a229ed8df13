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
	"github.com/vouchwatch/backend/internal/export"
	"github.com/vouchwatch/backend/internal/logging"
	"github.com/vouchwatch/backend/internal/registry"
	"github.com/vouchwatch/backend/internal/scorer"
	"github.com/vouchwatch/backend/internal/service"
	"github.com/vouchwatch/backend/internal/store"
)

func main() {
	var (
		recordsPath = flag.String("records", "", "path to an endorsements JSON file; when empty records are fetched from the graph store")
		outputDir   = flag.String("output-dir", "output", "directory for analysis reports and exports")
		publish     = flag.Bool("publish", false, "write the resulting scores into the local score registry")
		timeout     = flag.Duration("timeout", 30*time.Minute, "overall analysis deadline")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "analyze")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	var source service.RecordSource
	if *recordsPath != "" {
		source = service.FileSource{Path: *recordsPath}
	} else {
		if cfg.Graph.URI == "" {
			logger.Error("no record source: pass -records or set GRAPH_URI")
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
		source = service.StoreSource{Repo: store.NewRepository(client)}
	}

	analysis := service.NewAnalysisService(logger, cfg.Analysis, source)

	if *publish {
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
		analysis = analysis.WithRegistry(reg, cfg.Registry.OwnerToken)
	}

	start := time.Now()
	report, err := analysis.Analyze(ctx)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}

	files, err := export.WriteAll(report, *outputDir, analysis.HighRiskThreshold())
	if err != nil {
		logger.Error("failed to write exports", "error", err)
		os.Exit(1)
	}
	logger.Info("exports written",
		"allScores", files.AllScores,
		"highRisk", files.HighRisk,
		"csv", files.CSV,
		"summary", files.Summary,
		"rings", files.Rings,
		"registryPayload", files.RegistryPayload,
	)

	if *publish {
		written, err := analysis.PublishScores(report)
		if err != nil {
			logger.Error("failed to publish scores", "error", err)
			os.Exit(1)
		}
		logger.Info("scores published", "written", written)
	}

	logger.Info("analysis complete",
		"runId", report.RunID,
		"duration", time.Since(start).String(),
		"scored", len(report.Scores),
		"failed", len(report.Failures),
		"rings", len(report.Rings),
		"highRisk", len(scorer.HighRisk(report.Scores, analysis.HighRiskThreshold())),
	)
}
