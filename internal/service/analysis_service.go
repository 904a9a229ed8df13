package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vouchwatch/backend/internal/config"
	"github.com/vouchwatch/backend/internal/domain"
	"github.com/vouchwatch/backend/internal/export"
	"github.com/vouchwatch/backend/internal/loader"
	"github.com/vouchwatch/backend/internal/scorer"
	"github.com/vouchwatch/backend/internal/store"
	"github.com/vouchwatch/backend/internal/vouchgraph"
)

// RecordSource supplies the endorsement snapshot an analysis run consumes.
type RecordSource interface {
	Fetch(ctx context.Context) ([]domain.Endorsement, error)
}

// FileSource reads records from a JSON file.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(context.Context) ([]domain.Endorsement, error) {
	return loader.LoadFile(s.Path)
}

// StoreSource reads records from the endorsement store.
type StoreSource struct {
	Repo *store.Repository
}

func (s StoreSource) Fetch(ctx context.Context) ([]domain.Endorsement, error) {
	return s.Repo.FetchAll(ctx)
}

// RegistryWriter is the slice of the score registry the service publishes to.
type RegistryWriter interface {
	BatchUpdate(token string, ids []string, scores []uint8) error
}

// AnalysisService runs the full pipeline: fetch records, build the graph, run
// the detectors once, score every eligible participant, and assemble the run
// report. Each run is stateless; nothing carries over between snapshots.
type AnalysisService struct {
	logger     *slog.Logger
	source     RecordSource
	builder    *vouchgraph.Builder
	scorer     *scorer.Scorer
	highRisk   float64
	registry   RegistryWriter
	ownerToken string
	nowFn      func() time.Time
	runIDFn    func() string
}

// NewAnalysisService wires the pipeline from configuration.
func NewAnalysisService(logger *slog.Logger, cfg config.AnalysisConfig, source RecordSource) *AnalysisService {
	return &AnalysisService{
		logger:  logger,
		source:  source,
		builder: vouchgraph.NewBuilder(cfg.UnitDivisorExp),
		scorer: scorer.New(scorer.Options{
			MaxRingLength:      cfg.MaxRingLength,
			CycleBudget:        cfg.CycleBudget,
			ReportInsularity:   cfg.ReportInsularity,
			ScoringInsularity:  cfg.ScoringInsularity,
			BurstWindow:        cfg.BurstWindow,
			TinyStakeThreshold: cfg.TinyStakeThreshold,
			MinVouchesReceived: cfg.MinVouchesReceived,
			Workers:            cfg.Workers,
		}),
		highRisk: cfg.HighRiskThreshold,
		nowFn:    time.Now,
		runIDFn: func() string {
			return uuid.NewString()
		},
	}
}

// WithRegistry attaches a score registry target for PublishScores.
func (s *AnalysisService) WithRegistry(reg RegistryWriter, ownerToken string) *AnalysisService {
	s.registry = reg
	s.ownerToken = ownerToken
	return s
}

// WithClock overrides the time provider (used primarily in tests).
func (s *AnalysisService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// WithRunID overrides run ID generation (used primarily in tests).
func (s *AnalysisService) WithRunID(fn func() string) {
	if fn != nil {
		s.runIDFn = fn
	}
}

// HighRiskThreshold exposes the configured export cutoff.
func (s *AnalysisService) HighRiskThreshold() float64 { return s.highRisk }

// Analyze executes one full analysis run over the current snapshot.
func (s *AnalysisService) Analyze(ctx context.Context) (domain.AnalysisReport, error) {
	report := domain.AnalysisReport{
		RunID:     s.runIDFn(),
		StartedAt: s.nowFn().UTC(),
	}

	records, err := s.source.Fetch(ctx)
	if err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("fetch records: %w", err)
	}
	report.RecordStats = loader.Stats(records)
	s.logger.Info("records loaded",
		"total", report.RecordStats.TotalEndorsements,
		"participants", report.RecordStats.UniqueParticipants)

	g, err := s.builder.Build(records)
	if err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("build graph: %w", err)
	}
	report.GraphStats = g.Stats()
	s.logger.Info("graph built", "nodes", report.GraphStats.Nodes, "edges", report.GraphStats.Edges)

	run, err := s.scorer.Prepare(g, records)
	if err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("prepare detectors: %w", err)
	}
	report.RingStats = run.RingIndex().Stats(g)
	report.Rings = run.RingIndex().Rings()
	report.IsolatedClusters = run.IsolatedClusters()
	s.logger.Info("patterns detected",
		"rings", report.RingStats.TotalRings,
		"isolatedClusters", len(report.IsolatedClusters))

	scores, failures, err := run.ScoreAll(ctx)
	if err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("score participants: %w", err)
	}
	report.Scores = scores
	report.Failures = failures
	if len(failures) > 0 {
		s.logger.Warn("some participants failed to score", "failed", len(failures))
	}

	report.Summary = scorer.Summarize(g, scores)
	report.CompletedAt = s.nowFn().UTC()
	s.logger.Info("analysis complete",
		"runId", report.RunID,
		"scored", len(scores),
		"avgScore", report.Summary.AvgScore)

	return report, nil
}

// PublishScores batch-writes the report's high-risk scores into the registry.
// Returns the number of participants written.
func (s *AnalysisService) PublishScores(report domain.AnalysisReport) (int, error) {
	if s.registry == nil {
		return 0, fmt.Errorf("no registry configured")
	}
	payload := export.ForRegistry(report.Scores, s.highRisk)
	if len(payload.IDs) == 0 {
		return 0, nil
	}
	if err := s.registry.BatchUpdate(s.ownerToken, payload.IDs, payload.Scores); err != nil {
		return 0, fmt.Errorf("publish scores: %w", err)
	}
	return len(payload.IDs), nil
}
