package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vouchwatch/backend/internal/config"
	"github.com/vouchwatch/backend/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSource struct {
	records []domain.Endorsement
	err     error
}

func (s stubSource) Fetch(context.Context) ([]domain.Endorsement, error) {
	return s.records, s.err
}

type stubRegistry struct {
	token  string
	ids    []string
	scores []uint8
	err    error
}

func (s *stubRegistry) BatchUpdate(token string, ids []string, scores []uint8) error {
	if s.err != nil {
		return s.err
	}
	s.token = token
	s.ids = ids
	s.scores = scores
	return nil
}

// farmFixture produces records where "target" receives many tiny-stake
// endorsements and gives none.
func farmFixture() []domain.Endorsement {
	var records []domain.Endorsement
	for i := 0; i < 25; i++ {
		records = append(records, domain.Endorsement{
			From:  fmt.Sprintf("src%03d", i),
			To:    "target",
			Stake: "1000000000000",
		})
	}
	// Healthy background so the network stake baseline is not dust.
	for _, p := range [][2]string{{"p", "q"}, {"q", "r"}, {"r", "s"}, {"s", "p"}} {
		records = append(records, domain.Endorsement{From: p[0], To: p[1], Stake: "1000000000000000000"})
	}
	return records
}

func testConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		UnitDivisorExp:     18,
		MaxRingLength:      5,
		MinVouchesReceived: 5,
		HighRiskThreshold:  30,
		Workers:            2,
	}
}

func TestAnalyzeProducesReport(t *testing.T) {
	svc := NewAnalysisService(testLogger(), testConfig(), stubSource{records: farmFixture()})

	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })
	svc.WithRunID(func() string { return "run-001" })

	report, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if report.RunID != "run-001" {
		t.Errorf("RunID = %s, want run-001", report.RunID)
	}
	if !report.StartedAt.Equal(fixed) || !report.CompletedAt.Equal(fixed) {
		t.Errorf("timestamps not from the injected clock: %v / %v", report.StartedAt, report.CompletedAt)
	}
	if report.RecordStats.TotalEndorsements != 29 {
		t.Errorf("TotalEndorsements = %d, want 29", report.RecordStats.TotalEndorsements)
	}
	if report.GraphStats.Nodes != 30 {
		t.Errorf("Nodes = %d, want 30", report.GraphStats.Nodes)
	}

	// Only the farming target clears the received floor.
	if len(report.Scores) != 1 || report.Scores[0].ParticipantID != "target" {
		t.Fatalf("Scores = %v, want only target", report.Scores)
	}
	target := report.Scores[0]
	if target.Breakdown.Reciprocity != 80 {
		t.Errorf("Reciprocity = %f, want 80", target.Breakdown.Reciprocity)
	}
	if target.Breakdown.Stake != 100 {
		t.Errorf("Stake = %f, want 100", target.Breakdown.Stake)
	}
	if len(report.Failures) != 0 {
		t.Errorf("Failures = %v, want none", report.Failures)
	}
	if report.Summary.TotalParticipants != 1 {
		t.Errorf("Summary.TotalParticipants = %d, want 1", report.Summary.TotalParticipants)
	}
}

func TestAnalyzeFetchError(t *testing.T) {
	wantErr := errors.New("store unavailable")
	svc := NewAnalysisService(testLogger(), testConfig(), stubSource{err: wantErr})

	_, err := svc.Analyze(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}

func TestAnalyzeBadStake(t *testing.T) {
	svc := NewAnalysisService(testLogger(), testConfig(), stubSource{records: []domain.Endorsement{
		{From: "a", To: "b", Stake: "not-a-number"},
	}})

	if _, err := svc.Analyze(context.Background()); err == nil {
		t.Fatal("expected graph build error for malformed stake")
	}
}

func TestPublishScores(t *testing.T) {
	svc := NewAnalysisService(testLogger(), testConfig(), stubSource{records: farmFixture()})
	reg := &stubRegistry{}
	svc = svc.WithRegistry(reg, "owner-token")

	report, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	written, err := svc.PublishScores(report)
	if err != nil {
		t.Fatalf("PublishScores returned error: %v", err)
	}
	if written != 1 {
		t.Errorf("written = %d, want 1", written)
	}
	if reg.token != "owner-token" {
		t.Errorf("token = %s, want owner-token", reg.token)
	}
	if len(reg.ids) != 1 || reg.ids[0] != "target" {
		t.Errorf("ids = %v, want [target]", reg.ids)
	}
	if len(reg.scores) != 1 || reg.scores[0] < 20 {
		t.Errorf("scores = %v, want target's truncated composite", reg.scores)
	}
}

func TestPublishScoresNoRegistry(t *testing.T) {
	svc := NewAnalysisService(testLogger(), testConfig(), stubSource{})
	if _, err := svc.PublishScores(domain.AnalysisReport{}); err == nil {
		t.Fatal("expected error when no registry is configured")
	}
}

func TestPublishScoresNothingHighRisk(t *testing.T) {
	svc := NewAnalysisService(testLogger(), testConfig(), stubSource{})
	reg := &stubRegistry{}
	svc = svc.WithRegistry(reg, "owner-token")

	written, err := svc.PublishScores(domain.AnalysisReport{
		Scores: []domain.RiskScore{{ParticipantID: "calm", TotalScore: 5}},
	})
	if err != nil {
		t.Fatalf("PublishScores returned error: %v", err)
	}
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}
	if reg.ids != nil {
		t.Errorf("registry written despite empty payload: %v", reg.ids)
	}
}
