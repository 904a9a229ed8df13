package scorer

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/vouchwatch/backend/internal/domain"
	"github.com/vouchwatch/backend/internal/vouchgraph"
)

func buildGraph(t *testing.T, records []domain.Endorsement) *vouchgraph.Graph {
	t.Helper()
	g, err := vouchgraph.NewBuilder(0).Build(records)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	return g
}

func endorse(from, to string) domain.Endorsement {
	return domain.Endorsement{From: from, To: to, Stake: "1"}
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{0, domain.RiskLow},
		{19.99, domain.RiskLow},
		{20, domain.RiskModerate},
		{39.99, domain.RiskModerate},
		{40, domain.RiskElevated},
		{59.99, domain.RiskElevated},
		{60, domain.RiskHigh},
		{79.99, domain.RiskHigh},
		{80, domain.RiskCritical},
		{100, domain.RiskCritical},
	}
	for _, tc := range cases {
		if got := LevelFor(tc.score); got != tc.want {
			t.Errorf("LevelFor(%f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestComposeWeightedTotal(t *testing.T) {
	s := New(Options{})

	score := s.compose("x", domain.Breakdown{Ring: 100, Cluster: 40})
	// 0.30*100 + 0.25*40 lands exactly on the ELEVATED lower edge.
	if score.TotalScore != 40.0 {
		t.Fatalf("TotalScore = %f, want 40.0", score.TotalScore)
	}
	if score.RiskLevel != domain.RiskElevated {
		t.Errorf("RiskLevel = %s, want %s", score.RiskLevel, domain.RiskElevated)
	}
}

func TestComposeBounds(t *testing.T) {
	s := New(Options{Weights: Weights{Ring: 1, Cluster: 1, Burst: 1, Stake: 1, Reciprocity: 1}})

	score := s.compose("x", domain.Breakdown{Ring: 100, Cluster: 100, Burst: 100, Stake: 100, Reciprocity: 100})
	if score.TotalScore != 100 {
		t.Errorf("TotalScore = %f, want clamp at 100", score.TotalScore)
	}

	zero := New(Options{}).compose("x", domain.Breakdown{})
	if zero.TotalScore != 0 || zero.RiskLevel != domain.RiskLow {
		t.Errorf("zero breakdown = %f/%s, want 0/%s", zero.TotalScore, zero.RiskLevel, domain.RiskLow)
	}
}

func TestComposeFlags(t *testing.T) {
	s := New(Options{})

	cases := []struct {
		name      string
		breakdown domain.Breakdown
		want      []string
	}{
		{"ring", domain.Breakdown{Ring: 40}, []string{domain.FlagRingMember}},
		{"ring at threshold", domain.Breakdown{Ring: 30}, nil},
		{"cluster", domain.Breakdown{Cluster: 60}, []string{domain.FlagIsolatedCluster}},
		{"burst", domain.Breakdown{Burst: 60}, []string{domain.FlagVouchBurst}},
		{"stakes", domain.Breakdown{Stake: 50}, []string{domain.FlagLowStakes}},
		{"farming", domain.Breakdown{Reciprocity: 60}, []string{domain.FlagFarmingPattern}},
		{
			"all",
			domain.Breakdown{Ring: 50, Cluster: 60, Burst: 50, Stake: 50, Reciprocity: 60},
			[]string{
				domain.FlagRingMember,
				domain.FlagIsolatedCluster,
				domain.FlagVouchBurst,
				domain.FlagLowStakes,
				domain.FlagFarmingPattern,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := s.compose("x", tc.breakdown)
			if !reflect.DeepEqual(score.Flags, tc.want) {
				t.Errorf("Flags = %v, want %v", score.Flags, tc.want)
			}
		})
	}
}

func TestScoreRingParticipant(t *testing.T) {
	records := []domain.Endorsement{
		endorse("1", "2"), endorse("2", "3"), endorse("3", "1"),
	}
	g := buildGraph(t, records)

	s := New(Options{MinVouchesReceived: 1})
	run, err := s.Prepare(g, records)
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}

	score := run.Score("1")
	if score.Breakdown.Ring != 40 {
		t.Errorf("Ring = %f, want 40", score.Breakdown.Ring)
	}
	// The triangle is also a fully insular 3-member community.
	if score.Breakdown.Cluster != 100 {
		t.Errorf("Cluster = %f, want 100", score.Breakdown.Cluster)
	}
	want := []string{domain.FlagRingMember, domain.FlagIsolatedCluster}
	if !reflect.DeepEqual(score.Flags, want) {
		t.Errorf("Flags = %v, want %v", score.Flags, want)
	}
}

func TestScoreAllEligibilityFloor(t *testing.T) {
	// "thin" receives 4 raw records, "thick" receives 5 via a parallel record.
	records := []domain.Endorsement{
		endorse("a", "thin"), endorse("b", "thin"), endorse("c", "thin"), endorse("d", "thin"),
		endorse("a", "thick"), endorse("b", "thick"), endorse("c", "thick"), endorse("d", "thick"), endorse("d", "thick"),
	}
	g := buildGraph(t, records)

	s := New(Options{})
	run, err := s.Prepare(g, records)
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	scores, failures, err := run.ScoreAll(context.Background())
	if err != nil {
		t.Fatalf("ScoreAll returned error: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(scores) != 1 || scores[0].ParticipantID != "thick" {
		t.Errorf("scored = %v, want only thick", scores)
	}
}

func TestScoreAllDeterministicOrder(t *testing.T) {
	// Two symmetric triangles produce identical totals; ordering must fall
	// back to participant ID.
	records := []domain.Endorsement{
		endorse("b1", "a1"), endorse("c1", "a1"), endorse("d1", "a1"), endorse("e1", "a1"), endorse("f1", "a1"),
		endorse("b2", "a2"), endorse("c2", "a2"), endorse("d2", "a2"), endorse("e2", "a2"), endorse("f2", "a2"),
	}
	g := buildGraph(t, records)

	s := New(Options{})
	run, err := s.Prepare(g, records)
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	scores, _, err := run.ScoreAll(context.Background())
	if err != nil {
		t.Fatalf("ScoreAll returned error: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0].TotalScore != scores[1].TotalScore {
		t.Fatalf("fixtures not symmetric: %v", scores)
	}
	if scores[0].ParticipantID != "a1" || scores[1].ParticipantID != "a2" {
		t.Errorf("tie not broken by ID: %s, %s", scores[0].ParticipantID, scores[1].ParticipantID)
	}
}

func TestScoreAllIdempotent(t *testing.T) {
	var records []domain.Endorsement
	records = append(records, endorse("1", "2"), endorse("2", "3"), endorse("3", "1"))
	for i := 0; i < 10; i++ {
		records = append(records, endorse(fmt.Sprintf("s%02d", i), "1"))
		records = append(records, endorse(fmt.Sprintf("s%02d", i), "2"))
	}
	g := buildGraph(t, records)

	s := New(Options{})

	runOnce := func() []domain.RiskScore {
		run, err := s.Prepare(g, records)
		if err != nil {
			t.Fatalf("Prepare returned error: %v", err)
		}
		scores, _, err := run.ScoreAll(context.Background())
		if err != nil {
			t.Fatalf("ScoreAll returned error: %v", err)
		}
		return scores
	}

	first := runOnce()
	second := runOnce()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated runs differ:\n%v\n%v", first, second)
	}
}

func TestHighRisk(t *testing.T) {
	scores := []domain.RiskScore{
		{ParticipantID: "a", TotalScore: 45},
		{ParticipantID: "b", TotalScore: 30},
		{ParticipantID: "c", TotalScore: 29.99},
	}
	got := HighRisk(scores, 30)
	if len(got) != 2 {
		t.Fatalf("HighRisk returned %d scores, want 2 (threshold inclusive)", len(got))
	}
	if got[0].ParticipantID != "a" || got[1].ParticipantID != "b" {
		t.Errorf("HighRisk = %v", got)
	}
}

func TestSummarize(t *testing.T) {
	g := buildGraph(t, []domain.Endorsement{endorse("a", "b")})
	scores := []domain.RiskScore{
		{ParticipantID: "a", TotalScore: 85, RiskLevel: domain.RiskCritical},
		{ParticipantID: "b", TotalScore: 45, RiskLevel: domain.RiskElevated},
		{ParticipantID: "c", TotalScore: 5, RiskLevel: domain.RiskLow},
		{ParticipantID: "d", TotalScore: 5, RiskLevel: domain.RiskLow},
	}

	summary := Summarize(g, scores)
	if summary.TotalParticipants != 4 {
		t.Errorf("TotalParticipants = %d, want 4", summary.TotalParticipants)
	}
	if summary.Distribution[domain.RiskLow] != 2 {
		t.Errorf("Distribution[LOW] = %d, want 2", summary.Distribution[domain.RiskLow])
	}
	if summary.Distribution[domain.RiskModerate] != 0 {
		t.Errorf("Distribution[MODERATE] = %d, want initialized 0", summary.Distribution[domain.RiskModerate])
	}
	if summary.Percentages[domain.RiskLow] != 50 {
		t.Errorf("Percentages[LOW] = %f, want 50", summary.Percentages[domain.RiskLow])
	}
	if summary.AvgScore != 35 {
		t.Errorf("AvgScore = %f, want 35", summary.AvgScore)
	}
	if len(summary.TopRisky) != 4 {
		t.Errorf("TopRisky length = %d, want 4", len(summary.TopRisky))
	}
}

func TestSummarizeEmpty(t *testing.T) {
	g := buildGraph(t, nil)
	summary := Summarize(g, nil)
	if summary.TotalParticipants != 0 || summary.AvgScore != 0 {
		t.Errorf("unexpected summary for empty run: %+v", summary)
	}
	if len(summary.Distribution) != 5 {
		t.Errorf("Distribution not fully initialized: %v", summary.Distribution)
	}
}
