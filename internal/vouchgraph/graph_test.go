package vouchgraph

import (
	"errors"
	"math"
	"testing"

	"github.com/vouchwatch/backend/internal/domain"
)

func rec(from, to, stake string) domain.Endorsement {
	return domain.Endorsement{From: from, To: to, Stake: stake}
}

func TestBuildMergesParallelRecords(t *testing.T) {
	builder := NewBuilder(18)
	g, err := builder.Build([]domain.Endorsement{
		rec("alice", "bob", "1000000000000000000"),
		rec("alice", "bob", "500000000000000000"),
		rec("bob", "alice", "2000000000000000000"),
	})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if g.NodeCount() != 2 {
		t.Errorf("NodeCount = %d, want 2", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount = %d, want 2", g.EdgeCount())
	}

	edge := g.EdgeBetween("alice", "bob")
	if edge == nil {
		t.Fatal("expected edge alice->bob")
	}
	if edge.Count != 2 {
		t.Errorf("Count = %d, want 2", edge.Count)
	}
	if math.Abs(edge.Weight-1.5) > 1e-9 {
		t.Errorf("Weight = %f, want 1.5", edge.Weight)
	}
}

func TestBuildRejectsBadStakes(t *testing.T) {
	cases := []struct {
		name  string
		stake string
	}{
		{"non-numeric", "lots"},
		{"negative", "-5"},
	}
	builder := NewBuilder(18)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := builder.Build([]domain.Endorsement{rec("a", "b", tc.stake)})
			var stakeErr *StakeError
			if !errors.As(err, &stakeErr) {
				t.Fatalf("expected StakeError, got %v", err)
			}
			if stakeErr.Record.Stake != tc.stake {
				t.Errorf("Record.Stake = %q, want %q", stakeErr.Record.Stake, tc.stake)
			}
		})
	}
}

func TestBuildZeroStakeAllowed(t *testing.T) {
	g, err := NewBuilder(18).Build([]domain.Endorsement{rec("a", "b", "0")})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if edge := g.EdgeBetween("a", "b"); edge == nil || edge.Weight != 0 {
		t.Errorf("expected zero-weight edge, got %+v", edge)
	}
}

func TestAttachInfoFirstWriteWins(t *testing.T) {
	first := &domain.ParticipantInfo{DisplayName: "Alice", ReputationScore: 50}
	second := &domain.ParticipantInfo{DisplayName: "Imposter", ReputationScore: 99}

	g, err := NewBuilder(18).Build([]domain.Endorsement{
		{From: "alice", To: "bob", Stake: "1", FromInfo: first},
		{From: "alice", To: "carol", Stake: "1", FromInfo: second},
	})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	node := g.Node("alice")
	if node.DisplayName != "Alice" || node.ReputationScore != 50 {
		t.Errorf("metadata overwritten: %+v", node)
	}
}

func TestGraphAccessorsDeterministic(t *testing.T) {
	g, err := NewBuilder(0).Build([]domain.Endorsement{
		rec("c", "a", "1"),
		rec("b", "a", "1"),
		rec("a", "b", "1"),
	})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	nodes := g.Nodes()
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if nodes[i] != id {
			t.Fatalf("Nodes() = %v, want %v", nodes, want)
		}
	}

	preds := g.Predecessors("a")
	if len(preds) != 2 || preds[0] != "b" || preds[1] != "c" {
		t.Errorf("Predecessors(a) = %v, want [b c]", preds)
	}

	if g.InDegree("a") != 2 || g.OutDegree("a") != 1 {
		t.Errorf("degrees of a = in %d out %d, want 2/1", g.InDegree("a"), g.OutDegree("a"))
	}

	edges := g.Edges()
	if len(edges) != 3 {
		t.Fatalf("Edges() length = %d, want 3", len(edges))
	}
	if edges[0].From != "a" || edges[0].To != "b" {
		t.Errorf("first edge = %s->%s, want a->b", edges[0].From, edges[0].To)
	}
}

func TestGraphStats(t *testing.T) {
	g, err := NewBuilder(0).Build([]domain.Endorsement{
		rec("a", "b", "1"),
		rec("b", "c", "1"),
	})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	stats := g.Stats()
	if stats.Nodes != 3 || stats.Edges != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	wantDensity := 2.0 / 6.0
	if math.Abs(stats.Density-wantDensity) > 1e-9 {
		t.Errorf("Density = %f, want %f", stats.Density, wantDensity)
	}
}
