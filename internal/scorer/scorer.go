package scorer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vouchwatch/backend/internal/detector"
	"github.com/vouchwatch/backend/internal/domain"
	"github.com/vouchwatch/backend/internal/vouchgraph"
)

// Weights combines the five detector outputs. The composite is clamped to
// 100 even if custom weights sum past 1.0.
type Weights struct {
	Ring        float64
	Cluster     float64
	Burst       float64
	Stake       float64
	Reciprocity float64
}

// DefaultWeights are the fixed, hand-chosen production weights.
var DefaultWeights = Weights{
	Ring:        0.30,
	Cluster:     0.25,
	Burst:       0.20,
	Stake:       0.15,
	Reciprocity: 0.10,
}

// Raw-score thresholds above which a detector contributes its qualitative flag,
// independent of the weighted total.
const (
	flagRingThreshold        = 30.0
	flagClusterThreshold     = 50.0
	flagBurstThreshold       = 40.0
	flagStakeThreshold       = 40.0
	flagReciprocityThreshold = 50.0
)

// Options tunes a Scorer.
type Options struct {
	Weights            Weights
	MaxRingLength      int
	CycleBudget        int
	ReportInsularity   float64
	ScoringInsularity  float64
	BurstWindow        time.Duration
	TinyStakeThreshold float64
	MinVouchesReceived int
	Workers            int
}

// Scorer runs the five detectors and combines their outputs.
type Scorer struct {
	weights     Weights
	rings       *detector.RingDetector
	clusters    *detector.ClusterDetector
	bursts      *detector.BurstDetector
	stakes      *detector.StakeDetector
	reciprocity detector.ReciprocityDetector
	minReceived int
	workers     int
}

// New constructs a Scorer from options; zero-valued fields fall back to the
// production defaults.
func New(opts Options) *Scorer {
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights
	}
	if opts.MaxRingLength == 0 {
		opts.MaxRingLength = 5
	}
	if opts.ReportInsularity == 0 {
		opts.ReportInsularity = 0.8
	}
	if opts.ScoringInsularity == 0 {
		opts.ScoringInsularity = 0.7
	}
	if opts.BurstWindow == 0 {
		opts.BurstWindow = 7 * 24 * time.Hour
	}
	if opts.TinyStakeThreshold == 0 {
		opts.TinyStakeThreshold = 0.01
	}
	if opts.MinVouchesReceived == 0 {
		opts.MinVouchesReceived = 5
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	return &Scorer{
		weights:     opts.Weights,
		rings:       detector.NewRingDetector(opts.MaxRingLength, opts.CycleBudget),
		clusters:    detector.NewClusterDetector(opts.ReportInsularity, opts.ScoringInsularity),
		bursts:      detector.NewBurstDetector(opts.BurstWindow),
		stakes:      detector.NewStakeDetector(opts.TinyStakeThreshold),
		minReceived: opts.MinVouchesReceived,
		workers:     opts.Workers,
	}
}

// Run holds the per-snapshot detector indices. Ring enumeration, community
// detection and the network stake baseline are computed exactly once here and
// looked up from every participant scoring afterwards. A Run is read-only once
// prepared and safe for concurrent scoring.
type Run struct {
	scorer   *Scorer
	graph    *vouchgraph.Graph
	records  []domain.Endorsement
	rings    *detector.RingIndex
	clusters *detector.ClusterIndex
	stakes   *detector.StakeIndex
}

// Prepare computes the whole-graph indices for a snapshot.
func (s *Scorer) Prepare(g *vouchgraph.Graph, records []domain.Endorsement) (*Run, error) {
	ringIdx, err := s.rings.Detect(g)
	if err != nil {
		return nil, err
	}
	return &Run{
		scorer:   s,
		graph:    g,
		records:  records,
		rings:    ringIdx,
		clusters: s.clusters.Detect(g),
		stakes:   s.stakes.Detect(g),
	}, nil
}

// RingIndex exposes the run's ring lookup for reporting.
func (r *Run) RingIndex() *detector.RingIndex { return r.rings }

// IsolatedClusters lists the run's reportably insular communities.
func (r *Run) IsolatedClusters() []domain.IsolatedCluster {
	return r.scorer.clusters.IsolatedClusters(r.graph)
}

// Score computes the composite risk score for one participant.
func (r *Run) Score(id string) domain.RiskScore {
	breakdown := domain.Breakdown{
		Ring:        r.rings.Score(id),
		Cluster:     r.clusters.Score(id),
		Burst:       r.scorer.bursts.Score(r.records, id),
		Stake:       r.stakes.Score(id),
		Reciprocity: r.scorer.reciprocity.Score(r.graph, id),
	}
	return r.scorer.compose(id, breakdown)
}

func (s *Scorer) compose(id string, b domain.Breakdown) domain.RiskScore {
	w := s.weights
	total := w.Ring*b.Ring + w.Cluster*b.Cluster + w.Burst*b.Burst +
		w.Stake*b.Stake + w.Reciprocity*b.Reciprocity
	if total > 100 {
		total = 100
	}
	total = round2(total)

	var flags []string
	if b.Ring > flagRingThreshold {
		flags = append(flags, domain.FlagRingMember)
	}
	if b.Cluster > flagClusterThreshold {
		flags = append(flags, domain.FlagIsolatedCluster)
	}
	if b.Burst > flagBurstThreshold {
		flags = append(flags, domain.FlagVouchBurst)
	}
	if b.Stake > flagStakeThreshold {
		flags = append(flags, domain.FlagLowStakes)
	}
	if b.Reciprocity > flagReciprocityThreshold {
		flags = append(flags, domain.FlagFarmingPattern)
	}

	b.Cluster = round2(b.Cluster)

	return domain.RiskScore{
		ParticipantID: id,
		TotalScore:    total,
		RiskLevel:     LevelFor(total),
		Breakdown:     b,
		Flags:         flags,
	}
}

// LevelFor maps a composite score to its risk level. Band lower edges are
// inclusive: exactly 40 is ELEVATED.
func LevelFor(score float64) domain.RiskLevel {
	switch {
	case score < 20:
		return domain.RiskLow
	case score < 40:
		return domain.RiskModerate
	case score < 60:
		return domain.RiskElevated
	case score < 80:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// ScoreAll scores every participant that has received at least the configured
// minimum number of endorsements, in parallel over the read-only Run. Results
// are ordered by score descending, ties broken by participant ID ascending so
// batch output is deterministic regardless of input order. Individual scoring
// failures are collected, never fatal to the batch.
func (r *Run) ScoreAll(ctx context.Context) ([]domain.RiskScore, []domain.ScoreFailure, error) {
	var eligible []string
	for _, id := range r.graph.Nodes() {
		if r.receivedCount(id) >= r.scorer.minReceived {
			eligible = append(eligible, id)
		}
	}

	results := make([]*domain.RiskScore, len(eligible))
	var mu sync.Mutex
	var failures []domain.ScoreFailure

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(r.scorer.workers)
	for i, id := range eligible {
		i, id := i, id
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}
			score, err := r.scoreParticipant(id)
			if err != nil {
				mu.Lock()
				failures = append(failures, domain.ScoreFailure{ParticipantID: id, Reason: err.Error()})
				mu.Unlock()
				return nil
			}
			results[i] = &score
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, nil, err
	}

	scores := make([]domain.RiskScore, 0, len(results))
	for _, res := range results {
		if res != nil {
			scores = append(scores, *res)
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		return scores[i].ParticipantID < scores[j].ParticipantID
	})

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].ParticipantID < failures[j].ParticipantID
	})

	return scores, failures, nil
}

func (r *Run) scoreParticipant(id string) (score domain.RiskScore, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError{value: rec}
		}
	}()
	return r.Score(id), nil
}

type panicError struct{ value any }

func (e panicError) Error() string {
	return fmt.Sprintf("scoring panicked: %v", e.value)
}

// receivedCount is the number of raw endorsement records received, i.e. the
// summed count over incoming edges, not the distinct-endorser in-degree.
func (r *Run) receivedCount(id string) int {
	total := 0
	for _, e := range r.graph.IncomingEdges(id) {
		total += e.Count
	}
	return total
}

// HighRisk filters scores at or above the threshold.
func HighRisk(scores []domain.RiskScore, threshold float64) []domain.RiskScore {
	var out []domain.RiskScore
	for _, s := range scores {
		if s.TotalScore >= threshold {
			out = append(out, s)
		}
	}
	return out
}

// Summarize builds run-level distribution statistics over scored participants.
func Summarize(g *vouchgraph.Graph, scores []domain.RiskScore) domain.NetworkSummary {
	summary := domain.NetworkSummary{
		TotalParticipants: len(scores),
		TotalEdges:        g.EdgeCount(),
		Distribution: domain.LevelDistribution{
			domain.RiskLow:      0,
			domain.RiskModerate: 0,
			domain.RiskElevated: 0,
			domain.RiskHigh:     0,
			domain.RiskCritical: 0,
		},
		Percentages: make(map[domain.RiskLevel]float64),
	}

	sum := 0.0
	for _, s := range scores {
		summary.Distribution[s.RiskLevel]++
		sum += s.TotalScore
	}

	for level, count := range summary.Distribution {
		if len(scores) > 0 {
			summary.Percentages[level] = round2(float64(count) / float64(len(scores)) * 100)
		} else {
			summary.Percentages[level] = 0
		}
	}

	top := 10
	if len(scores) < top {
		top = len(scores)
	}
	summary.TopRisky = append([]domain.RiskScore(nil), scores[:top]...)

	if len(scores) > 0 {
		summary.AvgScore = round2(sum / float64(len(scores)))
	}
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
