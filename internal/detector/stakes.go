package detector

import (
	"github.com/vouchwatch/backend/internal/vouchgraph"
)

// Minimum incoming edges before stake patterns are judged.
const stakeMinIncoming = 3

// Fallback network average when the graph has no edges at all.
const emptyNetworkAvg = 0.1

// StakeDetector examines the staked value behind a participant's received
// endorsements against the network baseline. Trivial stakes suggest the
// endorsements cost their authors nothing.
type StakeDetector struct {
	TinyThreshold float64 // absolute "tiny stake" cutoff, in decimal units
}

// NewStakeDetector builds a detector with the given tiny-stake cutoff.
func NewStakeDetector(tinyThreshold float64) *StakeDetector {
	return &StakeDetector{TinyThreshold: tinyThreshold}
}

// StakeIndex carries the per-run network baseline so batch scoring computes it
// once, not per participant.
type StakeIndex struct {
	detector   *StakeDetector
	g          *vouchgraph.Graph
	networkAvg float64
}

// Detect computes the network-wide average edge weight for the run.
func (d *StakeDetector) Detect(g *vouchgraph.Graph) *StakeIndex {
	edges := g.Edges()
	avg := emptyNetworkAvg
	if len(edges) > 0 {
		sum := 0.0
		for _, e := range edges {
			sum += e.Weight
		}
		avg = sum / float64(len(edges))
	}
	return &StakeIndex{detector: d, g: g, networkAvg: avg}
}

// NetworkAverage exposes the baseline for reporting.
func (idx *StakeIndex) NetworkAverage() float64 { return idx.networkAvg }

// Score accumulates two independent penalties, each up to 50 points: average
// incoming stake far below the network baseline, and a high fraction of
// incoming edges below the absolute tiny-stake cutoff.
func (idx *StakeIndex) Score(id string) float64 {
	incoming := idx.g.IncomingEdges(id)
	if len(incoming) < stakeMinIncoming {
		return 0
	}

	sum := 0.0
	tiny := 0
	for _, e := range incoming {
		sum += e.Weight
		if e.Weight < idx.detector.TinyThreshold {
			tiny++
		}
	}
	avg := sum / float64(len(incoming))

	score := 0.0
	if idx.networkAvg > 0 {
		switch {
		case avg < idx.networkAvg*0.1:
			score += 50
		case avg < idx.networkAvg*0.3:
			score += 30
		case avg < idx.networkAvg*0.5:
			score += 15
		}
	}

	tinyRatio := float64(tiny) / float64(len(incoming))
	switch {
	case tinyRatio > 0.8:
		score += 50
	case tinyRatio > 0.5:
		score += 30
	case tinyRatio > 0.3:
		score += 15
	}

	if score > 100 {
		return 100
	}
	return score
}
