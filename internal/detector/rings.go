package detector

import (
	"fmt"

	"github.com/vouchwatch/backend/internal/domain"
	"github.com/vouchwatch/backend/internal/vouchgraph"
)

// Per-ring score contribution by ring size. Tight rings weigh more; sizes
// outside 3..5 contribute nothing, which also bounds the combinatorics.
var ringSizeWeights = map[int]float64{
	3: 40,
	4: 30,
	5: 20,
}

// RingDetector enumerates directed endorsement cycles and scores per-participant
// ring involvement. Enumeration runs once per analysis; scoring is a lookup.
type RingDetector struct {
	MaxLength  int
	Enumerator vouchgraph.CycleEnumerator
}

// NewRingDetector builds a detector with the exhaustive bounded enumerator.
func NewRingDetector(maxLength, cycleBudget int) *RingDetector {
	return &RingDetector{
		MaxLength:  maxLength,
		Enumerator: vouchgraph.BoundedEnumerator{Budget: cycleBudget},
	}
}

// RingIndex holds the rings of one run plus a participant lookup.
type RingIndex struct {
	rings  []domain.Ring
	byNode map[string][]int // participant -> ring indices
}

// Detect enumerates every ring of length 3..MaxLength. A budget overrun from
// the enumerator propagates; an empty graph yields an empty index.
func (d *RingDetector) Detect(g *vouchgraph.Graph) (*RingIndex, error) {
	cycles, err := d.Enumerator.Enumerate(g, d.MaxLength)
	if err != nil {
		return nil, fmt.Errorf("enumerate rings: %w", err)
	}

	idx := &RingIndex{byNode: make(map[string][]int)}
	for _, cycle := range cycles {
		if len(cycle) < 3 {
			continue
		}
		i := len(idx.rings)
		idx.rings = append(idx.rings, cycle)
		for _, id := range cycle {
			idx.byNode[id] = append(idx.byNode[id], i)
		}
	}
	return idx, nil
}

// Rings returns all discovered rings.
func (idx *RingIndex) Rings() []domain.Ring { return idx.rings }

// RingsFor returns the rings containing the participant.
func (idx *RingIndex) RingsFor(id string) []domain.Ring {
	indices := idx.byNode[id]
	rings := make([]domain.Ring, 0, len(indices))
	for _, i := range indices {
		rings = append(rings, idx.rings[i])
	}
	return rings
}

// Score sums the size weight of every ring the participant occurs in, once per
// ring regardless of how many edges the participant contributes, capped at 100.
func (idx *RingIndex) Score(id string) float64 {
	score := 0.0
	for _, i := range idx.byNode[id] {
		score += ringSizeWeights[len(idx.rings[i])]
	}
	if score > 100 {
		return 100
	}
	return score
}

// Stats aggregates the discovered rings for reporting.
func (idx *RingIndex) Stats(g *vouchgraph.Graph) domain.RingStats {
	stats := domain.RingStats{
		TotalRings:  len(idx.rings),
		RingsBySize: make(map[int]int),
	}
	for _, ring := range idx.rings {
		stats.RingsBySize[len(ring)]++
	}
	stats.ParticipantsInRings = len(idx.byNode)
	if n := g.NodeCount(); n > 0 {
		stats.PctInRings = float64(stats.ParticipantsInRings) / float64(n) * 100
	}
	return stats
}
