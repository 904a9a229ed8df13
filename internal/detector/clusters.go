package detector

import (
	"github.com/vouchwatch/backend/internal/domain"
	"github.com/vouchwatch/backend/internal/vouchgraph"
)

// Communities smaller than this are never considered insular; a pair endorsing
// each other is not a clique.
const minCommunitySize = 3

// ClusterDetector partitions the graph into communities and scores membership
// in suspiciously insular ones. The report threshold governs which clusters
// are listed; the lower scoring threshold governs when members accrue risk.
type ClusterDetector struct {
	Partitioner      vouchgraph.CommunityPartitioner
	ReportThreshold  float64
	ScoringThreshold float64
}

// NewClusterDetector builds a detector with the Louvain partitioner.
func NewClusterDetector(reportThreshold, scoringThreshold float64) *ClusterDetector {
	return &ClusterDetector{
		Partitioner:      vouchgraph.LouvainPartitioner{Resolution: 1.0},
		ReportThreshold:  reportThreshold,
		ScoringThreshold: scoringThreshold,
	}
}

type clusterEntry struct {
	insularity float64
	size       int
}

// ClusterIndex maps participants of insular communities to their community's
// insularity and size. Participants of non-insular communities are absent.
type ClusterIndex struct {
	byNode map[string]clusterEntry
}

// Detect partitions the graph once and indexes members of every community of
// size >= 3 whose insularity reaches the scoring threshold.
func (d *ClusterDetector) Detect(g *vouchgraph.Graph) *ClusterIndex {
	idx := &ClusterIndex{byNode: make(map[string]clusterEntry)}
	for _, community := range d.Partitioner.Partition(g) {
		if len(community) < minCommunitySize {
			continue
		}
		insularity := Insularity(g, community)
		if insularity < d.ScoringThreshold {
			continue
		}
		entry := clusterEntry{insularity: insularity, size: len(community)}
		for _, id := range community {
			idx.byNode[id] = entry
		}
	}
	return idx
}

// IsolatedClusters lists communities of size >= 3 at or above the report
// threshold, for the run report.
func (d *ClusterDetector) IsolatedClusters(g *vouchgraph.Graph) []domain.IsolatedCluster {
	var isolated []domain.IsolatedCluster
	for _, community := range d.Partitioner.Partition(g) {
		if len(community) < minCommunitySize {
			continue
		}
		insularity := Insularity(g, community)
		if insularity < d.ReportThreshold {
			continue
		}
		isolated = append(isolated, domain.IsolatedCluster{
			Members:    append([]string(nil), community...),
			Size:       len(community),
			Insularity: insularity,
		})
	}
	return isolated
}

// Score rates membership in an insular community. Insularity carries the base
// score; a size factor halves toward 0.5 as communities grow past 10 members,
// since large high-insularity communities are more plausibly organic.
func (idx *ClusterIndex) Score(id string) float64 {
	entry, ok := idx.byNode[id]
	if !ok {
		return 0
	}
	base := entry.insularity * 100
	sizeFactor := 10.0 / float64(entry.size)
	if sizeFactor > 1 {
		sizeFactor = 1
	}
	score := base * (0.5 + 0.5*sizeFactor)
	if score > 100 {
		return 100
	}
	return score
}

// Insularity is the fraction of a community's adjacency that stays internal:
// internal / (internal + external), counting both directions of every node's
// edges but each internal edge only once.
func Insularity(g *vouchgraph.Graph, community domain.Community) float64 {
	members := make(map[string]struct{}, len(community))
	for _, id := range community {
		members[id] = struct{}{}
	}

	internal, external := 0, 0
	for _, id := range community {
		for _, succ := range g.Successors(id) {
			if _, ok := members[succ]; ok {
				internal++
			} else {
				external++
			}
		}
		for _, pred := range g.Predecessors(id) {
			if _, ok := members[pred]; ok {
				internal++
			} else {
				external++
			}
		}
	}

	// Each internal edge was seen from both endpoints.
	internal /= 2

	total := internal + external
	if total == 0 {
		return 0
	}
	return float64(internal) / float64(total)
}
