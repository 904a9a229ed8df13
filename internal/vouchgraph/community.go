package vouchgraph

import (
	"sort"

	"github.com/vouchwatch/backend/internal/domain"
)

// CommunityPartitioner splits the undirected projection of the graph into
// disjoint communities. Every node belongs to exactly one community.
type CommunityPartitioner interface {
	Partition(g *Graph) []domain.Community
}

// LouvainPartitioner implements modularity-maximizing community detection
// (the Louvain method): repeated local moving of nodes between communities
// followed by aggregation, until modularity stops improving. Node order is
// fixed by sorted participant IDs so partitions are identical across runs.
type LouvainPartitioner struct {
	// Resolution scales the density term of the modularity gain; 1.0 is the
	// classic objective.
	Resolution float64
}

// Partition returns the disjoint communities of g's undirected projection.
// An empty graph yields no communities.
func (p LouvainPartitioner) Partition(g *Graph) []domain.Community {
	if g == nil || g.NodeCount() == 0 {
		return nil
	}
	resolution := p.Resolution
	if resolution <= 0 {
		resolution = 1.0
	}

	ids := g.Nodes()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	lg := undirectedProjection(g, index)

	// membership[i] tracks which original nodes each current super-node holds.
	membership := make([][]int, lg.n)
	for i := range membership {
		membership[i] = []int{i}
	}

	for {
		comm, moved := localMoving(lg, resolution)
		groups := groupByCommunity(comm, lg.n)
		if !moved || len(groups) == lg.n {
			communities := make([]domain.Community, 0, len(groups))
			for _, group := range groups {
				var members []string
				for _, super := range group {
					for _, orig := range membership[super] {
						members = append(members, ids[orig])
					}
				}
				sort.Strings(members)
				communities = append(communities, domain.Community(members))
			}
			sortCommunities(communities)
			return communities
		}

		lg, membership = aggregate(lg, comm, groups, membership)
	}
}

// louvainGraph is the working undirected weighted graph, indexed 0..n-1.
type louvainGraph struct {
	n     int
	adj   []map[int]float64 // neighbor -> weight
	self  []float64         // self-loop weight (internal weight after aggregation)
	total float64           // sum of all edge weights, each counted once
}

// undirectedProjection merges the directed edges of g into symmetric weights.
// A graph whose stakes are all zero still has structure, so unit weights are
// substituted when the projected total is zero.
func undirectedProjection(g *Graph, index map[string]int) *louvainGraph {
	n := len(index)
	lg := &louvainGraph{
		n:    n,
		adj:  make([]map[int]float64, n),
		self: make([]float64, n),
	}
	for i := range lg.adj {
		lg.adj[i] = make(map[int]float64)
	}

	for _, e := range g.Edges() {
		u, v := index[e.From], index[e.To]
		lg.total += e.Weight
		if u == v {
			lg.self[u] += e.Weight
			continue
		}
		lg.adj[u][v] += e.Weight
		lg.adj[v][u] += e.Weight
	}

	if lg.total == 0 {
		for i := range lg.adj {
			for j := range lg.adj[i] {
				lg.adj[i][j] = 1
			}
		}
		for _, e := range g.Edges() {
			u, v := index[e.From], index[e.To]
			if u == v {
				lg.self[u] = 1
			}
		}
		lg.total = 0
		for i := 0; i < n; i++ {
			lg.total += lg.self[i]
			for j, w := range lg.adj[i] {
				if j > i {
					lg.total += w
				}
			}
		}
	}
	return lg
}

func (lg *louvainGraph) degree(i int) float64 {
	d := 2 * lg.self[i]
	for _, w := range lg.adj[i] {
		d += w
	}
	return d
}

// localMoving runs the first Louvain phase: each node is repeatedly offered to
// its neighbors' communities and takes the move with the best modularity gain.
func localMoving(lg *louvainGraph, resolution float64) ([]int, bool) {
	comm := make([]int, lg.n)
	tot := make([]float64, lg.n)
	deg := make([]float64, lg.n)
	for i := 0; i < lg.n; i++ {
		comm[i] = i
		deg[i] = lg.degree(i)
		tot[i] = deg[i]
	}

	m2 := 2 * lg.total
	if m2 == 0 {
		return comm, false
	}

	movedAny := false
	for {
		movedPass := false
		for i := 0; i < lg.n; i++ {
			current := comm[i]

			// Weights from i to each neighboring community.
			links := map[int]float64{current: 0}
			for j, w := range lg.adj[i] {
				links[comm[j]] += w
			}

			tot[current] -= deg[i]

			best := current
			bestGain := links[current] - resolution*tot[current]*deg[i]/m2
			targets := make([]int, 0, len(links))
			for c := range links {
				targets = append(targets, c)
			}
			sort.Ints(targets)
			for _, c := range targets {
				if c == current {
					continue
				}
				gain := links[c] - resolution*tot[c]*deg[i]/m2
				if gain > bestGain {
					bestGain = gain
					best = c
				}
			}

			tot[best] += deg[i]
			if best != current {
				comm[i] = best
				movedPass = true
				movedAny = true
			}
		}
		if !movedPass {
			break
		}
	}
	return comm, movedAny
}

func groupByCommunity(comm []int, n int) [][]int {
	byComm := make(map[int][]int)
	for i := 0; i < n; i++ {
		byComm[comm[i]] = append(byComm[comm[i]], i)
	}
	labels := make([]int, 0, len(byComm))
	for c := range byComm {
		labels = append(labels, c)
	}
	sort.Ints(labels)
	groups := make([][]int, 0, len(labels))
	for _, c := range labels {
		groups = append(groups, byComm[c])
	}
	return groups
}

// aggregate runs the second Louvain phase: communities become super-nodes and
// edge weights between them are summed, internal weight becoming a self-loop.
func aggregate(lg *louvainGraph, comm []int, groups [][]int, membership [][]int) (*louvainGraph, [][]int) {
	renumber := make(map[int]int, len(groups))
	for newID, group := range groups {
		renumber[comm[group[0]]] = newID
	}

	next := &louvainGraph{
		n:     len(groups),
		adj:   make([]map[int]float64, len(groups)),
		self:  make([]float64, len(groups)),
		total: lg.total,
	}
	for i := range next.adj {
		next.adj[i] = make(map[int]float64)
	}

	for i := 0; i < lg.n; i++ {
		ci := renumber[comm[i]]
		next.self[ci] += lg.self[i]
		for j, w := range lg.adj[i] {
			cj := renumber[comm[j]]
			if ci == cj {
				if i < j {
					next.self[ci] += w
				}
				continue
			}
			next.adj[ci][cj] += w
		}
	}

	nextMembership := make([][]int, len(groups))
	for newID, group := range groups {
		for _, super := range group {
			nextMembership[newID] = append(nextMembership[newID], membership[super]...)
		}
	}
	return next, nextMembership
}

func sortCommunities(communities []domain.Community) {
	sort.Slice(communities, func(i, j int) bool {
		return communities[i][0] < communities[j][0]
	})
}
