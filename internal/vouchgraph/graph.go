package vouchgraph

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vouchwatch/backend/internal/domain"
)

// Edge is a directed endorsement edge. Parallel raw records between the same
// ordered pair collapse into one edge with accumulated weight and count.
type Edge struct {
	From   string
	To     string
	Weight float64 // summed stake in decimal units
	Count  int     // contributing records
}

// Node holds a participant and the display metadata attached on first sight.
type Node struct {
	ID              string
	DisplayName     string
	ReputationScore float64
	hasInfo         bool
}

// Graph is a weighted directed simple graph of endorsements. It is built once
// per analysis run and treated as read-only afterwards.
type Graph struct {
	nodes map[string]*Node
	out   map[string]map[string]*Edge // from -> to -> edge
	in    map[string]map[string]*Edge // to -> from -> edge
	edges int
}

// StakeError reports a stake value that could not be accepted: non-numeric or
// negative. The offending record is named; the builder never coerces.
type StakeError struct {
	Record domain.Endorsement
	Reason string
}

func (e *StakeError) Error() string {
	return fmt.Sprintf("invalid stake %q on endorsement %s->%s: %s", e.Record.Stake, e.Record.From, e.Record.To, e.Reason)
}

// Builder converts endorsement records into a Graph.
type Builder struct {
	divisor decimal.Decimal
}

// NewBuilder creates a Builder converting smallest-unit stakes to decimal
// units by dividing by 10^divisorExp.
func NewBuilder(divisorExp int) *Builder {
	return &Builder{divisor: decimal.New(1, int32(divisorExp))}
}

// Build iterates the record list once, upserting directed edges and attaching
// first-write-wins node metadata. Any malformed stake aborts the build.
func (b *Builder) Build(records []domain.Endorsement) (*Graph, error) {
	g := newGraph()

	for _, rec := range records {
		value, err := b.stakeValue(rec)
		if err != nil {
			return nil, err
		}

		g.addEdge(rec.From, rec.To, value)
		g.attachInfo(rec.From, rec.FromInfo)
		g.attachInfo(rec.To, rec.ToInfo)
	}

	return g, nil
}

func (b *Builder) stakeValue(rec domain.Endorsement) (float64, error) {
	d, err := decimal.NewFromString(rec.Stake)
	if err != nil {
		return 0, &StakeError{Record: rec, Reason: "not a number"}
	}
	if d.IsNegative() {
		return 0, &StakeError{Record: rec, Reason: "negative"}
	}
	return d.Div(b.divisor).InexactFloat64(), nil
}

func newGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string]map[string]*Edge),
		in:    make(map[string]map[string]*Edge),
	}
}

func (g *Graph) ensureNode(id string) *Node {
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{ID: id}
		g.nodes[id] = n
	}
	return n
}

func (g *Graph) addEdge(from, to string, weight float64) {
	g.ensureNode(from)
	g.ensureNode(to)

	if g.out[from] == nil {
		g.out[from] = make(map[string]*Edge)
	}
	if e, ok := g.out[from][to]; ok {
		e.Weight += weight
		e.Count++
		return
	}

	e := &Edge{From: from, To: to, Weight: weight, Count: 1}
	g.out[from][to] = e
	if g.in[to] == nil {
		g.in[to] = make(map[string]*Edge)
	}
	g.in[to][from] = e
	g.edges++
}

// attachInfo records display metadata on first sight; later conflicting
// metadata for the same node is silently ignored.
func (g *Graph) attachInfo(id string, info *domain.ParticipantInfo) {
	if info == nil {
		return
	}
	n := g.ensureNode(id)
	if n.hasInfo {
		return
	}
	n.DisplayName = info.DisplayName
	n.ReputationScore = info.ReputationScore
	n.hasInfo = true
}

// NodeCount returns the number of distinct participants.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct ordered endorsement pairs.
func (g *Graph) EdgeCount() int { return g.edges }

// HasNode reports whether the participant appears in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the participant's node data, or nil if absent.
func (g *Graph) Node(id string) *Node { return g.nodes[id] }

// Nodes returns all participant IDs in ascending order. Sorting keeps every
// downstream traversal deterministic across runs.
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InDegree returns the number of distinct endorsers of the participant.
func (g *Graph) InDegree(id string) int { return len(g.in[id]) }

// OutDegree returns the number of distinct participants endorsed by id.
func (g *Graph) OutDegree(id string) int { return len(g.out[id]) }

// HasEdge reports whether a directed edge from->to exists.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.out[from][to]
	return ok
}

// EdgeBetween returns the directed edge from->to, or nil.
func (g *Graph) EdgeBetween(from, to string) *Edge { return g.out[from][to] }

// Successors returns the targets of the participant's outgoing edges, sorted.
func (g *Graph) Successors(id string) []string {
	return sortedKeys(g.out[id])
}

// Predecessors returns the sources of the participant's incoming edges, sorted.
func (g *Graph) Predecessors(id string) []string {
	return sortedKeys(g.in[id])
}

// IncomingEdges returns all edges terminating at the participant, ordered by
// source ID.
func (g *Graph) IncomingEdges(id string) []*Edge {
	froms := sortedKeys(g.in[id])
	edges := make([]*Edge, 0, len(froms))
	for _, from := range froms {
		edges = append(edges, g.in[id][from])
	}
	return edges
}

// Edges returns every edge ordered by (from, to).
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, 0, g.edges)
	for _, from := range sortedKeys(g.out) {
		for _, to := range sortedKeys(g.out[from]) {
			edges = append(edges, g.out[from][to])
		}
	}
	return edges
}

// Stats computes node/edge counts, density and average degrees.
func (g *Graph) Stats() domain.GraphStats {
	n := len(g.nodes)
	if n == 0 {
		return domain.GraphStats{}
	}

	stats := domain.GraphStats{
		Nodes: n,
		Edges: g.edges,
	}
	if n > 1 {
		stats.Density = float64(g.edges) / float64(n*(n-1))
	}

	var inSum, outSum int
	for id := range g.nodes {
		inSum += len(g.in[id])
		outSum += len(g.out[id])
	}
	stats.AvgInDegree = float64(inSum) / float64(n)
	stats.AvgOutDegree = float64(outSum) / float64(n)
	return stats
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
