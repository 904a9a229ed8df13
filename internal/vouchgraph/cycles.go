package vouchgraph

import (
	"errors"

	"github.com/vouchwatch/backend/internal/domain"
)

// ErrCycleBudget signals that cycle enumeration hit its total-cycle cap on a
// pathologically dense graph. Surfaced instead of truncating silently.
var ErrCycleBudget = errors.New("cycle enumeration exceeded budget")

// CycleEnumerator finds directed cycles up to a bounded length. Implementations
// must visit every elementary circuit within the bound; the ring detector's
// correctness depends on exhaustiveness, not sampling.
type CycleEnumerator interface {
	Enumerate(g *Graph, maxLength int) ([]domain.Ring, error)
}

// BoundedEnumerator performs an exhaustive depth-first enumeration of
// elementary cycles of length up to maxLength. Each cycle is emitted exactly
// once, rooted at its lowest-ordered participant: the search from a start node
// only descends into nodes that sort after it, so rotations never reappear.
type BoundedEnumerator struct {
	// Budget caps the total number of cycles collected; 0 means unlimited.
	Budget int
}

// Enumerate returns every distinct elementary cycle of length in [2, maxLength].
// Callers filter by length; the ring detector only weighs sizes 3..5.
func (e BoundedEnumerator) Enumerate(g *Graph, maxLength int) ([]domain.Ring, error) {
	if g == nil || g.NodeCount() == 0 || maxLength < 2 {
		return nil, nil
	}

	ids := g.Nodes()
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}

	var cycles []domain.Ring
	path := make([]string, 0, maxLength)
	onPath := make(map[string]bool, maxLength)

	var dfs func(start, current string) error
	dfs = func(start, current string) error {
		for _, next := range g.Successors(current) {
			if next == start {
				if len(path) >= 2 {
					cycles = append(cycles, append(domain.Ring(nil), path...))
					if e.Budget > 0 && len(cycles) > e.Budget {
						return ErrCycleBudget
					}
				}
				continue
			}
			// Nodes ordered before the start belong to earlier roots.
			if order[next] < order[start] || onPath[next] {
				continue
			}
			if len(path) == maxLength {
				continue
			}
			path = append(path, next)
			onPath[next] = true
			err := dfs(start, next)
			onPath[next] = false
			path = path[:len(path)-1]
			if err != nil {
				return err
			}
		}
		return nil
	}

	for _, start := range ids {
		path = append(path[:0], start)
		onPath[start] = true
		err := dfs(start, start)
		onPath[start] = false
		if err != nil {
			return nil, err
		}
	}

	return cycles, nil
}
