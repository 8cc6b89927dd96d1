// Package graph implements the prerequisite graph (spec.md C7): a view over
// the Prerequisites secondary index where each update is a node, its
// prerequisite GUIDs are its outgoing edges, and the edges are inverted
// lazily on first query to answer "what depends on this update" (spec.md
// §4.7).
package graph

import (
	"sync"

	"github.com/mswsus/cms/internal/identity"
)

// PrerequisitesOf resolves an update's prerequisite indexes, flattening
// every prerequisite group (Simple and AtLeastOne alike) into a single
// edge list. A GUID that resolves to no known index (such as a category
// anchor that was never ingested as a record of its own) contributes no
// edge.
type PrerequisitesOf func(identity.Index) ([]identity.Index, error)

// Graph answers dependency queries over the whole identity universe.
// Dependents is built once, lazily, on the first call that needs it
// (spec.md §9 "Laziness with single-shot guards" applies here too: a
// reverse-edge scan over every known update is only paid for once).
type Graph struct {
	universe   []identity.Index
	prereqsOf  PrerequisitesOf

	once       sync.Once
	buildErr   error
	prereqs    map[identity.Index][]identity.Index
	dependents map[identity.Index][]identity.Index
}

// New creates a graph over universe (every index known to the open delta
// chain), resolving each node's prerequisites via prereqsOf.
func New(universe []identity.Index, prereqsOf PrerequisitesOf) *Graph {
	return &Graph{universe: universe, prereqsOf: prereqsOf}
}

func (g *Graph) build() {
	g.once.Do(func() {
		g.prereqs = make(map[identity.Index][]identity.Index, len(g.universe))
		g.dependents = make(map[identity.Index][]identity.Index, len(g.universe))

		for _, idx := range g.universe {
			prereqs, err := g.prereqsOf(idx)
			if err != nil {
				g.buildErr = err
				return
			}

			g.prereqs[idx] = prereqs

			for _, p := range prereqs {
				g.dependents[p] = append(g.dependents[p], idx)
			}
		}
	})
}

// Prerequisites returns idx's direct prerequisite indexes.
func (g *Graph) Prerequisites(idx identity.Index) ([]identity.Index, error) {
	g.build()
	if g.buildErr != nil {
		return nil, g.buildErr
	}

	return g.prereqs[idx], nil
}

// Dependents returns the indexes that name idx as a (direct) prerequisite.
func (g *Graph) Dependents(idx identity.Index) ([]identity.Index, error) {
	g.build()
	if g.buildErr != nil {
		return nil, g.buildErr
	}

	return g.dependents[idx], nil
}

// Roots returns every index with no prerequisites of its own: the
// detectoids and top-level products a delta chain's dependency walks
// bottom out at (spec.md §4.7).
func (g *Graph) Roots() ([]identity.Index, error) {
	g.build()
	if g.buildErr != nil {
		return nil, g.buildErr
	}

	var out []identity.Index

	for _, idx := range g.universe {
		if len(g.prereqs[idx]) == 0 {
			out = append(out, idx)
		}
	}

	return out, nil
}

// Leaves returns every index nothing else depends on.
func (g *Graph) Leaves() ([]identity.Index, error) {
	g.build()
	if g.buildErr != nil {
		return nil, g.buildErr
	}

	var out []identity.Index

	for _, idx := range g.universe {
		if len(g.dependents[idx]) == 0 {
			out = append(out, idx)
		}
	}

	return out, nil
}

// Interior returns every index that both has prerequisites and is itself a
// prerequisite of something else.
func (g *Graph) Interior() ([]identity.Index, error) {
	g.build()
	if g.buildErr != nil {
		return nil, g.buildErr
	}

	var out []identity.Index

	for _, idx := range g.universe {
		if len(g.prereqs[idx]) > 0 && len(g.dependents[idx]) > 0 {
			out = append(out, idx)
		}
	}

	return out, nil
}
