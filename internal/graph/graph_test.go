package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mswsus/cms/internal/graph"
	"github.com/mswsus/cms/internal/identity"
)

func TestGraph_RootsLeavesInterior(t *testing.T) {
	t.Parallel()

	// 1 -> 2 -> 3 : 1 depends on 2, 2 depends on 3.
	edges := map[identity.Index][]identity.Index{
		1: {2},
		2: {3},
		3: {},
	}

	g := graph.New([]identity.Index{1, 2, 3}, func(i identity.Index) ([]identity.Index, error) {
		return edges[i], nil
	})

	roots, err := g.Roots()
	require.NoError(t, err)
	require.ElementsMatch(t, []identity.Index{3}, roots)

	leaves, err := g.Leaves()
	require.NoError(t, err)
	require.ElementsMatch(t, []identity.Index{1}, leaves)

	interior, err := g.Interior()
	require.NoError(t, err)
	require.ElementsMatch(t, []identity.Index{2}, interior)

	dependents, err := g.Dependents(3)
	require.NoError(t, err)
	require.ElementsMatch(t, []identity.Index{2}, dependents)
}

func TestGraph_BuildRunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	g := graph.New([]identity.Index{1}, func(i identity.Index) ([]identity.Index, error) {
		calls++
		return nil, nil
	})

	_, err := g.Roots()
	require.NoError(t, err)
	_, err = g.Leaves()
	require.NoError(t, err)
	_, err = g.Prerequisites(1)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}
