package pathfinder_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/engine/pathfinder"
	"lintang/routefare/pkg/engine/routegraph"
	"lintang/routefare/pkg/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	origin      = datastructure.Coordinate{Lat: -6.2, Lon: 106.8}
	destination = datastructure.Coordinate{Lat: -6.3, Lon: 106.9}
)

type fakeCatalog struct {
	near      map[datastructure.Coordinate][]datastructure.RouteID
	adjacency map[datastructure.RouteID][]datastructure.RouteID
	err       error
	calls     atomic.Int32
}

func (c *fakeCatalog) FindRoutesNear(ctx context.Context, p datastructure.Coordinate, radius float64) ([]datastructure.RouteID, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.near[p], nil
}

func (c *fakeCatalog) GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error) {
	return datastructure.Route{ID: id}, nil
}

func (c *fakeCatalog) GetAdjacent(ctx context.Context, id datastructure.RouteID) ([]datastructure.RouteID, error) {
	c.calls.Add(1)
	return c.adjacency[id], nil
}

func undirected(edges ...[2]datastructure.RouteID) map[datastructure.RouteID][]datastructure.RouteID {
	adj := make(map[datastructure.RouteID][]datastructure.RouteID)
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		adj[e[1]] = append(adj[e[1]], e[0])
	}
	return adj
}

func newFinder(catalog *fakeCatalog, cfg pathfinder.Config) *pathfinder.PathFinder {
	return pathfinder.NewPathFinder(routegraph.NewRouteGraph(catalog, 2), cfg)
}

func pathStrings(paths []datastructure.Path) []string {
	res := make([]string, len(paths))
	for i, p := range paths {
		res[i] = p.String()
	}
	return res
}

func TestFindPaths(t *testing.T) {
	ctx := context.Background()

	t.Run("single route serving both ends is the first result", func(t *testing.T) {
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin:      {"A"},
				destination: {"A"},
			},
			adjacency: undirected([2]datastructure.RouteID{"A", "B"}),
		}
		paths, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, 1, paths[0].Len())
		assert.Equal(t, 0, paths[0].Hops())
		assert.Equal(t, datastructure.RouteID("A"), paths[0].First())
	})

	t.Run("shared route comes before longer chains", func(t *testing.T) {
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin:      {"B", "A"},
				destination: {"A", "C"},
			},
			adjacency: undirected(
				[2]datastructure.RouteID{"A", "B"},
				[2]datastructure.RouteID{"B", "C"},
			),
		}
		paths, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		assert.Equal(t, []string{"{A}", "{B,A}"}, pathStrings(paths))
	})

	t.Run("cyclic adjacency terminates without repeating a route", func(t *testing.T) {
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin:      {"A"},
				destination: {"C"},
			},
			adjacency: undirected(
				[2]datastructure.RouteID{"A", "B"},
				[2]datastructure.RouteID{"B", "C"},
				[2]datastructure.RouteID{"C", "A"},
			),
		}
		paths, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		assert.Equal(t, []string{"{A,C}", "{A,B,C}"}, pathStrings(paths))

		for _, p := range paths {
			seen := map[datastructure.RouteID]int{}
			for _, id := range p.IDs() {
				seen[id]++
				assert.Equal(t, 1, seen[id], "route %s repeats in %s", id, p)
			}
		}
	})

	t.Run("cycle without any destination route still terminates", func(t *testing.T) {
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin:      {"A"},
				destination: {"Z"},
			},
			adjacency: undirected(
				[2]datastructure.RouteID{"A", "B"},
				[2]datastructure.RouteID{"B", "C"},
				[2]datastructure.RouteID{"C", "A"},
			),
		}
		paths, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("ties are broken by ascending route ids", func(t *testing.T) {
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin:      {"B", "A"},
				destination: {"D"},
			},
			adjacency: undirected(
				[2]datastructure.RouteID{"A", "D"},
				[2]datastructure.RouteID{"B", "D"},
				[2]datastructure.RouteID{"A", "C"},
				[2]datastructure.RouteID{"C", "D"},
			),
		}
		finder := newFinder(catalog, pathfinder.DefaultConfig())
		first, err := finder.FindPaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		assert.Equal(t, []string{"{A,D}", "{B,D}"}, pathStrings(first))

		for i := 0; i < 20; i++ {
			again, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(ctx, origin, destination, 50)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("results are non decreasing in hop count", func(t *testing.T) {
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin:      {"A"},
				destination: {"D"},
			},
			adjacency: undirected(
				[2]datastructure.RouteID{"A", "B"},
				[2]datastructure.RouteID{"B", "D"},
				[2]datastructure.RouteID{"A", "C"},
				[2]datastructure.RouteID{"C", "E"},
				[2]datastructure.RouteID{"E", "D"},
			),
		}
		paths, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		require.Len(t, paths, 2)
		assert.Equal(t, []string{"{A,B,D}", "{A,C,E,D}"}, pathStrings(paths))
		assert.LessOrEqual(t, paths[0].Hops(), paths[1].Hops())
	})

	t.Run("no route near destination is an empty result", func(t *testing.T) {
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin: {"A"},
			},
			adjacency: undirected([2]datastructure.RouteID{"A", "B"}),
		}
		paths, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		assert.Empty(t, paths)
		assert.Equal(t, int32(0), catalog.calls.Load())
	})

	t.Run("chains longer than the hop bound are not found", func(t *testing.T) {
		edges := [][2]datastructure.RouteID{}
		for i := 0; i < 12; i++ {
			edges = append(edges, [2]datastructure.RouteID{
				datastructure.RouteID(fmt.Sprintf("R%02d", i)),
				datastructure.RouteID(fmt.Sprintf("R%02d", i+1)),
			})
		}
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin:      {"R00"},
				destination: {"R12"},
			},
			adjacency: undirected(edges...),
		}

		paths, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		assert.Empty(t, paths)

		cfg := pathfinder.DefaultConfig()
		cfg.MaxHops = 12
		paths, err = newFinder(catalog, cfg).FindPaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, 13, paths[0].Len())
		assert.LessOrEqual(t, paths[0].Len(), cfg.MaxHops+1)
	})

	t.Run("catalog failure propagates as catalog unavailable", func(t *testing.T) {
		catalog := &fakeCatalog{err: errors.New("connection refused")}
		_, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(ctx, origin, destination, 50)
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrCatalogUnavailable))
	})

	t.Run("exceeding the frontier budget is a timeout", func(t *testing.T) {
		adj := map[datastructure.RouteID][]datastructure.RouteID{}
		ids := []datastructure.RouteID{}
		for i := 0; i < 8; i++ {
			ids = append(ids, datastructure.RouteID(fmt.Sprintf("K%d", i)))
		}
		for _, a := range ids {
			for _, b := range ids {
				if a != b {
					adj[a] = append(adj[a], b)
				}
			}
		}
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin:      {"K0"},
				destination: {"Z"},
			},
			adjacency: adj,
		}
		cfg := pathfinder.DefaultConfig()
		cfg.MaxFrontier = 50
		_, err := newFinder(catalog, cfg).FindPaths(ctx, origin, destination, 50)
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrTimeout))
	})

	t.Run("cancelled context is a timeout", func(t *testing.T) {
		catalog := &fakeCatalog{
			near: map[datastructure.Coordinate][]datastructure.RouteID{
				origin:      {"A"},
				destination: {"A"},
			},
		}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newFinder(catalog, pathfinder.DefaultConfig()).FindPaths(cctx, origin, destination, 50)
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrTimeout))
	})
}
