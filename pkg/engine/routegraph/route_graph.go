package routegraph

import (
	"context"
	"errors"
	"sort"
	"sync"

	"lintang/routefare/pkg/concurrent"
	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/server"
)

type RouteCatalog interface {
	FindRoutesNear(ctx context.Context, c datastructure.Coordinate, radius float64) ([]datastructure.RouteID, error)
	GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error)
	GetAdjacent(ctx context.Context, id datastructure.RouteID) ([]datastructure.RouteID, error)
}

// RouteGraph is a per-request view of the catalog: routes are nodes, the
// adjacency relation gives the edges. Lookups are memoised so one request
// sees one consistent snapshot of whatever it has already read.
type RouteGraph struct {
	catalog RouteCatalog
	workers int

	mu        sync.Mutex
	adjacency map[datastructure.RouteID][]datastructure.RouteID
	routes    map[datastructure.RouteID]datastructure.Route
}

func NewRouteGraph(catalog RouteCatalog, workers int) *RouteGraph {
	if workers < 1 {
		workers = 1
	}
	return &RouteGraph{
		catalog:   catalog,
		workers:   workers,
		adjacency: make(map[datastructure.RouteID][]datastructure.RouteID),
		routes:    make(map[datastructure.RouteID]datastructure.Route),
	}
}

// CatalogError classifies an error coming back from the catalog.
func CatalogError(err error, format string, a ...interface{}) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return server.WrapErrorf(err, server.ErrTimeout, format, a...)
	}
	if server.HasCode(err, server.ErrTimeout) {
		return err
	}
	return server.WrapErrorf(err, server.ErrCatalogUnavailable, format, a...)
}

// RoutesNear returns the active routes within radius meters of c, ascending by id.
func (g *RouteGraph) RoutesNear(ctx context.Context, c datastructure.Coordinate, radius float64) ([]datastructure.RouteID, error) {
	ids, err := g.catalog.FindRoutesNear(ctx, c, radius)
	if err != nil {
		return nil, CatalogError(err, "find routes near (%v, %v)", c.Lat, c.Lon)
	}
	return sortedUnique(ids, ""), nil
}

// AdjacentRoutes returns the neighbours of id ascending by id, never id itself.
func (g *RouteGraph) AdjacentRoutes(ctx context.Context, id datastructure.RouteID) ([]datastructure.RouteID, error) {
	g.mu.Lock()
	if adj, ok := g.adjacency[id]; ok {
		g.mu.Unlock()
		return adj, nil
	}
	g.mu.Unlock()

	ids, err := g.catalog.GetAdjacent(ctx, id)
	if err != nil {
		return nil, CatalogError(err, "adjacent routes of %s", id)
	}
	adj := sortedUnique(ids, id)

	g.mu.Lock()
	g.adjacency[id] = adj
	g.mu.Unlock()
	return adj, nil
}

type adjacencyResult struct {
	id  datastructure.RouteID
	adj []datastructure.RouteID
	err error
}

// AdjacentRoutesBatch resolves the neighbours of every id concurrently.
func (g *RouteGraph) AdjacentRoutesBatch(ctx context.Context, ids []datastructure.RouteID) (map[datastructure.RouteID][]datastructure.RouteID, error) {
	res := make(map[datastructure.RouteID][]datastructure.RouteID, len(ids))
	missing := []datastructure.RouteID{}

	g.mu.Lock()
	for _, id := range sortedUnique(ids, "") {
		if adj, ok := g.adjacency[id]; ok {
			res[id] = adj
		} else {
			missing = append(missing, id)
		}
	}
	g.mu.Unlock()

	if len(missing) == 0 {
		return res, nil
	}

	workers := concurrent.NewWorkerPool[datastructure.RouteID, adjacencyResult](g.workers, len(missing))
	for _, id := range missing {
		workers.AddJob(id)
	}
	workers.Close()

	workers.Start(func(id datastructure.RouteID) adjacencyResult {
		adj, err := g.AdjacentRoutes(ctx, id)
		return adjacencyResult{id, adj, err}
	})
	workers.Wait()

	// report the error of the smallest id so failures are reproducible
	var firstErr error
	var firstErrID datastructure.RouteID
	for curr := range workers.CollectResults() {
		if curr.err != nil {
			if firstErr == nil || curr.id < firstErrID {
				firstErr, firstErrID = curr.err, curr.id
			}
			continue
		}
		res[curr.id] = curr.adj
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return res, nil
}

func (g *RouteGraph) Route(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error) {
	g.mu.Lock()
	if r, ok := g.routes[id]; ok {
		g.mu.Unlock()
		return r, nil
	}
	g.mu.Unlock()

	r, err := g.catalog.GetRoute(ctx, id)
	if err != nil {
		return datastructure.Route{}, CatalogError(err, "get route %s", id)
	}

	g.mu.Lock()
	g.routes[id] = r
	g.mu.Unlock()
	return r, nil
}

// Routes returns the records of ids in the same order.
func (g *RouteGraph) Routes(ctx context.Context, ids []datastructure.RouteID) ([]datastructure.Route, error) {
	routes := make([]datastructure.Route, len(ids))
	for i, id := range ids {
		r, err := g.Route(ctx, id)
		if err != nil {
			return nil, err
		}
		routes[i] = r
	}
	return routes, nil
}

func sortedUnique(ids []datastructure.RouteID, exclude datastructure.RouteID) []datastructure.RouteID {
	seen := make(map[datastructure.RouteID]struct{}, len(ids))
	res := make([]datastructure.RouteID, 0, len(ids))
	for _, id := range ids {
		if id == exclude && exclude != "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
