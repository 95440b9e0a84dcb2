package pathfinder

import (
	"context"
	"errors"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/server"
)

const (
	DefaultMaxHops     = 10
	DefaultMaxResults  = 2
	DefaultMaxFrontier = 200000
)

type RouteGraph interface {
	RoutesNear(ctx context.Context, c datastructure.Coordinate, radius float64) ([]datastructure.RouteID, error)
	AdjacentRoutesBatch(ctx context.Context, ids []datastructure.RouteID) (map[datastructure.RouteID][]datastructure.RouteID, error)
}

type Config struct {
	MaxHops     int
	MaxResults  int
	MaxFrontier int
}

func DefaultConfig() Config {
	return Config{
		MaxHops:     DefaultMaxHops,
		MaxResults:  DefaultMaxResults,
		MaxFrontier: DefaultMaxFrontier,
	}
}

type PathFinder struct {
	graph RouteGraph
	cfg   Config
}

func NewPathFinder(graph RouteGraph, cfg Config) *PathFinder {
	if cfg.MaxHops < 0 {
		cfg.MaxHops = DefaultMaxHops
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.MaxFrontier <= 0 {
		cfg.MaxFrontier = DefaultMaxFrontier
	}
	return &PathFinder{graph: graph, cfg: cfg}
}

// inflight is a partial path with its own visited set.
type inflight struct {
	path    datastructure.Path
	visited map[datastructure.RouteID]struct{}
}

func (f inflight) extend(id datastructure.RouteID) (inflight, error) {
	p, err := f.path.Extend(id)
	if err != nil {
		return inflight{}, err
	}
	visited := make(map[datastructure.RouteID]struct{}, len(f.visited)+1)
	for k := range f.visited {
		visited[k] = struct{}{}
	}
	visited[id] = struct{}{}
	return inflight{path: p, visited: visited}, nil
}

// FindPaths runs a level order search from every route near origin to any
// route near destination and returns at most MaxResults paths, shortest first.
// Within one length, paths come in lexicographic order of their route ids.
// An empty result means no chain exists within MaxHops.
func (pf *PathFinder) FindPaths(ctx context.Context, origin, destination datastructure.Coordinate, radius float64) ([]datastructure.Path, error) {
	sources, err := pf.graph.RoutesNear(ctx, origin, radius)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return []datastructure.Path{}, nil
	}
	targetIDs, err := pf.graph.RoutesNear(ctx, destination, radius)
	if err != nil {
		return nil, err
	}
	if len(targetIDs) == 0 {
		return []datastructure.Path{}, nil
	}
	targets := make(map[datastructure.RouteID]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		targets[id] = struct{}{}
	}

	frontier := make([]inflight, 0, len(sources))
	for _, id := range sources {
		p, err := datastructure.NewPath(id)
		if err != nil {
			return nil, err
		}
		frontier = append(frontier, inflight{path: p, visited: map[datastructure.RouteID]struct{}{id: {}}})
	}

	solutions := []datastructure.Path{}
	for hops := 0; len(frontier) > 0; hops++ {
		if err := ctx.Err(); err != nil {
			return nil, timeoutError(err, hops)
		}

		for _, f := range frontier {
			if _, ok := targets[f.path.Last()]; ok {
				solutions = append(solutions, f.path)
				if len(solutions) == pf.cfg.MaxResults {
					return solutions, nil
				}
			}
		}

		if hops >= pf.cfg.MaxHops {
			break
		}

		frontier, err = pf.expand(ctx, frontier, hops)
		if err != nil {
			return nil, err
		}
	}
	return solutions, nil
}

// expand grows every path of the current level by one route. Accepted paths
// are grown as well, a longer chain through them can still be the second result.
func (pf *PathFinder) expand(ctx context.Context, frontier []inflight, hops int) ([]inflight, error) {
	lasts := make([]datastructure.RouteID, 0, len(frontier))
	for _, f := range frontier {
		lasts = append(lasts, f.path.Last())
	}
	adjacency, err := pf.graph.AdjacentRoutesBatch(ctx, lasts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError(err, hops)
		}
		return nil, err
	}

	next := []inflight{}
	for _, f := range frontier {
		for _, n := range adjacency[f.path.Last()] {
			if _, seen := f.visited[n]; seen {
				continue
			}
			ext, err := f.extend(n)
			if err != nil {
				return nil, err
			}
			next = append(next, ext)
			if len(next) > pf.cfg.MaxFrontier {
				return nil, server.WrapErrorf(nil, server.ErrTimeout, "search frontier exceeded %d paths at hop %d", pf.cfg.MaxFrontier, hops+1)
			}
		}
	}
	return next, nil
}

func timeoutError(err error, hops int) error {
	if server.HasCode(err, server.ErrTimeout) {
		return err
	}
	return server.WrapErrorf(err, server.ErrTimeout, "path search interrupted at hop %d", hops)
}
