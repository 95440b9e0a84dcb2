package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/engine/fare"
	"lintang/routefare/pkg/engine/pathfinder"
	"lintang/routefare/pkg/engine/routegraph"
	"lintang/routefare/pkg/server"
)

type Catalog interface {
	FindRoutesNear(ctx context.Context, c datastructure.Coordinate, radius float64) ([]datastructure.RouteID, error)
	GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error)
	GetAdjacent(ctx context.Context, id datastructure.RouteID) ([]datastructure.RouteID, error)
	AllRoutes(ctx context.Context) ([]datastructure.Route, error)
}

type Importer interface {
	Insert(ctx context.Context, routes []datastructure.Route) ([]datastructure.Edge, error)
}

// Observer is told about every path query and every dropped candidate.
type Observer interface {
	PathQuery(found bool)
	CandidateFailure()
}

type nopObserver struct{}

func (nopObserver) PathQuery(bool)    {}
func (nopObserver) CandidateFailure() {}

type Config struct {
	Radius          float64
	MaxHops         int
	MaxResults      int
	MaxFrontier     int
	AdjacencyRadius float64
	Workers         int
	Timeout         time.Duration
}

type RouteService struct {
	catalog  Catalog
	engine   fare.GeometryEngine
	importer Importer
	cfg      Config
	log      *slog.Logger
	obs      Observer
}

func NewRouteService(catalog Catalog, engine fare.GeometryEngine, importer Importer, cfg Config, log *slog.Logger, obs Observer) *RouteService {
	if obs == nil {
		obs = nopObserver{}
	}
	return &RouteService{catalog: catalog, engine: engine, importer: importer, cfg: cfg, log: log, obs: obs}
}

func (uc *RouteService) radius(r float64) float64 {
	if r <= 0 {
		return uc.cfg.Radius
	}
	return r
}

func (uc *RouteService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.cfg.Timeout)
}

// deadlineError makes sure an error caused by the request budget says so.
func deadlineError(ctx context.Context, err error) error {
	if err == nil || server.HasCode(err, server.ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return server.WrapErrorf(err, server.ErrTimeout, "request exceeded its time budget")
	}
	return err
}

// ResolvePaths finds up to two route chains from origin to destination and
// splits each into fares. An empty list means no chain exists within the hop bound.
func (uc *RouteService) ResolvePaths(ctx context.Context, origin, destination datastructure.Coordinate, radius float64) ([]datastructure.Itinerary, error) {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()
	radius = uc.radius(radius)

	graph := routegraph.NewRouteGraph(uc.catalog, uc.cfg.Workers)
	finder := pathfinder.NewPathFinder(graph, pathfinder.Config{
		MaxHops:     uc.cfg.MaxHops,
		MaxResults:  uc.cfg.MaxResults,
		MaxFrontier: uc.cfg.MaxFrontier,
	})

	paths, err := finder.FindPaths(ctx, origin, destination, radius)
	if err != nil {
		return nil, deadlineError(ctx, err)
	}
	if len(paths) == 0 {
		uc.obs.PathQuery(false)
		uc.log.Info("no path found",
			slog.Any("origin", origin),
			slog.Any("destination", destination),
			slog.Float64("radius", radius),
			slog.String("status", server.ErrNoPathFound.Error()))
		return []datastructure.Itinerary{}, nil
	}

	segmenter := fare.NewSegmenter(uc.engine, graph, uc.cfg.AdjacencyRadius)

	itineraries := make([]datastructure.Itinerary, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p datastructure.Path) {
			defer wg.Done()
			itineraries[i], errs[i] = segmenter.Segment(ctx, p, origin, destination, radius)
		}(i, p)
	}
	wg.Wait()

	res := make([]datastructure.Itinerary, 0, len(paths))
	var firstGeomErr error
	for i, err := range errs {
		if err == nil {
			res = append(res, itineraries[i])
			continue
		}
		if !server.HasCode(err, server.ErrGeometryComputationFailed) {
			return nil, deadlineError(ctx, err)
		}
		uc.obs.CandidateFailure()
		uc.log.Warn("skipping candidate path",
			slog.String("path", paths[i].String()),
			slog.String("error", err.Error()))
		if firstGeomErr == nil {
			firstGeomErr = err
		}
	}
	if len(res) == 0 {
		return nil, firstGeomErr
	}
	uc.obs.PathQuery(true)
	return res, nil
}

// NearestRoutes returns the active routes serving both origin and destination.
func (uc *RouteService) NearestRoutes(ctx context.Context, origin, destination datastructure.Coordinate, radius float64) ([]datastructure.Route, error) {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()
	radius = uc.radius(radius)

	graph := routegraph.NewRouteGraph(uc.catalog, uc.cfg.Workers)
	fromOrigin, err := graph.RoutesNear(ctx, origin, radius)
	if err != nil {
		return nil, deadlineError(ctx, err)
	}
	fromDestination, err := graph.RoutesNear(ctx, destination, radius)
	if err != nil {
		return nil, deadlineError(ctx, err)
	}

	atDestination := make(map[datastructure.RouteID]struct{}, len(fromDestination))
	for _, id := range fromDestination {
		atDestination[id] = struct{}{}
	}
	common := []datastructure.RouteID{}
	for _, id := range fromOrigin {
		if _, ok := atDestination[id]; ok {
			common = append(common, id)
		}
	}

	routes, err := graph.Routes(ctx, common)
	if err != nil {
		return nil, deadlineError(ctx, err)
	}
	return routes, nil
}

func (uc *RouteService) AllRoutes(ctx context.Context) ([]datastructure.Route, error) {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()
	routes, err := uc.catalog.AllRoutes(ctx)
	if err != nil {
		return nil, deadlineError(ctx, routegraph.CatalogError(err, "list routes"))
	}
	return routes, nil
}

func (uc *RouteService) GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error) {
	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()
	r, err := uc.catalog.GetRoute(ctx, id)
	if server.HasCode(err, server.ErrNotFound) {
		return datastructure.Route{}, err
	}
	if err != nil {
		return datastructure.Route{}, deadlineError(ctx, routegraph.CatalogError(err, "get route %s", id))
	}
	return r, nil
}

// StoreRoute saves a new route and rebuilds the adjacency relation. A route
// whose id is already stored fails with ErrConflict.
func (uc *RouteService) StoreRoute(ctx context.Context, route datastructure.Route) (datastructure.Route, error) {
	if uc.importer == nil {
		return datastructure.Route{}, server.WrapErrorf(nil, server.ErrInternalServerError, "route catalog is read only")
	}
	edges, err := uc.importer.Insert(ctx, []datastructure.Route{route})
	if err != nil {
		return datastructure.Route{}, err
	}
	uc.log.Info("route stored", slog.String("id", string(route.ID)), slog.Int("edges", len(edges)))
	return route, nil
}
