package importer

import (
	"context"
	"log/slog"
	"sync"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/server"
)

type RouteStore interface {
	GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error)
	SaveRoutes(ctx context.Context, routes []datastructure.Route) error
	SaveAdjacency(ctx context.Context, edges []datastructure.Edge, radius float64) error
	AllRoutes(ctx context.Context) ([]datastructure.Route, error)
}

type AdjacencyBuilder interface {
	Build(ctx context.Context, routes []datastructure.Route, radius float64) ([]datastructure.Edge, error)
}

type Importer struct {
	store   RouteStore
	builder AdjacencyBuilder
	radius  float64
	log     *slog.Logger

	// one writer at a time, SaveAdjacency replaces the whole relation
	mu sync.Mutex
}

func NewImporter(store RouteStore, builder AdjacencyBuilder, adjacencyRadius float64, log *slog.Logger) *Importer {
	return &Importer{store: store, builder: builder, radius: adjacencyRadius, log: log}
}

// Import stores routes, replacing any with the same id, and rebuilds the
// adjacency relation of the whole catalog so edges stay consistent with the
// stored geometries.
func (im *Importer) Import(ctx context.Context, routes []datastructure.Route) ([]datastructure.Edge, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.save(ctx, routes)
}

// Insert is Import for new routes only. An id already in the catalog is a conflict.
func (im *Importer) Insert(ctx context.Context, routes []datastructure.Route) ([]datastructure.Edge, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	for _, r := range routes {
		_, err := im.store.GetRoute(ctx, r.ID)
		if err == nil {
			return nil, server.WrapErrorf(nil, server.ErrConflict, "route %s already exists", r.ID)
		}
		if !server.HasCode(err, server.ErrNotFound) {
			return nil, err
		}
	}
	return im.save(ctx, routes)
}

func (im *Importer) RebuildAdjacency(ctx context.Context) ([]datastructure.Edge, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.rebuild(ctx)
}

func (im *Importer) save(ctx context.Context, routes []datastructure.Route) ([]datastructure.Edge, error) {
	if err := im.store.SaveRoutes(ctx, routes); err != nil {
		return nil, err
	}
	im.log.Info("routes saved", slog.Int("count", len(routes)))

	return im.rebuild(ctx)
}

func (im *Importer) rebuild(ctx context.Context) ([]datastructure.Edge, error) {
	all, err := im.store.AllRoutes(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := im.builder.Build(ctx, all, im.radius)
	if err != nil {
		return nil, err
	}
	if err := im.store.SaveAdjacency(ctx, edges, im.radius); err != nil {
		return nil, err
	}
	im.log.Info("adjacency rebuilt",
		slog.Int("routes", len(all)),
		slog.Int("edges", len(edges)),
		slog.Float64("radius", im.radius))
	return edges, nil
}
