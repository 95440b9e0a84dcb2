package storage

import (
	"context"
	"database/sql"
	"log/slog"

	"lintang/routefare/pkg/adjacency"
	"lintang/routefare/pkg/config"
	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/engine/fare"
	"lintang/routefare/pkg/geo"
	"lintang/routefare/pkg/kv"
	"lintang/routefare/pkg/postgis"
	"lintang/routefare/pkg/server"

	"github.com/cockroachdb/pebble"
)

// Catalog is what both route stores offer to the service and the importer.
type Catalog interface {
	FindRoutesNear(ctx context.Context, c datastructure.Coordinate, radius float64) ([]datastructure.RouteID, error)
	GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error)
	GetAdjacent(ctx context.Context, id datastructure.RouteID) ([]datastructure.RouteID, error)
	AllRoutes(ctx context.Context) ([]datastructure.Route, error)
	SaveRoutes(ctx context.Context, routes []datastructure.Route) error
	SaveAdjacency(ctx context.Context, edges []datastructure.Edge, radius float64) error
	AdjacencyRadius(ctx context.Context) (float64, bool, error)
	Close()
}

type AdjacencyBuilder interface {
	Build(ctx context.Context, routes []datastructure.Route, radius float64) ([]datastructure.Edge, error)
}

type Backend struct {
	Catalog Catalog
	Builder AdjacencyBuilder
	Engine  fare.GeometryEngine

	// engine connection when the catalog lives elsewhere
	engineDB *sql.DB
}

// Open connects the configured catalog and geometry engine.
func Open(ctx context.Context, cfg config.Config, showProgress bool, log *slog.Logger) (*Backend, error) {
	b := &Backend{}
	var pg *postgis.Catalog

	switch cfg.Storage.Backend {
	case "postgis":
		db, err := postgis.Open(ctx, cfg.Storage.PostgresDSN, cfg.Storage.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		pg = postgis.NewCatalog(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		b.Catalog = pg
		b.Builder = pg.SQLBuilder()
	default:
		db, err := pebble.Open(cfg.Storage.PebbleDir, &pebble.Options{})
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrCatalogUnavailable, "open pebble at %s", cfg.Storage.PebbleDir)
		}
		opts := []kv.Option{
			kv.WithWorkers(cfg.Search.Workers),
			kv.WithRouteCache(cfg.Storage.CacheSize, cfg.Storage.CacheTTL),
		}
		if !showProgress {
			opts = append(opts, kv.WithoutProgress())
		}
		b.Catalog = kv.NewKVDB(db, opts...)
		b.Builder = adjacency.NewBuilder(cfg.Search.Workers)
	}

	switch cfg.Storage.Engine {
	case "postgis":
		if pg == nil {
			db, err := postgis.Open(ctx, cfg.Storage.PostgresDSN, cfg.Storage.MaxOpenConns)
			if err != nil {
				b.Close()
				return nil, err
			}
			b.engineDB = db
			b.Engine = postgis.NewGeometryEngine(db)
		} else {
			b.Engine = postgis.NewGeometryEngine(pg.DB())
		}
	default:
		b.Engine = geo.NewS2Engine()
	}

	log.Info("storage ready",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("engine", cfg.Storage.Engine))
	return b, nil
}

// AdjacencyRadius is the radius the stored edges were built with, or fallback
// when the catalog has none yet.
func (b *Backend) AdjacencyRadius(ctx context.Context, fallback float64) (float64, error) {
	radius, ok, err := b.Catalog.AdjacencyRadius(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return fallback, nil
	}
	return radius, nil
}

func (b *Backend) Close() {
	if b.Catalog != nil {
		b.Catalog.Close()
	}
	if b.engineDB != nil {
		b.engineDB.Close()
	}
}
