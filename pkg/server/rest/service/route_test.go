package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/geo"
	"lintang/routefare/pkg/server"
	"lintang/routefare/pkg/server/rest/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCatalog struct {
	routes    map[datastructure.RouteID]datastructure.Route
	adjacency map[datastructure.RouteID][]datastructure.RouteID
	err       error
}

func (c *memCatalog) FindRoutesNear(ctx context.Context, p datastructure.Coordinate, radius float64) ([]datastructure.RouteID, error) {
	if c.err != nil {
		return nil, c.err
	}
	ids := []datastructure.RouteID{}
	for id, r := range c.routes {
		if r.IsActive() && geo.DistanceToLineMeters(p, r.Points) <= radius {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (c *memCatalog) GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error) {
	r, ok := c.routes[id]
	if !ok {
		return datastructure.Route{}, server.WrapErrorf(nil, server.ErrNotFound, "route %s not found", id)
	}
	return r, nil
}

func (c *memCatalog) GetAdjacent(ctx context.Context, id datastructure.RouteID) ([]datastructure.RouteID, error) {
	return c.adjacency[id], nil
}

func (c *memCatalog) AllRoutes(ctx context.Context) ([]datastructure.Route, error) {
	routes := []datastructure.Route{}
	for _, r := range c.routes {
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Name < routes[j].Name })
	return routes, nil
}

type countingObserver struct {
	found, notFound, failures atomic.Int32
}

func (o *countingObserver) PathQuery(found bool) {
	if found {
		o.found.Add(1)
	} else {
		o.notFound.Add(1)
	}
}

func (o *countingObserver) CandidateFailure() {
	o.failures.Add(1)
}

func mustRoute(t *testing.T, id datastructure.RouteID, name string, points ...datastructure.Coordinate) datastructure.Route {
	t.Helper()
	r, err := datastructure.NewRoute(id, name, points)
	require.NoError(t, err)
	return r
}

func newCatalog(t *testing.T, edges ...[2]datastructure.RouteID) *memCatalog {
	east := mustRoute(t, "east", "Koridor 2", datastructure.Coordinate{Lat: 0, Lon: 0}, datastructure.Coordinate{Lat: 0, Lon: 0.02})
	north := mustRoute(t, "north", "Koridor 1", datastructure.Coordinate{Lat: -0.01, Lon: 0.01}, datastructure.Coordinate{Lat: 0.01, Lon: 0.01})
	// close to the north route near the destination but never within reach of east
	ghost := mustRoute(t, "ghost", "Koridor 3", datastructure.Coordinate{Lat: 0.002, Lon: 0.0103}, datastructure.Coordinate{Lat: 0.01, Lon: 0.0103})

	adj := map[datastructure.RouteID][]datastructure.RouteID{}
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		adj[e[1]] = append(adj[e[1]], e[0])
	}
	return &memCatalog{
		routes:    map[datastructure.RouteID]datastructure.Route{"east": east, "north": north, "ghost": ghost},
		adjacency: adj,
	}
}

// stallingCatalog never answers adjacency lookups before the caller gives up.
type stallingCatalog struct {
	*memCatalog
}

func (c stallingCatalog) GetAdjacent(ctx context.Context, id datastructure.RouteID) ([]datastructure.RouteID, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type stubImporter struct {
	err      error
	inserted []datastructure.Route
}

func (s *stubImporter) Insert(ctx context.Context, routes []datastructure.Route) ([]datastructure.Edge, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.inserted = append(s.inserted, routes...)
	return nil, nil
}

func testConfig() service.Config {
	return service.Config{
		Radius:          50,
		MaxHops:         10,
		MaxResults:      2,
		MaxFrontier:     1000,
		AdjacencyRadius: 10,
		Workers:         2,
		Timeout:         5 * time.Second,
	}
}

func newService(catalog service.Catalog, obs service.Observer) *service.RouteService {
	return service.NewRouteService(catalog, geo.NewS2Engine(), nil, testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), obs)
}

func TestResolvePaths(t *testing.T) {
	ctx := context.Background()
	origin := datastructure.Coordinate{Lat: 0, Lon: 0.002}

	t.Run("one route serving both ends gives one fare", func(t *testing.T) {
		obs := &countingObserver{}
		svc := newService(newCatalog(t, [2]datastructure.RouteID{"east", "north"}), obs)
		its, err := svc.ResolvePaths(ctx, origin, datastructure.Coordinate{Lat: 0, Lon: 0.008}, 50)
		require.NoError(t, err)
		require.Len(t, its, 1)
		require.Len(t, its[0].Fares, 1)
		assert.Equal(t, datastructure.RouteID("east"), its[0].Fares[0].Route.ID)
		assert.InDelta(t, 0.006*111194.93, its[0].Fares[0].Distance, 1)
		assert.Equal(t, int32(1), obs.found.Load())
	})

	t.Run("no route near the destination is an empty list", func(t *testing.T) {
		obs := &countingObserver{}
		svc := newService(newCatalog(t, [2]datastructure.RouteID{"east", "north"}), obs)
		its, err := svc.ResolvePaths(ctx, origin, datastructure.Coordinate{Lat: 1, Lon: 1}, 50)
		require.NoError(t, err)
		assert.Empty(t, its)
		assert.Equal(t, int32(1), obs.notFound.Load())
	})

	t.Run("a candidate without a transfer point is skipped", func(t *testing.T) {
		obs := &countingObserver{}
		svc := newService(newCatalog(t,
			[2]datastructure.RouteID{"east", "north"},
			[2]datastructure.RouteID{"east", "ghost"},
		), obs)
		destination := datastructure.Coordinate{Lat: 0.008, Lon: 0.01015}
		its, err := svc.ResolvePaths(ctx, origin, destination, 50)
		require.NoError(t, err)
		require.Len(t, its, 1)
		assert.Equal(t, "{east,north}", its[0].Path.String())
		require.Len(t, its[0].Fares, 2)
		assert.Equal(t, destination, its[0].Fares[1].Boundary)
		assert.Equal(t, int32(1), obs.failures.Load())
	})

	t.Run("every candidate failing fails the request", func(t *testing.T) {
		svc := newService(newCatalog(t, [2]datastructure.RouteID{"east", "ghost"}), nil)
		_, err := svc.ResolvePaths(ctx, origin, datastructure.Coordinate{Lat: 0.008, Lon: 0.0105}, 50)
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrGeometryComputationFailed))
	})

	t.Run("catalog failure is propagated", func(t *testing.T) {
		catalog := newCatalog(t)
		catalog.err = errors.New("connection reset")
		_, err := newService(catalog, nil).ResolvePaths(ctx, origin, origin, 50)
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrCatalogUnavailable))
	})

	t.Run("stalled catalog times out", func(t *testing.T) {
		cfg := testConfig()
		cfg.Timeout = 20 * time.Millisecond
		catalog := stallingCatalog{newCatalog(t, [2]datastructure.RouteID{"east", "north"})}
		svc := service.NewRouteService(catalog, geo.NewS2Engine(), nil, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

		start := time.Now()
		its, err := svc.ResolvePaths(ctx, origin, datastructure.Coordinate{Lat: 0.008, Lon: 0.01015}, 50)
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrTimeout))
		assert.Nil(t, its)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("results keep path order", func(t *testing.T) {
		svc := newService(newCatalog(t,
			[2]datastructure.RouteID{"east", "north"},
			[2]datastructure.RouteID{"east", "ghost"},
			[2]datastructure.RouteID{"ghost", "north"},
		), nil)
		for i := 0; i < 10; i++ {
			its, err := svc.ResolvePaths(ctx, origin, datastructure.Coordinate{Lat: 0.008, Lon: 0.01015}, 50)
			require.NoError(t, err)
			require.NotEmpty(t, its)
			assert.Equal(t, "{east,north}", its[0].Path.String())
		}
	})
}

func TestNearestRoutes(t *testing.T) {
	ctx := context.Background()
	svc := newService(newCatalog(t), nil)

	routes, err := svc.NearestRoutes(ctx, datastructure.Coordinate{Lat: 0.005, Lon: 0.01}, datastructure.Coordinate{Lat: -0.005, Lon: 0.01}, 50)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, datastructure.RouteID("north"), routes[0].ID)

	routes, err = svc.NearestRoutes(ctx, datastructure.Coordinate{Lat: 0, Lon: 0.002}, datastructure.Coordinate{Lat: 0.005, Lon: 0.01}, 50)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestGetRoute(t *testing.T) {
	svc := newService(newCatalog(t), nil)
	r, err := svc.GetRoute(context.Background(), "north")
	require.NoError(t, err)
	assert.Equal(t, "Koridor 1", r.Name)

	_, err = svc.GetRoute(context.Background(), "nope")
	assert.True(t, server.HasCode(err, server.ErrNotFound))

	_, err = svc.StoreRoute(context.Background(), r)
	assert.True(t, server.HasCode(err, server.ErrInternalServerError))
}

func TestStoreRoute(t *testing.T) {
	ctx := context.Background()
	r := mustRoute(t, "west", "Koridor 4", datastructure.Coordinate{Lat: 0, Lon: -0.02}, datastructure.Coordinate{Lat: 0, Lon: 0})
	newWith := func(im service.Importer) *service.RouteService {
		return service.NewRouteService(newCatalog(t), geo.NewS2Engine(), im, testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	}

	t.Run("new route is inserted", func(t *testing.T) {
		im := &stubImporter{}
		got, err := newWith(im).StoreRoute(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, r, got)
		assert.Equal(t, []datastructure.Route{r}, im.inserted)
	})

	t.Run("duplicate id keeps the conflict code", func(t *testing.T) {
		im := &stubImporter{err: server.WrapErrorf(nil, server.ErrConflict, "route west already exists")}
		_, err := newWith(im).StoreRoute(ctx, r)
		assert.True(t, server.HasCode(err, server.ErrConflict))
	})
}
