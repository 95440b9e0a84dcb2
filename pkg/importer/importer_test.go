package importer_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"lintang/routefare/pkg/adjacency"
	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/importer"
	"lintang/routefare/pkg/kv"
	"lintang/routefare/pkg/server"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	eastID  = "0b6f5c2a-1d3e-4f5a-8b7c-9d0e1f2a3b4c"
	northID = "1c7a6d3b-2e4f-4a6b-9c8d-0e1f2a3b4c5d"
	farID   = "2d8b7e4c-3f5a-4b7c-8d9e-1f2a3b4c5d6e"
)

const collection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "` + eastID + `",
     "properties": {"name": "East", "color": "#ff0000"},
     "geometry": {"type": "LineString", "coordinates": [[0, 0], [0.02, 0]]}},
    {"type": "Feature",
     "properties": {"id": "` + northID + `", "name": "North", "status": "active"},
     "geometry": {"type": "MultiLineString", "coordinates": [[[0.01, -0.01], [0.01, 0]], [[0.01, 0], [0.01, 0.01]]]}},
    {"type": "Feature", "id": "` + farID + `",
     "properties": {"name": "Far", "status": "inactive"},
     "geometry": {"type": "LineString", "coordinates": [[1, 1], [1, 1.01]]}}
  ]
}`

func TestReadGeoJSON(t *testing.T) {
	t.Run("line strings and multi line strings", func(t *testing.T) {
		routes, err := importer.ReadGeoJSON(strings.NewReader(collection))
		require.NoError(t, err)
		require.Len(t, routes, 3)

		assert.Equal(t, datastructure.RouteID(eastID), routes[0].ID)
		assert.Equal(t, "#ff0000", routes[0].Color)
		assert.Equal(t, datastructure.Coordinate{Lat: 0, Lon: 0.02}, routes[0].Points[1])

		assert.Equal(t, datastructure.RouteID(northID), routes[1].ID)
		assert.Equal(t, datastructure.DefaultRouteColor, routes[1].Color)
		assert.Len(t, routes[1].Points, 3)

		assert.False(t, routes[2].IsActive())
	})

	t.Run("points are rejected", func(t *testing.T) {
		_, err := importer.ReadGeoJSON(strings.NewReader(`{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [0, 0]}}]}`))
		assert.Error(t, err)
	})

	t.Run("non uuid ids are rejected", func(t *testing.T) {
		_, err := importer.ReadGeoJSON(strings.NewReader(`{"type": "FeatureCollection", "features": [
			{"type": "Feature", "id": "abc", "properties": {}, "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}}]}`))
		assert.Error(t, err)
	})
}

func TestReadPointLists(t *testing.T) {
	t.Run("lat lng objects", func(t *testing.T) {
		routes, err := importer.ReadPointLists(strings.NewReader(`[
			{"name": "Green", "points_color": "#00ff00", "points": [{"lat": -6.2, "lng": 106.8}, {"lat": -6.21, "lng": 106.81}]},
			{"name": "Blue", "points": [{"lat": -6.3, "lon": 106.9}, {"lat": -6.31, "lon": 106.91}]}
		]`))
		require.NoError(t, err)
		require.Len(t, routes, 2)
		assert.Equal(t, "#00ff00", routes[0].Color)
		assert.Equal(t, datastructure.Coordinate{Lat: -6.31, Lon: 106.91}, routes[1].Points[1])
		assert.NotEqual(t, routes[0].ID, routes[1].ID)
	})

	t.Run("out of range coordinates", func(t *testing.T) {
		_, err := importer.ReadPointLists(strings.NewReader(`[{"name": "x", "points": [{"lat": 95, "lng": 0}, {"lat": 0, "lng": 0}]}]`))
		assert.Error(t, err)
	})

	t.Run("a single point is not a route", func(t *testing.T) {
		_, err := importer.ReadPointLists(strings.NewReader(`[{"name": "x", "points": [{"lat": 0, "lng": 0}]}]`))
		assert.Error(t, err)
	})
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	store := kv.NewKVDB(db, kv.WithoutProgress())
	defer store.Close()

	routes, err := importer.ReadGeoJSON(strings.NewReader(collection))
	require.NoError(t, err)

	im := importer.NewImporter(store, adjacency.NewBuilder(2), 10, slog.New(slog.NewTextHandler(io.Discard, nil)))
	edges, err := im.Import(ctx, routes)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.Edge{datastructure.NewEdge(eastID, northID)}, edges)

	adj, err := store.GetAdjacent(ctx, eastID)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.RouteID{northID}, adj)

	radius, ok, err := store.AdjacencyRadius(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10.0, radius)
}

func newStore(t *testing.T) *kv.KVDB {
	t.Helper()
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	store := kv.NewKVDB(db, kv.WithoutProgress())
	t.Cleanup(store.Close)
	return store
}

func routesByID(t *testing.T) map[datastructure.RouteID]datastructure.Route {
	t.Helper()
	routes, err := importer.ReadGeoJSON(strings.NewReader(collection))
	require.NoError(t, err)
	byID := make(map[datastructure.RouteID]datastructure.Route, len(routes))
	for _, r := range routes {
		byID[r.ID] = r
	}
	return byID
}

// gatedBuilder holds its first Build until release is closed.
type gatedBuilder struct {
	*adjacency.Builder
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBuilder) Build(ctx context.Context, routes []datastructure.Route, radius float64) ([]datastructure.Edge, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Builder.Build(ctx, routes, radius)
}

func TestImportConcurrent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	byID := routesByID(t)

	builder := &gatedBuilder{
		Builder: adjacency.NewBuilder(2),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	im := importer.NewImporter(store, builder, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := im.Import(ctx, []datastructure.Route{byID[eastID]})
		assert.NoError(t, err)
	}()
	<-builder.entered

	// the second import starts while the first one is rebuilding from a
	// catalog snapshot that does not hold the north route yet
	go func() {
		defer wg.Done()
		_, err := im.Import(ctx, []datastructure.Route{byID[northID]})
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)
	close(builder.release)
	wg.Wait()

	adj, err := store.GetAdjacent(ctx, northID)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.RouteID{eastID}, adj)

	adj, err = store.GetAdjacent(ctx, eastID)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.RouteID{northID}, adj)
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	byID := routesByID(t)
	im := importer.NewImporter(store, adjacency.NewBuilder(2), 10, slog.New(slog.NewTextHandler(io.Discard, nil)))

	edges, err := im.Insert(ctx, []datastructure.Route{byID[eastID]})
	require.NoError(t, err)
	assert.Empty(t, edges)

	t.Run("new id is stored and linked", func(t *testing.T) {
		edges, err := im.Insert(ctx, []datastructure.Route{byID[northID]})
		require.NoError(t, err)
		assert.Equal(t, []datastructure.Edge{datastructure.NewEdge(eastID, northID)}, edges)
	})

	t.Run("existing id is a conflict", func(t *testing.T) {
		dup := byID[farID]
		dup.ID = eastID
		dup.Status = datastructure.RouteStatusActive

		_, err := im.Insert(ctx, []datastructure.Route{dup})
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrConflict))

		got, err := store.GetRoute(ctx, eastID)
		require.NoError(t, err)
		assert.Equal(t, byID[eastID], got)

		adj, err := store.GetAdjacent(ctx, eastID)
		require.NoError(t, err)
		assert.Equal(t, []datastructure.RouteID{northID}, adj)
	})

	t.Run("import still replaces", func(t *testing.T) {
		renamed := byID[eastID]
		renamed.Name = "East Express"
		_, err := im.Import(ctx, []datastructure.Route{renamed})
		require.NoError(t, err)

		got, err := store.GetRoute(ctx, eastID)
		require.NoError(t, err)
		assert.Equal(t, "East Express", got.Name)
	})
}
