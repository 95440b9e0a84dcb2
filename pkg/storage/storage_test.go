package storage_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"lintang/routefare/pkg/config"
	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/geo"
	"lintang/routefare/pkg/importer"
	"lintang/routefare/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPebble(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.Storage.PebbleDir = filepath.Join(t.TempDir(), "db")

	b, err := storage.Open(ctx, cfg, false, log)
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &geo.S2Engine{}, b.Engine)

	radius, err := b.AdjacencyRadius(ctx, 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, radius)

	east, err := datastructure.NewRoute("east", "east", []datastructure.Coordinate{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.02}})
	require.NoError(t, err)
	north, err := datastructure.NewRoute("north", "north", []datastructure.Coordinate{{Lat: -0.01, Lon: 0.01}, {Lat: 0.01, Lon: 0.01}})
	require.NoError(t, err)

	edges, err := importer.NewImporter(b.Catalog, b.Builder, 10, log).Import(ctx, []datastructure.Route{east, north})
	require.NoError(t, err)
	assert.Equal(t, []datastructure.Edge{datastructure.NewEdge("east", "north")}, edges)

	radius, err = b.AdjacencyRadius(ctx, 25)
	require.NoError(t, err)
	assert.Equal(t, 10.0, radius)

	adj, err := b.Catalog.GetAdjacent(ctx, "east")
	require.NoError(t, err)
	assert.Equal(t, []datastructure.RouteID{"north"}, adj)
}
