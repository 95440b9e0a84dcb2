package fare_test

import (
	"context"
	"math"
	"testing"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/engine/fare"
	"lintang/routefare/pkg/geo"
	"lintang/routefare/pkg/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeMap map[datastructure.RouteID]datastructure.Route

func (m routeMap) Routes(ctx context.Context, ids []datastructure.RouteID) ([]datastructure.Route, error) {
	res := make([]datastructure.Route, 0, len(ids))
	for _, id := range ids {
		r, ok := m[id]
		if !ok {
			return nil, server.WrapErrorf(nil, server.ErrCatalogUnavailable, "route %s missing", id)
		}
		res = append(res, r)
	}
	return res, nil
}

// 1000 meters of equator, in degrees of longitude
var kmLon = 1000.0 / 6371000.0 * 180.0 / math.Pi

func mustRoute(t *testing.T, id datastructure.RouteID, points ...datastructure.Coordinate) datastructure.Route {
	t.Helper()
	r, err := datastructure.NewRoute(id, string(id), points)
	require.NoError(t, err)
	return r
}

func mustPath(t *testing.T, ids ...datastructure.RouteID) datastructure.Path {
	t.Helper()
	p, err := datastructure.NewPath(ids...)
	require.NoError(t, err)
	return p
}

func meters(a, b datastructure.Coordinate) float64 {
	return geo.HaversineDistance(geo.NewLocation(a.Lat, a.Lon), geo.NewLocation(b.Lat, b.Lon)) * 1000
}

func TestSegmentSingleRoute(t *testing.T) {
	ctx := context.Background()
	straight := mustRoute(t, "A",
		datastructure.Coordinate{Lat: 0, Lon: 0},
		datastructure.Coordinate{Lat: 0, Lon: kmLon / 2},
		datastructure.Coordinate{Lat: 0, Lon: kmLon},
	)
	seg := fare.NewSegmenter(geo.NewS2Engine(), routeMap{"A": straight}, 10)

	origin := datastructure.Coordinate{Lat: 0.0001, Lon: 0.2 * kmLon}
	destination := datastructure.Coordinate{Lat: -0.0001, Lon: 0.8 * kmLon}

	t.Run("fractions 0.2 and 0.8 of a 1000 meter line give 600 meters", func(t *testing.T) {
		it, err := seg.Segment(ctx, mustPath(t, "A"), origin, destination, 50)
		require.NoError(t, err)
		require.Len(t, it.Fares, 1)
		assert.InDelta(t, 600, it.Fares[0].Distance, 0.5)
		assert.Equal(t, destination, it.Fares[0].Boundary)
		assert.Equal(t, datastructure.RouteID("A"), it.Fares[0].Route.ID)
	})

	t.Run("distance is symmetric in origin and destination", func(t *testing.T) {
		there, err := seg.DistanceAlong(ctx, straight, origin, destination)
		require.NoError(t, err)
		back, err := seg.DistanceAlong(ctx, straight, destination, origin)
		require.NoError(t, err)
		assert.InDelta(t, there, back, 1e-6)
	})

	t.Run("points beyond the ends clamp to the line", func(t *testing.T) {
		d, err := seg.DistanceAlong(ctx, straight,
			datastructure.Coordinate{Lat: 0, Lon: -0.01},
			datastructure.Coordinate{Lat: 0, Lon: kmLon + 0.01})
		require.NoError(t, err)
		assert.InDelta(t, 1000, d, 0.5)
	})
}

func TestSegmentMultiRoute(t *testing.T) {
	ctx := context.Background()
	east := mustRoute(t, "east",
		datastructure.Coordinate{Lat: 0, Lon: 0},
		datastructure.Coordinate{Lat: 0, Lon: 0.02},
	)
	north := mustRoute(t, "north",
		datastructure.Coordinate{Lat: -0.01, Lon: 0.01},
		datastructure.Coordinate{Lat: 0.01, Lon: 0.01},
	)
	far := mustRoute(t, "far",
		datastructure.Coordinate{Lat: 1, Lon: 1},
		datastructure.Coordinate{Lat: 1.01, Lon: 1},
	)
	seg := fare.NewSegmenter(geo.NewS2Engine(), routeMap{"east": east, "north": north, "far": far}, 10)

	origin := datastructure.Coordinate{Lat: 0, Lon: 0.001}
	destination := datastructure.Coordinate{Lat: 0.008, Lon: 0.01}
	transfer := datastructure.Coordinate{Lat: 0, Lon: 0.01}

	t.Run("legs end at the transfer point then at the destination", func(t *testing.T) {
		it, err := seg.Segment(ctx, mustPath(t, "east", "north"), origin, destination, 50)
		require.NoError(t, err)
		require.Len(t, it.Fares, 2)

		assert.Equal(t, datastructure.RouteID("east"), it.Fares[0].Route.ID)
		assert.InDelta(t, transfer.Lat, it.Fares[0].Boundary.Lat, 1e-9)
		assert.InDelta(t, transfer.Lon, it.Fares[0].Boundary.Lon, 1e-9)
		assert.InDelta(t, meters(origin, transfer), it.Fares[0].Distance, 1)

		assert.Equal(t, datastructure.RouteID("north"), it.Fares[1].Route.ID)
		assert.Equal(t, destination, it.Fares[1].Boundary)
		assert.InDelta(t, meters(transfer, destination), it.Fares[1].Distance, 1)

		total := it.TotalDistance()
		assert.False(t, math.IsNaN(total) || math.IsInf(total, 0))
		for _, f := range it.Fares {
			assert.GreaterOrEqual(t, f.Distance, 0.0)
		}
	})

	t.Run("routes that never meet fail the candidate", func(t *testing.T) {
		_, err := seg.Segment(ctx, mustPath(t, "east", "far"), origin, destination, 50)
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrGeometryComputationFailed))
	})

	t.Run("unknown route is a catalog failure", func(t *testing.T) {
		_, err := seg.Segment(ctx, mustPath(t, "east", "ghost"), origin, destination, 50)
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrCatalogUnavailable))
	})

	t.Run("expired context is a timeout", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := seg.Segment(cctx, mustPath(t, "east", "north"), origin, destination, 50)
		require.Error(t, err)
		assert.True(t, server.HasCode(err, server.ErrTimeout))
	})
}
