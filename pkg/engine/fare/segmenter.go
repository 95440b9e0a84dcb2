package fare

import (
	"context"
	"errors"
	"math"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/geo"
	"lintang/routefare/pkg/server"
)

type GeometryEngine interface {
	ClosestPointFraction(ctx context.Context, line []datastructure.Coordinate, point datastructure.Coordinate) (float64, error)
	Substring(ctx context.Context, line []datastructure.Coordinate, a, b float64) ([]datastructure.Coordinate, error)
	LengthMeters(ctx context.Context, line []datastructure.Coordinate) (float64, error)
	IntersectionPoints(ctx context.Context, a, b []datastructure.Coordinate, radius float64) ([]datastructure.Coordinate, error)
}

type RouteSource interface {
	Routes(ctx context.Context, ids []datastructure.RouteID) ([]datastructure.Route, error)
}

type Segmenter struct {
	engine GeometryEngine
	routes RouteSource
	// lower bound of the transfer search radius, the radius adjacency was built with
	adjacencyRadius float64
}

func NewSegmenter(engine GeometryEngine, routes RouteSource, adjacencyRadius float64) *Segmenter {
	return &Segmenter{
		engine:          engine,
		routes:          routes,
		adjacencyRadius: adjacencyRadius,
	}
}

// Segment splits the travel along path into one fare per route.
func (s *Segmenter) Segment(ctx context.Context, path datastructure.Path, origin, destination datastructure.Coordinate, radius float64) (datastructure.Itinerary, error) {
	if path.Len() == 0 {
		return datastructure.Itinerary{}, server.WrapErrorf(nil, server.ErrBadParamInput, "empty path")
	}
	routes, err := s.routes.Routes(ctx, path.IDs())
	if err != nil {
		return datastructure.Itinerary{}, err
	}

	var fares []datastructure.Fare
	if path.Len() == 1 {
		f, err := s.singleRoute(ctx, routes[0], origin, destination)
		if err != nil {
			return datastructure.Itinerary{}, err
		}
		fares = []datastructure.Fare{f}
	} else {
		fares, err = s.multiRoute(ctx, routes, origin, destination, radius)
		if err != nil {
			return datastructure.Itinerary{}, err
		}
	}
	return datastructure.Itinerary{Path: path, Fares: fares}, nil
}

func (s *Segmenter) singleRoute(ctx context.Context, route datastructure.Route, origin, destination datastructure.Coordinate) (datastructure.Fare, error) {
	distance, err := s.DistanceAlong(ctx, route, origin, destination)
	if err != nil {
		return datastructure.Fare{}, err
	}
	return datastructure.NewFare(route, destination, distance)
}

// multiRoute ends every leg but the last at the transfer point to the next
// route. Each leg is measured from where the previous one ended.
func (s *Segmenter) multiRoute(ctx context.Context, routes []datastructure.Route, origin, destination datastructure.Coordinate, radius float64) ([]datastructure.Fare, error) {
	transferRadius := math.Max(radius, s.adjacencyRadius)

	fares := make([]datastructure.Fare, 0, len(routes))
	start := origin
	for i, route := range routes {
		end := destination
		if i < len(routes)-1 {
			next := routes[i+1]
			transfer, err := s.transferPoint(ctx, route, next, start, transferRadius)
			if err != nil {
				return nil, err
			}
			end = transfer
		}

		distance, err := s.DistanceAlong(ctx, route, start, end)
		if err != nil {
			return nil, err
		}
		f, err := datastructure.NewFare(route, end, distance)
		if err != nil {
			return nil, err
		}
		fares = append(fares, f)
		start = end
	}
	return fares, nil
}

// transferPoint picks, among the points where route meets next, the one
// nearest to start. Candidates come ordered along route so the first of
// equally near points wins.
func (s *Segmenter) transferPoint(ctx context.Context, route, next datastructure.Route, start datastructure.Coordinate, radius float64) (datastructure.Coordinate, error) {
	candidates, err := s.engine.IntersectionPoints(ctx, route.Points, next.Points, radius)
	if err != nil {
		return datastructure.Coordinate{}, geometryError(err, "intersection of %s and %s", route.ID, next.ID)
	}
	if len(candidates) == 0 {
		return datastructure.Coordinate{}, server.WrapErrorf(nil, server.ErrGeometryComputationFailed,
			"routes %s and %s do not meet within %v meters", route.ID, next.ID, radius)
	}

	startLoc := geo.NewLocation(start.Lat, start.Lon)
	best := candidates[0]
	bestDist := math.Inf(1)
	for _, c := range candidates {
		d := geo.HaversineDistance(startLoc, geo.NewLocation(c.Lat, c.Lon))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, nil
}

// DistanceAlong is the length in meters of route between the projections of a
// and b, whichever comes first along the route.
func (s *Segmenter) DistanceAlong(ctx context.Context, route datastructure.Route, a, b datastructure.Coordinate) (float64, error) {
	line := route.Line()
	fa, err := s.engine.ClosestPointFraction(ctx, line, a)
	if err != nil {
		return 0, geometryError(err, "locate (%v, %v) on route %s", a.Lat, a.Lon, route.ID)
	}
	fb, err := s.engine.ClosestPointFraction(ctx, line, b)
	if err != nil {
		return 0, geometryError(err, "locate (%v, %v) on route %s", b.Lat, b.Lon, route.ID)
	}
	if fa > fb {
		fa, fb = fb, fa
	}

	part, err := s.engine.Substring(ctx, line, fa, fb)
	if err != nil {
		return 0, geometryError(err, "substring [%v, %v] of route %s", fa, fb, route.ID)
	}
	length, err := s.engine.LengthMeters(ctx, part)
	if err != nil {
		return 0, geometryError(err, "length of route %s between [%v, %v]", route.ID, fa, fb)
	}
	if math.IsNaN(length) || math.IsInf(length, 0) || length < 0 {
		return 0, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "invalid length %v on route %s", length, route.ID)
	}
	return length, nil
}

// geometryError keeps timeouts and catalog failures as they are and labels
// everything else as a geometry failure.
func geometryError(err error, format string, a ...interface{}) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return server.WrapErrorf(err, server.ErrTimeout, format, a...)
	case server.HasCode(err, server.ErrTimeout),
		server.HasCode(err, server.ErrCatalogUnavailable),
		server.HasCode(err, server.ErrGeometryComputationFailed):
		return err
	}
	return server.WrapErrorf(err, server.ErrGeometryComputationFailed, format, a...)
}
