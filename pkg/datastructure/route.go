package datastructure

import (
	"lintang/routefare/pkg/server"

	"github.com/twpayne/go-polyline"
)

type RouteID string

type RouteStatus string

const (
	RouteStatusActive   RouteStatus = "active"
	RouteStatusInactive RouteStatus = "inactive"
)

const DefaultRouteColor = "#35badb"

// Route is a named polyline operated as one public transport line.
type Route struct {
	ID     RouteID      `json:"id"`
	Name   string       `json:"name"`
	Color  string       `json:"color"`
	Points []Coordinate `json:"points"`
	Status RouteStatus  `json:"status"`
}

func NewRoute(id RouteID, name string, points []Coordinate) (Route, error) {
	if id == "" {
		return Route{}, server.WrapErrorf(nil, server.ErrBadParamInput, "route id is required")
	}
	if len(points) < 2 {
		return Route{}, server.WrapErrorf(nil, server.ErrBadParamInput, "route %s needs at least 2 points, got %d", id, len(points))
	}
	pts := make([]Coordinate, len(points))
	copy(pts, points)
	return Route{
		ID:     id,
		Name:   name,
		Color:  DefaultRouteColor,
		Points: pts,
		Status: RouteStatusActive,
	}, nil
}

func (r Route) IsActive() bool {
	return r.Status == RouteStatusActive
}

// Line returns a copy of the route geometry.
func (r Route) Line() []Coordinate {
	line := make([]Coordinate, len(r.Points))
	copy(line, r.Points)
	return line
}

func (r Route) RenderPolyline() string {
	return RenderPath(r.Points)
}

func RenderPath(path []Coordinate) string {
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}

// Edge joins two routes whose geometries come within the adjacency radius.
// A is always the smaller id.
type Edge struct {
	A RouteID
	B RouteID
}

func NewEdge(a, b RouteID) Edge {
	if b < a {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}
