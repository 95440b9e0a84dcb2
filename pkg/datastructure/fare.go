package datastructure

import (
	"math"

	"lintang/routefare/pkg/server"
)

// Fare is one route's leg of an itinerary. Boundary is where travel on the
// route ends for this leg.
type Fare struct {
	Route    Route      `json:"route"`
	Boundary Coordinate `json:"boundary"`
	Distance float64    `json:"distance"` // meter
}

func NewFare(route Route, boundary Coordinate, distance float64) (Fare, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance < 0 {
		return Fare{}, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "invalid leg distance %v on route %s", distance, route.ID)
	}
	return Fare{
		Route:    route,
		Boundary: boundary,
		Distance: distance,
	}, nil
}

type Itinerary struct {
	Path  Path   `json:"-"`
	Fares []Fare `json:"fares"`
}

func (it Itinerary) TotalDistance() float64 {
	total := 0.0
	for _, f := range it.Fares {
		total += f.Distance
	}
	return total
}
