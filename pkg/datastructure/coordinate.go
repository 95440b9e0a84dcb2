package datastructure

import (
	"math"

	"lintang/routefare/pkg/server"
)

// Coordinate is a WGS-84 point in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate validates the latitude/longitude ranges.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return Coordinate{}, server.WrapErrorf(nil, server.ErrBadParamInput, "coordinate must be finite, got (%v, %v)", lat, lon)
	}
	if lat < -90 || lat > 90 {
		return Coordinate{}, server.WrapErrorf(nil, server.ErrBadParamInput, "latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinate{}, server.WrapErrorf(nil, server.ErrBadParamInput, "longitude %v out of range [-180, 180]", lon)
	}
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}, nil
}

// MustCoordinate is NewCoordinate for literals known to be valid.
func MustCoordinate(lat, lon float64) Coordinate {
	c, err := NewCoordinate(lat, lon)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Coordinate) LatLon() []float64 {
	return []float64{c.Lat, c.Lon}
}
