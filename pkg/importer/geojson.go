package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/server"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ReadGeoJSON reads a FeatureCollection of LineString or MultiLineString
// features. Properties name, color (or points_color) and status are used when
// present. A feature without a uuid id gets a fresh one.
func ReadGeoJSON(r io.Reader) ([]datastructure.Route, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrBadParamInput, "read geojson")
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrBadParamInput, "decode geojson")
	}

	routes := make([]datastructure.Route, 0, len(fc.Features))
	for i, f := range fc.Features {
		var line []datastructure.Coordinate
		switch g := f.Geometry.(type) {
		case orb.LineString:
			line = fromLineString(g)
		case orb.MultiLineString:
			for _, ls := range g {
				line = appendJoined(line, fromLineString(ls))
			}
		default:
			return nil, server.WrapErrorf(nil, server.ErrBadParamInput, "feature %d: unsupported geometry %T", i, f.Geometry)
		}

		id, err := routeID(f.ID, f.Properties.MustString("id", ""))
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrBadParamInput, "feature %d", i)
		}
		route, err := newRoute(id, f.Properties.MustString("name", ""), line,
			firstNonEmpty(f.Properties.MustString("color", ""), f.Properties.MustString("points_color", "")),
			f.Properties.MustString("status", ""))
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrBadParamInput, "feature %d", i)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

type pointRecord struct {
	Lat float64  `json:"lat"`
	Lon *float64 `json:"lon"`
	Lng *float64 `json:"lng"`
}

type routeRecord struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Color       string        `json:"color"`
	PointsColor string        `json:"points_color"`
	Status      string        `json:"status"`
	Points      []pointRecord `json:"points"`
}

// ReadPointLists reads a JSON array of routes whose points are {lat, lng} or
// {lat, lon} objects.
func ReadPointLists(r io.Reader) ([]datastructure.Route, error) {
	var records []routeRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, server.WrapErrorf(err, server.ErrBadParamInput, "decode route points")
	}

	routes := make([]datastructure.Route, 0, len(records))
	for i, rec := range records {
		line := make([]datastructure.Coordinate, 0, len(rec.Points))
		for j, p := range rec.Points {
			lon := p.Lon
			if lon == nil {
				lon = p.Lng
			}
			if lon == nil {
				return nil, server.WrapErrorf(nil, server.ErrBadParamInput, "route %d point %d: missing longitude", i, j)
			}
			c, err := datastructure.NewCoordinate(p.Lat, *lon)
			if err != nil {
				return nil, server.WrapErrorf(err, server.ErrBadParamInput, "route %d point %d", i, j)
			}
			line = append(line, c)
		}

		id, err := routeID(nil, rec.ID)
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrBadParamInput, "route %d", i)
		}
		route, err := newRoute(id, rec.Name, line, firstNonEmpty(rec.Color, rec.PointsColor), rec.Status)
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrBadParamInput, "route %d", i)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func fromLineString(ls orb.LineString) []datastructure.Coordinate {
	line := make([]datastructure.Coordinate, 0, len(ls))
	for _, p := range ls {
		line = append(line, datastructure.Coordinate{Lat: p.Lat(), Lon: p.Lon()})
	}
	return line
}

// appendJoined appends next to line, dropping the shared vertex where the parts touch.
func appendJoined(line, next []datastructure.Coordinate) []datastructure.Coordinate {
	if len(line) > 0 && len(next) > 0 && line[len(line)-1] == next[0] {
		next = next[1:]
	}
	return append(line, next...)
}

func routeID(featureID interface{}, prop string) (datastructure.RouteID, error) {
	raw := prop
	if s, ok := featureID.(string); ok && s != "" {
		raw = s
	}
	if raw == "" {
		return datastructure.RouteID(uuid.New().String()), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("route id %q is not a uuid: %w", raw, err)
	}
	return datastructure.RouteID(id.String()), nil
}

func newRoute(id datastructure.RouteID, name string, line []datastructure.Coordinate, color, status string) (datastructure.Route, error) {
	for _, c := range line {
		if _, err := datastructure.NewCoordinate(c.Lat, c.Lon); err != nil {
			return datastructure.Route{}, err
		}
	}
	route, err := datastructure.NewRoute(id, name, line)
	if err != nil {
		return datastructure.Route{}, err
	}
	if color != "" {
		route.Color = color
	}
	switch datastructure.RouteStatus(strings.ToLower(status)) {
	case "", datastructure.RouteStatusActive:
	case datastructure.RouteStatusInactive:
		route.Status = datastructure.RouteStatusInactive
	default:
		return datastructure.Route{}, fmt.Errorf("unknown route status %q", status)
	}
	return route, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
