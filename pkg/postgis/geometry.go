package postgis

import (
	"context"
	"database/sql"
	"math"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/geo"
	"lintang/routefare/pkg/server"
)

// meeting points closer than this many meters are one point
const samePointMeters = 0.001

// GeometryEngine runs the fare geometry in postgis. Lines travel as WKT in
// SRID 4326, lengths are measured on the geography type.
type GeometryEngine struct {
	db *sql.DB
}

func NewGeometryEngine(db *sql.DB) *GeometryEngine {
	return &GeometryEngine{db: db}
}

func checkLine(line []datastructure.Coordinate) error {
	if len(line) < 2 {
		return server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "line needs at least 2 points, got %d", len(line))
	}
	return nil
}

func (e *GeometryEngine) ClosestPointFraction(ctx context.Context, line []datastructure.Coordinate, point datastructure.Coordinate) (float64, error) {
	if err := checkLine(line); err != nil {
		return 0, err
	}
	var frac sql.NullFloat64
	err := e.db.QueryRowContext(ctx, `
		SELECT ST_LineLocatePoint(g, ST_ClosestPoint(g, p))
		FROM (SELECT ST_GeomFromText($1, 4326) AS g,
		             ST_SetSRID(ST_MakePoint($2, $3), 4326) AS p) t`,
		LineWKT(line), point.Lon, point.Lat).Scan(&frac)
	if err != nil {
		return 0, dbError(err, "locate (%v, %v) on line", point.Lat, point.Lon)
	}
	if !frac.Valid || math.IsNaN(frac.Float64) {
		return 0, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "cannot locate (%v, %v) on line", point.Lat, point.Lon)
	}
	return math.Min(1, math.Max(0, frac.Float64)), nil
}

func (e *GeometryEngine) Substring(ctx context.Context, line []datastructure.Coordinate, a, b float64) ([]datastructure.Coordinate, error) {
	if err := checkLine(line); err != nil {
		return nil, err
	}
	if a < 0 || b > 1 || a > b || math.IsNaN(a) || math.IsNaN(b) {
		return nil, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "invalid substring fractions [%v, %v]", a, b)
	}
	var part sql.NullString
	err := e.db.QueryRowContext(ctx, `SELECT ST_AsText(ST_LineSubstring(ST_GeomFromText($1, 4326), $2, $3))`,
		LineWKT(line), a, b).Scan(&part)
	if err != nil {
		return nil, dbError(err, "substring [%v, %v]", a, b)
	}
	if !part.Valid {
		return nil, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "empty substring [%v, %v]", a, b)
	}
	res, err := ParseLineWKT(part.String)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrGeometryComputationFailed, "parse substring")
	}
	return res, nil
}

func (e *GeometryEngine) LengthMeters(ctx context.Context, line []datastructure.Coordinate) (float64, error) {
	if len(line) == 0 {
		return 0, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "empty line")
	}
	if len(line) == 1 {
		return 0, nil
	}
	var length sql.NullFloat64
	err := e.db.QueryRowContext(ctx, `SELECT ST_Length(ST_GeomFromText($1, 4326)::geography)`, LineWKT(line)).Scan(&length)
	if err != nil {
		return 0, dbError(err, "line length")
	}
	if !length.Valid || math.IsNaN(length.Float64) || math.IsInf(length.Float64, 0) || length.Float64 < 0 {
		return 0, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "invalid line length")
	}
	return length.Float64, nil
}

// IntersectionPoints returns the crossings of a and b plus the point of a
// closest to b, ordered along a, when the lines come within radius meters.
func (e *GeometryEngine) IntersectionPoints(ctx context.Context, a, b []datastructure.Coordinate, radius float64) ([]datastructure.Coordinate, error) {
	if err := checkLine(a); err != nil {
		return nil, err
	}
	if err := checkLine(b); err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, `
		WITH g AS (
			SELECT ST_GeomFromText($1, 4326) AS a, ST_GeomFromText($2, 4326) AS b
		),
		near AS (
			SELECT a, b FROM g WHERE ST_DWithin(a::geography, b::geography, $3)
		),
		pts AS (
			SELECT (ST_Dump(ST_Intersection(a, b))).geom AS p, a FROM near
			UNION ALL
			SELECT ST_ClosestPoint(a, b) AS p, a FROM near
		)
		SELECT ST_Y(p), ST_X(p) FROM pts
		WHERE GeometryType(p) = 'POINT'
		ORDER BY ST_LineLocatePoint(a, p)`, LineWKT(a), LineWKT(b), radius)
	if err != nil {
		return nil, dbError(err, "intersection points")
	}
	defer rows.Close()

	res := []datastructure.Coordinate{}
	for rows.Next() {
		var c datastructure.Coordinate
		if err := rows.Scan(&c.Lat, &c.Lon); err != nil {
			return nil, dbError(err, "scan intersection point")
		}
		if !containsNear(res, c) {
			res = append(res, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "intersection points")
	}
	return res, nil
}

func containsNear(pts []datastructure.Coordinate, c datastructure.Coordinate) bool {
	loc := geo.NewLocation(c.Lat, c.Lon)
	for _, p := range pts {
		if geo.HaversineDistance(loc, geo.NewLocation(p.Lat, p.Lon))*1000 < samePointMeters {
			return true
		}
	}
	return false
}
