package postgis

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strconv"
	"time"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/server"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

//go:embed schema.sql
var schema string

const metaAdjacencyRadius = "adjacency_radius"

// Open connects to postgres and checks the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrCatalogUnavailable, "open postgres")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, server.WrapErrorf(err, server.ErrCatalogUnavailable, "ping postgres")
	}
	return db, nil
}

// dbError labels a driver error. Context errors become timeouts.
func dbError(err error, format string, a ...interface{}) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return server.WrapErrorf(err, server.ErrTimeout, format, a...)
	}
	return server.WrapErrorf(err, server.ErrCatalogUnavailable, format, a...)
}

type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) DB() *sql.DB {
	return c.db
}

func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return dbError(err, "apply schema")
	}
	return nil
}

// FindRoutesNear returns the active routes within radius meters of p.
func (c *Catalog) FindRoutesNear(ctx context.Context, p datastructure.Coordinate, radius float64) ([]datastructure.RouteID, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id FROM routes
		WHERE status = 'active'
		AND ST_DWithin(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY id`, p.Lon, p.Lat, radius)
	if err != nil {
		return nil, dbError(err, "find routes near (%v, %v)", p.Lat, p.Lon)
	}
	return scanIDs(rows)
}

func (c *Catalog) GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error) {
	if _, err := uuid.Parse(string(id)); err != nil {
		return datastructure.Route{}, server.WrapErrorf(err, server.ErrNotFound, "route %s not found", id)
	}
	row := c.db.QueryRowContext(ctx, `
		SELECT id, name, points_color, status, ST_AsText(geom::geometry)
		FROM routes WHERE id = $1`, string(id))
	r, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return datastructure.Route{}, server.WrapErrorf(err, server.ErrNotFound, "route %s not found", id)
	}
	if err != nil {
		return datastructure.Route{}, dbError(err, "get route %s", id)
	}
	return r, nil
}

// GetAdjacent returns the active neighbours of id.
func (c *Catalog) GetAdjacent(ctx context.Context, id datastructure.RouteID) ([]datastructure.RouteID, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT e.b FROM route_edges e
		JOIN routes r ON r.id = e.b
		WHERE e.a = $1 AND r.status = 'active'
		ORDER BY e.b`, string(id))
	if err != nil {
		return nil, dbError(err, "adjacent routes of %s", id)
	}
	return scanIDs(rows)
}

// AllRoutes returns active routes ordered by name.
func (c *Catalog) AllRoutes(ctx context.Context) ([]datastructure.Route, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, points_color, status, ST_AsText(geom::geometry)
		FROM routes WHERE status = 'active'
		ORDER BY name, id`)
	if err != nil {
		return nil, dbError(err, "list routes")
	}
	defer rows.Close()

	routes := []datastructure.Route{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, dbError(err, "scan route")
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "list routes")
	}
	return routes, nil
}

func (c *Catalog) SaveRoutes(ctx context.Context, routes []datastructure.Route) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "begin save routes")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO routes (id, name, points_color, status, geom)
		VALUES ($1, $2, $3, $4, ST_GeomFromText($5, 4326)::geography)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			points_color = EXCLUDED.points_color,
			status = EXCLUDED.status,
			geom = EXCLUDED.geom,
			updated_at = now()`)
	if err != nil {
		return dbError(err, "prepare save routes")
	}
	defer stmt.Close()

	for _, r := range routes {
		if _, err := stmt.ExecContext(ctx, string(r.ID), r.Name, r.Color, string(r.Status), LineWKT(r.Points)); err != nil {
			return dbError(err, "save route %s", r.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return dbError(err, "commit routes")
	}
	return nil
}

// SaveAdjacency replaces the whole edge relation.
func (c *Catalog) SaveAdjacency(ctx context.Context, edges []datastructure.Edge, radius float64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "begin save adjacency")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM route_edges`); err != nil {
		return dbError(err, "clear adjacency")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO route_edges (a, b) VALUES ($1, $2), ($2, $1) ON CONFLICT DO NOTHING`)
	if err != nil {
		return dbError(err, "prepare save adjacency")
	}
	defer stmt.Close()

	for _, e := range edges {
		if e.A == e.B {
			continue
		}
		if _, err := stmt.ExecContext(ctx, string(e.A), string(e.B)); err != nil {
			return dbError(err, "save edge %s-%s", e.A, e.B)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO catalog_meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		metaAdjacencyRadius, strconv.FormatFloat(radius, 'f', -1, 64)); err != nil {
		return dbError(err, "save adjacency radius")
	}
	if err := tx.Commit(); err != nil {
		return dbError(err, "commit adjacency")
	}
	return nil
}

// BuildAdjacency recomputes the edge relation inside postgis with ST_DWithin,
// the same relation adjacency.Builder produces in process.
func (c *Catalog) BuildAdjacency(ctx context.Context, radius float64) ([]datastructure.Edge, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT r1.id, r2.id FROM routes r1
		JOIN routes r2 ON r1.id < r2.id
		WHERE r1.status = 'active' AND r2.status = 'active'
		AND ST_DWithin(r1.geom, r2.geom, $1)
		ORDER BY r1.id, r2.id`, radius)
	if err != nil {
		return nil, dbError(err, "build adjacency")
	}
	defer rows.Close()

	edges := []datastructure.Edge{}
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, dbError(err, "scan edge")
		}
		edges = append(edges, datastructure.NewEdge(datastructure.RouteID(a), datastructure.RouteID(b)))
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "build adjacency")
	}
	return edges, nil
}

// SQLBuilder computes adjacency inside postgis for the routes already saved.
type SQLBuilder struct {
	catalog *Catalog
}

func (c *Catalog) SQLBuilder() SQLBuilder {
	return SQLBuilder{catalog: c}
}

func (b SQLBuilder) Build(ctx context.Context, _ []datastructure.Route, radius float64) ([]datastructure.Edge, error) {
	if radius < 0 {
		return nil, server.WrapErrorf(nil, server.ErrBadParamInput, "invalid adjacency radius %v", radius)
	}
	return b.catalog.BuildAdjacency(ctx, radius)
}

func (c *Catalog) AdjacencyRadius(ctx context.Context) (float64, bool, error) {
	var v string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM catalog_meta WHERE key = $1`, metaAdjacencyRadius).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, dbError(err, "read adjacency radius")
	}
	radius, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, server.WrapErrorf(err, server.ErrCatalogUnavailable, "parse adjacency radius")
	}
	return radius, true, nil
}

func (c *Catalog) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return dbError(err, "ping postgres")
	}
	return nil
}

func (c *Catalog) Close() {
	c.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoute(row rowScanner) (datastructure.Route, error) {
	var id, name, color, status, geomWKT string
	if err := row.Scan(&id, &name, &color, &status, &geomWKT); err != nil {
		return datastructure.Route{}, err
	}
	line, err := ParseLineWKT(geomWKT)
	if err != nil {
		return datastructure.Route{}, err
	}
	return datastructure.Route{
		ID:     datastructure.RouteID(id),
		Name:   name,
		Color:  color,
		Status: datastructure.RouteStatus(status),
		Points: line,
	}, nil
}

func scanIDs(rows *sql.Rows) ([]datastructure.RouteID, error) {
	defer rows.Close()
	ids := []datastructure.RouteID{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbError(err, "scan route id")
		}
		ids = append(ids, datastructure.RouteID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "read route ids")
	}
	return ids, nil
}

// LineWKT renders a line as a WKT LINESTRING, lon before lat.
func LineWKT(line []datastructure.Coordinate) string {
	ls := make(orb.LineString, len(line))
	for i, c := range line {
		ls[i] = orb.Point{c.Lon, c.Lat}
	}
	return wkt.MarshalString(ls)
}

// ParseLineWKT reads a LINESTRING, or a POINT as a collapsed two point line.
func ParseLineWKT(s string) ([]datastructure.Coordinate, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, err
	}
	switch g := g.(type) {
	case orb.LineString:
		line := make([]datastructure.Coordinate, len(g))
		for i, p := range g {
			line[i] = datastructure.Coordinate{Lat: p.Lat(), Lon: p.Lon()}
		}
		return line, nil
	case orb.Point:
		c := datastructure.Coordinate{Lat: g.Lat(), Lon: g.Lon()}
		return []datastructure.Coordinate{c, c}, nil
	}
	return nil, errors.New("unexpected geometry " + g.GeoJSONType())
}
