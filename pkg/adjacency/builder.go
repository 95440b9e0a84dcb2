package adjacency

import (
	"context"
	"math"
	"sort"

	"lintang/routefare/pkg/concurrent"
	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/geo"
	"lintang/routefare/pkg/server"

	"github.com/dhconnelly/rtreego"
)

// smallest side of a bounding box, rtreego rejects zero lengths
const minSideDeg = 1e-9

type routeRect struct {
	idx  int
	rect rtreego.Rect
}

func (r *routeRect) Bounds() rtreego.Rect {
	return r.rect
}

type Builder struct {
	workers int
}

func NewBuilder(workers int) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{workers: workers}
}

// boundingRect is the bbox of line grown by radius meters on every side.
func boundingRect(line []datastructure.Coordinate, radius float64) (rtreego.Rect, error) {
	minLat, minLon := math.Inf(1), math.Inf(1)
	maxLat, maxLon := math.Inf(-1), math.Inf(-1)
	for _, p := range line {
		minLat, maxLat = math.Min(minLat, p.Lat), math.Max(maxLat, p.Lat)
		minLon, maxLon = math.Min(minLon, p.Lon), math.Max(maxLon, p.Lon)
	}
	padLat := geo.MetersToLatDegrees(radius)
	padLon := geo.MetersToLonDegrees(radius, math.Max(math.Abs(minLat), math.Abs(maxLat)))

	corner := rtreego.Point{minLat - padLat, minLon - padLon}
	return rtreego.NewRect(corner, []float64{
		math.Max(maxLat-minLat+2*padLat, minSideDeg),
		math.Max(maxLon-minLon+2*padLon, minSideDeg),
	})
}

// Build returns every pair of routes whose geometries come within radius
// meters of each other, ordered by (A, B).
func (b *Builder) Build(ctx context.Context, routes []datastructure.Route, radius float64) ([]datastructure.Edge, error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, server.WrapErrorf(nil, server.ErrBadParamInput, "invalid adjacency radius %v", radius)
	}

	tree := rtreego.NewTree(2, 25, 50)
	rects := make([]*routeRect, len(routes))
	for i, r := range routes {
		rect, err := boundingRect(r.Points, radius)
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrGeometryComputationFailed, "bounding box of route %s", r.ID)
		}
		rects[i] = &routeRect{idx: i, rect: rect}
		tree.Insert(rects[i])
	}

	pairs := []concurrent.RoutePairJobItem{}
	for i, rr := range rects {
		for _, hit := range tree.SearchIntersect(rr.rect) {
			j := hit.(*routeRect).idx
			if j > i {
				pairs = append(pairs, concurrent.RoutePairJobItem{I: i, J: j})
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	workers := concurrent.NewWorkerPool[concurrent.RoutePairJobItem, *datastructure.Edge](b.workers, len(pairs))
	for _, p := range pairs {
		workers.AddJob(p)
	}
	workers.Close()

	workers.Start(func(p concurrent.RoutePairJobItem) *datastructure.Edge {
		if ctx.Err() != nil {
			return nil
		}
		a, c := routes[p.I], routes[p.J]
		if a.ID == c.ID || geo.MinDistanceMeters(a.Points, c.Points) > radius {
			return nil
		}
		e := datastructure.NewEdge(a.ID, c.ID)
		return &e
	})
	workers.Wait()

	edges := []datastructure.Edge{}
	for e := range workers.CollectResults() {
		if e != nil {
			edges = append(edges, *e)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges, nil
}
