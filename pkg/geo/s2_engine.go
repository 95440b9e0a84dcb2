package geo

import (
	"context"
	"math"
	"sort"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/server"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// candidates closer than this (radians, ~1mm) are the same meeting point
const samePointTolerance = 1.5e-10

// S2Engine is an in-process geometry engine on the unit sphere.
// Distances and lengths are geodesic meters.
type S2Engine struct{}

func NewS2Engine() *S2Engine {
	return &S2Engine{}
}

func toS2(c datastructure.Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
}

func fromS2(p s2.Point) datastructure.Coordinate {
	ll := s2.LatLngFromPoint(p)
	return datastructure.Coordinate{Lat: ll.Lat.Degrees(), Lon: ll.Lng.Degrees()}
}

type polyline struct {
	pts []s2.Point
	cum []float64 // radian distance from the first vertex
}

func newPolyline(line []datastructure.Coordinate) (polyline, error) {
	if len(line) < 2 {
		return polyline{}, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "line needs at least 2 points, got %d", len(line))
	}
	pl := polyline{
		pts: make([]s2.Point, len(line)),
		cum: make([]float64, len(line)),
	}
	for i, c := range line {
		pl.pts[i] = toS2(c)
		if i > 0 {
			pl.cum[i] = pl.cum[i-1] + pl.pts[i-1].Distance(pl.pts[i]).Radians()
		}
	}
	if pl.total() <= 0 {
		return polyline{}, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "line has zero length")
	}
	return pl, nil
}

func (pl polyline) total() float64 {
	return pl.cum[len(pl.cum)-1]
}

func projectOnSegment(x, a, b s2.Point) s2.Point {
	if a == b {
		return a
	}
	return s2.Project(x, a, b)
}

// project returns the point of the line closest to x and its radian distance
// along the line. Ties keep the earliest segment.
func (pl polyline) project(x s2.Point) (s2.Point, float64, float64) {
	best := math.Inf(1)
	var bestP s2.Point
	along := 0.0
	for i := 0; i+1 < len(pl.pts); i++ {
		a, b := pl.pts[i], pl.pts[i+1]
		proj := projectOnSegment(x, a, b)
		d := x.Distance(proj).Radians()
		if d < best {
			best = d
			bestP = proj
			along = pl.cum[i] + a.Distance(proj).Radians()
		}
	}
	return bestP, along, best
}

func (pl polyline) pointAt(dist float64) s2.Point {
	if dist <= 0 {
		return pl.pts[0]
	}
	for i := 0; i+1 < len(pl.pts); i++ {
		if dist <= pl.cum[i+1] {
			a, b := pl.pts[i], pl.pts[i+1]
			if a == b {
				return a
			}
			return s2.InterpolateAtDistance(s1.Angle(dist-pl.cum[i]), a, b)
		}
	}
	return pl.pts[len(pl.pts)-1]
}

func toCoordinates(pts []s2.Point) []datastructure.Coordinate {
	line := make([]datastructure.Coordinate, len(pts))
	for i, p := range pts {
		line[i] = fromS2(p)
	}
	return line
}

// ClosestPointFraction locates the point of line closest to point and returns
// its position as a fraction of the line length.
func (e *S2Engine) ClosestPointFraction(ctx context.Context, line []datastructure.Coordinate, point datastructure.Coordinate) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	pl, err := newPolyline(line)
	if err != nil {
		return 0, err
	}
	_, along, _ := pl.project(toS2(point))
	frac := along / pl.total()
	if math.IsNaN(frac) {
		return 0, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "cannot locate point (%v, %v) on line", point.Lat, point.Lon)
	}
	return math.Min(1, math.Max(0, frac)), nil
}

// Substring returns the portion of line between fractions a and b, a <= b.
func (e *S2Engine) Substring(ctx context.Context, line []datastructure.Coordinate, a, b float64) ([]datastructure.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a < 0 || b > 1 || a > b || math.IsNaN(a) || math.IsNaN(b) {
		return nil, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "invalid substring fractions [%v, %v]", a, b)
	}
	pl, err := newPolyline(line)
	if err != nil {
		return nil, err
	}
	da, db := a*pl.total(), b*pl.total()

	pts := []s2.Point{pl.pointAt(da)}
	for i := 1; i+1 < len(pl.pts); i++ {
		if pl.cum[i] > da && pl.cum[i] < db {
			pts = append(pts, pl.pts[i])
		}
	}
	pts = append(pts, pl.pointAt(db))
	return toCoordinates(pts), nil
}

// LengthMeters is the geodesic length of line. A collapsed line has length 0.
func (e *S2Engine) LengthMeters(ctx context.Context, line []datastructure.Coordinate) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(line) == 0 {
		return 0, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "empty line")
	}
	total := 0.0
	prev := toS2(line[0])
	for _, c := range line[1:] {
		curr := toS2(c)
		total += prev.Distance(curr).Radians()
		prev = curr
	}
	length := total * earthRadiusM
	if math.IsNaN(length) || math.IsInf(length, 0) {
		return 0, server.WrapErrorf(nil, server.ErrGeometryComputationFailed, "line length is not finite")
	}
	return length, nil
}

type meetingPoint struct {
	p     s2.Point
	along float64
}

// IntersectionPoints returns the points of a where a meets b within radius
// meters, ordered along a. Proper crossings are all reported; when the lines
// only come close, the closest point of a is reported. An empty result means
// the lines never come within radius.
func (e *S2Engine) IntersectionPoints(ctx context.Context, a, b []datastructure.Coordinate, radius float64) ([]datastructure.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plA, err := newPolyline(a)
	if err != nil {
		return nil, err
	}
	plB, err := newPolyline(b)
	if err != nil {
		return nil, err
	}

	points := []meetingPoint{}
	for i := 0; i+1 < len(plA.pts); i++ {
		a0, a1 := plA.pts[i], plA.pts[i+1]
		if a0 == a1 {
			continue
		}
		for j := 0; j+1 < len(plB.pts); j++ {
			b0, b1 := plB.pts[j], plB.pts[j+1]
			if b0 == b1 {
				continue
			}
			if s2.CrossingSign(a0, a1, b0, b1) != s2.Cross {
				continue
			}
			x := s2.Intersection(a0, a1, b0, b1)
			points = append(points, meetingPoint{x, plA.cum[i] + a0.Distance(x).Radians()})
		}
	}

	closest, along, dist := closestApproach(plA, plB)
	if dist*earthRadiusM <= radius {
		dup := false
		for _, mp := range points {
			if mp.p.Distance(closest).Radians() < samePointTolerance {
				dup = true
				break
			}
		}
		if !dup {
			points = append(points, meetingPoint{closest, along})
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].along < points[j].along
	})

	res := make([]datastructure.Coordinate, 0, len(points))
	for _, mp := range points {
		res = append(res, fromS2(mp.p))
	}
	return res, nil
}

// closestApproach returns the point of a nearest to b, its distance along a
// and the separation, all in radians.
func closestApproach(a, b polyline) (s2.Point, float64, float64) {
	best := math.Inf(1)
	var bestP s2.Point
	bestAlong := 0.0

	for i, v := range a.pts {
		_, _, d := b.project(v)
		if d < best {
			best = d
			bestP = v
			bestAlong = a.cum[i]
		}
	}
	for _, v := range b.pts {
		p, along, d := a.project(v)
		if d < best {
			best = d
			bestP = p
			bestAlong = along
		}
	}
	for i := 0; i+1 < len(a.pts); i++ {
		for j := 0; j+1 < len(b.pts); j++ {
			if a.pts[i] == a.pts[i+1] || b.pts[j] == b.pts[j+1] {
				continue
			}
			if s2.CrossingSign(a.pts[i], a.pts[i+1], b.pts[j], b.pts[j+1]) == s2.Cross {
				x := s2.Intersection(a.pts[i], a.pts[i+1], b.pts[j], b.pts[j+1])
				along := a.cum[i] + a.pts[i].Distance(x).Radians()
				if best > 0 || along < bestAlong {
					best = 0
					bestP = x
					bestAlong = along
				}
			}
		}
	}
	return bestP, bestAlong, best
}

// DistanceToLineMeters is the geodesic distance from point to the nearest
// point of line.
func DistanceToLineMeters(point datastructure.Coordinate, line []datastructure.Coordinate) float64 {
	if len(line) == 0 {
		return math.Inf(1)
	}
	x := toS2(point)
	if len(line) == 1 {
		return x.Distance(toS2(line[0])).Radians() * earthRadiusM
	}
	best := math.Inf(1)
	prev := toS2(line[0])
	for _, c := range line[1:] {
		curr := toS2(c)
		var d float64
		if prev == curr {
			d = x.Distance(prev).Radians()
		} else {
			d = s2.DistanceFromSegment(x, prev, curr).Radians()
		}
		best = math.Min(best, d)
		prev = curr
	}
	return best * earthRadiusM
}

// MinDistanceMeters is the smallest geodesic separation between two lines.
func MinDistanceMeters(a, b []datastructure.Coordinate) float64 {
	best := math.Inf(1)
	for _, v := range a {
		best = math.Min(best, DistanceToLineMeters(v, b))
	}
	for _, v := range b {
		best = math.Min(best, DistanceToLineMeters(v, a))
	}
	if best == 0 || len(a) < 2 || len(b) < 2 {
		return best
	}
	for i := 0; i+1 < len(a); i++ {
		a0, a1 := toS2(a[i]), toS2(a[i+1])
		if a0 == a1 {
			continue
		}
		for j := 0; j+1 < len(b); j++ {
			b0, b1 := toS2(b[j]), toS2(b[j+1])
			if b0 == b1 {
				continue
			}
			if s2.CrossingSign(a0, a1, b0, b1) == s2.Cross {
				return 0
			}
		}
	}
	return best
}

// Densify returns line with extra points so that no two consecutive points
// are further than stepMeters apart.
func Densify(line []datastructure.Coordinate, stepMeters float64) []datastructure.Coordinate {
	if len(line) < 2 || stepMeters <= 0 {
		return line
	}
	step := stepMeters / earthRadiusM
	res := []datastructure.Coordinate{line[0]}
	for i := 0; i+1 < len(line); i++ {
		a, b := toS2(line[i]), toS2(line[i+1])
		segLen := a.Distance(b).Radians()
		for d := step; d < segLen; d += step {
			res = append(res, fromS2(s2.InterpolateAtDistance(s1.Angle(d), a, b)))
		}
		res = append(res, line[i+1])
	}
	return res
}
