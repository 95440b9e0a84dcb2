package kv

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"lintang/routefare/pkg/concurrent"
	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/geo"
	"lintang/routefare/pkg/server"

	"github.com/bluele/gcache"
	"github.com/cockroachdb/pebble"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/uber/h3-go/v4"
)

const (
	h3Resolution = 9
	// route points are densified to this spacing before h3 indexing, below the res 9 edge length (~174m)
	indexStepMeters = 80.0
	// res 9 average hexagon edge length
	cellEdgeKm = 0.174

	routePrefix = "route:"
	cellPrefix  = "cell:"
	adjPrefix   = "adj:"
	metaAdjKey  = "meta:adjacency_radius"
)

type KVDB struct {
	db           *pebble.DB
	routeCache   gcache.Cache
	showProgress bool
	workers      int

	// SaveCell merges into existing cell lists, writers must not interleave
	writeMu sync.Mutex
}

type Option func(*KVDB)

// WithoutProgress disables the progress bars printed by bulk writes.
func WithoutProgress() Option {
	return func(k *KVDB) {
		k.showProgress = false
	}
}

func WithWorkers(n int) Option {
	return func(k *KVDB) {
		k.workers = n
	}
}

func WithRouteCache(size int, ttl time.Duration) Option {
	return func(k *KVDB) {
		k.routeCache = gcache.New(size).LRU().Expiration(ttl).Build()
	}
}

func NewKVDB(db *pebble.DB, opts ...Option) *KVDB {
	k := &KVDB{
		db:           db,
		routeCache:   gcache.New(4096).LRU().Expiration(10 * time.Minute).Build(),
		showProgress: true,
		workers:      4,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func newBar(n int, desc string, show bool) *progressbar.ProgressBar {
	if !show {
		return progressbar.DefaultSilent(int64(n))
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// SaveRoutes stores route records and adds them to the h3 proximity index.
func (k *KVDB) SaveRoutes(ctx context.Context, routes []datastructure.Route) error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	bar := newBar(len(routes), "[cyan][1/2][reset] saving routes & building h3 index...", k.showProgress)

	batch := k.db.NewBatch()
	defer batch.Close()

	cells := make(map[string]map[datastructure.RouteID]struct{})
	for _, r := range routes {
		if err := ctx.Err(); err != nil {
			return err
		}
		val, err := EncodeRoute(r)
		if err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "encode route %s", r.ID)
		}
		if err := batch.Set([]byte(routePrefix+string(r.ID)), val, nil); err != nil {
			return server.WrapErrorf(err, server.ErrCatalogUnavailable, "save route %s", r.ID)
		}

		for _, p := range geo.Densify(r.Points, indexStepMeters) {
			cell := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), h3Resolution).String()
			if cells[cell] == nil {
				cells[cell] = make(map[datastructure.RouteID]struct{})
			}
			cells[cell][r.ID] = struct{}{}
		}
		bar.Add(1)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return server.WrapErrorf(err, server.ErrCatalogUnavailable, "commit routes")
	}
	for _, r := range routes {
		k.routeCache.Remove(r.ID)
	}

	if k.showProgress {
		fmt.Println("")
	}
	bar = newBar(len(cells), "[cyan][2/2][reset] saving h3 indexed routes to pebble db...", k.showProgress)

	workers := concurrent.NewWorkerPool[concurrent.SaveCellJobItem, error](k.workers, len(cells))
	for keyStr, set := range cells {
		ids := make([]datastructure.RouteID, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		workers.AddJob(concurrent.SaveCellJobItem{KeyStr: keyStr, ValArr: ids})
		bar.Add(1)
	}
	workers.Close()

	workers.Start(k.SaveCell)
	workers.Wait()

	for err := range workers.CollectResults() {
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveCell merges route ids into one h3 cell entry. Each cell is written by a single job.
func (k *KVDB) SaveCell(item concurrent.SaveCellJobItem) error {
	key := []byte(cellPrefix + item.KeyStr)
	existing, err := k.getIDs(key)
	if err != nil {
		return err
	}
	ids := mergeIDs(existing, item.ValArr)

	val, err := EncodeIDs(ids)
	if err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "encode cell %s", item.KeyStr)
	}
	if err := k.db.Set(key, val, pebble.Sync); err != nil {
		return server.WrapErrorf(err, server.ErrCatalogUnavailable, "save cell %s", item.KeyStr)
	}
	return nil
}

// SaveAdjacency replaces the adjacency relation of every stored route with
// the given edges, computed with radius meters.
func (k *KVDB) SaveAdjacency(ctx context.Context, edges []datastructure.Edge, radius float64) error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	adj := make(map[datastructure.RouteID][]datastructure.RouteID)
	for _, e := range edges {
		if e.A == e.B {
			continue
		}
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}

	ids, err := k.routeIDs()
	if err != nil {
		return err
	}

	batch := k.db.NewBatch()
	defer batch.Close()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		val, err := EncodeIDs(mergeIDs(nil, adj[id]))
		if err != nil {
			return server.WrapErrorf(err, server.ErrInternalServerError, "encode adjacency of %s", id)
		}
		if err := batch.Set([]byte(adjPrefix+string(id)), val, nil); err != nil {
			return server.WrapErrorf(err, server.ErrCatalogUnavailable, "save adjacency of %s", id)
		}
	}
	if err := batch.Set([]byte(metaAdjKey), []byte(strconv.FormatFloat(radius, 'f', -1, 64)), nil); err != nil {
		return server.WrapErrorf(err, server.ErrCatalogUnavailable, "save adjacency radius")
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return server.WrapErrorf(err, server.ErrCatalogUnavailable, "commit adjacency")
	}
	return nil
}

// AdjacencyRadius is the radius the stored adjacency was computed with.
func (k *KVDB) AdjacencyRadius(ctx context.Context) (float64, bool, error) {
	val, closer, err := k.db.Get([]byte(metaAdjKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, server.WrapErrorf(err, server.ErrCatalogUnavailable, "read adjacency radius")
	}
	defer closer.Close()
	radius, err := strconv.ParseFloat(string(val), 64)
	if err != nil {
		return 0, false, server.WrapErrorf(err, server.ErrCatalogUnavailable, "parse adjacency radius")
	}
	return radius, true, nil
}

// FindRoutesNear returns the active routes within radius meters of c.
func (k *KVDB) FindRoutesNear(ctx context.Context, c datastructure.Coordinate, radius float64) ([]datastructure.RouteID, error) {
	candidates := make(map[datastructure.RouteID]struct{})
	for _, cell := range kRingIndexesArea(c.Lat, c.Lon, radius/1000+indexStepMeters/1000+cellEdgeKm) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, err := k.getIDs([]byte(cellPrefix + cell.String()))
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			candidates[id] = struct{}{}
		}
	}

	res := []datastructure.RouteID{}
	for id := range candidates {
		r, err := k.GetRoute(ctx, id)
		if server.HasCode(err, server.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !r.IsActive() {
			continue
		}
		if geo.DistanceToLineMeters(c, r.Points) <= radius {
			res = append(res, id)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res, nil
}

func (k *KVDB) GetRoute(ctx context.Context, id datastructure.RouteID) (datastructure.Route, error) {
	if err := ctx.Err(); err != nil {
		return datastructure.Route{}, err
	}
	if v, err := k.routeCache.Get(id); err == nil {
		return v.(datastructure.Route), nil
	}

	val, closer, err := k.db.Get([]byte(routePrefix + string(id)))
	if errors.Is(err, pebble.ErrNotFound) {
		return datastructure.Route{}, server.WrapErrorf(err, server.ErrNotFound, "route %s not found", id)
	}
	if err != nil {
		return datastructure.Route{}, server.WrapErrorf(err, server.ErrCatalogUnavailable, "read route %s", id)
	}
	defer closer.Close()

	r, err := DecodeRoute(val)
	if err != nil {
		return datastructure.Route{}, server.WrapErrorf(err, server.ErrCatalogUnavailable, "decode route %s", id)
	}
	_ = k.routeCache.Set(id, r)
	return r, nil
}

// GetAdjacent returns the active neighbours of id.
func (k *KVDB) GetAdjacent(ctx context.Context, id datastructure.RouteID) ([]datastructure.RouteID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := k.getIDs([]byte(adjPrefix + string(id)))
	if err != nil {
		return nil, err
	}
	res := make([]datastructure.RouteID, 0, len(ids))
	for _, n := range ids {
		r, err := k.GetRoute(ctx, n)
		if server.HasCode(err, server.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if r.IsActive() {
			res = append(res, n)
		}
	}
	return res, nil
}

// AllRoutes returns active routes ordered by name.
func (k *KVDB) AllRoutes(ctx context.Context) ([]datastructure.Route, error) {
	iter, err := k.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(routePrefix),
		UpperBound: prefixUpperBound(routePrefix),
	})
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrCatalogUnavailable, "iterate routes")
	}
	defer iter.Close()

	routes := []datastructure.Route{}
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := DecodeRoute(iter.Value())
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrCatalogUnavailable, "decode route %s", iter.Key())
		}
		if r.IsActive() {
			routes = append(routes, r)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, server.WrapErrorf(err, server.ErrCatalogUnavailable, "iterate routes")
	}
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Name != routes[j].Name {
			return routes[i].Name < routes[j].Name
		}
		return routes[i].ID < routes[j].ID
	})
	return routes, nil
}

func (k *KVDB) routeIDs() ([]datastructure.RouteID, error) {
	iter, err := k.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(routePrefix),
		UpperBound: prefixUpperBound(routePrefix),
	})
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrCatalogUnavailable, "iterate routes")
	}
	defer iter.Close()

	ids := []datastructure.RouteID{}
	for iter.First(); iter.Valid(); iter.Next() {
		ids = append(ids, datastructure.RouteID(iter.Key()[len(routePrefix):]))
	}
	return ids, iter.Error()
}

func (k *KVDB) getIDs(key []byte) ([]datastructure.RouteID, error) {
	val, closer, err := k.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrCatalogUnavailable, "read %s", key)
	}
	defer closer.Close()

	ids, err := DecodeIDs(val)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrCatalogUnavailable, "decode %s", key)
	}
	return ids, nil
}

func mergeIDs(a, b []datastructure.RouteID) []datastructure.RouteID {
	set := make(map[datastructure.RouteID]struct{}, len(a)+len(b))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		set[id] = struct{}{}
	}
	ids := make([]datastructure.RouteID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func prefixUpperBound(prefix string) []byte {
	end := []byte(prefix)
	end[len(end)-1]++
	return end
}

/*
*
  - https://observablehq.com/@nrabinowitz/h3-radius-lookup?collection=@nrabinowitz/h3
    search cell neighbor dari cell dari lat,lon  yang radius nya = searchRadiusKm
*/
func kRingIndexesArea(lat, lon, searchRadiusKm float64) []h3.Cell {
	home := h3.NewLatLng(lat, lon)
	origin := h3.LatLngToCell(home, h3Resolution)
	originArea := h3.CellAreaKm2(origin)
	searchArea := math.Pi * searchRadiusKm * searchRadiusKm

	radius := 0
	diskArea := originArea

	for diskArea < searchArea {
		radius++
		cellCount := float64(3*radius*(radius+1) + 1)
		diskArea = cellCount * originArea
	}

	return h3.GridDisk(origin, radius+1)
}

func (k *KVDB) Close() {
	k.db.Close()
}
