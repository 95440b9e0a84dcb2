package kv

import (
	"lintang/routefare/pkg/datastructure"

	"github.com/DataDog/zstd"
	"github.com/kelindar/binary"
)

// routeRecord is the stored form of a route, coordinates split in two columns.
type routeRecord struct {
	ID     string
	Name   string
	Color  string
	Status string
	Lats   []float64
	Lons   []float64
}

func toRecord(r datastructure.Route) routeRecord {
	rec := routeRecord{
		ID:     string(r.ID),
		Name:   r.Name,
		Color:  r.Color,
		Status: string(r.Status),
		Lats:   make([]float64, len(r.Points)),
		Lons:   make([]float64, len(r.Points)),
	}
	for i, p := range r.Points {
		rec.Lats[i] = p.Lat
		rec.Lons[i] = p.Lon
	}
	return rec
}

func (rec routeRecord) toRoute() datastructure.Route {
	points := make([]datastructure.Coordinate, len(rec.Lats))
	for i := range rec.Lats {
		points[i] = datastructure.Coordinate{Lat: rec.Lats[i], Lon: rec.Lons[i]}
	}
	return datastructure.Route{
		ID:     datastructure.RouteID(rec.ID),
		Name:   rec.Name,
		Color:  rec.Color,
		Status: datastructure.RouteStatus(rec.Status),
		Points: points,
	}
}

func EncodeRoute(r datastructure.Route) ([]byte, error) {
	bb, err := binary.Marshal(toRecord(r))
	if err != nil {
		return nil, err
	}
	return Compress(bb)
}

func DecodeRoute(bbCompressed []byte) (datastructure.Route, error) {
	bb, err := Decompress(bbCompressed)
	if err != nil {
		return datastructure.Route{}, err
	}
	var rec routeRecord
	if err := binary.Unmarshal(bb, &rec); err != nil {
		return datastructure.Route{}, err
	}
	return rec.toRoute(), nil
}

func EncodeIDs(ids []datastructure.RouteID) ([]byte, error) {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = string(id)
	}
	bb, err := binary.Marshal(ss)
	if err != nil {
		return nil, err
	}
	return Compress(bb)
}

func DecodeIDs(bbCompressed []byte) ([]datastructure.RouteID, error) {
	bb, err := Decompress(bbCompressed)
	if err != nil {
		return nil, err
	}
	var ss []string
	if err := binary.Unmarshal(bb, &ss); err != nil {
		return nil, err
	}
	ids := make([]datastructure.RouteID, len(ss))
	for i, s := range ss {
		ids[i] = datastructure.RouteID(s)
	}
	return ids, nil
}

func Compress(bb []byte) ([]byte, error) {
	var bbCompressed []byte
	bbCompressed, err := zstd.Compress(bbCompressed, bb)
	if err != nil {
		return []byte{}, err
	}
	return bbCompressed, nil
}

func Decompress(bbCompressed []byte) ([]byte, error) {
	var bb []byte
	bb, err := zstd.Decompress(bb, bbCompressed)
	if err != nil {
		return []byte{}, err
	}

	return bb, nil
}
