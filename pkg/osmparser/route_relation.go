package osmparser

import (
	"context"
	"fmt"
	"io"
	"sort"

	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/server"

	"github.com/google/uuid"
	"github.com/k0kubun/go-ansi"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/schollz/progressbar/v3"
)

// public transport route relations imported as routes
var ValidRouteType = map[string]bool{
	"bus":        true,
	"minibus":    true,
	"share_taxi": true,
	"trolleybus": true,
	"tram":       true,
}

// namespace of the ids derived from osm relation ids
var relationNamespace = uuid.MustParse("6f2c7d3e-8b1a-4c5e-9d7f-2a4b6c8e0f13")

type OSMParser struct {
	procs        int
	showProgress bool
}

func NewOSMParser(procs int, showProgress bool) *OSMParser {
	if procs < 1 {
		procs = 1
	}
	return &OSMParser{procs: procs, showProgress: showProgress}
}

func (p *OSMParser) newBar(desc string) *progressbar.ProgressBar {
	if !p.showProgress {
		return progressbar.DefaultSilent(-1)
	}
	return progressbar.NewOptions(-1,
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

// RelationID is the stable route id of an osm route relation.
func RelationID(id osm.RelationID) datastructure.RouteID {
	return datastructure.RouteID(uuid.NewSHA1(relationNamespace, []byte(fmt.Sprintf("relation/%d", id))).String())
}

// ParseRouteRelations reads public transport route relations from an osm pbf
// file. The file is scanned three times: relations, their ways, then the way nodes.
func (p *OSMParser) ParseRouteRelations(ctx context.Context, f io.ReadSeeker) ([]datastructure.Route, error) {
	relations := []*osm.Relation{}
	wantWays := make(map[osm.WayID]struct{})

	bar := p.newBar("[cyan][1/3][reset] reading openstreetmap route relations...")
	err := p.scan(ctx, f, func(s *osmpbf.Scanner) {
		s.SkipNodes = true
		s.SkipWays = true
	}, func(o osm.Object) {
		rel, ok := o.(*osm.Relation)
		if !ok || !isPublicTransportRoute(rel.Tags) {
			return
		}
		relations = append(relations, rel)
		for _, m := range rel.Members {
			if m.Type == osm.TypeWay && isRouteWayRole(m.Role) {
				wantWays[osm.WayID(m.Ref)] = struct{}{}
			}
		}
		bar.Add(1)
	})
	if err != nil {
		return nil, err
	}

	ways := make(map[osm.WayID]*osm.Way, len(wantWays))
	wantNodes := make(map[osm.NodeID]struct{})
	bar = p.newBar("[cyan][2/3][reset] reading member ways...")
	err = p.scan(ctx, f, func(s *osmpbf.Scanner) {
		s.SkipNodes = true
		s.SkipRelations = true
	}, func(o osm.Object) {
		way, ok := o.(*osm.Way)
		if !ok {
			return
		}
		if _, want := wantWays[way.ID]; !want {
			return
		}
		ways[way.ID] = way
		for _, n := range way.Nodes {
			wantNodes[n.ID] = struct{}{}
		}
		bar.Add(1)
	})
	if err != nil {
		return nil, err
	}

	nodes := make(map[osm.NodeID]datastructure.Coordinate, len(wantNodes))
	bar = p.newBar("[cyan][3/3][reset] reading way nodes...")
	err = p.scan(ctx, f, func(s *osmpbf.Scanner) {
		s.SkipWays = true
		s.SkipRelations = true
	}, func(o osm.Object) {
		node, ok := o.(*osm.Node)
		if !ok {
			return
		}
		if _, want := wantNodes[node.ID]; !want {
			return
		}
		nodes[node.ID] = datastructure.Coordinate{Lat: node.Lat, Lon: node.Lon}
		bar.Add(1)
	})
	if err != nil {
		return nil, err
	}
	if p.showProgress {
		fmt.Println("")
	}

	routes := make([]datastructure.Route, 0, len(relations))
	for _, rel := range relations {
		line := assembleLine(rel, ways, nodes)
		if len(line) < 2 {
			continue
		}
		name := rel.Tags.Find("name")
		if name == "" {
			name = rel.Tags.Find("ref")
		}
		r, err := datastructure.NewRoute(RelationID(rel.ID), name, line)
		if err != nil {
			continue
		}
		if colour := rel.Tags.Find("colour"); colour != "" {
			r.Color = colour
		}
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })
	return routes, nil
}

func (p *OSMParser) scan(ctx context.Context, f io.ReadSeeker, configure func(*osmpbf.Scanner), fn func(osm.Object)) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "rewind osm file")
	}
	scanner := osmpbf.New(ctx, f, p.procs)
	defer scanner.Close()
	configure(scanner)

	for scanner.Scan() {
		fn(scanner.Object())
	}
	if err := scanner.Err(); err != nil {
		return server.WrapErrorf(err, server.ErrBadParamInput, "scan osm file")
	}
	return nil
}

func isPublicTransportRoute(tags osm.Tags) bool {
	return tags.Find("type") == "route" && ValidRouteType[tags.Find("route")]
}

// platforms and stops are members too, only the travelled ways make the line
func isRouteWayRole(role string) bool {
	switch role {
	case "", "forward", "backward", "route":
		return true
	}
	return false
}

// assembleLine joins the member ways of rel in member order, flipping a way
// when its end, not its start, touches the line built so far.
func assembleLine(rel *osm.Relation, ways map[osm.WayID]*osm.Way, nodes map[osm.NodeID]datastructure.Coordinate) []datastructure.Coordinate {
	ids := []osm.NodeID{}
	for _, m := range rel.Members {
		if m.Type != osm.TypeWay || !isRouteWayRole(m.Role) {
			continue
		}
		way, ok := ways[osm.WayID(m.Ref)]
		if !ok || len(way.Nodes) == 0 {
			continue
		}
		seg := make([]osm.NodeID, len(way.Nodes))
		for i, n := range way.Nodes {
			seg[i] = n.ID
		}

		if len(ids) > 0 {
			last := ids[len(ids)-1]
			switch {
			case seg[0] == last:
			case seg[len(seg)-1] == last:
				reverse(seg)
			case len(ids) > 1 && (ids[0] == seg[0] || ids[0] == seg[len(seg)-1]):
				// first way was stored backwards
				reverse(ids)
				if seg[len(seg)-1] == ids[len(ids)-1] {
					reverse(seg)
				}
			}
			if seg[0] == ids[len(ids)-1] {
				seg = seg[1:]
			}
		}
		ids = append(ids, seg...)
	}

	line := make([]datastructure.Coordinate, 0, len(ids))
	for _, id := range ids {
		c, ok := nodes[id]
		if !ok {
			continue
		}
		if len(line) > 0 && line[len(line)-1] == c {
			continue
		}
		line = append(line, c)
	}
	return line
}

func reverse(ids []osm.NodeID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
