package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"

	"lintang/routefare/pkg/config"
	"lintang/routefare/pkg/datastructure"
	"lintang/routefare/pkg/importer"
	"lintang/routefare/pkg/osmparser"
	"lintang/routefare/pkg/storage"
)

var (
	configFile = flag.String("config", "config.yml", "config file")
	inputFile  = flag.String("f", "jakarta.osm.pbf", "file berisi trayek angkutan umum")
	format     = flag.String("format", "osm", "format file input: osm | geojson | points")
)

func readRoutes(ctx context.Context, path, format string) ([]datastructure.Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case "osm":
		return osmparser.NewOSMParser(runtime.NumCPU(), true).ParseRouteRelations(ctx, f)
	case "geojson":
		return importer.ReadGeoJSON(f)
	case "points":
		return importer.ReadPointLists(f)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func main() {
	flag.Parse()
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	routes, err := readRoutes(ctx, *inputFile, *format)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("routes read", slog.String("file", *inputFile), slog.Int("count", len(routes)))

	backend, err := storage.Open(ctx, cfg, true, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	edges, err := importer.NewImporter(backend.Catalog, backend.Builder, cfg.Search.AdjacencyRadius, logger).Import(ctx, routes)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\n%d routes, %d adjacency edges within %.0f meters. Catalog ready!!\n", len(routes), len(edges), cfg.Search.AdjacencyRadius)
}
