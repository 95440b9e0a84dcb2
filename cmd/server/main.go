package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "lintang/routefare/docs"
	"lintang/routefare/pkg/config"
	"lintang/routefare/pkg/importer"
	"lintang/routefare/pkg/server/rest"
	"lintang/routefare/pkg/server/rest/service"
	"lintang/routefare/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

var (
	configFile = flag.String("config", "config.yml", "config file")
	listenAddr = flag.String("listenaddr", "", "server listen address, overrides the config file")
)

//	@title			routefare API
//	@version		1.0
//	@description	public transport route finder. Searches route chains with at most 10 transfers and splits them into per-route fares.

//	@contact.name	routefare

//	@license.name	GNU Affero General Public License v3.0
//	@license.url	https://www.gnu.org/licenses/gpl-3.0.en.html

// @host		localhost:5000
// @BasePath	/api
// @schemes	http
func main() {
	flag.Parse()
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		log.Fatal(err)
	}
	logger := httplog.NewLogger("routefare", httplog.Options{
		LogLevel:         level,
		JSON:             cfg.Log.JSON,
		Concise:          true,
		MessageFieldName: "message",
		LevelFieldName:   "severity",
		TimeFieldFormat:  time.RFC3339,
		Tags: map[string]string{
			"version": "v1.0",
		},
		QuietDownRoutes: []string{
			"/metrics",
		},
		QuietDownPeriod: 10 * time.Second,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, cfg, false, logger.Logger)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	adjacencyRadius, err := backend.AdjacencyRadius(ctx, cfg.Search.AdjacencyRadius)
	if err != nil {
		log.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	m := rest.NewMetrics(reg)

	r := chi.NewRouter()

	r.Use(httplog.RequestLogger(logger, []string{"/metrics"}))
	r.Use(middleware.Recoverer)
	r.Use(rest.PromeHttpMiddleware(m)) // prometheus http middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Mount("/debug", middleware.Profiler())

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(cfg.Server.SwaggerURL), //The url pointing to API definition
	))

	imp := importer.NewImporter(backend.Catalog, backend.Builder, adjacencyRadius, logger.Logger)
	routeSvc := service.NewRouteService(backend.Catalog, backend.Engine, imp, service.Config{
		Radius:          cfg.Search.Radius,
		MaxHops:         cfg.Search.MaxHops,
		MaxResults:      cfg.Search.MaxResults,
		MaxFrontier:     cfg.Search.MaxFrontier,
		AdjacencyRadius: adjacencyRadius,
		Workers:         cfg.Search.Workers,
		Timeout:         cfg.Server.RequestTimeout,
	}, logger.Logger, m)
	rest.RouteRouter(r, routeSvc)

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: r,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", slog.String("error", err.Error()))
		}
	}()

	logger.Info("server started",
		slog.String("addr", cfg.Server.ListenAddr),
		slog.Float64("adjacency_radius", adjacencyRadius))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", slog.String("error", err.Error()))
	}
}
