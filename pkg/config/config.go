package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvListenAddr  = "ROUTEFARE_LISTEN_ADDR"
	EnvPostgresDSN = "ROUTEFARE_POSTGRES_DSN"
	EnvPebbleDir   = "ROUTEFARE_PEBBLE_DIR"
)

type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr" validate:"required"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	SwaggerURL     string        `yaml:"swagger_url" validate:"omitempty,url"`
}

type SearchConfig struct {
	Radius          float64 `yaml:"radius" validate:"gt=0"`
	MaxHops         int     `yaml:"max_hops" validate:"gte=0,lte=50"`
	MaxResults      int     `yaml:"max_results" validate:"gte=1"`
	MaxFrontier     int     `yaml:"max_frontier" validate:"gte=1"`
	AdjacencyRadius float64 `yaml:"adjacency_radius" validate:"gte=0"`
	Workers         int     `yaml:"workers" validate:"gte=1"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=pebble postgis"`
	PebbleDir   string `yaml:"pebble_dir" validate:"required_if=Backend pebble"`
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Backend postgis"`
	// geometry engine used by the fare segmenter
	Engine       string        `yaml:"engine" validate:"oneof=s2 postgis"`
	CacheSize    int           `yaml:"cache_size" validate:"gte=1"`
	CacheTTL     time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	MaxOpenConns int           `yaml:"max_open_conns" validate:"gte=1"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Search  SearchConfig  `yaml:"search"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:     ":5000",
			RequestTimeout: 5 * time.Second,
			SwaggerURL:     "http://localhost:5000/swagger/doc.json",
		},
		Search: SearchConfig{
			Radius:          50,
			MaxHops:         10,
			MaxResults:      2,
			MaxFrontier:     200000,
			AdjacencyRadius: 10,
			Workers:         4,
		},
		Storage: StorageConfig{
			Backend:      "pebble",
			PebbleDir:    "routefareDB",
			Engine:       "s2",
			CacheSize:    4096,
			CacheTTL:     10 * time.Minute,
			MaxOpenConns: 25,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

// Load reads path over the defaults, applies .env and environment overrides
// and validates the result. A missing file is not an error, the defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvPebbleDir); v != "" {
		cfg.Storage.PebbleDir = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c.Server); err != nil {
		return err
	}
	if err := v.Struct(c.Search); err != nil {
		return err
	}
	if err := v.Struct(c.Storage); err != nil {
		return err
	}
	if c.Storage.Engine == "postgis" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required by the postgis geometry engine")
	}
	return v.Struct(c.Log)
}
