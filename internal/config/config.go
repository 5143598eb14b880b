package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-zones/internal/ingest"
)

// Config captures the settings required to boot the zones service and the batch extractor.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls the HTTP, gRPC and metrics listeners.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
}

// DatasetConfig describes the input layout and where the derived table lives.
type DatasetConfig struct {
	Path    string         `yaml:"path"`
	Sheet   string         `yaml:"sheet"`
	Columns ingest.Columns `yaml:"columns"`
	// DateLayouts are tried before the built-in layouts.
	DateLayouts []string `yaml:"dateLayouts"`
	LoadOnStart bool     `yaml:"loadOnStart"`
}

// AnalysisConfig holds analytics defaults.
type AnalysisConfig struct {
	TerminalZone      string `yaml:"terminalZone"`
	DefaultMinDays    int    `yaml:"defaultMinDays"`
	MaxMinDays        int    `yaml:"maxMinDays"`
	ScenarioSeparator string `yaml:"scenarioSeparator"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Redis-backed caching of the current dataset snapshot.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	DatasetTTL   time.Duration `yaml:"datasetTTL"`
}

// IngestOptions converts the dataset section into reader options.
func (c *Config) IngestOptions() ingest.Options {
	return ingest.Options{
		Columns:     c.Dataset.Columns,
		Sheet:       c.Dataset.Sheet,
		DateLayouts: c.Dataset.DateLayouts,
	}
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_ZONES_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the analytics cannot run with.
func (c *Config) Validate() error {
	var errs []error
	cols := c.Dataset.Columns
	if strings.TrimSpace(cols.Entity) == "" || strings.TrimSpace(cols.Zone) == "" || strings.TrimSpace(cols.Date) == "" {
		errs = append(errs, errors.New("dataset.columns: entity, zone and date names are required"))
	}
	if strings.TrimSpace(c.Analysis.TerminalZone) == "" {
		errs = append(errs, errors.New("analysis.terminalZone is required"))
	}
	if c.Analysis.DefaultMinDays < 0 {
		errs = append(errs, errors.New("analysis.defaultMinDays must not be negative"))
	}
	if c.Analysis.MaxMinDays < c.Analysis.DefaultMinDays {
		errs = append(errs, errors.New("analysis.maxMinDays must be >= defaultMinDays"))
	}
	if c.Analysis.ScenarioSeparator == "" {
		errs = append(errs, errors.New("analysis.scenarioSeparator is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.maxUploadBytes must be positive"))
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		errs = append(errs, errors.New("cache.addr is required when the cache is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:     ":8080",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			MaxUploadBytes:  64 << 20,
		},
		Dataset: DatasetConfig{
			Path:    "data/transitions.csv",
			Columns: ingest.DefaultColumns(),
		},
		Analysis: AnalysisConfig{
			TerminalZone:      "Ч",
			DefaultMinDays:    10,
			MaxMinDays:        180,
			ScenarioSeparator: " → ",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DatasetTTL:   24 * time.Hour,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_ZONES_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("MIRADOR_ZONES_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("MIRADOR_ZONES_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_ZONES_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("MIRADOR_ZONES_DATASET_PATH"); v != "" {
		cfg.Dataset.Path = v
	}
	if v := os.Getenv("MIRADOR_ZONES_DATASET_SHEET"); v != "" {
		cfg.Dataset.Sheet = v
	}
	if v := os.Getenv("MIRADOR_ZONES_LOAD_ON_START"); v != "" {
		cfg.Dataset.LoadOnStart = envBool(v)
	}
	if v := os.Getenv("MIRADOR_ZONES_TERMINAL_ZONE"); v != "" {
		cfg.Analysis.TerminalZone = v
	}
	if v := os.Getenv("MIRADOR_ZONES_DEFAULT_MIN_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.DefaultMinDays = n
		}
	}
	if v := os.Getenv("MIRADOR_ZONES_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_ZONES_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_ZONES_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MIRADOR_ZONES_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = envBool(v)
	}
	if v := os.Getenv("MIRADOR_ZONES_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MIRADOR_ZONES_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MIRADOR_ZONES_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_ZONES_CACHE_TLS"); envBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("MIRADOR_ZONES_CACHE_DATASET_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DatasetTTL = d
		}
	}
}

func envBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
