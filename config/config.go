package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source types understood by the scoreboard module.
const (
	SourceHTTP        = "http"
	SourceJSONArchive = "json"
	SourceCSVArchive  = "csv"
)

// Archive store backends.
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

const (
	defaultHTTPAddress     = ":8080"
	defaultRequestInterval = 2 * time.Second
	defaultArchiveDir      = "archives"
)

// Config struct to hold the configuration settings
type Config struct {
	Sources       []SourceConfig      `yaml:"sources"`
	Cache         CacheConfig         `yaml:"cache"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Redis         RedisConfig         `yaml:"redis"`
	HTTP          HTTPConfig          `yaml:"http"`
	Competition   CompetitionConfig   `yaml:"competition"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SourceConfig describes one backend, in priority order.
type SourceConfig struct {
	Type string `yaml:"type"` // http|json|csv

	// http
	URL             string        `yaml:"url"`
	RequestInterval time.Duration `yaml:"request_interval"`
	Burst           int           `yaml:"burst"`

	// json
	ArchiveKey string `yaml:"archive_key"`

	// csv
	Paths []string `yaml:"paths"`
}

// CacheConfig holds the per-backend cache limits. Zero values take the defaults.
type CacheConfig struct {
	MaxTeamDetails      int           `yaml:"max_team_details"`
	TeamLifespan        time.Duration `yaml:"team_lifespan"`
	ScoreboardLifespan  time.Duration `yaml:"scoreboard_lifespan"`
	BackendLifespan     time.Duration `yaml:"backend_lifespan"`
	ArchiveTeamLifespan time.Duration `yaml:"archive_team_lifespan"`
}

// ArchiveConfig selects where JSON archives are stored.
type ArchiveConfig struct {
	Store string        `yaml:"store"` // file|redis|postgres
	Dir   string        `yaml:"dir"`
	TTL   time.Duration `yaml:"ttl"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// HTTPConfig holds the status server configuration.
type HTTPConfig struct {
	Address           string   `yaml:"address"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
}

// CompetitionConfig holds season data the live scoreboard does not publish.
type CompetitionConfig struct {
	CategoryMap string          `yaml:"category_map"`
	Schedule    []ScheduleEntry `yaml:"schedule"`
}

// ScheduleEntry is one scored round. Dates accept absolute or natural-language forms.
type ScheduleEntry struct {
	Round string `yaml:"round"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"` // json|text
	MetricsNamespace string `yaml:"metrics_namespace"`
	Environment      string `yaml:"environment"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// --- OVERRIDE WITH ENV VARS IF PRESENT ---
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("ARCHIVE_STORE"); v != "" {
		cfg.Archive.Store = v
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.Archive.Dir = v
	}
	if v := os.Getenv("SCOREBOARD_URL"); v != "" {
		for i := range cfg.Sources {
			if cfg.Sources[i].Type == SourceHTTP {
				cfg.Sources[i].URL = v
			}
		}
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("CATEGORY_MAP"); v != "" {
		cfg.Competition.CategoryMap = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("BACKEND_LIFESPAN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.BackendLifespan = d
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
// The live scoreboard comes first, followed by the archive named by ARCHIVE_KEY.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config

	scoreboardURL := os.Getenv("SCOREBOARD_URL")
	archiveKey := os.Getenv("ARCHIVE_KEY")
	csvPaths := os.Getenv("CSV_PATHS")
	if scoreboardURL == "" && archiveKey == "" && csvPaths == "" {
		return nil, fmt.Errorf("SCOREBOARD_URL, ARCHIVE_KEY or CSV_PATHS environment variable must be set")
	}

	if scoreboardURL != "" {
		src := SourceConfig{Type: SourceHTTP, URL: scoreboardURL}
		if v := os.Getenv("REQUEST_INTERVAL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid REQUEST_INTERVAL value: %v", err)
			}
			src.RequestInterval = d
		}
		cfg.Sources = append(cfg.Sources, src)
	}
	if archiveKey != "" {
		cfg.Sources = append(cfg.Sources, SourceConfig{Type: SourceJSONArchive, ArchiveKey: archiveKey})
	}
	if csvPaths != "" {
		cfg.Sources = append(cfg.Sources, SourceConfig{Type: SourceCSVArchive, Paths: splitList(csvPaths)})
	}

	cfg.Postgres.DSN = os.Getenv("DATABASE_URL")
	cfg.Redis.URL = os.Getenv("REDIS_URL")
	cfg.Archive.Store = os.Getenv("ARCHIVE_STORE")
	cfg.Archive.Dir = os.Getenv("ARCHIVE_DIR")

	cfg.HTTP.Address = os.Getenv("HTTP_ADDRESS")
	cfg.HTTP.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS value: %v", err)
		}
		cfg.HTTP.RequestsPerSecond = rps
	}

	if v := os.Getenv("BACKEND_LIFESPAN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BACKEND_LIFESPAN value: %v", err)
		}
		cfg.Cache.BackendLifespan = d
	}

	cfg.Competition.CategoryMap = os.Getenv("CATEGORY_MAP")
	cfg.Observability.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.Observability.LogFormat = os.Getenv("LOG_FORMAT")
	cfg.Observability.Environment = os.Getenv("ENV")

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Sources {
		c.Sources[i].Type = strings.ToLower(strings.TrimSpace(c.Sources[i].Type))
		if c.Sources[i].Type == SourceHTTP && c.Sources[i].RequestInterval <= 0 {
			c.Sources[i].RequestInterval = defaultRequestInterval
		}
	}
	if c.Archive.Store == "" {
		switch {
		case c.Postgres.DSN != "":
			c.Archive.Store = StorePostgres
		case c.Redis.URL != "":
			c.Archive.Store = StoreRedis
		default:
			c.Archive.Store = StoreFile
		}
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = defaultArchiveDir
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = defaultHTTPAddress
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
	if c.Observability.MetricsNamespace == "" {
		c.Observability.MetricsNamespace = "cyberscores"
	}
}

// Validate checks that every source can be built from the configuration.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for i, src := range c.Sources {
		switch src.Type {
		case SourceHTTP:
			if src.URL == "" {
				return fmt.Errorf("source %d: http source requires url", i)
			}
		case SourceJSONArchive:
			if src.ArchiveKey == "" {
				return fmt.Errorf("source %d: json source requires archive_key", i)
			}
		case SourceCSVArchive:
			if len(src.Paths) == 0 {
				return fmt.Errorf("source %d: csv source requires paths", i)
			}
		default:
			return fmt.Errorf("source %d: unknown type %q", i, src.Type)
		}
	}
	switch c.Archive.Store {
	case StoreFile:
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("archive store redis requires redis.url")
		}
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("archive store postgres requires postgres.dsn")
		}
	default:
		return fmt.Errorf("unknown archive store %q", c.Archive.Store)
	}
	return nil
}

// NeedsArchiveStore reports whether any source reads archives.
func (c *Config) NeedsArchiveStore() bool {
	for _, src := range c.Sources {
		if src.Type == SourceJSONArchive {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
