// Package config loads service settings from the environment (optionally a
// .env file) with an optional YAML file underneath.
//
// Precedence, lowest to highest: built-in defaults, the YAML file named by
// CONFIG_FILE, environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting.
type Config struct {
	Storage Storage `yaml:"storage"`
	HTTP    HTTP    `yaml:"http"`
	Tables  Tables  `yaml:"tables"`
	Ingest  Ingest  `yaml:"ingest"`
	Metrics Metrics `yaml:"metrics"`
	Log     Log     `yaml:"log"`
}

// Storage selects the backend (see storage.Kinds).
type Storage struct {
	Kind     string `yaml:"kind"`
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
}

// HTTP configures the API server.
type HTTP struct {
	Port           int           `yaml:"port"`
	UploadDir      string        `yaml:"upload_dir"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	DataLimit      int           `yaml:"data_limit"`
}

// Tables names the destination tables.
type Tables struct {
	Zeus   string `yaml:"zeus"`
	Elipse string `yaml:"elipse"`
}

// Ingest tunes pipeline behavior.
type Ingest struct {
	// RequireDistinctSchemas rejects submissions whose two files route to the
	// same schema instead of loading both into one table.
	RequireDistinctSchemas bool `yaml:"require_distinct_schemas"`
	// CSVComma overrides the ';' delimiter for CSV files.
	CSVComma string `yaml:"csv_comma"`
	// CSVLazyQuotes accepts stray quotes inside unquoted CSV cells instead of
	// failing the file.
	CSVLazyQuotes bool `yaml:"csv_lazy_quotes"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend    string        `yaml:"backend"`
	JobName    string        `yaml:"job_name"`
	Tags       string        `yaml:"tags"`
	FlushEvery time.Duration `yaml:"flush_every"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Storage: Storage{Kind: "postgres"},
		HTTP: HTTP{
			Port:           3000,
			UploadDir:      os.TempDir(),
			MaxUploadBytes: 10 << 20,
			RequestTimeout: 60 * time.Second,
			DataLimit:      5000,
		},
		Tables:  Tables{Zeus: "zeus", Elipse: "elipse"},
		Ingest:  Ingest{CSVLazyQuotes: true},
		Metrics: Metrics{Backend: "prometheus", JobName: "ingest", FlushEvery: 60 * time.Second},
		Log:     Log{Level: "info", Format: "json"},
	}
}

// Load reads .env (if present), the optional CONFIG_FILE and the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with an injectable environment lookup.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
		}
	}

	e := envReader{getenv: getenv}
	e.str("STORAGE_KIND", &cfg.Storage.Kind)
	e.str("DATABASE_URL", &cfg.Storage.DSN)
	e.int("DB_MAX_CONNS", &cfg.Storage.MaxConns)

	e.int("PORT", &cfg.HTTP.Port)
	e.str("UPLOAD_DIR", &cfg.HTTP.UploadDir)
	e.int64("MAX_UPLOAD_BYTES", &cfg.HTTP.MaxUploadBytes)
	e.duration("REQUEST_TIMEOUT", &cfg.HTTP.RequestTimeout)
	e.int("DATA_LIMIT", &cfg.HTTP.DataLimit)

	e.str("ZEUS_TABLE", &cfg.Tables.Zeus)
	e.str("ELIPSE_TABLE", &cfg.Tables.Elipse)

	e.bool("REQUIRE_DISTINCT_SCHEMAS", &cfg.Ingest.RequireDistinctSchemas)
	e.str("CSV_COMMA", &cfg.Ingest.CSVComma)
	e.bool("CSV_LAZY_QUOTES", &cfg.Ingest.CSVLazyQuotes)

	e.str("METRICS_BACKEND", &cfg.Metrics.Backend)
	e.str("JOB_NAME", &cfg.Metrics.JobName)
	e.str("METRICS_TAGS", &cfg.Metrics.Tags)
	e.duration("METRICS_FLUSH_EVERY", &cfg.Metrics.FlushEvery)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)

	return cfg, e.err
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

// CSVRune returns the configured CSV delimiter, or 0 for the default.
func (c Config) CSVRune() rune {
	for _, r := range c.Ingest.CSVComma {
		return r
	}
	return 0
}

// envReader applies environment overrides, remembering the first parse error.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(e.getenv(key))
	return v, v != ""
}

func (e *envReader) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %q: %w", key, v, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) bool(key string, dst *bool) {
	if v, ok := e.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
