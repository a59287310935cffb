package config

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one configuration problem.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

var knownStorage = map[string]bool{"postgres": true, "sqlite": true, "mssql": true, "duckdb": true}

var knownMetrics = map[string]bool{"": true, "none": true, "prometheus": true, "datadog": true}

// Validate returns every issue found in cfg. Callers must refuse to start
// when any issue has SeverityError.
func Validate(cfg Config) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if !knownStorage[cfg.Storage.Kind] {
		add(SeverityError, "storage.kind", "unsupported backend %q (want postgres, sqlite, mssql or duckdb)", cfg.Storage.Kind)
	}
	if strings.TrimSpace(cfg.Storage.DSN) == "" && cfg.Storage.Kind != "duckdb" {
		add(SeverityError, "storage.dsn", "DATABASE_URL is required")
	}
	if cfg.Storage.MaxConns < 0 {
		add(SeverityError, "storage.max_conns", "must be >= 0")
	}

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		add(SeverityError, "http.port", "invalid port %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		add(SeverityError, "http.max_upload_bytes", "must be > 0")
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		add(SeverityError, "http.request_timeout", "must be > 0")
	}
	if cfg.HTTP.DataLimit <= 0 {
		add(SeverityWarning, "http.data_limit", "non-positive limit returns whole tables")
	}
	if strings.TrimSpace(cfg.HTTP.UploadDir) == "" {
		add(SeverityError, "http.upload_dir", "must not be empty")
	}

	if strings.TrimSpace(cfg.Tables.Zeus) == "" {
		add(SeverityError, "tables.zeus", "must not be empty")
	}
	if strings.TrimSpace(cfg.Tables.Elipse) == "" {
		add(SeverityError, "tables.elipse", "must not be empty")
	}
	if cfg.Tables.Zeus != "" && cfg.Tables.Zeus == cfg.Tables.Elipse {
		add(SeverityWarning, "tables", "zeus and elipse share table %q", cfg.Tables.Zeus)
	}

	if n := utf8.RuneCountInString(cfg.Ingest.CSVComma); n > 1 {
		add(SeverityError, "ingest.csv_comma", "must be a single character, got %q", cfg.Ingest.CSVComma)
	}

	if !knownMetrics[cfg.Metrics.Backend] {
		add(SeverityWarning, "metrics.backend", "unknown backend %q; metrics disabled", cfg.Metrics.Backend)
	}

	return out
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
