package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		" WARN ": zerolog.WarnLevel,
		"error":  zerolog.ErrorLevel,
		"":       zerolog.InfoLevel,
		"bogus":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONCarriesComponentAndHonorsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New("ingest-api", Options{Level: "warn", Out: &buf})

	log.Info().Msg("dropped")
	log.Warn().Str("file", "a.csv").Msg("kept")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "ingest-api" || entry["file"] != "a.csv" || entry["message"] != "kept" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
