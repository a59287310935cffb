// Package schema identifies which telemetry source produced a header set and
// checks that the source's required columns are present.
//
// Two schemas exist:
//
//	Zeus   - pump-station readings (suction/discharge pressure, flow, totals)
//	Elipse - SCADA variable samples (station, variable, value, unit)
//
// Classification runs on normalized headers (see package header). The Zeus
// rule is evaluated first, so a header set matches at most one schema.
package schema

import (
	"strings"

	"ingest/internal/failure"
)

// Kind is the tagged schema identity. The zero value is Unknown.
type Kind int

const (
	Unknown Kind = iota
	Zeus
	Elipse
)

func (k Kind) String() string {
	switch k {
	case Zeus:
		return "Zeus"
	case Elipse:
		return "Elipse"
	default:
		return "Unknown"
	}
}

// MarshalText renders the kind as "Zeus", "Elipse" or "Unknown".
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zeus":
		return Zeus
	case "elipse":
		return Elipse
	default:
		return Unknown
	}
}

// Definition describes one known schema.
type Definition struct {
	Kind     Kind
	Required []string
	Optional []string
	// Columns is the fixed storage projection, in insert order.
	Columns []string
	// Key is the natural key used for idempotent inserts.
	Key string
}

// ZeusColumns is the storage projection for Zeus record sets.
var ZeusColumns = []string{"data_hora", "pressao_succao", "pressao_recal", "total", "vazao_media", "evento"}

// ElipseColumns is the storage projection for Elipse record sets.
var ElipseColumns = []string{"data_hora", "nome_estacao", "nome_variavel", "var_local", "valor", "unidade"}

var definitions = map[Kind]Definition{
	Zeus: {
		Kind:     Zeus,
		Required: []string{"data_hora", "pressao_succao", "vazao_media", "total", "pressao_recal"},
		Optional: []string{"evento"},
		Columns:  ZeusColumns,
		Key:      "data_hora",
	},
	Elipse: {
		Kind:     Elipse,
		Required: []string{"data_hora", "nome_estacao", "valor"},
		Optional: []string{"nome_variavel", "var_local", "unidade"},
		Columns:  ElipseColumns,
		Key:      "data_hora",
	},
}

// Lookup returns the definition for k. ok is false for Unknown.
func Lookup(k Kind) (Definition, bool) {
	d, ok := definitions[k]
	return d, ok
}

// Classify identifies the schema of a normalized header set.
//
// Blank headers are ignored. Zeus matches when pressao_succao or vazao_media is
// present; otherwise Elipse matches when both nome_estacao and valor are present.
//
// Errors:
//   - failure.KindUnrecognizedSchema carrying the non-blank headers found.
func Classify(headers []string) (Definition, error) {
	present := headerSet(headers)

	switch {
	case present["pressao_succao"] || present["vazao_media"]:
		return definitions[Zeus], nil
	case present["nome_estacao"] && present["valor"]:
		return definitions[Elipse], nil
	}
	return Definition{}, failure.UnrecognizedSchema(nonBlank(headers))
}

// Validate checks that every required column of def is among headers.
//
// Errors:
//   - failure.KindMissingColumns carrying exactly the missing names, in the
//     order of def.Required.
func Validate(def Definition, headers []string) error {
	if missing := Missing(def, headers); len(missing) > 0 {
		return failure.MissingColumns(def.Kind.String(), missing)
	}
	return nil
}

// Missing returns def.Required minus headers, preserving required-list order.
func Missing(def Definition, headers []string) []string {
	present := headerSet(headers)
	var missing []string
	for _, r := range def.Required {
		if !present[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

func headerSet(headers []string) map[string]bool {
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		if h != "" {
			set[h] = true
		}
	}
	return set
}

func nonBlank(headers []string) []string {
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
