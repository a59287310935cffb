// Package header maps raw spreadsheet column labels onto canonical field names.
package header

import (
	"strings"
	"unicode"
)

// synonyms holds the labels seen in real Zeus and Elipse exports. It is built
// once and never mutated; only exact (case-sensitive) keys and their lowercase
// forms are consulted.
var synonyms = map[string]string{
	// Zeus
	"Data/Hora":           "data_hora",
	"PRESSAO DE SUCCAO":   "pressao_succao",
	"PRESSAO DE RECALQUE": "pressao_recal",
	"Total":               "total",
	"Vazao Media":         "vazao_media",
	"Evento":              "evento",
	"pressao de succao":   "pressao_succao",
	"vazao media":         "vazao_media",
	"total":               "total",

	// Elipse
	"datahora":      "data_hora",
	"nome_estacao":  "nome_estacao",
	"nome_variavel": "nome_variavel",
	"var_local":     "var_local",
	"Valor":         "valor",
	"Unidade":       "unidade",
}

// Normalize maps one raw header label to its canonical field name.
//
// Lookup order:
//  1. exact match of the trimmed label in the synonym table
//  2. match of the lowercased label
//  3. fallback: lowercase with every character outside [a-z0-9_] removed
//
// Normalize is total and deterministic; empty or blank input returns "".
// Accented letters are dropped by the fallback, not transliterated.
func Normalize(raw string) string {
	h := strings.TrimFunc(raw, isTrimmable)
	if h == "" {
		return ""
	}
	if v, ok := synonyms[h]; ok {
		return v
	}
	lower := strings.ToLower(h)
	if v, ok := synonyms[lower]; ok {
		return v
	}
	return sanitize(lower)
}

// isTrimmable matches whitespace and the byte order mark, which spreadsheet
// exports sometimes leave on the first header cell.
func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// NormalizeAll normalizes every label, preserving position.
func NormalizeAll(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		out[i] = Normalize(h)
	}
	return out
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
