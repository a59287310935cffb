// Package record holds the in-memory row representation produced by extraction.
package record

// Record maps canonical field names to the cell's formatted text.
//
// Only populated fields are present: a blank or absent cell is simply missing
// from the map. Callers never see empty-string values.
type Record map[string]string

// FromRow builds a Record from a row aligned to headers.
//
// Columns whose header is "" are skipped. When two columns normalize to the
// same field the later non-blank value wins. Cells beyond the header width are
// ignored; short rows leave the trailing fields missing.
func FromRow(headers []string, row []string, clean func(string) string) Record {
	rec := make(Record, len(headers))
	for i, h := range headers {
		if h == "" || i >= len(row) {
			continue
		}
		v := row[i]
		if clean != nil {
			v = clean(v)
		}
		if v == "" {
			continue
		}
		rec[h] = v
	}
	return rec
}

// Has reports whether field is populated.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Project returns the record's values in columns order, using nil for missing
// fields so storage binds them as NULL.
func (r Record) Project(columns []string) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		if v, ok := r[c]; ok {
			out[i] = v
		}
	}
	return out
}
