package storage

import (
	"fmt"
	"strings"
)

// DedupeRows keeps the first occurrence of every dedupe key in rows.
//
// Backends whose idempotent insert does not collapse duplicates inside one
// VALUES source (SQL Server NOT EXISTS, DuckDB) call this before building the
// statement, which matches Postgres ON CONFLICT DO NOTHING: the first row of a
// key wins and later ones are skipped.
//
// Rows whose key is entirely NULL are always kept; the database decides what
// to do with them.
//
// Errors:
//   - A dedupe column that is not in columns.
func DedupeRows(rows [][]any, columns []string, dedupeColumns []string) ([][]any, error) {
	if len(dedupeColumns) == 0 || len(rows) < 2 {
		return rows, nil
	}

	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	keyIdx := make([]int, 0, len(dedupeColumns))
	for _, dc := range dedupeColumns {
		i, ok := pos[dc]
		if !ok {
			return nil, fmt.Errorf("storage: dedupe column %q not present in columns %v", dc, columns)
		}
		keyIdx = append(keyIdx, i)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, row := range rows {
		b.Reset()
		allNull := true
		for n, i := range keyIdx {
			if n > 0 {
				b.WriteByte(0)
			}
			k := NormalizeKey(row[i])
			if k != "" {
				allNull = false
			}
			b.WriteString(k)
		}
		if allNull {
			out = append(out, row)
			continue
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}

// ChunkRows splits rows so that no statement binds more than maxParams
// parameters. maxParams <= 0 disables chunking.
func ChunkRows(rows [][]any, width, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := len(rows)
	if maxParams > 0 && width > 0 {
		per = maxParams / width
		if per < 1 {
			per = 1
		}
	}
	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
