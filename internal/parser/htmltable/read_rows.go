// Package htmltable reads spreadsheets that are really HTML documents.
//
// Several SCADA report generators "export to Excel" by writing an HTML <table>
// into a file named .xls. Spreadsheet applications open these transparently,
// so operators upload them as-is.
package htmltable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ingest/internal/parser/charset"
)

// ErrNoTable is returned when the document has no <table> element.
var ErrNoTable = errors.New("htmltable: document has no table")

// Sniff reports whether head (the first bytes of a file) looks like HTML.
func Sniff(head []byte) bool {
	h := bytes.ToLower(bytes.TrimSpace(bytes.TrimPrefix(head, []byte("\xEF\xBB\xBF"))))
	for _, marker := range [][]byte{[]byte("<!doctype html"), []byte("<html"), []byte("<table")} {
		if bytes.HasPrefix(h, marker) {
			return true
		}
	}
	return bytes.Contains(h, []byte("<table"))
}

// ReadRows returns the text of every row of the first <table>. Header cells
// (<th>) and data cells (<td>) are treated alike; cell text has its
// whitespace collapsed the way a browser renders it.
func ReadRows(ctx context.Context, r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("htmltable: read: %w", err)
	}
	text, err := charset.ToUTF8(raw)
	if err != nil {
		return nil, fmt.Errorf("htmltable: decode: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("htmltable: parse: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	var rows [][]string
	table.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		// Nested tables belong to a cell of the outer one.
		if tr.Closest("table").Get(0) != table.Get(0) {
			return true
		}
		var cells []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.Join(strings.Fields(td.Text()), " "))
		})
		rows = append(rows, cells)
		return true
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
