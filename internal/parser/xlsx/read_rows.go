// Package xlsx reads the first worksheet of an Office Open XML workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned for workbooks without any worksheet.
var ErrNoSheets = errors.New("xlsx: workbook has no sheets")

// ReadRows returns every row of the workbook's first sheet as formatted text,
// the way the cell is displayed in a spreadsheet application (dates and
// numbers use the cell's number format). Trailing empty cells are omitted by
// excelize, so rows may be ragged.
func ReadRows(ctx context.Context, r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	it, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("xlsx: rows of %q: %w", sheets[0], err)
	}
	defer it.Close()

	var rows [][]string
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cols, err := it.Columns()
		if err != nil {
			return nil, fmt.Errorf("xlsx: read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, cols)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("xlsx: iterate: %w", err)
	}
	return rows, nil
}
