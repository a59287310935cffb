// Package xls reads the first worksheet of a legacy BIFF (.xls) workbook.
package xls

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
)

// ErrNoSheets is returned for workbooks without any worksheet.
var ErrNoSheets = errors.New("xls: workbook has no sheets")

// Magic is the OLE2 compound-document signature every BIFF workbook starts with.
var Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ReadRows returns every row of the first sheet as formatted text.
//
// Missing rows inside the used range come back as empty rows so row numbers
// stay aligned with the sheet; callers treat them as blank.
func ReadRows(ctx context.Context, r io.ReadSeeker) (rows [][]string, err error) {
	// extrame/xls panics on some truncated streams instead of returning an error.
	defer func() {
		if p := recover(); p != nil {
			rows, err = nil, fmt.Errorf("xls: corrupt workbook: %v", p)
		}
	}()

	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("xls: open: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, ErrNoSheets
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoSheets
	}

	rows = make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
