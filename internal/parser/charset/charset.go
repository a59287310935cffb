// Package charset converts legacy spreadsheet exports to UTF-8.
//
// Zeus and Elipse CSV/HTML exports written by older Windows tooling are
// Windows-1252 encoded; newer ones are UTF-8, sometimes with a BOM.
package charset

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var bom = []byte("\xEF\xBB\xBF")

// ToUTF8 strips a UTF-8 BOM and, when b is not valid UTF-8, decodes it as
// Windows-1252. Valid UTF-8 input is returned without copying.
func ToUTF8(b []byte) ([]byte, error) {
	b = bytes.TrimPrefix(b, bom)
	if utf8.Valid(b) {
		return b, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(b)
}
