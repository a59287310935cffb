package xls

import (
	"bytes"
	"context"
	"testing"
)

func TestReadRows_RejectsNonWorkbook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
	}{
		{"text", []byte("Data/Hora;Total\n")},
		{"truncated_ole_header", append(append([]byte(nil), Magic...), 0x00, 0x01)},
		{"empty", nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ReadRows(context.Background(), bytes.NewReader(tc.in)); err == nil {
				t.Fatalf("expected error for %s input", tc.name)
			}
		})
	}
}
