package failure

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestKindOf_LooksThroughWrapping(t *testing.T) {
	t.Parallel()

	base := MissingColumns("Zeus", []string{"total"})
	wrapped := fmt.Errorf("extract a.csv: %w", base)

	if got := KindOf(wrapped); got != KindMissingColumns {
		t.Fatalf("KindOf=%q, want %q", got, KindMissingColumns)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("KindOf(plain)=%q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil)=%q, want empty", got)
	}
}

func TestWrap_NilPassThrough(t *testing.T) {
	t.Parallel()

	if err := Wrap(KindPersistence, nil, "insert"); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}

	cause := errors.New("duplicate key")
	err := Wrap(KindPersistence, cause, "insert into %s", "zeus")
	if !errors.Is(err, cause) {
		t.Fatalf("wrapped error must unwrap to cause")
	}
	if !strings.Contains(err.Error(), "insert into zeus") || !strings.Contains(err.Error(), "duplicate key") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestPayloadsAreCopied(t *testing.T) {
	t.Parallel()

	headers := []string{"foo", "bar"}
	e := UnrecognizedSchema(headers)
	headers[0] = "mutated"
	if !reflect.DeepEqual(e.Headers, []string{"foo", "bar"}) {
		t.Fatalf("headers payload aliased caller slice: %v", e.Headers)
	}

	missing := []string{"total", "pressao_recal"}
	m := MissingColumns("Zeus", missing)
	missing[1] = "mutated"
	if !reflect.DeepEqual(m.Missing, []string{"total", "pressao_recal"}) {
		t.Fatalf("missing payload aliased caller slice: %v", m.Missing)
	}
}

func TestWithPath(t *testing.T) {
	t.Parallel()

	orig := New(KindEmptyFile, "no data rows")
	got := WithPath(orig, "/tmp/a.csv")

	fe, ok := As(got)
	if !ok {
		t.Fatalf("expected *Error")
	}
	if fe.Path != "/tmp/a.csv" {
		t.Fatalf("path=%q", fe.Path)
	}
	if orig.Path != "" {
		t.Fatalf("WithPath must not mutate the original")
	}

	plain := errors.New("x")
	if WithPath(plain, "p") != plain {
		t.Fatalf("non-failure errors must be returned unchanged")
	}
}

func TestIsValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want bool
	}{
		{KindMissingFiles, false},
		{KindInvalidFileType, false},
		{KindRead, true},
		{KindEmptyFile, true},
		{KindUnrecognizedSchema, true},
		{KindMissingColumns, true},
		{KindSameSchema, true},
		{KindPersistence, false},
	}
	for _, tc := range tests {
		if got := IsValidation(New(tc.kind, "x")); got != tc.want {
			t.Fatalf("IsValidation(%s)=%v, want %v", tc.kind, got, tc.want)
		}
	}
}
