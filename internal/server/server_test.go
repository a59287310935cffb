package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ingest/internal/failure"
	"ingest/internal/ingest"
	"ingest/internal/persist"
	"ingest/internal/schema"
	"ingest/internal/uploads"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeIngester struct {
	mu   sync.Mutex
	subs []ingest.Submission
	res  ingest.Result
	err  error
}

func (f *fakeIngester) Ingest(_ context.Context, sub ingest.Submission) (ingest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
	return f.res, f.err
}

type fakeReader struct {
	snap    persist.Snapshot
	err     error
	pingErr error
	limit   int
}

func (f *fakeReader) Snapshot(_ context.Context, limit int) (persist.Snapshot, error) {
	f.limit = limit
	return f.snap, f.err
}

func (f *fakeReader) Ping(context.Context) error { return f.pingErr }

func newTestServer(t *testing.T, ing Ingester, rd Reader) (*Server, *uploads.Store) {
	t.Helper()
	store, err := uploads.New(t.TempDir(), 1<<10)
	if err != nil {
		t.Fatalf("uploads.New: %v", err)
	}
	s := New(Options{MaxUploadBytes: 1 << 10, DataLimit: 5000, Log: zerolog.Nop()}, ing, rd, store)
	return s, store
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write([]byte("data_hora;nome_estacao;valor\n2024-01-01;EB;1\n"))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, s *Server, files map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body, ctype := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %q", rec.Body.String())
	}
	return rec, out
}

func TestUpload_Success(t *testing.T) {
	t.Parallel()

	ing := &fakeIngester{res: ingest.Result{
		ID:     "sub-1",
		First:  ingest.FileOutcome{Field: FieldFirst, Schema: schema.Zeus, Inserted: 3},
		Second: ingest.FileOutcome{Field: FieldSecond, Schema: schema.Elipse, Inserted: 1},
	}}
	s, _ := newTestServer(t, ing, &fakeReader{})

	rec, out := doUpload(t, s, map[string]string{FieldFirst: "zeus.csv", FieldSecond: "elipse.csv"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	proc, _ := out["processados"].(map[string]any)
	if proc[FieldFirst] != "Zeus" || proc[FieldSecond] != "Elipse" {
		t.Fatalf("processados=%v", out["processados"])
	}
	if len(ing.subs) != 1 || ing.subs[0].First.Field != FieldFirst || ing.subs[0].Second.Path == "" {
		t.Fatalf("submission=%+v", ing.subs)
	}
}

func TestUpload_MissingSecondFile(t *testing.T) {
	t.Parallel()

	ing := &fakeIngester{}
	s, _ := newTestServer(t, ing, &fakeReader{})

	rec, out := doUpload(t, s, map[string]string{FieldFirst: "zeus.csv"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if out["kind"] != string(failure.KindMissingFiles) || out["code"] != float64(400) {
		t.Fatalf("body=%v", out)
	}
	if len(ing.subs) != 0 {
		t.Fatalf("pipeline must not run")
	}
}

func TestUpload_InvalidExtension(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeIngester{}, &fakeReader{})
	rec, out := doUpload(t, s, map[string]string{FieldFirst: "zeus.csv", FieldSecond: "notes.txt"})
	if rec.Code != http.StatusBadRequest || out["kind"] != string(failure.KindInvalidFileType) {
		t.Fatalf("status=%d body=%v", rec.Code, out)
	}
}

func TestUpload_PipelineFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing_columns", failure.MissingColumns("Zeus", []string{"total"}), http.StatusUnprocessableEntity},
		{"unrecognized", failure.UnrecognizedSchema([]string{"a", "b"}), http.StatusUnprocessableEntity},
		{"empty", failure.New(failure.KindEmptyFile, "file has no data rows"), http.StatusUnprocessableEntity},
		{"same_schema", failure.New(failure.KindSameSchema, "both Zeus"), http.StatusUnprocessableEntity},
		{"db", failure.Wrap(failure.KindPersistence, errors.New("pq: secret detail"), "insert failed"), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newTestServer(t, &fakeIngester{err: tc.err}, &fakeReader{})
			rec, out := doUpload(t, s, map[string]string{FieldFirst: "a.csv", FieldSecond: "b.csv"})
			if rec.Code != tc.want {
				t.Fatalf("status=%d, want %d (body=%v)", rec.Code, tc.want, out)
			}
			if out["code"] != float64(tc.want) {
				t.Fatalf("code=%v", out["code"])
			}
			if tc.want == http.StatusInternalServerError && bytes.Contains(rec.Body.Bytes(), []byte("secret detail")) {
				t.Fatalf("storage error leaked: %s", rec.Body.String())
			}
		})
	}

	s, _ := newTestServer(t, &fakeIngester{err: failure.MissingColumns("Zeus", []string{"total", "evento"})}, &fakeReader{})
	_, out := doUpload(t, s, map[string]string{FieldFirst: "a.csv", FieldSecond: "b.csv"})
	missing, _ := out["missing"].([]any)
	if len(missing) != 2 || missing[0] != "total" {
		t.Fatalf("missing=%v", out["missing"])
	}
}

func TestUpload_TooLarge(t *testing.T) {
	t.Parallel()

	store, err := uploads.New(t.TempDir(), 8)
	if err != nil {
		t.Fatalf("uploads.New: %v", err)
	}
	ing := &fakeIngester{}
	s := New(Options{Log: zerolog.Nop()}, ing, &fakeReader{}, store)

	rec, _ := doUpload(t, s, map[string]string{FieldFirst: "a.csv", FieldSecond: "b.csv"})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(ing.subs) != 0 {
		t.Fatalf("pipeline must not run")
	}
}

func TestDataAll(t *testing.T) {
	t.Parallel()

	rd := &fakeReader{snap: persist.Snapshot{
		Zeus:   []map[string]any{{"data_hora": "2024-01-01"}},
		Elipse: []map[string]any{},
	}}
	s, _ := newTestServer(t, &fakeIngester{}, rd)

	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data/all", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var out map[string][]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out["planilha_zeus"]) != 1 || out["planilha_elipse"] == nil {
		t.Fatalf("body=%s", rec.Body.String())
	}
	if rd.limit != 5000 {
		t.Fatalf("limit=%d", rd.limit)
	}

	rd.err = errors.New("down")
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data/all", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rd := &fakeReader{}
	s, _ := newTestServer(t, &fakeIngester{}, rd)

	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}

	rd.pingErr = errors.New("refused")
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	if got := StatusFor(context.DeadlineExceeded); got != http.StatusGatewayTimeout {
		t.Fatalf("deadline=%d", got)
	}
	if got := StatusFor(uploads.ErrTooLarge); got != http.StatusRequestEntityTooLarge {
		t.Fatalf("too large=%d", got)
	}
	if got := StatusFor(failure.New(failure.KindInvalidFileType, "x")); got != http.StatusBadRequest {
		t.Fatalf("invalid type=%d", got)
	}
}
