package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to create a Repository.
//
// When to use:
//   - Use Config when constructing a Repository via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - MaxConns <= 0 leaves the backend's own pool default in place.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind     string
	DSN      string
	MaxConns int
}

// Batch is one multi-row insert: rows are positional and aligned to Columns.
//
// A nil cell binds as SQL NULL. When DedupeColumns is non-empty the insert
// must skip rows whose dedupe key already exists in Table, and must keep only
// the first occurrence of a key repeated within Rows.
type Batch struct {
	Table         string
	Columns       []string
	Rows          [][]any
	DedupeColumns []string
}

// Repository is the backend-agnostic persistence contract used by the
// ingestion pipeline.
//
// Each backend implements these semantics in its own idiomatic way (Postgres
// ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS). Table creation is not
// part of the contract: target tables are provisioned outside this service.
type Repository interface {
	// Close releases any backend resources (connections, pools).
	//
	// Edge cases:
	//   - Callers should treat Close as "call once".
	Close()

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// InsertBatches writes every batch inside a single transaction and returns
	// the number of rows actually inserted per batch, in order.
	//
	// Edge cases:
	//   - Batches with no rows are skipped and report 0.
	//   - A backend may split a batch into several statements to respect its
	//     bind-parameter limit; all statements share the transaction.
	//
	// Errors:
	//   - Any statement error rolls back the whole transaction and is returned.
	InsertBatches(ctx context.Context, batches []Batch) ([]int64, error)

	// SelectRows returns up to limit rows of table, each as column -> value.
	// Text values are returned as string regardless of driver representation.
	SelectRows(ctx context.Context, table string, columns []string, limit int) ([]map[string]any, error)
}

// ---- factories ----

// Factory builds a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. Ambiguous backend selection is a
//     programming error and fails fast at startup.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
