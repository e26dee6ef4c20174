// Package ops implements sift's operations. Each takes an *Env plus an
// XxxInput and returns an XxxOutput; the CLI and the MCP server are thin
// layers over these functions.
package ops

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hpungsan/sift/internal/config"
	"github.com/hpungsan/sift/internal/dataset"
	"github.com/hpungsan/sift/internal/db"
	"github.com/hpungsan/sift/internal/embed"
	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/gate"
	"github.com/hpungsan/sift/internal/memory"
	"github.com/hpungsan/sift/internal/metrics"
	"github.com/hpungsan/sift/internal/scorer"
)

// Limits
const (
	DefaultQueryK = 5
	MaxQueryK     = 100
	MaxTopN       = 50
)

var tracer = otel.Tracer("github.com/hpungsan/sift/ops")

// Options configure NewEnv.
type Options struct {
	BaseDir string
	Config  *config.Config
	APIKey  string           // OPENAI_API_KEY, only for the openai embedder
	Metrics *metrics.Metrics // nil records nothing
	// Embedder overrides the embedder built from Config.
	Embedder embed.Embedder
}

// Env is the explicitly constructed application state shared by all
// operations. It is safe for concurrent use.
type Env struct {
	Config   *config.Config
	Paths    config.Paths
	Scorer   *scorer.Service
	Gate     *gate.Gate
	Pending  *dataset.PendingStore
	Embedder embed.Embedder
	Metrics  *metrics.Metrics

	// datasetMu serializes rewrites of the main labeled dataset.
	datasetMu sync.Mutex

	memMu  sync.Mutex
	memory *memory.Store
	conn   *sql.DB
}

// NewEnv wires the components described by opts. Nothing is read from disk
// yet: the model loads on first score and the memory store on first use, so
// a corrupt memory file does not block classification.
func NewEnv(opts Options) (*Env, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	paths := config.PathsFor(opts.BaseDir)
	pending := dataset.NewPendingStore(paths.Pending)

	g, err := gate.New(cfg.ConfidenceThreshold, pending, opts.Metrics)
	if err != nil {
		return nil, err
	}

	emb := opts.Embedder
	if emb == nil {
		emb, err = embed.FromConfig(cfg, opts.APIKey)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
	}
	if emb.Dimension() != cfg.VectorDimension {
		return nil, errors.NewInvalidRequest(fmt.Sprintf(
			"embedder dimension %d does not match vector_dimension %d", emb.Dimension(), cfg.VectorDimension))
	}

	return &Env{
		Config:   cfg,
		Paths:    paths,
		Scorer:   scorer.NewService(paths.Model, opts.Metrics),
		Gate:     g,
		Pending:  pending,
		Embedder: emb,
		Metrics:  opts.Metrics,
	}, nil
}

// Close releases the sqlite connection, if one was opened.
func (e *Env) Close() error {
	e.memMu.Lock()
	defer e.memMu.Unlock()
	if e.conn != nil {
		err := e.conn.Close()
		e.conn = nil
		return err
	}
	return nil
}

// Memory opens the vector memory on first call and returns the same store
// afterwards. A failed open is retried on the next call.
func (e *Env) Memory(ctx context.Context) (*memory.Store, error) {
	e.memMu.Lock()
	defer e.memMu.Unlock()
	if e.memory != nil {
		return e.memory, nil
	}

	var p memory.Persister
	switch e.Config.MemoryBackend {
	case config.BackendSQLite:
		if e.conn == nil {
			conn, err := db.Init(e.Paths.Base)
			if err != nil {
				return nil, errors.NewInternal(err)
			}
			db.ConfigurePool(conn, e.Config)
			e.conn = conn
		}
		p = memory.NewSQLitePersister(e.conn)
	default:
		p = memory.NewFilePersister(e.Paths.Index, e.Paths.Metadata)
	}

	store, err := memory.Open(ctx, e.Config.VectorDimension, p)
	if err != nil {
		return nil, err
	}
	e.memory = store
	e.Metrics.SetMemoryEntries(store.Len())
	return store, nil
}

// ensureModel loads the model if none is loaded yet. A missing model is
// not an error: scoring degrades to unknown/0.
func (e *Env) ensureModel(ctx context.Context) error {
	if e.Scorer.Ready() {
		return nil
	}
	if err := e.Scorer.Reload(ctx); err != nil && !scorer.IsUnavailable(err) {
		return err
	}
	return nil
}

// startSpan starts a span for an operation.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ops."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// requireText rejects blank text.
func requireText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.NewInvalidRequest("text is required")
	}
	return nil
}

// round2 rounds to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
