// Package quorm composes SQL statements from entity metadata and evaluates
// row-level access control. The composer and the access-control evaluator
// live in their own packages; this package ties them to a database handle
// and offers a single entry point for applications.
package quorm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quorm/quorm/acl"
	"github.com/quorm/quorm/composer"
	"github.com/quorm/quorm/metadata"
)

// Querier is the database handle surface the engine needs. It is satisfied
// by *sql.DB, *sql.Tx, and *sql.Conn, so an engine works unchanged inside
// a transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Engine composes and executes metadata-driven queries over one database
// handle. Safe for concurrent use.
type Engine struct {
	meta     metadata.Provider
	composer *composer.Composer
	db       Querier
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithComposer replaces the default composer, for callers that need
// composer options like a non-default limit strategy.
func WithComposer(c *composer.Composer) EngineOption {
	return func(e *Engine) { e.composer = c }
}

// NewEngine builds an engine over metadata and a database handle. db may
// be nil for compose-only use.
func NewEngine(meta metadata.Provider, db Querier, opts ...EngineOption) *Engine {
	e := &Engine{
		meta: meta,
		db:   db,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.composer == nil {
		e.composer = composer.New(meta)
	}
	return e
}

// Composer returns the engine's composer.
func (e *Engine) Composer() *composer.Composer { return e.composer }

// Compose renders one statement without executing it.
func (e *Engine) Compose(kind composer.Kind, params *composer.Params) (string, error) {
	return e.composer.Compose(kind, params)
}

// Find composes and runs a SELECT, returning the row set.
func (e *Engine) Find(ctx context.Context, params *composer.Params) (*sql.Rows, error) {
	sqlText, err := e.composer.Compose(composer.KindSelect, params)
	if err != nil {
		return nil, err
	}
	return e.db.QueryContext(ctx, sqlText)
}

// Count composes and runs a COUNT aggregation over the given parameters.
func (e *Engine) Count(ctx context.Context, params *composer.Params) (int64, error) {
	p := *params
	p.Aggregation = "COUNT"
	sqlText, err := e.composer.Compose(composer.KindSelect, &p)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := e.db.QueryRowContext(ctx, sqlText).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", params.From, err)
	}
	return n, nil
}

// FindAllowed applies the user's access filter for a scope and action
// before composing and running the SELECT.
func (e *Engine) FindAllowed(ctx context.Context, eval *acl.Evaluator, action acl.Action, params *composer.Params) (*sql.Rows, error) {
	p := *params
	acl.NewAccessFilter(eval).Apply(&p, p.From, action)
	return e.Find(ctx, &p)
}

// Insert composes and executes an INSERT, retrying once on deadlock.
func (e *Engine) Insert(ctx context.Context, params *composer.Params) (sql.Result, error) {
	return e.execKind(ctx, composer.KindInsert, params)
}

// Update composes and executes an UPDATE, retrying once on deadlock.
func (e *Engine) Update(ctx context.Context, params *composer.Params) (sql.Result, error) {
	return e.execKind(ctx, composer.KindUpdate, params)
}

// Delete composes and executes a DELETE, retrying once on deadlock.
func (e *Engine) Delete(ctx context.Context, params *composer.Params) (sql.Result, error) {
	return e.execKind(ctx, composer.KindDelete, params)
}

func (e *Engine) execKind(ctx context.Context, kind composer.Kind, params *composer.Params) (sql.Result, error) {
	sqlText, err := e.composer.Compose(kind, params)
	if err != nil {
		return nil, err
	}
	return execWithRetry(ctx, e.db, sqlText)
}
