package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    workspace_id TEXT NOT NULL,
    org_id       TEXT NOT NULL,
    collection   TEXT NOT NULL,
    doc_id       TEXT NOT NULL,
    data         JSONB NOT NULL,
    version      BIGINT NOT NULL DEFAULT 1,
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (workspace_id, org_id, collection, doc_id)
);
CREATE INDEX IF NOT EXISTS documents_collection_idx
    ON documents (workspace_id, org_id, collection);
`

const upsertSQL = `
INSERT INTO documents (workspace_id, org_id, collection, doc_id, data, version, updated_at)
VALUES ($1, $2, $3, $4, $5, 1, now())
ON CONFLICT (workspace_id, org_id, collection, doc_id)
DO UPDATE SET data = EXCLUDED.data, version = documents.version + 1, updated_at = now()`

// Postgres keeps every document as a JSONB row. Transactions run at
// RepeatableRead so a concurrent writer to any row this transaction also
// writes aborts it with a serialization failure, which is retried.
type Postgres struct {
	pool *pgxpool.Pool
	opts Options
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool, opts Options) *Postgres {
	return &Postgres{pool: pool, opts: opts}
}

// EnsureSchema creates the documents table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return classify(fmt.Errorf("docstore: ensure schema: %w", err))
	}
	return nil
}

// Get reads a committed document.
func (p *Postgres) Get(ctx context.Context, path Path, dest any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	return pgGet(ctx, p.pool, path, dest)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgGet(ctx context.Context, q querier, path Path, dest any) error {
	var data []byte
	err := q.QueryRow(ctx,
		`SELECT data FROM documents WHERE workspace_id = $1 AND org_id = $2 AND collection = $3 AND doc_id = $4`,
		path.Scope.WorkspaceID, path.Scope.OrgID, path.Collection, path.ID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return classify(fmt.Errorf("docstore: get %s: %w", path, err))
	}
	return json.Unmarshal(data, dest)
}

// Query pushes the scope and string equality filters down to SQL and
// evaluates the remaining filters, ordering and limit in process.
func (p *Postgres) Query(ctx context.Context, scope Scope, q Query) ([]Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT doc_id, data, version FROM documents WHERE workspace_id = $1 AND org_id = $2 AND collection = $3`)
	args := []any{scope.WorkspaceID, scope.OrgID, q.Collection}
	for _, f := range q.Filters {
		s, ok := f.Value.(string)
		if f.Op != OpEq || !ok {
			continue
		}
		args = append(args, s)
		// Field names are validated against fieldPattern, so inlining is safe.
		fmt.Fprintf(&sb, ` AND data->>'%s' = $%d`, f.Field, len(args))
	}

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify(fmt.Errorf("docstore: query %s: %w", q.Collection, err))
	}
	defer rows.Close()

	var candidates []Snapshot
	for rows.Next() {
		var (
			id      string
			data    []byte
			version int64
		)
		if err := rows.Scan(&id, &data, &version); err != nil {
			return nil, classify(fmt.Errorf("docstore: scan %s: %w", q.Collection, err))
		}
		candidates = append(candidates, Snapshot{Path: scope.Doc(q.Collection, id), Data: data, Version: version})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("docstore: query %s: %w", q.Collection, err))
	}
	return applyQuery(candidates, q)
}

// RunTransaction executes fn in a RepeatableRead transaction and flushes the
// buffered writes as upserts before commit.
func (p *Postgres) RunTransaction(ctx context.Context, fn func(context.Context, Tx) error) error {
	return runWithRetry(ctx, p.opts, func(ctx context.Context) error {
		err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
			ptx := &pgTx{tx: tx, writes: newStaged()}
			if err := fn(ctx, ptx); err != nil {
				return err
			}
			return ptx.writes.each(func(doc stagedDoc) error {
				_, err := tx.Exec(ctx, upsertSQL,
					doc.path.Scope.WorkspaceID, doc.path.Scope.OrgID, doc.path.Collection, doc.path.ID, doc.data)
				if err != nil {
					return fmt.Errorf("docstore: write %s: %w", doc.path, err)
				}
				return nil
			})
		})
		return classify(err)
	})
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

type pgTx struct {
	tx     pgx.Tx
	writes *staged
}

func (t *pgTx) Get(ctx context.Context, path Path, dest any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if data, ok := t.writes.get(path); ok {
		return json.Unmarshal(data, dest)
	}
	return pgGet(ctx, t.tx, path, dest)
}

func (t *pgTx) Set(path Path, doc any) error {
	return t.writes.set(path, doc)
}

// classify maps driver errors onto the store sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, ErrUnavailable), errors.Is(err, ErrNotFound):
		return err
	case db.IsConflict(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case db.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
