// Package pgstore persists collections in PostgreSQL via the pgx stdlib
// driver. Intended for a self-hosted backend deployment; change notification
// is in-process, so cross-process subscribers should use reststore against
// the emulator instead.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    version    BIGINT NOT NULL,
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_updated
    ON documents (collection, updated_at);
`

// Store is a Postgres-backed docstore.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu   sync.Mutex
	hubs map[string]*docstore.Hub
}

// Open connects with the pgx stdlib driver, verifies connectivity, and
// ensures the schema.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now, hubs: make(map[string]*docstore.Hub)}, nil
}

func (s *Store) hub(name string) *docstore.Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hubs[name]
	if !ok {
		h = docstore.NewHub()
		s.hubs[name] = h
	}
	return h
}

func (s *Store) Collection(name string) docstore.Collection {
	return &collection{db: s.db, name: name, hub: s.hub(name), now: s.now}
}

func (s *Store) Healthy(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                      { return s.db.Close() }

type collection struct {
	db   *sql.DB
	name string
	hub  *docstore.Hub
	now  func() time.Time
}

func (c *collection) Create(ctx context.Context, id string, data json.RawMessage) (*docstore.Doc, error) {
	now := c.now().UTC()
	_, err := c.db.ExecContext(ctx, `
        INSERT INTO documents (collection, id, version, data, created_at, updated_at)
        VALUES ($1, $2, 1, $3, $4, $4)
    `, c.name, id, string(data), now)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("doc %s: %w", id, model.ErrConflict)
		}
		return nil, err
	}
	c.hub.Notify(id)
	return &docstore.Doc{ID: id, Version: 1, Data: data, CreatedAt: now, UpdatedAt: now}, nil
}

func (c *collection) Get(ctx context.Context, id string) (*docstore.Doc, error) {
	row := c.db.QueryRowContext(ctx, `
        SELECT version, data, created_at, updated_at FROM documents
        WHERE collection = $1 AND id = $2
    `, c.name, id)
	var (
		version          int64
		data             string
		created, updated time.Time
	)
	if err := row.Scan(&version, &data, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("doc %s: %w", id, model.ErrNotFound)
		}
		return nil, err
	}
	return &docstore.Doc{ID: id, Version: version, Data: json.RawMessage(data), CreatedAt: created, UpdatedAt: updated}, nil
}

func (c *collection) Update(ctx context.Context, id string, data json.RawMessage, pre docstore.Precondition) (*docstore.Doc, error) {
	now := c.now().UTC()
	var (
		res sql.Result
		err error
	)
	if pre.Version != 0 {
		res, err = c.db.ExecContext(ctx, `
            UPDATE documents SET version = version + 1, data = $1, updated_at = $2
            WHERE collection = $3 AND id = $4 AND version = $5
        `, string(data), now, c.name, id, pre.Version)
	} else {
		res, err = c.db.ExecContext(ctx, `
            UPDATE documents SET version = version + 1, data = $1, updated_at = $2
            WHERE collection = $3 AND id = $4
        `, string(data), now, c.name, id)
	}
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, gerr := c.Get(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("doc %s version %d stale: %w", id, pre.Version, model.ErrConflict)
	}
	c.hub.Notify(id)
	return c.Get(ctx, id)
}

func (c *collection) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `
        DELETE FROM documents WHERE collection = $1 AND id = $2
    `, c.name, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("doc %s: %w", id, model.ErrNotFound)
	}
	c.hub.Notify(id)
	return nil
}

func (c *collection) Query(ctx context.Context, q docstore.Query) ([]*docstore.Doc, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT id, version, data, created_at, updated_at FROM documents WHERE collection = $1`)
	args = append(args, c.name)
	n := 1
	for _, f := range q.Filters {
		sb.WriteString(fmt.Sprintf(` AND data->>$%d = $%d`, n+1, n+2))
		args = append(args, f.Field, f.Value)
		n += 2
	}
	if !q.UpdatedAfter.IsZero() {
		sb.WriteString(fmt.Sprintf(` AND updated_at > $%d`, n+1))
		args = append(args, q.UpdatedAfter.UTC())
		n++
	}
	if q.OrderBy != "" {
		sb.WriteString(fmt.Sprintf(` ORDER BY data->>$%d`, n+1))
		args = append(args, q.OrderBy)
		n++
	} else {
		sb.WriteString(` ORDER BY created_at`)
	}
	if q.Desc {
		sb.WriteString(` DESC`)
	}
	sb.WriteString(`, id`)
	if q.Limit > 0 {
		sb.WriteString(fmt.Sprintf(` LIMIT $%d`, n+1))
		args = append(args, q.Limit)
	}

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*docstore.Doc
	for rows.Next() {
		var (
			id, data         string
			version          int64
			created, updated time.Time
		)
		if err := rows.Scan(&id, &version, &data, &created, &updated); err != nil {
			return nil, err
		}
		out = append(out, &docstore.Doc{ID: id, Version: version, Data: json.RawMessage(data), CreatedAt: created, UpdatedAt: updated})
	}
	return out, rows.Err()
}

func (c *collection) Watch(ctx context.Context, id string, fn docstore.DocHandler) (func(), error) {
	fire := func() {
		d, err := c.Get(context.Background(), id)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				fn(nil, nil)
				return
			}
			fn(nil, err)
			return
		}
		fn(d, nil)
	}
	cancel := c.hub.WatchDoc(id, fire)
	go fire()
	return cancel, nil
}

func (c *collection) WatchQuery(ctx context.Context, q docstore.Query, fn docstore.QueryHandler) (func(), error) {
	fire := func() {
		docs, err := c.Query(context.Background(), q)
		fn(docs, err)
	}
	cancel := c.hub.WatchCollection(fire)
	go fire()
	return cancel, nil
}
