// Package sqlitestore persists collections in a local SQLite file via the
// modernc driver. It serves single-process deployments (emulator, CLI, tests)
// where durable local state matters; change notification is in-process.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    version    INTEGER NOT NULL,
    data       TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_updated
    ON documents (collection, updated_at);
`

// Store is a SQLite-backed docstore.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu   sync.Mutex
	hubs map[string]*docstore.Hub
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer; the modernc driver serializes poorly under many conns.
	db.SetMaxOpenConns(1)
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

// Fixed-width fraction so stored timestamps compare correctly as strings;
// RFC3339Nano trims trailing zeros and breaks lexical ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (c *collection) Create(ctx context.Context, id string, data json.RawMessage) (*docstore.Doc, error) {
	now := c.now().UTC()
	_, err := c.db.ExecContext(ctx, `
        INSERT INTO documents (collection, id, version, data, created_at, updated_at)
        VALUES (?, ?, 1, ?, ?, ?)
    `, c.name, id, string(data), now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "constraint") {
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
        WHERE collection = ? AND id = ?
    `, c.name, id)
	return scanDoc(row, id)
}

func scanDoc(row *sql.Row, id string) (*docstore.Doc, error) {
	var (
		version          int64
		data             string
		created, updated string
	)
	if err := row.Scan(&version, &data, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("doc %s: %w", id, model.ErrNotFound)
		}
		return nil, err
	}
	ct, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, err
	}
	ut, err := time.Parse(timeLayout, updated)
	if err != nil {
		return nil, err
	}
	return &docstore.Doc{ID: id, Version: version, Data: json.RawMessage(data), CreatedAt: ct, UpdatedAt: ut}, nil
}

func (c *collection) Update(ctx context.Context, id string, data json.RawMessage, pre docstore.Precondition) (*docstore.Doc, error) {
	now := c.now().UTC()
	var res sql.Result
	var err error
	if pre.Version != 0 {
		res, err = c.db.ExecContext(ctx, `
            UPDATE documents SET version = version + 1, data = ?, updated_at = ?
            WHERE collection = ? AND id = ? AND version = ?
        `, string(data), now.Format(timeLayout), c.name, id, pre.Version)
	} else {
		res, err = c.db.ExecContext(ctx, `
            UPDATE documents SET version = version + 1, data = ?, updated_at = ?
            WHERE collection = ? AND id = ?
        `, string(data), now.Format(timeLayout), c.name, id)
	}
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Distinguish a missing doc from a version miss.
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
        DELETE FROM documents WHERE collection = ? AND id = ?
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
	sb.WriteString(`SELECT id, version, data, created_at, updated_at FROM documents WHERE collection = ?`)
	args = append(args, c.name)
	for _, f := range q.Filters {
		sb.WriteString(` AND json_extract(data, ?) = ?`)
		args = append(args, "$."+f.Field, f.Value)
	}
	if !q.UpdatedAfter.IsZero() {
		sb.WriteString(` AND updated_at > ?`)
		args = append(args, q.UpdatedAfter.UTC().Format(timeLayout))
	}
	if q.OrderBy != "" {
		sb.WriteString(` ORDER BY json_extract(data, ?)`)
		args = append(args, "$."+q.OrderBy)
	} else {
		sb.WriteString(` ORDER BY created_at`)
	}
	if q.Desc {
		sb.WriteString(` DESC`)
	}
	sb.WriteString(`, id`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
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
			id, data, created, updated string
			version                    int64
		)
		if err := rows.Scan(&id, &version, &data, &created, &updated); err != nil {
			return nil, err
		}
		ct, err := time.Parse(timeLayout, created)
		if err != nil {
			return nil, err
		}
		ut, err := time.Parse(timeLayout, updated)
		if err != nil {
			return nil, err
		}
		out = append(out, &docstore.Doc{ID: id, Version: version, Data: json.RawMessage(data), CreatedAt: ct, UpdatedAt: ut})
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
