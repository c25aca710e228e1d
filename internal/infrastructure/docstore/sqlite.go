package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // cgo-free driver registered as "sqlite"
)

// SqliteClient is a single-process, file- or memory-backed Client
// implementation, useful for local development and tests where standing up
// Postgres is overkill.
type SqliteClient struct {
	db      *sql.DB
	cursors *cursorRegistry
	logger  *slog.Logger
}

// OpenSqliteClient opens (creating if needed) the given sqlite database
// file and ensures the documents table exists. Pass ":memory:" for an
// ephemeral store.
func OpenSqliteClient(path string, logger *slog.Logger) (*SqliteClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("docstore: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway

	const schema = `
CREATE TABLE IF NOT EXISTS documents (
	index_name TEXT NOT NULL,
	doc_type   TEXT NOT NULL,
	id         TEXT NOT NULL,
	source     TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (index_name, doc_type, id)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: create schema: %w", err)
	}

	return &SqliteClient{db: db, cursors: newCursorRegistry(1024), logger: logger}, nil
}

func (c *SqliteClient) Close() error {
	return c.db.Close()
}

func (c *SqliteClient) Get(ctx context.Context, index, docType, id string) (*Document, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT source, version FROM documents WHERE index_name = ? AND doc_type = ? AND id = ?`,
		index, docType, id)

	var raw string
	var version int64
	if err := row.Scan(&raw, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("docstore: get %s/%s/%s: %w", index, docType, id, err)
	}

	source, err := decodeSource([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("docstore: decode %s/%s/%s: %w", index, docType, id, err)
	}
	return &Document{Index: index, Type: docType, ID: id, Source: source, Version: version}, nil
}

func (c *SqliteClient) Index(ctx context.Context, index, docType, id string, source map[string]any, refresh bool) (bool, int64, error) {
	raw, err := json.Marshal(source)
	if err != nil {
		return false, 0, fmt.Errorf("docstore: encode %s/%s/%s: %w", index, docType, id, err)
	}

	existing, getErr := c.Get(ctx, index, docType, id)
	created := errors.Is(getErr, ErrNotFound)
	if getErr != nil && !created {
		return false, 0, getErr
	}

	version := int64(1)
	if !created {
		version = existing.Version + 1
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO documents (index_name, doc_type, id, source, version, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (index_name, doc_type, id) DO UPDATE SET
			source = excluded.source,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		index, docType, id, string(raw), version)
	if err != nil {
		return false, 0, fmt.Errorf("docstore: index %s/%s/%s: %w", index, docType, id, err)
	}

	return created, version, nil
}

func (c *SqliteClient) Delete(ctx context.Context, index, docType, id string, refresh bool) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM documents WHERE index_name = ? AND doc_type = ? AND id = ?`,
		index, docType, id)
	if err != nil {
		return false, fmt.Errorf("docstore: delete %s/%s/%s: %w", index, docType, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("docstore: delete rowsaffected %s/%s/%s: %w", index, docType, id, err)
	}
	return n > 0, nil
}

func (c *SqliteClient) Search(ctx context.Context, index, docType string, ids []string, withVersion bool, size int, keepAlive time.Duration) (*ScrollPage, error) {
	if size <= 0 {
		size = 1000
	}
	return c.scan(ctx, &cursorState{
		index:       index,
		docType:     docType,
		ids:         ids,
		withVersion: withVersion,
		size:        size,
		expiresAt:   time.Now().Add(keepAlive),
	})
}

func (c *SqliteClient) SearchScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*ScrollPage, error) {
	state, ok := c.cursors.take(scrollID)
	if !ok {
		return &ScrollPage{Done: true}, nil
	}
	state.expiresAt = time.Now().Add(keepAlive)
	return c.scan(ctx, state)
}

func (c *SqliteClient) ClearScroll(ctx context.Context, scrollIDs ...string) error {
	for _, id := range scrollIDs {
		c.cursors.clear(id)
	}
	return nil
}

func (c *SqliteClient) scan(ctx context.Context, state *cursorState) (*ScrollPage, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, source, version FROM documents WHERE index_name = ? AND doc_type = ? AND id > ?`)
	args := []any{state.index, state.docType, state.afterID}

	if len(state.ids) > 0 {
		placeholders := make([]string, len(state.ids))
		for i, id := range state.ids {
			placeholders[i] = "?"
			args = append(args, id)
		}
		sb.WriteString(" AND id IN (" + strings.Join(placeholders, ",") + ")")
	}
	sb.WriteString(" ORDER BY id ASC LIMIT ?")
	args = append(args, state.size+1)

	rows, err := c.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: scan %s/%s: %w", state.index, state.docType, err)
	}
	defer rows.Close()

	var hits []Document
	for rows.Next() {
		var id, raw string
		var version int64
		if err := rows.Scan(&id, &raw, &version); err != nil {
			return nil, fmt.Errorf("docstore: scan row %s/%s: %w", state.index, state.docType, err)
		}
		source, decodeErr := decodeSource([]byte(raw))
		if decodeErr != nil {
			c.logger.Warn("docstore: skipping undecodable row", "index", state.index, "id", id, "error", decodeErr)
			continue
		}
		if !state.withVersion {
			version = 0
		}
		hits = append(hits, Document{Index: state.index, Type: state.docType, ID: id, Source: source, Version: version})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: rows %s/%s: %w", state.index, state.docType, err)
	}

	if len(hits) <= state.size {
		return &ScrollPage{Hits: hits, Done: true}, nil
	}

	hits = hits[:state.size]
	lastID := hits[len(hits)-1].ID

	next := &cursorState{
		index:       state.index,
		docType:     state.docType,
		ids:         state.ids,
		withVersion: state.withVersion,
		afterID:     lastID,
		size:        state.size,
		expiresAt:   state.expiresAt,
	}
	return &ScrollPage{Hits: hits, Done: false, ScrollID: c.cursors.open(next)}, nil
}
