package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vitaliisemenov/native-user-store/internal/database/postgres"
)

// PostgresClient is the Postgres-backed Client implementation: a single
// "documents" table standing in for an indexed document store, with
// keyset-paginated scrolling bridging the gap to the backing store's
// scroll contract.
type PostgresClient struct {
	conn    postgres.DatabaseConnection
	cursors *cursorRegistry
	logger  *slog.Logger
}

// NewPostgresClient builds a PostgresClient over an already-connected pool.
func NewPostgresClient(conn postgres.DatabaseConnection, logger *slog.Logger) *PostgresClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresClient{
		conn:    conn,
		cursors: newCursorRegistry(1024),
		logger:  logger,
	}
}

func (c *PostgresClient) Get(ctx context.Context, index, docType, id string) (*Document, error) {
	row := c.conn.QueryRow(ctx,
		`SELECT source, version FROM documents WHERE index_name = $1 AND doc_type = $2 AND id = $3`,
		index, docType, id)

	var raw []byte
	var version int64
	if err := row.Scan(&raw, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("docstore: get %s/%s/%s: %w", index, docType, id, err)
	}

	source, err := decodeSource(raw)
	if err != nil {
		return nil, fmt.Errorf("docstore: decode %s/%s/%s: %w", index, docType, id, err)
	}

	return &Document{Index: index, Type: docType, ID: id, Source: source, Version: version}, nil
}

// Index performs an upsert, using the "xmax = 0" trick to distinguish a
// fresh insert (created=true) from a replace of an existing row.
func (c *PostgresClient) Index(ctx context.Context, index, docType, id string, source map[string]any, refresh bool) (bool, int64, error) {
	raw, err := json.Marshal(source)
	if err != nil {
		return false, 0, fmt.Errorf("docstore: encode %s/%s/%s: %w", index, docType, id, err)
	}

	row := c.conn.QueryRow(ctx, `
		INSERT INTO documents (index_name, doc_type, id, source, version, updated_at)
		VALUES ($1, $2, $3, $4, 1, now())
		ON CONFLICT (index_name, doc_type, id) DO UPDATE
			SET source = EXCLUDED.source,
				version = documents.version + 1,
				updated_at = now()
		RETURNING version, (xmax = 0) AS inserted`,
		index, docType, id, raw)

	var version int64
	var created bool
	if err := row.Scan(&version, &created); err != nil {
		return false, 0, fmt.Errorf("docstore: index %s/%s/%s: %w", index, docType, id, err)
	}

	return created, version, nil
}

func (c *PostgresClient) Delete(ctx context.Context, index, docType, id string, refresh bool) (bool, error) {
	tag, err := c.conn.Exec(ctx,
		`DELETE FROM documents WHERE index_name = $1 AND doc_type = $2 AND id = $3`,
		index, docType, id)
	if err != nil {
		return false, fmt.Errorf("docstore: delete %s/%s/%s: %w", index, docType, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (c *PostgresClient) Search(ctx context.Context, index, docType string, ids []string, withVersion bool, size int, keepAlive time.Duration) (*ScrollPage, error) {
	if size <= 0 {
		size = 1000
	}
	return c.scan(ctx, &cursorState{
		index:       index,
		docType:     docType,
		ids:         ids,
		withVersion: withVersion,
		afterID:     "",
		size:        size,
		expiresAt:   time.Now().Add(keepAlive),
	})
}

func (c *PostgresClient) SearchScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*ScrollPage, error) {
	state, ok := c.cursors.take(scrollID)
	if !ok {
		return &ScrollPage{Done: true}, nil
	}
	state.expiresAt = time.Now().Add(keepAlive)
	return c.scan(ctx, state)
}

func (c *PostgresClient) ClearScroll(ctx context.Context, scrollIDs ...string) error {
	for _, id := range scrollIDs {
		c.cursors.clear(id)
	}
	return nil
}

func (c *PostgresClient) scan(ctx context.Context, state *cursorState) (*ScrollPage, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, source, version FROM documents WHERE index_name = $1 AND doc_type = $2 AND id > $3`)
	args := []any{state.index, state.docType, state.afterID}

	if len(state.ids) > 0 {
		sb.WriteString(` AND id = ANY($4)`)
		args = append(args, state.ids)
	}
	sb.WriteString(` ORDER BY id ASC LIMIT $`)
	args = append(args, state.size+1)
	fmt.Fprintf(&sb, "%d", len(args))

	rows, err := c.conn.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: scan %s/%s: %w", state.index, state.docType, err)
	}
	defer rows.Close()

	var hits []Document
	var lastID string
	for rows.Next() {
		var id string
		var raw []byte
		var version int64
		if err := rows.Scan(&id, &raw, &version); err != nil {
			return nil, fmt.Errorf("docstore: scan row %s/%s: %w", state.index, state.docType, err)
		}
		source, decodeErr := decodeSource(raw)
		if decodeErr != nil {
			c.logger.Warn("docstore: skipping undecodable row", "index", state.index, "id", id, "error", decodeErr)
			continue
		}
		if !state.withVersion {
			version = 0
		}
		hits = append(hits, Document{Index: state.index, Type: state.docType, ID: id, Source: source, Version: version})
		lastID = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: rows %s/%s: %w", state.index, state.docType, err)
	}

	if len(hits) <= state.size {
		return &ScrollPage{Hits: hits, Done: true}, nil
	}

	// One extra row fetched to detect "more remain"; trim it back off and
	// stash a continuation cursor keyed on the last id we're returning.
	hits = hits[:state.size]
	lastID = hits[len(hits)-1].ID

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

func decodeSource(raw []byte) (map[string]any, error) {
	var source map[string]any
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, err
	}
	return source, nil
}
