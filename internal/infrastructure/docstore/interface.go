// Package docstore implements the indexed document store the user store
// treats as its backing client: point lookups, whole-document writes, and
// scrolled scans with optional version metadata.
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no document exists for the given id.
var ErrNotFound = errors.New("docstore: document not found")

// ErrIndexNotFound is the distinguished error for scans and lookups
// against an index that does not exist yet. Callers above this package
// suppress it on reads and propagate it on writes.
var ErrIndexNotFound = errors.New("docstore: index not found")

// Document is a single stored record: its coordinates (index/type/id),
// its decoded attribute map, and the version assigned by the store.
type Document struct {
	Index   string
	Type    string
	ID      string
	Source  map[string]any
	Version int64
}

// ScrollPage is one page of a scrolled scan: the hits it carries and the
// cursor to continue with, if any remain.
type ScrollPage struct {
	ScrollID string
	Hits     []Document
	Done     bool
}

// Client is the backing document store contract. Implementations must
// treat index(...) as a whole-document replace, never a partial update,
// and must honor ignoreUnavailable semantics on reads: a missing index
// yields ErrIndexNotFound rather than a generic failure.
type Client interface {
	// Get performs a point lookup by primary key. Returns ErrNotFound if
	// absent, ErrIndexNotFound if the index itself does not exist.
	Get(ctx context.Context, index, docType, id string) (*Document, error)

	// Index writes source as the entire document at id, returning whether
	// the write created a new document (true) or replaced an existing one
	// (false), along with the version assigned by the store.
	Index(ctx context.Context, index, docType, id string, source map[string]any, refresh bool) (created bool, version int64, err error)

	// Delete removes the document at id, returning whether it was found.
	Delete(ctx context.Context, index, docType, id string, refresh bool) (found bool, err error)

	// Search opens a scroll over all documents in index (optionally
	// restricted to ids), requesting version metadata when withVersion is
	// true. A missing index may come back as ErrIndexNotFound; the poller
	// and the read path treat that error as an empty result.
	Search(ctx context.Context, index, docType string, ids []string, withVersion bool, size int, keepAlive time.Duration) (*ScrollPage, error)

	// SearchScroll continues a scan previously opened by Search.
	SearchScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*ScrollPage, error)

	// ClearScroll releases one or more scroll cursors. Best-effort: callers
	// log failures rather than propagate them.
	ClearScroll(ctx context.Context, scrollIDs ...string) error
}
