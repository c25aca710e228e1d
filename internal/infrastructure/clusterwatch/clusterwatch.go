// Package clusterwatch watches the Kubernetes StatefulSet/Pods backing the
// document store and reports a point-in-time readiness snapshot: the
// Go-idiomatic analogue of "cluster-state observation, template presence,
// primary-shard availability" that gates when the store may leave its
// initial state.
package clusterwatch

import "context"

// Snapshot is the readiness trio the store's lifecycle controller inspects
// on every cluster-change event and before every start attempt.
type Snapshot struct {
	// Recovered reports whether the backing StatefulSet has recovered from
	// disk, i.e. its deployment is available.
	Recovered bool
	// TemplatePresent reports whether the expected schema migration (the
	// sentinel migration that creates the documents table) has run.
	TemplatePresent bool
	// PrimaryActive reports whether the StatefulSet's ready replica count
	// equals its desired replica count, the analogue of "all primary
	// shards active".
	PrimaryActive bool
}

// Ready reports whether every readiness clause holds.
func (s Snapshot) Ready() bool {
	return s.Recovered && s.TemplatePresent && s.PrimaryActive
}

// Watcher produces readiness snapshots on demand.
type Watcher interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Close() error
}
