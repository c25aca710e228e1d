package userstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/clusterwatch"
	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/docstore"
)

var (
	errPurgeFailed    = errors.New("purge backend unavailable")
	errListenerFailed = errors.New("listener exploded")
)

func newTestStore(t *testing.T, ds *fakeDocstore, purger *fakePurger) *DefaultStore {
	t.Helper()
	cfg := Config{
		IndexName:       "security-users",
		ScrollSize:      2,
		ScrollKeepAlive: time.Second,
		ReloadInterval:  20 * time.Millisecond,
		GetTimeout:      time.Second,
	}
	return NewStore(cfg, ds, purger, fakeHasher{}, nil, nil, nil)
}

func readySnapshot() clusterwatch.Snapshot {
	return clusterwatch.Snapshot{Recovered: true, TemplatePresent: true, PrimaryActive: true}
}

// Scenario 1: fresh start, empty index.
func TestStore_FreshStartEmptyIndex(t *testing.T) {
	ds := newFakeDocstore()
	ds.indexMissing = true
	store := newTestStore(t, ds, &fakePurger{})

	assert.True(t, store.CanStart(readySnapshot(), true))

	require.NoError(t, store.Start(context.Background()))
	defer store.Stop(context.Background())

	store.OnClusterChanged(readySnapshot())
	assert.Nil(t, store.GetUser(context.Background(), "alice"))
}

// Scenario 2: put then read; creation triggers no purge.
func TestStore_PutThenRead(t *testing.T) {
	ds := newFakeDocstore()
	purger := &fakePurger{}
	store := newTestStore(t, ds, purger)
	require.NoError(t, store.Start(context.Background()))
	defer store.Stop(context.Background())

	err := store.Put(context.Background(), PutRequest{
		Username:     "alice",
		PasswordHash: "hash:s3cr3t",
		Roles:        []string{"admin"},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 0, purger.callCount())

	user := store.GetUser(context.Background(), "alice")
	require.NotNil(t, user)
	assert.Equal(t, []string{"admin"}, user.Roles)
}

// Scenario 3: update triggers exactly one purge; purge failure surfaces as
// CachePurgeFailedError.
func TestStore_UpdateTriggersPurge(t *testing.T) {
	ds := newFakeDocstore()
	purger := &fakePurger{}
	store := newTestStore(t, ds, purger)
	require.NoError(t, store.Start(context.Background()))
	defer store.Stop(context.Background())

	base := PutRequest{Username: "alice", PasswordHash: "hash:s3cr3t", Roles: []string{"admin"}}
	require.NoError(t, store.Put(context.Background(), base, true))

	update := PutRequest{Username: "alice", PasswordHash: "hash:s3cr3t2", Roles: []string{"admin", "ops"}}
	require.NoError(t, store.Put(context.Background(), update, true))
	assert.Equal(t, 1, purger.callCount())

	purger.failNext = true
	err := store.Put(context.Background(), update, true)
	var purgeErr *CachePurgeFailedError
	require.ErrorAs(t, err, &purgeErr)
	assert.Equal(t, "alice", purgeErr.Username)
	assert.ErrorIs(t, err, errPurgeFailed)
}

// Scenario 4: poller detects an external delete and notifies listeners.
func TestStore_PollerDetectsExternalDelete(t *testing.T) {
	ds := newFakeDocstore()
	store := newTestStore(t, ds, &fakePurger{})
	require.NoError(t, store.Start(context.Background()))
	defer store.Stop(context.Background())

	listener := &collectingListener{}
	store.RegisterListener(listener)

	require.NoError(t, store.Put(context.Background(), PutRequest{
		Username:     "alice",
		PasswordHash: "hash:x",
		Roles:        []string{"admin"},
	}, true))

	store.OnClusterChanged(readySnapshot())
	require.NoError(t, store.runPollIteration(context.Background()))
	_, known := store.versions.Get("alice")
	assert.True(t, known)

	ds.mu.Lock()
	delete(ds.docs, "alice")
	delete(ds.versions, "alice")
	ds.mu.Unlock()

	require.NoError(t, store.runPollIteration(context.Background()))

	_, stillKnown := store.versions.Get("alice")
	assert.False(t, stillKnown)

	events := listener.snapshot()
	require.NotEmpty(t, events)
	assert.Contains(t, events[len(events)-1], "alice")
}

// Scenario 5: verify password success/failure/missing.
func TestStore_VerifyPassword(t *testing.T) {
	ds := newFakeDocstore()
	store := newTestStore(t, ds, &fakePurger{})
	require.NoError(t, store.Start(context.Background()))
	defer store.Stop(context.Background())

	require.NoError(t, store.Put(context.Background(), PutRequest{
		Username:     "alice",
		PasswordHash: "hash:s3cr3t",
		Roles:        []string{"admin"},
	}, true))

	assert.NotNil(t, store.VerifyPassword(context.Background(), "alice", "s3cr3t"))
	assert.Nil(t, store.VerifyPassword(context.Background(), "alice", "wrong"))
	assert.Nil(t, store.VerifyPassword(context.Background(), "missing", "x"))
}

// Pre-start rejection: every surface except CanStart/Start fails before
// STARTED.
func TestStore_PreStartRejection(t *testing.T) {
	ds := newFakeDocstore()
	store := newTestStore(t, ds, &fakePurger{})

	assert.Nil(t, store.GetUser(context.Background(), "alice"))
	_, err := store.GetUsers(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotStarted)
	err = store.Put(context.Background(), PutRequest{Username: "a", PasswordHash: "h"}, false)
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = store.Delete(context.Background(), "a", false)
	assert.ErrorIs(t, err, ErrNotStarted)
}

// Reset is only valid from STOPPED/FAILED.
func TestStore_ResetOnlyFromStoppedOrFailed(t *testing.T) {
	ds := newFakeDocstore()
	store := newTestStore(t, ds, &fakePurger{})

	assert.ErrorIs(t, store.Reset(), ErrResetNotAllowed)

	require.NoError(t, store.Start(context.Background()))
	assert.ErrorIs(t, store.Reset(), ErrResetNotAllowed)

	require.NoError(t, store.Stop(context.Background()))
	assert.NoError(t, store.Reset())
	assert.Equal(t, StateInitialized, store.state.Load())
}

// Listener isolation: one failing listener does not block the next.
func TestStore_ListenerIsolation(t *testing.T) {
	ds := newFakeDocstore()
	store := newTestStore(t, ds, &fakePurger{})
	require.NoError(t, store.Start(context.Background()))
	defer store.Stop(context.Background())

	failing := &collectingListener{failN: 1}
	trailing := &collectingListener{}
	store.RegisterListener(failing)
	store.RegisterListener(trailing)

	require.NoError(t, store.Put(context.Background(), PutRequest{Username: "bob", PasswordHash: "hash:x"}, true))
	store.OnClusterChanged(readySnapshot())
	require.NoError(t, store.runPollIteration(context.Background()))

	ds.mu.Lock()
	delete(ds.docs, "bob")
	delete(ds.versions, "bob")
	ds.mu.Unlock()

	err := store.runPollIteration(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errListenerFailed)
	assert.NotEmpty(t, trailing.snapshot())
}

// stopMidScrollClient wraps fakeDocstore and, once armed, flips the owning
// store to STOPPING right after the first scroll page comes back, so the
// poller's "before scroll continuation" checkpoint (poller.go) fires on the
// very next page.
type stopMidScrollClient struct {
	*fakeDocstore
	store     *DefaultStore
	armed     bool
	triggered bool
}

func (c *stopMidScrollClient) Search(ctx context.Context, index, docType string, ids []string, withVersion bool, size int, keepAlive time.Duration) (*docstore.ScrollPage, error) {
	page, err := c.fakeDocstore.Search(ctx, index, docType, ids, withVersion, size, keepAlive)
	if c.armed && err == nil && withVersion && !page.Done && !c.triggered {
		c.triggered = true
		c.store.state.Store(StateStopping)
	}
	return page, err
}

// Scenario 6: stop() mid-iteration. The poller detects STOPPING at its
// scroll-continuation checkpoint and returns without updating the version
// map or invoking listeners.
func TestStore_StopDuringScroll(t *testing.T) {
	ds := newFakeDocstore()
	client := &stopMidScrollClient{fakeDocstore: ds}
	cfg := Config{
		IndexName:       "security-users",
		ScrollSize:      2,
		ScrollKeepAlive: time.Second,
		ReloadInterval:  20 * time.Millisecond,
		GetTimeout:      time.Second,
	}
	store := NewStore(cfg, client, &fakePurger{}, fakeHasher{}, nil, nil, nil)
	client.store = store

	require.NoError(t, store.Start(context.Background()))
	store.OnClusterChanged(readySnapshot())

	for _, u := range []string{"alice", "bob", "carol"} {
		require.NoError(t, store.Put(context.Background(), PutRequest{
			Username:     u,
			PasswordHash: "hash:x",
			Roles:        []string{"user"},
		}, true))
	}

	// Seed the version map with an ordinary, unaborted poll first.
	require.NoError(t, store.runPollIteration(context.Background()))
	before := store.versions.Snapshot()
	require.Len(t, before, 3)

	listener := &collectingListener{}
	store.RegisterListener(listener)

	client.armed = true
	require.NoError(t, store.runPollIteration(context.Background()))

	assert.Equal(t, before, store.versions.Snapshot())
	assert.Empty(t, listener.snapshot())

	store.state.Store(StateStarted)
	require.NoError(t, store.Stop(context.Background()))
}
