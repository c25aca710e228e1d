package userstore

import (
	"context"
	"sync"
	"time"

	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/docstore"
)

// fakeDocstore is an in-memory docstore.Client used to exercise the poller
// and mutation paths deterministically, without a real Postgres/sqlite
// backend.
type fakeDocstore struct {
	mu       sync.Mutex
	docs     map[string]map[string]any
	versions map[string]int64
	nextVer  int64
	pageSize int

	indexMissing bool
}

func newFakeDocstore() *fakeDocstore {
	return &fakeDocstore{
		docs:     make(map[string]map[string]any),
		versions: make(map[string]int64),
		pageSize: 2,
	}
}

func (f *fakeDocstore) Get(ctx context.Context, index, docType, id string) (*docstore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.indexMissing {
		return nil, docstore.ErrIndexNotFound
	}
	src, ok := f.docs[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return &docstore.Document{Index: index, Type: docType, ID: id, Source: src, Version: f.versions[id]}, nil
}

func (f *fakeDocstore) Index(ctx context.Context, index, docType, id string, source map[string]any, refresh bool) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, existed := f.docs[id]
	f.nextVer++
	f.docs[id] = source
	f.versions[id] = f.nextVer
	return !existed, f.nextVer, nil
}

func (f *fakeDocstore) Delete(ctx context.Context, index, docType, id string, refresh bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, existed := f.docs[id]
	delete(f.docs, id)
	delete(f.versions, id)
	return existed, nil
}

func (f *fakeDocstore) Search(ctx context.Context, index, docType string, ids []string, withVersion bool, size int, keepAlive time.Duration) (*docstore.ScrollPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.indexMissing {
		return nil, docstore.ErrIndexNotFound
	}

	var keys []string
	if len(ids) > 0 {
		keys = ids
	} else {
		for k := range f.docs {
			keys = append(keys, k)
		}
	}

	return f.pageFor(keys, 0, size, withVersion), nil
}

func (f *fakeDocstore) SearchScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*docstore.ScrollPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := decodeScrollID(scrollID)
	if !ok {
		return &docstore.ScrollPage{Done: true}, nil
	}
	return f.pageFor(state.keys, state.offset, state.size, state.withVersion), nil
}

func (f *fakeDocstore) ClearScroll(ctx context.Context, scrollIDs ...string) error {
	return nil
}

// pageFor must be called with f.mu held.
func (f *fakeDocstore) pageFor(keys []string, offset, size int, withVersion bool) *docstore.ScrollPage {
	end := offset + size
	if end > len(keys) {
		end = len(keys)
	}
	if offset > len(keys) {
		offset = len(keys)
	}

	var hits []docstore.Document
	for _, k := range keys[offset:end] {
		doc := docstore.Document{ID: k, Source: f.docs[k]}
		if withVersion {
			doc.Version = f.versions[k]
		}
		hits = append(hits, doc)
	}

	done := end >= len(keys)
	var scrollID string
	if !done {
		scrollID = encodeScrollID(scrollState{keys: keys, offset: end, size: size, withVersion: withVersion})
	}
	return &docstore.ScrollPage{ScrollID: scrollID, Hits: hits, Done: done}
}

// scrollState/encodeScrollID/decodeScrollID fake a server-side cursor table
// by threading the remaining key list through an opaque token, entirely
// local to this test fake.
type scrollState struct {
	keys        []string
	offset      int
	size        int
	withVersion bool
}

var scrollStates = struct {
	mu sync.Mutex
	m  map[string]scrollState
	n  int
}{m: make(map[string]scrollState)}

func encodeScrollID(s scrollState) string {
	scrollStates.mu.Lock()
	defer scrollStates.mu.Unlock()
	scrollStates.n++
	id := "scroll-" + string(rune('a'+scrollStates.n%26)) + "-" + itoa(scrollStates.n)
	scrollStates.m[id] = s
	return id
}

func decodeScrollID(id string) (scrollState, bool) {
	scrollStates.mu.Lock()
	defer scrollStates.mu.Unlock()
	s, ok := scrollStates.m[id]
	return s, ok
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// fakePurger records every ClearRealmCache call; set failNext to force the
// next call to fail.
type fakePurger struct {
	mu       sync.Mutex
	calls    [][]string
	failNext bool
}

func (p *fakePurger) ClearRealmCache(ctx context.Context, usernames []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, usernames)
	if p.failNext {
		p.failNext = false
		return errPurgeFailed
	}
	return nil
}

func (p *fakePurger) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// fakeHasher compares plaintext to hash by simple equality, avoiding a real
// bcrypt round trip in unit tests that don't exercise the hasher itself.
type fakeHasher struct{}

func (fakeHasher) Verify(plaintext, hash string) bool     { return "hash:"+plaintext == hash }
func (fakeHasher) Hash(plaintext string) (string, error) { return "hash:" + plaintext, nil }

// collectingListener records every changedUsers event it receives.
type collectingListener struct {
	mu     sync.Mutex
	events [][]string
	failN  int
}

func (l *collectingListener) OnUsersChanged(changed []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, changed)
	if l.failN > 0 {
		l.failN--
		return errListenerFailed
	}
	return nil
}

func (l *collectingListener) snapshot() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]string, len(l.events))
	copy(out, l.events)
	return out
}
