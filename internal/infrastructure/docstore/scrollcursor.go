package docstore

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/uuid"
)

// cursorState is the server-side continuation for one open scroll: enough
// to resume a keyset scan where the previous page left off.
type cursorState struct {
	index       string
	docType     string
	ids         []string
	withVersion bool
	afterID     string
	size        int
	expiresAt   time.Time
}

// cursorRegistry bounds the number of concurrently open scroll cursors so a
// caller that never clears a scroll cannot leak memory unboundedly; the
// least-recently-used cursor is evicted once the cap is reached.
type cursorRegistry struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *cursorState]
}

func newCursorRegistry(capacity int) *cursorRegistry {
	if capacity <= 0 {
		capacity = 256
	}
	c, err := lru.New[string, *cursorState](capacity)
	if err != nil {
		// Only returns an error for non-positive size, already guarded above.
		panic(err)
	}
	return &cursorRegistry{cache: c}
}

func (r *cursorRegistry) open(state *cursorState) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.cache.Add(id, state)
	r.mu.Unlock()
	return id
}

// take retrieves and removes a cursor's state, as a scroll continuation is
// single-use: each SearchScroll call consumes the prior page's cursor and
// (if more remain) opens a fresh one.
func (r *cursorRegistry) take(id string) (*cursorState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	r.cache.Remove(id)
	if time.Now().After(state.expiresAt) {
		return nil, false
	}
	return state, true
}

func (r *cursorRegistry) clear(id string) {
	r.mu.Lock()
	r.cache.Remove(id)
	r.mu.Unlock()
}
