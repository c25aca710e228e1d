package userstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionMap_SetGetDelete(t *testing.T) {
	m := newVersionMap()

	_, ok := m.Get("alice")
	assert.False(t, ok)

	m.Set("alice", 1)
	v, ok := m.Get("alice")
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)

	m.Delete("alice")
	_, ok = m.Get("alice")
	assert.False(t, ok)
}

func TestVersionMap_SnapshotIsDefensiveCopy(t *testing.T) {
	m := newVersionMap()
	m.Set("alice", 1)

	snap := m.Snapshot()
	snap["alice"] = 99
	v, _ := m.Get("alice")
	assert.Equal(t, int64(1), v)
}

func TestVersionMap_ConcurrentAccess(t *testing.T) {
	m := newVersionMap()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set("user", int64(i))
			m.Get("user")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, m.Len())
}

func TestVersionMap_Reset(t *testing.T) {
	m := newVersionMap()
	m.Set("alice", 1)
	m.Reset()
	assert.Equal(t, 0, m.Len())
}
