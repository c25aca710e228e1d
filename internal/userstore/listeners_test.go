package userstore

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerRegistry_RegisterAndSnapshot(t *testing.T) {
	r := newListenerRegistry()
	assert.Empty(t, r.Snapshot())

	var got []string
	r.Register(ListenerFunc(func(changed []string) error {
		got = changed
		return nil
	}))

	listeners := r.Snapshot()
	require.Len(t, listeners, 1)
	require.NoError(t, listeners[0].OnUsersChanged([]string{"alice"}))
	assert.Equal(t, []string{"alice"}, got)
}

func TestListenerRegistry_SnapshotStableDuringConcurrentRegister(t *testing.T) {
	r := newListenerRegistry()
	r.Register(ListenerFunc(func(changed []string) error { return nil }))

	snap := r.Snapshot()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(ListenerFunc(func(changed []string) error { return nil }))
		}()
	}
	wg.Wait()

	assert.Len(t, snap, 1)
	assert.Len(t, r.Snapshot(), 11)
}

func TestDispatchChangedUsers_FirstErrorWinsRestSuppressed(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	var cCalled bool

	listeners := []Listener{
		ListenerFunc(func(changed []string) error { return errA }),
		ListenerFunc(func(changed []string) error { return errB }),
		ListenerFunc(func(changed []string) error { cCalled = true; return nil }),
	}

	err := dispatchChangedUsers(listeners, []string{"alice"})
	require.Error(t, err)
	assert.True(t, cCalled)

	var listenerErr *ListenerError
	require.ErrorAs(t, err, &listenerErr)
	assert.ErrorIs(t, listenerErr.Err, errA)
	require.Len(t, listenerErr.Suppressed, 1)
	assert.ErrorIs(t, listenerErr.Suppressed[0], errB)
}

func TestDispatchChangedUsers_NoListeners(t *testing.T) {
	assert.NoError(t, dispatchChangedUsers(nil, []string{"alice"}))
}
