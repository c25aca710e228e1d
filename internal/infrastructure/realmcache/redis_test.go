package realmcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestPurger(t *testing.T) (*RedisPurger, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := &Config{
		Addr:         mr.Addr(),
		Channel:      "realm-cache:invalidate",
		DialTimeout:  time.Second,
		WriteTimeout: time.Second,
	}

	purger, err := NewRedisPurger(cfg, nil)
	require.NoError(t, err)

	return purger, mr
}

func TestRedisPurger_ClearRealmCache(t *testing.T) {
	purger, mr := setupTestPurger(t)
	defer mr.Close()
	defer purger.Close()

	ctx := context.Background()

	t.Run("publishes changed usernames", func(t *testing.T) {
		received := make(chan []string, 1)
		sub := purger.client.Subscribe(ctx, purger.channel)
		defer sub.Close()

		go func() {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			usernames, err := decodePurgeMessage([]byte(msg.Payload))
			if err != nil {
				return
			}
			received <- usernames
		}()

		// give the subscriber time to register before publishing
		time.Sleep(50 * time.Millisecond)

		err := purger.ClearRealmCache(ctx, []string{"alice", "bob"})
		require.NoError(t, err)

		select {
		case usernames := <-received:
			assert.Equal(t, []string{"alice", "bob"}, usernames)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for published message")
		}
	})

	t.Run("empty usernames is a no-op", func(t *testing.T) {
		err := purger.ClearRealmCache(ctx, nil)
		assert.NoError(t, err)
	})
}

func TestNewRedisPurger_InvalidConfig(t *testing.T) {
	_, err := NewRedisPurger(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewRedisPurger_ConnectionFailure(t *testing.T) {
	cfg := &Config{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}
	_, err := NewRedisPurger(cfg, nil)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}
